package cachestore

import (
	"encoding/json"

	"github.com/rohmanhakim/pyq-crawler/pkg/fileutil"
)

// Cache is the on-disk document: one JSON object of opaque values.
type Cache map[string]json.RawMessage

func (c Cache) clone() Cache {
	out := make(Cache, len(c))
	for k, v := range c {
		out[k] = cloneRaw(v)
	}
	return out
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}

// LoadSource tells which file Load ended up reading.
type LoadSource int

const (
	SourceEmpty LoadSource = iota
	SourcePrimary
	SourceBackup
)

func (s LoadSource) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceBackup:
		return "backup"
	default:
		return "empty"
	}
}

// Paths derives the sibling files of a cache document:
//
//	data/cache.json      primary
//	data/cache.bak       backup of the previous primary
//	data/cache.json.lock cross-process lock
//	data/cache.json.tmp  staging file for atomic replace
type Paths struct {
	primary string
}

func NewPaths(primary string) Paths {
	return Paths{primary: primary}
}

func (p Paths) Primary() string {
	return p.primary
}

func (p Paths) Backup() string {
	return fileutil.TrimExtension(p.primary) + ".bak"
}

func (p Paths) Lock() string {
	return p.primary + ".lock"
}

func (p Paths) Temp() string {
	return p.primary + ".tmp"
}

// QuestionKey is the cache key of a question detail document.
func QuestionKey(questionID string) string {
	return "question_" + questionID
}
