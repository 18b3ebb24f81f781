package cachestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
	"github.com/rohmanhakim/pyq-crawler/pkg/filelock"
	"github.com/rohmanhakim/pyq-crawler/pkg/fileutil"
	"github.com/rohmanhakim/pyq-crawler/pkg/hashutil"
)

/*
Responsibilities
- Hold the question and chapter-listing cache in memory
- Load it from the primary file, falling back to the backup
- Persist whole snapshots atomically, one writer at a time

Durability
- The primary is only ever replaced by rename of a synced temp file
- The backup is refreshed from a primary that still parses
- A failed persist leaves the in-memory cache intact; the next mutation retries

The store never expires entries.
*/

type Store struct {
	paths        Paths
	lockTimeout  time.Duration
	metadataSink metadata.MetadataSink
	rename       func(oldpath, newpath string) error

	mu        sync.RWMutex
	entries   Cache
	version   uint64
	persisted uint64

	// serializes Persist within the process; flock covers other processes
	persistMu sync.Mutex
}

func NewStore(
	paths Paths,
	lockTimeout time.Duration,
	metadataSink metadata.MetadataSink,
) *Store {
	return &Store{
		paths:        paths,
		lockTimeout:  lockTimeout,
		metadataSink: metadataSink,
		rename:       os.Rename,
		entries:      make(Cache),
	}
}

func (s *Store) Paths() Paths {
	return s.paths
}

// Load replaces the in-memory cache with the primary file, or the backup when
// the primary is missing or unreadable, or an empty cache. It never fails;
// corrupt files are recorded and skipped. The returned Cache is a copy.
func (s *Store) Load() (Cache, LoadSource) {
	source := SourceEmpty
	loaded := make(Cache)

	if entries, ok := s.readFile(s.paths.Primary()); ok {
		loaded, source = entries, SourcePrimary
	} else if entries, ok := s.readFile(s.paths.Backup()); ok {
		loaded, source = entries, SourceBackup
	}

	s.mu.Lock()
	s.entries = loaded
	s.version = 0
	s.persisted = 0
	s.mu.Unlock()

	return loaded.clone(), source
}

func (s *Store) readFile(path string) (Cache, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.recordError("Store.Load", &CacheError{
				Message: err.Error(),
				Cause:   ErrCauseCorrupt,
				Path:    path,
				Err:     err,
			})
		}
		return nil, false
	}

	var entries Cache
	if err := json.Unmarshal(data, &entries); err != nil {
		s.recordError("Store.Load", &CacheError{
			Message: fmt.Sprintf("%s is not a valid cache document: %v", path, err),
			Cause:   ErrCauseCorrupt,
			Path:    path,
			Err:     err,
		})
		return nil, false
	}
	if entries == nil {
		entries = make(Cache)
	}
	return entries, true
}

func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return cloneRaw(v), true
}

// Put stores a copy of value under key.
func (s *Store) Put(key string, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = cloneRaw(value)
	s.version++
}

// Delete drops key and reports whether it existed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	s.version++
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Dirty reports whether the cache changed since the last successful persist.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.persisted
}

// Persist writes the whole cache to the primary file:
//
//  1. copy the current primary to the backup, if it still parses
//  2. take the cross-process lock, waiting at most lockTimeout
//  3. write a snapshot to the temp file and fsync it
//  4. rename the temp file over the primary
func (s *Store) Persist(ctx context.Context) failure.ClassifiedError {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	start := time.Now()
	entries, err := s.persist(ctx)
	s.metadataSink.RecordCachePersist(s.paths.Primary(), entries, time.Since(start), errorOrNil(err))
	if err != nil {
		s.recordError("Store.Persist", err)
		return err
	}
	return nil
}

func (s *Store) persist(ctx context.Context) (int, *CacheError) {
	if err := fileutil.EnsureDir(filepath.Dir(s.paths.Primary())); err != nil {
		return 0, &CacheError{
			Message: err.Error(),
			Cause:   ErrCauseWriteFailure,
			Path:    s.paths.Primary(),
			Err:     err,
		}
	}

	s.backupPrimary()

	lock, err := filelock.Acquire(ctx, s.paths.Lock(), s.lockTimeout)
	if err != nil {
		cause := ErrCauseLockFailure
		if errors.Is(err, filelock.ErrTimeout) {
			cause = ErrCauseLockTimeout
		}
		return 0, &CacheError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     cause,
			Path:      s.paths.Lock(),
			Err:       err,
		}
	}
	defer lock.Release()

	s.mu.RLock()
	snapshot := s.entries.clone()
	version := s.version
	s.mu.RUnlock()

	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return len(snapshot), &CacheError{
			Message: err.Error(),
			Cause:   ErrCauseSerialize,
			Path:    s.paths.Primary(),
			Err:     err,
		}
	}

	tmp := s.paths.Temp()
	if err := fileutil.WriteSynced(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return len(snapshot), &CacheError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseWriteFailure,
			Path:      tmp,
			Err:       err,
		}
	}
	if err := s.rename(tmp, s.paths.Primary()); err != nil {
		os.Remove(tmp)
		return len(snapshot), &CacheError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseWriteFailure,
			Path:      s.paths.Primary(),
			Err:       err,
		}
	}

	s.mu.Lock()
	if version > s.persisted {
		s.persisted = version
	}
	s.mu.Unlock()

	s.metadataSink.RecordArtifact(
		metadata.ArtifactCacheSnapshot,
		s.paths.Primary(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, s.paths.Primary()),
			metadata.NewAttr(metadata.AttrHash, hashutil.ContentHash(data)),
		},
	)
	return len(snapshot), nil
}

// backupPrimary is best effort: a failure is recorded and the persist goes on.
// Only a primary that loads as a cache document may replace the backup.
func (s *Store) backupPrimary() {
	data, err := os.ReadFile(s.paths.Primary())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.recordError("Store.Persist", &CacheError{
				Message: err.Error(),
				Cause:   ErrCauseBackupFailed,
				Path:    s.paths.Primary(),
				Err:     err,
			})
		}
		return
	}
	var current Cache
	if err := json.Unmarshal(data, &current); err != nil {
		s.recordError("Store.Persist", &CacheError{
			Message: fmt.Sprintf("primary is not a cache document, backup left untouched: %v", err),
			Cause:   ErrCauseCorrupt,
			Path:    s.paths.Primary(),
			Err:     err,
		})
		return
	}

	backup := s.paths.Backup()
	if err := fileutil.CopyFile(s.paths.Primary(), backup); err != nil {
		s.recordError("Store.Persist", &CacheError{
			Message: err.Error(),
			Cause:   ErrCauseBackupFailed,
			Path:    backup,
			Err:     err,
		})
		return
	}
	s.metadataSink.RecordArtifact(
		metadata.ArtifactCacheBackup,
		backup,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, backup),
		},
	)
}

// encodeSnapshot indents the cache and leaves HTML in question bodies unescaped.
func encodeSnapshot(snapshot Cache) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
