package config

import (
	"fmt"
	"strings"
)

// Subject is one searchable subject of the question bank together with the
// cache key its chapter listing is stored under.
type Subject struct {
	Name            string `json:"name" yaml:"name"`
	ID              string `json:"id" yaml:"id"`
	ChapterCacheKey string `json:"chapterCacheKey" yaml:"chapterCacheKey"`
}

// DefaultSubjects is the built-in catalog, in display order.
func DefaultSubjects() []Subject {
	return []Subject{
		{Name: "Physics (Mains)", ID: "615f0c729476412f48314dab", ChapterCacheKey: "chapters_Physics"},
		{Name: "Chemistry (Mains)", ID: "615f0cf69476412f48314dac", ChapterCacheKey: "chapters_Chemistry"},
		{Name: "Maths (Mains)", ID: "615f0d109476412f48314dad", ChapterCacheKey: "chapters_Maths"},
		{Name: "Physics (Advanced)", ID: "616056cd0283de43c87e3e15", ChapterCacheKey: "chapters_Physics_Advanced"},
		{Name: "Chemistry (Advanced)", ID: "616057040283de43c87e3e16", ChapterCacheKey: "chapters_Chemistry_Advanced"},
		{Name: "Maths (Advanced)", ID: "6160570c0283de43c87e3e17", ChapterCacheKey: "chapters_Maths_Advanced"},
	}
}

// ResolveSubject finds a subject by id or by case-insensitive name.
func (c Config) ResolveSubject(query string) (Subject, error) {
	q := strings.TrimSpace(query)
	for _, s := range c.subjects {
		if s.ID == q || strings.EqualFold(s.Name, q) {
			return s, nil
		}
	}
	return Subject{}, fmt.Errorf("%w: %q", ErrUnknownSubject, query)
}

// ChapterCacheKeyFor returns the catalog cache key for subjectID, or a key
// derived from the id when the subject is not in the catalog.
func (c Config) ChapterCacheKeyFor(subjectID string) string {
	for _, s := range c.subjects {
		if s.ID == subjectID {
			return s.ChapterCacheKey
		}
	}
	return "chapters_" + subjectID
}

func validateSubjects(subjects []Subject) error {
	seenIDs := make(map[string]struct{}, len(subjects))
	for i, s := range subjects {
		if s.ID == "" || s.Name == "" || s.ChapterCacheKey == "" {
			return fmt.Errorf("%w: subject #%d needs name, id and chapterCacheKey", ErrInvalidConfig, i)
		}
		if _, dup := seenIDs[s.ID]; dup {
			return fmt.Errorf("%w: duplicate subject id %s", ErrInvalidConfig, s.ID)
		}
		seenIDs[s.ID] = struct{}{}
	}
	return nil
}
