package report_test

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/api"
	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/internal/report"
	"github.com/rohmanhakim/pyq-crawler/internal/scheduler"
)

var generatedAt = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

func linkBase() url.URL {
	u, _ := url.Parse("https://web.getmarks.app/cpyqb/question")
	return *u
}

func questionDetail(id, text, year string) api.QuestionDetail {
	data := map[string]any{
		"_id":      id,
		"question": map[string]string{"text": text},
	}
	if year != "" {
		data["previousYearPapers"] = []map[string]string{{"title": year}}
	}
	raw, _ := json.Marshal(map[string]any{"data": data})
	return api.NewQuestionDetail(raw)
}

func sampleExecution() scheduler.SearchExecution {
	return scheduler.SearchExecution{
		Matches: []scheduler.MatchRecord{
			{
				SubjectID:    "phy",
				ChapterID:    "c1",
				ChapterTitle: "Laws of Motion",
				QuestionID:   "q1",
				Detail:       questionDetail("q1", "<p>Find the <strong>net force</strong> on the block</p>", "JEE Main 2021 (26 Feb Shift 1)"),
			},
			{
				SubjectID:    "phy",
				ChapterID:    "c2",
				ChapterTitle: "Work, Energy and Power",
				QuestionID:   "q2",
				Detail:       questionDetail("q2", "A constant force acts on a body", ""),
			},
		},
		Outcome:        scheduler.OutcomeCompleted,
		TotalChapters:  2,
		TotalQuestions: 14,
		TotalErrors:    1,
	}
}

func sampleReport() report.Report {
	param := scheduler.SearchParam{SubjectID: "phy", Keyword: "force", ChapterCacheKey: "chapters_Physics"}
	return report.New("Physics (Mains)", param, sampleExecution(), linkBase(), generatedAt)
}

func emptyReport() report.Report {
	param := scheduler.SearchParam{SubjectID: "phy", Keyword: "zzz"}
	exec := scheduler.SearchExecution{Outcome: scheduler.OutcomeCompleted, TotalChapters: 2}
	return report.New("Physics (Mains)", param, exec, linkBase(), generatedAt)
}

type artifactSink struct {
	metadata.NoopSink
	mu        sync.Mutex
	artifacts []string
	errors    []metadata.ErrorCause
}

func (s *artifactSink) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, string(kind)+":"+path)
}

func (s *artifactSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, cause)
}
