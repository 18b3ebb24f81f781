package api

import (
	"encoding/json"
)

// Remote payloads

// Chapter is one entry of a subject's chapter listing.
type Chapter struct {
	ID        string   `json:"_id"`
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
}

// ChapterDetail is the live question list of a chapter. It is never cached.
type ChapterDetail struct {
	questions []string
}

func NewChapterDetail(questions []string) ChapterDetail {
	return ChapterDetail{questions: questions}
}

func (c ChapterDetail) Questions() []string {
	return c.questions
}

const UnknownYear = "Unknown Year"

// QuestionDetail keeps the question response verbatim so it can be cached
// and written out unchanged. Fields are decoded on demand.
type QuestionDetail struct {
	raw json.RawMessage
}

func NewQuestionDetail(raw json.RawMessage) QuestionDetail {
	return QuestionDetail{raw: raw}
}

type questionEnvelope struct {
	Data struct {
		ID       string `json:"_id"`
		Question struct {
			Text string `json:"text"`
		} `json:"question"`
		PreviousYearPapers []struct {
			Title string `json:"title"`
		} `json:"previousYearPapers"`
	} `json:"data"`
}

func (q QuestionDetail) decode() questionEnvelope {
	var env questionEnvelope
	// a payload of an unexpected shape reads as empty fields
	_ = json.Unmarshal(q.raw, &env)
	return env
}

func (q QuestionDetail) Raw() json.RawMessage {
	return q.raw
}

// Text is the question body, usually HTML. Missing fields read as "".
func (q QuestionDetail) Text() string {
	return q.decode().Data.Question.Text
}

func (q QuestionDetail) ID() string {
	return q.decode().Data.ID
}

// Year is the title of the first previous-year paper, or UnknownYear.
func (q QuestionDetail) Year() string {
	papers := q.decode().Data.PreviousYearPapers
	if len(papers) == 0 || papers[0].Title == "" {
		return UnknownYear
	}
	return papers[0].Title
}

// IsEmpty reports whether the payload carries nothing to cache.
func (q QuestionDetail) IsEmpty() bool {
	return len(q.raw) == 0 || string(q.raw) == "null" || string(q.raw) == "{}"
}
