package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/fetcher"
	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
	"github.com/rohmanhakim/pyq-crawler/pkg/urlutil"
)

/*
Responsibilities
- Build the three remote endpoints from the configured bases
- Attach the bearer token, Accept and User-Agent headers
- Unwrap the {"data": ...} envelope

Transport, retries and rate limiting belong to the fetcher.
*/

const chapterListLimit = "1000"

type Client struct {
	fetcher       fetcher.Fetcher
	metadataSink  metadata.MetadataSink
	apiBase       url.URL
	questionsBase url.URL
	token         string
	userAgent     string
}

func NewClient(
	f fetcher.Fetcher,
	metadataSink metadata.MetadataSink,
	apiBase url.URL,
	questionsBase url.URL,
	token string,
	userAgent string,
) *Client {
	return &Client{
		fetcher:       f,
		metadataSink:  metadataSink,
		apiBase:       apiBase,
		questionsBase: questionsBase,
		token:         token,
		userAgent:     userAgent,
	}
}

func (c *Client) headers() map[string]string {
	h := map[string]string{
		"Accept": "application/json",
	}
	if c.token != "" {
		h["Authorization"] = "Bearer " + c.token
	}
	if c.userAgent != "" {
		h["User-Agent"] = c.userAgent
	}
	return h
}

// ListChapters returns the raw "data" array of a subject's chapter listing,
// suitable for caching as-is. A listing without "data" yields an empty array.
func (c *Client) ListChapters(ctx context.Context, subjectID string) (json.RawMessage, failure.ClassifiedError) {
	endpoint := urlutil.Endpoint(
		c.apiBase,
		url.Values{"limit": []string{chapterListLimit}},
		"subjects", subjectID, "chapters",
	)
	data, err := c.fetchData(ctx, "Client.ListChapters", http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return json.RawMessage("[]"), nil
	}
	return data, nil
}

// ChapterDetail fetches the live question id list of a chapter.
func (c *Client) ChapterDetail(ctx context.Context, chapterID string) (ChapterDetail, failure.ClassifiedError) {
	callerMethod := "Client.ChapterDetail"
	endpoint := urlutil.Endpoint(c.apiBase, nil, "chapters", chapterID, "details")
	data, err := c.fetchData(ctx, callerMethod, http.MethodGet, endpoint)
	if err != nil {
		return ChapterDetail{}, err
	}

	var detail struct {
		Questions []string `json:"questions"`
	}
	if len(data) > 0 && string(data) != "null" {
		if decodeErr := json.Unmarshal(data, &detail); decodeErr != nil {
			return ChapterDetail{}, c.recordAPIError(callerMethod, endpoint, &APIError{
				Message:  decodeErr.Error(),
				Cause:    ErrCauseMalformedEnvelope,
				Endpoint: endpoint,
				Err:      decodeErr,
			})
		}
	}
	return NewChapterDetail(detail.Questions), nil
}

// QuestionDetail fetches one question. The request is a POST with no body.
// The whole response document is returned, not only its "data" field.
func (c *Client) QuestionDetail(ctx context.Context, questionID string) (QuestionDetail, failure.ClassifiedError) {
	callerMethod := "Client.QuestionDetail"
	endpoint := urlutil.Endpoint(c.questionsBase, nil, "questions", questionID)
	result, err := c.fetcher.Fetch(ctx, fetcher.NewFetchParam(http.MethodPost, endpoint, c.headers(), nil))
	if err != nil {
		return QuestionDetail{}, err
	}

	detail := NewQuestionDetail(json.RawMessage(result.Body()))
	if detail.IsEmpty() {
		return QuestionDetail{}, c.recordAPIError(callerMethod, endpoint, &APIError{
			Message:  fmt.Sprintf("question %s returned an empty document", questionID),
			Cause:    ErrCauseEmptyPayload,
			Endpoint: endpoint,
		})
	}
	return detail, nil
}

// DecodeChapters decodes a cached or freshly fetched chapter listing.
func DecodeChapters(raw json.RawMessage) ([]Chapter, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var chapters []Chapter
	if err := json.Unmarshal(raw, &chapters); err != nil {
		return nil, &APIError{
			Message: err.Error(),
			Cause:   ErrCauseMalformedEnvelope,
			Err:     err,
		}
	}
	return chapters, nil
}

// TotalQuestions sums the question counts announced by a chapter listing.
func TotalQuestions(chapters []Chapter) int {
	total := 0
	for _, ch := range chapters {
		total += len(ch.Questions)
	}
	return total
}

func (c *Client) fetchData(
	ctx context.Context,
	callerMethod string,
	method string,
	endpoint string,
) (json.RawMessage, failure.ClassifiedError) {
	result, err := c.fetcher.Fetch(ctx, fetcher.NewFetchParam(method, endpoint, c.headers(), nil))
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if decodeErr := json.Unmarshal(result.Body(), &envelope); decodeErr != nil {
		return nil, c.recordAPIError(callerMethod, endpoint, &APIError{
			Message:  decodeErr.Error(),
			Cause:    ErrCauseMalformedEnvelope,
			Endpoint: endpoint,
			Err:      decodeErr,
		})
	}
	return envelope.Data, nil
}

func (c *Client) recordAPIError(callerMethod string, endpoint string, apiErr *APIError) *APIError {
	c.metadataSink.RecordError(
		time.Now(),
		"api",
		callerMethod,
		mapAPIErrorToMetadataCause(apiErr),
		apiErr.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, endpoint),
		},
	)
	return apiErr
}
