package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
	"github.com/rohmanhakim/pyq-crawler/pkg/limiter"
	"github.com/rohmanhakim/pyq-crawler/pkg/retry"
	"github.com/rohmanhakim/pyq-crawler/pkg/timeutil"
)

/*
Responsibilities

- Perform one logical JSON API request (GET or POST)
- Apply headers and the per-attempt timeout
- Retry rate-limited (429) responses with exponential backoff
- Classify every other failure as final

Fetch Semantics

- Only 2xx responses with a JSON body succeed
- 429 is the only retryable outcome; backoff state is per call
- Other 4xx/5xx, transport failures and invalid bodies are returned once
- All completed fetches are recorded with metadata

The fetcher never decodes payloads; it only returns bytes and metadata.
*/

type JSONFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	retryParam   retry.RetryParam
	limiter      limiter.RateLimiter
	sleeper      timeutil.Sleeper
}

type Option func(*JSONFetcher)

// WithHTTPClient replaces the default client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(f *JSONFetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithLimiter paces attempts per host.
func WithLimiter(l limiter.RateLimiter) Option {
	return func(f *JSONFetcher) {
		f.limiter = l
	}
}

// WithSleeper replaces the wall-clock sleeper used for backoff and pacing.
func WithSleeper(s timeutil.Sleeper) Option {
	return func(f *JSONFetcher) {
		if s != nil {
			f.sleeper = s
		}
	}
}

// NewJSONFetcher builds a fetcher whose attempts each time out after
// attemptTimeout.
func NewJSONFetcher(
	metadataSink metadata.MetadataSink,
	attemptTimeout time.Duration,
	retryParam retry.RetryParam,
	opts ...Option,
) *JSONFetcher {
	f := &JSONFetcher{
		metadataSink: metadataSink,
		httpClient:   &http.Client{Timeout: attemptTimeout},
		retryParam:   retryParam,
		sleeper:      timeutil.RealSleeper{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (j *JSONFetcher) Fetch(
	ctx context.Context,
	fetchParam FetchParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "JSONFetcher.Fetch"
	startTime := time.Now()

	attempts := 0
	task := func() (FetchResult, failure.ClassifiedError) {
		attempts++
		return j.performFetch(ctx, fetchParam)
	}

	outcome := retry.Retry(
		ctx,
		j.retryParam,
		task,
		retry.WithSleeper(j.sleeper),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			j.recordRateLimited(callerMethod, fetchParam, attempt, err, delay)
		}),
	)
	duration := time.Since(startTime)

	if !outcome.IsFailure() {
		result := outcome.Value()
		result.meta.attempts = attempts
		j.metadataSink.RecordFetch(
			fetchParam.fetchUrl,
			result.Code(),
			duration,
			result.Headers()["Content-Type"],
			attempts-1,
		)
		return result, nil
	}

	fetchErr := toFetchError(outcome.Err())
	j.metadataSink.RecordFetch(
		fetchParam.fetchUrl,
		fetchErr.StatusCode,
		duration,
		"",
		max(attempts-1, 0),
	)
	j.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		mapFetchErrorToMetadataCause(fetchErr),
		fetchErr.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrMethod, fetchParam.method),
			metadata.NewAttr(metadata.AttrURL, fetchParam.fetchUrl),
			metadata.NewAttr(metadata.AttrHTTPStatus, strconv.Itoa(fetchErr.StatusCode)),
		},
	)
	return FetchResult{}, fetchErr
}

func (j *JSONFetcher) recordRateLimited(callerMethod string, fetchParam FetchParam, attempt int, err error, delay time.Duration) {
	j.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		metadata.CausePolicyDisallow,
		fmt.Sprintf("rate limited, retrying after %v: %v", delay, err),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, fetchParam.fetchUrl),
			metadata.NewAttr(metadata.AttrAttempt, strconv.Itoa(attempt)),
			metadata.NewAttr(metadata.AttrDelay, delay.String()),
		},
	)
}

// toFetchError folds retry-loop outcomes into the fetcher's own error type.
func toFetchError(err error) *FetchError {
	var retryErr *retry.RetryError
	if errors.As(err, &retryErr) {
		switch retryErr.Cause {
		case retry.ErrCancelled:
			return &FetchError{Message: retryErr.Message, Cause: ErrCauseCancelled, Err: retryErr}
		case retry.ErrExhaustedAttempts:
			return &FetchError{
				Message:    retryErr.Message,
				Cause:      ErrCauseRetryExhausted,
				StatusCode: http.StatusTooManyRequests,
				Err:        retryErr,
			}
		default:
			return &FetchError{Message: retryErr.Message, Cause: ErrCauseInvalidRequest, Err: retryErr}
		}
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	return &FetchError{Message: err.Error(), Cause: ErrCauseNetworkFailure, Err: err}
}

func (j *JSONFetcher) performFetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	if j.limiter != nil {
		if host := hostOf(fetchParam.fetchUrl); host != "" {
			if err := j.limiter.Wait(ctx, host, j.sleeper); err != nil {
				return FetchResult{}, &FetchError{
					Message: fmt.Sprintf("pacing interrupted: %v", err),
					Cause:   ErrCauseCancelled,
					Err:     err,
				}
			}
		}
	}

	var body io.Reader
	if fetchParam.body != nil {
		body = bytes.NewReader(fetchParam.body)
	}
	req, err := http.NewRequestWithContext(ctx, fetchParam.method, fetchParam.fetchUrl, body)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message: fmt.Sprintf("failed to create request: %v", err),
			Cause:   ErrCauseInvalidRequest,
			Err:     err,
		}
	}
	if fetchParam.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range fetchParam.headers {
		req.Header.Set(key, value)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return FetchResult{}, &FetchError{
			Message:    "rate limited (429)",
			Retryable:  true,
			Cause:      ErrCauseRequestTooMany,
			StatusCode: resp.StatusCode,
		}

	case resp.StatusCode >= 500:
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("server error: %d", resp.StatusCode),
			Cause:      ErrCauseRequest5xx,
			StatusCode: resp.StatusCode,
		}

	case resp.StatusCode >= 400:
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("client error: %d", resp.StatusCode),
			Cause:      ErrCauseRequestRejected,
			StatusCode: resp.StatusCode,
		}

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("unexpected status: %d", resp.StatusCode),
			Cause:      ErrCauseUnexpectedStatus,
			StatusCode: resp.StatusCode,
		}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return FetchResult{}, classifyTransportError(ctx, err)
		}
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Cause:      ErrCauseReadResponseBodyError,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	if !json.Valid(payload) {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("response body is not valid JSON (%d bytes)", len(payload)),
			Cause:      ErrCauseContentInvalid,
			StatusCode: resp.StatusCode,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	return FetchResult{
		url:  fetchParam.fetchUrl,
		body: payload,
		meta: ResponseMeta{
			statusCode:          resp.StatusCode,
			transferredSizeByte: uint64(len(payload)),
			responseHeaders:     responseHeaders,
		},
	}, nil
}

func classifyTransportError(ctx context.Context, err error) *FetchError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &FetchError{
			Message: fmt.Sprintf("request aborted: %v", ctxErr),
			Cause:   ErrCauseCancelled,
			Err:     ctxErr,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{
			Message: fmt.Sprintf("request timed out: %v", err),
			Cause:   ErrCauseTimeout,
			Err:     err,
		}
	}
	return &FetchError{
		Message: fmt.Sprintf("request failed: %v", err),
		Cause:   ErrCauseNetworkFailure,
		Err:     err,
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
