package fetcher

import (
	"net/http"
)

// HTTP boundary

type FetchParam struct {
	method   string
	fetchUrl string
	headers  map[string]string
	body     []byte
}

// NewFetchParam describes one logical request. An empty method means GET.
// The body is sent as-is on every attempt.
func NewFetchParam(method string, fetchUrl string, headers map[string]string, body []byte) FetchParam {
	if method == "" {
		method = http.MethodGet
	}
	return FetchParam{
		method:   method,
		fetchUrl: fetchUrl,
		headers:  headers,
		body:     body,
	}
}

func (f FetchParam) Method() string {
	return f.method
}

func (f FetchParam) URL() string {
	return f.fetchUrl
}

func (f FetchParam) Headers() map[string]string {
	return f.headers
}

func (f FetchParam) Body() []byte {
	return f.body
}

type FetchResult struct {
	url  string
	body []byte
	meta ResponseMeta
}

func (f *FetchResult) URL() string {
	return f.url
}

func (f *FetchResult) Body() []byte {
	return f.body
}

func (f *FetchResult) Code() int {
	return f.meta.statusCode
}

func (f *FetchResult) SizeByte() uint64 {
	return f.meta.transferredSizeByte
}

func (f *FetchResult) Headers() map[string]string {
	return f.meta.responseHeaders
}

// Attempts is the number of HTTP attempts the result took, 1 without retries.
func (f *FetchResult) Attempts() int {
	return f.meta.attempts
}

type ResponseMeta struct {
	statusCode          int
	transferredSizeByte uint64
	responseHeaders     map[string]string
	attempts            int
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	url string,
	body []byte,
	statusCode int,
	responseHeaders map[string]string,
) FetchResult {
	return FetchResult{
		url:  url,
		body: body,
		meta: ResponseMeta{
			statusCode:          statusCode,
			transferredSizeByte: uint64(len(body)),
			responseHeaders:     responseHeaders,
			attempts:            1,
		},
	}
}
