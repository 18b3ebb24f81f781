package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Canonicalize maps equivalent spellings of an API base URL to one form:
//   - Scheme and host are lowercased
//   - Default ports are omitted (:80 for http, :443 for https)
//   - Trailing slashes are removed from the path, except for root "/"
//   - Query and fragment are removed
//
// It is pure and idempotent.
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl

	canonical.Scheme = strings.ToLower(canonical.Scheme)
	canonical.Host = strings.ToLower(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	if len(canonical.Path) > 1 {
		canonical.Path = strings.TrimRight(canonical.Path, "/")
		if canonical.Path == "" {
			canonical.Path = "/"
		}
	}
	canonical.RawPath = ""

	canonical.Fragment = ""
	canonical.RawFragment = ""
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// ParseBase parses and canonicalizes an absolute http(s) base URL.
func ParseBase(raw string) (url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return url.URL{}, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return url.URL{}, fmt.Errorf("base url %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return url.URL{}, fmt.Errorf("base url %q has no host", raw)
	}
	return Canonicalize(*parsed), nil
}

// Endpoint appends path-escaped segments to base and attaches query.
// A nil query produces a URL without a query string.
func Endpoint(base url.URL, query url.Values, segments ...string) string {
	endpoint := base
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}

	basePath := strings.TrimRight(endpoint.Path, "/")
	endpoint.Path = ""
	endpoint.RawPath = ""
	raw := endpoint.String() + basePath
	if len(escaped) > 0 {
		raw += "/" + strings.Join(escaped, "/")
	}
	if len(query) > 0 {
		raw += "?" + query.Encode()
	}
	return raw
}
