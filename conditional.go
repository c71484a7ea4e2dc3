package condcache

import (
	"net/http"
	"strings"
	"time"
)

// scanETags splits an If-None-Match header value into its listed entity
// tags, stripping any weak-validator prefix and surrounding quotes.
// wildcard reports whether the list contains "*".
func scanETags(headerValue string) (tags []string, wildcard bool) {
	for _, raw := range strings.Split(headerValue, ",") {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		if tag == "*" {
			wildcard = true
			continue
		}
		tag = strings.TrimPrefix(tag, "W/")
		tag = strings.Trim(tag, `"`)
		tags = append(tags, tag)
	}
	return tags, wildcard
}

// etagsMatch compares a request-supplied tag against the freshly computed
// one. Comparison happens on the unquoted opaque value: clients echo the
// quoted tag, but proxies occasionally strip or re-add quotes in transit.
func etagsMatch(candidate, current string) bool {
	return candidate == strings.Trim(current, `"`)
}

// checkIfNoneMatch evaluates the request's If-None-Match header against the
// computed ETag. It returns whether the header was present and, if so,
// whether the condition selects a 304.
func checkIfNoneMatch(r *http.Request, etag string) (present, notModified bool) {
	values := r.Header.Values("If-None-Match")
	if len(values) == 0 {
		return false, false
	}
	for _, value := range values {
		tags, wildcard := scanETags(value)
		if wildcard {
			return true, true
		}
		for _, tag := range tags {
			if etagsMatch(tag, etag) {
				return true, true
			}
		}
	}
	return true, false
}

// checkIfModifiedSince evaluates the request's If-Modified-Since header
// against the resource's last modification time. Both sides are truncated
// to whole seconds in UTC before comparison, matching the resolution of
// HTTP dates. A malformed date is treated as an absent header.
func checkIfModifiedSince(r *http.Request, lastModified time.Time) (present, notModified bool) {
	headerValue := r.Header.Get("If-Modified-Since")
	if headerValue == "" || lastModified.IsZero() {
		return false, false
	}
	since, err := http.ParseTime(headerValue)
	if err != nil {
		return false, false
	}
	lm := lastModified.UTC().Truncate(time.Second)
	return true, !lm.After(since.UTC().Truncate(time.Second))
}

// notModified decides whether the current response can be answered with
// 304 Not Modified. If-None-Match, when present, takes precedence over
// If-Modified-Since per RFC 7232 Section 6.
func notModified(r *http.Request, etag string, lastModified time.Time) bool {
	if present, nm := checkIfNoneMatch(r, etag); present {
		return nm
	}
	_, nm := checkIfModifiedSince(r, lastModified)
	return nm
}
