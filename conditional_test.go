package condcache

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestScanETags(t *testing.T) {
	for _, tc := range []struct {
		header   string
		tags     []string
		wildcard bool
	}{
		{`"abc"`, []string{"abc"}, false},
		{`W/"abc"`, []string{"abc"}, false},
		{`"abc", "def"`, []string{"abc", "def"}, false},
		{`W/"abc", "def"`, []string{"abc", "def"}, false},
		{`*`, nil, true},
		{`"abc", *`, []string{"abc"}, true},
		{`  "abc" ,, `, []string{"abc"}, false},
	} {
		tags, wildcard := scanETags(tc.header)
		if !reflect.DeepEqual(tags, tc.tags) || wildcard != tc.wildcard {
			t.Fatalf("scanETags(%q) = %v, %v; want %v, %v", tc.header, tags, wildcard, tc.tags, tc.wildcard)
		}
	}
}

func TestCheckIfNoneMatch(t *testing.T) {
	etag := ETagFor([]byte("body"))

	for _, tc := range []struct {
		name        string
		header      string
		present     bool
		notModified bool
	}{
		{"absent", "", false, false},
		{"match", etag, true, true},
		{"weak match", "W/" + etag, true, true},
		{"wildcard", "*", true, true},
		{"no match", `"other"`, true, false},
		{"list with match", `"other", ` + etag, true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				r.Header.Set("If-None-Match", tc.header)
			}
			present, nm := checkIfNoneMatch(r, etag)
			if present != tc.present || nm != tc.notModified {
				t.Fatalf("got present=%v notModified=%v, want %v %v", present, nm, tc.present, tc.notModified)
			}
		})
	}
}

func TestCheckIfModifiedSince(t *testing.T) {
	lastModified := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	header := lastModified.Format(http.TimeFormat)

	for _, tc := range []struct {
		name         string
		header       string
		lastModified time.Time
		present      bool
		notModified  bool
	}{
		{"absent", "", lastModified, false, false},
		{"equal", header, lastModified, true, true},
		{"modified after", header, lastModified.Add(time.Second), true, false},
		{"modified before", header, lastModified.Add(-time.Second), true, true},
		// Sub-second modifications are invisible at HTTP date resolution.
		{"sub-second truncated", header, lastModified.Add(500 * time.Millisecond), true, true},
		{"malformed date", "not a date", lastModified, false, false},
		{"zero last-modified", header, time.Time{}, false, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				r.Header.Set("If-Modified-Since", tc.header)
			}
			present, nm := checkIfModifiedSince(r, tc.lastModified)
			if present != tc.present || nm != tc.notModified {
				t.Fatalf("got present=%v notModified=%v, want %v %v", present, nm, tc.present, tc.notModified)
			}
		})
	}
}

func TestNotModifiedPrecedence(t *testing.T) {
	etag := ETagFor([]byte("body"))
	lastModified := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	// If-None-Match misses, If-Modified-Since would match: the presence of
	// If-None-Match decides, per RFC 7232 Section 6.
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("If-None-Match", `"stale"`)
	r.Header.Set("If-Modified-Since", lastModified.Format(http.TimeFormat))
	if notModified(r, etag, lastModified) {
		t.Fatal("If-Modified-Since overrode a failing If-None-Match")
	}

	// If-None-Match matches, If-Modified-Since would not.
	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("If-None-Match", etag)
	r.Header.Set("If-Modified-Since", lastModified.Add(-time.Hour).Format(http.TimeFormat))
	if !notModified(r, etag, lastModified) {
		t.Fatal("matching If-None-Match did not take precedence")
	}
}
