package condcache

import (
	"bytes"
	"net/http"
)

// recorder is an http.ResponseWriter that captures the downstream handler's
// status, headers and body without touching the real output stream. The
// middleware decides afterwards whether to replay the capture verbatim,
// replace it with a 304, or store it.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header), status: http.StatusOK}
}

func (r *recorder) Header() http.Header {
	return r.header
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
}

func (r *recorder) Write(p []byte) (int, error) {
	return r.body.Write(p)
}

// replay copies the captured response to w unchanged. Used for non-200
// responses, which bypass conditional evaluation and never receive cache
// headers.
func (r *recorder) replay(w http.ResponseWriter) error {
	copyHeader(w.Header(), r.header)
	w.WriteHeader(r.status)
	_, err := w.Write(r.body.Bytes())
	return err
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		dst[key] = append([]string(nil), values...)
	}
}

// statusWriter passes the response through untouched while remembering the
// status code for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
