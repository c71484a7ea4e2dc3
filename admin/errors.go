package admin

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/veltrio/condcache"
)

// errorBody is the structured error response shape shared with the rest of
// the application.
type errorBody struct {
	Status    int       `json:"status"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail,omitempty"`
	TraceID   string    `json:"traceId"`
	Timestamp time.Time `json:"timestamp"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	traceID := middleware.GetReqID(r.Context())
	if traceID == "" {
		traceID = newTraceID()
	}
	writeJSON(w, status, errorBody{
		Status:    status,
		Title:     title,
		Detail:    detail,
		TraceID:   traceID,
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		condcache.GetLogger().Debug("failed to encode response body", "error", err)
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close() //nolint:errcheck // best effort
	return json.NewDecoder(r.Body).Decode(dst)
}

func newTraceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b[:])
}
