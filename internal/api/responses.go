package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/allaspectsdev/frkbsync/internal/syncerr"
)

// performance carries the same {durationMs} shape the spec's response
// envelope names on every successful call.
type performance struct {
	DurationMs int64 `json:"durationMs"`
}

// envelope is a handler's own response fields as a map; writeSuccess adds
// the fixed success/timestamp/performance keys to it.
type envelope map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeSuccess writes a 200 response merging fields into the standard
// {success, ..., performance, timestamp} envelope.
func writeSuccess(w http.ResponseWriter, started time.Time, fields envelope) {
	fields["success"] = true
	fields["performance"] = performance{DurationMs: time.Since(started).Milliseconds()}
	fields["timestamp"] = time.Now().UTC()
	writeJSON(w, http.StatusOK, fields)
}

// writeError maps err to its HTTP status and {error, message, details?,
// timestamp} wire shape, falling back to INTERNAL_ERROR/500 for any error
// that isn't a *syncerr.Error (the propagation policy in §7).
func writeError(w http.ResponseWriter, err error) {
	se, ok := syncerr.As(err)
	if !ok {
		se = syncerr.Wrap(err, "unexpected internal error")
	}
	writeJSON(w, se.HTTPStatus(), se)
}

func writeAuthError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnauthorized, envelope{
		"error":     "UNAUTHORIZED",
		"message":   err.Error(),
		"timestamp": time.Now().UTC(),
	})
}
