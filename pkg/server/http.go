package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader is set on every response so a caller can correlate a
// request with server-side logs.
const requestIDHeader = "X-Request-Id"

// withRequestID stamps every response with a fresh request ID before
// delegating to next. google/uuid was declared in the teacher's go.mod
// but never imported by any retrieved file; this is where it earns its
// place.
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(requestIDHeader, uuid.NewString())
		next(w, r)
	}
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Error: message})
}
