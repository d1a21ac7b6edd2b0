package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

type kvBatchRequest struct {
	Op     string            `json:"op"`
	Keys   []string          `json:"keys,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

type kvBatchResponse struct {
	Values map[string]string `json:"values,omitempty"`
}

// handleKVBatch serves /v1/kv:batch, a single POST endpoint covering
// pkg/kv.Store's MSet/MGet — a colon-suffixed literal path rather than a
// key under /v1/kv/ so it never collides with an actual key named "batch".
func (s *Server) handleKVBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	var req kvBatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	switch req.Op {
	case "mset":
		pairs := make(map[string][]byte, len(req.Values))
		for k, v := range req.Values {
			pairs[k] = []byte(v)
		}
		if err := s.kv.MSet(ctx, pairs); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusNoContent, nil)

	case "mget":
		found, err := s.kv.MGet(ctx, req.Keys)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		values := make(map[string]string, len(found))
		for k, v := range found {
			values[k] = string(v)
		}
		writeJSON(w, http.StatusOK, kvBatchResponse{Values: values})

	default:
		writeError(w, http.StatusBadRequest, "op must be mset or mget")
	}
}

type kvKeysResponse struct {
	Keys []string `json:"keys"`
}

type kvDelPatternResponse struct {
	Deleted int `json:"deleted"`
}

// handleKVKeys serves /v1/kv:keys?pattern=&limit=: GET lists matching
// keys (pkg/kv.Store.Keys), DELETE removes them (pkg/kv.Store.DelPattern).
func (s *Server) handleKVKeys(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		writeError(w, http.StatusBadRequest, "pattern is required")
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		keys, err := s.kv.Keys(ctx, pattern, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, kvKeysResponse{Keys: keys})

	case http.MethodDelete:
		if !s.isLocalWriteAllowed() {
			writeNotLeader(w, s.leaderID())
			return
		}
		n, err := s.kv.DelPattern(ctx, pattern, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, kvDelPatternResponse{Deleted: n})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
