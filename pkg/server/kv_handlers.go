package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	raftex "placementd/pkg/cluster/raft"
)

type kvPutRequest struct {
	Value     string `json:"value"`
	TTLSecond int    `json:"ttl_seconds"`
}

type kvGetResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// kvOpSuffixes are the per-key sub-operations routed off the same
// /v1/kv/ prefix as the plain get/set/delete (incr/decr/ttl/expire all
// need a key in the path, which the "/v1/kv:batch"-style flat routes
// can't express).
var kvOpSuffixes = map[string]bool{"incr": true, "decr": true, "ttl": true, "expire": true}

// splitKVOp recognizes a trailing "/incr", "/decr", "/ttl" or "/expire"
// segment on a /v1/kv/ path and splits it from the key it applies to.
func splitKVOp(rest string) (key, op string, ok bool) {
	idx := strings.LastIndex(rest, "/")
	if idx < 0 {
		return "", "", false
	}
	suffix := rest[idx+1:]
	if !kvOpSuffixes[suffix] {
		return "", "", false
	}
	return rest[:idx], suffix, true
}

// handleKV dispatches /v1/kv/{key}: GET reads locally, HEAD checks
// existence, PUT and DELETE replicate through raft when clustering is
// enabled. A trailing /incr, /decr, /ttl or /expire segment is routed to
// handleKVOp instead.
func (s *Server) handleKV(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/kv/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "key cannot be empty")
		return
	}
	if key, op, ok := splitKVOp(rest); ok {
		s.handleKVOp(w, r, key, op)
		return
	}
	key := rest

	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		value, found, err := s.kv.Get(ctx, key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "key not found")
			return
		}
		writeJSON(w, http.StatusOK, kvGetResponse{Key: key, Value: string(value)})

	case http.MethodHead:
		exists, err := s.kv.Exists(ctx, key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		var req kvPutRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if !s.isLocalWriteAllowed() {
			writeNotLeader(w, s.leaderID())
			return
		}
		if s.submitter != nil {
			cmd, err := kvSetCommand(key, req.Value, req.TTLSecond)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if err := s.submitter.Submit(ctx, cmd, 0); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		} else {
			var ttl time.Duration
			if req.TTLSecond > 0 {
				ttl = time.Duration(req.TTLSecond) * time.Second
			}
			if err := s.kv.SetTTL(ctx, key, []byte(req.Value), ttl); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusNoContent, nil)

	case http.MethodDelete:
		if !s.isLocalWriteAllowed() {
			writeNotLeader(w, s.leaderID())
			return
		}
		if s.submitter != nil {
			cmd, err := kvDeleteCommand(key)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if err := s.submitter.Submit(ctx, cmd, 0); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusNoContent, nil)
			return
		}
		n, err := s.kv.Del(ctx, key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if n == 0 {
			writeError(w, http.StatusNotFound, "key not found")
			return
		}
		writeJSON(w, http.StatusNoContent, nil)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// isLocalWriteAllowed reports whether this node may accept a KV write:
// always true when clustering is off, leader-only when it's on.
func (s *Server) isLocalWriteAllowed() bool {
	if s.submitter == nil {
		return true
	}
	return s.submitter.IsLeader()
}

func (s *Server) leaderID() string {
	if s.submitter == nil {
		return ""
	}
	return s.submitter.LeaderID()
}

func writeNotLeader(w http.ResponseWriter, leaderID string) {
	msg := "member is not the owner: cluster has no elected leader"
	if leaderID != "" {
		msg = "member is not the owner: leader is " + leaderID
	}
	writeError(w, http.StatusServiceUnavailable, msg)
}

func kvSetCommand(key, value string, ttlSeconds int) (raftex.Command, error) {
	payload, err := json.Marshal(struct {
		Key        string `json:"k"`
		Value      []byte `json:"v"`
		TTLSeconds int64  `json:"ttl"`
	}{Key: key, Value: []byte(value), TTLSeconds: int64(ttlSeconds)})
	if err != nil {
		return raftex.Command{}, err
	}
	return raftex.Command{Version: 1, Type: raftex.CmdKVSet, Payload: payload}, nil
}

func kvDeleteCommand(key string) (raftex.Command, error) {
	payload, err := json.Marshal(struct {
		Keys []string `json:"ks"`
	}{Keys: []string{key}})
	if err != nil {
		return raftex.Command{}, err
	}
	return raftex.Command{Version: 1, Type: raftex.CmdKVDelete, Payload: payload}, nil
}

type kvDeltaRequest struct {
	Delta int64 `json:"delta"`
}

type kvCounterResponse struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

type kvTTLResponse struct {
	Key        string `json:"key"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type kvExpireRequest struct {
	TTLSeconds int `json:"ttl_seconds"`
}

// handleKVOp serves the counter and expiry sub-operations. These are
// single-node, non-replicated reads/writes on purpose — incr/decr/ttl/
// expire are bookkeeping around a value already owned by this node's
// copy of the key, not a new piece of the replicated write path.
func (s *Server) handleKVOp(w http.ResponseWriter, r *http.Request, key, op string) {
	ctx := r.Context()
	switch op {
	case "incr", "decr":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		req := kvDeltaRequest{Delta: 1}
		if body, err := io.ReadAll(r.Body); err == nil && len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		var (
			value int64
			err   error
		)
		if op == "incr" {
			value, err = s.kv.IncrBy(ctx, key, req.Delta)
		} else {
			value, err = s.kv.DecrBy(ctx, key, req.Delta)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, kvCounterResponse{Key: key, Value: value})

	case "ttl":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		ttl, err := s.kv.TTL(ctx, key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, kvTTLResponse{Key: key, TTLSeconds: int64(ttl / time.Second)})

	case "expire":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		var req kvExpireRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.kv.Expire(ctx, key, time.Duration(req.TTLSeconds)*time.Second); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	}
}
