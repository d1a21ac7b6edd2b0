package server

import (
	"net/http"
	"strconv"
	"strings"
)

type ownersResponse struct {
	Key    string   `json:"key"`
	Owners []string `json:"owners"`
}

// handleOwners serves GET /v1/placement/owners/{key}: the node IDs
// currently holding the bin key hashes into.
func (s *Server) handleOwners(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/v1/placement/owners/")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key cannot be empty")
		return
	}
	writeJSON(w, http.StatusOK, ownersResponse{Key: key, Owners: s.clusterMgr.Owners(key)})
}

// handlePlacementNode serves POST /v1/placement/nodes/{id} (join) and
// DELETE /v1/placement/nodes/{id} (leave). The node's advertise address,
// for POST, comes from the "address" query parameter.
func (s *Server) handlePlacementNode(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/placement/nodes/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "node id cannot be empty")
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.clusterMgr.Join(id, r.URL.Query().Get("address"))
		writeJSON(w, http.StatusNoContent, nil)
	case http.MethodDelete:
		s.clusterMgr.Leave(id)
		writeJSON(w, http.StatusNoContent, nil)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSnapshot serves GET /v1/placement/snapshot (dump the wire-format
// bin table) and POST (load one, replacing the current table). See
// pkg/placement's codec.go for the format.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.clusterMgr.WriteSnapshot(w)
	case http.MethodPost:
		if err := s.clusterMgr.LoadSnapshot(r.Body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type hotBinsResponse struct {
	Bins []hotBin `json:"bins"`
}

type hotBin struct {
	Bin    uint32   `json:"bin"`
	Hits   uint64   `json:"hits"`
	Owners []string `json:"owners"`
}

// handleHotBins serves GET /v1/placement/activity?limit=N: the bins this
// node's storage has touched most, paired with their current owners per
// cluster.Manager.OwnersForBin — a live check that placement's busiest bins
// and storage's busiest keys agree.
func (s *Server) handleHotBins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	heat := s.storage.HotBins(limit)
	out := make([]hotBin, len(heat))
	for i, h := range heat {
		out[i] = hotBin{Bin: h.Bin, Hits: h.Hits, Owners: s.clusterMgr.OwnersForBin(h.Bin)}
	}
	writeJSON(w, http.StatusOK, hotBinsResponse{Bins: out})
}
