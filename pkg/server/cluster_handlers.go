package server

import (
	"net/http"

	"placementd/pkg/cluster"
)

type clusterNode struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	IsLeader bool   `json:"is_leader"`
	State    string `json:"state"`
	LastSeen int64  `json:"last_seen"`
}

// handleClusterNodes serves GET /v1/cluster/nodes.
func (s *Server) handleClusterNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	nodes := s.clusterMgr.GetNodes()
	out := make([]clusterNode, len(nodes))
	for i, n := range nodes {
		out[i] = clusterNode{
			ID:       n.ID,
			Address:  n.Address,
			IsLeader: n.Role == cluster.RoleLeader,
			State:    n.State,
			LastSeen: n.LastSeen.Unix(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHealth serves GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.Health() {
		writeError(w, http.StatusServiceUnavailable, "unhealthy")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
