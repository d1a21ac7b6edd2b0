package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"placementd/config"
	"placementd/pkg/cluster"
	raftex "placementd/pkg/cluster/raft"
	"placementd/pkg/kv"
	"placementd/storage"
)

// Server is the admin/data HTTP surface over storage, the cluster manager,
// and its placement engine. Where the teacher spoke gRPC, this speaks
// stdlib net/http + encoding/json (see DESIGN.md: the gRPC service layer
// depended on generated stubs that were never part of the retrieved
// sources, and hand-faking proto.Message implementations to keep grpc-go
// happy would be exactly the kind of fabricated dependency this rebuild
// avoids).
type Server struct {
	config     *config.Config
	storage    storage.Storage
	httpServer *http.Server

	kv         *kv.Store
	clusterMgr *cluster.Manager
	raftNode   *raftex.Node
	submitter  *raftex.Submitter
}

// nodeProviderAdapter adapts the in-process cluster.Manager to storage.NodeProvider.
type nodeProviderAdapter struct{ m *cluster.Manager }

func (a nodeProviderAdapter) ListNodes() []storage.NodeInfo {
	nodes := a.m.GetNodes()
	out := make([]storage.NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, storage.NodeInfo{ID: n.ID, Address: n.Address})
	}
	return out
}

func (a nodeProviderAdapter) LeaderID() string {
	if ln, ok := a.m.GetLeader(); ok {
		return ln.ID
	}
	return ""
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, store storage.Storage) (*Server, error) {
	server := &Server{
		config:  cfg,
		storage: store,
		kv:      kv.New(store),
	}

	server.clusterMgr = cluster.NewManager(cluster.Config{
		NodeID:       cfg.Cluster.NodeID,
		Address:      cfg.Cluster.BindAddr,
		HeartbeatTTL: 10 * time.Second,
	}, cfg.Placement.LocationsPerBin, time.Duration(cfg.Placement.PruneInterval)*time.Second, cluster.SnapshotConfig{
		Path:  cfg.Placement.SnapshotPath,
		Every: time.Duration(cfg.Placement.SnapshotInterval) * time.Second,
	})

	if cfg.Placement.SnapshotPath != "" {
		if err := server.clusterMgr.LoadSnapshotFromFile(cfg.Placement.SnapshotPath); err != nil {
			return nil, fmt.Errorf("load placement snapshot: %w", err)
		}
	}

	if bs, ok := store.(*storage.BadgerStorage); ok {
		bs.SetNodeProvider(nodeProviderAdapter{m: server.clusterMgr})
		if cfg.Cluster.Replicas > 0 {
			bs.SetReplicationFactor(cfg.Cluster.Replicas)
		}
	}

	if cfg.Cluster.Enabled {
		rn, err := raftex.Start(raftex.Config{
			NodeID:    cfg.Cluster.NodeID,
			BindAddr:  cfg.Cluster.BindAddr,
			DataDir:   cfg.Cluster.DataDir,
			Bootstrap: cfg.Cluster.Bootstrap,
			JoinAddrs: cfg.Cluster.JoinAddresses,
		}, raftex.NewFSM(store))
		if err != nil {
			return nil, fmt.Errorf("raft start: %w", err)
		}
		server.raftNode = rn
		server.submitter = raftex.NewSubmitter(rn)
	}

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server.httpServer = &http.Server{
		Addr:         address,
		Handler:      server.routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return server, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/kv/", withRequestID(s.handleKV))
	mux.HandleFunc("/v1/kv:batch", withRequestID(s.handleKVBatch))
	mux.HandleFunc("/v1/kv:keys", withRequestID(s.handleKVKeys))
	mux.HandleFunc("/v1/placement/owners/", withRequestID(s.handleOwners))
	mux.HandleFunc("/v1/placement/nodes/", withRequestID(s.handlePlacementNode))
	mux.HandleFunc("/v1/placement/snapshot", withRequestID(s.handleSnapshot))
	mux.HandleFunc("/v1/placement/activity", withRequestID(s.handleHotBins))
	mux.HandleFunc("/v1/cluster/nodes", withRequestID(s.handleClusterNodes))
	mux.HandleFunc("/healthz", withRequestID(s.handleHealth))
	return mux
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	log.Printf("Starting placementd server on %s", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		return err
	}
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	log.Println("Stopping placementd server...")

	if s.raftNode != nil {
		if err := s.raftNode.Shutdown(); err != nil {
			log.Printf("raft shutdown: %v", err)
		}
	}
	s.clusterMgr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("force closing server: %v", err)
		return s.httpServer.Close()
	}
	log.Println("Server stopped gracefully")
	return nil
}

// Health reports whether the server's storage backend is reachable.
func (s *Server) Health() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.kv.Ping(ctx) == nil
}
