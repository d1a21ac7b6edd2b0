package cluster

import (
	"crypto/sha256"
	"io"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"placementd/pkg/placement"
)

// Manager maintains in-memory cluster state, basic leader election, and the
// bin-placement engine that decides which nodes own which content.
type Manager struct {
	mu    sync.RWMutex
	cfg   Config
	nodes map[string]*Node

	placement     *placement.Engine
	pruneEvery    time.Duration
	snapshotPath  string
	snapshotEvery time.Duration
	stopBg        chan struct{}
}

// SnapshotConfig controls the manager's periodic bin-table save to disk.
// A zero value disables it.
type SnapshotConfig struct {
	Path  string
	Every time.Duration
}

// NewManager creates a manager and registers the local node. locationsPerBin
// is the placement engine's k (spec.md §2); pruneEvery controls how often
// expired tombstones are garbage-collected in the background (typically
// config.PlacementConfig.PruneInterval); snap controls the periodic
// snapshot-to-disk save (config.PlacementConfig.SnapshotPath/SnapshotInterval).
func NewManager(cfg Config, locationsPerBin int, pruneEvery time.Duration, snap SnapshotConfig) *Manager {
	m := &Manager{
		cfg:           cfg,
		nodes:         make(map[string]*Node),
		placement:     placement.NewEngine(uint32(locationsPerBin), []placement.LocationID{placement.LocationID(cfg.NodeID)}, placement.SystemClock{}),
		pruneEvery:    pruneEvery,
		snapshotPath:  snap.Path,
		snapshotEvery: snap.Every,
		stopBg:        make(chan struct{}),
	}
	// Register self
	m.nodes[cfg.NodeID] = &Node{
		ID:       cfg.NodeID,
		Address:  cfg.Address,
		Role:     RoleFollower,
		State:    "active",
		LastSeen: time.Now(),
	}
	m.updateRolesLocked()
	if pruneEvery > 0 {
		go m.runPrune()
	}
	if snap.Path != "" && snap.Every > 0 {
		go m.runSnapshotSave()
	}
	return m
}

// Close stops the manager's background loops. Safe to call once.
func (m *Manager) Close() {
	close(m.stopBg)
}

func (m *Manager) runPrune() {
	ticker := time.NewTicker(m.pruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			m.placement.Prune(time.Now().UTC())
			m.mu.Unlock()
		case <-m.stopBg:
			return
		}
	}
}

// runSnapshotSave periodically persists the bin table to snapshotPath so a
// restart can call LoadSnapshotFromFile instead of rebuilding from scratch.
func (m *Manager) runSnapshotSave() {
	ticker := time.NewTicker(m.snapshotEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.saveSnapshotToFile(); err != nil {
				log.Printf("placement snapshot save: %v", err)
			}
		case <-m.stopBg:
			return
		}
	}
}

func (m *Manager) saveSnapshotToFile() error {
	tmp := m.snapshotPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := m.WriteSnapshot(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, m.snapshotPath)
}

// LoadSnapshotFromFile loads a previously saved bin table from path, if it
// exists. A missing file is not an error — the engine just starts fresh.
func (m *Manager) LoadSnapshotFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return m.LoadSnapshot(f)
}

// Owners returns the node IDs currently responsible for key, per the
// placement engine's bin table. The bin is the first two bytes of the
// key's SHA-256 digest; placement itself is agnostic to the hash
// function used to get there (see pkg/placement's BinIndex), this is
// purely the server's choice of how to turn arbitrary keys into bin
// indices.
func (m *Manager) Owners(key string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	digest := sha256.Sum256([]byte(key))

	ids := m.placement.Lookup(digest[:2])
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// OwnersForBin is Owners for a caller that already has a bin index
// rather than a key — e.g. reporting activity per bin.
func (m *Manager) OwnersForBin(bin uint32) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.placement.LookupBin(bin)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// WriteSnapshot writes the placement engine's current bin table to w in
// the wire format from pkg/placement/codec.go.
func (m *Manager) WriteSnapshot(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return placement.EncodeSnapshot(w, m.placement.Snapshot())
}

// LoadSnapshot replaces the placement engine's bin table with one decoded
// from r, preserving the engine's current k (locationsPerBin); see
// pkg/placement's NewFromSnapshot for how a change in k since the
// snapshot was taken is handled.
func (m *Manager) LoadSnapshot(r io.Reader) error {
	snap, err := placement.DecodeSnapshot(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.placement = placement.NewFromSnapshot(m.placement.K(), snap, placement.SystemClock{})
	return nil
}

// Join registers or updates a node in the cluster and brings it into the
// placement engine's active set, unless it is already active there (e.g.
// the local node registered at construction, or a retried join).
func (m *Manager) Join(id, address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		n = &Node{ID: id}
		m.nodes[id] = n
	}
	n.Address = address
	n.State = "active"
	n.LastSeen = time.Now()
	m.updateRolesLocked()

	if !m.placement.IsActive(placement.LocationID(id)) {
		m.placement.AddLocation(placement.LocationID(id))
	}
}

// Leave marks a node as left/removed and retires it from the placement
// engine's active set, reassigning its bins to the remaining locations.
func (m *Manager) Leave(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
	m.updateRolesLocked()

	if m.placement.IsActive(placement.LocationID(id)) {
		m.placement.RemoveLocation(placement.LocationID(id))
	}
}

// Heartbeat updates a node's liveness timestamp.
func (m *Manager) Heartbeat(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[id]; ok {
		n.LastSeen = time.Now()
	}
	m.sweepLocked()
	m.updateRolesLocked()
}

// GetNodes returns a snapshot of current nodes.
func (m *Manager) GetNodes() []Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, *n)
	}
	return out
}

// GetLeader returns the current leader if any.
func (m *Manager) GetLeader() (Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	leaderID := m.leaderIDLocked()
	if leaderID == "" {
		return Node{}, false
	}
	ln := m.nodes[leaderID]
	if ln == nil {
		return Node{}, false
	}
	return *ln, true
}

// sweepLocked removes nodes that missed heartbeats, retiring them from the
// placement engine the same way an explicit Leave would.
func (m *Manager) sweepLocked() {
	ttl := m.cfg.HeartbeatTTL
	if ttl <= 0 {
		return
	}
	deadline := time.Now().Add(-ttl)
	for id, n := range m.nodes {
		if n.LastSeen.Before(deadline) {
			delete(m.nodes, id)
			if m.placement.IsActive(placement.LocationID(id)) {
				m.placement.RemoveLocation(placement.LocationID(id))
			}
		}
	}
}

// updateRolesLocked elects the smallest ID as leader and sets roles.
func (m *Manager) updateRolesLocked() {
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)
	leader := ids[0]
	for id, n := range m.nodes {
		if id == leader {
			n.Role = RoleLeader
		} else {
			n.Role = RoleFollower
		}
	}
}

func (m *Manager) leaderIDLocked() string {
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[0]
}
