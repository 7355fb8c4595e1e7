package stream

import (
	"sort"
	"sync"

	"portfolio-stream/src/interfaces"
)

// ConnectionRegistry maps a session ID to its live transport. It is the only
// answer to "is this session reachable".
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]interfaces.ISessionConn
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]interfaces.ISessionConn)}
}

// -----------------------------------------------------------------------------

// Register stores conn for sessionID and returns the transport it replaced,
// if any.
func (r *ConnectionRegistry) Register(sessionID string, conn interfaces.ISessionConn) interfaces.ISessionConn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.conns[sessionID]
	r.conns[sessionID] = conn
	return prev
}

// -----------------------------------------------------------------------------

// RemoveIf deletes the entry only while it still points at conn, so a stale
// transport closing late cannot unregister its replacement.
func (r *ConnectionRegistry) RemoveIf(sessionID string, conn interfaces.ISessionConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.conns[sessionID]
	if !ok || cur.ID() != conn.ID() {
		return false
	}
	delete(r.conns, sessionID)
	return true
}

// -----------------------------------------------------------------------------

func (r *ConnectionRegistry) Get(sessionID string) (interfaces.ISessionConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[sessionID]
	return c, ok
}

// IsCurrent reports whether conn is the registered transport for sessionID.
func (r *ConnectionRegistry) IsCurrent(sessionID string, conn interfaces.ISessionConn) bool {
	c, ok := r.Get(sessionID)
	return ok && c.ID() == conn.ID()
}

func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SessionIDs returns the registered session IDs in sorted order.
func (r *ConnectionRegistry) SessionIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
