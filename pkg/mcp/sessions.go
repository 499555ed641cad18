package mcp

import (
	"sort"
	"sync"
)

// WatchRegistry maps definition IDs to the MCP sessions watching them.
// Populated when a client calls designer.load with watch set.
type WatchRegistry struct {
	mu       sync.RWMutex
	watchers map[string]map[string]struct{} // definitionID → sessionIDs
}

// NewWatchRegistry creates a new empty WatchRegistry.
func NewWatchRegistry() *WatchRegistry {
	return &WatchRegistry{watchers: make(map[string]map[string]struct{})}
}

// Watch subscribes a session to a definition. Watching twice is a no-op.
func (r *WatchRegistry) Watch(definitionID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.watchers[definitionID]
	if !ok {
		set = make(map[string]struct{})
		r.watchers[definitionID] = set
	}
	set[sessionID] = struct{}{}
}

// Watchers returns the sessions watching a definition, sorted.
func (r *WatchRegistry) Watchers(definitionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.watchers[definitionID]))
	for sid := range r.watchers[definitionID] {
		out = append(out, sid)
	}
	sort.Strings(out)
	return out
}

// Remove deletes every watch held by the given session.
// Called when a session disconnects.
func (r *WatchRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for defID, set := range r.watchers {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.watchers, defID)
		}
	}
}
