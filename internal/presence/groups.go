package presence

import (
	"sort"
	"sync"
)

// Groups holds named broadcast groups of connection ids.
type Groups struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
}

func NewGroups() *Groups {
	return &Groups{members: make(map[string]map[string]struct{})}
}

func (g *Groups) Join(connID, group string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.members[group]
	if !ok {
		set = make(map[string]struct{})
		g.members[group] = set
	}
	set[connID] = struct{}{}
}

func (g *Groups) Leave(connID, group string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveLocked(connID, group)
}

// LeaveAll removes connID from every group and returns the groups it left.
func (g *Groups) LeaveAll(connID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var left []string
	for group, set := range g.members {
		if _, ok := set[connID]; ok {
			left = append(left, group)
		}
	}
	for _, group := range left {
		g.leaveLocked(connID, group)
	}
	sort.Strings(left)
	return left
}

// Members returns a snapshot of the connections in group, sorted.
func (g *Groups) Members(group string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := g.members[group]
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	sort.Strings(out)
	return out
}

func (g *Groups) leaveLocked(connID, group string) {
	set, ok := g.members[group]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(g.members, group)
	}
}
