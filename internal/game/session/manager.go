// Package session tracks the replication connections joined to a server world and the
// pawn and team each one controls.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
)

// Session is one joined connection.
type Session struct {
	// ConnID is the replication connection id.
	ConnID string
	// Name is the player's display name.
	Name string
	// Team is the team the player's pawn is spawned on.
	Team gametag.Tag
	// PawnID is the pawn the connection controls; empty until spawned.
	PawnID actor.ID
	// JoinedAt is when the connection joined.
	JoinedAt time.Time
}

// Manager tracks all joined sessions and team membership.
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	byConn  map[string]*Session
	teamSet map[gametag.Tag]map[string]bool // team → set of conn ids
}

// NewManager creates an empty session Manager.
func NewManager() *Manager {
	return &Manager{
		byConn:  make(map[string]*Session),
		teamSet: make(map[gametag.Tag]map[string]bool),
	}
}

// Add registers connID on team.
//
// Precondition: connID and name must be non-empty.
// Postcondition: Returns a copy of the created Session, or an error if connID is already joined.
func (m *Manager) Add(connID, name string, team gametag.Tag) (Session, error) {
	if connID == "" || name == "" {
		return Session{}, fmt.Errorf("session: conn id and name must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byConn[connID]; exists {
		return Session{}, fmt.Errorf("session: connection %q already joined", connID)
	}
	if !team.IsValid() {
		team = gametag.TeamNone
	}
	sess := &Session{ConnID: connID, Name: name, Team: team, JoinedAt: time.Now()}
	m.byConn[connID] = sess
	if m.teamSet[team] == nil {
		m.teamSet[team] = make(map[string]bool)
	}
	m.teamSet[team][connID] = true
	return *sess, nil
}

// Remove drops connID and its team membership.
//
// Postcondition: Returns the removed Session, or an error if connID is not joined.
func (m *Manager) Remove(connID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.byConn[connID]
	if !exists {
		return Session{}, fmt.Errorf("session: connection %q not found", connID)
	}
	if ts, ok := m.teamSet[sess.Team]; ok {
		delete(ts, connID)
		if len(ts) == 0 {
			delete(m.teamSet, sess.Team)
		}
	}
	delete(m.byConn, connID)
	return *sess, nil
}

// SetPawn records the pawn connID controls.
func (m *Manager) SetPawn(connID string, pawn actor.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byConn[connID]
	if !ok {
		return fmt.Errorf("session: connection %q not found", connID)
	}
	sess.PawnID = pawn
	return nil
}

// Get returns a copy of the session for connID.
func (m *Manager) Get(connID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.byConn[connID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// ByPawn returns the session controlling pawn.
func (m *Manager) ByPawn(pawn actor.ID) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sess := range m.byConn {
		if sess.PawnID == pawn && pawn.IsValid() {
			return *sess, true
		}
	}
	return Session{}, false
}

// All returns every session ordered by connection id.
func (m *Manager) All() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.byConn))
	for _, sess := range m.byConn {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out
}

// TeamMembers returns the connection ids on team, sorted.
func (m *Manager) TeamMembers(team gametag.Tag) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.teamSet[team]))
	for id := range m.teamSet[team] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SmallestTeam returns the candidate with the fewest members, preferring earlier
// candidates on ties. It returns TeamNone when no candidates are given.
func (m *Manager) SmallestTeam(candidates ...gametag.Tag) gametag.Tag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	best := gametag.TeamNone
	bestCount := -1
	for _, team := range candidates {
		n := len(m.teamSet[team])
		if bestCount < 0 || n < bestCount {
			best, bestCount = team, n
		}
	}
	return best
}

// Count returns the number of joined sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConn)
}
