// Package realtime keeps the set of live websocket sessions and pushes
// notifications to them.
package realtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
)

type entry struct {
	session ports.Session
	admin   bool
}

// Registry maps an actor id to its single current session. It is process local.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]entry)}
}

// Register makes session the current one for actorID. A previous session is
// returned so the caller can close it outside the lock.
func (r *Registry) Register(actorID string, session ports.Session, admin bool) (ports.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.sessions[actorID]
	r.sessions[actorID] = entry{session: session, admin: admin}
	if ok && prev.session.ID() != session.ID() {
		return prev.session, true
	}
	return nil, false
}

func (r *Registry) Unregister(actorID string) {
	r.mu.Lock()
	delete(r.sessions, actorID)
	r.mu.Unlock()
}

// Release drops the entry only while connectionID is still the current session, so a
// late disconnect of a displaced session does not evict its replacement.
func (r *Registry) Release(actorID, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[actorID]
	if !ok || cur.session.ID() != connectionID {
		return false
	}
	delete(r.sessions, actorID)
	return true
}

func (r *Registry) IsOnline(actorID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, ok := r.sessions[actorID]
	if !ok {
		return "", false
	}
	return cur.session.ID(), true
}

// RoomsFor lists the rooms an online actor belongs to.
func (r *Registry) RoomsFor(actorID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, ok := r.sessions[actorID]
	if !ok {
		return nil
	}
	rooms := []string{domain.PersonalRoom(actorID)}
	if cur.admin {
		rooms = append(rooms, domain.AdminsRoom)
	}
	return rooms
}

func (r *Registry) SendToActor(actorID, event string, payload []byte) error {
	r.mu.RLock()
	cur, ok := r.sessions[actorID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("actor %s offline: %w", actorID, domain.ErrRecipientUnreachable)
	}
	if !cur.session.Send(event, payload) {
		return fmt.Errorf("actor %s send buffer full: %w", actorID, domain.ErrRecipientUnreachable)
	}
	return nil
}

// SendToRoom pushes to every online member of room and returns how many sessions
// accepted the frame.
func (r *Registry) SendToRoom(room, event string, payload []byte) int {
	targets := r.members(room)
	delivered := 0
	for _, s := range targets {
		if s.Send(event, payload) {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) members(room string) []ports.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if room == domain.AdminsRoom {
		ids := make([]string, 0, len(r.sessions))
		for id, e := range r.sessions {
			if e.admin {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		out := make([]ports.Session, 0, len(ids))
		for _, id := range ids {
			out = append(out, r.sessions[id].session)
		}
		return out
	}
	if id, ok := strings.CutPrefix(room, domain.PersonalRoom("")); ok {
		if e, ok := r.sessions[id]; ok {
			return []ports.Session{e.session}
		}
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
