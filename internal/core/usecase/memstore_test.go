package usecase

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
)

type memState struct {
	actors        map[string]domain.Actor
	grants        map[string]domain.PermissionGrant
	requests      map[string]domain.PermissionRequest
	notifications []domain.Notification
	deliveries    []string
}

func (s memState) clone() memState {
	return memState{
		actors:        maps.Clone(s.actors),
		grants:        maps.Clone(s.grants),
		requests:      maps.Clone(s.requests),
		notifications: slices.Clone(s.notifications),
		deliveries:    slices.Clone(s.deliveries),
	}
}

// memStore is a transactional in-memory store: a unit of work runs on a copy that
// replaces the committed state only when fn succeeds.
type memStore struct {
	mu    sync.Mutex
	state memState

	failInsertNotification error
	failEnqueue            error
}

func newMemStore(actors ...domain.Actor) *memStore {
	s := &memStore{state: memState{
		actors:   map[string]domain.Actor{},
		grants:   map[string]domain.PermissionGrant{},
		requests: map[string]domain.PermissionRequest{},
	}}
	for _, a := range actors {
		s.state.actors[a.ID] = a
	}
	return s
}

func grantKey(actorID string, resource domain.Resource) string {
	return actorID + "/" + string(resource)
}

func (s *memStore) WithinTx(_ context.Context, fn func(tx ports.NotificationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := &memTx{store: s, state: s.state.clone()}
	if err := fn(work); err != nil {
		return err
	}
	s.state = work.state
	return nil
}

func (s *memStore) snapshot() memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *memStore) setGrant(actorID string, resource domain.Resource, actions ...domain.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.grants[grantKey(actorID, resource)] = domain.PermissionGrant{ActorID: actorID, Resource: resource, Actions: actions}
}

type memTx struct {
	store *memStore
	state memState
}

func (t *memTx) FindActor(id string) (domain.Actor, error) {
	a, ok := t.state.actors[id]
	if !ok {
		return domain.Actor{}, domain.ErrNotFound
	}
	return a, nil
}

func (t *memTx) ListActors(role domain.Role) ([]domain.Actor, error) {
	var out []domain.Actor
	for _, a := range t.state.actors {
		if role == "" || a.Role == role {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) FindGrant(actorID string, resource domain.Resource) (domain.PermissionGrant, error) {
	g, ok := t.state.grants[grantKey(actorID, resource)]
	if !ok {
		return domain.PermissionGrant{}, domain.ErrNotFound
	}
	return g, nil
}

func (t *memTx) UpsertGrant(grant domain.PermissionGrant) error {
	if len(grant.Actions) == 0 {
		delete(t.state.grants, grantKey(grant.ActorID, grant.Resource))
		return nil
	}
	t.state.grants[grantKey(grant.ActorID, grant.Resource)] = grant
	return nil
}

func (t *memTx) InsertPermissionRequest(req domain.PermissionRequest) error {
	t.state.requests[req.ID] = req
	return nil
}

func (t *memTx) FindPermissionRequest(id string) (domain.PermissionRequest, error) {
	req, ok := t.state.requests[id]
	if !ok {
		return domain.PermissionRequest{}, domain.ErrNotFound
	}
	return req, nil
}

func (t *memTx) ResolvePermissionRequest(req domain.PermissionRequest) error {
	current, ok := t.state.requests[req.ID]
	if !ok || current.Status != domain.StatusPending {
		return domain.ErrInvalidStateTransition
	}
	t.state.requests[req.ID] = req
	return nil
}

func (t *memTx) InsertNotification(n domain.Notification) error {
	if t.store.failInsertNotification != nil {
		return t.store.failInsertNotification
	}
	t.state.notifications = append(t.state.notifications, n)
	return nil
}

func (t *memTx) EnqueueDelivery(n domain.Notification, sinks []string) error {
	if t.store.failEnqueue != nil {
		return t.store.failEnqueue
	}
	for _, sink := range sinks {
		t.state.deliveries = append(t.state.deliveries, sink+"."+string(n.Type)+":"+n.ID)
	}
	return nil
}

// Read-side ports over the committed state.

func (s *memStore) Get(_ context.Context, actorID string, resource domain.Resource) (domain.PermissionGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.state.grants[grantKey(actorID, resource)]
	if !ok {
		return domain.PermissionGrant{}, domain.ErrNotFound
	}
	return g, nil
}

func (s *memStore) ListForActor(_ context.Context, actorID string) ([]domain.PermissionGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PermissionGrant
	for k, g := range s.state.grants {
		if strings.HasPrefix(k, actorID+"/") {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *memStore) Upsert(_ context.Context, grant domain.PermissionGrant) error {
	return s.WithinTx(context.Background(), func(tx ports.NotificationTx) error {
		return tx.UpsertGrant(grant)
	})
}

type memActors struct{ store *memStore }

func (a memActors) Get(_ context.Context, id string) (domain.Actor, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	actor, ok := a.store.state.actors[id]
	if !ok {
		return domain.Actor{}, domain.ErrNotFound
	}
	return actor, nil
}

func (a memActors) Upsert(_ context.Context, actor domain.Actor) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	a.store.state.actors[actor.ID] = actor
	return nil
}

func (a memActors) List(_ context.Context) ([]domain.Actor, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	out := slices.Collect(maps.Values(a.store.state.actors))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memRequests struct{ store *memStore }

func (r memRequests) Get(_ context.Context, id string) (domain.PermissionRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.state.requests[id]
	if !ok {
		return domain.PermissionRequest{}, domain.ErrNotFound
	}
	return req, nil
}

func (r memRequests) ListPending(_ context.Context, limit int) ([]domain.PermissionRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.PermissionRequest
	for _, req := range r.store.state.requests {
		if req.Status == domain.StatusPending {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memReader struct{ store *memStore }

func (r memReader) ListForRecipient(_ context.Context, filter domain.NotificationFilter) ([]domain.Notification, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.Notification
	for i := len(r.store.state.notifications) - 1; i >= 0; i-- {
		n := r.store.state.notifications[i]
		for _, rc := range n.Recipients {
			if rc.ActorID == filter.RecipientID && (!filter.UnreadOnly || !rc.IsRead) {
				out = append(out, n)
				break
			}
		}
		if len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (r memReader) MarkRead(_ context.Context, notificationID, actorID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, n := range r.store.state.notifications {
		if n.ID != notificationID {
			continue
		}
		for j, rc := range n.Recipients {
			if rc.ActorID == actorID {
				recipients := slices.Clone(n.Recipients)
				recipients[j].IsRead = true
				r.store.state.notifications[i].Recipients = recipients
				return nil
			}
		}
	}
	return fmt.Errorf("notification %s for %s: %w", notificationID, actorID, domain.ErrNotFound)
}

type kickCounter struct {
	mu    sync.Mutex
	kicks int
}

func (k *kickCounter) Kick() {
	k.mu.Lock()
	k.kicks++
	k.mu.Unlock()
}

func (k *kickCounter) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.kicks
}

var (
	adminA = domain.Actor{ID: "admin-a", Username: "alice", Role: domain.RoleAdmin}
	adminB = domain.Actor{ID: "admin-b", Username: "bob", Role: domain.RoleAdmin}
	userU  = domain.Actor{ID: "user-u", Username: "uma", Role: domain.RoleUser}
	userV  = domain.Actor{ID: "user-v", Username: "vik", Role: domain.RoleUser}
)

type fixture struct {
	store    *memStore
	kicks    *kickCounter
	notifier *NotificationService
	perms    *PermissionService
	grants   *GrantService
}

func newFixture(actors ...domain.Actor) *fixture {
	store := newMemStore(actors...)
	kicks := &kickCounter{}
	notifier := NewNotificationService(store, memReader{store}, kicks, []string{SinkLive, SinkLog}, nil)
	perms := NewPermissionService(store, memRequests{store}, memActors{store}, store, notifier, nil)
	return &fixture{
		store:    store,
		kicks:    kicks,
		notifier: notifier,
		perms:    perms,
		grants:   NewGrantService(store, memActors{store}),
	}
}
