package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

type outboxRepoStub struct {
	events []domain.OutboxEvent

	fetchLimits []int
	failed      []failedMark
	dead        []deadMark
	dispatched  []int64
}

type failedMark struct {
	id           int64
	attempts     int
	nextAttempt  string
	errorMessage string
}

type deadMark struct {
	id           int64
	attempts     int
	errorMessage string
}

func (r *outboxRepoStub) FetchPending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	r.fetchLimits = append(r.fetchLimits, limit)
	out := make([]domain.OutboxEvent, 0, limit)
	now := time.Now().UTC()
	for _, e := range r.events {
		if e.Status != "pending" {
			continue
		}
		if e.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepoStub) MarkDispatched(_ context.Context, id int64) error {
	r.dispatched = append(r.dispatched, id)
	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].Status = "dispatched"
			now := time.Now().UTC()
			r.events[i].DispatchedAt = &now
			return nil
		}
	}
	return errors.New("unknown outbox id")
}

func (r *outboxRepoStub) MarkFailed(_ context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error {
	r.failed = append(r.failed, failedMark{id: id, attempts: attempts, nextAttempt: nextAttemptAt, errorMessage: errMsg})
	parsed, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return err
	}
	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].Attempts = attempts
			r.events[i].NextAttemptAt = parsed
			r.events[i].LastError = errMsg
			return nil
		}
	}
	return errors.New("unknown outbox id")
}

func (r *outboxRepoStub) MarkDead(_ context.Context, id int64, attempts int, errMsg string) error {
	r.dead = append(r.dead, deadMark{id: id, attempts: attempts, errorMessage: errMsg})
	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].Status = "dead"
			r.events[i].Attempts = attempts
			r.events[i].LastError = errMsg
			return nil
		}
	}
	return errors.New("unknown outbox id")
}

type publisherStub struct {
	errByID   map[string]error
	published []domain.Delivery
	topics    []string
}

func (p *publisherStub) Publish(_ context.Context, topic string, delivery domain.Delivery) error {
	p.published = append(p.published, delivery)
	p.topics = append(p.topics, topic)
	if err, ok := p.errByID[delivery.NotificationID]; ok {
		return err
	}
	return nil
}

func deliveryPayload(t *testing.T, notificationID string) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.Delivery{
		NotificationID: notificationID,
		Event:          domain.LiveEventName,
		Rooms:          []string{domain.PersonalRoom("u1")},
		Recipients:     []string{"u1"},
	})
	if err != nil {
		t.Fatalf("marshal delivery: %v", err)
	}
	return payload
}

func TestOutboxDispatcherDispatchBatchSuccess(t *testing.T) {
	payload := deliveryPayload(t, "e1")
	repo := &outboxRepoStub{events: []domain.OutboxEvent{{
		ID:             1,
		NotificationID: "e1",
		Status:         "pending",
		NextAttemptAt:  time.Now().UTC().Add(-time.Second),
		PayloadJSON:    payload,
		Topic:          "live.order_create",
	}}}
	pub := &publisherStub{}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10, nil)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.fetchLimits) != 1 || repo.fetchLimits[0] != 10 {
		t.Fatalf("expected fetch limit 10, got %v", repo.fetchLimits)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(pub.published))
	}
	if len(repo.dispatched) != 1 || repo.dispatched[0] != 1 {
		t.Fatalf("expected id=1 marked dispatched, got %v", repo.dispatched)
	}
	if len(repo.failed) != 0 || len(repo.dead) != 0 {
		t.Fatalf("expected no failures/dead marks, got failed=%d dead=%d", len(repo.failed), len(repo.dead))
	}
}

func TestOutboxDispatcherPublishFailureMarksFailedWithRetry(t *testing.T) {
	payload := deliveryPayload(t, "e2")
	repo := &outboxRepoStub{events: []domain.OutboxEvent{{
		ID:             2,
		NotificationID: "e2",
		Status:         "pending",
		Attempts:       0,
		NextAttemptAt:  time.Now().UTC().Add(-time.Second),
		PayloadJSON:    payload,
		Topic:          "live.order_update",
	}}}
	pub := &publisherStub{errByID: map[string]error{"e2": errors.New("publisher down")}}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10, nil)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.failed) != 1 {
		t.Fatalf("expected one failed mark, got %d", len(repo.failed))
	}
	if repo.failed[0].attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", repo.failed[0].attempts)
	}
	if repo.failed[0].errorMessage != "publisher down" {
		t.Fatalf("unexpected error message: %q", repo.failed[0].errorMessage)
	}
	if len(repo.dispatched) != 0 {
		t.Fatalf("expected no dispatched marks, got %v", repo.dispatched)
	}
	if len(repo.dead) != 0 {
		t.Fatalf("expected no dead marks, got %v", repo.dead)
	}
}

func TestOutboxDispatcherRetryBudgetMovesToDead(t *testing.T) {
	payload := deliveryPayload(t, "e3")
	repo := &outboxRepoStub{events: []domain.OutboxEvent{{
		ID:             3,
		NotificationID: "e3",
		Status:         "pending",
		Attempts:       4,
		NextAttemptAt:  time.Now().UTC().Add(-time.Second),
		PayloadJSON:    payload,
		Topic:          "live.order_update",
	}}}
	pub := &publisherStub{errByID: map[string]error{"e3": errors.New("still failing")}}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10, nil)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.dead) != 1 {
		t.Fatalf("expected one dead mark, got %d", len(repo.dead))
	}
	if repo.dead[0].attempts != 5 {
		t.Fatalf("expected attempts=5, got %d", repo.dead[0].attempts)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failed marks when dead-lettered, got %d", len(repo.failed))
	}
}

func TestOutboxDispatcherRestartResumeDispatchesRemainingPending(t *testing.T) {
	payload1 := deliveryPayload(t, "e4")
	payload2 := deliveryPayload(t, "e5")
	repo := &outboxRepoStub{events: []domain.OutboxEvent{
		{ID: 4, NotificationID: "e4", Status: "pending", NextAttemptAt: time.Now().UTC().Add(-time.Second), PayloadJSON: payload1, Topic: "live.order_create"},
		{ID: 5, NotificationID: "e5", Status: "pending", NextAttemptAt: time.Now().UTC().Add(-time.Second), PayloadJSON: payload2, Topic: "live.order_update"},
	}}

	pub := &publisherStub{errByID: map[string]error{"e4": errors.New("transient")}}
	d1 := NewOutboxDispatcher(repo, pub, time.Second, 10, nil)
	if err := d1.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("first dispatch batch: %v", err)
	}
	if len(repo.dispatched) != 1 || repo.dispatched[0] != 5 {
		t.Fatalf("expected only id=5 dispatched after first run, got %v", repo.dispatched)
	}

	repo.events[0].NextAttemptAt = time.Now().UTC().Add(-time.Second)
	pub.errByID = map[string]error{}
	d2 := NewOutboxDispatcher(repo, pub, time.Second, 10, nil)
	if err := d2.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("second dispatch batch: %v", err)
	}

	if len(repo.dispatched) != 2 {
		t.Fatalf("expected two dispatched marks after resume, got %v", repo.dispatched)
	}
	if repo.dispatched[1] != 4 {
		t.Fatalf("expected resumed dispatch of id=4, got %d", repo.dispatched[1])
	}
}

func TestOutboxDispatcherKickCoalesces(t *testing.T) {
	d := NewOutboxDispatcher(&outboxRepoStub{}, &publisherStub{}, time.Hour, 10, nil)
	d.Kick()
	d.Kick()
	d.Kick()
	if got := len(d.kick); got != 1 {
		t.Fatalf("expected one pending kick, got %d", got)
	}
}

type countingOutboxRepo struct {
	outboxRepoStub
	fetches atomic.Int64
}

func (r *countingOutboxRepo) FetchPending(_ context.Context, _ int) ([]domain.OutboxEvent, error) {
	r.fetches.Add(1)
	return nil, nil
}

func TestOutboxDispatcherKickTriggersImmediateBatch(t *testing.T) {
	repo := &countingOutboxRepo{}
	d := NewOutboxDispatcher(repo, &publisherStub{}, time.Hour, 10, nil)
	d.Start(context.Background())
	defer d.Close()

	waitFor := func(n int64) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for repo.fetches.Load() < n {
			if time.Now().After(deadline) {
				t.Fatalf("expected %d fetches, got %d", n, repo.fetches.Load())
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	waitFor(1)
	d.Kick()
	waitFor(2)
}
