package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/ids"
)

const (
	SinkLive    = "live"
	SinkWebhook = "webhook"
	SinkLog     = "log"

	defaultListLimit = 50
	maxListLimit     = 500
)

// Kicker wakes the delivery loop after a commit.
type Kicker interface {
	Kick()
}

// NotificationService records a notification and its outbox deliveries in one unit
// of work. Live push happens only after commit, through the outbox dispatcher.
type NotificationService struct {
	store   ports.NotificationStore
	reader  ports.NotificationReader
	kicker  Kicker
	sinks   []string
	metrics ports.Metrics
	now     func() time.Time
}

func NewNotificationService(store ports.NotificationStore, reader ports.NotificationReader, kicker Kicker, sinks []string, metrics ports.Metrics) *NotificationService {
	if len(sinks) == 0 {
		sinks = []string{SinkLive}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &NotificationService{
		store:   store,
		reader:  reader,
		kicker:  kicker,
		sinks:   sinks,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *NotificationService) Notify(ctx context.Context, ev domain.Event) (domain.Notification, error) {
	var n domain.Notification
	err := s.store.WithinTx(ctx, func(tx ports.NotificationTx) error {
		var err error
		n, err = s.recordTx(tx, ev, domain.StatusPending)
		return err
	})
	if err != nil {
		return domain.Notification{}, err
	}
	s.committed(n)
	return n, nil
}

// recordTx validates the actor, computes recipients and writes the notification
// together with one outbox row per sink. The caller owns the transaction.
func (s *NotificationService) recordTx(tx ports.NotificationTx, ev domain.Event, status domain.RequestStatus) (domain.Notification, error) {
	actor, err := tx.FindActor(ev.ActorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Notification{}, fmt.Errorf("%w: unknown actor %q", domain.ErrPermissionDenied, ev.ActorID)
		}
		return domain.Notification{}, fmt.Errorf("load actor: %w", err)
	}
	if err := authorizeEvent(tx, actor, ev.Kind); err != nil {
		return domain.Notification{}, err
	}

	recipientIDs := ev.Recipients
	if len(recipientIDs) == 0 {
		recipientIDs, err = computeRecipients(tx, ev)
		if err != nil {
			return domain.Notification{}, err
		}
	}

	now := s.now()
	n := domain.Notification{
		ID:            ids.NewAt(now),
		Type:          ev.Kind,
		Message:       composeMessage(ev.Kind, actor, ev.Subject),
		Sender:        actor.Ref(),
		Recipients:    domain.BuildRecipients(recipientIDs),
		ReferenceID:   ev.ReferenceID,
		ReferenceKind: ev.Kind.ReferenceKind(),
		Status:        status,
		CreatedAt:     now,
	}
	if err := n.Validate(); err != nil {
		return domain.Notification{}, err
	}
	if err := tx.InsertNotification(n); err != nil {
		return domain.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	if err := tx.EnqueueDelivery(n, s.sinks); err != nil {
		return domain.Notification{}, fmt.Errorf("enqueue delivery: %w", err)
	}
	return n, nil
}

func (s *NotificationService) committed(n domain.Notification) {
	s.metrics.NotificationRecorded(n.Type)
	if s.kicker != nil {
		s.kicker.Kick()
	}
}

func (s *NotificationService) ListForRecipient(ctx context.Context, actorID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.reader.ListForRecipient(ctx, domain.NotificationFilter{RecipientID: actorID, UnreadOnly: unreadOnly, Limit: limit})
}

func (s *NotificationService) MarkRead(ctx context.Context, actorID, notificationID string) error {
	if actorID == "" || notificationID == "" {
		return fmt.Errorf("%w: actor id and notification id are required", domain.ErrValidation)
	}
	return s.reader.MarkRead(ctx, notificationID, actorID)
}

// authorizeEvent re-checks inside the unit of work that the actor may have caused kind.
func authorizeEvent(tx ports.NotificationTx, actor domain.Actor, kind domain.NotificationType) error {
	switch kind {
	case domain.NotificationOrderCreate, domain.NotificationOrderUpdate, domain.NotificationOrderDelete:
		action, _ := kind.OrderAction()
		grant, err := tx.FindGrant(actor.ID, domain.ResourceOrders)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("load grant: %w", err)
		}
		if !grant.Allows(action) {
			return fmt.Errorf("%w: %s on %s", domain.ErrPermissionDenied, action, domain.ResourceOrders)
		}
		return nil
	case domain.NotificationPermissionRequest:
		return nil
	case domain.NotificationPermissionResponse:
		if !actor.IsAdmin() {
			return fmt.Errorf("%w: only admins resolve permission requests", domain.ErrPermissionDenied)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown notification type %q", domain.ErrValidation, kind)
	}
}

func computeRecipients(tx ports.NotificationTx, ev domain.Event) ([]string, error) {
	switch ev.Kind {
	case domain.NotificationPermissionRequest:
		return actorIDs(tx.ListActors(domain.RoleAdmin))
	case domain.NotificationPermissionResponse:
		req, err := tx.FindPermissionRequest(ev.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("load permission request: %w", err)
		}
		return []string{req.Requester.ActorID}, nil
	default:
		return actorIDs(tx.ListActors(""))
	}
}

func actorIDs(actors []domain.Actor, err error) ([]string, error) {
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	out := make([]string, 0, len(actors))
	for _, a := range actors {
		out = append(out, a.ID)
	}
	return out, nil
}

func composeMessage(kind domain.NotificationType, actor domain.Actor, subject string) string {
	switch kind {
	case domain.NotificationPermissionRequest:
		return fmt.Sprintf("Permission request from %s: %s", actor.Username, subject)
	case domain.NotificationPermissionResponse:
		return fmt.Sprintf("Your permission request was %s by %s", subject, actor.Username)
	default:
		action, _ := kind.OrderAction()
		return fmt.Sprintf("User %s %sd order #%s", actor.Username, action, subject)
	}
}
