package ports

import (
	"context"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

// NotificationStore opens a single write transaction. Everything done through the
// NotificationTx commits or rolls back together.
type NotificationStore interface {
	WithinTx(ctx context.Context, fn func(tx NotificationTx) error) error
}

type NotificationTx interface {
	FindActor(id string) (domain.Actor, error)
	ListActors(role domain.Role) ([]domain.Actor, error)

	FindGrant(actorID string, resource domain.Resource) (domain.PermissionGrant, error)
	UpsertGrant(grant domain.PermissionGrant) error

	InsertPermissionRequest(req domain.PermissionRequest) error
	FindPermissionRequest(id string) (domain.PermissionRequest, error)
	// ResolvePermissionRequest updates only a pending row and returns
	// domain.ErrInvalidStateTransition when none matched.
	ResolvePermissionRequest(req domain.PermissionRequest) error

	InsertNotification(n domain.Notification) error
	EnqueueDelivery(n domain.Notification, sinks []string) error
}

type NotificationReader interface {
	ListForRecipient(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, actorID string) error
}
