package domain

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationOrderCreate        NotificationType = "order_create"
	NotificationOrderUpdate        NotificationType = "order_update"
	NotificationOrderDelete        NotificationType = "order_delete"
	NotificationPermissionRequest  NotificationType = "permission_request"
	NotificationPermissionResponse NotificationType = "permission_response"
)

func (t NotificationType) IsOrderEvent() bool {
	switch t {
	case NotificationOrderCreate, NotificationOrderUpdate, NotificationOrderDelete:
		return true
	}
	return false
}

// OrderAction is the grant action an order event requires of its actor.
func (t NotificationType) OrderAction() (Action, bool) {
	switch t {
	case NotificationOrderCreate:
		return ActionCreate, true
	case NotificationOrderUpdate:
		return ActionUpdate, true
	case NotificationOrderDelete:
		return ActionDelete, true
	}
	return "", false
}

func (t NotificationType) ReferenceKind() ReferenceKind {
	switch t {
	case NotificationPermissionRequest, NotificationPermissionResponse:
		return ReferencePermissionRequest
	default:
		return ReferenceOrder
	}
}

type ReferenceKind string

const (
	ReferenceOrder             ReferenceKind = "Order"
	ReferencePermission        ReferenceKind = "Permission"
	ReferencePermissionRequest ReferenceKind = "PermissionRequest"
)

type Recipient struct {
	ActorID string `json:"userId"`
	IsRead  bool   `json:"isRead"`
}

type Notification struct {
	ID            string
	Type          NotificationType
	Message       string
	Sender        ActorRef
	Recipients    []Recipient
	ReferenceID   string
	ReferenceKind ReferenceKind
	Status        RequestStatus
	CreatedAt     time.Time
}

// Validate enforces a non-empty recipient list with unique actor ids.
func (n Notification) Validate() error {
	if len(n.Recipients) == 0 {
		return ErrNoRecipients
	}
	seen := make(map[string]struct{}, len(n.Recipients))
	for _, r := range n.Recipients {
		if r.ActorID == "" {
			return fmt.Errorf("%w: empty recipient id", ErrValidation)
		}
		if _, ok := seen[r.ActorID]; ok {
			return fmt.Errorf("%w: duplicate recipient %s", ErrValidation, r.ActorID)
		}
		seen[r.ActorID] = struct{}{}
	}
	return nil
}

func (n Notification) RecipientIDs() []string {
	ids := make([]string, 0, len(n.Recipients))
	for _, r := range n.Recipients {
		ids = append(ids, r.ActorID)
	}
	return ids
}

// LivePayload is the stable wire shape pushed to connected sessions.
type LivePayload struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Sender    ActorRef         `json:"sender"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (n Notification) LivePayload() LivePayload {
	return LivePayload{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Sender:    n.Sender,
		CreatedAt: n.CreatedAt,
	}
}

// Event is one domain occurrence handed to the notification service.
type Event struct {
	Kind        NotificationType
	ReferenceID string
	ActorID     string
	// Recipients overrides the computed recipient set when non-empty.
	Recipients []string
	// Subject is interpolated into the message: the order number for order events,
	// the description for requests and the decision for responses.
	Subject string
}

// BuildRecipients deduplicates ids preserving first-seen order.
func BuildRecipients(ids []string) []Recipient {
	seen := make(map[string]struct{}, len(ids))
	out := make([]Recipient, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Recipient{ActorID: id})
	}
	return out
}

type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
}
