package domain

import (
	"encoding/json"
	"time"
)

const (
	LiveEventName = "notification"
	AdminsRoom    = "admins"
)

func PersonalRoom(actorID string) string {
	return "user:" + actorID
}

// Delivery is the outbox payload for one notification. Rooms are resolved at enqueue
// time so delivery does not depend on later changes to the actor set.
type Delivery struct {
	NotificationID string      `json:"notificationId"`
	Event          string      `json:"event"`
	Rooms          []string    `json:"rooms"`
	Recipients     []string    `json:"recipients"`
	Payload        LivePayload `json:"payload"`
}

func NewDelivery(n Notification) Delivery {
	recipients := n.RecipientIDs()
	var rooms []string
	if n.Type == NotificationPermissionRequest {
		rooms = []string{AdminsRoom}
	} else {
		rooms = make([]string, 0, len(recipients))
		for _, id := range recipients {
			rooms = append(rooms, PersonalRoom(id))
		}
	}
	return Delivery{
		NotificationID: n.ID,
		Event:          LiveEventName,
		Rooms:          rooms,
		Recipients:     recipients,
		Payload:        n.LivePayload(),
	}
}

const (
	OutboxPending    = "pending"
	OutboxDispatched = "dispatched"
	OutboxDead       = "dead"
)

type OutboxEvent struct {
	ID             int64
	EventID        string
	NotificationID string
	Topic          string
	PayloadJSON    json.RawMessage
	Status         string
	Attempts       int
	NextAttemptAt  time.Time
	LastError      string
	CreatedAt      time.Time
	DispatchedAt   *time.Time
}
