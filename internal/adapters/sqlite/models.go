package sqlite

import (
	"encoding/json"
	"time"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

type actorModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Username  string    `gorm:"column:username;not null"`
	Role      string    `gorm:"column:role;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (actorModel) TableName() string {
	return "actors"
}

func (m actorModel) toDomain() domain.Actor {
	return domain.Actor{ID: m.ID, Username: m.Username, Role: domain.Role(m.Role)}
}

type grantModel struct {
	ActorID   string    `gorm:"column:actor_id;primaryKey"`
	Resource  string    `gorm:"column:resource;primaryKey"`
	Actions   string    `gorm:"column:actions;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (grantModel) TableName() string {
	return "permission_grants"
}

func (m grantModel) toDomain() domain.PermissionGrant {
	return domain.PermissionGrant{
		ActorID:  m.ActorID,
		Resource: domain.Resource(m.Resource),
		Actions:  domain.DecodeActions(m.Actions),
	}
}

type permissionRequestModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	RequesterID     string     `gorm:"column:requester_id;not null"`
	RequesterName   string     `gorm:"column:requester_name;not null"`
	Resource        string     `gorm:"column:resource;not null"`
	Action          string     `gorm:"column:action;not null"`
	Description     string     `gorm:"column:description;not null"`
	Status          string     `gorm:"column:status;not null"`
	RespondedByID   *string    `gorm:"column:responded_by_id"`
	RespondedByName *string    `gorm:"column:responded_by_name"`
	RespondedAt     *time.Time `gorm:"column:responded_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null"`
}

func (permissionRequestModel) TableName() string {
	return "permission_requests"
}

func permissionRequestToModel(req domain.PermissionRequest) permissionRequestModel {
	m := permissionRequestModel{
		ID:            req.ID,
		RequesterID:   req.Requester.ActorID,
		RequesterName: req.Requester.DisplayName,
		Resource:      string(req.Resource),
		Action:        string(req.Action),
		Description:   req.Description,
		Status:        string(req.Status),
		RespondedAt:   req.RespondedAt,
		CreatedAt:     req.CreatedAt.UTC(),
	}
	if req.RespondedBy != nil {
		id, name := req.RespondedBy.ActorID, req.RespondedBy.DisplayName
		m.RespondedByID = &id
		m.RespondedByName = &name
	}
	return m
}

func (m permissionRequestModel) toDomain() domain.PermissionRequest {
	req := domain.PermissionRequest{
		ID:          m.ID,
		Requester:   domain.ActorRef{ActorID: m.RequesterID, DisplayName: m.RequesterName},
		Resource:    domain.Resource(m.Resource),
		Action:      domain.Action(m.Action),
		Description: m.Description,
		Status:      domain.RequestStatus(m.Status),
		RespondedAt: m.RespondedAt,
		CreatedAt:   m.CreatedAt,
	}
	if m.RespondedByID != nil {
		ref := domain.ActorRef{ActorID: *m.RespondedByID}
		if m.RespondedByName != nil {
			ref.DisplayName = *m.RespondedByName
		}
		req.RespondedBy = &ref
	}
	return req
}

type notificationModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	Type          string    `gorm:"column:type;not null"`
	Message       string    `gorm:"column:message;not null"`
	SenderID      string    `gorm:"column:sender_id;not null"`
	SenderName    string    `gorm:"column:sender_name;not null"`
	ReferenceID   string    `gorm:"column:reference_id;not null"`
	ReferenceKind string    `gorm:"column:reference_kind;not null"`
	Status        string    `gorm:"column:status;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

func (notificationModel) TableName() string {
	return "notifications"
}

type notificationRecipientModel struct {
	NotificationID string `gorm:"column:notification_id;primaryKey"`
	ActorID        string `gorm:"column:actor_id;primaryKey"`
	Position       int    `gorm:"column:position;not null"`
	IsRead         bool   `gorm:"column:is_read;not null"`
}

func (notificationRecipientModel) TableName() string {
	return "notification_recipients"
}

func (m notificationModel) toDomain(recipients []notificationRecipientModel) domain.Notification {
	n := domain.Notification{
		ID:            m.ID,
		Type:          domain.NotificationType(m.Type),
		Message:       m.Message,
		Sender:        domain.ActorRef{ActorID: m.SenderID, DisplayName: m.SenderName},
		ReferenceID:   m.ReferenceID,
		ReferenceKind: domain.ReferenceKind(m.ReferenceKind),
		Status:        domain.RequestStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		Recipients:    make([]domain.Recipient, 0, len(recipients)),
	}
	for _, r := range recipients {
		n.Recipients = append(n.Recipients, domain.Recipient{ActorID: r.ActorID, IsRead: r.IsRead})
	}
	return n
}

type orderModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	OrderNumber string    `gorm:"column:order_number;not null"`
	ClientName  string    `gorm:"column:client_name;not null"`
	Data        string    `gorm:"column:data;not null"`
	CreatedBy   string    `gorm:"column:created_by;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (orderModel) TableName() string {
	return "orders"
}

func (m orderModel) toDomain() domain.Order {
	return domain.Order{
		ID:          m.ID,
		OrderNumber: m.OrderNumber,
		ClientName:  m.ClientName,
		Data:        json.RawMessage(m.Data),
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

type outboxEventModel struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID        string     `gorm:"column:event_id;not null"`
	NotificationID string     `gorm:"column:notification_id;not null"`
	Topic          string     `gorm:"column:topic;not null"`
	PayloadJSON    string     `gorm:"column:payload_json;not null"`
	Status         string     `gorm:"column:status;not null"`
	Attempts       int        `gorm:"column:attempts;not null"`
	NextAttemptAt  time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError      string     `gorm:"column:last_error;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt   *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "outbox_events"
}
