package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/adapters/sqlite/gormsqlite"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationStore runs a unit of work on the writer connection. The permission
// request, grant, notification, recipients and outbox rows written through one
// notificationTx commit together.
type NotificationStore struct {
	db *gormsqlite.DB
}

func NewNotificationStore(db *gormsqlite.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) WithinTx(ctx context.Context, fn func(tx ports.NotificationTx) error) error {
	return s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return fn(&notificationTx{tx: tx})
	})
}

type notificationTx struct {
	tx *gormsqlite.Tx
}

var _ ports.NotificationTx = (*notificationTx)(nil)

func (t *notificationTx) FindActor(id string) (domain.Actor, error) {
	return findActor(t.tx, id)
}

func (t *notificationTx) ListActors(role domain.Role) ([]domain.Actor, error) {
	query := t.tx.Model(&actorModel{})
	if role != "" {
		query = query.Where("role = ?", string(role))
	}
	var rows []actorModel
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	out := make([]domain.Actor, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (t *notificationTx) FindGrant(actorID string, resource domain.Resource) (domain.PermissionGrant, error) {
	return findGrant(t.tx, actorID, resource)
}

func (t *notificationTx) UpsertGrant(grant domain.PermissionGrant) error {
	return upsertGrant(t.tx, grant)
}

func (t *notificationTx) InsertPermissionRequest(req domain.PermissionRequest) error {
	row := permissionRequestToModel(req)
	if err := t.tx.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("permission request %s: %w", req.ID, domain.ErrDuplicateIdentifier)
		}
		return fmt.Errorf("insert permission request: %w", err)
	}
	return nil
}

func (t *notificationTx) FindPermissionRequest(id string) (domain.PermissionRequest, error) {
	return findPermissionRequest(t.tx, id)
}

func (t *notificationTx) ResolvePermissionRequest(req domain.PermissionRequest) error {
	row := permissionRequestToModel(req)
	res := t.tx.Model(&permissionRequestModel{}).
		Where("id = ? AND status = ?", req.ID, string(domain.StatusPending)).
		Updates(map[string]any{
			"status":            row.Status,
			"responded_by_id":   row.RespondedByID,
			"responded_by_name": row.RespondedByName,
			"responded_at":      row.RespondedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("resolve permission request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("permission request %s: %w", req.ID, domain.ErrInvalidStateTransition)
	}
	return nil
}

func (t *notificationTx) InsertNotification(n domain.Notification) error {
	row := notificationModel{
		ID:            n.ID,
		Type:          string(n.Type),
		Message:       n.Message,
		SenderID:      n.Sender.ActorID,
		SenderName:    n.Sender.DisplayName,
		ReferenceID:   n.ReferenceID,
		ReferenceKind: string(n.ReferenceKind),
		Status:        string(n.Status),
		CreatedAt:     n.CreatedAt.UTC(),
	}
	if err := t.tx.Create(&row).Error; err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	recipients := make([]notificationRecipientModel, 0, len(n.Recipients))
	for i, r := range n.Recipients {
		recipients = append(recipients, notificationRecipientModel{
			NotificationID: n.ID,
			ActorID:        r.ActorID,
			Position:       i,
			IsRead:         r.IsRead,
		})
	}
	if len(recipients) > 0 {
		if err := t.tx.Create(&recipients).Error; err != nil {
			return fmt.Errorf("insert notification recipients: %w", err)
		}
	}
	return nil
}

// EnqueueDelivery writes one outbox row per sink. The topic is "<sink>.<type>" so the
// publisher side can route on the prefix.
func (t *notificationTx) EnqueueDelivery(n domain.Notification, sinks []string) error {
	payload, err := json.Marshal(domain.NewDelivery(n))
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	now := time.Now().UTC()
	for _, sink := range sinks {
		row := outboxEventModel{
			EventID:        uuid.NewString(),
			NotificationID: n.ID,
			Topic:          sink + "." + string(n.Type),
			PayloadJSON:    string(payload),
			Status:         domain.OutboxPending,
			NextAttemptAt:  now,
			CreatedAt:      now,
		}
		if err := t.tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}
	return nil
}

func findPermissionRequest(tx *gormsqlite.Tx, id string) (domain.PermissionRequest, error) {
	var row permissionRequestModel
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PermissionRequest{}, domain.ErrNotFound
		}
		return domain.PermissionRequest{}, fmt.Errorf("find permission request: %w", err)
	}
	return row.toDomain(), nil
}

type PermissionRequestRepository struct {
	db *gormsqlite.DB
}

func NewPermissionRequestRepository(db *gormsqlite.DB) *PermissionRequestRepository {
	return &PermissionRequestRepository{db: db}
}

func (r *PermissionRequestRepository) Get(ctx context.Context, id string) (domain.PermissionRequest, error) {
	var req domain.PermissionRequest
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		var err error
		req, err = findPermissionRequest(tx, id)
		return err
	})
	return req, err
}

func (r *PermissionRequestRepository) ListPending(ctx context.Context, limit int) ([]domain.PermissionRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []permissionRequestModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("status = ?", string(domain.StatusPending)).
			Order("created_at ASC, id ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	out := make([]domain.PermissionRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type NotificationRepository struct {
	db *gormsqlite.DB
}

func NewNotificationRepository(db *gormsqlite.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) ListForRecipient(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var (
		rows       []notificationModel
		recipients []notificationRecipientModel
	)
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&notificationModel{}).
			Select("notifications.*").
			Joins("JOIN notification_recipients nr ON nr.notification_id = notifications.id").
			Where("nr.actor_id = ?", filter.RecipientID)
		if filter.UnreadOnly {
			query = query.Where("nr.is_read = ?", false)
		}
		if err := query.Order("notifications.created_at DESC, notifications.id DESC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		return tx.Where("notification_id IN ?", ids).
			Order("notification_id ASC, position ASC").
			Find(&recipients).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	byNotification := make(map[string][]notificationRecipientModel, len(rows))
	for _, rc := range recipients {
		byNotification[rc.NotificationID] = append(byNotification[rc.NotificationID], rc)
	}
	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain(byNotification[row.ID]))
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, actorID string) error {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Model(&notificationRecipientModel{}).
			Where("notification_id = ? AND actor_id = ?", notificationID, actorID).
			Update("is_read", true)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %s for %s: %w", notificationID, actorID, domain.ErrNotFound)
	}
	return nil
}
