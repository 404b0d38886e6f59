package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
)

//go:embed schemas/order.json
var orderSchemaJSON []byte

var compiledOrderSchema = sync.OnceValues(func() (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("order.json", bytes.NewReader(orderSchemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("order.json")
})

// OrderService is the order write layer. Every mutation is authorized first and
// followed by a notification once the order row is committed.
type OrderService struct {
	orders      ports.OrderStore
	perms       *PermissionService
	notifier    *NotificationService
	sequence    *SequenceGenerator
	maxAttempts int
	metrics     ports.Metrics
	now         func() time.Time
}

func NewOrderService(orders ports.OrderStore, perms *PermissionService, notifier *NotificationService, sequence *SequenceGenerator, maxAttempts int, metrics ports.Metrics) *OrderService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxSequenceAttempts
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &OrderService{
		orders:      orders,
		perms:       perms,
		notifier:    notifier,
		sequence:    sequence,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type orderHeader struct {
	OrderNumber string `json:"orderNumber"`
	ClientName  string `json:"clientName"`
}

// Create stores a new order. When the notification step fails after the insert
// committed, the order is returned together with an error wrapping
// domain.ErrNotificationFailed.
func (s *OrderService) Create(ctx context.Context, actorID string, data json.RawMessage) (domain.Order, error) {
	if err := s.perms.Require(ctx, actorID, string(domain.ResourceOrders), string(domain.ActionCreate)); err != nil {
		return domain.Order{}, err
	}
	header, err := validateOrder(data)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := domain.Order{
		ID:         uuid.NewString(),
		ClientName: header.ClientName,
		Data:       data,
		CreatedBy:  actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if provided := strings.TrimSpace(header.OrderNumber); provided != "" {
		if err := s.sequence.Validate(provided); err != nil {
			return domain.Order{}, err
		}
		order.OrderNumber = provided
		order, err = s.orders.Insert(ctx, order)
	} else {
		order, err = s.insertWithSequence(ctx, order, now)
	}
	if err != nil {
		return domain.Order{}, err
	}

	return s.notifyOrder(ctx, domain.NotificationOrderCreate, actorID, order)
}

func (s *OrderService) insertWithSequence(ctx context.Context, order domain.Order, now time.Time) (domain.Order, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		number, err := s.sequence.NextOrderNumber(ctx, now)
		if err != nil {
			return domain.Order{}, err
		}
		order.OrderNumber = number
		stored, err := s.orders.Insert(ctx, order)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, domain.ErrDuplicateIdentifier) {
			return domain.Order{}, err
		}
		s.metrics.SequenceRetried()
	}
	return domain.Order{}, fmt.Errorf("%w: gave up after %d attempts", domain.ErrSequenceExhausted, s.maxAttempts)
}

func (s *OrderService) Update(ctx context.Context, actorID, id string, data json.RawMessage) (domain.Order, error) {
	if err := s.perms.Require(ctx, actorID, string(domain.ResourceOrders), string(domain.ActionUpdate)); err != nil {
		return domain.Order{}, err
	}
	header, err := validateOrder(data)
	if err != nil {
		return domain.Order{}, err
	}
	current, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if provided := strings.TrimSpace(header.OrderNumber); provided != "" && provided != current.OrderNumber {
		return domain.Order{}, fmt.Errorf("%w: order number cannot change from %s", domain.ErrValidation, current.OrderNumber)
	}
	current.ClientName = header.ClientName
	current.Data = data
	current.UpdatedAt = s.now()
	updated, err := s.orders.Update(ctx, current)
	if err != nil {
		return domain.Order{}, err
	}
	return s.notifyOrder(ctx, domain.NotificationOrderUpdate, actorID, updated)
}

func (s *OrderService) Delete(ctx context.Context, actorID, id string) (domain.Order, error) {
	if err := s.perms.Require(ctx, actorID, string(domain.ResourceOrders), string(domain.ActionDelete)); err != nil {
		return domain.Order{}, err
	}
	deleted, err := s.orders.Delete(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return s.notifyOrder(ctx, domain.NotificationOrderDelete, actorID, deleted)
}

func (s *OrderService) Get(ctx context.Context, actorID, id string) (domain.Order, error) {
	if err := s.perms.Require(ctx, actorID, string(domain.ResourceOrders), string(domain.ActionRead)); err != nil {
		return domain.Order{}, err
	}
	return s.orders.Get(ctx, id)
}

func (s *OrderService) List(ctx context.Context, actorID string, limit int) ([]domain.Order, error) {
	if err := s.perms.Require(ctx, actorID, string(domain.ResourceOrders), string(domain.ActionRead)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.orders.List(ctx, domain.OrderFilter{Limit: limit})
}

func (s *OrderService) notifyOrder(ctx context.Context, kind domain.NotificationType, actorID string, order domain.Order) (domain.Order, error) {
	_, err := s.notifier.Notify(ctx, domain.Event{
		Kind:        kind,
		ReferenceID: order.ID,
		ActorID:     actorID,
		Subject:     order.OrderNumber,
	})
	if err != nil {
		return order, fmt.Errorf("%w: order %s: %w", domain.ErrNotificationFailed, order.OrderNumber, err)
	}
	return order, nil
}

func validateOrder(data json.RawMessage) (orderHeader, error) {
	sch, err := compiledOrderSchema()
	if err != nil {
		return orderHeader{}, fmt.Errorf("compile order schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return orderHeader{}, &domain.OrderSchemaViolation{Errors: []string{"body must be a json object"}}
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return orderHeader{}, &domain.OrderSchemaViolation{Errors: collectValidationErrors(ve)}
		}
		return orderHeader{}, &domain.OrderSchemaViolation{Errors: []string{err.Error()}}
	}
	var header orderHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return orderHeader{}, &domain.OrderSchemaViolation{Errors: []string{err.Error()}}
	}
	return header, nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}
