package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/adapters/sqlite/gormsqlite"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStore struct {
	db *gormsqlite.DB
}

func NewOrderStore(db *gormsqlite.DB) *OrderStore {
	return &OrderStore{db: db}
}

// LatestOrderNumber returns the highest number ending in suffix whose head is all
// digits. The suffix is compared literally and the head numerically, so "100/..."
// ranks above "99/..." and malformed rows are ignored.
func (s *OrderStore) LatestOrderNumber(ctx context.Context, suffix string) (string, bool, error) {
	headLen := fmt.Sprintf("length(order_number) - %d", len(suffix))
	var rows []orderModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Select("order_number").
			Where("length(order_number) > ?", len(suffix)).
			Where("substr(order_number, ?) = ?", -len(suffix), suffix).
			Where("ltrim(substr(order_number, 1, " + headLen + "), '0123456789') = ''").
			Order("CAST(substr(order_number, 1, " + headLen + ") AS INTEGER) DESC").
			Limit(1).
			Find(&rows).Error
	})
	if err != nil {
		return "", false, fmt.Errorf("latest order number: %w", err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].OrderNumber, true, nil
}

func (s *OrderStore) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	now := time.Now().UTC()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	row := orderModel{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		ClientName:  order.ClientName,
		Data:        string(order.Data),
		CreatedBy:   order.CreatedBy,
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
	}
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, fmt.Errorf("order number %s: %w", order.OrderNumber, domain.ErrDuplicateIdentifier)
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return row.toDomain(), nil
}

func (s *OrderStore) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	var row orderModel
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("id = ?", order.ID).First(&row).Error; err != nil {
			return err
		}
		updatedAt := order.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now()
		}
		row.OrderNumber = order.OrderNumber
		row.ClientName = order.ClientName
		row.Data = string(order.Data)
		row.UpdatedAt = updatedAt.UTC()
		return tx.Model(&orderModel{}).Where("id = ?", order.ID).Updates(map[string]any{
			"order_number": row.OrderNumber,
			"client_name":  row.ClientName,
			"data":         row.Data,
			"updated_at":   row.UpdatedAt,
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Order{}, domain.ErrNotFound
		}
		if isUniqueViolation(err) {
			return domain.Order{}, fmt.Errorf("order number %s: %w", order.OrderNumber, domain.ErrDuplicateIdentifier)
		}
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}
	return row.toDomain(), nil
}

func (s *OrderStore) Delete(ctx context.Context, id string) (domain.Order, error) {
	var row orderModel
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&orderModel{}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("delete order: %w", err)
	}
	return row.toDomain(), nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	var row orderModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return row.toDomain(), nil
}

func (s *OrderStore) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var rows []orderModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
