package ports

import (
	"context"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

type OrderStore interface {
	// LatestOrderNumber returns the numerically highest order number ending in suffix.
	LatestOrderNumber(ctx context.Context, suffix string) (string, bool, error)
	// Insert returns domain.ErrDuplicateIdentifier when the order number is taken.
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	Delete(ctx context.Context, id string) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
}
