package ports

import (
	"context"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, topic string, delivery domain.Delivery) error
}
