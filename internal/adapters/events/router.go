package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
)

// TopicRouter picks a publisher by the sink prefix of the outbox topic, e.g.
// "live.order_create" goes to the "live" publisher.
type TopicRouter struct {
	routes map[string]ports.EventPublisher
}

func NewTopicRouter() *TopicRouter {
	return &TopicRouter{routes: make(map[string]ports.EventPublisher)}
}

func (r *TopicRouter) Handle(sink string, publisher ports.EventPublisher) *TopicRouter {
	r.routes[sink] = publisher
	return r
}

func (r *TopicRouter) Publish(ctx context.Context, topic string, delivery domain.Delivery) error {
	sink, _, _ := strings.Cut(topic, ".")
	publisher, ok := r.routes[sink]
	if !ok {
		return fmt.Errorf("no publisher for topic %q", topic)
	}
	return publisher.Publish(ctx, topic, delivery)
}
