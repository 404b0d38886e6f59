package events

import (
	"context"
	"log"
	"strings"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, delivery domain.Delivery) error {
	log.Printf("outbox publish topic=%s notification_id=%s type=%s sender=%s recipients=%s", topic, delivery.NotificationID, delivery.Payload.Type, delivery.Payload.Sender.ActorID, strings.Join(delivery.Recipients, ","))
	return nil
}
