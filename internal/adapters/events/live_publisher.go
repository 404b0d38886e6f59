package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
)

// RoomSender is the push side of the connection registry.
type RoomSender interface {
	SendToRoom(room, event string, payload []byte) int
}

// LivePublisher pushes deliveries to online sessions. Offline recipients are counted
// and skipped; they read the stored notification on their next poll.
type LivePublisher struct {
	sender  RoomSender
	metrics ports.Metrics
}

func NewLivePublisher(sender RoomSender, metrics ports.Metrics) *LivePublisher {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &LivePublisher{sender: sender, metrics: metrics}
}

func (p *LivePublisher) Publish(_ context.Context, _ string, delivery domain.Delivery) error {
	payload, err := json.Marshal(delivery.Payload)
	if err != nil {
		return fmt.Errorf("marshal live payload: %w", err)
	}

	for _, room := range delivery.Rooms {
		if room == domain.AdminsRoom {
			delivered := p.sender.SendToRoom(room, delivery.Event, payload)
			for i := range len(delivery.Recipients) {
				if i < delivered {
					p.metrics.LivePush("delivered")
				} else {
					p.metrics.LivePush("unreachable")
				}
			}
			continue
		}
		if p.sender.SendToRoom(room, delivery.Event, payload) > 0 {
			p.metrics.LivePush("delivered")
		} else {
			p.metrics.LivePush("unreachable")
		}
	}
	return nil
}
