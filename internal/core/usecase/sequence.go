package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
)

const DefaultMaxSequenceAttempts = 5

// SequenceGenerator computes the next order number for a month from the highest one
// already stored. It does not reserve anything: uniqueness is enforced on insert
// and the caller retries on domain.ErrDuplicateIdentifier.
type SequenceGenerator struct {
	orders ports.OrderStore
	prefix string
}

func NewSequenceGenerator(orders ports.OrderStore, prefix string) *SequenceGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = domain.DefaultOrderPrefix
	}
	return &SequenceGenerator{orders: orders, prefix: prefix}
}

func (g *SequenceGenerator) NextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	suffix := domain.OrderNumberSuffix(g.prefix, now)
	last, ok, err := g.orders.LatestOrderNumber(ctx, suffix)
	if err != nil {
		return "", fmt.Errorf("load latest order number: %w", err)
	}
	seq := 1
	if ok {
		n, err := domain.ParseOrderSequence(last)
		if err != nil {
			return "", err
		}
		seq = n + 1
	}
	return domain.FormatOrderNumber(g.prefix, seq, now), nil
}

// Validate rejects a caller supplied number that the generator could not have
// produced, so it can never shadow the month's sequence.
func (g *SequenceGenerator) Validate(orderNumber string) error {
	return domain.ValidateOrderNumber(g.prefix, orderNumber)
}
