package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
)

type memOrders struct {
	mu       sync.Mutex
	byID     map[string]domain.Order
	byNumber map[string]string

	// staleReads makes the next n LatestOrderNumber calls miss every stored row,
	// simulating a reader that raced ahead of a concurrent insert.
	staleReads atomic.Int64
	inserts    atomic.Int64
}

func newMemOrders() *memOrders {
	return &memOrders{byID: map[string]domain.Order{}, byNumber: map[string]string{}}
}

func (m *memOrders) LatestOrderNumber(_ context.Context, suffix string) (string, bool, error) {
	if m.staleReads.Add(-1) >= 0 {
		return "", false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	best, bestSeq := "", 0
	for number := range m.byNumber {
		if !strings.HasSuffix(number, suffix) {
			continue
		}
		// matches the sqlite store, which only ranks digit-headed numbers
		seq, err := domain.ParseOrderSequence(number)
		if err != nil {
			continue
		}
		if seq > bestSeq {
			best, bestSeq = number, seq
		}
	}
	return best, best != "", nil
}

func (m *memOrders) Insert(_ context.Context, order domain.Order) (domain.Order, error) {
	m.inserts.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byNumber[order.OrderNumber]; taken {
		return domain.Order{}, fmt.Errorf("insert order: %w", domain.ErrDuplicateIdentifier)
	}
	m.byNumber[order.OrderNumber] = order.ID
	m.byID[order.ID] = order
	return order, nil
}

func (m *memOrders) Update(_ context.Context, order domain.Order) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[order.ID]; !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	m.byID[order.ID] = order
	return order, nil
}

func (m *memOrders) Delete(_ context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.byID[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byNumber, order.OrderNumber)
	return order, nil
}

func (m *memOrders) Get(_ context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.byID[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return order, nil
}

func (m *memOrders) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, o)
		if len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

type retryCounter struct {
	ports.NopMetrics
	retries atomic.Int64
}

func (r *retryCounter) SequenceRetried() { r.retries.Add(1) }

var march2025 = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

const validOrder = `{
	"clientName": "Acme Traders",
	"contact": "+91 98200 00000",
	"address": "12 Dock Road, Mumbai",
	"zipCode": "400001",
	"gstNumber": "27AABCU9603R1ZM",
	"products": [{"name": "Valve", "price": 1250.5, "quantity": 4}],
	"generatedBy": {"name": "Ravi", "employeeId": "E-17"}
}`

type orderFixture struct {
	*fixture
	orders  *memOrders
	metrics *retryCounter
	svc     *OrderService
}

func newOrderFixture(actors ...domain.Actor) *orderFixture {
	f := newFixture(actors...)
	orders := newMemOrders()
	metrics := &retryCounter{}
	svc := NewOrderService(orders, f.perms, f.notifier, NewSequenceGenerator(orders, ""), 0, metrics)
	svc.now = func() time.Time { return march2025 }
	return &orderFixture{fixture: f, orders: orders, metrics: metrics, svc: svc}
}

func TestCreateOrderAllocatesSequentialNumbers(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate)
	ctx := context.Background()

	for i, want := range []string{"01/QESPL/MAR/25", "02/QESPL/MAR/25", "03/QESPL/MAR/25"} {
		order, err := f.svc.Create(ctx, userU.ID, json.RawMessage(validOrder))
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if order.OrderNumber != want {
			t.Fatalf("create %d: got %s want %s", i, order.OrderNumber, want)
		}
		if order.ClientName != "Acme Traders" {
			t.Fatalf("unexpected client name %q", order.ClientName)
		}
	}
	if got := len(f.store.snapshot().notifications); got != 3 {
		t.Fatalf("expected three notifications, got %d", got)
	}
}

func TestCreateOrderRetriesOnDuplicateNumber(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, userU.ID, json.RawMessage(validOrder))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	f.orders.staleReads.Store(1)
	second, err := f.svc.Create(ctx, userU.ID, json.RawMessage(validOrder))
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.OrderNumber != "01/QESPL/MAR/25" || second.OrderNumber != "02/QESPL/MAR/25" {
		t.Fatalf("unexpected numbers %s, %s", first.OrderNumber, second.OrderNumber)
	}
	if got := f.metrics.retries.Load(); got != 1 {
		t.Fatalf("expected one retry, got %d", got)
	}
}

func TestCreateOrderSurfacesSequenceExhausted(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, userU.ID, json.RawMessage(validOrder)); err != nil {
		t.Fatalf("seed create: %v", err)
	}
	f.orders.staleReads.Store(100)
	f.orders.inserts.Store(0)

	_, err := f.svc.Create(ctx, userU.ID, json.RawMessage(validOrder))
	if !errors.Is(err, domain.ErrSequenceExhausted) {
		t.Fatalf("expected sequence exhausted, got %v", err)
	}
	if got := f.orders.inserts.Load(); got != DefaultMaxSequenceAttempts {
		t.Fatalf("expected %d insert attempts, got %d", DefaultMaxSequenceAttempts, got)
	}
}

func TestCreateOrderConcurrentCallersGetDistinctNumbers(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate)
	ctx := context.Background()

	const n = 5
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		numbers = make([]string, n)
		errs    = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			order, err := f.svc.Create(ctx, userU.ID, json.RawMessage(validOrder))
			numbers[i], errs[i] = order.OrderNumber, err
		}(i)
	}
	close(start)
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("create %d: %v", i, errs[i])
		}
		if seen[numbers[i]] {
			t.Fatalf("duplicate order number %s", numbers[i])
		}
		seen[numbers[i]] = true
	}
	for i := 1; i <= n; i++ {
		want := fmt.Sprintf("%02d/QESPL/MAR/25", i)
		if !seen[want] {
			t.Fatalf("expected %s among %v", want, numbers)
		}
	}
}

func TestCreateOrderRequiresGrant(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	_, err := f.svc.Create(context.Background(), userU.ID, json.RawMessage(validOrder))
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if got := f.orders.inserts.Load(); got != 0 {
		t.Fatalf("expected no insert, got %d", got)
	}
}

func TestCreateOrderValidatesPayload(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate)

	bad := []string{
		`{"clientName": "x"}`,
		`{"clientName":"a","contact":"b","address":"c","zipCode":"d","products":[],"generatedBy":{"name":"n","employeeId":"e"}}`,
		`{"clientName":"a","contact":"b","address":"c","zipCode":"d","products":[{"name":"p","price":1,"quantity":-1}],"generatedBy":{"name":"n","employeeId":"e"}}`,
		`{"clientName":"a","contact":"b","address":"c","zipCode":"d","products":[{"name":"p","price":"1","quantity":1}],"generatedBy":{"name":"n","employeeId":"e"}}`,
		`{"clientName":"a","contact":"b","address":"c","zipCode":"d","gstNumber":"BADGST","products":[{"name":"p","price":1,"quantity":1}],"generatedBy":{"name":"n","employeeId":"e"}}`,
		`[1,2,3]`,
	}
	for _, body := range bad {
		_, err := f.svc.Create(context.Background(), userU.ID, json.RawMessage(body))
		var violation *domain.OrderSchemaViolation
		if !errors.As(err, &violation) {
			t.Fatalf("body %s: expected schema violation, got %v", body, err)
		}
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("body %s: expected violation to match ErrValidation", body)
		}
	}
}

func TestCreateOrderKeepsProvidedNumber(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate)

	body := strings.Replace(validOrder, `"clientName"`, `"orderNumber": "42/QESPL/MAR/25", "clientName"`, 1)
	order, err := f.svc.Create(context.Background(), userU.ID, json.RawMessage(body))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.OrderNumber != "42/QESPL/MAR/25" {
		t.Fatalf("unexpected number %s", order.OrderNumber)
	}
	next, err := f.svc.Create(context.Background(), userU.ID, json.RawMessage(validOrder))
	if err != nil {
		t.Fatalf("create next: %v", err)
	}
	if next.OrderNumber != "43/QESPL/MAR/25" {
		t.Fatalf("expected numbering to continue from 42, got %s", next.OrderNumber)
	}
}

func TestCreateOrderRejectsMalformedProvidedNumber(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate)
	ctx := context.Background()

	for _, number := range []string{"ABC/QESPL/MAR/25", "7/QESPL/MAR/25", "05/OTHER/MAR/25", "05/QESPL/MARCH/25"} {
		body := strings.Replace(validOrder, `"clientName"`, `"orderNumber": "`+number+`", "clientName"`, 1)
		if _, err := f.svc.Create(ctx, userU.ID, json.RawMessage(body)); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", number, err)
		}
	}
	if got := f.orders.inserts.Load(); got != 0 {
		t.Fatalf("expected no insert, got %d", got)
	}

	order, err := f.svc.Create(ctx, userU.ID, json.RawMessage(validOrder))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.OrderNumber != "01/QESPL/MAR/25" {
		t.Fatalf("unexpected number %s", order.OrderNumber)
	}
}

func TestLatestOrderNumberSkipsMalformedRows(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate)
	ctx := context.Background()

	if _, err := f.orders.Insert(ctx, domain.Order{ID: "legacy", OrderNumber: "ABC/QESPL/MAR/25"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	order, err := f.svc.Create(ctx, userU.ID, json.RawMessage(validOrder))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.OrderNumber != "01/QESPL/MAR/25" {
		t.Fatalf("unexpected number %s", order.OrderNumber)
	}
}

func TestUpdateOrderRejectsChangedNumber(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate, domain.ActionUpdate)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, userU.ID, json.RawMessage(validOrder))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	renumbered := strings.Replace(validOrder, `"clientName"`, `"orderNumber": "99/QESPL/MAR/25", "clientName"`, 1)
	if _, err := f.svc.Update(ctx, userU.ID, order.ID, json.RawMessage(renumbered)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored, err := f.orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.OrderNumber != "01/QESPL/MAR/25" || stored.UpdatedAt != order.UpdatedAt {
		t.Fatalf("expected order untouched, got %+v", stored)
	}

	same := strings.Replace(validOrder, `"clientName"`, `"orderNumber": "01/QESPL/MAR/25", "clientName"`, 1)
	if _, err := f.svc.Update(ctx, userU.ID, order.ID, json.RawMessage(same)); err != nil {
		t.Fatalf("update with unchanged number: %v", err)
	}
}

func TestCreateOrderNotificationFailureReturnsCommittedOrder(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate)
	f.store.failInsertNotification = errors.New("disk full")

	order, err := f.svc.Create(context.Background(), userU.ID, json.RawMessage(validOrder))
	if !errors.Is(err, domain.ErrNotificationFailed) {
		t.Fatalf("expected notification failure, got %v", err)
	}
	if order.OrderNumber != "01/QESPL/MAR/25" {
		t.Fatalf("expected the committed order back, got %+v", order)
	}
	if _, err := f.orders.Get(context.Background(), order.ID); err != nil {
		t.Fatalf("expected order to stay committed: %v", err)
	}
}

func TestUpdateAndDeleteOrderNotify(t *testing.T) {
	f := newOrderFixture(userU, adminA)
	f.store.setGrant(userU.ID, domain.ResourceOrders, domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete, domain.ActionRead)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, userU.ID, json.RawMessage(validOrder))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	changed := strings.Replace(validOrder, "Acme Traders", "Acme Exports", 1)
	updated, err := f.svc.Update(ctx, userU.ID, order.ID, json.RawMessage(changed))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ClientName != "Acme Exports" || updated.OrderNumber != order.OrderNumber {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if _, err := f.svc.Delete(ctx, userU.ID, order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, userU.ID, order.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	state := f.store.snapshot()
	kinds := make([]domain.NotificationType, 0, len(state.notifications))
	for _, n := range state.notifications {
		kinds = append(kinds, n.Type)
	}
	want := []domain.NotificationType{domain.NotificationOrderCreate, domain.NotificationOrderUpdate, domain.NotificationOrderDelete}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected kinds %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("unexpected kinds %v", kinds)
		}
	}
}
