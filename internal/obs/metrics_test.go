package obs

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestDomainCountersAreExported(t *testing.T) {
	m := NewMetrics(nil)
	m.PermissionChecked(domain.ResourceOrders, domain.ActionCreate, false)
	m.NotificationRecorded(domain.NotificationOrderCreate)
	m.SequenceRetried()
	m.LivePush("unreachable")
	m.OutboxDispatched("success")

	out := scrape(t, m)
	for _, want := range []string{
		`opm_permission_checks_total{action="create",allowed="false",resource="orders"} 1`,
		`opm_notifications_recorded_total{type="order_create"} 1`,
		`opm_order_sequence_retries_total 1`,
		`opm_live_pushes_total{result="unreachable"} 1`,
		`opm_outbox_dispatch_total{result="success"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	m := NewMetrics(nil)
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/v1/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/orders/abc", nil))

	out := scrape(t, m)
	want := `http_requests_total{method="GET",path="/v1/orders/{id}",status="404"} 1`
	if !strings.Contains(out, want) {
		t.Fatalf("missing %q in:\n%s", want, out)
	}
}
