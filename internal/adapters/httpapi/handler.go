package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	actorCtxKey     ctxKey = "actor"
	maxJSONBodySize        = 1 << 20
)

type Services struct {
	Auth          *usecase.AuthService
	Permissions   *usecase.PermissionService
	Grants        *usecase.GrantService
	Notifications *usecase.NotificationService
	Orders        *usecase.OrderService
}

// Handler serves the JSON API. Live is mounted at /v1/ws and Metrics at /metrics
// when set.
type Handler struct {
	svc        Services
	live       http.Handler
	metrics    http.Handler
	instrument func(http.Handler) http.Handler
	wsLimit    RateLimitConfig
}

type Option func(*Handler)

func WithLive(live http.Handler, limit RateLimitConfig) Option {
	return func(h *Handler) {
		h.live = live
		h.wsLimit = limit
	}
}

func WithMetrics(handler http.Handler, instrument func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.metrics = handler
		h.instrument = instrument
	}
}

func NewHandler(svc Services, opts ...Option) *Handler {
	h := &Handler{svc: svc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Logging)
	if h.instrument != nil {
		r.Use(h.instrument)
	}

	r.Get("/healthz", h.healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	if h.live != nil {
		r.With(RateLimit(h.wsLimit)).Method(http.MethodGet, "/v1/ws", h.live)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireActor)
		pr.Get("/v1/me", h.me)
		pr.Post("/v1/authorize", h.authorize)

		pr.Post("/v1/permission-requests", h.createPermissionRequest)
		pr.Get("/v1/permission-requests", h.listPendingRequests)
		pr.Get("/v1/permission-requests/{id}", h.getPermissionRequest)
		pr.Post("/v1/permission-requests/{id}/resolve", h.resolvePermissionRequest)

		pr.Get("/v1/grants/{actorID}", h.listGrants)
		pr.Put("/v1/grants/{actorID}/{resource}", h.assignGrant)

		pr.Get("/v1/notifications", h.listNotifications)
		pr.Post("/v1/notifications/{id}/read", h.markNotificationRead)

		pr.Post("/v1/orders", h.createOrder)
		pr.Get("/v1/orders", h.listOrders)
		pr.Get("/v1/orders/{id}", h.getOrder)
		pr.Put("/v1/orders/{id}", h.updateOrder)
		pr.Delete("/v1/orders/{id}", h.deleteOrder)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type actorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	writeJSON(w, http.StatusOK, actorResponse{ID: actor.ID, Username: actor.Username, Role: string(actor.Role)})
}

func (h *Handler) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			token = strings.TrimSpace(auth[7:])
		}

		actor, err := h.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			log.Printf("authenticate: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), actorCtxKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorCtxKey).(domain.Actor)
	return actor
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func readRawJSON(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	var data json.RawMessage
	if err := decoder.Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	return data, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	var violation *domain.OrderSchemaViolation
	switch {
	case errors.As(err, &violation):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "order payload invalid", "details": violation.Errors})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, usecase.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrDuplicateIdentifier),
		errors.Is(err, domain.ErrNoRecipients):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSequenceExhausted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}
