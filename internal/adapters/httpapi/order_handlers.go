package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

type orderResponse struct {
	ID                string          `json:"id"`
	OrderNumber       string          `json:"orderNumber"`
	ClientName        string          `json:"clientName"`
	Data              json.RawMessage `json:"data"`
	CreatedBy         string          `json:"createdBy"`
	CreatedAt         string          `json:"createdAt"`
	UpdatedAt         string          `json:"updatedAt"`
	NotificationError string          `json:"notificationError,omitempty"`
}

type notificationResponse struct {
	ID            string             `json:"id"`
	Type          string             `json:"type"`
	Message       string             `json:"message"`
	Sender        domain.ActorRef    `json:"sender"`
	Recipients    []domain.Recipient `json:"recipients"`
	ReferenceID   string             `json:"referenceId"`
	ReferenceKind string             `json:"referenceKind"`
	Status        string             `json:"status"`
	CreatedAt     string             `json:"createdAt"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	data, ok := readRawJSON(w, r)
	if !ok {
		return
	}
	actor := actorFromContext(r.Context())
	order, err := h.svc.Orders.Create(r.Context(), actor.ID, data)
	writeOrderResult(w, http.StatusCreated, order, err)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	data, ok := readRawJSON(w, r)
	if !ok {
		return
	}
	actor := actorFromContext(r.Context())
	order, err := h.svc.Orders.Update(r.Context(), actor.ID, chi.URLParam(r, "id"), data)
	writeOrderResult(w, http.StatusOK, order, err)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	order, err := h.svc.Orders.Delete(r.Context(), actor.ID, chi.URLParam(r, "id"))
	writeOrderResult(w, http.StatusOK, order, err)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	order, err := h.svc.Orders.Get(r.Context(), actor.ID, chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	actor := actorFromContext(r.Context())
	orders, err := h.svc.Orders.List(r.Context(), actor.ID, limit)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	result := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		result = append(result, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

// writeOrderResult keeps the success status when only the notification step failed:
// the order change is committed and the error is reported alongside it.
func writeOrderResult(w http.ResponseWriter, status int, order domain.Order, err error) {
	if err != nil && !errors.Is(err, domain.ErrNotificationFailed) {
		handleDomainError(w, err)
		return
	}
	resp := toOrderResponse(order)
	if err != nil {
		resp.NotificationError = err.Error()
	}
	writeJSON(w, status, resp)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	actor := actorFromContext(r.Context())
	items, err := h.svc.Notifications.ListForRecipient(r.Context(), actor.ID, unreadOnly, limit)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	result := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		result = append(result, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if err := h.svc.Notifications.MarkRead(r.Context(), actor.ID, chi.URLParam(r, "id")); err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		ClientName:  o.ClientName,
		Data:        o.Data,
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:   o.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toNotificationResponse(n domain.Notification) notificationResponse {
	return notificationResponse{
		ID:            n.ID,
		Type:          string(n.Type),
		Message:       n.Message,
		Sender:        n.Sender,
		Recipients:    n.Recipients,
		ReferenceID:   n.ReferenceID,
		ReferenceKind: string(n.ReferenceKind),
		Status:        string(n.Status),
		CreatedAt:     n.CreatedAt.UTC().Format(timeFormat),
	}
}
