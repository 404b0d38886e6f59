package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

type authorizeRequest struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type permissionRequestBody struct {
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

type resolveRequest struct {
	Status string `json:"status"`
}

type assignGrantRequest struct {
	Actions []string `json:"actions"`
}

type permissionRequestResponse struct {
	ID          string           `json:"id"`
	Requester   domain.ActorRef  `json:"requester"`
	Resource    string           `json:"resource"`
	Action      string           `json:"action"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	RespondedBy *domain.ActorRef `json:"respondedBy,omitempty"`
	RespondedAt string           `json:"respondedAt,omitempty"`
	CreatedAt   string           `json:"createdAt"`
}

type grantResponse struct {
	ActorID  string   `json:"actorId"`
	Resource string   `json:"resource"`
	Actions  []string `json:"actions"`
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	actor := actorFromContext(r.Context())
	allowed, err := h.svc.Permissions.Authorize(r.Context(), actor.ID, req.Resource, req.Action)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *Handler) createPermissionRequest(w http.ResponseWriter, r *http.Request) {
	var body permissionRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}
	actor := actorFromContext(r.Context())
	req, err := h.svc.Permissions.RequestPermission(r.Context(), actor.ID, domain.PermissionRequestInput{
		Resource:    body.Resource,
		Action:      body.Action,
		Description: body.Description,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPermissionRequestResponse(req))
}

func (h *Handler) listPendingRequests(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	actor := actorFromContext(r.Context())
	reqs, err := h.svc.Permissions.ListPending(r.Context(), actor.ID, limit)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	result := make([]permissionRequestResponse, 0, len(reqs))
	for _, req := range reqs {
		result = append(result, toPermissionRequestResponse(req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) getPermissionRequest(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	req, err := h.svc.Permissions.GetRequest(r.Context(), actor.ID, chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPermissionRequestResponse(req))
}

func (h *Handler) resolvePermissionRequest(w http.ResponseWriter, r *http.Request) {
	var body resolveRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	actor := actorFromContext(r.Context())
	req, err := h.svc.Permissions.Resolve(r.Context(), actor.ID, chi.URLParam(r, "id"), body.Status)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPermissionRequestResponse(req))
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	grants, err := h.svc.Grants.ListForActor(r.Context(), actor.ID, chi.URLParam(r, "actorID"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	result := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		result = append(result, toGrantResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) assignGrant(w http.ResponseWriter, r *http.Request) {
	var body assignGrantRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	actor := actorFromContext(r.Context())
	grant, err := h.svc.Grants.Assign(r.Context(), actor.ID, chi.URLParam(r, "actorID"), chi.URLParam(r, "resource"), body.Actions)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantResponse(grant))
}

func toPermissionRequestResponse(req domain.PermissionRequest) permissionRequestResponse {
	out := permissionRequestResponse{
		ID:          req.ID,
		Requester:   req.Requester,
		Resource:    string(req.Resource),
		Action:      string(req.Action),
		Description: req.Description,
		Status:      string(req.Status),
		RespondedBy: req.RespondedBy,
		CreatedAt:   req.CreatedAt.UTC().Format(timeFormat),
	}
	if req.RespondedAt != nil {
		out.RespondedAt = req.RespondedAt.UTC().Format(timeFormat)
	}
	return out
}

func toGrantResponse(g domain.PermissionGrant) grantResponse {
	actions := make([]string, 0, len(g.Actions))
	for _, a := range g.Actions {
		actions = append(actions, string(a))
	}
	return grantResponse{ActorID: g.ActorID, Resource: string(g.Resource), Actions: actions}
}
