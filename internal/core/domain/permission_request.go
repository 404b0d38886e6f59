package domain

import (
	"fmt"
	"strings"
	"time"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseDecision accepts only the terminal statuses an admin may resolve to.
func ParseDecision(raw string) (RequestStatus, error) {
	s := RequestStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Terminal() {
		return "", fmt.Errorf("%w: status must be approved or rejected", ErrValidation)
	}
	return s, nil
}

type PermissionRequest struct {
	ID          string
	Requester   ActorRef
	Resource    Resource
	Action      Action
	Description string
	Status      RequestStatus
	RespondedBy *ActorRef
	RespondedAt *time.Time
	CreatedAt   time.Time
}

// PermissionRequestInput is the caller-supplied part of a request before validation.
type PermissionRequestInput struct {
	Resource    string
	Action      string
	Description string
}

func (in PermissionRequestInput) Validate() (Resource, Action, string, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return "", "", "", fmt.Errorf("%w: description is required", ErrValidation)
	}
	resource, err := ParseResource(in.Resource)
	if err != nil {
		return "", "", "", err
	}
	action, err := ParseAction(in.Action)
	if err != nil {
		return "", "", "", err
	}
	return resource, action, desc, nil
}

// Resolve moves a pending request to a terminal status. Terminal requests are immutable.
func (r PermissionRequest) Resolve(status RequestStatus, by ActorRef, at time.Time) (PermissionRequest, error) {
	if r.Status != StatusPending {
		return r, fmt.Errorf("%w: request %s is %s", ErrInvalidStateTransition, r.ID, r.Status)
	}
	if !status.Terminal() {
		return r, fmt.Errorf("%w: status must be approved or rejected", ErrValidation)
	}
	responder := by
	resolvedAt := at.UTC()
	r.Status = status
	r.RespondedBy = &responder
	r.RespondedAt = &resolvedAt
	return r, nil
}
