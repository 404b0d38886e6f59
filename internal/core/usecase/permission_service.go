package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/ids"
)

// PermissionService answers authorization questions and runs the request/resolve
// workflow. Authorize is a pure read; escalation is always an explicit call.
type PermissionService struct {
	grants   ports.GrantRepository
	requests ports.PermissionRequestReader
	actors   ports.ActorRepository
	store    ports.NotificationStore
	notifier *NotificationService
	metrics  ports.Metrics
}

func NewPermissionService(grants ports.GrantRepository, requests ports.PermissionRequestReader, actors ports.ActorRepository, store ports.NotificationStore, notifier *NotificationService, metrics ports.Metrics) *PermissionService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &PermissionService{
		grants:   grants,
		requests: requests,
		actors:   actors,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
	}
}

func (s *PermissionService) Authorize(ctx context.Context, actorID, resource, action string) (bool, error) {
	res, err := domain.ParseResource(resource)
	if err != nil {
		return false, err
	}
	act, err := domain.ParseAction(action)
	if err != nil {
		return false, err
	}
	grant, err := s.grants.Get(ctx, actorID, res)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.PermissionChecked(res, act, false)
			return false, nil
		}
		return false, fmt.Errorf("load grant: %w", err)
	}
	allowed := grant.Allows(act)
	s.metrics.PermissionChecked(res, act, allowed)
	return allowed, nil
}

// Require is Authorize with a denial reported as domain.ErrPermissionDenied.
func (s *PermissionService) Require(ctx context.Context, actorID, resource, action string) error {
	ok, err := s.Authorize(ctx, actorID, resource, action)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s on %s", domain.ErrPermissionDenied, action, resource)
	}
	return nil
}

func (s *PermissionService) RequestPermission(ctx context.Context, actorID string, in domain.PermissionRequestInput) (domain.PermissionRequest, error) {
	resource, action, description, err := in.Validate()
	if err != nil {
		return domain.PermissionRequest{}, err
	}

	var (
		req domain.PermissionRequest
		n   domain.Notification
	)
	err = s.store.WithinTx(ctx, func(tx ports.NotificationTx) error {
		actor, err := tx.FindActor(actorID)
		if err != nil {
			return fmt.Errorf("load requester: %w", err)
		}
		now := s.notifier.now()
		req = domain.PermissionRequest{
			ID:          ids.NewAt(now),
			Requester:   actor.Ref(),
			Resource:    resource,
			Action:      action,
			Description: description,
			Status:      domain.StatusPending,
			CreatedAt:   now,
		}
		if err := tx.InsertPermissionRequest(req); err != nil {
			return fmt.Errorf("insert permission request: %w", err)
		}
		n, err = s.notifier.recordTx(tx, domain.Event{
			Kind:        domain.NotificationPermissionRequest,
			ReferenceID: req.ID,
			ActorID:     actor.ID,
			Subject:     description,
		}, domain.StatusPending)
		return err
	})
	if err != nil {
		return domain.PermissionRequest{}, err
	}
	s.notifier.committed(n)
	return req, nil
}

// Resolve moves a pending request to approved or rejected. An approval also adds the
// requested action to the requester's grant in the same unit of work.
func (s *PermissionService) Resolve(ctx context.Context, adminID, requestID, decision string) (domain.PermissionRequest, error) {
	status, err := domain.ParseDecision(decision)
	if err != nil {
		return domain.PermissionRequest{}, err
	}

	var (
		resolved domain.PermissionRequest
		n        domain.Notification
	)
	err = s.store.WithinTx(ctx, func(tx ports.NotificationTx) error {
		admin, err := tx.FindActor(adminID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: unknown actor %q", domain.ErrPermissionDenied, adminID)
			}
			return fmt.Errorf("load admin: %w", err)
		}
		if !admin.IsAdmin() {
			return fmt.Errorf("%w: only admins resolve permission requests", domain.ErrPermissionDenied)
		}

		req, err := tx.FindPermissionRequest(requestID)
		if err != nil {
			return err
		}
		resolved, err = req.Resolve(status, admin.Ref(), s.notifier.now())
		if err != nil {
			return err
		}
		if err := tx.ResolvePermissionRequest(resolved); err != nil {
			return err
		}

		if status == domain.StatusApproved {
			grant, err := tx.FindGrant(req.Requester.ActorID, req.Resource)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("load requester grant: %w", err)
			}
			grant.ActorID = req.Requester.ActorID
			grant.Resource = req.Resource
			if err := tx.UpsertGrant(grant.WithAction(req.Action)); err != nil {
				return fmt.Errorf("merge grant: %w", err)
			}
		}

		n, err = s.notifier.recordTx(tx, domain.Event{
			Kind:        domain.NotificationPermissionResponse,
			ReferenceID: req.ID,
			ActorID:     admin.ID,
			Recipients:  []string{req.Requester.ActorID},
			Subject:     string(status),
		}, status)
		return err
	})
	if err != nil {
		return domain.PermissionRequest{}, err
	}
	s.notifier.committed(n)
	return resolved, nil
}

func (s *PermissionService) GetRequest(ctx context.Context, actorID, requestID string) (domain.PermissionRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return domain.PermissionRequest{}, err
	}
	if req.Requester.ActorID == actorID {
		return req, nil
	}
	if err := requireAdmin(ctx, s.actors, actorID); err != nil {
		return domain.PermissionRequest{}, err
	}
	return req, nil
}

func (s *PermissionService) ListPending(ctx context.Context, adminID string, limit int) ([]domain.PermissionRequest, error) {
	if err := requireAdmin(ctx, s.actors, adminID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.requests.ListPending(ctx, limit)
}

func requireAdmin(ctx context.Context, actors ports.ActorRepository, actorID string) error {
	actor, err := actors.Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: unknown actor %q", domain.ErrPermissionDenied, actorID)
		}
		return fmt.Errorf("load actor: %w", err)
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admin role required", domain.ErrPermissionDenied)
	}
	return nil
}
