package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/ports"
)

// GrantService is the admin surface over the permission store.
type GrantService struct {
	grants ports.GrantRepository
	actors ports.ActorRepository
}

func NewGrantService(grants ports.GrantRepository, actors ports.ActorRepository) *GrantService {
	return &GrantService{grants: grants, actors: actors}
}

// Assign replaces the action set of (actorID, resource). An empty set revokes the grant.
func (s *GrantService) Assign(ctx context.Context, adminID, actorID, resource string, actions []string) (domain.PermissionGrant, error) {
	if err := requireAdmin(ctx, s.actors, adminID); err != nil {
		return domain.PermissionGrant{}, err
	}
	return s.assign(ctx, actorID, resource, actions)
}

// Bootstrap assigns without an acting admin. Used by the CLI.
func (s *GrantService) Bootstrap(ctx context.Context, actorID, resource string, actions []string) (domain.PermissionGrant, error) {
	return s.assign(ctx, actorID, resource, actions)
}

func (s *GrantService) assign(ctx context.Context, actorID, resource string, actions []string) (domain.PermissionGrant, error) {
	res, err := domain.ParseResource(resource)
	if err != nil {
		return domain.PermissionGrant{}, err
	}
	normalized, err := domain.NormalizeActions(actions)
	if err != nil {
		return domain.PermissionGrant{}, err
	}
	if _, err := s.actors.Get(ctx, actorID); err != nil {
		return domain.PermissionGrant{}, fmt.Errorf("load grantee: %w", err)
	}
	grant := domain.PermissionGrant{ActorID: actorID, Resource: res, Actions: normalized}
	if err := s.grants.Upsert(ctx, grant); err != nil {
		return domain.PermissionGrant{}, fmt.Errorf("upsert grant: %w", err)
	}
	return grant, nil
}

func (s *GrantService) ListForActor(ctx context.Context, callerID, actorID string) ([]domain.PermissionGrant, error) {
	if callerID != actorID {
		if err := requireAdmin(ctx, s.actors, callerID); err != nil {
			return nil, err
		}
	}
	return s.grants.ListForActor(ctx, actorID)
}

type ActorService struct {
	actors ports.ActorRepository
}

func NewActorService(actors ports.ActorRepository) *ActorService {
	return &ActorService{actors: actors}
}

func (s *ActorService) Upsert(ctx context.Context, id, username, role string) (domain.Actor, error) {
	id = strings.TrimSpace(id)
	username = strings.TrimSpace(username)
	if id == "" || username == "" {
		return domain.Actor{}, fmt.Errorf("%w: id and username are required", domain.ErrValidation)
	}
	r, ok := domain.ParseRole(role)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	actor := domain.Actor{ID: id, Username: username, Role: r}
	if err := s.actors.Upsert(ctx, actor); err != nil {
		return domain.Actor{}, fmt.Errorf("upsert actor: %w", err)
	}
	return actor, nil
}

func (s *ActorService) Get(ctx context.Context, id string) (domain.Actor, error) {
	return s.actors.Get(ctx, id)
}

func (s *ActorService) List(ctx context.Context) ([]domain.Actor, error) {
	return s.actors.List(ctx)
}
