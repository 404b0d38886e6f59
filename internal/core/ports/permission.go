package ports

import (
	"context"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
)

type GrantRepository interface {
	Get(ctx context.Context, actorID string, resource domain.Resource) (domain.PermissionGrant, error)
	ListForActor(ctx context.Context, actorID string) ([]domain.PermissionGrant, error)
	// Upsert replaces the action set; an empty set removes the grant.
	Upsert(ctx context.Context, grant domain.PermissionGrant) error
}

type ActorRepository interface {
	Get(ctx context.Context, id string) (domain.Actor, error)
	Upsert(ctx context.Context, actor domain.Actor) error
	List(ctx context.Context) ([]domain.Actor, error)
}

type PermissionRequestReader interface {
	Get(ctx context.Context, id string) (domain.PermissionRequest, error)
	ListPending(ctx context.Context, limit int) ([]domain.PermissionRequest, error)
}
