package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/adapters/sqlite/gormsqlite"
	"github.com/Quick-Engineering-Solutions-Pvt-Ltd/op-management-app/internal/core/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActorRepository struct {
	db *gormsqlite.DB
}

func NewActorRepository(db *gormsqlite.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

func (r *ActorRepository) Get(ctx context.Context, id string) (domain.Actor, error) {
	var row actorModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Actor{}, domain.ErrNotFound
		}
		return domain.Actor{}, fmt.Errorf("get actor: %w", err)
	}
	return row.toDomain(), nil
}

func (r *ActorRepository) Upsert(ctx context.Context, actor domain.Actor) error {
	now := time.Now().UTC()
	row := actorModel{
		ID:        actor.ID,
		Username:  actor.Username,
		Role:      string(actor.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "role", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("upsert actor: %w", err)
	}
	return nil
}

func (r *ActorRepository) List(ctx context.Context) ([]domain.Actor, error) {
	var rows []actorModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Order("id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	out := make([]domain.Actor, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type GrantRepository struct {
	db *gormsqlite.DB
}

func NewGrantRepository(db *gormsqlite.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

func (r *GrantRepository) Get(ctx context.Context, actorID string, resource domain.Resource) (domain.PermissionGrant, error) {
	var grant domain.PermissionGrant
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		var err error
		grant, err = findGrant(tx, actorID, resource)
		return err
	})
	if err != nil {
		return domain.PermissionGrant{}, err
	}
	return grant, nil
}

func (r *GrantRepository) ListForActor(ctx context.Context, actorID string) ([]domain.PermissionGrant, error) {
	var rows []grantModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("actor_id = ?", actorID).Order("resource ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	out := make([]domain.PermissionGrant, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *GrantRepository) Upsert(ctx context.Context, grant domain.PermissionGrant) error {
	return r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return upsertGrant(tx, grant)
	})
}

func findActor(tx *gormsqlite.Tx, id string) (domain.Actor, error) {
	var row actorModel
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Actor{}, domain.ErrNotFound
		}
		return domain.Actor{}, fmt.Errorf("find actor: %w", err)
	}
	return row.toDomain(), nil
}

func findGrant(tx *gormsqlite.Tx, actorID string, resource domain.Resource) (domain.PermissionGrant, error) {
	var row grantModel
	err := tx.Where("actor_id = ? AND resource = ?", actorID, string(resource)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PermissionGrant{}, domain.ErrNotFound
		}
		return domain.PermissionGrant{}, fmt.Errorf("get grant: %w", err)
	}
	return row.toDomain(), nil
}

// upsertGrant replaces the stored action set. An empty set deletes the row.
func upsertGrant(tx *gormsqlite.Tx, grant domain.PermissionGrant) error {
	if len(grant.Actions) == 0 {
		err := tx.Where("actor_id = ? AND resource = ?", grant.ActorID, string(grant.Resource)).
			Delete(&grantModel{}).Error
		if err != nil {
			return fmt.Errorf("delete grant: %w", err)
		}
		return nil
	}
	row := grantModel{
		ActorID:   grant.ActorID,
		Resource:  string(grant.Resource),
		Actions:   domain.EncodeActions(grant.Actions),
		UpdatedAt: time.Now().UTC(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "resource"}},
		DoUpdates: clause.AssignmentColumns([]string{"actions", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}
