package pipeline

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"go.pipelinehub.dev/internal/common/repository"
	"go.pipelinehub.dev/internal/common/sqlite"
)

// GormRepository stores pipelines in a SQL database through gorm.
type GormRepository struct {
	db *gorm.DB
}

var _ repository.Repository[Entity, int64] = (*GormRepository)(nil)

// NewGormRepository creates a repository over db. The pipelines table must
// already be migrated.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) FindAll(ctx context.Context) ([]Entity, error) {
	var out []Entity
	if err := r.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) FindByID(ctx context.Context, id int64) (*Entity, error) {
	var e Entity
	err := r.db.WithContext(ctx).First(&e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *GormRepository) Save(ctx context.Context, e Entity) (Entity, error) {
	if err := r.db.WithContext(ctx).Create(&e).Error; err != nil {
		if sqlite.IsUniqueConstraintError(err) {
			return Entity{}, fmt.Errorf("pipeline %d: %w", e.ID, repository.ErrDuplicateKey)
		}
		return Entity{}, err
	}
	return e, nil
}

// Update replaces every column except id and created_at.
func (r *GormRepository) Update(ctx context.Context, e Entity) (Entity, error) {
	if e.ID == 0 {
		return Entity{}, repository.ErrMissingID
	}

	res := r.db.WithContext(ctx).
		Model(&Entity{}).
		Where("id = ?", e.ID).
		Updates(map[string]any{
			"name":  e.Name,
			"email": e.Email,
			"age":   e.Age,
		})
	if res.Error != nil {
		return Entity{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Entity{}, fmt.Errorf("pipeline %d: %w", e.ID, repository.ErrNotFound)
	}

	stored, err := r.FindByID(ctx, e.ID)
	if err != nil {
		return Entity{}, err
	}
	if stored == nil {
		return Entity{}, fmt.Errorf("pipeline %d: %w", e.ID, repository.ErrNotFound)
	}
	return *stored, nil
}

func (r *GormRepository) Delete(ctx context.Context, e Entity) error {
	if e.ID == 0 {
		return repository.ErrMissingID
	}
	return r.DeleteByID(ctx, e.ID)
}

// DeleteByID removes the record. Deleting an absent id is not an error.
func (r *GormRepository) DeleteByID(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&Entity{}, id).Error
}

func (r *GormRepository) SaveOrUpdate(ctx context.Context, e Entity) (Entity, error) {
	if e.ID == 0 {
		return r.Save(ctx, e)
	}
	return r.Update(ctx, e)
}
