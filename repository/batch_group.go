package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
)

type BatchGroupRepository struct {
	db *gorm.DB
}

func NewBatchGroupRepository(db *gorm.DB) *BatchGroupRepository {
	return &BatchGroupRepository{db: db}
}

func (r *BatchGroupRepository) Create(ctx context.Context, group *entity.BatchGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// FindByID returns nil, nil when the group does not exist.
func (r *BatchGroupRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.BatchGroup, error) {
	var group entity.BatchGroup
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

func (r *BatchGroupRepository) List(ctx context.Context) ([]entity.BatchGroup, error) {
	var groups []entity.BatchGroup
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}
