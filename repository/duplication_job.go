package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
)

type DuplicationJobRepository struct {
	db *gorm.DB
}

func NewDuplicationJobRepository(db *gorm.DB) *DuplicationJobRepository {
	return &DuplicationJobRepository{db: db}
}

func (r *DuplicationJobRepository) Create(ctx context.Context, job *entity.DuplicationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// FindByID returns nil, nil when the job does not exist.
func (r *DuplicationJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.DuplicationJob, error) {
	var job entity.DuplicationJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *DuplicationJobRepository) Update(ctx context.Context, job *entity.DuplicationJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *DuplicationJobRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.DuplicationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []entity.DuplicationJob
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
