package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
)

type AccountUploadRepository struct {
	db *gorm.DB
}

func NewAccountUploadRepository(db *gorm.DB) *AccountUploadRepository {
	return &AccountUploadRepository{db: db}
}

// Find returns nil, nil when the creative was never uploaded to the ad account.
func (r *AccountUploadRepository) Find(ctx context.Context, creativeID uuid.UUID, adAccountID string) (*entity.AccountUpload, error) {
	var record entity.AccountUpload
	err := r.db.WithContext(ctx).
		Where("creative_id = ? AND ad_account_id = ?", creativeID, adAccountID).
		First(&record).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Upsert writes the record, replacing every remote identifier of an existing row.
func (r *AccountUploadRepository) Upsert(ctx context.Context, record *entity.AccountUpload) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "creative_id"}, {Name: "ad_account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"facebook_image_hash",
			"facebook_video_id",
			"uploaded_at",
		}),
	}).Create(record).Error
}

func (r *AccountUploadRepository) ListByCreative(ctx context.Context, creativeID uuid.UUID) ([]entity.AccountUpload, error) {
	var records []entity.AccountUpload
	err := r.db.WithContext(ctx).
		Where("creative_id = ?", creativeID).
		Order("uploaded_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
