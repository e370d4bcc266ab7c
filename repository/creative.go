package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/entity"
)

var errFingerprintTaken = errors.New("fingerprint already exists")

type CreativeFilter struct {
	BatchGroupID *uuid.UUID
	MimeClass    entity.MimeClass
	Limit        int
	Offset       int
}

type CreativeRepository struct {
	db *gorm.DB
}

func NewCreativeRepository(db *gorm.DB) *CreativeRepository {
	return &CreativeRepository{db: db}
}

// FindByFingerprint returns nil, nil when no creative has this fingerprint.
func (r *CreativeRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*entity.Creative, error) {
	var creative entity.Creative
	err := r.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&creative).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &creative, nil
}

// FindByID returns nil, nil when the creative does not exist.
func (r *CreativeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Creative, error) {
	var creative entity.Creative
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&creative).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &creative, nil
}

// InsertIfAbsent inserts the creative unless its fingerprint already exists.
// onInserted runs inside the same transaction after the row is written; an error from it
// rolls the insert back. inserted is false when another writer owns the fingerprint.
func (r *CreativeRepository) InsertIfAbsent(ctx context.Context, creative *entity.Creative, onInserted func(*entity.Creative) error) (bool, error) {
	inserted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).Create(creative)
		if result.Error != nil {
			if isUniqueViolation(result.Error) {
				return errFingerprintTaken
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if onInserted != nil {
			if err := onInserted(creative); err != nil {
				return err
			}
		}
		inserted = true
		return nil
	})
	if err != nil {
		if errors.Is(err, errFingerprintTaken) {
			return false, nil
		}
		return false, err
	}
	return inserted, nil
}

func (r *CreativeRepository) UpdateThumbnail(ctx context.Context, id uuid.UUID, thumbnailPath string) error {
	result := r.db.WithContext(ctx).Model(&entity.Creative{}).
		Where("id = ?", id).
		Update("thumbnail_path", thumbnailPath)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *CreativeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Creative{}).Error
}

func (r *CreativeRepository) List(ctx context.Context, filter CreativeFilter) ([]entity.Creative, error) {
	query := r.db.WithContext(ctx).Model(&entity.Creative{}).Order("created_at DESC")
	if filter.BatchGroupID != nil {
		query = query.Where("batch_group_id = ?", *filter.BatchGroupID)
	}
	if filter.MimeClass != "" {
		query = query.Where("mime_class = ?", filter.MimeClass)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var creatives []entity.Creative
	if err := query.Find(&creatives).Error; err != nil {
		return nil, err
	}
	return creatives, nil
}

// AssignBatchGroup moves creatives into a group; a nil group clears the assignment.
func (r *CreativeRepository) AssignBatchGroup(ctx context.Context, creativeIDs []uuid.UUID, groupID *uuid.UUID) (int64, error) {
	if len(creativeIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&entity.Creative{}).
		Where("id IN ?", creativeIDs).
		Update("batch_group_id", groupID)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to assign batch group: %w", result.Error)
	}
	return result.RowsAffected, nil
}
