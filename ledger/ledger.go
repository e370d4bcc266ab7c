package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

var ErrNoRemoteIDs = errors.New("upload record needs an image hash or a video id")

type Repository interface {
	Find(ctx context.Context, creativeID uuid.UUID, adAccountID string) (*entity.AccountUpload, error)
	Upsert(ctx context.Context, record *entity.AccountUpload) error
	ListByCreative(ctx context.Context, creativeID uuid.UUID) ([]entity.AccountUpload, error)
}

// Ledger tracks which creatives were pushed to which ad accounts.
type Ledger struct {
	repo   Repository
	logger *infra.LoggerClient
	now    func() time.Time
}

func New(repo Repository, logger *infra.LoggerClient) *Ledger {
	return &Ledger{repo: repo, logger: logger, now: time.Now}
}

// GetRecord returns nil, nil when the creative was never uploaded to the account.
func (l *Ledger) GetRecord(ctx context.Context, creativeID uuid.UUID, adAccountID string) (*entity.AccountUpload, error) {
	record, err := l.repo.Find(ctx, creativeID, utils.NormalizeAdAccountID(adAccountID))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload record: %w", err)
	}
	return record, nil
}

func (l *Ledger) IsUploaded(ctx context.Context, creativeID uuid.UUID, adAccountID string) (bool, error) {
	record, err := l.GetRecord(ctx, creativeID, adAccountID)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// RecordUpload must only be called after the remote upload succeeded. A second call for
// the same pair replaces the stored identifiers.
func (l *Ledger) RecordUpload(ctx context.Context, creativeID uuid.UUID, adAccountID string, ids entity.RemoteIDs) error {
	if ids.IsEmpty() {
		return ErrNoRemoteIDs
	}

	record := &entity.AccountUpload{
		CreativeID:  creativeID,
		AdAccountID: utils.NormalizeAdAccountID(adAccountID),
		UploadedAt:  l.now(),
	}
	if ids.ImageHash != "" {
		record.FacebookImageHash = &ids.ImageHash
	}
	if ids.VideoID != "" {
		record.FacebookVideoID = &ids.VideoID
	}

	if err := l.repo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to record upload of %s to %s: %w", creativeID, record.AdAccountID, err)
	}
	l.logger.InfoWithContextf(ctx, "[Ledger] Creative %s uploaded to %s", creativeID, record.AdAccountID)
	return nil
}

// Accounts lists every ad account the creative has been uploaded to.
func (l *Ledger) Accounts(ctx context.Context, creativeID uuid.UUID) ([]entity.AccountUpload, error) {
	return l.repo.ListByCreative(ctx, creativeID)
}
