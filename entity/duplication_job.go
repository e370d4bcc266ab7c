package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DuplicationKind string

const (
	DuplicationKindAdSet    DuplicationKind = "adset"
	DuplicationKindCampaign DuplicationKind = "campaign"
)

type DuplicationStatus string

const (
	DuplicationStatusSubmitted DuplicationStatus = "SUBMITTED"
	DuplicationStatusRunning   DuplicationStatus = "RUNNING"
	DuplicationStatusCompleted DuplicationStatus = "COMPLETED"
	DuplicationStatusPartial   DuplicationStatus = "PARTIAL"
	DuplicationStatusFailed    DuplicationStatus = "FAILED"
)

// DuplicationJob tracks an asynchronous duplication until all of its batches finish.
type DuplicationJob struct {
	ID             uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID         `json:"user_id" gorm:"type:uuid;index"`
	Kind           DuplicationKind   `json:"kind" gorm:"type:varchar(16);not null"`
	SourceID       string            `json:"source_id" gorm:"type:varchar(64);not null;index"`
	TargetID       string            `json:"target_id" gorm:"type:varchar(64);not null"`
	AdAccountID    string            `json:"ad_account_id" gorm:"type:varchar(64);not null"`
	NewID          string            `json:"new_id" gorm:"type:varchar(64)"`
	Status         DuplicationStatus `json:"status" gorm:"type:varchar(32);not null;default:'SUBMITTED'"`
	TrackingIDs    datatypes.JSON    `json:"tracking_ids" gorm:"type:jsonb"`
	PendingIDs     datatypes.JSON    `json:"pending_ids" gorm:"type:jsonb"`
	Result         datatypes.JSON    `json:"result" gorm:"type:jsonb"`
	AttemptedCount int               `json:"attempted_count"`
	SkippedCount   int               `json:"skipped_count"`
	UntrackedCount int               `json:"untracked_count"`
	SucceededCount int               `json:"succeeded_count"`
	FailedCount    int               `json:"failed_count"`
	PollAttempts   int               `json:"poll_attempts"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

func (j *DuplicationJob) IsTerminal() bool {
	switch j.Status {
	case DuplicationStatusCompleted, DuplicationStatusPartial, DuplicationStatusFailed:
		return true
	}
	return false
}
