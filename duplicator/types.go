package duplicator

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/batch"
	"github.com/tnqbao/gau-ads-orchestrator/config"
	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra/produce"
	"github.com/tnqbao/gau-ads-orchestrator/provider"
)

// GraphAPI is the part of the Graph client the orchestrator drives.
type GraphAPI interface {
	ListAdSetAds(ctx context.Context, adSetID, accountID, token string) ([]provider.EntityRef, error)
	ListCampaignAdSets(ctx context.Context, campaignID, accountID, token string) ([]provider.EntityRef, error)
	GetObject(ctx context.Context, objectID, fields, accountID, token string) (map[string]any, error)
	CopyAdSet(ctx context.Context, adSetID, targetCampaignID, accountID, token string, opts provider.CopyOptions) (string, error)
	CopyCampaign(ctx context.Context, campaignID, accountID, token string, opts provider.CopyOptions) (string, error)
	CreateCampaign(ctx context.Context, accountID, token string, fields url.Values) (string, error)
	Rename(ctx context.Context, objectID, name, accountID, token string) error
	SubmitAsyncBatch(ctx context.Context, accountID, token, name string, ops []batch.Operation) (map[string]any, error)
	ListAsyncBatchRequests(ctx context.Context, accountID, token string) ([]map[string]any, error)
	GetAsyncBatchStatus(ctx context.Context, batchID, token string) (provider.BatchStatus, error)
	GetAsyncBatchResults(ctx context.Context, batchID, token string) ([]provider.BatchRequestResult, error)
}

type JobRepository interface {
	Create(ctx context.Context, job *entity.DuplicationJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.DuplicationJob, error)
	Update(ctx context.Context, job *entity.DuplicationJob) error
}

type PollScheduler interface {
	PublishBatchPoll(ctx context.Context, msg produce.BatchPollMessage, delay time.Duration) error
}

type Notifier interface {
	SendDuplicationFinished(ctx context.Context, jobID, status, newID string, succeeded, failed int) error
}

type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

type Strategy string

const (
	StrategySyncCopy         Strategy = "SYNC_COPY"
	StrategyAsyncManual      Strategy = "ASYNC_MANUAL"
	StrategyAsyncDoubleBatch Strategy = "ASYNC_DOUBLE_BATCH"
)

// Options of one duplication request. AdAccountID owns the source entity.
type Options struct {
	DeepCopy     bool
	StatusOption string
	NewName      string
	AdAccountID  string
	AccessToken  string
	UserID       uuid.UUID
}

type AdSetResult struct {
	Mode             Mode                        `json:"mode"`
	Strategy         Strategy                    `json:"strategy"`
	NewAdSetID       string                      `json:"new_id"`
	BatchTrackingIDs []string                    `json:"batch_tracking_ids,omitempty"`
	AdsAttempted     int                         `json:"ads_attempted"`
	JobID            string                      `json:"job_id,omitempty"`
	RenameError      string                      `json:"rename_error,omitempty"`
	Partial          *apperr.PartialBatchFailure `json:"partial,omitempty"`
}

type CampaignResult struct {
	Mode            Mode                        `json:"mode"`
	Strategy        Strategy                    `json:"strategy"`
	NewCampaignID   string                      `json:"new_id"`
	PhaseABatchIDs  []string                    `json:"phase_a_batch_ids,omitempty"`
	PhaseBBatchIDs  []string                    `json:"phase_b_batch_ids,omitempty"`
	AdSetsAttempted int                         `json:"adsets_attempted"`
	AdSetsMapped    int                         `json:"adsets_mapped"`
	AdsAttempted    int                         `json:"ads_attempted"`
	AdsMapped       int                         `json:"ads_mapped"`
	IDMapping       map[string]string           `json:"id_mapping,omitempty"`
	JobID           string                      `json:"job_id,omitempty"`
	RenameError     string                      `json:"rename_error,omitempty"`
	Partial         *apperr.PartialBatchFailure `json:"partial,omitempty"`
}

// BatchTrackingIDs returns every tracking id of both phases.
func (r *CampaignResult) BatchTrackingIDs() []string {
	ids := make([]string, 0, len(r.PhaseABatchIDs)+len(r.PhaseBBatchIDs))
	ids = append(ids, r.PhaseABatchIDs...)
	return append(ids, r.PhaseBBatchIDs...)
}

type Settings struct {
	AdSetSyncMaxChildren    int
	CampaignSyncMaxChildren int
	AdSetChunkSize          int
	AdChunkSize             int
	ChunkDelay              time.Duration
	ResolveTimeout          time.Duration
	ResolvePollInterval     time.Duration
	JobPollDelay            time.Duration
	JobMaxPollAttempts      int
}

func SettingsFromConfig(cfg *config.EnvConfig) Settings {
	return Settings{
		AdSetSyncMaxChildren:    cfg.Duplication.AdSetSyncMaxChildren,
		CampaignSyncMaxChildren: cfg.Duplication.CampaignSyncMaxChildren,
		AdSetChunkSize:          batch.ClampChunkSize(cfg.Duplication.AdSetChunkSize),
		AdChunkSize:             batch.ClampChunkSize(min(cfg.Duplication.AdChunkSize, cfg.Duplication.MaxBatchOperations)),
		ChunkDelay:              cfg.Duplication.ChunkDelay,
		ResolveTimeout:          cfg.Duplication.ResolveTimeout,
		ResolvePollInterval:     cfg.Duplication.ResolvePollInterval,
		JobPollDelay:            cfg.Duplication.JobPollDelay,
		JobMaxPollAttempts:      cfg.Duplication.JobMaxPollAttempts,
	}
}

// DecideAdSet picks the copy strategy for an ad set with childCount ads.
func DecideAdSet(childCount, syncMax int) Strategy {
	if childCount > syncMax {
		return StrategyAsyncManual
	}
	return StrategySyncCopy
}

// DecideCampaign picks the copy strategy for a campaign with totalChildren ad sets plus ads.
func DecideCampaign(totalChildren, syncMax int, crossAccount bool) Strategy {
	if crossAccount || totalChildren > syncMax {
		return StrategyAsyncDoubleBatch
	}
	return StrategySyncCopy
}
