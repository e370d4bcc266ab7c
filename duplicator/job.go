package duplicator

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra/produce"
)

// track persists an async duplication and schedules the first poll. It returns the job id,
// or "" when there is nothing to follow or persistence is not configured.
func (d *Duplicator) track(ctx context.Context, job *entity.DuplicationJob, trackingIDs []string, result any, token string) string {
	if d.jobs == nil {
		return ""
	}

	job.ID = uuid.New()
	job.TrackingIDs = mustJSON(trackingIDs)
	job.PendingIDs = mustJSON(trackingIDs)
	job.Result = mustJSON(result)
	job.Status = entity.DuplicationStatusSubmitted
	if len(trackingIDs) == 0 {
		d.finish(job)
	}

	if err := d.jobs.Create(ctx, job); err != nil {
		d.logger.ErrorWithContextf(ctx, err, "[Duplicator] Failed to persist job for %s", job.SourceID)
		return ""
	}

	if job.IsTerminal() {
		d.notify(ctx, job)
		return job.ID.String()
	}

	if d.scheduler != nil {
		msg := produce.BatchPollMessage{JobID: job.ID.String(), AccessToken: token, Attempt: 1}
		if err := d.scheduler.PublishBatchPoll(ctx, msg, d.settings.JobPollDelay); err != nil {
			d.logger.ErrorWithContextf(ctx, err, "[Duplicator] Failed to schedule poll for job %s", job.ID)
		}
	}
	return job.ID.String()
}

// GetJob returns a duplication job, apperr.ErrNotFound when unknown.
func (d *Duplicator) GetJob(ctx context.Context, id uuid.UUID) (*entity.DuplicationJob, error) {
	if d.jobs == nil {
		return nil, apperr.ErrNotFound
	}
	job, err := d.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperr.ErrNotFound
	}
	return job, nil
}

// PollJob checks the pending batches of a job once. Finished batches leave the pending list;
// when none remain, or the attempt budget is spent, the job reaches a terminal status.
// Otherwise the next poll is scheduled.
func (d *Duplicator) PollJob(ctx context.Context, msg produce.BatchPollMessage) error {
	id, err := uuid.Parse(msg.JobID)
	if err != nil {
		d.logger.WarningWithContextf(ctx, "[Duplicator] Dropping poll with invalid job id %q", msg.JobID)
		return nil
	}
	job, err := d.jobs.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if job == nil {
		d.logger.WarningWithContextf(ctx, "[Duplicator] Job %s no longer exists", id)
		return nil
	}
	if job.IsTerminal() {
		return nil
	}

	var pending []string
	if len(job.PendingIDs) > 0 {
		if err := json.Unmarshal(job.PendingIDs, &pending); err != nil {
			return fmt.Errorf("failed to decode pending batches of job %s: %w", id, err)
		}
	}

	still := make([]string, 0, len(pending))
	for _, batchID := range pending {
		status, err := d.GetBatchStatus(ctx, batchID, msg.AccessToken)
		if err != nil {
			d.logger.WarningWithContextf(ctx, "[Duplicator] Job %s: batch %s status unavailable: %v", id, batchID, err)
			still = append(still, batchID)
			continue
		}
		if !status.IsCompleted {
			still = append(still, batchID)
			continue
		}
		job.SucceededCount += status.SuccessCount
		job.FailedCount += status.ErrorCount
		d.logger.InfoWithContextf(ctx, "[Duplicator] Job %s: batch %s done (%d ok, %d failed)",
			id, batchID, status.SuccessCount, status.ErrorCount)
	}

	job.PendingIDs = mustJSON(still)
	job.PollAttempts++

	switch {
	case len(still) == 0:
		d.finish(job)
	case job.PollAttempts >= d.settings.JobMaxPollAttempts:
		d.logger.WarningWithContextf(ctx, "[Duplicator] Job %s gave up with %d batches pending", id, len(still))
		d.finish(job)
		if job.Status == entity.DuplicationStatusCompleted {
			job.Status = entity.DuplicationStatusPartial
		}
	default:
		job.Status = entity.DuplicationStatusRunning
	}

	if err := d.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}

	if job.IsTerminal() {
		d.notify(ctx, job)
		return nil
	}

	if d.scheduler == nil {
		return nil
	}
	next := produce.BatchPollMessage{JobID: msg.JobID, AccessToken: msg.AccessToken, Attempt: msg.Attempt + 1}
	return d.scheduler.PublishBatchPoll(ctx, next, d.settings.JobPollDelay)
}

// finish sets the terminal status from the counters.
func (d *Duplicator) finish(job *entity.DuplicationJob) {
	now := d.now()
	job.CompletedAt = &now
	switch {
	case job.FailedCount == 0 && job.SkippedCount == 0 && job.UntrackedCount == 0:
		job.Status = entity.DuplicationStatusCompleted
	case job.SucceededCount == 0 && job.NewID == "":
		job.Status = entity.DuplicationStatusFailed
	default:
		job.Status = entity.DuplicationStatusPartial
	}
}

func (d *Duplicator) notify(ctx context.Context, job *entity.DuplicationJob) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.SendDuplicationFinished(ctx, job.ID.String(), string(job.Status), job.NewID,
		job.SucceededCount, job.FailedCount); err != nil {
		d.logger.WarningWithContextf(ctx, "[Duplicator] Failed to announce job %s: %v", job.ID, err)
	}
}

func mustJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(raw)
}
