package duplicator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/batch"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
)

var (
	tracer = otel.Tracer("github.com/tnqbao/gau-ads-orchestrator/duplicator")
	meter  = otel.Meter("github.com/tnqbao/gau-ads-orchestrator/duplicator")
)

const (
	phaseAds    = "ads"
	phaseAdSets = "adsets"
)

type Duplicator struct {
	graph     GraphAPI
	jobs      JobRepository
	scheduler PollScheduler
	notifier  Notifier
	settings  Settings
	logger    *infra.LoggerClient

	submissions metric.Int64Counter
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

func New(graph GraphAPI, jobs JobRepository, scheduler PollScheduler, notifier Notifier, settings Settings, logger *infra.LoggerClient) *Duplicator {
	submissions, _ := meter.Int64Counter("duplication.batch_submissions",
		metric.WithDescription("Async batch submissions by phase and outcome"))
	return &Duplicator{
		graph:       graph,
		jobs:        jobs,
		scheduler:   scheduler,
		notifier:    notifier,
		settings:    settings,
		logger:      logger,
		submissions: submissions,
		sleep:       sleepContext,
		now:         time.Now,
	}
}

// submission is one accepted batch chunk.
type submission struct {
	index      int
	name       string
	trackingID string
	sourceIDs  []string
	response   map[string]any
}

// pendingOp is a batch operation together with the source object it copies.
type pendingOp struct {
	sourceID string
	op       batch.Operation
}

// submitChunks sends ops in chunks of size, pausing between chunks. A failed chunk is
// recorded in partial and the remaining chunks are still submitted.
func (d *Duplicator) submitChunks(ctx context.Context, accountID, token, phase, prefix string, ops []pendingOp, size int, partial *apperr.PartialBatchFailure) []submission {
	var out []submission
	for i, chunk := range batch.Chunk(ops, size) {
		if i > 0 && d.settings.ChunkDelay > 0 {
			if err := d.sleep(ctx, d.settings.ChunkDelay); err != nil {
				for j, rest := range batch.Chunk(ops, size)[i:] {
					partial.AddChunkError(phase, i+j, sourceIDsOf(rest), err)
				}
				return out
			}
		}

		name := fmt.Sprintf("%s_%s_%d", prefix, phase, i)
		sourceIDs := sourceIDsOf(chunk)
		operations := make([]batch.Operation, len(chunk))
		for j, p := range chunk {
			operations[j] = p.op
		}

		resp, err := d.graph.SubmitAsyncBatch(ctx, accountID, token, name, operations)
		if err != nil {
			d.count(ctx, phase, "error")
			d.logger.ErrorWithContextf(ctx, err, "[Duplicator] Chunk %d of phase %s failed", i, phase)
			partial.AddChunkError(phase, i, sourceIDs, err)
			continue
		}

		trackingID, ok := d.trackingID(ctx, accountID, token, name, resp)
		if !ok {
			d.count(ctx, phase, "untracked")
			d.logger.WarningWithContextf(ctx, "[Duplicator] Chunk %d of phase %s has no tracking id", i, phase)
			partial.AddUntracked(sourceIDs...)
		} else {
			d.count(ctx, phase, "ok")
		}

		out = append(out, submission{
			index:      i,
			name:       name,
			trackingID: trackingID,
			sourceIDs:  sourceIDs,
			response:   resp,
		})
	}
	return out
}

// trackingID runs the extraction chain over the response and falls back to the account's
// list of pending async requests.
func (d *Duplicator) trackingID(ctx context.Context, accountID, token, name string, resp map[string]any) (string, bool) {
	if id, ok := batch.ExtractTrackingID(resp); ok {
		return id, true
	}

	listing, err := d.graph.ListAsyncBatchRequests(ctx, accountID, token)
	if err != nil {
		d.logger.WarningWithContextf(ctx, "[Duplicator] Failed to list pending batches for %s: %v", accountID, err)
		return "", false
	}
	return batch.FindPendingByName(listing, name)
}

func (d *Duplicator) count(ctx context.Context, phase, outcome string) {
	if d.submissions != nil {
		d.submissions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("phase", phase),
			attribute.String("outcome", outcome),
		))
	}
}

// rename applies newName to objectID. A failure is reported but never undoes the copy.
func (d *Duplicator) rename(ctx context.Context, objectID, newName, accountID, token string) string {
	if newName == "" {
		return ""
	}
	if err := d.graph.Rename(ctx, objectID, newName, accountID, token); err != nil {
		d.logger.WarningWithContextf(ctx, "[Duplicator] Failed to rename %s: %v", objectID, err)
		return apperr.UserMessage(err)
	}
	return ""
}

func trackingIDsOf(subs []submission) []string {
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		if s.trackingID != "" {
			ids = append(ids, s.trackingID)
		}
	}
	return ids
}

func sourceIDsOf(ops []pendingOp) []string {
	ids := make([]string, len(ops))
	for i, p := range ops {
		ids[i] = p.sourceID
	}
	return ids
}

func partialOrNil(p *apperr.PartialBatchFailure) *apperr.PartialBatchFailure {
	if p.HasFailures() {
		return p
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
