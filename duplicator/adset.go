package duplicator

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/batch"
	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/provider"
)

// DuplicateAdSet copies an ad set into targetCampaignID. Ad sets with more ads than the
// sync limit get a shallow copy first and their ads are copied through async batches.
func (d *Duplicator) DuplicateAdSet(ctx context.Context, sourceAdSetID, targetCampaignID string, opts Options) (*AdSetResult, error) {
	ctx, span := tracer.Start(ctx, "duplicator.adset", trace.WithAttributes(
		attribute.String("source_id", sourceAdSetID),
		attribute.String("target_campaign_id", targetCampaignID),
	))
	defer span.End()

	var ads []provider.EntityRef
	if opts.DeepCopy {
		var err error
		ads, err = d.graph.ListAdSetAds(ctx, sourceAdSetID, opts.AdAccountID, opts.AccessToken)
		if err != nil {
			span.RecordError(err)
			return nil, &apperr.DuplicationStructureFetchError{SourceID: sourceAdSetID, Err: err}
		}
	}

	strategy := DecideAdSet(len(ads), d.settings.AdSetSyncMaxChildren)
	span.SetAttributes(attribute.String("strategy", string(strategy)), attribute.Int("child_count", len(ads)))
	d.logger.InfoWithContextf(ctx, "[Duplicator] Ad set %s has %d ads, using %s", sourceAdSetID, len(ads), strategy)

	if strategy == StrategySyncCopy {
		newID, err := d.graph.CopyAdSet(ctx, sourceAdSetID, targetCampaignID, opts.AdAccountID, opts.AccessToken, provider.CopyOptions{
			DeepCopy:     opts.DeepCopy,
			StatusOption: opts.StatusOption,
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		return &AdSetResult{
			Mode:         ModeSync,
			Strategy:     strategy,
			NewAdSetID:   newID,
			AdsAttempted: len(ads),
			RenameError:  d.rename(ctx, newID, opts.NewName, opts.AdAccountID, opts.AccessToken),
		}, nil
	}

	// The shell carries no children, its id is what the ad copies point at.
	newID, err := d.graph.CopyAdSet(ctx, sourceAdSetID, targetCampaignID, opts.AdAccountID, opts.AccessToken, provider.CopyOptions{
		DeepCopy:     false,
		StatusOption: opts.StatusOption,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	result := &AdSetResult{
		Mode:         ModeAsync,
		Strategy:     strategy,
		NewAdSetID:   newID,
		AdsAttempted: len(ads),
		RenameError:  d.rename(ctx, newID, opts.NewName, opts.AdAccountID, opts.AccessToken),
	}

	ops := make([]pendingOp, len(ads))
	for i, ad := range ads {
		ops[i] = pendingOp{sourceID: ad.ID, op: adCopyOperation(ad.ID, newID, opts.StatusOption)}
	}

	partial := &apperr.PartialBatchFailure{}
	subs := d.submitChunks(ctx, opts.AdAccountID, opts.AccessToken, phaseAds, "adset_"+newID, ops, d.settings.AdSetChunkSize, partial)
	result.BatchTrackingIDs = trackingIDsOf(subs)
	result.Partial = partialOrNil(partial)

	job := &entity.DuplicationJob{
		UserID:         opts.UserID,
		Kind:           entity.DuplicationKindAdSet,
		SourceID:       sourceAdSetID,
		TargetID:       targetCampaignID,
		AdAccountID:    opts.AdAccountID,
		NewID:          newID,
		AttemptedCount: len(ads),
		UntrackedCount: len(partial.Untracked),
		FailedCount:    failedSources(partial),
	}
	result.JobID = d.track(ctx, job, result.BatchTrackingIDs, result, opts.AccessToken)
	return result, nil
}

func adCopyOperation(adID, newAdSetID, statusOption string) batch.Operation {
	body := map[string]string{"adset_id": newAdSetID}
	if statusOption != "" {
		body["status_option"] = statusOption
	}
	return batch.BuildOperation(http.MethodPost, adID+"/copies", body).Named("ad_" + adID)
}

func failedSources(p *apperr.PartialBatchFailure) int {
	n := 0
	for _, ce := range p.ChunkErrors {
		n += len(ce.SourceIDs)
	}
	return n
}
