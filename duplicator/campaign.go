package duplicator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/batch"
	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/provider"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

// Fields read from the source campaign when it has to be re-created in another account.
const campaignShellFields = "name,objective,status,special_ad_categories,buying_type,bid_strategy,daily_budget,lifetime_budget,spend_cap"

const adSetRequestPrefix = "adset_"

type adSetBranch struct {
	adSet provider.EntityRef
	ads   []provider.EntityRef
}

// DuplicateCampaign copies a campaign into targetAccountID (the source account when empty).
// Large or cross-account campaigns are rebuilt in two phases: ad sets first, then the ads
// of every ad set whose copy id is known.
func (d *Duplicator) DuplicateCampaign(ctx context.Context, sourceCampaignID, targetAccountID string, opts Options) (*CampaignResult, error) {
	ctx, span := tracer.Start(ctx, "duplicator.campaign", trace.WithAttributes(
		attribute.String("source_id", sourceCampaignID),
		attribute.String("target_account_id", targetAccountID),
	))
	defer span.End()

	sourceAccount := opts.AdAccountID
	if targetAccountID == "" {
		targetAccountID = sourceAccount
	}
	crossAccount := utils.NormalizeAdAccountID(targetAccountID) != utils.NormalizeAdAccountID(sourceAccount)

	var branches []adSetBranch
	total := 0
	if opts.DeepCopy {
		var err error
		branches, total, err = d.inspectCampaign(ctx, sourceCampaignID, sourceAccount, opts.AccessToken)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	strategy := DecideCampaign(total, d.settings.CampaignSyncMaxChildren, crossAccount)
	span.SetAttributes(attribute.String("strategy", string(strategy)), attribute.Int("child_count", total))
	d.logger.InfoWithContextf(ctx, "[Duplicator] Campaign %s has %d child objects (cross account: %t), using %s",
		sourceCampaignID, total, crossAccount, strategy)

	if strategy == StrategySyncCopy {
		newID, err := d.graph.CopyCampaign(ctx, sourceCampaignID, sourceAccount, opts.AccessToken, provider.CopyOptions{
			DeepCopy:     opts.DeepCopy,
			StatusOption: opts.StatusOption,
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		return &CampaignResult{
			Mode:            ModeSync,
			Strategy:        strategy,
			NewCampaignID:   newID,
			AdSetsAttempted: len(branches),
			AdsAttempted:    total - len(branches),
			RenameError:     d.rename(ctx, newID, opts.NewName, sourceAccount, opts.AccessToken),
		}, nil
	}

	newID, renameErr, err := d.createShell(ctx, sourceCampaignID, sourceAccount, targetAccountID, crossAccount, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	// The shell exists now; both phases run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	result := &CampaignResult{
		Mode:          ModeAsync,
		Strategy:      strategy,
		NewCampaignID: newID,
		RenameError:   renameErr,
		IDMapping:     map[string]string{},
	}

	partial := &apperr.PartialBatchFailure{}

	// Phase A: ad sets into the new campaign.
	adSetOps := make([]pendingOp, len(branches))
	for i, b := range branches {
		body := map[string]string{"campaign_id": newID, "deep_copy": "false"}
		if opts.StatusOption != "" {
			body["status_option"] = opts.StatusOption
		}
		adSetOps[i] = pendingOp{
			sourceID: b.adSet.ID,
			op:       batch.BuildOperation(http.MethodPost, b.adSet.ID+"/copies", body).Named(adSetRequestPrefix + b.adSet.ID),
		}
	}
	result.AdSetsAttempted = len(adSetOps)

	phaseA := d.submitChunks(ctx, targetAccountID, opts.AccessToken, phaseAdSets, "campaign_"+newID, adSetOps, d.settings.AdSetChunkSize, partial)
	result.PhaseABatchIDs = trackingIDsOf(phaseA)

	for _, sub := range phaseA {
		for src, copied := range inlineCopies(sub) {
			result.IDMapping[src] = copied
		}
	}
	d.resolveAdSets(ctx, phaseA, result.IDMapping, opts.AccessToken)
	result.AdSetsMapped = len(result.IDMapping)

	// Phase B: ads of every ad set whose copy is known.
	var adOps []pendingOp
	for _, b := range branches {
		result.AdsAttempted += len(b.ads)
		newAdSetID, ok := result.IDMapping[b.adSet.ID]
		if !ok {
			for _, ad := range b.ads {
				partial.AddSkipped(ad.ID)
			}
			if len(b.ads) > 0 {
				d.logger.WarningWithContextf(ctx, "[Duplicator] Ad set %s has no copy yet, skipping its %d ads", b.adSet.ID, len(b.ads))
			}
			continue
		}
		for _, ad := range b.ads {
			adOps = append(adOps, pendingOp{sourceID: ad.ID, op: adCopyOperation(ad.ID, newAdSetID, opts.StatusOption)})
		}
	}
	result.AdsMapped = len(adOps)

	phaseB := d.submitChunks(ctx, targetAccountID, opts.AccessToken, phaseAds, "campaign_"+newID, adOps, d.settings.AdChunkSize, partial)
	result.PhaseBBatchIDs = trackingIDsOf(phaseB)
	result.Partial = partialOrNil(partial)

	job := &entity.DuplicationJob{
		UserID:         opts.UserID,
		Kind:           entity.DuplicationKindCampaign,
		SourceID:       sourceCampaignID,
		TargetID:       targetAccountID,
		AdAccountID:    targetAccountID,
		NewID:          newID,
		AttemptedCount: result.AdSetsAttempted + result.AdsAttempted,
		SkippedCount:   len(partial.Skipped),
		UntrackedCount: len(partial.Untracked),
		FailedCount:    failedSources(partial),
	}
	result.JobID = d.track(ctx, job, result.BatchTrackingIDs(), result, opts.AccessToken)

	d.logger.InfoWithContextf(ctx, "[Duplicator] Campaign %s -> %s: %d/%d ad sets mapped, %d/%d ads submitted",
		sourceCampaignID, newID, result.AdSetsMapped, result.AdSetsAttempted, result.AdsMapped, result.AdsAttempted)
	return result, nil
}

func (d *Duplicator) inspectCampaign(ctx context.Context, campaignID, accountID, token string) ([]adSetBranch, int, error) {
	adSets, err := d.graph.ListCampaignAdSets(ctx, campaignID, accountID, token)
	if err != nil {
		return nil, 0, &apperr.DuplicationStructureFetchError{SourceID: campaignID, Err: err}
	}

	branches := make([]adSetBranch, len(adSets))
	total := len(adSets)
	for i, as := range adSets {
		ads, err := d.graph.ListAdSetAds(ctx, as.ID, accountID, token)
		if err != nil {
			return nil, 0, &apperr.DuplicationStructureFetchError{SourceID: campaignID, Err: fmt.Errorf("ad set %s: %w", as.ID, err)}
		}
		branches[i] = adSetBranch{adSet: as, ads: ads}
		total += len(ads)
	}
	return branches, total, nil
}

// createShell makes the childless target campaign. The native copy endpoint only works inside
// one account, so cross-account copies re-create the campaign from its fields.
func (d *Duplicator) createShell(ctx context.Context, campaignID, sourceAccount, targetAccount string, crossAccount bool, opts Options) (string, string, error) {
	if !crossAccount {
		newID, err := d.graph.CopyCampaign(ctx, campaignID, sourceAccount, opts.AccessToken, provider.CopyOptions{
			DeepCopy:     false,
			StatusOption: opts.StatusOption,
		})
		if err != nil {
			return "", "", err
		}
		return newID, d.rename(ctx, newID, opts.NewName, sourceAccount, opts.AccessToken), nil
	}

	source, err := d.graph.GetObject(ctx, campaignID, campaignShellFields, sourceAccount, opts.AccessToken)
	if err != nil {
		return "", "", &apperr.DuplicationStructureFetchError{SourceID: campaignID, Err: err}
	}
	newID, err := d.graph.CreateCampaign(ctx, targetAccount, opts.AccessToken, shellFields(source, opts))
	if err != nil {
		return "", "", err
	}
	return newID, "", nil
}

// shellFields turns a fetched campaign into create parameters for another account.
func shellFields(source map[string]any, opts Options) url.Values {
	fields := url.Values{}
	for _, key := range strings.Split(campaignShellFields, ",") {
		v, ok := source[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			fields.Set(key, t)
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprintf("%q", fmt.Sprint(p)))
			}
			fields.Set(key, "["+strings.Join(parts, ",")+"]")
		default:
			fields.Set(key, fmt.Sprint(t))
		}
	}
	if _, ok := fields["special_ad_categories"]; !ok {
		fields.Set("special_ad_categories", "[]")
	}
	if opts.NewName != "" {
		fields.Set("name", opts.NewName)
	}
	switch opts.StatusOption {
	case "ACTIVE", "PAUSED":
		fields.Set("status", opts.StatusOption)
	case "":
		fields.Set("status", "PAUSED")
	}
	return fields
}

// inlineCopies reads ad set copies the provider already executed while accepting the batch.
func inlineCopies(sub submission) map[string]string {
	out := map[string]string{}
	if sub.response == nil {
		return out
	}

	// A bare "id" at the top level is the batch itself, only explicit copy keys count here.
	if len(sub.sourceIDs) == 1 {
		if id, ok := stringField(sub.response, "copied_adset_id"); ok {
			out[sub.sourceIDs[0]] = id
			return out
		}
	}

	for _, key := range []string{"results", "data"} {
		entries, ok := sub.response[key].([]any)
		if !ok {
			continue
		}
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			name, _ := entry["name"].(string)
			if !strings.HasPrefix(name, adSetRequestPrefix) {
				continue
			}
			for _, body := range []string{"body", "result"} {
				if id, ok := batch.CopiedObjectID(entry[body]); ok {
					out[strings.TrimPrefix(name, adSetRequestPrefix)] = id
					break
				}
			}
		}
	}
	return out
}

func stringField(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok && s != ""
}

// resolveAdSets polls the Phase A batches until every ad set copy id is known or the resolve
// timeout passes. Ids already in mapping are kept.
func (d *Duplicator) resolveAdSets(ctx context.Context, phaseA []submission, mapping map[string]string, token string) {
	if d.settings.ResolveTimeout <= 0 {
		return
	}

	waiting := map[string]submission{}
	for _, sub := range phaseA {
		if sub.trackingID == "" {
			continue
		}
		for _, src := range sub.sourceIDs {
			if _, ok := mapping[src]; !ok {
				waiting[sub.trackingID] = sub
				break
			}
		}
	}
	if len(waiting) == 0 {
		return
	}

	ctx, span := tracer.Start(ctx, "duplicator.resolve_adsets", trace.WithAttributes(attribute.Int("batches", len(waiting))))
	defer span.End()

	deadline := d.now().Add(d.settings.ResolveTimeout)
	for len(waiting) > 0 {
		for trackingID := range waiting {
			status, err := d.graph.GetAsyncBatchStatus(ctx, trackingID, token)
			if err != nil {
				d.logger.WarningWithContextf(ctx, "[Duplicator] Status of batch %s unavailable: %v", trackingID, err)
				continue
			}
			if !status.IsCompleted {
				continue
			}
			results, err := d.graph.GetAsyncBatchResults(ctx, trackingID, token)
			if err != nil {
				d.logger.WarningWithContextf(ctx, "[Duplicator] Results of batch %s unavailable: %v", trackingID, err)
				continue
			}
			for _, r := range results {
				if !strings.HasPrefix(r.Name, adSetRequestPrefix) || r.Result == nil {
					continue
				}
				if id, ok := batch.CopiedObjectID(r.Result); ok {
					mapping[strings.TrimPrefix(r.Name, adSetRequestPrefix)] = id
				}
			}
			delete(waiting, trackingID)
		}

		if len(waiting) == 0 || !d.now().Before(deadline) {
			break
		}
		wait := d.settings.ResolvePollInterval
		if remaining := deadline.Sub(d.now()); remaining < wait {
			wait = remaining
		}
		if wait <= 0 {
			wait = time.Millisecond
		}
		if err := d.sleep(ctx, wait); err != nil {
			break
		}
	}

	if len(waiting) > 0 {
		d.logger.WarningWithContextf(ctx, "[Duplicator] %d ad set batches unresolved after %s", len(waiting), d.settings.ResolveTimeout)
	}
}
