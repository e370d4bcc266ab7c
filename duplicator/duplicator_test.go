package duplicator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/batch"
	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra/produce"
	"github.com/tnqbao/gau-ads-orchestrator/provider"
)

func TestDecideAdSetBoundary(t *testing.T) {
	assert.Equal(t, StrategySyncCopy, DecideAdSet(0, 2))
	assert.Equal(t, StrategySyncCopy, DecideAdSet(2, 2))
	assert.Equal(t, StrategyAsyncManual, DecideAdSet(3, 2))
}

func TestDecideCampaignBoundary(t *testing.T) {
	assert.Equal(t, StrategySyncCopy, DecideCampaign(3, 3, false))
	assert.Equal(t, StrategyAsyncDoubleBatch, DecideCampaign(4, 3, false))
	assert.Equal(t, StrategyAsyncDoubleBatch, DecideCampaign(1, 3, true))
}

func TestDuplicateAdSetSyncAtLimit(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.adSetAds["as1"] = refs("ad1", "ad2")

	res, err := h.dup.DuplicateAdSet(context.Background(), "as1", "c9", Options{
		DeepCopy: true, NewName: "Copy", AdAccountID: "act_1", AccessToken: "tok",
	})
	require.NoError(err)

	require.Equal(ModeSync, res.Mode)
	require.Equal(StrategySyncCopy, res.Strategy)
	require.Len(h.graph.copyAdSets, 1)
	require.True(h.graph.copyAdSets[0].opts.DeepCopy)
	require.Equal("c9", h.graph.copyAdSets[0].target)
	require.Empty(h.graph.submits)
	require.Equal("Copy", h.graph.renames[res.NewAdSetID])
	require.Empty(res.JobID)
}

func TestDuplicateAdSetAsyncAboveLimit(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.adSetAds["as1"] = refs("ad1", "ad2", "ad3")

	res, err := h.dup.DuplicateAdSet(context.Background(), "as1", "c9", Options{
		DeepCopy: true, StatusOption: "PAUSED", AdAccountID: "act_1", AccessToken: "tok",
	})
	require.NoError(err)

	require.Equal(ModeAsync, res.Mode)
	require.Equal(StrategyAsyncManual, res.Strategy)
	require.Len(h.graph.copyAdSets, 1)
	require.False(h.graph.copyAdSets[0].opts.DeepCopy, "shell must be shallow")

	require.Len(h.graph.submits, 3, "one ad per batch")
	for i, s := range h.graph.submits {
		require.Len(s.ops, 1)
		op := s.ops[0]
		require.Equal("POST", op.Method)
		require.Equal("ad"+string(rune('1'+i))+"/copies", op.RelativeURL)
		require.Contains(op.Body, "adset_id="+res.NewAdSetID)
		require.Contains(op.Body, "status_option=PAUSED")
	}
	require.Len(res.BatchTrackingIDs, 3)
	require.Nil(res.Partial)
	require.Equal(3, res.AdsAttempted)
	require.NotEmpty(res.JobID)
}

func TestDuplicateAdSetChunkFailureContinues(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.adSetAds["as1"] = refs("ad1", "ad2", "ad3")
	h.graph.submitFunc = func(name string, ops []batch.Operation) (map[string]any, error) {
		if ops[0].RelativeURL == "ad2/copies" {
			return nil, &apperr.RemoteUploadError{Payload: apperr.GraphError{Message: "Invalid parameter", ErrorUserMsg: "Ad is archived."}}
		}
		return map[string]any{"id": "b-" + ops[0].RelativeURL}, nil
	}

	res, err := h.dup.DuplicateAdSet(context.Background(), "as1", "c9", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)

	require.Len(h.graph.submits, 3)
	require.Equal([]string{"b-ad1/copies", "b-ad3/copies"}, res.BatchTrackingIDs)
	require.NotNil(res.Partial)
	require.Len(res.Partial.ChunkErrors, 1)
	ce := res.Partial.ChunkErrors[0]
	require.Equal(1, ce.ChunkIndex)
	require.Equal([]string{"ad2"}, ce.SourceIDs)
	require.Equal("Ad is archived.", ce.Message)
}

func TestDuplicateAdSetWaitsBetweenChunks(t *testing.T) {
	h := newHarness(testSettings())
	h.graph.adSetAds["as1"] = refs("ad1", "ad2", "ad3")
	start := h.clock.Now()

	_, err := h.dup.DuplicateAdSet(context.Background(), "as1", "c9", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(t, err)
	assert.Equal(t, time.Second, h.clock.Now().Sub(start))
}

func TestTrackingIDFallbacks(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.adSetAds["as1"] = refs("ad1", "ad2", "ad3")
	h.graph.submitFunc = func(name string, ops []batch.Operation) (map[string]any, error) {
		switch ops[0].RelativeURL {
		case "ad1/copies":
			return map[string]any{"async_batch_request_id": "alt-1"}, nil
		case "ad2/copies":
			return map[string]any{"success": true}, nil
		default:
			return map[string]any{"data": []any{map[string]any{"id": "nested-3"}}}, nil
		}
	}

	res, err := h.dup.DuplicateAdSet(context.Background(), "as1", "c9", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)
	require.Equal([]string{"alt-1", "nested-3"}, res.BatchTrackingIDs)
	require.NotNil(res.Partial)
	require.Empty(res.Partial.ChunkErrors)
	require.Equal([]string{"ad2"}, res.Partial.Untracked)

	h2 := newHarness(testSettings())
	h2.graph.adSetAds["as1"] = refs("ad1", "ad2", "ad3")
	h2.graph.submitFunc = func(name string, ops []batch.Operation) (map[string]any, error) {
		return map[string]any{}, nil
	}
	h2.graph.pending = []map[string]any{
		{"id": "p-0", "name": "adset_adset-1_ads_0"},
		{"id": "p-1", "name": "adset_adset-1_ads_1"},
		{"id": "p-2", "name": "adset_adset-1_ads_2"},
	}
	res2, err := h2.dup.DuplicateAdSet(context.Background(), "as1", "c9", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)
	require.Equal("adset-1", res2.NewAdSetID)
	require.Equal([]string{"p-0", "p-1", "p-2"}, res2.BatchTrackingIDs)
	require.Nil(res2.Partial)
}

func TestUntrackedChunksAreNotFailures(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.adSetAds["as1"] = refs("ad1", "ad2", "ad3")
	h.graph.submitFunc = func(name string, ops []batch.Operation) (map[string]any, error) {
		return map[string]any{"success": true}, nil
	}

	res, err := h.dup.DuplicateAdSet(context.Background(), "as1", "c9", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)
	require.Empty(res.BatchTrackingIDs)
	require.Equal([]string{"ad1", "ad2", "ad3"}, res.Partial.Untracked)

	job := loadJob(t, h, res.JobID)
	require.Equal(entity.DuplicationStatusPartial, job.Status)
	require.Equal(3, job.UntrackedCount)
	require.Zero(job.FailedCount)
	require.Empty(h.scheduler.messages)
}

func TestDuplicateAdSetShellFailureIsFatal(t *testing.T) {
	h := newHarness(testSettings())
	h.graph.adSetAds["as1"] = refs("ad1", "ad2", "ad3")
	h.graph.copyErr = errors.New("copy rejected")

	res, err := h.dup.DuplicateAdSet(context.Background(), "as1", "c9", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Empty(t, h.graph.submits)
}

func TestStructureFetchFailure(t *testing.T) {
	h := newHarness(testSettings())
	h.graph.listErr = errors.New("timeout")

	_, err := h.dup.DuplicateAdSet(context.Background(), "as1", "c9", Options{DeepCopy: true, AdAccountID: "act_1"})
	var fetchErr *apperr.DuplicationStructureFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "as1", fetchErr.SourceID)

	_, err = h.dup.DuplicateCampaign(context.Background(), "c1", "", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, h.graph.copyCampaigns)
}

func TestShallowAdSetCopySkipsInspection(t *testing.T) {
	h := newHarness(testSettings())
	h.graph.listErr = errors.New("must not be called")

	res, err := h.dup.DuplicateAdSet(context.Background(), "as1", "c9", Options{AdAccountID: "act_1"})
	require.NoError(t, err)
	assert.Equal(t, ModeSync, res.Mode)
}

func TestDuplicateCampaignSyncAtLimit(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.campaignAdSets["c1"] = refs("a1")
	h.graph.adSetAds["a1"] = refs("ad1", "ad2")

	res, err := h.dup.DuplicateCampaign(context.Background(), "c1", "act_1", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)
	require.Equal(ModeSync, res.Mode)
	require.Len(h.graph.copyCampaigns, 1)
	require.True(h.graph.copyCampaigns[0].opts.DeepCopy)
	require.Empty(h.graph.submits)
	require.Equal(1, res.AdSetsAttempted)
	require.Equal(2, res.AdsAttempted)
}

func TestDuplicateCampaignSkipsUnmappedAds(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.campaignAdSets["c1"] = refs("a1", "a2")
	h.graph.adSetAds["a1"] = refs("ad1", "ad2")
	h.graph.adSetAds["a2"] = refs("ad3")
	h.graph.submitFunc = func(name string, ops []batch.Operation) (map[string]any, error) {
		switch ops[0].RelativeURL {
		case "a1/copies":
			return map[string]any{"id": "batch-a1", "copied_adset_id": "new-a1"}, nil
		case "a2/copies":
			return map[string]any{"id": "batch-a2"}, nil
		}
		return map[string]any{"id": "batch-ads"}, nil
	}

	res, err := h.dup.DuplicateCampaign(context.Background(), "c1", "", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)

	require.Equal(ModeAsync, res.Mode)
	require.Equal(StrategyAsyncDoubleBatch, res.Strategy)
	require.Len(h.graph.copyCampaigns, 1)
	require.False(h.graph.copyCampaigns[0].opts.DeepCopy)

	require.Equal(map[string]string{"a1": "new-a1"}, res.IDMapping)
	require.Equal([]string{"batch-a1", "batch-a2"}, res.PhaseABatchIDs)
	require.Equal([]string{"batch-ads"}, res.PhaseBBatchIDs)
	require.Equal(2, res.AdSetsAttempted)
	require.Equal(1, res.AdSetsMapped)
	require.Equal(3, res.AdsAttempted)
	require.Equal(2, res.AdsMapped)

	require.NotNil(res.Partial)
	require.Equal([]string{"ad3"}, res.Partial.Skipped)
	require.Empty(res.Partial.ChunkErrors)
	require.NotContains(h.graph.submittedRelativeURLs(), "ad3/copies")

	last := h.graph.submits[len(h.graph.submits)-1]
	require.Len(last.ops, 2, "phase B ads share one chunk")
	for _, op := range last.ops {
		require.Contains(op.Body, "adset_id=new-a1")
	}

	phaseA := h.graph.submits[0].ops[0]
	require.Equal("adset_a1", phaseA.Name)
	require.Contains(phaseA.Body, "campaign_id="+res.NewCampaignID)
}

func TestDuplicateCampaignResolvesFromBatchResults(t *testing.T) {
	require := require.New(t)
	settings := testSettings()
	settings.ResolveTimeout = 10 * time.Second
	h := newHarness(settings)
	h.graph.campaignAdSets["c1"] = refs("a1", "a2")
	h.graph.adSetAds["a1"] = refs("ad1")
	h.graph.adSetAds["a2"] = refs("ad2", "ad3")
	h.graph.submitFunc = func(name string, ops []batch.Operation) (map[string]any, error) {
		if strings.HasSuffix(ops[0].RelativeURL, "/copies") && strings.HasPrefix(ops[0].RelativeURL, "a") && !strings.HasPrefix(ops[0].RelativeURL, "ad") {
			return map[string]any{"id": "batch-" + strings.TrimSuffix(ops[0].RelativeURL, "/copies")}, nil
		}
		return map[string]any{"id": "batch-ads"}, nil
	}
	h.graph.statuses["batch-a1"] = provider.BatchStatus{ID: "batch-a1", IsCompleted: true, SuccessCount: 1}
	h.graph.statuses["batch-a2"] = provider.BatchStatus{ID: "batch-a2", IsCompleted: true, SuccessCount: 1}
	h.graph.results["batch-a1"] = []provider.BatchRequestResult{{Name: "adset_a1", Result: map[string]any{"copied_adset_id": "new-a1"}}}
	h.graph.results["batch-a2"] = []provider.BatchRequestResult{{Name: "adset_a2", Result: map[string]any{"copied_adset_id": "new-a2"}}}

	res, err := h.dup.DuplicateCampaign(context.Background(), "c1", "", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)

	require.Equal(map[string]string{"a1": "new-a1", "a2": "new-a2"}, res.IDMapping)
	require.Equal(3, res.AdsMapped)
	require.Nil(res.Partial)
}

func TestCampaignFinishesAfterCallerCancels(t *testing.T) {
	require := require.New(t)
	settings := testSettings()
	settings.ResolveTimeout = 10 * time.Second
	h := newHarness(settings)
	h.graph.campaignAdSets["c1"] = refs("a1", "a2")
	h.graph.adSetAds["a1"] = refs("ad1")
	h.graph.adSetAds["a2"] = refs("ad2", "ad3")
	h.graph.statuses["batch-a1"] = provider.BatchStatus{ID: "batch-a1", IsCompleted: true, SuccessCount: 1}
	h.graph.statuses["batch-a2"] = provider.BatchStatus{ID: "batch-a2", IsCompleted: true, SuccessCount: 1}
	h.graph.results["batch-a1"] = []provider.BatchRequestResult{{Name: "adset_a1", Result: map[string]any{"copied_adset_id": "new-a1"}}}
	h.graph.results["batch-a2"] = []provider.BatchRequestResult{{Name: "adset_a2", Result: map[string]any{"copied_adset_id": "new-a2"}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.graph.submitFunc = func(name string, ops []batch.Operation) (map[string]any, error) {
		// The client disconnects once the first chunk is in.
		cancel()
		url := ops[0].RelativeURL
		if strings.HasPrefix(url, "a") && !strings.HasPrefix(url, "ad") {
			return map[string]any{"id": "batch-" + strings.TrimSuffix(url, "/copies")}, nil
		}
		return map[string]any{"id": "batch-ads"}, nil
	}

	res, err := h.dup.DuplicateCampaign(ctx, "c1", "", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)

	require.Equal([]string{"batch-a1", "batch-a2"}, res.PhaseABatchIDs)
	require.Equal(map[string]string{"a1": "new-a1", "a2": "new-a2"}, res.IDMapping)
	require.Equal([]string{"batch-ads"}, res.PhaseBBatchIDs)
	require.Nil(res.Partial)
	require.NotEmpty(res.JobID)
	require.Equal(1, h.jobs.Count())
}

func TestAdSetChunksFinishAfterCallerCancels(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.adSetAds["as1"] = refs("ad1", "ad2", "ad3")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	h.graph.submitFunc = func(name string, _ []batch.Operation) (map[string]any, error) {
		cancel()
		calls++
		return map[string]any{"id": fmt.Sprintf("batch-%d", calls)}, nil
	}

	res, err := h.dup.DuplicateAdSet(ctx, "as1", "c9", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)

	require.Len(h.graph.submits, 3)
	require.Equal([]string{"batch-1", "batch-2", "batch-3"}, res.BatchTrackingIDs)
	require.Nil(res.Partial)
	require.Equal(1, h.jobs.Count())
}

func TestResolveGivesUpAfterTimeout(t *testing.T) {
	require := require.New(t)
	settings := testSettings()
	settings.ResolveTimeout = 10 * time.Second
	h := newHarness(settings)
	h.graph.campaignAdSets["c1"] = refs("a1", "a2")
	h.graph.adSetAds["a1"] = refs("ad1")
	h.graph.adSetAds["a2"] = refs("ad2")

	res, err := h.dup.DuplicateCampaign(context.Background(), "c1", "", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)

	require.Empty(res.IDMapping)
	require.ElementsMatch([]string{"ad1", "ad2"}, res.Partial.Skipped)
	require.Len(res.PhaseBBatchIDs, 0)
	require.Greater(h.graph.statusHits, 2)
}

func TestCrossAccountCampaignRebuildsShell(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.campaignAdSets["c1"] = refs("a1")
	h.graph.objects["c1"] = map[string]any{
		"name":                  "Spring",
		"objective":             "OUTCOME_SALES",
		"special_ad_categories": []any{"HOUSING"},
		"daily_budget":          "5000",
	}

	res, err := h.dup.DuplicateCampaign(context.Background(), "c1", "act_2", Options{
		DeepCopy: true, NewName: "Spring copy", AdAccountID: "act_1",
	})
	require.NoError(err)

	require.Equal(StrategyAsyncDoubleBatch, res.Strategy)
	require.Empty(h.graph.copyCampaigns)
	require.Len(h.graph.created, 1)
	fields := h.graph.created[0]
	require.Equal("act_2", fields.Get("_account"))
	require.Equal("Spring copy", fields.Get("name"))
	require.Equal("OUTCOME_SALES", fields.Get("objective"))
	require.Equal(`["HOUSING"]`, fields.Get("special_ad_categories"))
	require.Equal("PAUSED", fields.Get("status"))
	require.Empty(h.graph.renames)

	require.Len(h.graph.submits, 1)
	require.Equal("act_2", h.graph.submits[0].account)
}

func TestCampaignShellFailureIsFatal(t *testing.T) {
	h := newHarness(testSettings())
	h.graph.campaignAdSets["c1"] = refs("a1", "a2", "a3", "a4")
	h.graph.copyErr = errors.New("no permission")

	_, err := h.dup.DuplicateCampaign(context.Background(), "c1", "", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.Error(t, err)
	assert.Empty(t, h.graph.submits)
}

func TestGetBatchStatusExtractsCreatedObject(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.statuses["b1"] = provider.BatchStatus{ID: "b1", IsCompleted: true, TotalCount: 2, SuccessCount: 1, ErrorCount: 1}
	h.graph.results["b1"] = []provider.BatchRequestResult{
		{Name: "ad_1", Error: map[string]any{"message": "nope"}},
		{Name: "ad_2", Result: map[string]any{"copied_ad_id": "777"}},
	}

	status, err := h.dup.GetBatchStatus(context.Background(), "b1", "tok")
	require.NoError(err)
	require.True(status.IsCompleted)
	require.Equal(2, status.TotalCount)
	require.Equal("777", status.CreatedObjectID)

	pending, err := h.dup.GetBatchStatus(context.Background(), "b2", "tok")
	require.NoError(err)
	require.False(pending.IsCompleted)
	require.Empty(pending.CreatedObjectID)
}

func loadJob(t *testing.T, h *harness, id string) *entity.DuplicationJob {
	t.Helper()
	job, err := h.dup.GetJob(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	return job
}

func TestAsyncDuplicationPersistsAndPollsJob(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.adSetAds["as1"] = refs("ad1", "ad2", "ad3")
	ctx := context.Background()

	res, err := h.dup.DuplicateAdSet(ctx, "as1", "c9", Options{DeepCopy: true, AdAccountID: "act_1", AccessToken: "tok"})
	require.NoError(err)

	job := loadJob(t, h, res.JobID)
	require.Equal(entity.DuplicationStatusSubmitted, job.Status)
	require.Equal(res.NewAdSetID, job.NewID)
	var tracked []string
	require.NoError(json.Unmarshal(job.TrackingIDs, &tracked))
	require.Equal(res.BatchTrackingIDs, tracked)

	require.Len(h.scheduler.messages, 1)
	require.Equal(res.JobID, h.scheduler.messages[0].JobID)
	require.Equal("tok", h.scheduler.messages[0].AccessToken)
	require.Equal(15*time.Second, h.scheduler.delays[0])

	// Only the first batch is done.
	h.graph.statuses[tracked[0]] = provider.BatchStatus{IsCompleted: true, SuccessCount: 1}
	require.NoError(h.dup.PollJob(ctx, h.scheduler.messages[0]))
	job = loadJob(t, h, res.JobID)
	require.Equal(entity.DuplicationStatusRunning, job.Status)
	require.Equal(1, job.SucceededCount)
	require.Len(h.scheduler.messages, 2)
	require.Equal(2, h.scheduler.messages[1].Attempt)

	for _, id := range tracked[1:] {
		h.graph.statuses[id] = provider.BatchStatus{IsCompleted: true, SuccessCount: 1}
	}
	require.NoError(h.dup.PollJob(ctx, h.scheduler.messages[1]))
	job = loadJob(t, h, res.JobID)
	require.Equal(entity.DuplicationStatusCompleted, job.Status)
	require.Equal(3, job.SucceededCount)
	require.NotNil(job.CompletedAt)
	require.Len(h.scheduler.messages, 2, "no poll after completion")

	require.Len(h.notifier.sent, 1)
	require.Equal(string(entity.DuplicationStatusCompleted), h.notifier.sent[0].status)

	// Late duplicate poll is ignored.
	require.NoError(h.dup.PollJob(ctx, h.scheduler.messages[1]))
	require.Len(h.notifier.sent, 1)
}

func TestPollJobGivesUp(t *testing.T) {
	require := require.New(t)
	h := newHarness(testSettings())
	h.graph.adSetAds["as1"] = refs("ad1", "ad2", "ad3")
	ctx := context.Background()

	res, err := h.dup.DuplicateAdSet(ctx, "as1", "c9", Options{DeepCopy: true, AdAccountID: "act_1"})
	require.NoError(err)

	for attempt := 1; attempt <= 3; attempt++ {
		require.NoError(h.dup.PollJob(ctx, produce.BatchPollMessage{JobID: res.JobID, Attempt: attempt}))
	}
	job := loadJob(t, h, res.JobID)
	require.Equal(entity.DuplicationStatusPartial, job.Status)
	require.Equal(3, job.PollAttempts)
	require.Len(h.notifier.sent, 1)
}

func TestPollJobUnknown(t *testing.T) {
	h := newHarness(testSettings())
	assert.NoError(t, h.dup.PollJob(context.Background(), produce.BatchPollMessage{JobID: uuid.NewString()}))
	assert.NoError(t, h.dup.PollJob(context.Background(), produce.BatchPollMessage{JobID: "not-a-uuid"}))

	_, err := h.dup.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
