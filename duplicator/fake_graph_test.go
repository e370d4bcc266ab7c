package duplicator

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/tnqbao/gau-ads-orchestrator/batch"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/infra/produce"
	"github.com/tnqbao/gau-ads-orchestrator/provider"
	"github.com/tnqbao/gau-ads-orchestrator/repository/repositorytest"
)

type copyCall struct {
	sourceID string
	target   string
	account  string
	opts     provider.CopyOptions
}

type submitCall struct {
	account string
	name    string
	ops     []batch.Operation
}

// fakeGraph is an in-memory Graph API. Unset maps behave like empty edges.
type fakeGraph struct {
	mu sync.Mutex

	adSetAds       map[string][]provider.EntityRef
	campaignAdSets map[string][]provider.EntityRef
	listErr        error
	objects        map[string]map[string]any

	copyErr       error
	copyAdSets    []copyCall
	copyCampaigns []copyCall
	created       []url.Values
	renames       map[string]string

	submits    []submitCall
	submitFunc func(name string, ops []batch.Operation) (map[string]any, error)
	pending    []map[string]any
	statuses   map[string]provider.BatchStatus
	results    map[string][]provider.BatchRequestResult
	statusHits int

	seq int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		adSetAds:       map[string][]provider.EntityRef{},
		campaignAdSets: map[string][]provider.EntityRef{},
		objects:        map[string]map[string]any{},
		renames:        map[string]string{},
		statuses:       map[string]provider.BatchStatus{},
		results:        map[string][]provider.BatchRequestResult{},
	}
}

func (f *fakeGraph) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeGraph) ListAdSetAds(_ context.Context, adSetID, _, _ string) ([]provider.EntityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.adSetAds[adSetID], nil
}

func (f *fakeGraph) ListCampaignAdSets(_ context.Context, campaignID, _, _ string) ([]provider.EntityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.campaignAdSets[campaignID], nil
}

func (f *fakeGraph) GetObject(_ context.Context, objectID, _, _, _ string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[objectID]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectID)
	}
	return obj, nil
}

func (f *fakeGraph) CopyAdSet(_ context.Context, adSetID, targetCampaignID, accountID, _ string, opts provider.CopyOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copyAdSets = append(f.copyAdSets, copyCall{sourceID: adSetID, target: targetCampaignID, account: accountID, opts: opts})
	if f.copyErr != nil {
		return "", f.copyErr
	}
	return f.nextID("adset"), nil
}

func (f *fakeGraph) CopyCampaign(_ context.Context, campaignID, accountID, _ string, opts provider.CopyOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copyCampaigns = append(f.copyCampaigns, copyCall{sourceID: campaignID, account: accountID, opts: opts})
	if f.copyErr != nil {
		return "", f.copyErr
	}
	return f.nextID("campaign"), nil
}

func (f *fakeGraph) CreateCampaign(_ context.Context, accountID, _ string, fields url.Values) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return "", f.copyErr
	}
	fields.Set("_account", accountID)
	f.created = append(f.created, fields)
	return f.nextID("campaign"), nil
}

func (f *fakeGraph) Rename(_ context.Context, objectID, name, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renames[objectID] = name
	return nil
}

func (f *fakeGraph) SubmitAsyncBatch(_ context.Context, accountID, _, name string, ops []batch.Operation) (map[string]any, error) {
	f.mu.Lock()
	f.submits = append(f.submits, submitCall{account: accountID, name: name, ops: ops})
	fn := f.submitFunc
	id := f.nextID("batch")
	f.mu.Unlock()
	if fn != nil {
		return fn(name, ops)
	}
	return map[string]any{"id": id}, nil
}

func (f *fakeGraph) ListAsyncBatchRequests(_ context.Context, _, _ string) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending, nil
}

func (f *fakeGraph) GetAsyncBatchStatus(_ context.Context, batchID, _ string) (provider.BatchStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusHits++
	status, ok := f.statuses[batchID]
	if !ok {
		return provider.BatchStatus{ID: batchID}, nil
	}
	return status, nil
}

func (f *fakeGraph) GetAsyncBatchResults(_ context.Context, batchID, _ string) ([]provider.BatchRequestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[batchID], nil
}

// submittedRelativeURLs lists every operation URL sent in batches, in order.
func (f *fakeGraph) submittedRelativeURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var urls []string
	for _, s := range f.submits {
		for _, op := range s.ops {
			urls = append(urls, op.RelativeURL)
		}
	}
	return urls
}

type fakeScheduler struct {
	mu       sync.Mutex
	messages []produce.BatchPollMessage
	delays   []time.Duration
}

func (s *fakeScheduler) PublishBatchPoll(_ context.Context, msg produce.BatchPollMessage, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.delays = append(s.delays, delay)
	return nil
}

type finishedJob struct {
	jobID     string
	status    string
	newID     string
	succeeded int
	failed    int
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []finishedJob
}

func (n *fakeNotifier) SendDuplicationFinished(_ context.Context, jobID, status, newID string, succeeded, failed int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, finishedJob{jobID, status, newID, succeeded, failed})
	return nil
}

// fakeClock advances by the slept duration so resolve loops terminate without real waiting.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

type harness struct {
	dup       *Duplicator
	graph     *fakeGraph
	jobs      *repositorytest.MemoryDuplicationJobRepository
	scheduler *fakeScheduler
	notifier  *fakeNotifier
	clock     *fakeClock
}

func testSettings() Settings {
	return Settings{
		AdSetSyncMaxChildren:    2,
		CampaignSyncMaxChildren: 3,
		AdSetChunkSize:          1,
		AdChunkSize:             50,
		ChunkDelay:              500 * time.Millisecond,
		ResolveTimeout:          0,
		ResolvePollInterval:     3 * time.Second,
		JobPollDelay:            15 * time.Second,
		JobMaxPollAttempts:      3,
	}
}

func newHarness(settings Settings) *harness {
	h := &harness{
		graph:     newFakeGraph(),
		jobs:      repositorytest.NewMemoryDuplicationJobRepository(),
		scheduler: &fakeScheduler{},
		notifier:  &fakeNotifier{},
		clock:     &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	h.dup = New(h.graph, h.jobs, h.scheduler, h.notifier, settings, infra.NewNopLogger())
	h.dup.sleep = h.clock.Sleep
	h.dup.now = h.clock.Now
	return h
}

func refs(ids ...string) []provider.EntityRef {
	out := make([]provider.EntityRef, len(ids))
	for i, id := range ids {
		out[i] = provider.EntityRef{ID: id, Name: "name " + id}
	}
	return out
}
