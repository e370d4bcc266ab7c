package adcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

const (
	campaignFields = "id,name,status,effective_status,objective,daily_budget,lifetime_budget,created_time"
	adSetFields    = "id,name,status,effective_status,campaign_id,daily_budget,optimization_goal,billing_event"
	adFields       = "id,name,status,effective_status,adset_id,campaign_id,creative{id,image_hash,video_id}"
)

type EdgeLister interface {
	ListAccountEdge(ctx context.Context, accountID, edge, fields, token string) ([]map[string]any, error)
}

type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

// Snapshot is the cached structure of one ad account.
type Snapshot struct {
	AdAccountID string           `json:"ad_account_id"`
	Campaigns   []map[string]any `json:"campaigns"`
	AdSets      []map[string]any `json:"adsets"`
	Ads         []map[string]any `json:"ads"`
	RefreshedAt time.Time        `json:"refreshed_at"`
}

// Cache keeps Meta ad data per account in Redis. At most one refresh per account is in
// flight; concurrent callers wait for it and share its result.
type Cache struct {
	lister EdgeLister
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *infra.LoggerClient
	now    func() time.Time
}

func New(lister EdgeLister, store Store, ttl time.Duration, logger *infra.LoggerClient) *Cache {
	return &Cache{lister: lister, store: store, ttl: ttl, logger: logger, now: time.Now}
}

func key(accountID string) string {
	return "ads_cache:" + accountID
}

// Get serves the cached snapshot, refreshing it on a miss.
func (c *Cache) Get(ctx context.Context, adAccountID, token string) (*Snapshot, error) {
	accountID := utils.NormalizeAdAccountID(adAccountID)

	var snap Snapshot
	err := c.store.Get(ctx, key(accountID), &snap)
	if err == nil {
		return &snap, nil
	}
	if !errors.Is(err, infra.ErrCacheMiss) {
		c.logger.WarningWithContextf(ctx, "[AdCache] Read of %s failed, refreshing: %v", accountID, err)
	}

	fresh, _, err := c.Refresh(ctx, accountID, token)
	return fresh, err
}

// Refresh reloads the account from the Graph API. shared is true when the result came from
// a refresh another caller had already started.
func (c *Cache) Refresh(ctx context.Context, adAccountID, token string) (*Snapshot, bool, error) {
	accountID := utils.NormalizeAdAccountID(adAccountID)

	v, err, shared := c.group.Do(accountID, func() (interface{}, error) {
		return c.load(context.WithoutCancel(ctx), accountID, token)
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*Snapshot), shared, nil
}

func (c *Cache) load(ctx context.Context, accountID, token string) (*Snapshot, error) {
	snap := &Snapshot{AdAccountID: accountID}

	g, gctx := errgroup.WithContext(ctx)
	edges := []struct {
		edge   string
		fields string
		dest   *[]map[string]any
	}{
		{"campaigns", campaignFields, &snap.Campaigns},
		{"adsets", adSetFields, &snap.AdSets},
		{"ads", adFields, &snap.Ads},
	}
	for _, e := range edges {
		e := e
		g.Go(func() error {
			rows, err := c.lister.ListAccountEdge(gctx, accountID, e.edge, e.fields, token)
			if err != nil {
				return fmt.Errorf("failed to load %s of %s: %w", e.edge, accountID, err)
			}
			if rows == nil {
				rows = []map[string]any{}
			}
			*e.dest = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.RefreshedAt = c.now()

	if err := c.store.Set(ctx, key(accountID), snap, c.ttl); err != nil {
		c.logger.WarningWithContextf(ctx, "[AdCache] Failed to store %s: %v", accountID, err)
	}
	c.logger.InfoWithContextf(ctx, "[AdCache] Refreshed %s: %d campaigns, %d ad sets, %d ads",
		accountID, len(snap.Campaigns), len(snap.AdSets), len(snap.Ads))
	return snap, nil
}
