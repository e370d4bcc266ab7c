package guard

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
)

const (
	HeaderBusinessUseCaseUsage = "X-Business-Use-Case-Usage"
	HeaderAdAccountUsage       = "X-Ad-Account-Usage"
	HeaderAppUsage             = "X-App-Usage"

	defaultPause = 60 * time.Second
)

type RateSettings struct {
	RequestsPerSecond float64
	Burst             int
	PauseThreshold    float64
}

// Usage is the latest usage Meta reported for an ad account.
type Usage struct {
	MaxPercent  float64   `json:"max_percent"`
	PausedUntil time.Time `json:"paused_until,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type accountState struct {
	limiter     *rate.Limiter
	usage       Usage
	pausedUntil time.Time
}

// RateTracker is a token bucket per ad account plus a pause driven by Meta usage headers.
type RateTracker struct {
	mu       sync.Mutex
	settings RateSettings
	accounts map[string]*accountState
	now      func() time.Time
}

func NewRateTracker(settings RateSettings) *RateTracker {
	if settings.RequestsPerSecond <= 0 {
		settings.RequestsPerSecond = 5
	}
	if settings.Burst <= 0 {
		settings.Burst = 10
	}
	if settings.PauseThreshold <= 0 {
		settings.PauseThreshold = 90
	}
	return &RateTracker{
		settings: settings,
		accounts: make(map[string]*accountState),
		now:      time.Now,
	}
}

func (t *RateTracker) state(accountID string) *accountState {
	key := normalizeAccount(accountID)
	st, ok := t.accounts[key]
	if !ok {
		st = &accountState{
			limiter: rate.NewLimiter(rate.Limit(t.settings.RequestsPerSecond), t.settings.Burst),
		}
		t.accounts[key] = st
	}
	return st
}

// Wait blocks for a token. A paused account fails fast with *apperr.RateLimitedError.
// Calls without an ad account are not limited.
func (t *RateTracker) Wait(ctx context.Context, accountID string) error {
	if accountID == "" {
		return nil
	}

	t.mu.Lock()
	st := t.state(accountID)
	pausedUntil := st.pausedUntil
	limiter := st.limiter
	now := t.now()
	t.mu.Unlock()

	if now.Before(pausedUntil) {
		return &apperr.RateLimitedError{
			AdAccountID: accountID,
			RetryAfter:  pausedUntil.Sub(now).Round(time.Second).String(),
		}
	}
	return limiter.Wait(ctx)
}

func (t *RateTracker) Pause(accountID string, d time.Duration) {
	if accountID == "" || d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(accountID)
	until := t.now().Add(d)
	if until.After(st.pausedUntil) {
		st.pausedUntil = until
		st.usage.PausedUntil = until
	}
}

func (t *RateTracker) Usage(accountID string) Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(accountID).usage
}

// Observe reads the usage headers of a Graph API response and pauses the account
// when any usage reaches the threshold or Meta announces a regain time.
func (t *RateTracker) Observe(accountID string, header http.Header) {
	if accountID == "" || header == nil {
		return
	}

	report := ParseUsageHeaders(header)
	if !report.Present {
		return
	}

	t.mu.Lock()
	st := t.state(accountID)
	st.usage.MaxPercent = report.MaxPercent
	st.usage.UpdatedAt = t.now()
	t.mu.Unlock()

	pause := report.RegainAfter
	if report.MaxPercent >= t.settings.PauseThreshold {
		if report.ResetAfter > pause {
			pause = report.ResetAfter
		}
		if pause <= 0 {
			pause = defaultPause
		}
	}
	t.Pause(accountID, pause)
}

// UsageReport is the merged view of the three usage headers.
type UsageReport struct {
	Present     bool
	MaxPercent  float64
	RegainAfter time.Duration
	ResetAfter  time.Duration
}

type businessUseCaseUsage struct {
	Type                        string  `json:"type"`
	CallCount                   float64 `json:"call_count"`
	TotalCPUTime                float64 `json:"total_cputime"`
	TotalTime                   float64 `json:"total_time"`
	EstimatedTimeToRegainAccess float64 `json:"estimated_time_to_regain_access"`
	AdsAPIAccessTier            string  `json:"ads_api_access_tier"`
}

type adAccountUsage struct {
	AccIDUtilPct      float64 `json:"acc_id_util_pct"`
	ResetTimeDuration float64 `json:"reset_time_duration"`
}

type appUsage struct {
	CallCount    float64 `json:"call_count"`
	TotalCPUTime float64 `json:"total_cputime"`
	TotalTime    float64 `json:"total_time"`
}

// ParseUsageHeaders never fails; malformed headers are ignored.
func ParseUsageHeaders(header http.Header) UsageReport {
	var report UsageReport

	if raw := header.Get(HeaderBusinessUseCaseUsage); raw != "" {
		var byBusiness map[string][]businessUseCaseUsage
		if err := json.Unmarshal([]byte(raw), &byBusiness); err == nil {
			report.Present = true
			for _, entries := range byBusiness {
				for _, e := range entries {
					report.MaxPercent = maxOf(report.MaxPercent, e.CallCount, e.TotalCPUTime, e.TotalTime)
					// estimated_time_to_regain_access is in minutes
					if regain := time.Duration(e.EstimatedTimeToRegainAccess * float64(time.Minute)); regain > report.RegainAfter {
						report.RegainAfter = regain
					}
				}
			}
		}
	}

	if raw := header.Get(HeaderAdAccountUsage); raw != "" {
		var usage adAccountUsage
		if err := json.Unmarshal([]byte(raw), &usage); err == nil {
			report.Present = true
			report.MaxPercent = maxOf(report.MaxPercent, usage.AccIDUtilPct)
			// reset_time_duration is in seconds
			report.ResetAfter = time.Duration(usage.ResetTimeDuration * float64(time.Second))
		}
	}

	if raw := header.Get(HeaderAppUsage); raw != "" {
		var usage appUsage
		if err := json.Unmarshal([]byte(raw), &usage); err == nil {
			report.Present = true
			report.MaxPercent = maxOf(report.MaxPercent, usage.CallCount, usage.TotalCPUTime, usage.TotalTime)
		}
	}

	return report
}

func maxOf(first float64, rest ...float64) float64 {
	m := first
	for _, v := range rest {
		if v > m {
			m = v
		}
	}
	return m
}

func normalizeAccount(accountID string) string {
	return strings.TrimPrefix(accountID, "act_")
}
