package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
)

const (
	FacebookAPI    = "Facebook API"
	GoogleDriveAPI = "Google Drive API"
	ThumbnailAPI   = "Thumbnail Service"
)

const (
	StateClosed   = "CLOSED"
	StateOpen     = "OPEN"
	StateHalfOpen = "HALF_OPEN"
)

type BreakerSettings struct {
	FailureThreshold uint32
	Cooldown         time.Duration
	// Interval clears the counts periodically while closed. Zero never clears them.
	Interval time.Duration
}

// OpenHook is called every time a breaker transitions into OPEN.
type OpenHook func(service string, from string, threshold uint32)

// Breaker guards calls to one external service.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreaker(name string, settings BreakerSettings, onOpen OpenHook, onChange func(name, from, to string)) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 60 * time.Second
	}

	b := &Breaker{name: name}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if onChange != nil {
				onChange(name, stateName(from), stateName(to))
			}
			if to == gobreaker.StateOpen && onOpen != nil {
				onOpen(name, stateName(from), settings.FailureThreshold)
			}
		},
	})
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() string { return stateName(b.cb.State()) }

func (b *Breaker) ConsecutiveFailures() uint32 { return b.cb.Counts().ConsecutiveFailures }

// Execute runs fn through the breaker. While open, fn is not called and a
// *apperr.CircuitOpenError is returned.
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &apperr.CircuitOpenError{Service: b.name}
		}
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	return out.(T), nil
}

// isSuccessful decides what counts against the breaker. Caller cancellations and
// pauses imposed by our own rate tracker say nothing about the remote service.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var rateErr *apperr.RateLimitedError
	return errors.As(err, &rateErr)
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Breakers holds one breaker per external service name.
type Breakers struct {
	mu       sync.Mutex
	settings BreakerSettings
	onOpen   OpenHook
	onChange func(name, from, to string)
	byName   map[string]*Breaker
}

func NewBreakers(settings BreakerSettings, onOpen OpenHook, onChange func(name, from, to string)) *Breakers {
	return &Breakers{
		settings: settings,
		onOpen:   onOpen,
		onChange: onChange,
		byName:   make(map[string]*Breaker),
	}
}

func (r *Breakers) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.byName[name]; ok {
		return b
	}
	b := NewBreaker(name, r.settings, r.onOpen, r.onChange)
	r.byName[name] = b
	return b
}

// Snapshot returns the state of every breaker created so far.
func (r *Breakers) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.byName))
	for name, b := range r.byName {
		out[name] = b.State()
	}
	return out
}
