package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
)

var ErrSessionNotFound = errors.New("upload session not found")

// Event names sent to subscribers.
const (
	EventSnapshot = "snapshot"
	EventProgress = "progress"
	EventFile     = "file"
	EventComplete = "complete"
	EventError    = "error"
)

const snapshotKeyPrefix = "upload_session:"

// ProgressSink receives {event, data} pairs. The transport is up to the implementation.
type ProgressSink interface {
	Emit(event string, data any)
}

// SnapshotStore persists session state so it can be read after the in-memory session is gone.
type SnapshotStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

// Registry owns all upload sessions of this process. A finished session is dropped once it has
// had no subscribers for the grace period; a reconnect within the grace period keeps it alive.
// A session that is still processing is never dropped.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	grace       time.Duration
	snapshotTTL time.Duration
	store       SnapshotStore
	logger      *infra.LoggerClient
	now         func() time.Time
}

func NewRegistry(grace time.Duration, store SnapshotStore, logger *infra.LoggerClient) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		grace:       grace,
		snapshotTTL: time.Hour,
		store:       store,
		logger:      logger,
		now:         time.Now,
	}
}

// Create registers a session for totalFiles files.
func (r *Registry) Create(adAccountID, userID string, totalFiles int) *Session {
	now := r.now()
	s := &Session{
		registry: r,
		state: entity.UploadSession{
			ID:          uuid.NewString(),
			AdAccountID: adAccountID,
			UserID:      userID,
			TotalFiles:  totalFiles,
			Errors:      []entity.FileError{},
			Status:      entity.UploadStatusProcessing,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		sinks: make(map[int]ProgressSink),
	}

	r.mu.Lock()
	r.sessions[s.state.ID] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Lookup returns the current state of a session, falling back to the last stored snapshot.
func (r *Registry) Lookup(ctx context.Context, id string) (*entity.UploadSession, error) {
	if s, ok := r.Get(id); ok {
		state := s.Snapshot()
		return &state, nil
	}
	if r.store == nil {
		return nil, ErrSessionNotFound
	}
	var state entity.UploadSession
	if err := r.store.Get(ctx, snapshotKeyPrefix+id, &state); err != nil {
		if errors.Is(err, infra.ErrCacheMiss) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &state, nil
}

// Subscribe attaches sink to the session and immediately sends it the current snapshot.
// The returned func detaches it.
func (r *Registry) Subscribe(id string, sink ProgressSink) (func(), error) {
	s, ok := r.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.subscribe(sink), nil
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[s.state.ID]; ok && current == s {
		delete(r.sessions, s.state.ID)
	}
}

func (r *Registry) persist(state entity.UploadSession) {
	if r.store == nil {
		return
	}
	ctx := context.Background()
	if err := r.store.Set(ctx, snapshotKeyPrefix+state.ID, state, r.snapshotTTL); err != nil {
		r.logger.WarningWithContextf(ctx, "[Session] Failed to snapshot session %s: %v", state.ID, err)
	}
}
