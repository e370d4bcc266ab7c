package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
)

type recordedEvent struct {
	name string
	data any
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *recordingSink) Emit(event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{name: event, data: data})
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.name)
	}
	return names
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return infra.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func TestSessionTracksProgressAndErrors(t *testing.T) {
	require := require.New(t)
	reg := NewRegistry(time.Minute, nil, infra.NewNopLogger())

	s := reg.Create("act_1", "user-1", 3)
	sink := &recordingSink{}
	unsubscribe, err := reg.Subscribe(s.ID(), sink)
	require.NoError(err)
	defer unsubscribe()

	s.Progress("a.png", "upload", 150)
	s.FileDone(map[string]string{"file": "a.png"})
	s.FileFailed("b.png", "boom", map[string]string{"file": "b.png"})
	s.FileDone(map[string]string{"file": "c.png"})
	s.Complete(map[string]int{"succeeded": 2})

	state := s.Snapshot()
	require.Equal(3, state.Processed)
	require.Equal(entity.UploadStatusCompleted, state.Status)
	require.Equal([]entity.FileError{{FileName: "b.png", Message: "boom"}}, state.Errors)

	require.Equal([]string{EventSnapshot, EventProgress, EventFile, EventFile, EventFile, EventComplete}, sink.names())
	progress := sink.events[1].data.(FileProgress)
	assert.Equal(t, 100.0, progress.Percent)
}

func TestSubscribeUnknownSession(t *testing.T) {
	reg := NewRegistry(time.Minute, nil, infra.NewNopLogger())
	_, err := reg.Subscribe("nope", &recordingSink{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionCollectedAfterLastSubscriberLeaves(t *testing.T) {
	store := newMemoryStore()
	reg := NewRegistry(20*time.Millisecond, store, infra.NewNopLogger())

	s := reg.Create("act_1", "", 1)
	unsubscribe, err := reg.Subscribe(s.ID(), &recordingSink{})
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, ok := reg.Get(s.ID())
	require.True(t, ok, "session with a subscriber must survive")

	s.FileDone(nil)
	s.Complete(nil)
	unsubscribe()

	require.Eventually(t, func() bool {
		_, ok := reg.Get(s.ID())
		return !ok
	}, time.Second, 5*time.Millisecond)

	state, err := reg.Lookup(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, state.Processed)
}

func TestProcessingSessionSurvivesWithoutSubscribers(t *testing.T) {
	reg := NewRegistry(20*time.Millisecond, newMemoryStore(), infra.NewNopLogger())
	s := reg.Create("act_1", "", 2)

	time.Sleep(60 * time.Millisecond)
	sink := &recordingSink{}
	unsubscribe, err := reg.Subscribe(s.ID(), sink)
	require.NoError(t, err)
	require.Equal(t, []string{EventSnapshot}, sink.names())

	unsubscribe()
	time.Sleep(60 * time.Millisecond)
	_, ok := reg.Get(s.ID())
	require.True(t, ok, "a processing session must not be collected")

	s.FileDone(nil)
	s.FileDone(nil)
	s.Complete(nil)

	require.Eventually(t, func() bool {
		_, ok := reg.Get(s.ID())
		return !ok
	}, time.Second, 5*time.Millisecond)

	state, err := reg.Lookup(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, entity.UploadStatusCompleted, state.Status)
	assert.Equal(t, 2, state.Processed)
}

func TestFinishedSessionWithoutSubscribersIsCollected(t *testing.T) {
	reg := NewRegistry(20*time.Millisecond, nil, infra.NewNopLogger())
	s := reg.Create("act_1", "", 1)
	s.FileDone(nil)
	s.Complete(nil)

	require.Eventually(t, func() bool {
		_, ok := reg.Get(s.ID())
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestReconnectWithinGraceKeepsSession(t *testing.T) {
	reg := NewRegistry(80*time.Millisecond, nil, infra.NewNopLogger())

	s := reg.Create("act_1", "", 2)
	first, err := reg.Subscribe(s.ID(), &recordingSink{})
	require.NoError(t, err)
	first()

	time.Sleep(20 * time.Millisecond)
	second, err := reg.Subscribe(s.ID(), &recordingSink{})
	require.NoError(t, err)
	defer second()

	time.Sleep(150 * time.Millisecond)
	_, ok := reg.Get(s.ID())
	assert.True(t, ok)
	assert.Equal(t, 1, s.Subscribers())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	reg := NewRegistry(time.Minute, nil, infra.NewNopLogger())
	s := reg.Create("act_1", "", 1)

	a, err := reg.Subscribe(s.ID(), &recordingSink{})
	require.NoError(t, err)
	b, err := reg.Subscribe(s.ID(), &recordingSink{})
	require.NoError(t, err)
	defer b()

	a()
	a()
	assert.Equal(t, 1, s.Subscribers())
}

func TestLookupMissingSnapshot(t *testing.T) {
	reg := NewRegistry(time.Minute, newMemoryStore(), infra.NewNopLogger())
	_, err := reg.Lookup(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
