package session

import (
	"context"
	"sync"
	"time"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
)

// Session tracks one multi-file upload. Processed only grows and Errors is append-only.
type Session struct {
	registry *Registry

	mu       sync.Mutex
	state    entity.UploadSession
	sinks    map[int]ProgressSink
	nextSink int
	gcTimer  *time.Timer
}

// FileProgress is the payload of a progress event.
type FileProgress struct {
	SessionID string  `json:"session_id"`
	FileName  string  `json:"file_name"`
	Stage     string  `json:"stage"`
	Percent   float64 `json:"percent"`
}

func (s *Session) ID() string { return s.state.ID }

func (s *Session) Snapshot() entity.UploadSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Progress emits a per-file progress event. Percent is clamped to [0, 100].
func (s *Session) Progress(fileName, stage string, percent float64) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	s.broadcast(EventProgress, FileProgress{
		SessionID: s.state.ID,
		FileName:  fileName,
		Stage:     stage,
		Percent:   percent,
	})
}

// FileDone counts one processed file and forwards its result to subscribers.
func (s *Session) FileDone(result any) {
	s.mu.Lock()
	s.state.Processed++
	s.state.UpdatedAt = s.registry.now()
	sinks := s.sinksLocked()
	s.mu.Unlock()

	emit(sinks, EventFile, result)
}

// FileFailed counts one processed file and records its error.
func (s *Session) FileFailed(fileName, message string, result any) {
	s.mu.Lock()
	s.state.Processed++
	s.state.Errors = append(s.state.Errors, entity.FileError{FileName: fileName, Message: message})
	s.state.UpdatedAt = s.registry.now()
	sinks := s.sinksLocked()
	s.mu.Unlock()

	emit(sinks, EventFile, result)
}

// Complete marks the session finished and sends summary to subscribers.
func (s *Session) Complete(summary any) {
	s.finish(entity.UploadStatusCompleted, EventComplete, summary)
}

// Fail marks the whole session as failed.
func (s *Session) Fail(message string) {
	s.finish(entity.UploadStatusFailed, EventError, map[string]string{"error": message})
}

func (s *Session) finish(status entity.UploadStatus, event string, data any) {
	s.mu.Lock()
	s.state.Status = status
	s.state.UpdatedAt = s.registry.now()
	state := s.copyLocked()
	sinks := s.sinksLocked()
	if len(sinks) == 0 {
		s.scheduleGCLocked()
	}
	s.mu.Unlock()

	s.registry.persist(state)
	emit(sinks, event, data)
}

func (s *Session) broadcast(event string, data any) {
	s.mu.Lock()
	sinks := s.sinksLocked()
	s.mu.Unlock()
	emit(sinks, event, data)
}

func (s *Session) subscribe(sink ProgressSink) func() {
	s.mu.Lock()
	if s.gcTimer != nil {
		s.gcTimer.Stop()
		s.gcTimer = nil
	}
	id := s.nextSink
	s.nextSink++
	s.sinks[id] = sink
	state := s.copyLocked()
	s.mu.Unlock()

	sink.Emit(EventSnapshot, state)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.sinks, id)
			if len(s.sinks) == 0 {
				s.scheduleGCLocked()
			}
		})
	}
}

// Subscribers reports the number of attached sinks.
func (s *Session) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sinks)
}

func (s *Session) scheduleGCLocked() {
	if s.gcTimer != nil {
		s.gcTimer.Stop()
	}
	s.gcTimer = time.AfterFunc(s.registry.grace, s.collect)
}

// collect drops the session unless it gained a subscriber or is still processing.
// finish re-arms the timer for the latter.
func (s *Session) collect() {
	s.mu.Lock()
	s.gcTimer = nil
	if len(s.sinks) > 0 || s.state.Status == entity.UploadStatusProcessing {
		s.mu.Unlock()
		return
	}
	state := s.copyLocked()
	s.mu.Unlock()

	s.registry.persist(state)
	s.registry.remove(s)
	s.registry.logger.DebugWithContextf(context.Background(), "[Session] Collected upload session %s", state.ID)
}

func (s *Session) copyLocked() entity.UploadSession {
	state := s.state
	state.Errors = append([]entity.FileError{}, s.state.Errors...)
	return state
}

func (s *Session) sinksLocked() []ProgressSink {
	sinks := make([]ProgressSink, 0, len(s.sinks))
	for _, sink := range s.sinks {
		sinks = append(sinks, sink)
	}
	return sinks
}

func emit(sinks []ProgressSink, event string, data any) {
	for _, sink := range sinks {
		sink.Emit(event, data)
	}
}
