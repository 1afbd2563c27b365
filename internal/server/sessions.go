package server

import (
	"sync"
	"time"

	"github.com/claude/repcoach/internal/engine"
	"github.com/claude/repcoach/internal/feedback"
	"github.com/google/uuid"
)

// bufferSink collects feedback events for a live session. Pending
// events are drained into the next frame response; everything is kept
// for persistence on finalize.
type bufferSink struct {
	pending []feedback.Event
	all     []feedback.Event
}

func (b *bufferSink) Deliver(ev feedback.Event) error {
	b.pending = append(b.pending, ev)
	b.all = append(b.all, ev)
	return nil
}

func (b *bufferSink) drain() []feedback.Event {
	out := b.pending
	b.pending = nil
	return out
}

// liveSession is one in-flight evaluation session. The mutex serializes
// frame ingestion: the engine's contract is one in-flight IngestFrame
// per session, and HTTP handlers run concurrently.
type liveSession struct {
	mu         sync.Mutex
	id         uuid.UUID
	exerciseID string
	startedAt  time.Time
	eval       *engine.Session
	sink       *bufferSink
}

// sessionManager tracks live sessions by id. Sessions are fully
// independent; the lock only guards the map.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*liveSession
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[uuid.UUID]*liveSession)}
}

func (m *sessionManager) add(ls *liveSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[ls.id] = ls
}

func (m *sessionManager) get(id uuid.UUID) (*liveSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.sessions[id]
	return ls, ok
}

// remove takes the session out of the manager so no further frames can
// reach it; the caller still holds the returned session for finalize.
func (m *sessionManager) remove(id uuid.UUID) (*liveSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	return ls, ok
}
