// Package convo holds the in-memory transcript store: a process-wide mapping
// from session id to the ordered messages of one interview conversation.
// Transcripts are process-local and lost on restart.
package convo

import (
	"sync"

	"interviewd/internal/logging"
	"interviewd/internal/types"
)

// Store maps session ids to transcripts. It is injectable so lifetime and
// test isolation stay controllable; callers own exactly one instance.
//
// Map access is guarded by an RWMutex. Additionally, Acquire hands out a
// per-session mutex so the orchestrator can serialize whole answer turns on
// one session id; without it two concurrent answers to the same session
// would interleave their appends and corrupt turn ordering.
type Store struct {
	mu          sync.RWMutex
	transcripts map[string][]types.Message
	locks       map[string]*sync.Mutex
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{
		transcripts: make(map[string][]types.Message),
		locks:       make(map[string]*sync.Mutex),
	}
}

// New creates a fresh transcript seeded with the given system framing
// message, overwriting any prior transcript under the same id.
func (s *Store) New(id string, initial types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcripts[id] = []types.Message{initial}
	if _, ok := s.locks[id]; !ok {
		s.locks[id] = &sync.Mutex{}
	}
	logging.SessionDebug("transcript created: session=%s", id)
}

// Add appends a message to an existing transcript. Returns false if the id
// is unknown; callers must check.
func (s *Store) Add(id string, msg types.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transcripts[id]; !ok {
		return false
	}
	s.transcripts[id] = append(s.transcripts[id], msg)
	return true
}

// Get returns a snapshot of the transcript and whether the session exists.
// Absence signals "session not started".
func (s *Store) Get(id string) ([]types.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[id]
	if !ok {
		return nil, false
	}
	out := make([]types.Message, len(t))
	copy(out, t)
	return out, true
}

// Exists reports whether a transcript is live for the id.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.transcripts[id]
	return ok
}

// LastAssistant returns the content of the most recent assistant message,
// or "" if none exists.
func (s *Store) LastAssistant(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.transcripts[id]
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Role == types.RoleAssistant {
			return t[i].Content
		}
	}
	return ""
}

// Discard removes the transcript (used on reset). The per-session lock is
// kept so an in-flight holder can still release it.
func (s *Store) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.transcripts, id)
	logging.SessionDebug("transcript discarded: session=%s", id)
}

// Len returns the number of messages in the transcript (0 if unknown).
func (s *Store) Len(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcripts[id])
}

// Acquire locks the per-session mutex for id, creating it on first use.
// The returned func releases it. Serializes whole logical turns per id.
func (s *Store) Acquire(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
