package chatpod

import "sync"

// Log is one session's conversation log. Mutation goes through Append so the
// per-session lock in front of the message list is never bypassed.
type Log struct {
	mu       sync.Mutex
	messages MessageList
}

// Append adds messages to the end of the log in order.
func (l *Log) Append(msgs ...Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages.Add(msgs...)
}

// seedIfEmpty populates the log with stored history, unless another session
// already appended to it. Returns whether the seed was applied.
func (l *Log) seedIfEmpty(msgs ...Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.messages.Len() > 0 {
		return false
	}
	l.messages.Add(msgs...)
	return true
}

// Snapshot returns a copy of the log safe to read and trim without holding
// the session lock. Network calls should work on a snapshot, never the log.
func (l *Log) Snapshot() *MessageList {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.messages.Clone()
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.messages.Len()
}

// SessionStore maps a session ID to that session's conversation log. Logs are
// created lazily on first reference and live for the lifetime of the store.
type SessionStore struct {
	mu   sync.RWMutex
	logs map[string]*Log
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		logs: make(map[string]*Log),
	}
}

// GetOrCreate returns the log for a session, creating an empty one if absent.
// Repeat calls with the same ID return the same log instance.
func (s *SessionStore) GetOrCreate(sessionID string) *Log {
	s.mu.RLock()
	log, ok := s.logs[sessionID]
	s.mu.RUnlock()
	if ok {
		return log
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if log, ok := s.logs[sessionID]; ok {
		return log
	}
	log = &Log{}
	s.logs[sessionID] = log
	return log
}

// Append adds a message to the end of the session's log, creating the log if
// it does not exist yet.
func (s *SessionStore) Append(sessionID string, msgs ...Message) {
	s.GetOrCreate(sessionID).Append(msgs...)
}

// History returns a snapshot of the session's log, or ErrSessionNotFound if
// the session was never referenced.
func (s *SessionStore) History(sessionID string) (*MessageList, error) {
	s.mu.RLock()
	log, ok := s.logs[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return log.Snapshot(), nil
}
