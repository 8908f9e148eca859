package services

import (
	"context"
	"strings"
	"sync"

	"github.com/itish2003/courserag/models"
)

// SessionStore keeps a bounded window of exchanges per session id.
type SessionStore interface {
	// History returns at most the configured number of exchanges, oldest
	// first. Unknown ids yield an empty history.
	History(ctx context.Context, id string) ([]models.Exchange, error)
	// Append records an exchange, creating the session on first use.
	Append(ctx context.Context, id string, ex models.Exchange) error
	// WithSession runs fn with the current history while holding the
	// session's lock, then appends the exchange fn returns, if any.
	WithSession(ctx context.Context, id string, fn func(history []models.Exchange) (*models.Exchange, error)) error
}

type memorySession struct {
	mu        sync.Mutex
	exchanges []models.Exchange
}

// MemorySessionStore is an in-process SessionStore.
type MemorySessionStore struct {
	mu         sync.Mutex
	sessions   map[string]*memorySession
	maxHistory int
}

func NewMemorySessionStore(maxHistory int) *MemorySessionStore {
	if maxHistory <= 0 {
		maxHistory = 2
	}
	return &MemorySessionStore{sessions: make(map[string]*memorySession), maxHistory: maxHistory}
}

func (s *MemorySessionStore) session(id string, create bool) *memorySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok && create {
		sess = &memorySession{}
		s.sessions[id] = sess
	}
	return sess
}

func (s *MemorySessionStore) History(_ context.Context, id string) ([]models.Exchange, error) {
	sess := s.session(id, false)
	if sess == nil {
		return []models.Exchange{}, nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]models.Exchange{}, sess.exchanges...), nil
}

func (s *MemorySessionStore) Append(_ context.Context, id string, ex models.Exchange) error {
	sess := s.session(id, true)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.appendLocked(sess, ex)
	return nil
}

func (s *MemorySessionStore) WithSession(ctx context.Context, id string, fn func([]models.Exchange) (*models.Exchange, error)) error {
	sess := s.session(id, true)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	ex, err := fn(append([]models.Exchange{}, sess.exchanges...))
	if err != nil || ex == nil {
		return err
	}
	s.appendLocked(sess, *ex)
	return nil
}

func (s *MemorySessionStore) appendLocked(sess *memorySession, ex models.Exchange) {
	sess.exchanges = append(sess.exchanges, ex)
	if over := len(sess.exchanges) - s.maxHistory; over > 0 {
		sess.exchanges = append([]models.Exchange(nil), sess.exchanges[over:]...)
	}
}

// RenderHistory formats exchanges as alternating "User:" and "Assistant:"
// lines, most recent last.
func RenderHistory(history []models.Exchange) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, ex := range history {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("User: ")
		sb.WriteString(ex.Query)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(ex.Answer)
	}
	return sb.String()
}
