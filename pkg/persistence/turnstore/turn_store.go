package turnstore

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/prodkit/ideate/pkg/chat"
)

// Store is the append-only ordered record of conversation history. Append
// assigns Order = previous max + 1 and must serialize concurrent appends so
// a duplicate order can never be committed. There is no update or delete.
type Store interface {
	Append(ctx context.Context, t *chat.Turn) error
	List(ctx context.Context, sessionID string) ([]chat.Turn, error)
	Close() error
}

// MemoryStore keeps turns in per-session slices. It is the default store and
// the test double.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]chat.Turn
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string][]chat.Turn{}}
}

func (s *MemoryStore) Append(ctx context.Context, t *chat.Turn) error {
	if err := validateTurn(t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.sessions[t.SessionID]
	maxOrder := 0
	if n := len(turns); n > 0 {
		maxOrder = turns[n-1].Order
	}
	if t.Order != 0 && t.Order <= maxOrder {
		return chat.ErrOrderConflict
	}
	t.Order = maxOrder + 1
	s.sessions[t.SessionID] = append(turns, *t)
	return nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.sessions[sessionID]
	out := make([]chat.Turn, len(turns))
	copy(out, turns)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func validateTurn(t *chat.Turn) error {
	if t == nil {
		return errors.New("turn is nil")
	}
	if t.ID == "" {
		return errors.New("turn id is empty")
	}
	if t.SessionID == "" {
		return errors.New("turn session id is empty")
	}
	if !t.Role.Valid() {
		return errors.Errorf("unknown turn role %q", t.Role)
	}
	return nil
}
