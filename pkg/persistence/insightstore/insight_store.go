package insightstore

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/prodkit/ideate/pkg/chat"
)

// Store holds extracted insights. Insights are append-only; re-analysis adds
// new rows rather than editing old ones. Only the extraction side-channel
// writes here.
type Store interface {
	Add(ctx context.Context, in *chat.Insight) error
	List(ctx context.Context, sessionID string) ([]chat.Insight, error)
	Close() error
}

// MemoryStore is the default in-process store and test double.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]chat.Insight
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string][]chat.Insight{}}
}

func (s *MemoryStore) Add(_ context.Context, in *chat.Insight) error {
	if err := in.Validate(); err != nil {
		return errors.Wrap(err, "insight store: add")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[in.SessionID] = append(s.sessions[in.SessionID], *in)
	return nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]chat.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	insights := s.sessions[sessionID]
	out := make([]chat.Insight, len(insights))
	copy(out, insights)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
