package turnstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prodkit/ideate/pkg/chat"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestAppendAssignsStrictlyIncreasingOrder(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, content := range []string{"one", "two", "three"} {
				turn := chat.NewTurn("s1", chat.RoleUser, content)
				require.NoError(t, store.Append(ctx, turn))
				require.Equal(t, i+1, turn.Order)
			}
			turns, err := store.List(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, turns, 3)
			for i, turn := range turns {
				require.Equal(t, i+1, turn.Order)
			}
		})
	}
}

func TestAppendSerializesConcurrentWriters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(ctx, chat.NewTurn("s1", chat.RoleUser, "m"))
		}()
	}
	wg.Wait()

	turns, err := store.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 20)
	seen := map[int]bool{}
	for _, turn := range turns {
		require.False(t, seen[turn.Order], "duplicate order %d", turn.Order)
		seen[turn.Order] = true
	}
}

func TestAppendRejectsStaleOrder(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Append(ctx, chat.NewTurn("s1", chat.RoleUser, "a")))
			require.NoError(t, store.Append(ctx, chat.NewTurn("s1", chat.RoleAssistant, "b")))

			stale := chat.NewTurn("s1", chat.RoleUser, "c")
			stale.Order = 1
			err := store.Append(ctx, stale)
			require.ErrorIs(t, err, chat.ErrOrderConflict)
		})
	}
}

func TestListIsolatesSessions(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Append(ctx, chat.NewTurn("s1", chat.RoleUser, "a")))
			require.NoError(t, store.Append(ctx, chat.NewTurn("s2", chat.RoleUser, "b")))

			turns, err := store.List(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, turns, 1)
			require.Equal(t, "a", turns[0].Content)

			// list has no side effects
			again, err := store.List(ctx, "s1")
			require.NoError(t, err)
			require.Equal(t, turns, again)
		})
	}
}

func TestAppendValidation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.Append(ctx, nil)
	require.Error(t, err)

	bad := chat.NewTurn("s1", chat.Role("weird"), "x")
	err = store.Append(ctx, bad)
	require.Error(t, err)
}
