package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

func TestSessionStoreLifecycle(t *testing.T) {
	t.Parallel()

	ticks := []time.Time{
		time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC),
	}
	var calls int
	store := NewSessionStore(func() time.Time {
		now := ticks[calls]
		calls++
		return now
	})
	ctx := context.Background()

	exists, err := store.Exists(ctx, "u1")
	require.NoError(t, err)
	require.False(t, exists)
	_, err = store.Get(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Create(ctx, "u1", scrape.SessionFields{SearchURL: "https://a", SessionCookie: "c1"}))
	exists, err = store.Exists(ctx, "u1")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, store.Update(ctx, "u1", scrape.SessionFields{SearchURL: "https://b", SessionCookie: "c2"}))
	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, scrape.Session{
		UserID:        "u1",
		SearchURL:     "https://b",
		SessionCookie: "c2",
		LastUpdated:   ticks[1],
	}, got)
	require.NoError(t, store.Ping(ctx))
}

func TestSessionStoreConcurrentWrites(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update(ctx, "u1", scrape.SessionFields{SearchURL: "https://x"})
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "https://x", got.SearchURL)
	require.False(t, got.LastUpdated.IsZero())
}
