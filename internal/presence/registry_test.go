package presence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOnlineIdempotentOverwrite(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.SetOnline(ctx, "d1", true))
	require.NoError(t, r.SetOnline(ctx, "d1", true))

	online, err := r.IsOnline(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, r.SetOnline(ctx, "d1", false))
	online, err = r.IsOnline(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestListAvailable(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.SetOnline(ctx, "d1", true))
	require.NoError(t, r.SetOnline(ctx, "d2", true))
	require.NoError(t, r.SetOnline(ctx, "d3", true))
	require.NoError(t, r.SetOnline(ctx, "d3", false))

	ids, err := r.ListAvailable(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d1", "d2"}, ids)
}

func TestConcurrentAnnouncements(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.SetOnline(ctx, "d1", true)
			_, _ = r.ListAvailable(ctx)
			_ = r.SetOnline(ctx, "d1", false)
		}()
	}
	wg.Wait()

	// no panic or race; final state is offline
	online, err := r.IsOnline(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, online)
}
