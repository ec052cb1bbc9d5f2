package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_ResolveOnce(t *testing.T) {
	f := NewFuture()
	assert.False(t, f.IsDone())

	assert.True(t, f.Resolve("first", nil))
	assert.False(t, f.Resolve("second", errors.New("ignored")))
	assert.True(t, f.IsDone())

	out, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", out)
}

func TestFuture_AwaitContextCancelled(t *testing.T) {
	f := NewFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 放弃等待不影响 Future 本身
	f.Resolve("late", nil)
	out, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", out)
}

func TestFuture_ConcurrentAwaiters(t *testing.T) {
	f := NewFuture()
	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.Await(context.Background())
		}(i)
	}
	f.Resolve("v", nil)
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, "v", r)
	}
}

func TestResolvedFuture(t *testing.T) {
	boom := errors.New("boom")
	f := ResolvedFuture("Error: boom", boom)
	require.True(t, f.IsDone())
	out, err := f.Await(context.Background())
	assert.Equal(t, "Error: boom", out)
	assert.ErrorIs(t, err, boom)
}

func TestAsync(t *testing.T) {
	f := Async(func() (string, error) { return "computed", nil })
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("async future never resolved")
	}
	out, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "computed", out)
}
