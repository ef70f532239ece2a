package pacer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitItem_EnforcesSpacing(t *testing.T) {
	p := New(50*time.Millisecond, 0)
	ctx := context.Background()

	require.NoError(t, p.WaitItem(ctx)) // first token is free

	start := time.Now()
	require.NoError(t, p.WaitItem(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWaitBatch_EnforcesSpacing(t *testing.T) {
	p := New(0, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, p.WaitBatch(ctx))

	start := time.Now()
	require.NoError(t, p.WaitBatch(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWait_ZeroDelayNeverBlocks(t *testing.T) {
	p := New(0, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, p.WaitItem(ctx))
		require.NoError(t, p.WaitBatch(ctx))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestWait_CancelledContextReturnsEarly(t *testing.T) {
	p := New(10*time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, p.WaitItem(ctx))

	done := make(chan error, 1)
	go func() { done <- p.WaitItem(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after cancellation")
	}
}

func TestWait_SharedAcrossJobs(t *testing.T) {
	// Two goroutines sharing one pacer cannot both proceed immediately.
	p := New(60*time.Millisecond, 0)
	ctx := context.Background()

	start := time.Now()
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_ = p.WaitItem(ctx)
			done <- struct{}{}
		}()
	}
	<-done
	<-done
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
