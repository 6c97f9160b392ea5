package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTicker struct {
	mu    sync.Mutex
	ticks int
	total time.Duration
}

func (c *countingTicker) Tick(dt time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	c.total += dt
}

func (c *countingTicker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

func TestNewTickLoop_RejectsBadInput(t *testing.T) {
	_, err := NewTickLoop(0, &countingTicker{})
	assert.Error(t, err)
	_, err = NewTickLoop(time.Millisecond, nil)
	assert.Error(t, err)
}

func TestTickLoop_TicksUntilStopped(t *testing.T) {
	target := &countingTicker{}
	loop, err := NewTickLoop(5*time.Millisecond, target)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- loop.Start() }()

	require.Eventually(t, func() bool { return target.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	loop.Stop()
	loop.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tick loop did not stop")
	}

	stopped := target.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, target.count(), "no ticks after Stop returns")

	target.mu.Lock()
	defer target.mu.Unlock()
	assert.Positive(t, target.total)
}
