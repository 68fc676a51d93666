package bus

import (
	"context"
	"testing"
	"time"

	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDeliversInOrder(t *testing.T) {
	q := NewQueue[int](8)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.TryPublish(i))
	}
	q.Close()

	var got []int
	q.Run(context.Background(), func(v int) { got = append(got, v) })
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestQueueFull(t *testing.T) {
	q := NewQueue[int](1)

	require.NoError(t, q.TryPublish(1))
	assert.ErrorIs(t, q.TryPublish(2), exception.ErrOrderQueueFull)
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue[int](1)
	q.Close()

	assert.ErrorIs(t, q.TryPublish(1), exception.ErrOrderQueueClosed)
}

func TestQueueRunStopsOnContext(t *testing.T) {
	q := NewQueue[int](1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(int) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop on context cancellation")
	}
}
