package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"main/internal/obs"
	"main/internal/schema"
)

const (
	// bufferWindow is how long a fill is held so late siblings can be
	// reordered by exchange timestamp before release.
	bufferWindow = 2000 * time.Millisecond
	// drainInterval is the release tick.
	drainInterval = 100 * time.Millisecond
)

// FillBuffer reorders out-of-order fill notifications. Ingestion happens
// under its own lock; a periodic drain releases entries older than the
// window in timestamp order. Drains never overlap.
type FillBuffer struct {
	mu      sync.Mutex
	entries []bufferedFill

	drainMu sync.Mutex

	now func() time.Time
}

type bufferedFill struct {
	fill       schema.FillNotification
	receivedAt time.Time
}

// NewFillBuffer creates an empty buffer.
func NewFillBuffer() *FillBuffer {
	return &FillBuffer{now: time.Now}
}

// Ingest adds a fill. Safe to call from the venue reader concurrently with
// a running drain.
func (b *FillBuffer) Ingest(fill schema.FillNotification) {
	b.mu.Lock()
	b.entries = append(b.entries, bufferedFill{fill: fill, receivedAt: b.now()})
	obs.SetFillBufferDepth(len(b.entries))
	b.mu.Unlock()
}

// Len reports the buffered fill count.
func (b *FillBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Drain releases every fill older than the window, sorted by exchange
// timestamp, handing them to sink one at a time.
func (b *FillBuffer) Drain(sink func(schema.FillNotification)) {
	b.drainMu.Lock()
	defer b.drainMu.Unlock()

	cutoff := b.now().Add(-bufferWindow)

	b.mu.Lock()
	var ready []schema.FillNotification
	remaining := b.entries[:0]
	for _, entry := range b.entries {
		if entry.receivedAt.Before(cutoff) {
			ready = append(ready, entry.fill)
		} else {
			remaining = append(remaining, entry)
		}
	}
	b.entries = remaining
	obs.SetFillBufferDepth(len(b.entries))
	b.mu.Unlock()

	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].TimestampMs < ready[j].TimestampMs
	})

	for _, fill := range ready {
		sink(fill)
	}
}

// Run drains on a fixed tick until the context is done.
func (b *FillBuffer) Run(ctx context.Context, sink func(schema.FillNotification)) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Drain(sink)
		}
	}
}
