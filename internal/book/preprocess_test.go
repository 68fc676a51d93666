package book

import (
	"math"
	"testing"

	"main/internal/schema"
)

func TestPreprocessFirstStateIsZero(t *testing.T) {
	e := primedEngine(t, &captureProducer{})

	for i, level := range e.PreprocessBids() {
		if level.PriceChange != 0 {
			t.Fatalf("level %d price change should be 0 with a single state, got %v", i, level.PriceChange)
		}
		// The rolling average over a single state equals the current value.
		if math.Abs(level.VolumeChange) > 1e-12 || math.Abs(level.OrdersChange) > 1e-12 {
			t.Fatalf("level %d change should be 0 against its own average", i)
		}
	}
}

func TestPreprocessTracksChanges(t *testing.T) {
	e := primedEngine(t, &captureProducer{})

	delta := []schema.PriceLevel{
		{Price: 100.0, Volume: 0},
		{Price: 100.25, Volume: 2, Orders: 3},
	}
	if err := e.ApplyDelta(delta, nil); err != nil {
		t.Fatalf("delta failed: %v", err)
	}

	levels := e.PreprocessBids()
	if len(levels) != schema.RequiredLevels {
		t.Fatalf("expected %d levels, got %d", schema.RequiredLevels, len(levels))
	}

	// Best bid moved from 100.0 to 100.25.
	wantPrice := (100.25 - 100.0) / 100.0
	if math.Abs(levels[0].PriceChange-wantPrice) > 1e-12 {
		t.Fatalf("price change mismatch: got %v want %v", levels[0].PriceChange, wantPrice)
	}

	// Best bid volume went from 1 to 2; average over the window is 1.5.
	wantVolume := (2.0 - 1.5) / 1.5
	if math.Abs(levels[0].VolumeChange-wantVolume) > 1e-12 {
		t.Fatalf("volume change mismatch: got %v want %v", levels[0].VolumeChange, wantVolume)
	}
}

func TestHistoryWindowBounded(t *testing.T) {
	var h history
	side := makeSide(100.0, -0.5, 4)
	for i := 0; i < historySize*2; i++ {
		h.push(side)
	}
	if len(h.states) != historySize {
		t.Fatalf("history should cap at %d states, got %d", historySize, len(h.states))
	}
}
