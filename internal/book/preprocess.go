package book

import "main/internal/schema"

const historySize = 10

// history is a rolling window of past book sides, oldest first.
type history struct {
	states [][]schema.PriceLevel
}

func (h *history) push(side []schema.PriceLevel) {
	state := make([]schema.PriceLevel, len(side))
	copy(state, side)
	h.states = append(h.states, state)
	if len(h.states) > historySize {
		h.states = h.states[1:]
	}
}

// previous returns the state preceding the most recent one, nil if the
// window holds fewer than two states.
func (h *history) previous() []schema.PriceLevel {
	if len(h.states) < 2 {
		return nil
	}
	return h.states[len(h.states)-2]
}

func (h *history) averageVolume(idx int) float64 {
	var sum float64
	var count int
	for _, state := range h.states {
		if idx < len(state) {
			sum += state[idx].Volume
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func (h *history) averageOrders(idx int) float64 {
	var sum float64
	var count int
	for _, state := range h.states {
		if idx < len(state) {
			sum += state[idx].Orders
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func (e *Engine) pushHistory() {
	e.bidHistory.push(e.bids)
	e.askHistory.push(e.asks)
}

// PreprocessedLevel is one book level expressed as relative changes: price
// against the preceding state, volume and orders against the rolling average.
type PreprocessedLevel struct {
	PriceChange  float64
	VolumeChange float64
	OrdersChange float64
}

// PreprocessBids normalizes the current bid side against its history window.
func (e *Engine) PreprocessBids() []PreprocessedLevel {
	return preprocessLevels(e.bids, &e.bidHistory)
}

// PreprocessAsks normalizes the current ask side against its history window.
func (e *Engine) PreprocessAsks() []PreprocessedLevel {
	return preprocessLevels(e.asks, &e.askHistory)
}

func preprocessLevels(current []schema.PriceLevel, h *history) []PreprocessedLevel {
	previous := h.previous()
	out := make([]PreprocessedLevel, len(current))

	for i, level := range current {
		if i < len(previous) && previous[i].Price != 0 {
			out[i].PriceChange = (level.Price - previous[i].Price) / previous[i].Price
		}
		if avg := h.averageVolume(i); avg > 0 {
			out[i].VolumeChange = (level.Volume - avg) / avg
		}
		if avg := h.averageOrders(i); avg > 0 {
			out[i].OrdersChange = (level.Orders - avg) / avg
		}
	}

	return out
}
