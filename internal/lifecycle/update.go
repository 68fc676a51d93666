package lifecycle

import (
	"context"
	"math"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"
)

// executionUpdate is the JSON document published on the execution.update
// topic. Closure updates carry filled portions and the reward; single-order
// progress updates carry the state ID and execution percentage instead.
type executionUpdate struct {
	StateID             *uint32              `json:"state_id,omitempty"`
	OkxID               string               `json:"okx_id,omitempty"`
	IsTradeClosed       bool                 `json:"is_trade_closed"`
	ExecutionPercentage *float64             `json:"execution_percentage,omitempty"`
	FilledPortions      []map[string]float64 `json:"filled_portions,omitempty"`
	Reward              *float64             `json:"reward,omitempty"`
}

func (m *Manager) publishUpdate(ctx context.Context, update executionUpdate) bool {
	payload, err := sonic.ConfigFastest.Marshal(update)
	if err != nil {
		logs.Errorf("marshal execution update failed: %v", err)
		return false
	}
	if err := m.publisher.Produce(ctx, payload); err != nil {
		logs.Errorf("publish execution update failed: %v", err)
		return false
	}
	return true
}

// publishProgress emits a single-order execution update. Deduplicated by
// state ID so a given order book state is reported at most once.
func (m *Manager) publishProgress(ctx context.Context, stateID uint32, venueOrderID string, fraction float64) {
	if _, done := m.published[stateID]; done {
		return
	}
	if fraction <= 0 {
		return
	}

	update := executionUpdate{
		StateID:             &stateID,
		OkxID:               venueOrderID,
		ExecutionPercentage: &fraction,
	}
	if m.publishUpdate(ctx, update) {
		m.published[stateID] = struct{}{}
	}
}

// publishOpenTrade emits a non-closure update listing every order of the
// current trade with opening-fill progress.
func (m *Manager) publishOpenTrade(ctx context.Context, stateID uint32) {
	if _, done := m.published[stateID]; done {
		return
	}

	var portions []map[string]float64
	for i := range m.current.Orders {
		order := &m.current.Orders[i]
		if order.TradeID != m.current.TradeID {
			continue
		}
		opening := order.OpeningSize()
		if opening <= 0 || order.IntendedVolume <= 0 {
			continue
		}
		portions = append(portions, map[string]float64{
			order.VenueOrderID: opening / order.IntendedVolume,
		})
	}
	if len(portions) == 0 {
		return
	}

	update := executionUpdate{
		StateID:        &stateID,
		FilledPortions: portions,
	}
	if m.publishUpdate(ctx, update) {
		m.published[stateID] = struct{}{}
	}
}

// publishClosure emits the trade-closure update. Closures are always sent,
// never deduplicated.
func (m *Manager) publishClosure(ctx context.Context, reward float64) {
	portions := make([]map[string]float64, 0, len(m.current.Orders))
	for i := range m.current.Orders {
		order := &m.current.Orders[i]
		if order.TradeID != m.current.TradeID {
			continue
		}
		fraction := math.Min(1.0, order.ExecutionFraction)
		portions = append(portions, map[string]float64{order.VenueOrderID: fraction})
	}

	update := executionUpdate{
		IsTradeClosed:  true,
		FilledPortions: portions,
		Reward:         &reward,
	}
	m.publishUpdate(ctx, update)
}
