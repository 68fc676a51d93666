package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"main/internal/guard"
	"main/internal/schema"
	"main/internal/tracker"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type placedOrder struct {
	stateID   uint32
	side      schema.Side
	orderType schema.OrderType
	size      float64
	price     float64
}

type fakeVenue struct {
	mu        sync.Mutex
	placed    []placedOrder
	cancelled []string
	accept    bool
}

func (v *fakeVenue) PlaceOrder(_ context.Context, stateID uint32, _, _ string, side schema.Side, orderType schema.OrderType, size, price float64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.accept {
		v.placed = append(v.placed, placedOrder{stateID, side, orderType, size, price})
	}
	return v.accept
}

func (v *fakeVenue) placedCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.placed)
}

func (v *fakeVenue) CancelOrder(_ context.Context, venueOrderID string) bool {
	v.cancelled = append(v.cancelled, venueOrderID)
	return true
}

type fakePublisher struct {
	updates []executionUpdate
}

func (p *fakePublisher) Produce(_ context.Context, payload []byte) error {
	var update executionUpdate
	if err := sonic.ConfigFastest.Unmarshal(payload, &update); err != nil {
		return err
	}
	p.updates = append(p.updates, update)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *fakeVenue, *fakePublisher, *tracker.Account) {
	t.Helper()

	g, err := guard.New(0.2)
	require.NoError(t, err)

	venue := &fakeVenue{accept: true}
	publisher := &fakePublisher{}
	account := &tracker.Account{}
	account.SetBalance(10000)

	m := New(Config{Instrument: "BTC-USDT-SWAP", TradeMode: "cross"},
		g, tracker.New(venue), account, venue, publisher, nil)
	return m, venue, publisher, account
}

// placeAndAck walks an order through placement bookkeeping so fills on it
// resolve.
func placeAndAck(m *Manager, stateID uint32, venueID string, side schema.Side, volume, price float64) {
	m.tracker.Add(context.Background(), &schema.Order{
		StateID:        stateID,
		Side:           side,
		IntendedVolume: volume,
		IntendedPrice:  price,
		State:          schema.OrderStatePending,
	})
	m.handleVenueAck(stateID, venueID)
}

func TestSplitFill(t *testing.T) {
	testCases := []struct {
		desc        string
		fillDelta   float64
		previousNet float64
		wantClose   float64
		wantOpen    float64
	}{
		{"pure close long", 5, 5, 5, 0},
		{"partial close", 3, 5, 3, 0},
		{"flip long to short", 8, 5, 5, 3},
		{"flip short to long", 8, -5, 5, 3},
		{"from flat", 4, 0, 0, 4},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			closing, opening := SplitFill(tc.fillDelta, tc.previousNet)
			assert.Equal(t, tc.wantClose, closing)
			assert.Equal(t, tc.wantOpen, opening)
		})
	}
}

func TestHandleActionPlacesOrder(t *testing.T) {
	m, venue, _, _ := newTestManager(t)

	// price < 0 buys below mid with a limit order.
	m.handleAction(context.Background(), schema.TradingAction{
		Type:     0,
		Price:    -2.0,
		Volume:   1.0,
		MidPrice: 50000,
		StateID:  42,
	})

	require.Len(t, venue.placed, 1)
	placed := venue.placed[0]
	assert.Equal(t, uint32(42), placed.stateID)
	assert.Equal(t, schema.SideBuy, placed.side)
	assert.Equal(t, schema.OrderTypeLimit, placed.orderType)
	assert.InDelta(t, 50000*(1-2.0/1000.0), placed.price, 1e-9)

	// margin = 10000 * 0.001 * 1 = 10; size = 100*10/(price/100), ceiled.
	assert.InDelta(t, 2.1, placed.size, 1e-9)

	require.Equal(t, 1, m.tracker.Outstanding())
	order := m.tracker.ByStateID(42)
	require.NotNil(t, order)
	assert.Equal(t, schema.OrderStatePending, order.State)
}

func TestHandleActionSellsAboveMidWithMarket(t *testing.T) {
	m, venue, _, _ := newTestManager(t)

	m.handleAction(context.Background(), schema.TradingAction{
		Type:     1,
		Price:    3.0,
		Volume:   1.0,
		MidPrice: 50000,
		StateID:  7,
	})

	require.Len(t, venue.placed, 1)
	assert.Equal(t, schema.SideSell, venue.placed[0].side)
	assert.Equal(t, schema.OrderTypeMarket, venue.placed[0].orderType)
	assert.InDelta(t, 50000*(1+3.0/1000.0), venue.placed[0].price, 1e-9)
}

func TestHandleActionDropsDustSize(t *testing.T) {
	m, venue, _, _ := newTestManager(t)

	// Zero volume commits no margin, so the computed size is zero.
	m.handleAction(context.Background(), schema.TradingAction{
		Price:    -1.0,
		Volume:   0,
		MidPrice: 50000,
		StateID:  1,
	})

	assert.Empty(t, venue.placed)
	assert.Zero(t, m.tracker.Outstanding())
}

func TestHandleActionDropsWhenHeadroomExhausted(t *testing.T) {
	m, venue, _, account := newTestManager(t)
	account.SetBalance(1)

	// A 1 USDT balance leaves headroom below the minimum contract size.
	m.handleAction(context.Background(), schema.TradingAction{
		Price:    -1.0,
		Volume:   1.0,
		MidPrice: 50000,
		StateID:  1,
	})

	assert.Empty(t, venue.placed)
	assert.Zero(t, m.tracker.Outstanding())
}

func TestHandleActionDropsOnVenueRejection(t *testing.T) {
	m, venue, _, _ := newTestManager(t)
	venue.accept = false

	m.handleAction(context.Background(), schema.TradingAction{
		Price:    -1.0,
		Volume:   1.0,
		MidPrice: 50000,
		StateID:  1,
	})

	assert.Zero(t, m.tracker.Outstanding(), "rejected orders are not recorded")
}

func TestHandleActionRequiresBalance(t *testing.T) {
	m, venue, _, _ := newTestManager(t)
	m.account = &tracker.Account{}

	m.handleAction(context.Background(), schema.TradingAction{
		Price:    -1.0,
		Volume:   1.0,
		MidPrice: 50000,
		StateID:  1,
	})

	assert.Empty(t, venue.placed)
}

func TestFillOpensTrade(t *testing.T) {
	m, _, publisher, _ := newTestManager(t)
	ctx := context.Background()

	placeAndAck(m, 1, "okx-buy", schema.SideBuy, 5, 100)
	m.handleFill(ctx, schema.FillNotification{
		VenueOrderID:     "okx-buy",
		CumulativeFilled: 5,
		AvgPrice:         100,
		Side:             schema.SideBuy,
		State:            schema.OrderStateFilled,
		TimestampMs:      1000,
	})

	trade := m.CurrentTrade()
	require.NotNil(t, trade)
	assert.True(t, trade.Active)
	assert.True(t, trade.IsLong)
	assert.Equal(t, 5.0, trade.NetSize)
	assert.Equal(t, "okx-buy", trade.TradeID)
	assert.Equal(t, 100.0, trade.AvgBuyPrice())

	require.Len(t, publisher.updates, 1)
	update := publisher.updates[0]
	assert.False(t, update.IsTradeClosed)
	require.Len(t, update.FilledPortions, 1)
	assert.InDelta(t, 1.0, update.FilledPortions[0]["okx-buy"], 1e-9)
}

func TestDualPurposeFillClosesAndFlips(t *testing.T) {
	m, _, publisher, _ := newTestManager(t)
	ctx := context.Background()

	placeAndAck(m, 1, "okx-buy", schema.SideBuy, 5, 100)
	m.handleFill(ctx, schema.FillNotification{
		VenueOrderID:     "okx-buy",
		CumulativeFilled: 5,
		AvgPrice:         100,
		Side:             schema.SideBuy,
		State:            schema.OrderStateFilled,
		TimestampMs:      1000,
	})

	placeAndAck(m, 2, "okx-sell", schema.SideSell, 8, 110)
	m.handleFill(ctx, schema.FillNotification{
		VenueOrderID:     "okx-sell",
		CumulativeFilled: 8,
		AvgPrice:         110,
		Side:             schema.SideSell,
		State:            schema.OrderStateFilled,
		TimestampMs:      2000,
	})

	// 5 units close the long, 3 open a short.
	trade := m.CurrentTrade()
	require.NotNil(t, trade)
	assert.False(t, trade.IsLong)
	assert.Equal(t, -3.0, trade.NetSize)
	assert.Equal(t, "okx-sell", trade.TradeID)
	assert.Equal(t, 110.0, trade.AvgSellPrice())

	// Open update, closing-progress update, then the closure.
	require.Len(t, publisher.updates, 3)

	progress := publisher.updates[1]
	assert.False(t, progress.IsTradeClosed)
	require.NotNil(t, progress.ExecutionPercentage)
	assert.InDelta(t, 5.0/8.0, *progress.ExecutionPercentage, 1e-9)

	closure := publisher.updates[2]
	assert.True(t, closure.IsTradeClosed)
	require.NotNil(t, closure.Reward)
	// Long closed at avg sell 110 over avg buy 100: 10% in basis points.
	assert.InDelta(t, 1000.0, *closure.Reward, 1e-9)
	require.Len(t, closure.FilledPortions, 2)
	assert.InDelta(t, 1.0, closure.FilledPortions[0]["okx-buy"], 1e-9)
	assert.InDelta(t, 5.0/8.0, closure.FilledPortions[1]["okx-sell"], 1e-9)
}

func TestExactCloseResetsToFlat(t *testing.T) {
	m, _, publisher, _ := newTestManager(t)
	ctx := context.Background()

	placeAndAck(m, 1, "okx-buy", schema.SideBuy, 5, 100)
	m.handleFill(ctx, schema.FillNotification{
		VenueOrderID:     "okx-buy",
		CumulativeFilled: 5,
		AvgPrice:         100,
		Side:             schema.SideBuy,
		State:            schema.OrderStateFilled,
		TimestampMs:      1000,
	})

	placeAndAck(m, 2, "okx-sell", schema.SideSell, 5, 90)
	m.handleFill(ctx, schema.FillNotification{
		VenueOrderID:     "okx-sell",
		CumulativeFilled: 5,
		AvgPrice:         90,
		Side:             schema.SideSell,
		State:            schema.OrderStateFilled,
		TimestampMs:      2000,
	})

	assert.Nil(t, m.CurrentTrade(), "exact close leaves no active trade")

	closure := publisher.updates[len(publisher.updates)-1]
	assert.True(t, closure.IsTradeClosed)
	require.NotNil(t, closure.Reward)
	// Sold at 90 against 100: -10% in basis points.
	assert.InDelta(t, -1000.0, *closure.Reward, 1e-9)
}

func TestRewardAdjustedForDrawdown(t *testing.T) {
	m, _, publisher, account := newTestManager(t)
	ctx := context.Background()
	account.ObserveUplRatio(-0.1)

	placeAndAck(m, 1, "okx-buy", schema.SideBuy, 5, 100)
	m.handleFill(ctx, schema.FillNotification{
		VenueOrderID: "okx-buy", CumulativeFilled: 5, AvgPrice: 100,
		Side: schema.SideBuy, State: schema.OrderStateFilled, TimestampMs: 1000,
	})
	placeAndAck(m, 2, "okx-sell", schema.SideSell, 5, 110)
	m.handleFill(ctx, schema.FillNotification{
		VenueOrderID: "okx-sell", CumulativeFilled: 5, AvgPrice: 110,
		Side: schema.SideSell, State: schema.OrderStateFilled, TimestampMs: 2000,
	})

	closure := publisher.updates[len(publisher.updates)-1]
	require.NotNil(t, closure.Reward)
	// 1000 bps scaled by (1 - 2*0.1).
	assert.InDelta(t, 800.0, *closure.Reward, 1e-9)
}

func TestDuplicateFillIsNoOp(t *testing.T) {
	m, _, publisher, _ := newTestManager(t)
	ctx := context.Background()

	placeAndAck(m, 1, "okx-buy", schema.SideBuy, 5, 100)
	fill := schema.FillNotification{
		VenueOrderID:     "okx-buy",
		CumulativeFilled: 5,
		AvgPrice:         100,
		Side:             schema.SideBuy,
		State:            schema.OrderStateFilled,
		TimestampMs:      1000,
	}
	m.handleFill(ctx, fill)
	before := len(publisher.updates)
	netBefore := m.CurrentTrade().NetSize

	m.handleFill(ctx, fill)

	assert.Equal(t, before, len(publisher.updates), "duplicate must not publish")
	assert.Equal(t, netBefore, m.CurrentTrade().NetSize)
}

func TestUnknownOrderFillDropped(t *testing.T) {
	m, _, publisher, _ := newTestManager(t)

	m.handleFill(context.Background(), schema.FillNotification{
		VenueOrderID:     "okx-stranger",
		CumulativeFilled: 5,
		AvgPrice:         100,
		Side:             schema.SideBuy,
		State:            schema.OrderStateFilled,
	})

	assert.Nil(t, m.CurrentTrade())
	assert.Empty(t, publisher.updates)
}

func TestFillOnEvictedOrderStillAttributable(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	placeAndAck(m, 1, "okx-old", schema.SideBuy, 5, 100)
	m.tracker.Remove("okx-old")

	// The attribution map survives eviction.
	m.handleFill(ctx, schema.FillNotification{
		VenueOrderID:     "okx-old",
		CumulativeFilled: 2,
		AvgPrice:         100,
		Side:             schema.SideBuy,
		State:            schema.OrderStatePartiallyFilled,
		TimestampMs:      1000,
	})

	trade := m.CurrentTrade()
	require.NotNil(t, trade)
	assert.Equal(t, 2.0, trade.NetSize)
}

func TestRunProcessesSubmittedEvents(t *testing.T) {
	m, venue, _, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.NoError(t, m.SubmitAction(schema.TradingAction{
		Price:    -1.0,
		Volume:   1.0,
		MidPrice: 50000,
		StateID:  9,
	}))

	assert.Eventually(t, func() bool {
		return venue.placedCount() == 1
	}, time.Second, 5*time.Millisecond)

	m.Close()
	<-done
}

func TestNonClosurePublishDeduplicatedByStateID(t *testing.T) {
	m, _, publisher, _ := newTestManager(t)
	ctx := context.Background()

	placeAndAck(m, 1, "okx-buy", schema.SideBuy, 10, 100)
	m.handleFill(ctx, schema.FillNotification{
		VenueOrderID:     "okx-buy",
		CumulativeFilled: 2,
		AvgPrice:         100,
		Side:             schema.SideBuy,
		State:            schema.OrderStatePartiallyFilled,
		TimestampMs:      1000,
	})
	require.Len(t, publisher.updates, 1)

	m.handleFill(ctx, schema.FillNotification{
		VenueOrderID:     "okx-buy",
		CumulativeFilled: 4,
		AvgPrice:         100,
		Side:             schema.SideBuy,
		State:            schema.OrderStatePartiallyFilled,
		TimestampMs:      2000,
	})

	assert.Len(t, publisher.updates, 1, "same state ID publishes at most once")
	assert.Equal(t, 4.0, m.CurrentTrade().NetSize)
}
