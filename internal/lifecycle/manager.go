package lifecycle

import (
	"context"
	"math"

	"main/internal/bus"
	"main/internal/guard"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/tracker"

	"github.com/yanun0323/logs"
)

const (
	// fillEpsilon below which a cumulative-fill delta is a duplicate.
	fillEpsilon = 1e-8
	// minPortionSize below which an opening remainder is dust and ignored.
	minPortionSize = 0.001
)

// OrderPlacer submits orders to the venue. A false return means the venue
// rejected the request; the triggering action is dropped, never retried.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, stateID uint32, instrument, tradeMode string, side schema.Side, orderType schema.OrderType, size, price float64) bool
}

// Publisher carries execution updates downstream.
type Publisher interface {
	Produce(ctx context.Context, payload []byte) error
}

// Journal records closed trades. Best effort: failures are logged, never
// propagated.
type Journal interface {
	RecordClosedTrade(ctx context.Context, trade schema.Trade, reward float64)
}

// Config holds the venue parameters every order is placed with.
type Config struct {
	Instrument string
	TradeMode  string
}

// event is the unit flowing through the manager's single-writer queue.
type event struct {
	kind    eventKind
	action  schema.TradingAction
	fill    schema.FillNotification
	stateID uint32
	venueID string
}

type eventKind uint8

const (
	eventAction eventKind = iota
	eventFill
	eventVenueAck
	eventCancelAck
)

// Manager owns the current trade, the outstanding-order set and the dedup
// set. All mutation happens on the Run goroutine; producers enqueue events.
type Manager struct {
	cfg       Config
	guard     *guard.Guard
	tracker   *tracker.Tracker
	account   *tracker.Account
	venue     OrderPlacer
	publisher Publisher
	journal   Journal

	current *schema.Trade
	next    *schema.Trade

	// knownOrders maps venue order ID to state ID. Append-only so fills on
	// evicted orders stay attributable.
	knownOrders map[string]uint32
	published   map[uint32]struct{}

	events *bus.Queue[event]
}

// New creates a manager. The journal may be nil.
func New(cfg Config, g *guard.Guard, t *tracker.Tracker, a *tracker.Account, venue OrderPlacer, publisher Publisher, journal Journal) *Manager {
	return &Manager{
		cfg:         cfg,
		guard:       g,
		tracker:     t,
		account:     a,
		venue:       venue,
		publisher:   publisher,
		journal:     journal,
		knownOrders: make(map[string]uint32),
		published:   make(map[uint32]struct{}),
		events:      bus.NewQueue[event](1024),
	}
}

// SubmitAction enqueues a decoded policy action.
func (m *Manager) SubmitAction(action schema.TradingAction) error {
	return m.events.TryPublish(event{kind: eventAction, action: action})
}

// SubmitFill enqueues a venue fill notification, typically from the fill
// buffer's drain.
func (m *Manager) SubmitFill(fill schema.FillNotification) error {
	return m.events.TryPublish(event{kind: eventFill, fill: fill})
}

// SubmitVenueAck enqueues a venue order-ID assignment.
func (m *Manager) SubmitVenueAck(stateID uint32, venueOrderID string) error {
	return m.events.TryPublish(event{kind: eventVenueAck, stateID: stateID, venueID: venueOrderID})
}

// SubmitCancelAck enqueues a venue cancellation acknowledgement.
func (m *Manager) SubmitCancelAck(venueOrderID string) error {
	return m.events.TryPublish(event{kind: eventCancelAck, venueID: venueOrderID})
}

// Close stops the event queue.
func (m *Manager) Close() {
	m.events.Close()
}

// Run consumes events until the context is done. It is the only goroutine
// allowed to touch the trade and order state.
func (m *Manager) Run(ctx context.Context) {
	m.events.Run(ctx, func(e event) {
		switch e.kind {
		case eventAction:
			m.handleAction(ctx, e.action)
		case eventFill:
			m.handleFill(ctx, e.fill)
		case eventVenueAck:
			m.handleVenueAck(e.stateID, e.venueID)
		case eventCancelAck:
			m.tracker.ConfirmCancel(e.venueID)
		}
	})
}

// handleAction converts a policy action into a venue order. The price field
// is a fractional offset from mid in tenths of a percent; its sign picks the
// side. The volume field scales the margin committed to the order.
func (m *Manager) handleAction(ctx context.Context, action schema.TradingAction) {
	balance, ok := m.account.Balance()
	if !ok {
		logs.Errorf("dropping action for state %d: no balance received", action.StateID)
		obs.IncAction("no_balance")
		return
	}

	orderPrice := action.MidPrice * (1.0 + action.Price/1000.0)
	if orderPrice <= 0 {
		logs.Errorf("dropping action for state %d: order price %v", action.StateID, orderPrice)
		obs.IncAction("bad_price")
		return
	}

	side := schema.SideSell
	if action.Price < 0 {
		side = schema.SideBuy
	}
	orderType := schema.OrderTypeMarket
	if action.Type == 0 {
		orderType = schema.OrderTypeLimit
	}

	margin := balance * 0.001 * action.Volume
	size := guard.Leverage * margin / (orderPrice / 100.0)
	size = math.Ceil(size*10.0) / 10.0
	if size < guard.MinContractSize {
		logs.Infof("calculated size %v below minimum, ignoring action for state %d", size, action.StateID)
		obs.IncAction("dust")
		return
	}

	// The order price stands in for mid in the margin headroom check.
	decision, err := m.guard.Validate(size, side, balance, m.current, m.tracker.Pending(), orderPrice)
	if err != nil {
		logs.Errorf("size validation failed for state %d: %v", action.StateID, err)
		obs.IncAction("invalid")
		return
	}
	if !decision.Allowed {
		logs.Infof("order rejected for state %d: %s", action.StateID, decision.Reason)
		obs.IncAction("rejected")
		return
	}
	if decision.WasAdjusted {
		logs.Infof("order size adjusted from %v to %v for state %d", size, decision.AdjustedSize, action.StateID)
	}
	finalSize := decision.AdjustedSize

	stateID := uint32(action.StateID)
	if !m.venue.PlaceOrder(ctx, stateID, m.cfg.Instrument, m.cfg.TradeMode, side, orderType, finalSize, orderPrice) {
		logs.Errorf("venue rejected order for state %d", stateID)
		obs.IncAction("venue_rejected")
		return
	}
	obs.IncAction("placed")
	obs.IncOrderPlaced(side.String())

	m.tracker.Add(ctx, &schema.Order{
		StateID:        stateID,
		Side:           side,
		IntendedVolume: finalSize,
		IntendedPrice:  orderPrice,
		State:          schema.OrderStatePending,
	})
}

// handleVenueAck binds a venue order ID to the placed order and records the
// attribution mapping.
func (m *Manager) handleVenueAck(stateID uint32, venueOrderID string) {
	m.knownOrders[venueOrderID] = stateID
	if m.tracker.AssignVenueID(stateID, venueOrderID) == nil {
		logs.Infof("venue ack for unknown state %d (order %s)", stateID, venueOrderID)
	}
}

// handleFill applies one venue fill notification to the current trade.
func (m *Manager) handleFill(ctx context.Context, fill schema.FillNotification) {
	stateID, known := m.knownOrders[fill.VenueOrderID]
	if !known {
		logs.Infof("fill for unknown order %s dropped", fill.VenueOrderID)
		obs.IncFill("unknown")
		return
	}

	if fill.State == schema.OrderStateRejected {
		m.tracker.Remove(fill.VenueOrderID)
		return
	}

	previousCumulative := m.previousCumulative(fill.VenueOrderID)
	fillDelta := fill.CumulativeFilled - previousCumulative
	if fillDelta <= fillEpsilon {
		obs.IncFill("duplicate")
		return
	}

	m.syncTrackerOrder(fill)

	if m.current == nil || !m.current.Active {
		obs.IncFill("open")
		m.openTrade(ctx, stateID, fill, fillDelta)
		return
	}

	sameDirection := (m.current.IsLong && fill.Side == schema.SideBuy) ||
		(!m.current.IsLong && fill.Side == schema.SideSell)
	if sameDirection {
		obs.IncFill("add")
		m.extendTrade(ctx, stateID, fill, fillDelta)
	} else {
		m.reduceTrade(ctx, stateID, fill, fillDelta)
	}
}

// previousCumulative finds the last recorded cumulative fill for a venue
// order, checking the current trade first, then the outstanding set.
func (m *Manager) previousCumulative(venueOrderID string) float64 {
	if m.current != nil {
		if order := m.current.OrderByVenueID(venueOrderID); order != nil {
			return order.CumulativeFilled
		}
	}
	if order := m.tracker.ByVenueID(venueOrderID); order != nil {
		return order.CumulativeFilled
	}
	return 0
}

// syncTrackerOrder mirrors the venue-reported fill state onto the
// outstanding-order entry so exposure checks see current numbers.
func (m *Manager) syncTrackerOrder(fill schema.FillNotification) {
	order := m.tracker.ByVenueID(fill.VenueOrderID)
	if order == nil {
		return
	}
	order.CumulativeFilled = fill.CumulativeFilled
	order.AvgFillPrice = fill.AvgPrice
	order.State = fill.State
	if order.State == schema.OrderStateFilled {
		order.ExecutionFraction = 1.0
	} else if order.IntendedVolume > 0 {
		order.ExecutionFraction = fill.CumulativeFilled / order.IntendedVolume
	}
}

// openTrade starts a new trade from flat with the fill delta as its seed.
// The venue order ID doubles as the trade ID.
func (m *Manager) openTrade(ctx context.Context, stateID uint32, fill schema.FillNotification, fillDelta float64) {
	trade := &schema.Trade{
		TradeID: fill.VenueOrderID,
		Active:  true,
		IsLong:  fill.Side == schema.SideBuy,
	}
	m.current = trade

	order := m.tradeOrder(stateID, fill)
	m.appendPortion(order, schema.FillPortion{
		TradeID:     trade.TradeID,
		Size:        fillDelta,
		Price:       fill.AvgPrice,
		TimestampMs: fill.TimestampMs,
	})
	trade.Orders = append(trade.Orders, *order)

	m.reconcileNet()
	m.accumulateReward(fill, fillDelta)

	logs.Infof("opened %s trade %s with net size %v",
		direction(trade.IsLong), trade.TradeID, trade.NetSize)

	m.publishOpenTrade(ctx, stateID)
}

// extendTrade adds a same-direction fill to the current trade.
func (m *Manager) extendTrade(ctx context.Context, stateID uint32, fill schema.FillNotification, fillDelta float64) {
	order := m.findOrCreateOrder(stateID, fill)
	m.appendPortion(order, schema.FillPortion{
		TradeID:     m.current.TradeID,
		Size:        fillDelta,
		Price:       fill.AvgPrice,
		TimestampMs: fill.TimestampMs,
	})
	m.updateOrderProgress(order, fill)

	m.reconcileNet()
	m.accumulateReward(fill, fillDelta)

	if m.maybeClose(ctx) {
		return
	}
	m.publishOpenTrade(ctx, stateID)
}

// reduceTrade applies an opposite-direction fill, splitting it between
// closing the current trade and seeding the next one.
func (m *Manager) reduceTrade(ctx context.Context, stateID uint32, fill schema.FillNotification, fillDelta float64) {
	closingSize, openingSize := SplitFill(fillDelta, m.current.NetSize)
	if openingSize >= minPortionSize {
		obs.IncFill("flip")
	} else {
		obs.IncFill("close")
	}

	order := m.findOrCreateOrder(stateID, fill)
	if closingSize > 0 {
		m.appendPortion(order, schema.FillPortion{
			TradeID:     m.current.TradeID,
			Size:        closingSize,
			Price:       fill.AvgPrice,
			TimestampMs: fill.TimestampMs,
			IsClosing:   true,
		})
	}
	m.updateOrderProgress(order, fill)
	m.current.TotalReducedSize += closingSize

	// The fraction reported at closure covers only what this trade absorbed;
	// the opening surplus belongs to the next trade.
	if order.IntendedVolume > 0 {
		var attributed float64
		for _, p := range order.Portions {
			if p.TradeID == m.current.TradeID {
				attributed += p.Size
			}
		}
		order.ExecutionFraction = attributed / order.IntendedVolume
	}

	if openingSize >= minPortionSize {
		m.seedNextTrade(stateID, fill, openingSize)
	}

	m.reconcileNet()
	m.accumulateReward(fill, closingSize)

	if order.IntendedVolume > 0 {
		m.publishProgress(ctx, stateID, fill.VenueOrderID, closingSize/order.IntendedVolume)
	}
	m.maybeClose(ctx)
}

// seedNextTrade builds the pending-next trade opened by the surplus of a
// dual-purpose fill.
func (m *Manager) seedNextTrade(stateID uint32, fill schema.FillNotification, openingSize float64) {
	next := &schema.Trade{
		TradeID: fill.VenueOrderID,
		Active:  true,
		IsLong:  fill.Side == schema.SideBuy,
	}

	order := m.tradeOrder(stateID, fill)
	order.TradeID = next.TradeID
	order.Portions = append(order.Portions, schema.FillPortion{
		TradeID:     next.TradeID,
		Size:        openingSize,
		Price:       fill.AvgPrice,
		TimestampMs: fill.TimestampMs,
	})
	if order.IntendedVolume > 0 {
		order.ExecutionFraction = openingSize / order.IntendedVolume
	}
	next.Orders = append(next.Orders, *order)

	if next.IsLong {
		next.BuyTotalSize = openingSize
		next.BuyCumulativePrice = fill.AvgPrice * openingSize
		next.NetSize = openingSize
	} else {
		next.SellTotalSize = openingSize
		next.SellCumulativePrice = fill.AvgPrice * openingSize
		next.NetSize = -openingSize
	}

	m.next = next
}

// reconcileNet recomputes the current trade's net size from its portions.
// The running total is never trusted on its own.
func (m *Manager) reconcileNet() {
	if m.current == nil {
		return
	}
	m.current.NetSize = m.current.NetFromPortions()
}

// maybeClose finishes the trade when its net size has collapsed to zero.
// Returns true when a closure happened.
func (m *Manager) maybeClose(ctx context.Context) bool {
	if m.current == nil || math.Abs(m.current.NetSize) >= fillEpsilon {
		return false
	}

	reward := m.closureReward()
	m.publishClosure(ctx, reward)
	obs.IncTradeClosed(reward)

	if m.journal != nil {
		m.journal.RecordClosedTrade(ctx, *m.current, reward)
	}

	logs.Infof("trade %s closed with reward %v", m.current.TradeID, reward)

	if m.next != nil {
		m.current = m.next
		m.next = nil
	} else {
		m.current = nil
	}
	return true
}

// closureReward computes the risk-adjusted reward for the closing trade in
// basis points. Positive rewards shrink with observed drawdown, negative
// ones deepen.
func (m *Manager) closureReward() float64 {
	avgBuy := m.current.AvgBuyPrice()
	avgSell := m.current.AvgSellPrice()
	if avgBuy <= 0 || avgSell <= 0 {
		return 0
	}

	var reward float64
	if m.current.IsLong {
		reward = (avgSell - avgBuy) / avgBuy * 10000.0
	} else {
		reward = (avgBuy - avgSell) / avgSell * 10000.0
	}

	maxDD := math.Abs(m.account.MaxDrawdown())
	if reward > 0 {
		reward *= 1.0 - 2.0*maxDD
	} else if reward < 0 {
		reward *= 1.0 + 2.0*maxDD
	}
	return reward
}

// accumulateReward folds the venue-reported PnL of a fill into the trade's
// running per-unit reward.
func (m *Manager) accumulateReward(fill schema.FillNotification, amount float64) {
	if m.current == nil || fill.PnL == 0 || fill.CumulativeFilled <= 0 || fill.AvgPrice <= 0 {
		return
	}
	pnlFraction := fill.PnL / (fill.CumulativeFilled * fill.AvgPrice)
	m.current.CumulativeReward += amount * pnlFraction
}

// tradeOrder builds a fresh trade-level order record from a fill.
func (m *Manager) tradeOrder(stateID uint32, fill schema.FillNotification) *schema.Order {
	order := &schema.Order{
		StateID:          stateID,
		VenueOrderID:     fill.VenueOrderID,
		HasVenueID:       true,
		Side:             fill.Side,
		CumulativeFilled: fill.CumulativeFilled,
		AvgFillPrice:     fill.AvgPrice,
		State:            fill.State,
		FillTimeMs:       fill.TimestampMs,
	}
	if m.current != nil {
		order.TradeID = m.current.TradeID
	}
	if tracked := m.tracker.ByVenueID(fill.VenueOrderID); tracked != nil {
		order.IntendedVolume = tracked.IntendedVolume
		order.IntendedPrice = tracked.IntendedPrice
	}
	m.updateOrderProgress(order, fill)
	return order
}

// findOrCreateOrder returns the current trade's record for the filled order,
// adding one when the fill is the order's first touch on this trade.
func (m *Manager) findOrCreateOrder(stateID uint32, fill schema.FillNotification) *schema.Order {
	if order := m.current.OrderByVenueID(fill.VenueOrderID); order != nil {
		return order
	}
	order := m.tradeOrder(stateID, fill)
	m.current.Orders = append(m.current.Orders, *order)
	return &m.current.Orders[len(m.current.Orders)-1]
}

// appendPortion records a fill portion and folds it into the trade's side
// totals used for average prices.
func (m *Manager) appendPortion(order *schema.Order, portion schema.FillPortion) {
	if order.IntendedVolume > 0 {
		portion.ExecutionFraction = portion.Size / order.IntendedVolume
	}
	order.Portions = append(order.Portions, portion)

	if m.current == nil || portion.TradeID != m.current.TradeID {
		return
	}
	if order.Side == schema.SideBuy {
		m.current.BuyTotalSize += portion.Size
		m.current.BuyCumulativePrice += portion.Price * portion.Size
	} else {
		m.current.SellTotalSize += portion.Size
		m.current.SellCumulativePrice += portion.Price * portion.Size
	}
}

// updateOrderProgress mirrors venue-reported cumulative state onto the
// trade-level order record.
func (m *Manager) updateOrderProgress(order *schema.Order, fill schema.FillNotification) {
	order.CumulativeFilled = fill.CumulativeFilled
	order.AvgFillPrice = fill.AvgPrice
	order.State = fill.State
	order.FillTimeMs = fill.TimestampMs
	if fill.State == schema.OrderStateFilled {
		order.ExecutionFraction = 1.0
	} else if order.IntendedVolume > 0 {
		order.ExecutionFraction = fill.CumulativeFilled / order.IntendedVolume
	}
}

// CurrentTrade returns a copy of the current trade, nil when flat.
func (m *Manager) CurrentTrade() *schema.Trade {
	if m.current == nil {
		return nil
	}
	trade := *m.current
	return &trade
}

func direction(isLong bool) string {
	if isLong {
		return "long"
	}
	return "short"
}
