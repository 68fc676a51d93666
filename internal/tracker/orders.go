package tracker

import (
	"context"

	"main/internal/schema"

	"github.com/yanun0323/logs"
)

// maxOutstanding bounds the concurrent outstanding-order set. Beyond it the
// oldest cancellable entry is pushed to the cancellation queue and evicted.
const maxOutstanding = 300

// Canceler sends a cancellation request to the venue.
type Canceler interface {
	CancelOrder(ctx context.Context, venueOrderID string) bool
}

// Tracker owns the outstanding-order set and the cancellation sub-machine.
// It is mutated only from the lifecycle manager's event loop, so it carries
// no lock of its own.
type Tracker struct {
	orders        []*schema.Order
	cancellations map[string]schema.CancelState
	canceler      Canceler
}

// New creates an empty tracker bound to a cancellation sender.
func New(canceler Canceler) *Tracker {
	return &Tracker{
		orders:        make([]*schema.Order, 0, maxOutstanding),
		cancellations: make(map[string]schema.CancelState),
		canceler:      canceler,
	}
}

// Add appends an order to the outstanding set, evicting the oldest
// cancellable entry first when the set is at capacity.
func (t *Tracker) Add(ctx context.Context, order *schema.Order) {
	if len(t.orders) >= maxOutstanding {
		t.evictOldest(ctx)
	}
	t.orders = append(t.orders, order)
}

// evictOldest removes the first entry that already has a venue ID and is not
// filled, sending a cancellation for it. Entries without a venue ID cannot be
// cancelled and are skipped.
func (t *Tracker) evictOldest(ctx context.Context) {
	for i, order := range t.orders {
		if !order.HasVenueID || order.State == schema.OrderStateFilled {
			continue
		}

		t.cancellations[order.VenueOrderID] = schema.CancelSent
		if !t.canceler.CancelOrder(ctx, order.VenueOrderID) {
			logs.Errorf("cancel request for evicted order %s failed", order.VenueOrderID)
		}

		t.orders = append(t.orders[:i], t.orders[i+1:]...)
		return
	}

	// Every entry is either unacknowledged or filled; drop the oldest.
	if len(t.orders) > 0 {
		logs.Infof("order set full with no cancellable entry, dropping oldest %s", t.orders[0].VenueOrderID)
		t.orders = t.orders[1:]
	}
}

// ConfirmCancel advances the cancellation sub-machine when the venue
// acknowledges a cancel. Unknown IDs are ignored.
func (t *Tracker) ConfirmCancel(venueOrderID string) {
	if state, ok := t.cancellations[venueOrderID]; ok && state == schema.CancelSent {
		t.cancellations[venueOrderID] = schema.CancelConfirmed
	}
}

// CancelState looks up the cancellation sub-state for a venue order.
func (t *Tracker) CancelState(venueOrderID string) (schema.CancelState, bool) {
	state, ok := t.cancellations[venueOrderID]
	return state, ok
}

// ByVenueID returns the outstanding order with the given venue ID.
func (t *Tracker) ByVenueID(venueOrderID string) *schema.Order {
	for _, order := range t.orders {
		if order.HasVenueID && order.VenueOrderID == venueOrderID {
			return order
		}
	}
	return nil
}

// ByStateID returns the outstanding order placed for the given state ID.
func (t *Tracker) ByStateID(stateID uint32) *schema.Order {
	for _, order := range t.orders {
		if order.StateID == stateID {
			return order
		}
	}
	return nil
}

// AssignVenueID binds a venue order ID to the order placed for stateID.
func (t *Tracker) AssignVenueID(stateID uint32, venueOrderID string) *schema.Order {
	order := t.ByStateID(stateID)
	if order == nil {
		return nil
	}
	order.VenueOrderID = venueOrderID
	order.HasVenueID = true
	if order.State == schema.OrderStatePending {
		order.State = schema.OrderStateLive
	}
	return order
}

// Remove drops an order from the outstanding set.
func (t *Tracker) Remove(venueOrderID string) {
	for i, order := range t.orders {
		if order.HasVenueID && order.VenueOrderID == venueOrderID {
			t.orders = append(t.orders[:i], t.orders[i+1:]...)
			return
		}
	}
}

// Outstanding reports the current outstanding-order count.
func (t *Tracker) Outstanding() int {
	return len(t.orders)
}

// Orders returns the outstanding set in insertion order.
func (t *Tracker) Orders() []*schema.Order {
	return t.orders
}

// Pending returns copies of the not-yet-terminal orders for exposure checks.
func (t *Tracker) Pending() []schema.Order {
	pending := make([]schema.Order, 0, len(t.orders))
	for _, order := range t.orders {
		if !order.State.Terminal() {
			pending = append(pending, *order)
		}
	}
	return pending
}
