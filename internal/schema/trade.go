package schema

// FillPortion is an immutable record of one fill attributed to one trade.
// A dual-purpose fill produces two portions with different trade IDs.
type FillPortion struct {
	TradeID           string
	Size              float64
	Price             float64
	TimestampMs       int64
	IsClosing         bool
	ExecutionFraction float64
}

// Order is one venue order. It is owned by the tracker while outstanding
// and copied into the current Trade on first fill.
type Order struct {
	StateID           uint32
	VenueOrderID      string
	HasVenueID        bool
	TradeID           string
	Side              Side
	IntendedVolume    float64
	IntendedPrice     float64
	CumulativeFilled  float64
	AvgFillPrice      float64
	State             OrderState
	ExecutionFraction float64
	FillTimeMs        int64
	Portions          []FillPortion
}

// OpeningSize sums the non-closing portion sizes.
func (o *Order) OpeningSize() float64 {
	var total float64
	for _, p := range o.Portions {
		if !p.IsClosing {
			total += p.Size
		}
	}
	return total
}

// Trade is the aggregate position built from fragmented fills.
// Exactly one trade is current at a time.
type Trade struct {
	TradeID             string
	Active              bool
	IsLong              bool
	NetSize             float64
	BuyCumulativePrice  float64
	BuyTotalSize        float64
	SellCumulativePrice float64
	SellTotalSize       float64
	CumulativeReward    float64
	TotalReducedSize    float64
	Orders              []Order
}

// AvgBuyPrice is the volume-weighted average buy price, 0 when nothing bought.
func (t *Trade) AvgBuyPrice() float64 {
	if t.BuyTotalSize <= 0 {
		return 0
	}
	return t.BuyCumulativePrice / t.BuyTotalSize
}

// AvgSellPrice is the volume-weighted average sell price, 0 when nothing sold.
func (t *Trade) AvgSellPrice() float64 {
	if t.SellTotalSize <= 0 {
		return 0
	}
	return t.SellCumulativePrice / t.SellTotalSize
}

// OrderByVenueID returns the trade's order with the given venue ID.
func (t *Trade) OrderByVenueID(venueID string) *Order {
	for i := range t.Orders {
		if t.Orders[i].VenueOrderID == venueID {
			return &t.Orders[i]
		}
	}
	return nil
}

// NetFromPortions recomputes the signed net position from the portions
// attributed to this trade. Buy portions count positive, sell negative.
func (t *Trade) NetFromPortions() float64 {
	var buys, sells float64
	for i := range t.Orders {
		order := &t.Orders[i]
		for _, p := range order.Portions {
			if p.TradeID != t.TradeID {
				continue
			}
			if order.Side == SideBuy {
				buys += p.Size
			} else {
				sells += p.Size
			}
		}
	}
	return buys - sells
}

// FillNotification is one decoded order-channel push from the venue.
// CumulativeFilled is the venue-reported running total, not a delta.
type FillNotification struct {
	VenueOrderID     string
	CumulativeFilled float64
	AvgPrice         float64
	Side             Side
	State            OrderState
	PnL              float64
	TimestampMs      int64
}

// TradingAction is one decoded policy action.
type TradingAction struct {
	Type     uint8
	Price    float64
	Volume   float64
	MidPrice float64
	StateID  uint16
}
