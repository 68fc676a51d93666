package guard

import (
	"fmt"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	// Leverage is fixed by the venue contract.
	Leverage = 100.0
	// MinContractSize is the smallest order OKX accepts.
	MinContractSize = 0.1
)

// Decision is the outcome of a size validation.
type Decision struct {
	Allowed        bool
	AdjustedSize   float64
	WasAdjusted    bool
	Reason         string
	SideExposure   float64
	MaxAllowed     float64
	AvailableSpace float64
}

// Guard caps order sizes so total per-side exposure stays within the margin
// the account can carry.
type Guard struct {
	marginFraction float64
}

// New creates a guard. The margin fraction must be in (0, 1].
func New(marginFraction float64) (*Guard, error) {
	if marginFraction <= 0 || marginFraction > 1 {
		return nil, errors.Errorf("margin fraction %v out of (0, 1]", marginFraction)
	}
	return &Guard{marginFraction: marginFraction}, nil
}

// ValidateSide parses a side string at the transport boundary.
func ValidateSide(side string) (schema.Side, error) {
	return schema.ParseSide(side)
}

// Validate checks a requested order size against the per-side exposure cap
// and shrinks it into the remaining headroom when possible. It is pure: all
// inputs are passed in, nothing is mutated.
func (g *Guard) Validate(requestedSize float64, side schema.Side, capital float64, trade *schema.Trade, pendingOrders []schema.Order, midPrice float64) (Decision, error) {
	if side != schema.SideBuy && side != schema.SideSell {
		return Decision{}, exception.ErrInvalidSide
	}
	if midPrice <= 0 {
		return Decision{Reason: "mid price must be positive"}, nil
	}

	maxAllowed := capital * g.marginFraction * Leverage / midPrice
	exposure := sideExposure(side, trade, pendingOrders)
	available := maxAllowed - exposure

	decision := Decision{
		SideExposure:   exposure,
		MaxAllowed:     maxAllowed,
		AvailableSpace: available,
	}

	switch {
	case available < MinContractSize:
		decision.Reason = fmt.Sprintf("remaining %s headroom %.4f below minimum contract size %.1f", side, available, MinContractSize)
	case requestedSize <= available:
		decision.Allowed = true
		decision.AdjustedSize = requestedSize
	default:
		decision.Allowed = true
		decision.AdjustedSize = available
		decision.WasAdjusted = true
		decision.Reason = fmt.Sprintf("size %.4f reduced to %s headroom %.4f", requestedSize, side, available)
	}

	return decision, nil
}

// sideExposure sums the active trade's net size with the unfilled remainder
// of every pending order on the requested side.
func sideExposure(side schema.Side, trade *schema.Trade, pendingOrders []schema.Order) float64 {
	var exposure float64

	if trade != nil && trade.Active {
		switch {
		case side == schema.SideBuy && trade.NetSize > 0:
			exposure += trade.NetSize
		case side == schema.SideSell && trade.NetSize < 0:
			exposure += -trade.NetSize
		}
	}

	for _, order := range pendingOrders {
		if order.Side != side || order.State.Terminal() {
			continue
		}
		if remaining := order.IntendedVolume - order.CumulativeFilled; remaining > 0 {
			exposure += remaining
		}
	}

	return exposure
}
