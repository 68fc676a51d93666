package schema

import "main/pkg/exception"

// Side describes order direction.
type Side uint16

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// ParseSide converts the wire string into a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return SideUnknown, exception.ErrInvalidSide
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the other tradeable side.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideUnknown
	}
}

// OrderState tracks the lifecycle of a venue order.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStatePending
	OrderStateLive
	OrderStatePartiallyFilled
	OrderStateFilled
	OrderStateRejected
)

// ParseOrderState converts the venue state string into an OrderState.
func ParseOrderState(s string) OrderState {
	switch s {
	case "live":
		return OrderStateLive
	case "partially_filled":
		return OrderStatePartiallyFilled
	case "filled":
		return OrderStateFilled
	case "canceled", "rejected":
		return OrderStateRejected
	default:
		return OrderStateUnknown
	}
}

func (s OrderState) String() string {
	switch s {
	case OrderStatePending:
		return "pending"
	case OrderStateLive:
		return "live"
	case OrderStatePartiallyFilled:
		return "partially_filled"
	case OrderStateFilled:
		return "filled"
	case OrderStateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the order can no longer change.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFilled, OrderStateRejected:
		return true
	default:
		return false
	}
}

// OrderType describes order type.
type OrderType uint16

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

func (t OrderType) String() string {
	if t == OrderTypeMarket {
		return "market"
	}
	return "limit"
}

// CancelState tracks the cancellation sub-machine for evicted orders.
type CancelState uint16

const (
	CancelSent CancelState = iota
	CancelConfirmed
)
