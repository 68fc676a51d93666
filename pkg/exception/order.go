package exception

import "errors"

var (
	ErrInvalidSide        = errors.New("order: side must be buy or sell")
	ErrInvalidMidPrice    = errors.New("order: mid-price must be positive")
	ErrUnknownOrder       = errors.New("order: not found in tracking")
	ErrOrderQueueFull     = errors.New("order: event queue full")
	ErrOrderQueueClosed   = errors.New("order: event queue closed")
	ErrVenueNotConnected  = errors.New("venue: not connected")
	ErrBalanceNotReceived = errors.New("venue: balance snapshot not received")
)
