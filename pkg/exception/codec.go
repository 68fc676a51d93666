package exception

import "errors"

var (
	ErrMalformedMessage   = errors.New("codec: malformed message")
	ErrMidPriceOutOfRange = errors.New("codec: mid-price must be between 0.00 and 1000000.00")
)
