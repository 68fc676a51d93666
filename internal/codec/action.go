package codec

import (
	"encoding/binary"
	"math"

	"main/internal/schema"
	"main/pkg/exception"
)

const (
	// ActionV1Size is [type:1][price:8][volume:8].
	ActionV1Size = 1 + 2*ValueSize
	// ActionV2Size appends [midPriceCents:4][stateID:2].
	ActionV2Size = ActionV1Size + 4 + 2

	actionTypeMask = 0x07

	maxMidPrice     = 1_000_000.0
	centsMultiplier = 100
)

// EncodeActionV1 serializes a trading action without mid-price context.
func EncodeActionV1(dst []byte, a schema.TradingAction) []byte {
	if cap(dst) < ActionV1Size {
		dst = make([]byte, ActionV1Size)
	} else {
		dst = dst[:ActionV1Size]
	}

	dst[0] = a.Type & actionTypeMask
	binary.LittleEndian.PutUint64(dst[1:9], EncodeChangeValue(a.Price))
	binary.LittleEndian.PutUint64(dst[9:17], EncodeBookValue(a.Volume))

	return dst
}

// DecodeActionV1 parses a fixed-size V1 action payload.
func DecodeActionV1(src []byte) (schema.TradingAction, error) {
	if len(src) != ActionV1Size {
		return schema.TradingAction{}, exception.ErrMalformedMessage
	}
	return schema.TradingAction{
		Type:   src[0] & actionTypeMask,
		Price:  DecodeChangeValue(binary.LittleEndian.Uint64(src[1:9])),
		Volume: DecodeBookValue(binary.LittleEndian.Uint64(src[9:17])),
	}, nil
}

// EncodeActionV2 serializes a trading action with mid-price and state ID.
// The mid-price must be within [0, 1000000].
func EncodeActionV2(dst []byte, a schema.TradingAction) ([]byte, error) {
	if a.MidPrice < 0 || a.MidPrice > maxMidPrice {
		return nil, exception.ErrMidPriceOutOfRange
	}

	if cap(dst) < ActionV2Size {
		dst = make([]byte, ActionV2Size)
	} else {
		dst = dst[:ActionV2Size]
	}

	dst[0] = a.Type & actionTypeMask
	binary.LittleEndian.PutUint64(dst[1:9], EncodeChangeValue(a.Price))
	binary.LittleEndian.PutUint64(dst[9:17], EncodeBookValue(a.Volume))
	binary.LittleEndian.PutUint32(dst[17:21], uint32(math.Round(a.MidPrice*centsMultiplier)))
	binary.LittleEndian.PutUint16(dst[21:23], a.StateID)

	return dst, nil
}

// DecodeActionV2 parses a fixed-size V2 action payload.
func DecodeActionV2(src []byte) (schema.TradingAction, error) {
	if len(src) != ActionV2Size {
		return schema.TradingAction{}, exception.ErrMalformedMessage
	}
	return schema.TradingAction{
		Type:     src[0] & actionTypeMask,
		Price:    DecodeChangeValue(binary.LittleEndian.Uint64(src[1:9])),
		Volume:   DecodeBookValue(binary.LittleEndian.Uint64(src[9:17])),
		MidPrice: float64(binary.LittleEndian.Uint32(src[17:21])) / centsMultiplier,
		StateID:  binary.LittleEndian.Uint16(src[21:23]),
	}, nil
}
