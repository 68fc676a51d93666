package codec

import "math"

// Fixed-point scalar encodings shared by every inter-component message.
//
// ChangeValue: bit 63 sign, bits 0-62 fraction scaled by 2^63-1. Holds signed
// fractional quantities in (-1, 1) such as price deltas and features.
//
// BookValue: bit 63 sign, bits 53-62 whole part capped at 1023, bits 0-52
// fraction scaled by 2^53-1. Holds unsigned-magnitude book quantities.

const (
	signMask = uint64(1) << 63

	changeFracMask  = signMask - 1
	changeFracScale = float64(changeFracMask)

	bookWholeBits = 10
	bookFracBits  = 53
	bookWholeMax  = float64((uint64(1) << bookWholeBits) - 1)
	bookWholeMask = ((uint64(1) << bookWholeBits) - 1) << bookFracBits
	bookFracMask  = (uint64(1) << bookFracBits) - 1
	bookFracScale = float64(bookFracMask)

	// ValueSize is the encoded size of either scalar.
	ValueSize = 8

	zeroThreshold = 1e-15
)

func isZero(v float64) bool {
	return math.Abs(v) < zeroThreshold
}

// EncodeChangeValue packs a signed fraction. Values below the zero threshold
// encode to 0 and decode to exactly 0.0.
func EncodeChangeValue(v float64) uint64 {
	if isZero(v) {
		return 0
	}
	var sign uint64
	if v < 0 {
		sign = signMask
	}
	frac := uint64(math.Round(math.Abs(v) * changeFracScale))
	return sign | (frac & changeFracMask)
}

// DecodeChangeValue unpacks a signed fraction.
func DecodeChangeValue(encoded uint64) float64 {
	if encoded == 0 {
		return 0.0
	}
	v := float64(encoded&changeFracMask) / changeFracScale
	if encoded&signMask != 0 {
		return -v
	}
	return v
}

// EncodeBookValue packs a book quantity. The whole part saturates at 1023.
func EncodeBookValue(v float64) uint64 {
	if isZero(v) {
		return 0
	}
	var sign uint64
	if v < 0 {
		sign = signMask
	}
	abs := math.Abs(v)
	whole, frac := math.Modf(abs)
	wholeInt := uint64(math.Min(whole, bookWholeMax))
	fracInt := uint64(math.Round(frac * bookFracScale))
	return sign | (wholeInt << bookFracBits) | (fracInt & bookFracMask)
}

// DecodeBookValue unpacks a book quantity.
func DecodeBookValue(encoded uint64) float64 {
	if encoded == 0 {
		return 0.0
	}
	whole := float64((encoded & bookWholeMask) >> bookFracBits)
	frac := float64(encoded&bookFracMask) / bookFracScale
	v := whole + frac
	if encoded&signMask != 0 {
		return -v
	}
	return v
}
