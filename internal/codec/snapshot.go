package codec

import (
	"encoding/binary"
	"math"

	"main/internal/schema"
	"main/pkg/exception"
)

const (
	levelValues = 3
	numDepths   = len(schema.DepthLevels)
	numFeatures = 4

	// SnapshotSize is the exact byte size of a full book snapshot message:
	// both 400-level sides as (price, volume, orders) triples, the mid-price
	// change, the per-depth feature block, then midPriceCents and stateID.
	SnapshotSize = (2*schema.RequiredLevels*levelValues+1+numDepths*numFeatures)*ValueSize + 4 + 2
)

// Snapshot is a decoded order book snapshot message.
type Snapshot struct {
	Bids          []schema.PriceLevel
	Asks          []schema.PriceLevel
	Features      schema.BookFeatures
	MidPriceCents uint32
	StateID       uint16
}

// EncodeSnapshot serializes the full book plus features. Both sides must
// hold exactly 400 levels; the book engine guarantees this before publishing.
func EncodeSnapshot(dst []byte, bids, asks []schema.PriceLevel, features schema.BookFeatures, stateID uint16) ([]byte, error) {
	if len(bids) != schema.RequiredLevels || len(asks) != schema.RequiredLevels {
		return nil, exception.ErrInvalidBookState
	}

	if cap(dst) < SnapshotSize {
		dst = make([]byte, SnapshotSize)
	} else {
		dst = dst[:SnapshotSize]
	}

	offset := 0
	putLevel := func(level schema.PriceLevel) {
		binary.LittleEndian.PutUint64(dst[offset:], EncodeChangeValue(level.Price))
		offset += ValueSize
		binary.LittleEndian.PutUint64(dst[offset:], EncodeBookValue(level.Volume))
		offset += ValueSize
		binary.LittleEndian.PutUint64(dst[offset:], EncodeBookValue(level.Orders))
		offset += ValueSize
	}

	for _, level := range bids {
		putLevel(level)
	}
	for _, level := range asks {
		putLevel(level)
	}

	binary.LittleEndian.PutUint64(dst[offset:], EncodeChangeValue(features.MidPriceChange))
	offset += ValueSize

	for _, depth := range features.Depths {
		binary.LittleEndian.PutUint64(dst[offset:], EncodeChangeValue(depth.VolumeImbalance))
		offset += ValueSize
		binary.LittleEndian.PutUint64(dst[offset:], EncodeChangeValue(depth.OrderImbalance))
		offset += ValueSize
		binary.LittleEndian.PutUint64(dst[offset:], EncodeChangeValue(depth.BidVwapChange))
		offset += ValueSize
		binary.LittleEndian.PutUint64(dst[offset:], EncodeChangeValue(depth.AskVwapChange))
		offset += ValueSize
	}

	binary.LittleEndian.PutUint32(dst[offset:], uint32(math.Round(features.MidPrice*centsMultiplier)))
	offset += 4
	binary.LittleEndian.PutUint16(dst[offset:], stateID)

	return dst, nil
}

// DecodeSnapshot parses a full book snapshot message.
func DecodeSnapshot(src []byte) (Snapshot, error) {
	if len(src) != SnapshotSize {
		return Snapshot{}, exception.ErrMalformedMessage
	}

	offset := 0
	getLevel := func() schema.PriceLevel {
		level := schema.PriceLevel{
			Price:  DecodeChangeValue(binary.LittleEndian.Uint64(src[offset:])),
			Volume: DecodeBookValue(binary.LittleEndian.Uint64(src[offset+ValueSize:])),
			Orders: DecodeBookValue(binary.LittleEndian.Uint64(src[offset+2*ValueSize:])),
		}
		offset += levelValues * ValueSize
		return level
	}

	snapshot := Snapshot{
		Bids: make([]schema.PriceLevel, schema.RequiredLevels),
		Asks: make([]schema.PriceLevel, schema.RequiredLevels),
	}
	for i := range snapshot.Bids {
		snapshot.Bids[i] = getLevel()
	}
	for i := range snapshot.Asks {
		snapshot.Asks[i] = getLevel()
	}

	snapshot.Features.MidPriceChange = DecodeChangeValue(binary.LittleEndian.Uint64(src[offset:]))
	offset += ValueSize

	for i := range snapshot.Features.Depths {
		depth := &snapshot.Features.Depths[i]
		depth.VolumeImbalance = DecodeChangeValue(binary.LittleEndian.Uint64(src[offset:]))
		offset += ValueSize
		depth.OrderImbalance = DecodeChangeValue(binary.LittleEndian.Uint64(src[offset:]))
		offset += ValueSize
		depth.BidVwapChange = DecodeChangeValue(binary.LittleEndian.Uint64(src[offset:]))
		offset += ValueSize
		depth.AskVwapChange = DecodeChangeValue(binary.LittleEndian.Uint64(src[offset:]))
		offset += ValueSize
	}

	snapshot.MidPriceCents = binary.LittleEndian.Uint32(src[offset:])
	offset += 4
	snapshot.StateID = binary.LittleEndian.Uint16(src[offset:])
	snapshot.Features.MidPrice = float64(snapshot.MidPriceCents) / centsMultiplier

	return snapshot, nil
}
