package book

import (
	"context"
	"sort"

	"main/internal/codec"
	"main/internal/schema"
	"main/pkg/exception"
)

// Producer publishes encoded book snapshots downstream.
type Producer interface {
	Produce(ctx context.Context, payload []byte) error
}

// Engine maintains both sides of the book and derives features from them.
// It is not safe for concurrent use; the feed loop is its single caller.
type Engine struct {
	bids []schema.PriceLevel
	asks []schema.PriceLevel

	previousMidPrice float64
	primed           bool

	stateID   uint16
	encodeBuf []byte
	producer  Producer

	bidHistory history
	askHistory history
}

// NewEngine creates an empty book bound to a snapshot producer.
func NewEngine(producer Producer) *Engine {
	return &Engine{
		bids:      make([]schema.PriceLevel, 0, schema.RequiredLevels),
		asks:      make([]schema.PriceLevel, 0, schema.RequiredLevels),
		encodeBuf: make([]byte, 0, codec.SnapshotSize),
		producer:  producer,
	}
}

func bidBefore(a, b schema.PriceLevel) bool { return a.Price > b.Price }
func askBefore(a, b schema.PriceLevel) bool { return a.Price < b.Price }

// ApplySnapshot replaces both sides. Levels with volume <= 0 are skipped.
// Both sides must land at exactly 400 levels or the book is left unprimed.
func (e *Engine) ApplySnapshot(bids, asks []schema.PriceLevel) error {
	e.bids = e.bids[:0]
	e.asks = e.asks[:0]

	for _, level := range bids {
		if level.Volume > 0 {
			e.bids = append(e.bids, level)
		}
	}
	for _, level := range asks {
		if level.Volume > 0 {
			e.asks = append(e.asks, level)
		}
	}

	sort.Slice(e.bids, func(i, j int) bool { return bidBefore(e.bids[i], e.bids[j]) })
	sort.Slice(e.asks, func(i, j int) bool { return askBefore(e.asks[i], e.asks[j]) })

	if err := e.validate(); err != nil {
		e.primed = false
		return err
	}

	e.previousMidPrice = e.midPrice()
	e.primed = true
	e.pushHistory()

	return nil
}

// ApplyDelta applies incremental level updates to both sides. A level count
// other than 400 after application means the feed desynchronized; the error
// is surfaced so the caller can request a fresh snapshot.
func (e *Engine) ApplyDelta(bids, asks []schema.PriceLevel) error {
	if !e.primed {
		return exception.ErrBookNotPrimed
	}

	for _, level := range bids {
		e.bids = applyLevel(e.bids, level, bidBefore)
	}
	for _, level := range asks {
		e.asks = applyLevel(e.asks, level, askBefore)
	}

	if err := e.validate(); err != nil {
		e.primed = false
		return err
	}
	e.pushHistory()

	return nil
}

// applyLevel binary-searches side for level.Price using the side comparator.
// Exact match: replace when volume > 0, remove otherwise. No match: insert at
// the sort position when volume > 0.
func applyLevel(side []schema.PriceLevel, level schema.PriceLevel, before func(a, b schema.PriceLevel) bool) []schema.PriceLevel {
	idx := sort.Search(len(side), func(i int) bool {
		return !before(side[i], level)
	})

	if idx < len(side) && side[idx].Price == level.Price {
		if level.Volume > 0 {
			side[idx] = level
			return side
		}
		return append(side[:idx], side[idx+1:]...)
	}

	if level.Volume <= 0 {
		return side
	}

	side = append(side, schema.PriceLevel{})
	copy(side[idx+1:], side[idx:])
	side[idx] = level
	return side
}

func (e *Engine) validate() error {
	if len(e.bids) != schema.RequiredLevels || len(e.asks) != schema.RequiredLevels {
		return exception.ErrInvalidBookState
	}
	return nil
}

func (e *Engine) midPrice() float64 {
	if len(e.bids) == 0 || len(e.asks) == 0 {
		return 0
	}
	return (e.bids[0].Price + e.asks[0].Price) / 2
}

// Features derives the full feature set from the current ladders.
func (e *Engine) Features() schema.BookFeatures {
	features := schema.BookFeatures{MidPrice: e.midPrice()}
	if e.previousMidPrice != 0 {
		features.MidPriceChange = (features.MidPrice - e.previousMidPrice) / e.previousMidPrice
	}

	for i, depth := range schema.DepthLevels {
		features.Depths[i] = e.depthFeatures(depth, features.MidPrice)
	}
	return features
}

func (e *Engine) depthFeatures(depth int, midPrice float64) schema.DepthFeatures {
	var bidVolume, askVolume, bidOrders, askOrders float64
	var bidWeighted, askWeighted float64

	for i := 0; i < depth && i < len(e.bids); i++ {
		bidVolume += e.bids[i].Volume
		bidOrders += e.bids[i].Orders
		bidWeighted += e.bids[i].Price * e.bids[i].Volume
	}
	for i := 0; i < depth && i < len(e.asks); i++ {
		askVolume += e.asks[i].Volume
		askOrders += e.asks[i].Orders
		askWeighted += e.asks[i].Price * e.asks[i].Volume
	}

	var out schema.DepthFeatures
	if total := bidVolume + askVolume; total > 0 {
		out.VolumeImbalance = (bidVolume - askVolume) / total
	}
	if total := bidOrders + askOrders; total > 0 {
		out.OrderImbalance = (bidOrders - askOrders) / total
	}
	if midPrice > 0 {
		if bidVolume > 0 {
			out.BidVwapChange = (bidWeighted/bidVolume - midPrice) / midPrice
		}
		if askVolume > 0 {
			out.AskVwapChange = (askWeighted/askVolume - midPrice) / midPrice
		}
	}
	return out
}

// Publish serializes the book plus features, hands the bytes to the producer
// and advances the state ID. The previous mid price baseline moves to the
// published mid so the next publish reports change against this one.
func (e *Engine) Publish(ctx context.Context) error {
	if !e.primed {
		return exception.ErrBookNotPrimed
	}

	features := e.Features()
	payload, err := codec.EncodeSnapshot(e.encodeBuf, e.bids, e.asks, features, e.stateID)
	if err != nil {
		return err
	}
	e.encodeBuf = payload

	if err := e.producer.Produce(ctx, payload); err != nil {
		return err
	}

	e.previousMidPrice = features.MidPrice
	e.stateID++

	return nil
}

// StateID reports the ID the next publish will carry.
func (e *Engine) StateID() uint16 {
	return e.stateID
}

// MidPrice reports the current mid, 0 while either side is empty.
func (e *Engine) MidPrice() float64 {
	return e.midPrice()
}
