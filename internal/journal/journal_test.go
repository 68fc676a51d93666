package journal

import (
	"testing"
	"time"

	"main/internal/schema"

	"github.com/stretchr/testify/assert"
)

func TestNewRecordMapsTradeAggregates(t *testing.T) {
	closedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	trade := schema.Trade{
		TradeID:             "okx-1",
		IsLong:              true,
		BuyCumulativePrice:  500,
		BuyTotalSize:        5,
		SellCumulativePrice: 550,
		SellTotalSize:       5,
		TotalReducedSize:    5,
	}

	record := newRecord(trade, 1000, closedAt)

	assert.Equal(t, "okx-1", record.TradeID)
	assert.True(t, record.IsLong)
	assert.InDelta(t, 100.0, record.AvgBuyPrice, 1e-12)
	assert.InDelta(t, 110.0, record.AvgSellPrice, 1e-12)
	assert.InDelta(t, 5.0, record.TotalReducedSize, 1e-12)
	assert.InDelta(t, 1000.0, record.Reward, 1e-12)
	assert.Equal(t, closedAt, record.ClosedAt)
}
