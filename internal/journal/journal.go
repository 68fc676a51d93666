package journal

import (
	"context"
	"time"

	"main/internal/schema"
	"main/pkg/conn"

	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

// ClosedTrade is one completed round trip persisted for later analysis.
type ClosedTrade struct {
	ID               uint   `gorm:"primaryKey"`
	TradeID          string `gorm:"index"`
	IsLong           bool
	TotalBuySize     float64
	TotalSellSize    float64
	AvgBuyPrice      float64
	AvgSellPrice     float64
	TotalReducedSize float64
	Reward           float64
	ClosedAt         time.Time
}

// Store persists closed trades to PostgreSQL.
type Store struct {
	db *gorm.DB
}

// Open connects and migrates the closed-trade table.
func Open(dsn string) (*Store, error) {
	client, err := conn.New(dsn, nil)
	if err != nil {
		return nil, err
	}
	if err := client.DB().AutoMigrate(&ClosedTrade{}); err != nil {
		return nil, err
	}
	return &Store{db: client.DB()}, nil
}

// RecordClosedTrade writes the trade. Persistence failures are logged, not
// propagated, so the trading loop never stalls on the database.
func (s *Store) RecordClosedTrade(ctx context.Context, trade schema.Trade, reward float64) {
	record := newRecord(trade, reward, time.Now())
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		logs.Errorf("record closed trade %s failed: %v", trade.TradeID, err)
	}
}

func newRecord(trade schema.Trade, reward float64, closedAt time.Time) ClosedTrade {
	return ClosedTrade{
		TradeID:          trade.TradeID,
		IsLong:           trade.IsLong,
		TotalBuySize:     trade.BuyTotalSize,
		TotalSellSize:    trade.SellTotalSize,
		AvgBuyPrice:      trade.AvgBuyPrice(),
		AvgSellPrice:     trade.AvgSellPrice(),
		TotalReducedSize: trade.TotalReducedSize,
		Reward:           reward,
		ClosedAt:         closedAt,
	}
}
