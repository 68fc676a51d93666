package tracker

import (
	"sync"

	"main/internal/obs"
)

// Account holds the venue-pushed balance and the running max drawdown.
// Written by the venue reader, read by the lifecycle manager.
type Account struct {
	mu          sync.RWMutex
	balance     float64
	hasBalance  bool
	maxDrawdown float64
}

// SetBalance records an account-channel balance push.
func (a *Account) SetBalance(balance float64) {
	a.mu.Lock()
	a.balance = balance
	a.hasBalance = true
	a.mu.Unlock()
}

// Balance returns the last pushed balance and whether one has arrived.
func (a *Account) Balance() (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance, a.hasBalance
}

// ObserveUplRatio ratchets the max drawdown. It only ever moves more
// negative; positive ratios never relax it.
func (a *Account) ObserveUplRatio(ratio float64) {
	a.mu.Lock()
	if ratio < a.maxDrawdown {
		a.maxDrawdown = ratio
		obs.SetMaxDrawdown(ratio)
	}
	a.mu.Unlock()
}

// MaxDrawdown returns the most negative unrealized-PnL ratio seen.
func (a *Account) MaxDrawdown() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.maxDrawdown
}
