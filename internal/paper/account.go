// Package paper implements the simulated trading account.
// No orders are ever sent to an exchange: fills are assumed at the
// observed price, with taker fees charged on both sides.
package paper

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"momentum-scalper/internal/strategy"
)

var (
	// ErrPositionOpen is returned when opening while a position is already open.
	ErrPositionOpen = errors.New("a position is already open")

	// ErrNoPosition is returned when closing while no position is open.
	ErrNoPosition = errors.New("no position is open")
)

// Position is an open simulated position.
type Position struct {
	Side       strategy.Side
	Quantity   float64 // contract quantity, always positive
	EntryPrice float64
	EntryTime  time.Time
}

// Move returns the fractional price move in the position's favor at the given
// price. Positive means the price went the way the position bet.
func (p Position) Move(price float64) float64 {
	if p.Side == strategy.Short {
		return (p.EntryPrice - price) / p.EntryPrice
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// Trade is a completed round trip.
type Trade struct {
	ID         string
	Symbol     string
	Side       strategy.Side
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	Reason     strategy.ExitReason
	PnL        float64 // net of the exit fee
	ExitFee    float64
}

// Hold returns how long the position was held.
func (t Trade) Hold() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// Stats are the running account statistics.
type Stats struct {
	Trades         int
	Wins           int
	RealizedPnL    float64
	PeakBalance    float64
	MaxDrawdownPct float64 // percent decline from the peak balance
}

// Account is a simulated margin account trading a single symbol.
//
// Account is not safe for concurrent use.
type Account struct {
	symbol  string
	feeRate float64

	balance  float64
	stats    Stats
	position *Position
}

// NewAccount creates a fresh account funded with initialBalance.
func NewAccount(symbol string, initialBalance, feeRate float64) *Account {
	return &Account{
		symbol:  symbol,
		feeRate: feeRate,
		balance: initialBalance,
		stats:   Stats{PeakBalance: initialBalance},
	}
}

// Symbol returns the symbol the account trades.
func (a *Account) Symbol() string {
	return a.symbol
}

// Balance returns the current account balance.
func (a *Account) Balance() float64 {
	return a.balance
}

// Stats returns a copy of the running statistics.
func (a *Account) Stats() Stats {
	return a.stats
}

// Position returns the open position, if any.
func (a *Account) Position() (Position, bool) {
	if a.position == nil {
		return Position{}, false
	}
	return *a.position, true
}

// Depleted reports whether the account has no balance left to trade with.
func (a *Account) Depleted() bool {
	return a.balance <= 0
}

// Open opens a position and charges the entry fee against the balance.
// The entry fee is not part of any reported trade PnL.
func (a *Account) Open(side strategy.Side, quantity, price float64, at time.Time) (fee float64, err error) {
	if a.position != nil {
		return 0, ErrPositionOpen
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("quantity must be positive, got %g", quantity)
	}
	if price <= 0 {
		return 0, fmt.Errorf("price must be positive, got %g", price)
	}

	fee = quantity * price * a.feeRate
	a.balance -= fee
	a.position = &Position{
		Side:       side,
		Quantity:   quantity,
		EntryPrice: price,
		EntryTime:  at,
	}
	return fee, nil
}

// Close closes the open position at the given price, settles the fee-adjusted
// PnL against the balance and updates the statistics.
func (a *Account) Close(price float64, at time.Time, reason strategy.ExitReason) (Trade, error) {
	if a.position == nil {
		return Trade{}, ErrNoPosition
	}
	pos := *a.position

	signedQty := pos.Quantity
	if pos.Side == strategy.Short {
		signedQty = -signedQty
	}
	fee := pos.Quantity * price * a.feeRate
	pnl := signedQty*(price-pos.EntryPrice) - fee

	a.balance += pnl
	a.stats.RealizedPnL += pnl
	a.stats.Trades++
	if pnl > 0 {
		a.stats.Wins++
	}
	if a.balance > a.stats.PeakBalance {
		a.stats.PeakBalance = a.balance
	}
	if a.stats.PeakBalance > 0 {
		dd := (a.stats.PeakBalance - a.balance) / a.stats.PeakBalance * 100
		if dd > a.stats.MaxDrawdownPct {
			a.stats.MaxDrawdownPct = dd
		}
	}
	a.position = nil

	return Trade{
		ID:         uuid.NewString(),
		Symbol:     a.symbol,
		Side:       pos.Side,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		EntryTime:  pos.EntryTime,
		ExitTime:   at,
		Reason:     reason,
		PnL:        pnl,
		ExitFee:    fee,
	}, nil
}
