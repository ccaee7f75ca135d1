// Package strategy implements the momentum scalping decision rules.
// It is pure computation: no clocks, no I/O, no exchange access.
package strategy

import (
	"fmt"
	"time"
)

// DefaultWindowCapacity is the number of price samples kept per symbol.
const DefaultWindowCapacity = 2000

// Side is the direction of a position.
type Side int

// Position directions.
const (
	Long Side = iota + 1
	Short
)

// String implements fmt.Stringer.
func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// ExitReason describes which rule closed a position.
type ExitReason string

// Exit reasons, in evaluation order.
const (
	ExitStopLoss   ExitReason = "STOP LOSS"
	ExitTakeProfit ExitReason = "TAKE PROFIT"
	ExitTimeLimit  ExitReason = "TIME EXIT"
	ExitLiquidated ExitReason = "LIQUIDATED"
)

// Params holds the tunable strategy and risk parameters for one symbol.
type Params struct {
	Lookback  time.Duration // momentum reference window
	Threshold float64       // minimum |momentum| to enter
	MaxHold   time.Duration // forced exit after this hold time
	TakeProfit float64      // favorable move fraction
	StopLoss   float64      // adverse move fraction
	Cooldown   time.Duration // wait after an exit before re-entering

	InitialBalance float64 // simulated account funding
	Leverage       float64
	RiskPerTrade   float64 // fraction of balance committed per entry
	FeeRate        float64 // taker fee per side
}

// DefaultParams returns the stock parameters of the scalper.
func DefaultParams() Params {
	return Params{
		Lookback:   10 * time.Second,
		Threshold:  0.0005,
		MaxHold:    15 * time.Second,
		TakeProfit: 0.003,
		StopLoss:   0.005,
		Cooldown:   10 * time.Second,

		InitialBalance: 100.0,
		Leverage:       50,
		RiskPerTrade:   0.10,
		FeeRate:        0.0002,
	}
}

// Validate returns an error if the parameters cannot drive a sane trading loop.
func (p Params) Validate() error {
	if p.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive, got %v", p.Lookback)
	}
	if p.Threshold <= 0 {
		return fmt.Errorf("momentum threshold must be positive, got %g", p.Threshold)
	}
	if p.MaxHold <= 0 {
		return fmt.Errorf("max hold must be positive, got %v", p.MaxHold)
	}
	if p.TakeProfit <= 0 {
		return fmt.Errorf("take profit must be positive, got %g", p.TakeProfit)
	}
	if p.StopLoss <= 0 {
		return fmt.Errorf("stop loss must be positive, got %g", p.StopLoss)
	}
	if p.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative, got %v", p.Cooldown)
	}
	if p.InitialBalance <= 0 {
		return fmt.Errorf("initial balance must be positive, got %g", p.InitialBalance)
	}
	if p.Leverage < 1 {
		return fmt.Errorf("leverage must be at least 1, got %g", p.Leverage)
	}
	if p.RiskPerTrade <= 0 || p.RiskPerTrade > 1 {
		return fmt.Errorf("risk per trade must be in (0, 1], got %g", p.RiskPerTrade)
	}
	if p.FeeRate < 0 {
		return fmt.Errorf("fee rate must not be negative, got %g", p.FeeRate)
	}
	return nil
}

// EntrySignal decides whether the given momentum justifies opening a position.
// Positive momentum opens a long, negative momentum a short.
func (p Params) EntrySignal(momentum float64) (Side, bool) {
	if momentum >= p.Threshold {
		return Long, true
	}
	if momentum <= -p.Threshold {
		return Short, true
	}
	return 0, false
}

// ExitCheck decides whether a position with the given price move and hold time
// must be closed. move is the fractional move in the position's favor: positive
// when the price went the way the position bet.
//
// Rules are evaluated in a fixed order: stop loss, take profit, hold expiry,
// liquidation.
func (p Params) ExitCheck(move float64, hold time.Duration) (ExitReason, bool) {
	switch {
	case move <= -p.StopLoss:
		return ExitStopLoss, true
	case move >= p.TakeProfit:
		return ExitTakeProfit, true
	case hold >= p.MaxHold:
		return ExitTimeLimit, true
	case move <= -p.LiquidationThreshold():
		return ExitLiquidated, true
	}
	return "", false
}

// LiquidationThreshold is the adverse move fraction at which the leveraged
// position is wiped out.
func (p Params) LiquidationThreshold() float64 {
	return 1.0 / p.Leverage
}

// PositionSize returns the contract quantity for an entry at the given price.
// It returns 0 when no meaningful position can be opened.
func (p Params) PositionSize(balance, price float64) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}
	return balance * p.Leverage * p.RiskPerTrade / price
}
