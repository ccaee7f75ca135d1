// Package trader runs the momentum scalping loop: one worker per enabled
// symbol, each gluing the exchange deal stream to the strategy rules and the
// simulated account.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"momentum-scalper/internal/exchange"
	"momentum-scalper/internal/paper"
	"momentum-scalper/internal/strategy"
)

// ErrAccountDepleted is returned when the simulated balance is exhausted.
// It is terminal for the symbol: the worker must not reconnect.
var ErrAccountDepleted = errors.New("account balance depleted")

// errStreamEnded is returned when the deal stream closes without an error.
var errStreamEnded = errors.New("deal stream ended")

// DealStream is a live subscription to one symbol's trade executions.
type DealStream interface {
	Deals() <-chan exchange.Deal
	Err() error
	Close() error
}

// StreamDialer opens a new stream session for the trader's symbol.
type StreamDialer func(ctx context.Context) (DealStream, error)

// Journal records completed trades. It may be backed by PostgreSQL or absent.
type Journal interface {
	Record(ctx context.Context, trade paper.Trade) error
}

// Trader trades a single symbol against its deal stream.
//
// A Trader keeps its price window, account and cooldown across stream
// sessions, so reconnecting does not reset the strategy state.
type Trader struct {
	symbol  string
	params  strategy.Params
	account *paper.Account
	window  *strategy.Window

	dial     StreamDialer
	journal  Journal
	stateDir string
	metrics  *Metrics

	statusInterval time.Duration
	timeNow        func() time.Time

	currentPrice float64
	lastExit     time.Time
}

type traderOptions struct {
	statusInterval time.Duration
	timeNow        func() time.Time
	windowCapacity int
}

// TraderOptions represents an optional function to override Trader default values.
type TraderOptions func(*traderOptions)

// New creates a trader for symbol using the given account and stream dialer.
// journal may be nil, in which case trades are only logged.
func New(symbol string, params strategy.Params, account *paper.Account, dial StreamDialer, journal Journal, metrics *Metrics, args ...TraderOptions) (*Trader, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy parameters for %s: %w", symbol, err)
	}
	if account == nil {
		return nil, fmt.Errorf("account must be set")
	}
	if dial == nil {
		return nil, fmt.Errorf("stream dialer must be set")
	}

	opts := traderOptions{
		statusInterval: time.Minute,
		timeNow:        time.Now,
		windowCapacity: strategy.DefaultWindowCapacity,
	}
	for _, opt := range args {
		opt(&opts)
	}

	t := &Trader{
		symbol:  symbol,
		params:  params,
		account: account,
		window:  strategy.NewWindow(opts.windowCapacity),

		dial:    dial,
		journal: journal,
		metrics: metrics,

		statusInterval: opts.statusInterval,
		timeNow:        opts.timeNow,
	}
	t.updateAccountMetrics()
	return t, nil
}

// SetStateDir makes the trader persist its account snapshot to dir on every
// close and at the end of each session. An empty dir disables persistence.
func (t *Trader) SetStateDir(dir string) {
	t.stateDir = dir
}

// Trade runs a single stream session: dial, consume deals and apply the
// strategy until the stream fails or ctx is canceled.
//
// Returns ErrAccountDepleted when the balance is exhausted, the context error
// on cancellation, and a stream error otherwise.
func (t *Trader) Trade(ctx context.Context) (err error) {
	stream, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to open deal stream for %s: %w", t.symbol, err)
	}
	defer stream.Close()
	defer t.saveState()

	statusTicker := time.NewTicker(t.statusInterval)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-statusTicker.C:
			t.logStatus()

		case deal, ok := <-stream.Deals():
			if !ok {
				if err := stream.Err(); err != nil {
					return fmt.Errorf("deal stream for %s failed: %w", t.symbol, err)
				}
				return errStreamEnded
			}
			if err := t.handleDeal(ctx, deal); err != nil {
				return err
			}
		}
	}
}

// handleDeal applies one tick: unchanged prices are ignored, changed prices
// are recorded and drive the exit or entry logic.
func (t *Trader) handleDeal(ctx context.Context, deal exchange.Deal) error {
	if deal.Price == t.currentPrice {
		return nil
	}
	t.currentPrice = deal.Price
	t.window.Record(deal.ReceivedAt, deal.Price)

	if pos, ok := t.account.Position(); ok {
		return t.checkExit(ctx, pos, deal.Price, deal.ReceivedAt)
	}
	t.checkEntry(deal.Price, deal.ReceivedAt)
	return nil
}

func (t *Trader) checkExit(ctx context.Context, pos paper.Position, price float64, now time.Time) error {
	move := pos.Move(price)
	hold := now.Sub(pos.EntryTime)

	reason, ok := t.params.ExitCheck(move, hold)
	if !ok {
		return nil
	}

	trade, err := t.account.Close(price, now, reason)
	if err != nil {
		return fmt.Errorf("failed to close %s position: %w", t.symbol, err)
	}
	t.lastExit = now

	slog.Info("Closed position",
		"symbol", t.symbol,
		"side", trade.Side.String(),
		"reason", string(trade.Reason),
		"pnl", trade.PnL,
		"holdSeconds", trade.Hold().Seconds(),
		"balance", t.account.Balance())

	if t.metrics != nil {
		t.metrics.tradesClosed.WithLabelValues(t.symbol, string(trade.Reason)).Inc()
	}
	t.updateAccountMetrics()

	if t.journal != nil {
		if err := t.journal.Record(ctx, trade); err != nil {
			// Journal failures must never interrupt trading.
			slog.Warn("Failed to journal trade", "symbol", t.symbol, "trade", trade.ID, "err", err)
		}
	}
	t.saveState()

	if t.account.Depleted() {
		return fmt.Errorf("%w: %s balance is %g", ErrAccountDepleted, t.symbol, t.account.Balance())
	}
	return nil
}

func (t *Trader) checkEntry(price float64, now time.Time) {
	if now.Sub(t.lastExit) < t.params.Cooldown {
		return
	}

	momentum := t.window.Momentum(now, price, t.params.Lookback)
	side, ok := t.params.EntrySignal(momentum)
	if !ok {
		return
	}

	quantity := t.params.PositionSize(t.account.Balance(), price)
	if quantity <= 0 {
		return
	}

	if _, err := t.account.Open(side, quantity, price, now); err != nil {
		slog.Warn("Failed to open position", "symbol", t.symbol, "err", err)
		return
	}

	slog.Info("Opened position",
		"symbol", t.symbol,
		"side", side.String(),
		"price", price,
		"momentumPct", momentum*100,
		"notional", quantity*price)

	if t.metrics != nil {
		t.metrics.tradesOpened.WithLabelValues(t.symbol, side.String()).Inc()
	}
	t.updateAccountMetrics()
}

// logStatus emits the periodic one-line status summary.
// It is timer driven, so it also fires during quiet streams.
func (t *Trader) logStatus() {
	state := "FLAT"
	if pos, ok := t.account.Position(); ok {
		state = pos.Side.String()
	}
	momentum := t.window.Momentum(t.timeNow(), t.currentPrice, t.params.Lookback)

	slog.Info("Running",
		"symbol", t.symbol,
		"price", t.currentPrice,
		"momentumPct", momentum*100,
		"position", state,
		"balance", t.account.Balance())
}

func (t *Trader) saveState() {
	if t.stateDir == "" {
		return
	}
	if err := t.account.Save(t.stateDir); err != nil {
		slog.Warn("Failed to save account state", "symbol", t.symbol, "err", err)
	}
}

func (t *Trader) updateAccountMetrics() {
	if t.metrics == nil {
		return
	}
	t.metrics.balance.WithLabelValues(t.symbol).Set(t.account.Balance())
	t.metrics.realizedPnL.WithLabelValues(t.symbol).Set(t.account.Stats().RealizedPnL)
}
