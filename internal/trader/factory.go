package trader

import (
	"context"

	"momentum-scalper/internal/exchange"
	"momentum-scalper/internal/paper"
	"momentum-scalper/internal/strategy"
)

// StreamFactory is the production trader factory: it restores the persisted
// account for each symbol and dials the exchange websocket for its sessions.
type StreamFactory struct {
	// URL is the websocket endpoint deals are streamed from.
	URL string

	// StateDir is where account snapshots are persisted. Empty disables persistence.
	StateDir string

	// Journal records closed trades. May be nil.
	Journal Journal

	// Metrics instruments the traders. May be nil.
	Metrics *Metrics
}

// New restores the symbol's account and builds its trader.
func (f StreamFactory) New(symbol string, params strategy.Params) (Runner, error) {
	account := paper.NewAccount(symbol, params.InitialBalance, params.FeeRate)
	if f.StateDir != "" {
		var err error
		account, err = paper.Load(f.StateDir, symbol, params.InitialBalance, params.FeeRate)
		if err != nil {
			return nil, err
		}
	}

	dial := func(ctx context.Context) (DealStream, error) {
		return exchange.Dial(ctx, exchange.Config{
			URL:    f.URL,
			Symbol: symbol,
		})
	}

	t, err := New(symbol, params, account, dial, f.Journal, f.Metrics)
	if err != nil {
		return nil, err
	}
	t.SetStateDir(f.StateDir)
	return t, nil
}
