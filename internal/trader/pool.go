package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"momentum-scalper/internal/strategy"
)

// Runner runs one trading session for a symbol.
type Runner interface {
	Trade(ctx context.Context) error
}

// Factory builds runners for the symbols the pool manages.
type Factory interface {
	New(symbol string, params strategy.Params) (Runner, error)
}

type dConfigManager interface {
	Watch(context.Context) (<-chan struct{}, <-chan error, error)
	Symbols() []string
	IsEnabled(string) bool
	SymbolParams(string) strategy.Params
}

// Pool is a struct that holds the symbol worker management logic.
type Pool struct {
	cm      dConfigManager
	factory Factory

	mu       sync.Mutex
	workers  map[string]context.CancelFunc
	workerWG sync.WaitGroup

	metricsMu sync.Mutex
	metrics   *Metrics
}

// NewPool creates a new worker pool with the provided config manager and
// trader factory.
func NewPool(cm dConfigManager, factory Factory, metrics *Metrics) (*Pool, error) {
	if cm == nil {
		return nil, fmt.Errorf("config manager must be set")
	}
	if factory == nil {
		return nil, fmt.Errorf("trader factory must be set")
	}

	return &Pool{
		cm:      cm,
		factory: factory,
		workers: make(map[string]context.CancelFunc),
		metrics: metrics,
	}, nil
}

// Run orchestrates and manages the pool of symbol workers.
//
// It watches the symbols configuration and starts or stops workers as symbols
// are enabled or disabled. Each worker streams deals for its symbol and trades
// the strategy against them, reconnecting with a jittered backoff on stream
// failures.
//
// This is blocking until an error occurs or the context is canceled and all
// workers are done.
//
// Always returns a non-nil error, which is either a context error or a
// configuration watch error.
func (p *Pool) Run(ctx context.Context) error {
	slog.Info("Trading pool started")

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reloadEventCh, cfgWatchErrCh, err := p.cm.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watching configuration: %v", err)
	}

	// Initial sync
	p.syncWorkers(ctx)

	// Debounce timer for handling bursts of events
	debounceDuration := 5 * time.Second
	debounceTimer := time.NewTimer(debounceDuration)
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Context canceled, stopping trading pool")
			p.workerWG.Wait()
			return ctx.Err()

		case _, ok := <-reloadEventCh:
			if !ok {
				return fmt.Errorf("reloadEventCh closed unexpectedly")
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(debounceDuration)

		case <-debounceTimer.C:
			// Timer expired, perform the resync
			slog.Info("Resyncing workers after configuration change")
			p.syncWorkers(ctx)
			slog.Debug("Completed resyncing workers")

		case err, ok := <-cfgWatchErrCh:
			if !ok {
				return fmt.Errorf("cfgWatchErrCh closed unexpectedly")
			}
			if err != nil {
				slog.Error("Configuration watcher error", "err", err)
			}
		}
	}
}

// syncWorkers diffs the enabled symbols and starts/stops goroutines.
func (p *Pool) syncWorkers(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// stop removed
	for symbol, cancel := range p.workers {
		if !p.cm.IsEnabled(symbol) {
			cancel()
			delete(p.workers, symbol)
		}
	}
	// start added
	for _, symbol := range p.cm.Symbols() {
		if _, ok := p.workers[symbol]; ok {
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("Context canceled, stopping worker sync")
			return // normal shutdown
		default:
		}
		symbolCtx, cancel := context.WithCancel(ctx)
		p.workers[symbol] = cancel
		slog.Info("Starting symbol worker", "symbol", symbol)
		p.workerWG.Add(1)
		go p.symbolWorker(symbolCtx, symbol)
	}
}

// symbolWorker trades a single symbol until ctx is canceled, wrapping stream
// sessions in a jittered exponential backoff.
func (p *Pool) symbolWorker(ctx context.Context, symbol string) {
	defer p.workerWG.Done()

	if p.metrics != nil {
		p.metricsMu.Lock()
		p.metrics.activeWorkers.Inc()
		p.metricsMu.Unlock()

		defer func() {
			p.metricsMu.Lock()
			p.metrics.activeWorkers.Dec()
			p.metricsMu.Unlock()
		}()
	}

	runner, err := p.factory.New(symbol, p.cm.SymbolParams(symbol))
	if err != nil {
		slog.Error("Failed to create trader", "symbol", symbol, "err", err)
		return
	}

	baseBackoff := 5 * time.Second
	maxBackoff := 30 * time.Second
	backoff := baseBackoff

	for {
		select {
		case <-ctx.Done():
			return
		default:
			err := runner.Trade(ctx)
			if ctx.Err() != nil {
				slog.Debug("Symbol worker context canceled", "symbol", symbol)
				return
			}
			if errors.Is(err, ErrAccountDepleted) {
				slog.Error("Account depleted, stopping symbol", "symbol", symbol, "err", err)
				return
			}
			if err == nil || errors.Is(err, errStreamEnded) {
				backoff = baseBackoff
				continue
			}

			slog.Warn("Trading session ended, backing off", "symbol", symbol, "err", err)

			// #nosec:G404 We don't need cryptographic randomness.
			sleep := time.Duration(rand.Int63n(int64(backoff)))
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				slog.Debug("Symbol worker context canceled", "symbol", symbol)
				return // normal shutdown
			}

			backoff = min(backoff*2, maxBackoff)
		}
	}
}
