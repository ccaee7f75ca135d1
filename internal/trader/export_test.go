package trader

import "time"

type (
	DConfigManager = dConfigManager
)

// ErrStreamEnded is the clean stream end marker, exported for tests.
var ErrStreamEnded = errStreamEnded

// WithStatusInterval overrides the status line cadence.
func WithStatusInterval(d time.Duration) TraderOptions {
	return func(o *traderOptions) {
		o.statusInterval = d
	}
}

// WithWindowCapacity overrides the price history capacity.
func WithWindowCapacity(capacity int) TraderOptions {
	return func(o *traderOptions) {
		o.windowCapacity = capacity
	}
}

// WorkerNames returns the symbols of active workers.
func (p *Pool) WorkerNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.workers))
	for name := range p.workers {
		names = append(names, name)
	}
	return names
}
