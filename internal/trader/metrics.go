package trader

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments shared by the pool and its traders.
type Metrics struct {
	activeWorkers prometheus.Gauge

	balance      *prometheus.GaugeVec
	realizedPnL  *prometheus.GaugeVec
	tradesOpened *prometheus.CounterVec
	tradesClosed *prometheus.CounterVec
}

// NewMetrics creates and registers the trading metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_active_workers",
			Help: "Number of active symbol workers.",
		}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scalper_account_balance",
			Help: "Simulated account balance in quote currency.",
		}, []string{"symbol"}),
		realizedPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scalper_realized_pnl",
			Help: "Cumulative realized PnL in quote currency.",
		}, []string{"symbol"}),
		tradesOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_trades_opened_total",
			Help: "Number of positions opened.",
		}, []string{"symbol", "side"}),
		tradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_trades_closed_total",
			Help: "Number of positions closed, by exit reason.",
		}, []string{"symbol", "reason"}),
	}

	for _, c := range []prometheus.Collector{
		m.activeWorkers,
		m.balance,
		m.realizedPnL,
		m.tradesOpened,
		m.tradesClosed,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register trading metrics: %v", err)
		}
	}

	return m, nil
}
