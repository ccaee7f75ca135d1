// Package config provides a configuration manager that loads and watches the
// JSON symbols configuration file.
//
// The file lists the contracts to trade and optional per-symbol strategy
// overrides. When no file is configured or present, the manager falls back to
// a single default symbol with the daemon-wide strategy parameters.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"momentum-scalper/internal/strategy"
)

// Provider is an interface that defines methods to access configuration values.
type Provider interface {
	Symbols() []string
	IsEnabled(string) bool
	SymbolParams(string) strategy.Params
}

// Conf represents the configuration file structure.
type Conf struct {
	SymbolList []SymbolConf `json:"symbols"`
}

// SymbolConf is the configuration of a single traded contract.
// Absent override fields inherit the daemon-wide defaults.
type SymbolConf struct {
	Name string `json:"name"`

	LookbackSeconds *float64 `json:"lookbackSeconds,omitempty"`
	Threshold       *float64 `json:"threshold,omitempty"`
	MaxHoldSeconds  *float64 `json:"maxHoldSeconds,omitempty"`
	TakeProfit      *float64 `json:"takeProfit,omitempty"`
	StopLoss        *float64 `json:"stopLoss,omitempty"`
	CooldownSeconds *float64 `json:"cooldownSeconds,omitempty"`
	InitialBalance  *float64 `json:"initialBalance,omitempty"`
	Leverage        *float64 `json:"leverage,omitempty"`
	RiskPerTrade    *float64 `json:"riskPerTrade,omitempty"`
	FeeRate         *float64 `json:"feeRate,omitempty"`
}

// Manager is a struct that manages the symbols configuration.
type Manager struct {
	config     Conf
	lock       sync.RWMutex
	configPath string

	defaults      strategy.Params
	defaultSymbol string

	log *slog.Logger
}

type options struct {
	Logger *slog.Logger
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// New creates a new configuration manager for the given path.
// An empty path disables file loading and watching: the manager then always
// serves the default symbol with the default parameters.
func New(path, defaultSymbol string, defaults strategy.Params, args ...Options) *Manager {
	opts := options{
		Logger: slog.Default(),
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Manager{
		configPath:    path,
		defaults:      defaults,
		defaultSymbol: defaultSymbol,
		log:           opts.Logger,
	}
}

// Load reads the configuration from the configured file and updates the
// internal state. A missing or unconfigured file resets to the default symbol.
func (cm *Manager) Load() error {
	if cm.configPath == "" {
		cm.setConfig(cm.defaultConf())
		return nil
	}

	file, err := os.Open(cm.configPath)
	if os.IsNotExist(err) {
		cm.log.Info("No symbols configuration file, trading the default symbol", "symbol", cm.defaultSymbol)
		cm.setConfig(cm.defaultConf())
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer file.Close()

	var newConfig Conf
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&newConfig); err != nil {
		return fmt.Errorf("decoding config JSON: %w", err)
	}

	cm.setConfig(newConfig)
	cm.log.Info("Configuration loaded", "symbols", cm.Symbols())
	return nil
}

func (cm *Manager) defaultConf() Conf {
	return Conf{SymbolList: []SymbolConf{{Name: cm.defaultSymbol}}}
}

func (cm *Manager) setConfig(c Conf) {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	cm.config = c
}

// Watch starts watching the configuration file for changes.
//
// It returns two channels: one for configuration changes which result in a
// successful load and another for unrecoverable watcher errors.
// Without a configured file the channels stay silent until ctx is done.
func (cm *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	// Initial load of the configuration
	if err := cm.Load(); err != nil {
		cm.log.Warn("Error loading initial config", "err", err)
	}

	if cm.configPath == "" {
		go func() {
			defer close(changesCh)
			defer close(errorsCh)
			<-ctx.Done()
		}()
		return changesCh, errorsCh, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	configDir, _ := filepath.Split(cm.configPath)
	if configDir == "" {
		configDir = "."
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", configDir, err)
	}

	cm.log.Info("Watching configuration directory", "dir", configDir)

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				cm.log.Info("Configuration watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}

				if event.Name != cm.configPath {
					continue
				}

				cm.log.Debug("Configuration file changed. Reloading...")
				if err := cm.Load(); err != nil {
					cm.log.Warn("Error reloading config", "err", err)
					continue
				}

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				cm.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// Symbols returns the names of the enabled symbols.
func (cm *Manager) Symbols() []string {
	cm.lock.RLock()
	defer cm.lock.RUnlock()

	symbols := make([]string, 0, len(cm.config.SymbolList))
	for _, s := range cm.config.SymbolList {
		if s.Name == "" {
			continue
		}
		symbols = append(symbols, s.Name)
	}
	return symbols
}

// IsEnabled returns whether the given symbol is enabled in the configuration.
func (cm *Manager) IsEnabled(symbol string) bool {
	cm.lock.RLock()
	defer cm.lock.RUnlock()

	for _, s := range cm.config.SymbolList {
		if s.Name == symbol {
			return true
		}
	}
	return false
}

// SymbolParams returns the strategy parameters for the given symbol: the
// daemon defaults with the symbol's overrides applied.
// Unknown symbols get the plain defaults.
func (cm *Manager) SymbolParams(symbol string) strategy.Params {
	cm.lock.RLock()
	defer cm.lock.RUnlock()

	params := cm.defaults
	for _, s := range cm.config.SymbolList {
		if s.Name != symbol {
			continue
		}
		s.apply(&params)
		break
	}
	return params
}

func (s SymbolConf) apply(params *strategy.Params) {
	if s.LookbackSeconds != nil {
		params.Lookback = secondsToDuration(*s.LookbackSeconds)
	}
	if s.Threshold != nil {
		params.Threshold = *s.Threshold
	}
	if s.MaxHoldSeconds != nil {
		params.MaxHold = secondsToDuration(*s.MaxHoldSeconds)
	}
	if s.TakeProfit != nil {
		params.TakeProfit = *s.TakeProfit
	}
	if s.StopLoss != nil {
		params.StopLoss = *s.StopLoss
	}
	if s.CooldownSeconds != nil {
		params.Cooldown = secondsToDuration(*s.CooldownSeconds)
	}
	if s.InitialBalance != nil {
		params.InitialBalance = *s.InitialBalance
	}
	if s.Leverage != nil {
		params.Leverage = *s.Leverage
	}
	if s.RiskPerTrade != nil {
		params.RiskPerTrade = *s.RiskPerTrade
	}
	if s.FeeRate != nil {
		params.FeeRate = *s.FeeRate
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
