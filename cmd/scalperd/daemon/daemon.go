// Package daemon provides the momentum scalper daemon.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"momentum-scalper/internal/common/cli"
	"momentum-scalper/internal/common/constants"
	"momentum-scalper/internal/common/metrics"
	"momentum-scalper/internal/config"
	"momentum-scalper/internal/journal"
	"momentum-scalper/internal/scalper"
	"momentum-scalper/internal/strategy"
	"momentum-scalper/internal/trader"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	daemon *scalper.Service

	ready chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool

	MetricsConfig metrics.Config
	DBconfig      journal.Config

	EndpointURL   string // Websocket endpoint deals are streamed from
	Symbol        string // Contract traded when no symbols config is given
	SymbolsConfig string // Path to the watched symbols configuration file
	StateDir      string // Directory account snapshots are persisted to
	MigrationsDir string
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}

	a.cmd = &cobra.Command{
		Use:           constants.CmdName,
		Short:         "Momentum scalping paper trader",
		Long:          "Momentum scalper streams contract trade executions from the exchange and paper trades a short momentum strategy against them, journaling completed trades into a PostgreSQL database.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}
			slog.Info("got app config", "config", a.config)

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	installMigrateCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	// Daemon flags
	cmd.Flags().StringVar(&app.config.EndpointURL, "endpoint-url", constants.DefaultEndpointURL, "websocket endpoint to stream trade executions from")
	cmd.Flags().StringVar(&app.config.Symbol, "symbol", constants.DefaultSymbol, "contract symbol to trade when no symbols config is given")
	cmd.Flags().StringVarP(&app.config.SymbolsConfig, "symbols-config", "c", "", "path to the symbols configuration file")
	cmd.Flags().StringVar(&app.config.StateDir, "state-dir", constants.DefaultStateDir, "directory to persist account state to, empty to disable persistence")

	// Metrics server flags
	cmd.Flags().DurationVar(&app.config.MetricsConfig.ReadTimeout, "read-timeout", 5*time.Second, "read timeout for the metrics HTTP server")
	cmd.Flags().DurationVar(&app.config.MetricsConfig.WriteTimeout, "write-timeout", 10*time.Second, "write timeout for the metrics HTTP server")
	cmd.Flags().StringVar(&app.config.MetricsConfig.Host, "metrics-host", "", "host for the metrics endpoint")
	cmd.Flags().IntVar(&app.config.MetricsConfig.Port, "metrics-port", 2113, "port for the metrics endpoint")

	addDBFlags(cmd, &app.config.DBconfig)

	if err := cmd.MarkFlagFilename("symbols-config"); err != nil {
		panic(fmt.Sprintf("failed to mark symbols-config flag as filename: %v", err))
	}

	if err := cmd.MarkFlagDirname("state-dir"); err != nil {
		panic(fmt.Sprintf("failed to mark state-dir flag as directory: %v", err))
	}
}

func addDBFlags(cmd *cobra.Command, config *journal.Config) {
	cmd.Flags().StringVar(&config.Host, "db-host", "", "trade journal database host, empty to disable the journal")
	cmd.Flags().IntVarP(&config.Port, "db-port", "p", 5432, "trade journal database port")
	cmd.Flags().StringVarP(&config.User, "db-user", "u", "", "trade journal database user")
	cmd.Flags().StringVarP(&config.Password, "db-password", "P", "", "trade journal database password")
	cmd.Flags().StringVarP(&config.DBName, "db-name", "n", "", "trade journal database name")
	cmd.Flags().StringVarP(&config.SSLMode, "db-sslmode", "s", "", "trade journal database SSL mode")
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit gracefully shuts down the daemon.
func (a *App) Quit() {
	a.WaitReady()
	if a.daemon != nil {
		a.daemon.Quit(false)
	}
}

// WaitReady waits for the daemon to be ready.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run() (err error) {
	if a.config.SymbolsConfig != "" {
		a.config.SymbolsConfig, err = filepath.Abs(a.config.SymbolsConfig)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for symbols config file: %v", err)
		}
	}
	cm := config.New(a.config.SymbolsConfig, a.config.Symbol, strategy.DefaultParams())

	var jrnl trader.Journal
	if a.config.DBconfig.Enabled() {
		j, err := journal.New(context.Background(), a.config.DBconfig)
		if err != nil {
			return fmt.Errorf("failed to connect to trade journal database: %v", err)
		}
		defer func() {
			if cErr := j.Close(); cErr != nil {
				slog.Warn("Failed to close trade journal", "err", cErr)
			}
		}()
		jrnl = j
	}

	registry := prometheus.NewRegistry()
	tradingMetrics, err := trader.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to create trading metrics: %v", err)
	}

	factory := trader.StreamFactory{
		URL:      a.config.EndpointURL,
		StateDir: a.config.StateDir,
		Journal:  jrnl,
		Metrics:  tradingMetrics,
	}

	workerPool, err := trader.NewPool(cm, factory, tradingMetrics)
	if err != nil {
		return fmt.Errorf("failed to create trading pool: %v", err)
	}

	metricsServer := metrics.New(a.config.MetricsConfig, registry)

	a.daemon = scalper.New(context.Background(), workerPool, metricsServer)
	close(a.ready)

	return a.daemon.Run()
}
