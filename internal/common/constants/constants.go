// Package constants is responsible for defining the constants used in the application.
// It also provides the default locations for mutable state.
package constants

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the scalper daemon command.
	CmdName = "momentum-scalperd"

	// DefaultAppFolder is the name of the default root folder for mutable state.
	DefaultAppFolder = "momentum-scalper"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	// Trade and status lines are emitted at INFO, so INFO is the default.
	DefaultLogLevel = slog.LevelInfo

	// DefaultEndpointURL is the MEXC contract websocket edge endpoint.
	DefaultEndpointURL = "wss://contract.mexc.com/edge"

	// DefaultSymbol is the contract traded when no symbols config is provided.
	DefaultSymbol = "SUI_USDT"

	// StateFileBaseName is the base name of per-symbol account state files.
	StateFileBaseName = "account.toml"

	// StateSymbolBaseSeparator separates the symbol from the base name of account state files.
	StateSymbolBaseSeparator = "-"
)

// State variables.
var (
	// DefaultStateDir is the default directory for persisted account state.
	DefaultStateDir = DefaultAppFolder
)

func init() {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		panic(fmt.Sprintf("Could not fetch cache directory: %v", err))
	}

	DefaultStateDir = filepath.Join(userCacheDir, DefaultAppFolder)
}
