package paper

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/ubuntu/decorate"

	"momentum-scalper/internal/common/constants"
	"momentum-scalper/internal/common/fileutils"
)

// stateFile is the on-disk shape of a persisted account.
// Open positions are intentionally not persisted: a restart begins flat.
type stateFile struct {
	Balance        float64 `toml:"balance"`
	Trades         int     `toml:"trades"`
	Wins           int     `toml:"wins"`
	RealizedPnL    float64 `toml:"realized_pnl"`
	PeakBalance    float64 `toml:"peak_balance"`
	MaxDrawdownPct float64 `toml:"max_drawdown_pct"`
}

// StatePath returns the expected path to the account state file for the given
// symbol. It does not check if the file exists, or if it is valid.
func StatePath(dir, symbol string) string {
	return filepath.Join(dir, symbol+constants.StateSymbolBaseSeparator+constants.StateFileBaseName)
}

// Save persists the account balance and statistics atomically, replacing any
// previous state.
func (a *Account) Save(dir string) (err error) {
	defer decorate.OnError(&err, "could not save account state for %s:", a.symbol)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(stateFile{
		Balance:        a.balance,
		Trades:         a.stats.Trades,
		Wins:           a.stats.Wins,
		RealizedPnL:    a.stats.RealizedPnL,
		PeakBalance:    a.stats.PeakBalance,
		MaxDrawdownPct: a.stats.MaxDrawdownPct,
	}); err != nil {
		return fmt.Errorf("could not encode state file: %v", err)
	}

	return fileutils.AtomicWrite(StatePath(dir, a.symbol), buf.Bytes())
}

// Load restores a previously saved account for the given symbol.
// If no state file exists, a fresh account funded with initialBalance is
// returned instead.
func Load(dir, symbol string, initialBalance, feeRate float64) (*Account, error) {
	a := NewAccount(symbol, initialBalance, feeRate)

	var st stateFile
	if _, err := toml.DecodeFile(StatePath(dir, symbol), &st); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return a, nil
		}
		return nil, fmt.Errorf("could not read account state for %s: %w", symbol, err)
	}

	a.balance = st.Balance
	a.stats = Stats{
		Trades:         st.Trades,
		Wins:           st.Wins,
		RealizedPnL:    st.RealizedPnL,
		PeakBalance:    st.PeakBalance,
		MaxDrawdownPct: st.MaxDrawdownPct,
	}
	return a, nil
}
