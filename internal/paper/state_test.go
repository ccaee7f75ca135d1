package paper_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-scalper/internal/paper"
	"momentum-scalper/internal/strategy"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := paper.NewAccount("SUI_USDT", 100, feeRate)
	_, err := a.Open(strategy.Long, 100, 2, now)
	require.NoError(t, err, "Setup: open should succeed")
	_, err = a.Close(2.1, now.Add(5*time.Second), strategy.ExitTakeProfit)
	require.NoError(t, err, "Setup: close should succeed")

	require.NoError(t, a.Save(dir), "Save should not fail")

	got, err := paper.Load(dir, "SUI_USDT", 100, feeRate)
	require.NoError(t, err, "Load should not fail")

	assert.InDelta(t, a.Balance(), got.Balance(), 1e-9, "Loaded balance should match the saved one")
	assert.Equal(t, a.Stats(), got.Stats(), "Loaded stats should match the saved ones")

	_, ok := got.Position()
	assert.False(t, ok, "Loaded accounts should always start flat")
}

func TestLoadMissingStateReturnsFreshAccount(t *testing.T) {
	t.Parallel()

	got, err := paper.Load(t.TempDir(), "SUI_USDT", 100, feeRate)
	require.NoError(t, err, "Load should not fail when no state exists")

	assert.InDelta(t, 100.0, got.Balance(), 1e-9, "Fresh account should use the initial balance")
	assert.Equal(t, paper.Stats{PeakBalance: 100}, got.Stats())
}

func TestLoadInvalidState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := os.WriteFile(paper.StatePath(dir, "SUI_USDT"), []byte("not a toml ]["), 0600)
	require.NoError(t, err, "Setup: failed to write invalid state file")

	_, err = paper.Load(dir, "SUI_USDT", 100, feeRate)
	require.Error(t, err, "Load should fail on an invalid state file")
}

func TestSaveOpenPositionIsDropped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := paper.NewAccount("SUI_USDT", 100, feeRate)
	_, err := a.Open(strategy.Short, 50, 3, now)
	require.NoError(t, err, "Setup: open should succeed")

	require.NoError(t, a.Save(dir), "Save should not fail with an open position")

	got, err := paper.Load(dir, "SUI_USDT", 100, feeRate)
	require.NoError(t, err, "Load should not fail")

	_, ok := got.Position()
	assert.False(t, ok, "Open positions should not survive a save/load cycle")
	assert.InDelta(t, a.Balance(), got.Balance(), 1e-9, "The entry fee already charged should survive")
}

func TestSaveCreatesStateDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "state")
	a := paper.NewAccount("SUI_USDT", 100, feeRate)

	require.NoError(t, a.Save(dir), "Save should create missing directories")
	require.FileExists(t, paper.StatePath(dir, "SUI_USDT"))
}
