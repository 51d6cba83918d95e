package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/marketdata"
	"github.com/newthinker/tradesim/internal/series/seriestest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv writes AAPL bars and a config pointing at them.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")

	w, err := marketdata.NewWriter("csv", dataDir)
	require.NoError(t, err)
	require.NoError(t, w.Write(t.Context(),
		seriestest.Bars("AAPL", 10, 10, 10, 10, 10, 12, 14, 16, 14, 12, 10, 8, 10, 12, 14, 16)))

	cfg := fmt.Sprintf(`
data:
  format: csv
  path: %q
journal:
  enabled: true
  dsn: %q
metrics:
  enabled: false
log:
  level: error
risk:
  rules:
    - name: dd10
      expr: "drawdown > 0.1"
      severity: warning
`, dataDir, filepath.Join(dir, "journal.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	cfgPath := testEnv(t)

	t.Run("strategies", func(t *testing.T) {
		out, err := execute(t, "strategies")
		require.NoError(t, err)
		assert.Contains(t, out, "ma_crossover")
		assert.Contains(t, out, "rsi")
	})

	t.Run("backtest", func(t *testing.T) {
		out, err := execute(t, "backtest", "ma_crossover", "-c", cfgPath,
			"--symbol", "AAPL", "-p", "fast_period=2", "-p", "slow_period=4")
		require.NoError(t, err)
		assert.Contains(t, out, "=== tradesim backtest ===")
		assert.Contains(t, out, "16 bars")
	})

	t.Run("runs list", func(t *testing.T) {
		out, err := execute(t, "runs", "list", "-c", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "ma_crossover")
	})

	t.Run("backtest replay", func(t *testing.T) {
		t.Cleanup(func() { backtestJSON, backtestReplay = false, "" })

		out, err := execute(t, "backtest", "ma_crossover", "-c", cfgPath,
			"--symbol", "AAPL", "-p", "fast_period=2", "-p", "slow_period=4", "--json")
		require.NoError(t, err)
		var original backtest.Result
		require.NoError(t, json.Unmarshal([]byte(out), &original))

		out, err = execute(t, "backtest", "-c", cfgPath, "--replay", original.RunID, "--json")
		require.NoError(t, err)
		var replayed backtest.Result
		require.NoError(t, json.Unmarshal([]byte(out), &replayed))

		assert.Equal(t, "replay", replayed.Strategy)
		assert.Equal(t, original.RunID, replayed.Params["replay_of"])
		assert.True(t, original.FinalEquity().Equal(replayed.FinalEquity()))
	})

	t.Run("sweep", func(t *testing.T) {
		out, err := execute(t, "sweep", "ma_crossover", "-c", cfgPath,
			"--symbol", "AAPL", "-g", "fast_period=2,3", "-g", "slow_period=5")
		require.NoError(t, err)
		assert.Contains(t, out, "map[fast_period:2 slow_period:5]")
		assert.Contains(t, out, "map[fast_period:3 slow_period:5]")
	})

	t.Run("monitor equity file", func(t *testing.T) {
		equity := filepath.Join(t.TempDir(), "equity.csv")
		require.NoError(t, os.WriteFile(equity, []byte(
			"time,equity\n2024-01-01T00:00:00Z,100\n2024-01-02T00:00:00Z,100\n2024-01-03T00:00:00Z,80\n"), 0o644))

		out, err := execute(t, "monitor", "-c", cfgPath, "--equity", equity, "-q")
		require.NoError(t, err)
		assert.Contains(t, out, "ALERT 2024-01-03")
		assert.Contains(t, out, "3 bars, 1 alerts")
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := execute(t, "backtest", "nope", "-c", cfgPath, "--symbol", "AAPL")
		assert.Error(t, err)
	})
}
