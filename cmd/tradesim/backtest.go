package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/app"
	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/spf13/cobra"
)

var (
	backtestSymbol string
	backtestFrom   string
	backtestTo     string
	backtestParams []string
	backtestJSON   bool
	backtestReplay string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run backtest on a strategy",
	Long: `Run a strategy against historical data and show performance statistics.

With --replay, re-run a recorded run from its trade log instead.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if backtestReplay != "" {
			return cobra.NoArgs(cmd, args)
		}
		if backtestSymbol == "" {
			return fmt.Errorf("--symbol is required")
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol to backtest (required unless --replay)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD, inclusive")
	backtestCmd.Flags().StringArrayVarP(&backtestParams, "param", "p", nil, "Strategy parameter key=value (repeatable)")
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "Print the full result as JSON")
	backtestCmd.Flags().StringVar(&backtestReplay, "replay", "", "Replay the trade log of a recorded run ID")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	var res *backtest.Result
	if backtestReplay != "" {
		res, err = a.Replay(ctx, backtestReplay)
	} else {
		res, err = runStrategy(ctx, a, args[0])
	}
	if res == nil {
		return err
	}
	if err != nil {
		// The run finished; only persistence failed.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	out := cmd.OutOrStdout()
	if backtestJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(out, res)
	return nil
}

func runStrategy(ctx context.Context, a *app.App, name string) (*backtest.Result, error) {
	start, end, err := parseRange(backtestFrom, backtestTo)
	if err != nil {
		return nil, err
	}
	params, err := parseParams(backtestParams)
	if err != nil {
		return nil, err
	}
	return a.Backtest(ctx, app.BacktestRequest{
		Strategy: name,
		Symbol:   backtestSymbol,
		Start:    start,
		End:      end,
		Params:   params,
	})
}

func printResult(w io.Writer, res *backtest.Result) {
	s := res.Summary
	fmt.Fprintln(w, "=== tradesim backtest ===")
	fmt.Fprintf(w, "Run:        %s\n", res.RunID)
	fmt.Fprintf(w, "Strategy:   %s %v\n", res.Strategy, res.Params)
	fmt.Fprintf(w, "Symbol:     %s\n", res.Symbol)
	fmt.Fprintf(w, "Period:     %s to %s (%d bars)\n",
		res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02"), s.Bars)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Equity:     %s -> %s\n", s.InitialEquity.StringFixed(2), s.FinalEquity.StringFixed(2))
	fmt.Fprintf(w, "Return:     %.2f%%\n", s.TotalReturn*100)
	fmt.Fprintf(w, "Sharpe:     %.3f\n", s.SharpeRatio)
	fmt.Fprintf(w, "Volatility: %.2f%% (annualised)\n", s.AnnualizedVolatility*100)
	fmt.Fprintf(w, "Max DD:     %.2f%%\n", s.MaxDrawdown*100)
	fmt.Fprintf(w, "Trades:     %d fills, %d closing, win rate %.1f%%, profit factor %.2f\n",
		s.TotalTrades, s.ClosingTrades, s.WinRate*100, s.ProfitFactor)
	fmt.Fprintf(w, "Fees:       %s\n", s.TotalFees.StringFixed(2))
	if len(res.Rejections) > 0 {
		fmt.Fprintf(w, "Rejected:   %d intents\n", len(res.Rejections))
	}
	if len(res.Alerts) > 0 {
		fmt.Fprintf(w, "\nAlerts (%d):\n", len(res.Alerts))
		for _, al := range res.Alerts {
			fmt.Fprintf(w, "  %s %s\n", al.Time.Format("2006-01-02"), alert.FormatMessage(al, ""))
		}
	}
}
