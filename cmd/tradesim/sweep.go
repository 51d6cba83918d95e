package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/tradesim/internal/app"
	"github.com/spf13/cobra"
)

var (
	sweepSymbol      string
	sweepFrom        string
	sweepTo          string
	sweepGrid        []string
	sweepParallelism int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep [strategy]",
	Short: "Run a strategy over a parameter grid",
	Long: `Run one backtest per combination of the grid, in parallel, over a single
load of bars. Example: tradesim sweep ma_crossover --symbol AAPL -g fast_period=5,10 -g slow_period=20,50`,
	Args: cobra.ExactArgs(1),
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepSymbol, "symbol", "", "Symbol to backtest (required)")
	sweepCmd.Flags().StringVar(&sweepFrom, "from", "", "Start date YYYY-MM-DD")
	sweepCmd.Flags().StringVar(&sweepTo, "to", "", "End date YYYY-MM-DD, inclusive")
	sweepCmd.Flags().StringArrayVarP(&sweepGrid, "grid", "g", nil, "Parameter values key=v1,v2 (repeatable, required)")
	sweepCmd.Flags().IntVar(&sweepParallelism, "parallelism", 0, "Concurrent runs (0 = config or GOMAXPROCS)")

	sweepCmd.MarkFlagRequired("symbol")
	sweepCmd.MarkFlagRequired("grid")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	start, end, err := parseRange(sweepFrom, sweepTo)
	if err != nil {
		return err
	}
	grid, err := parseGrid(sweepGrid)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	results, err := a.Sweep(ctx, app.SweepRequest{
		Strategy:    args[0],
		Symbol:      sweepSymbol,
		Start:       start,
		End:         end,
		Grid:        grid,
		Parallelism: sweepParallelism,
	})
	if results == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPARAMS\tRETURN\tSHARPE\tMAX DD\tTRADES\tWIN RATE")
	for _, res := range results {
		s := res.Summary
		fmt.Fprintf(tw, "%s\t%v\t%.2f%%\t%.3f\t%.2f%%\t%d\t%.1f%%\n",
			res.RunID, res.Params, s.TotalReturn*100, s.SharpeRatio, s.MaxDrawdown*100, s.TotalTrades, s.WinRate*100)
	}
	return tw.Flush()
}
