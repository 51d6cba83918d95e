package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runsStrategy string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run journal",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled runs, newest first",
	Args:  cobra.NoArgs,
	RunE: withJournal(func(cmd *cobra.Command, a *app.App, args []string) error {
		runs, err := a.Journal().ListRuns(cmd.Context(), runsStrategy, runsLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTRATEGY\tSYMBOL\tPERIOD\tRETURN\tMAX DD\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s..%s\t%.2f%%\t%.2f%%\t%s\n",
				r.RunID, r.Strategy, r.Symbol,
				r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"),
				r.Summary.TotalReturn*100, r.Summary.MaxDrawdown*100,
				r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	}),
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run_id]",
	Short: "Show a journaled run with its fills and alerts",
	Args:  cobra.ExactArgs(1),
	RunE: withJournal(func(cmd *cobra.Command, a *app.App, args []string) error {
		ctx := cmd.Context()
		j := a.Journal()
		run, err := j.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		fills, err := j.Fills(ctx, args[0])
		if err != nil {
			return err
		}
		alerts, err := j.Alerts(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run:      %s\n", run.RunID)
		fmt.Fprintf(out, "Strategy: %s %v\n", run.Strategy, run.Params)
		fmt.Fprintf(out, "Symbol:   %s\n", run.Symbol)
		fmt.Fprintf(out, "Equity:   %s -> %s\n", run.InitialCash.StringFixed(2), run.FinalEquity.StringFixed(2))
		fmt.Fprintf(out, "Return:   %.2f%%  Sharpe %.3f  Max DD %.2f%%\n",
			run.Summary.TotalReturn*100, run.Summary.SharpeRatio, run.Summary.MaxDrawdown*100)

		fmt.Fprintf(out, "\nFills (%d):\n", len(fills))
		for _, f := range fills {
			fmt.Fprintf(out, "  %s %-4s %s %s @ %s fee %s\n",
				f.Time.Format("2006-01-02"), f.Side, f.Quantity, f.Symbol, f.Price, f.Fee)
		}
		if len(alerts) > 0 {
			fmt.Fprintf(out, "\nAlerts (%d):\n", len(alerts))
			for _, al := range alerts {
				fmt.Fprintf(out, "  %s %s\n", al.Time.Format("2006-01-02"), alert.FormatMessage(al, ""))
			}
		}
		return nil
	}),
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete [run_id]",
	Short: "Delete a journaled run",
	Args:  cobra.ExactArgs(1),
	RunE: withJournal(func(cmd *cobra.Command, a *app.App, args []string) error {
		if err := a.Journal().DeleteRun(cmd.Context(), args[0]); err != nil {
			return err
		}
		a.Logger().Info("run deleted", zap.String("run_id", args[0]))
		return nil
	}),
}

func init() {
	runsListCmd.Flags().StringVar(&runsStrategy, "strategy", "", "Only runs of this strategy")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list (0 = all)")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

// withJournal assembles the app and fails unless the journal is enabled.
func withJournal(fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, log, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		if a.Journal() == nil {
			return errors.New("journal is disabled; set journal.enabled in config")
		}
		return fn(cmd, a, args)
	}
}
