package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/risk"
	"github.com/newthinker/tradesim/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	monitorRun     string
	monitorArchive string
	monitorEquity  string
	monitorQuiet   bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Replay an equity curve through the live risk monitor",
	Long: `Feed a recorded equity curve, bar by bar, through the risk monitor and
configured notifiers. The curve comes from exactly one of: a journaled run
(--run), an archived run (--archive strategy/run_id) or an equity CSV file
(--equity).`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorRun, "run", "", "Journaled run ID")
	monitorCmd.Flags().StringVar(&monitorArchive, "archive", "", "Archived run as strategy/run_id")
	monitorCmd.Flags().StringVar(&monitorEquity, "equity", "", "Equity CSV file (time,equity[,cash,gross_exposure])")
	monitorCmd.Flags().BoolVarP(&monitorQuiet, "quiet", "q", false, "Print alerts only")
	monitorCmd.MarkFlagsOneRequired("run", "archive", "equity")
	monitorCmd.MarkFlagsMutuallyExclusive("run", "archive", "equity")

	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	var (
		name  string
		curve []core.PortfolioSnapshot
	)
	switch {
	case monitorRun != "":
		if a.Journal() == nil {
			return errors.New("--run needs journal.enabled in config")
		}
		name = monitorRun
		curve, err = a.Journal().Snapshots(ctx, monitorRun)
	case monitorArchive != "":
		if a.Archive() == nil {
			return errors.New("--archive needs a storage section in config")
		}
		strategy, runID, ok := strings.Cut(monitorArchive, "/")
		if !ok {
			return fmt.Errorf("--archive expects strategy/run_id, got %q", monitorArchive)
		}
		name = runID
		res, lerr := a.Archive().Load(ctx, strategy, runID)
		if lerr != nil {
			return lerr
		}
		curve = res.EquityCurve
	default:
		name = monitorEquity
		f, oerr := os.Open(monitorEquity)
		if oerr != nil {
			return oerr
		}
		defer f.Close()
		curve, err = archive.ReadEquityCSV(f)
	}
	if err != nil {
		return err
	}
	if len(curve) == 0 {
		return core.Errorf(core.ErrNoData, "no snapshots for %s", name)
	}

	log.Info("monitoring curve", zap.String("source", name), zap.Int("bars", len(curve)))

	out := cmd.OutOrStdout()
	alerts, err := a.Monitor(ctx, name, curve, func(u risk.Update) {
		m := u.Metrics
		if !monitorQuiet {
			fmt.Fprintf(out, "%s equity=%.2f dd=%.4f vol=%.4f exp=%.4f score=%.4f\n",
				m.Time.Format("2006-01-02T15:04:05Z07:00"), m.Equity, m.Drawdown, m.Volatility, m.Exposure, m.Score)
		}
		for _, al := range u.Alerts {
			fmt.Fprintf(out, "ALERT %s %s\n", al.Time.Format("2006-01-02T15:04:05Z07:00"), alert.FormatMessage(al, ""))
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d bars, %d alerts\n", len(curve), len(alerts))
	return nil
}
