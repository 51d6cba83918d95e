package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/newthinker/tradesim/internal/strategy/builtin"
	"github.com/spf13/cobra"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := builtin.Registry(nil)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tLOOKBACK\tDESCRIPTION")
		for _, name := range reg.Names() {
			s, err := reg.New(name, strategy.Config{})
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Name(), s.Lookback(), s.Description())
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
