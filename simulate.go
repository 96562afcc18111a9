package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"pm-dashboard/domain"
)

var (
	simulateTicks int
	simulateSeed  uint64
	simulateJSON  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run KPI ticks against a fresh session and print the dashboard",
	Args:  cobra.NoArgs,
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simulateTicks, "ticks", "n", domain.HistoryLimit, "number of ticks to run")
	simulateCmd.Flags().Uint64Var(&simulateSeed, "seed", 0, "random seed (0 picks one)")
	simulateCmd.Flags().BoolVar(&simulateJSON, "json", false, "print the dashboard view as JSON")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	if simulateTicks < 0 {
		return fmt.Errorf("ticks must not be negative, got %d", simulateTicks)
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	seed := simulateSeed
	if seed == 0 {
		seed = cfg.RandomSeed
	}
	gen, err := domain.NewGenerator(cfg.Generator, seed)
	if err != nil {
		return err
	}

	sess := simulate(gen, simulateTicks)
	view := domain.BuildDashboard(sess)
	out := cmd.OutOrStdout()
	if simulateJSON {
		data, err := sonic.ConfigStd.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	return printDashboard(out, sess, view)
}

func simulate(sampler domain.Sampler, ticks int) domain.Session {
	sess := domain.NewSession("simulation")
	for i := 0; i < ticks; i++ {
		sess.Tick(sampler)
	}
	return sess
}

func printDashboard(w io.Writer, sess domain.Session, view domain.DashboardView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tMTBF\tMTTR\tAVAILABILITY\tQUALITY\tPERFORMANCE\tOEE")
	for _, o := range sess.History.Observations {
		fmt.Fprintf(tw, "%d\t%g\t%g\t%.2f\t%.2f\t%.2f\t%.2f\n", o.Month, o.MTBF, o.MTTR, o.Availability, o.Quality, o.Performance, o.OEE)
	}
	fmt.Fprintln(tw)
	for _, card := range []domain.KPICard{view.MTBF, view.MTTR, view.OEE, view.Completion} {
		delta := "-"
		if card.HasDelta {
			delta = card.Delta
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", card.Label, card.Display, delta)
	}
	return tw.Flush()
}
