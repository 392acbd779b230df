package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/meurit/app"
	"github.com/kilianp07/meurit/core/market"
	"github.com/kilianp07/meurit/infra/logger"
	"github.com/kilianp07/meurit/pkg/export"
)

var calculate bool

var inspectCmd = &cobra.Command{
	Use:   "inspect FOLDER...",
	Short: "Validate participant folders and show what they contain",
	Args:  cobra.MinimumNArgs(1),
	RunE:  inspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&calculate, "calculate", false, "calculate each folder in isolation and print its price summary")
	rootCmd.AddCommand(inspectCmd)
}

func inspect(cmd *cobra.Command, args []string) error {
	if err := logger.SetLevel(logLevel); err != nil {
		return err
	}
	log := logger.New("inspect")
	out := cmd.OutOrStdout()
	none := func(string) string { return "" }
	for _, dir := range args {
		name := filepath.Base(filepath.Clean(dir))
		zs, err := app.ReadZoneSource(name, dir, none, log)
		if err != nil {
			return err
		}
		counts := map[string]int{}
		for _, p := range zs.Participants {
			counts[p.Kind.String()]++
		}
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "%s\t%s\n", name, dir)
		for _, k := range kinds {
			fmt.Fprintf(tw, "  %s\t%d\n", k, counts[k])
		}
		for _, s := range zs.Static {
			fmt.Fprintf(tw, "  link %s\tto %s, %g MW x %g at %g EUR/MWh\n", s.Key, s.ToRegion, s.Capacity, s.Scaling, s.MarginalCost)
		}
		if calculate {
			z, err := market.NewActiveZone(name, zs.Participants)
			if err != nil {
				return err
			}
			if err := z.Calculate(); err != nil {
				return err
			}
			p, err := z.PriceCurve()
			if err != nil {
				return err
			}
			s := p.Summarize()
			fmt.Fprintf(tw, "  price\tmean %.2f, min %.2f, max %.2f\n", s.Mean, s.Min, s.Max)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, r *export.Report) error {
	zones := make([]string, 0, len(r.Prices))
	for z := range r.Prices {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\nrounds\t%d\n", r.RunID, len(r.Rounds))
	fmt.Fprintln(tw, "zone\tmean\tmin\tmax")
	for _, z := range zones {
		s := r.Prices[z].Summarize()
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\n", z, s.Mean, s.Min, s.Max)
	}
	return tw.Flush()
}
