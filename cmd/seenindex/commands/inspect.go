package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *app) newInspectCommand() *cobra.Command {
	opts := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "inspect [flags] FILTER",
		Short: "Show filter parameters and load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInspect(cmd, opts, args[0])
		},
	}
	opts.register(cmd)
	return cmd
}

func (a *app) runInspect(cmd *cobra.Command, opts *filterFlags, path string) error {
	filter, s, err := a.openFilter(cmd, opts, path)
	if err != nil {
		return err
	}
	defer filter.Release()

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "path\t%s\n", path)
	fmt.Fprintf(tw, "encoding\t%s\n", s.encoding)
	fmt.Fprintf(tw, "exponent\t%d\n", filter.Exponent())
	fmt.Fprintf(tw, "bits\t%s\n", humanize.Comma(int64(filter.BitCount())))
	fmt.Fprintf(tw, "size\t%s\n", humanize.IBytes(uint64(filter.Len())))
	fmt.Fprintf(tw, "rounds\t%d\n", filter.Rounds())
	fmt.Fprintf(tw, "set bits\t%s\n", humanize.Comma(int64(filter.PopCount())))
	fmt.Fprintf(tw, "fill ratio\t%.6f\n", filter.FillRatio())
	if s.manifest != nil {
		fmt.Fprintf(tw, "inserted\t%s\n", humanize.Comma(int64(s.manifest.Inserted)))
		fmt.Fprintf(tw, "est. false positive rate\t%.3g\n", filter.EstimatedFalsePositiveRate(s.manifest.Inserted))
	}
	// chance that k independent probes all land on set bits.
	fmt.Fprintf(tw, "observed false positive bound\t%.3g\n", observedRate(filter.FillRatio(), filter.Rounds()))
	return tw.Flush()
}

func observedRate(fill float64, rounds uint32) float64 {
	rate := 1.0
	for i := uint32(0); i < rounds; i++ {
		rate *= fill
	}
	return rate
}
