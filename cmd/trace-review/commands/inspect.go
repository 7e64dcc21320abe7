package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trace.review/internal/fsutil"
	"github.com/banshee-data/trace.review/internal/samples"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <batch-file>",
		Short: "Summarise the samples in a batch file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := samples.ReadFile(fsutil.OSFileSystem{}, args[0])
			if err != nil {
				return a.out.Error("Failed to decode batch", err.Error(), nil)
			}

			a.out.Step("%s: %d samples\n", args[0], len(seq))
			tw := tabwriter.NewWriter(a.out.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tHASH\tSPAN_DAYS\tR1_MEAN\tR2_MEAN\tV1_MEAN\tV2_MEAN")
			for i, s := range seq {
				sum := samples.Summarize(s)
				fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.3f\t%.3f\t%.3f\t%.3f\n",
					i, sum.ID, sum.SpanDays, sum.R1.Mean, sum.R2.Mean, sum.V1.Mean, sum.V2.Mean)
			}
			return tw.Flush()
		},
	}
}
