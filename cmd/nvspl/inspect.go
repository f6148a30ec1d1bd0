package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/ld831"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.831>...",
		Short: "Show the resolved record layout and decode counts of logs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			loc, err := cfg.DeviceLocation()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, path := range args {
				if i > 0 {
					fmt.Fprintln(out)
				}
				res, err := ld831.ParseFile(path, ld831.Options{Location: loc})
				if err != nil {
					return err
				}
				if err := printInspection(out, path, res); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printInspection(w io.Writer, path string, res ld831.Result) error {
	l := res.Layout
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "file\t%s\n", path)
	fmt.Fprintf(tw, "variant\t%s\n", l.Variant)
	if l.Variant == ld831.VariantNew {
		fmt.Fprintf(tw, "device\t%s\n", l.DeviceID())
		fmt.Fprintf(tw, "gain\t%s\n", l.Gain)
		fmt.Fprintf(tw, "oba range\t%s\n", l.OBARange)
		fmt.Fprintf(tw, "history offset\t%d\n", l.HistoryOffset)
		fmt.Fprintf(tw, "metrics (bits)\t%d\n", l.BitMetricCount)
	}
	fmt.Fprintf(tw, "metrics\t%d (reconciled=%t)\n", l.MetricCount, l.Reconciled)
	fmt.Fprintf(tw, "stride\t%d bytes\n", l.Stride())
	fmt.Fprintf(tw, "record start\t%d\n", l.RecordStart)
	fmt.Fprintf(tw, "records\t%d (header %d)\n", l.RecordCount, l.HeaderRecordCount)
	for _, k := range ld831.ChannelKinds() {
		if idx, ok := l.Channel(k); ok {
			fmt.Fprintf(tw, "  %s\tslot %d\n", k, idx)
		}
	}

	s := res.Stats
	fmt.Fprintf(tw, "accepted\t%d\n", s.Accepted)
	fmt.Fprintf(tw, "retrograde\t%d\n", s.Retrograde)
	fmt.Fprintf(tw, "unknown flag\t%d\n", s.UnknownFlag)
	fmt.Fprintf(tw, "truncated\t%t\n", s.Truncated)

	f := res.File
	fmt.Fprintf(tw, "site\t%s\n", f.Site)
	if n := len(f.Rows); n > 0 {
		fmt.Fprintf(tw, "first row\t%s\n", domain.FormatTimestamp(f.Rows[0].Time))
		fmt.Fprintf(tw, "last row\t%s\n", domain.FormatTimestamp(f.Rows[n-1].Time))
	}
	if f.Anchored {
		fmt.Fprintf(tw, "anchor shift\t%s\n", f.Shift)
	} else {
		fmt.Fprintf(tw, "anchor shift\tnone (file name has no start time)\n")
	}
	return tw.Flush()
}
