package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/merge"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/met"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/observability"
)

func newMetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "met <file.csv>",
		Short: "Check how a MET CSV parses before merging it",
		Long: `met runs the MET loader on one file and prints which attempt won, the
row counts of every attempt and the inferred sampling interval. Use it to
pick column indices and time zones before a convert run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			lo, err := cfg.Met.LoaderOptions()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			res, err := met.NewLoader(lo, logger).Load(args[0])
			if err != nil {
				return err
			}
			interval := cfg.Met.Interval
			if interval <= 0 {
				interval = inferInterval(res.Samples)
			}
			if err := printMet(cmd.OutOrStdout(), res, interval); err != nil {
				return err
			}
			if len(res.Samples) == 0 {
				return fmt.Errorf("no samples parsed from %s; check --met-time-col, --met-wind-col and the time format", args[0])
			}
			return nil
		},
	}
}

func inferInterval(samples []domain.MetSample) time.Duration {
	times := make([]time.Time, len(samples))
	for i, s := range samples {
		times[i] = s.Time
	}
	return merge.InferInterval(times)
}

func printMet(w io.Writer, res met.Result, interval time.Duration) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "stage\t%s\n", res.Stage)
	fmt.Fprintf(tw, "encoding\t%s\n", res.Encoding)
	fmt.Fprintf(tw, "delimiter\t%q\n", res.Delimiter)
	if res.SniffErr != nil {
		fmt.Fprintf(tw, "sniff\t%v\n", res.SniffErr)
	}
	fmt.Fprintf(tw, "samples\t%d\n", len(res.Samples))
	if n := len(res.Samples); n > 0 {
		fmt.Fprintf(tw, "first\t%s\n", domain.FormatTimestamp(res.Samples[0].Time))
		fmt.Fprintf(tw, "last\t%s\n", domain.FormatTimestamp(res.Samples[n-1].Time))
		fmt.Fprintf(tw, "interval\t%s\n", interval)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Stage", "Encoding", "Delim", "Parsed", "Header", "Short", "Bad time", "Bad wind"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, at := range res.Attempts {
		s := at.Stats
		table.Append([]string{
			at.Stage.String(),
			string(at.Encoding),
			strconv.QuoteRune(at.Delimiter),
			strconv.Itoa(s.Parsed),
			strconv.Itoa(s.HeaderSkips),
			strconv.Itoa(s.ShortRows),
			strconv.Itoa(s.TimeFailures),
			strconv.Itoa(s.WindFailures),
		})
	}
	table.Render()
	return nil
}
