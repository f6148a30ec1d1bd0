// Command nvspl converts Larson Davis LD831 binary logs into hourly NVSPL
// text files, optionally merging wind speed from a MET CSV export.
//
// Usage:
//
//	nvspl convert SPL/ --output NVSPL --met wind.csv --met-method bin
//	nvspl inspect SPL/SPL_CANYCOLO_2025_05_15_112147.831
//	nvspl met wind.csv --met-wind-col 3
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/config"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// batchMetrics registers the Prometheus collectors once per process.
var batchMetrics = sync.OnceValue(observability.NewMetrics)

// app carries state shared by the subcommands.
type app struct {
	configPath string
	flags      cliFlags
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "nvspl",
		Short: "Convert LD831 sound level logs to hourly NVSPL files",
		Long: `nvspl decodes Larson Davis LD831 binary logs (.831), anchors their clock to
the file name, optionally merges wind speed from a MET CSV, and writes one
NVSPL text file per site and hour.

Settings come from defaults, an optional YAML file (--config), environment
variables and finally flags.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	a.flags.bindPersistent(root)

	root.AddCommand(newConvertCmd(a), newInspectCmd(a), newMetCmd(a))
	return root
}

// loadConfig reads the config file and environment, then applies any flags
// the user set.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Read(a.configPath)
	if err != nil {
		return nil, err
	}
	a.flags.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
