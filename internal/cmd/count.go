package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fusionlab/fusionlab/internal/counter"
	"github.com/fusionlab/fusionlab/internal/metrics"
	"github.com/fusionlab/fusionlab/internal/observability"
	"github.com/fusionlab/fusionlab/internal/output"
)

var countIncrement bool

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the fusion counter",
	Long:  "Show the number of completed fusions. --increment adds one first, as POST /api/fusion-count does.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		comps := &components{cfg: cfg, logger: observability.Logger()}
		if cfg.UsesStore() {
			db, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			comps.store = db
			comps.closers = append(comps.closers, db.Close)
		}
		defer comps.Close() // nolint:errcheck // best-effort cleanup
		comps.buildCounter()

		var snap counter.Snapshot
		if countIncrement {
			snap, err = comps.counter.Increment(ctx)
			metrics.RecordFusionCountIncrement(err == nil)
		} else {
			snap, err = comps.counter.Get(ctx)
		}
		if err != nil {
			return err
		}
		return render(cmd, output.CountDocument(snap))
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
	countCmd.Flags().BoolVar(&countIncrement, "increment", false, "increment the counter before printing it")
	addOutputFlags(countCmd)
}
