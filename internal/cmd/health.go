package cmd

import (
	"context"
	"sort"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/fusionlab/fusionlab/internal/errors"
	"github.com/fusionlab/fusionlab/internal/observability"
	"github.com/fusionlab/fusionlab/internal/output"
	"github.com/fusionlab/fusionlab/internal/server/handlers"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Wire the configured components and run the same checks the readiness
probe uses: app identity, generation credential, fusion counter and the
rate limit backend. Exits non-zero when any check is unhealthy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		comps, err := setupComponents(ctx)
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to wire components", err)
			return nil
		}
		defer comps.Close() // nolint:errcheck // best-effort cleanup

		hm := handlers.NewHealthManager(versionInfo.Version)
		registerHealthChecks(hm, comps, GetAppIdentity(), false)

		checkCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		status, checks := hm.Check(checkCtx)

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		if err := render(cmd, output.ChecksDocument(status, names, checks)); err != nil {
			return err
		}

		switch status {
		case "unhealthy":
			_ = comps.Close()
			ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable,
				"Health check failed", errwrap.NewInternalError("one or more checks are unhealthy"))
		case "degraded":
			observability.CLILogger.Warn("Health check degraded", zap.Any("checks", checks))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "overall time allowed for the checks")
	addOutputFlags(healthCmd)
}
