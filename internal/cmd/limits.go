package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fusionlab/fusionlab/internal/config"
	errwrap "github.com/fusionlab/fusionlab/internal/errors"
	"github.com/fusionlab/fusionlab/internal/observability"
	"github.com/fusionlab/fusionlab/internal/output"
	"github.com/fusionlab/fusionlab/internal/ratelimit"
	"github.com/fusionlab/fusionlab/internal/store"
)

var (
	limitsAll    bool
	limitsClass  string
	limitsClient string
	limitsDryRun bool
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show per-capability budgets and retry policies",
	Long: `Show the effective request budget, window and upstream retry policy for
each capability, after config file and environment overrides.

The list and reset subcommands inspect windows persisted by the libsql backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(commandContext(cmd))
		if err != nil {
			return err
		}
		return render(cmd, output.PolicyDocument(cfg.Capabilities.Settings(), backend(cfg)))
	},
}

var limitsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		db, err := openLimitsStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := limitsQuery()
		if !query.All && query.Class == "" && query.ClientID == "" {
			query.All = true
		}
		entries, err := db.ListRateLimits(ctx, query)
		if err != nil {
			return err
		}
		return render(cmd, output.WindowsDocument(entries))
	},
}

var limitsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete persisted rate limit windows",
	Long: `Delete persisted windows so the matching clients start with a fresh budget.
Requires --all, --class or --client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		query := limitsQuery()
		if err := query.Validate(); err != nil {
			return errwrap.WrapValidationError(ctx, err, "invalid reset selection")
		}

		db, err := openLimitsStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountRateLimits(ctx, query)
		if err != nil {
			return err
		}

		var deleted int64
		if !limitsDryRun {
			deleted, err = db.ResetRateLimits(ctx, query)
			if err != nil {
				return err
			}
			observability.CLILogger.Info("Rate limit windows reset",
				zap.Int("matched", matched),
				zap.Int64("deleted", deleted))
		}
		return render(cmd, output.ResetDocument(matched, deleted, limitsDryRun))
	},
}

func limitsQuery() store.RateLimitQuery {
	return store.RateLimitQuery{
		All:      limitsAll,
		Class:    strings.TrimSpace(limitsClass),
		ClientID: strings.TrimSpace(limitsClient),
	}
}

func openLimitsStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if backend(cfg) != ratelimit.BackendLibsql {
		observability.CLILogger.Warn("Rate limit backend does not persist windows in the store",
			zap.String("backend", backend(cfg)),
			zap.String("config", config.ConfigFileUsed()))
	}
	return openStore(ctx, cfg)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	for _, c := range []*cobra.Command{limitsListCmd, limitsResetCmd} {
		c.Flags().BoolVar(&limitsAll, "all", false, "match every window")
		c.Flags().StringVar(&limitsClass, "class", "", "match one capability (image, description, suggestion)")
		c.Flags().StringVar(&limitsClient, "client", "", "match one client identifier")
	}
	limitsResetCmd.Flags().BoolVar(&limitsDryRun, "dry-run", false, "report matches without deleting")

	for _, c := range []*cobra.Command{limitsCmd, limitsListCmd, limitsResetCmd} {
		addOutputFlags(c)
	}

	limitsCmd.AddCommand(limitsListCmd, limitsResetCmd)
	rootCmd.AddCommand(limitsCmd)
}
