package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fusionlab/fusionlab/internal/appid"
	"github.com/fusionlab/fusionlab/internal/config"
	"github.com/fusionlab/fusionlab/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	traceFile string

	// appIdentity is loaded from .fulmen/app.yaml in initConfig.
	appIdentity *appidentity.Identity

	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main with build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the identity resolved by initConfig, or the fallback.
func GetAppIdentity() *appidentity.Identity {
	if appIdentity == nil {
		return appid.Fallback()
	}
	return appIdentity
}

var rootCmd = &cobra.Command{
	// initConfig replaces these from the app identity.
	Use:   filepath.Base(os.Args[0]),
	Short: "Fusion generator backend",
	Long: `Fusion generator backend.

Serves image, description and idea suggestions for pairs of concepts,
and keeps a running count of completed fusions.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Config loading must not emit metrics to stdout. serve installs the real
	// telemetry system later.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	if identity, err := appid.Get(context.Background()); err == nil {
		applyIdentity(identity)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults to the app identity config path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "record upstream attempts to an NDJSON file")
}

func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity from .fulmen/app.yaml", err)
		return
	}
	applyIdentity(identity)

	observability.InitCLILogger(identity.BinaryName, verbose)

	config.SetConfigFile(cfgFile)
	config.LoadDotEnv()

	if verbose {
		if used := config.ConfigFileUsed(); used != "" {
			observability.CLILogger.Debug("Using config file", zap.String("path", used))
		} else {
			observability.CLILogger.Debug("No config file found, using defaults and environment variables")
		}
	}
}

func applyIdentity(identity *appidentity.Identity) {
	if identity == nil {
		return
	}
	appIdentity = identity
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
	}
	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}
}

// loadConfig resolves configuration with the global flags applied on top.
func loadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	if traceFile != "" {
		overrides = append(overrides, map[string]any{"ailink": map[string]any{"trace_file": traceFile}})
	}
	return config.Load(ctx, overrides...)
}

// setupComponents loads configuration and wires the components for one-shot commands.
func setupComponents(ctx context.Context) (*components, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return newComponents(ctx, cfg, observability.Logger())
}
