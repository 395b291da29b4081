package cmd

import (
	"fmt"
	goruntime "runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fusionlab/fusionlab/internal/config"
	"github.com/fusionlab/fusionlab/internal/fusion"
	"github.com/fusionlab/fusionlab/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display version, runtime and effective configuration. Secrets are reported as set or not set.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		log.Info("=== Environment Information ===")
		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))

		log.Info("Runtime:")
		log.Info("  Go Version: "+goruntime.Version(), zap.String("go_version", goruntime.Version()))
		log.Info("  GOOS/ARCH:  " + goruntime.GOOS + "/" + goruntime.GOARCH)
		log.Info(fmt.Sprintf("  NumCPU:     %d", goruntime.NumCPU()))

		cfg, err := loadConfig(commandContext(cmd))
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := config.ConfigFileUsed()
		if configFile == "" {
			configFile = "(none, default " + config.DefaultConfigPath() + ")"
		}

		log.Info("Configuration:")
		log.Info("  Config File:     " + configFile)
		log.Info(fmt.Sprintf("  Server:          %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:       " + cfg.Logging.Level)
		log.Info("  Log Profile:     " + cfg.Logging.Profile)
		log.Info(fmt.Sprintf("  Metrics:         %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info(fmt.Sprintf("  Health:          %t", cfg.Health.Enabled))

		log.Info("Generation:")
		log.Info("  API Key:         " + setOrNot(cfg.AILink.APIKey))
		log.Info("  Base URL:        " + orUnknown(cfg.AILink.BaseURL))
		log.Info("  Text Model:      " + orUnknown(cfg.AILink.TextModel))
		log.Info("  Image Model:     " + orUnknown(cfg.AILink.ImageModel))
		log.Info("  Timeout:         " + cfg.AILink.Timeout.String())
		if cfg.AILink.PromptsDir != "" {
			log.Info("  Prompts Dir:     " + cfg.AILink.PromptsDir)
		}

		log.Info("Rate Limits:")
		log.Info("  Backend:         " + backend(cfg))
		settings := cfg.Capabilities.Settings()
		for _, c := range fusion.Capabilities {
			s := settings[c]
			log.Info(fmt.Sprintf("  %-16s %d per %s", string(c)+":", s.RequestsPerWindow, s.Window))
		}
		if backend(cfg) == "redis" {
			log.Info("  Redis Addr:      " + cfg.Redis.Addr)
		}

		log.Info("Counter:")
		log.Info("  Driver:          " + cfg.Counter.Driver)
		if strings.EqualFold(cfg.Counter.Driver, "file") {
			log.Info("  Path:            " + cfg.Counter.Path)
		}
		if cfg.UsesStore() {
			if strings.TrimSpace(cfg.Store.URL) != "" {
				log.Info("  Store URL:       " + cfg.Store.URL)
				log.Info("  Store Token:     " + setOrNot(cfg.Store.AuthToken))
			} else {
				log.Info("  Store Path:      " + cfg.Store.Path)
			}
		}
		log.Info("=== End Environment Information ===")
	},
}

func setOrNot(secret string) string {
	if strings.TrimSpace(secret) == "" {
		return "(not set)"
	}
	return "(set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
