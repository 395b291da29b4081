package cmd

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fusionlab/fusionlab/internal/ailink/driver"
	"github.com/fusionlab/fusionlab/internal/config"
	"github.com/fusionlab/fusionlab/internal/observability"
	"github.com/fusionlab/fusionlab/internal/output"
)

var (
	doctorInitForce   bool
	doctorInitPath    string
	doctorConnTimeout time.Duration
	doctorConnLive    bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Report configuration paths and validity without contacting the provider.
Use "doctor connectivity" to test the upstream endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		checks := map[string]string{}

		configFile := config.ConfigFileUsed()
		if configFile == "" {
			checks["config_file"] = "not found, using defaults"
		} else {
			checks["config_file"] = configFile
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			checks["config_valid"] = err.Error()
			return renderDoctor(cmd, "unhealthy", checks)
		}
		checks["config_valid"] = "ok"
		checks["credential"] = setOrNot(cfg.AILink.APIKey)
		checks["rate_limit_backend"] = backend(cfg)
		checks["counter_driver"] = cfg.Counter.Driver

		status := "healthy"
		if !cfg.AILink.HasCredential() {
			status = "degraded"
		}
		if cfg.UsesStore() {
			db, err := openStore(ctx, cfg)
			if err != nil {
				checks["store"] = err.Error()
				status = "unhealthy"
			} else {
				checks["store"] = db.Driver() + " ok"
				_ = db.Close()
			}
		}
		return renderDoctor(cmd, status, checks)
	},
}

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := strings.TrimSpace(doctorInitPath)
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if path == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(path); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		data, err := defaultConfigYAML()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", path))
		return nil
	},
}

var doctorConnectivityCmd = &cobra.Command{
	Use:   "connectivity",
	Short: "Diagnose provider reachability and auth",
	Long: `Resolve and dial the configured provider endpoint. With --live, also send
one short text prompt, which spends a request against the provider quota.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		checks := map[string]string{"credential": setOrNot(cfg.AILink.APIKey)}
		status := "healthy"

		host, port, err := endpointHostPort(cfg.AILink.BaseURL)
		if err != nil {
			checks["endpoint"] = err.Error()
			return renderDoctor(cmd, "unhealthy", checks)
		}
		checks["endpoint"] = net.JoinHostPort(host, port)

		dialCtx, cancel := context.WithTimeout(ctx, doctorConnTimeout)
		defer cancel()

		addrs, err := net.DefaultResolver.LookupHost(dialCtx, host)
		if err != nil {
			checks["dns"] = err.Error()
			return renderDoctor(cmd, "unhealthy", checks)
		}
		checks["dns"] = strings.Join(addrs, ", ")

		var dialer net.Dialer
		start := time.Now()
		conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(host, port))
		if err != nil {
			checks["tcp"] = err.Error()
			return renderDoctor(cmd, "unhealthy", checks)
		}
		_ = conn.Close()
		checks["tcp"] = fmt.Sprintf("ok (%s)", time.Since(start).Round(time.Millisecond))

		if doctorConnLive {
			if !cfg.AILink.HasCredential() {
				checks["live"] = "skipped: no credential"
				status = "degraded"
			} else {
				client := newGeminiClient(cfg, observability.CLILogger)
				liveCtx, liveCancel := context.WithTimeout(ctx, doctorConnTimeout)
				defer liveCancel()
				if _, err := client.GenerateText(liveCtx, "Reply with the single word: ok", driver.Policy{MaxRetries: 1}); err != nil {
					checks["live"] = err.Error()
					status = "unhealthy"
				} else {
					checks["live"] = "ok"
				}
			}
		}
		return renderDoctor(cmd, status, checks)
	},
}

func renderDoctor(cmd *cobra.Command, status string, checks map[string]string) error {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return render(cmd, output.ChecksDocument(status, names, checks))
}

func endpointHostPort(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("invalid base url: %w", err)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("base url has no host: %q", raw)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return u.Hostname(), port, nil
}

// defaultConfigYAML renders every built-in default as a config file.
func defaultConfigYAML() ([]byte, error) {
	v := viper.New()
	config.SetDefaults(v)
	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	return data, nil
}

func init() {
	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite an existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitPath, "path", "", "write to this path instead of the default config location")

	doctorConnectivityCmd.Flags().DurationVar(&doctorConnTimeout, "timeout", 10*time.Second, "timeout for each network step")
	doctorConnectivityCmd.Flags().BoolVar(&doctorConnLive, "live", false, "send one text prompt to verify the credential")

	addOutputFlags(doctorCmd)
	addOutputFlags(doctorConnectivityCmd)

	doctorCmd.AddCommand(doctorInitCmd, doctorConnectivityCmd)
	rootCmd.AddCommand(doctorCmd)
}
