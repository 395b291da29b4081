package cmd

import (
	"fmt"
	"io"
	goruntime "runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, Go and Crucible details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		writeVersion(cmd.OutOrStdout(), extended)
		return nil
	},
}

func writeVersion(w io.Writer, full bool) {
	identity := GetAppIdentity()
	version := versionInfo.Version
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(w, "%s %s\n", identity.BinaryName, version)
	if !full {
		return
	}

	fmt.Fprintf(w, "Commit: %s\n", orUnknown(versionInfo.Commit))
	fmt.Fprintf(w, "Built: %s\n", orUnknown(versionInfo.BuildDate))
	fmt.Fprintf(w, "Go: %s\n", goruntime.Version())
	fmt.Fprintf(w, "Capabilities: image, description, suggestion\n\n")

	deps := crucible.GetVersion()
	fmt.Fprintf(w, "Gofulmen: %s\n", deps.Gofulmen)
	fmt.Fprintf(w, "Crucible: %s\n", deps.Crucible)
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
