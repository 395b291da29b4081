package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fusionlab/fusionlab/internal/output"
)

// addOutputFlags registers --output-format and --out on cmd.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-format", "table", "output format: table, markdown or json")
	cmd.Flags().String("out", "", "write output to a file instead of stdout")
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

// openSink returns stdout for "" or "-", otherwise creates path and its parents.
func openSink(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}

// render writes doc in the format and destination selected by the output flags.
func render(cmd *cobra.Command, doc output.Document) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	path, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	w, closeFn, err := openSink(cmd, path)
	if err != nil {
		return err
	}
	if err := output.Render(w, format, doc); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}
