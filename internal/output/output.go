// Package output renders CLI results as tables, markdown or JSON.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// Document is one CLI result. Table and markdown use the rows; JSON encodes Value.
type Document struct {
	Title  string
	Header []string
	Rows   [][]string
	Footer []string
	Empty  string
	Value  any
}

// Render writes doc to w in format.
func Render(w io.Writer, format Format, doc Document) error {
	var (
		rendered string
		err      error
	)
	switch format {
	case FormatJSON:
		rendered, err = renderJSON(doc)
	case FormatMarkdown:
		rendered = renderMarkdown(doc)
	default:
		rendered = renderTable(doc)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}
