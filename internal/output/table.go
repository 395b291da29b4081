package output

import (
	"encoding/json"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newWriter(doc Document) table.Writer {
	t := table.NewWriter()
	if doc.Title != "" {
		t.SetTitle(doc.Title)
	}
	if len(doc.Header) > 0 {
		t.AppendHeader(toRow(doc.Header))
	}
	for _, row := range doc.Rows {
		t.AppendRow(toRow(row))
	}
	if len(doc.Footer) > 0 {
		t.AppendFooter(toRow(doc.Footer))
	}
	return t
}

func renderTable(doc Document) string {
	if len(doc.Rows) == 0 && doc.Empty != "" {
		return doc.Empty
	}
	t := newWriter(doc)
	t.SetStyle(table.StyleRounded)
	return t.Render()
}

func renderMarkdown(doc Document) string {
	if len(doc.Rows) == 0 && doc.Empty != "" {
		return "_" + doc.Empty + "_"
	}
	var sb strings.Builder
	if doc.Title != "" {
		sb.WriteString("## " + doc.Title + "\n\n")
		doc.Title = ""
	}
	sb.WriteString(newWriter(doc).RenderMarkdown())
	return sb.String()
}

func renderJSON(doc Document) (string, error) {
	value := doc.Value
	if value == nil {
		value = doc.Rows
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, cell := range cells {
		row[i] = cell
	}
	return row
}
