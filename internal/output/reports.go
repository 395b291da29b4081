package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fusionlab/fusionlab/internal/ailink/prompt"
	"github.com/fusionlab/fusionlab/internal/counter"
	"github.com/fusionlab/fusionlab/internal/fusion"
	"github.com/fusionlab/fusionlab/internal/store"
)

// PolicyJSON is the JSON shape of one capability policy.
type PolicyJSON struct {
	Capability        string `json:"capability"`
	RequestsPerWindow int    `json:"requests_per_window"`
	Window            string `json:"window"`
	MaxRetries        int    `json:"max_retries"`
	BaseDelay         string `json:"base_delay"`
}

// PolicyDocument lists the effective budget and retry policy per capability.
func PolicyDocument(settings map[fusion.Capability]fusion.Settings, backend string) Document {
	doc := Document{
		Title:  "Capability policies",
		Header: []string{"Capability", "Requests", "Window", "Max attempts", "Base delay"},
		Footer: []string{"backend", backend, "", "", ""},
	}
	values := make([]PolicyJSON, 0, len(fusion.Capabilities))
	for _, c := range fusion.Capabilities {
		s := settings[c]
		doc.Rows = append(doc.Rows, []string{
			string(c),
			strconv.Itoa(s.RequestsPerWindow),
			s.Window.String(),
			strconv.Itoa(s.MaxRetries),
			s.BaseDelay.String(),
		})
		values = append(values, PolicyJSON{
			Capability:        string(c),
			RequestsPerWindow: s.RequestsPerWindow,
			Window:            s.Window.String(),
			MaxRetries:        s.MaxRetries,
			BaseDelay:         s.BaseDelay.String(),
		})
	}
	doc.Value = map[string]any{"backend": backend, "policies": values}
	return doc
}

// WindowJSON is the JSON shape of one persisted rate limit window.
type WindowJSON struct {
	Class        string    `json:"class"`
	ClientID     string    `json:"client_id"`
	RequestCount int       `json:"request_count"`
	ResetAt      time.Time `json:"reset_at"`
}

// WindowsDocument lists persisted rate limit windows.
func WindowsDocument(entries []store.RateLimitEntry) Document {
	doc := Document{
		Title:  "Rate limit windows",
		Header: []string{"Class", "Client", "Count", "Resets at"},
		Empty:  "(no stored rate limit windows)",
	}
	values := make([]WindowJSON, 0, len(entries))
	for _, e := range entries {
		doc.Rows = append(doc.Rows, []string{
			e.Class,
			e.ClientID,
			strconv.Itoa(e.RequestCount),
			e.ResetAt.UTC().Format(time.RFC3339),
		})
		values = append(values, WindowJSON(e))
	}
	doc.Value = values
	return doc
}

// ResetDocument summarizes a rate limit reset.
func ResetDocument(matched int, deleted int64, dryRun bool) Document {
	summary := fmt.Sprintf("Deleted %d/%d rate limit window(s)", deleted, matched)
	if dryRun {
		summary = fmt.Sprintf("Would delete %d rate limit window(s)", matched)
	}
	return Document{
		Header: []string{"Result"},
		Rows:   [][]string{{summary}},
		Value: map[string]any{
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		},
	}
}

// CountDocument shows the fusion counter.
func CountDocument(snap counter.Snapshot) Document {
	updated := "never"
	if !snap.LastUpdated.IsZero() {
		updated = snap.LastUpdated.UTC().Format(time.RFC3339)
	}
	return Document{
		Header: []string{"Fusions", "Last updated"},
		Rows:   [][]string{{strconv.FormatInt(snap.Count, 10), updated}},
		Value:  map[string]any{"count": snap.Count, "lastUpdated": snap.LastUpdated},
	}
}

// SuggestionDocument shows a suggested pair.
func SuggestionDocument(s *fusion.Suggestion) Document {
	return Document{
		Header: []string{"Item 1", "Item 2"},
		Rows:   [][]string{{s.Item1, s.Item2}},
		Value:  map[string]string{"item1": s.Item1, "item2": s.Item2},
	}
}

// ChecksDocument lists self-check results in name order.
func ChecksDocument(status string, names []string, checks map[string]string) Document {
	doc := Document{
		Title:  "Health",
		Header: []string{"Check", "Result"},
		Footer: []string{"overall", status},
		Value:  map[string]any{"status": status, "checks": checks},
	}
	for _, name := range names {
		doc.Rows = append(doc.Rows, []string{name, checks[name]})
	}
	return doc
}

// PromptsDocument lists the active prompt templates and where each came from.
func PromptsDocument(prompts []*prompt.Prompt) Document {
	doc := Document{
		Title:  "Prompts",
		Header: []string{"Slug", "Capability", "Version", "Source", "Description"},
		Empty:  "No prompts loaded.",
	}
	values := make([]prompt.Config, 0, len(prompts))
	for _, p := range prompts {
		if p == nil {
			continue
		}
		doc.Rows = append(doc.Rows, []string{
			p.Config.Slug,
			p.Config.Capability,
			p.Config.Version,
			p.Source,
			p.Config.Description,
		})
		values = append(values, p.Config)
	}
	doc.Value = values
	return doc
}
