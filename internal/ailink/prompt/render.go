package prompt

import (
	"fmt"
	"strings"
)

// Render fills the template. Every required variable must be present and non-blank.
func (p *Prompt) Render(vars map[string]string) (string, error) {
	if p == nil || p.tmpl == nil {
		return "", fmt.Errorf("prompt not loaded")
	}

	data := make(map[string]string, len(vars))
	for _, name := range p.Config.Input.OptionalVariables {
		data[name] = ""
	}
	for name, value := range vars {
		data[name] = value
	}
	for _, name := range p.Config.Input.RequiredVariables {
		if strings.TrimSpace(data[name]) == "" {
			return "", fmt.Errorf("prompt %s: missing variable %q", p.Config.Slug, name)
		}
	}

	var out strings.Builder
	if err := p.tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", p.Config.Slug, err)
	}
	return out.String(), nil
}
