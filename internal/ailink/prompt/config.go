package prompt

import "text/template"

// Config describes a prompt definition loaded from YAML frontmatter.
type Config struct {
	Slug        string    `yaml:"slug" json:"slug"`
	Name        string    `yaml:"name,omitempty" json:"name,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string    `yaml:"version,omitempty" json:"version,omitempty"`
	Capability  string    `yaml:"capability,omitempty" json:"capability,omitempty"`
	Input       InputSpec `yaml:"input,omitempty" json:"input,omitempty"`

	// Template is the prompt text; when empty the markdown body is used.
	Template string `yaml:"template,omitempty" json:"template,omitempty"`

	// ResponseFields lists the string properties a structured reply must carry.
	ResponseFields []string `yaml:"response_fields,omitempty" json:"response_fields,omitempty"`
}

// InputSpec defines prompt input requirements.
type InputSpec struct {
	RequiredVariables []string `yaml:"required_variables,omitempty" json:"required_variables,omitempty"`
	OptionalVariables []string `yaml:"optional_variables,omitempty" json:"optional_variables,omitempty"`
}

// Prompt wraps a validated prompt configuration with its source and parsed template.
type Prompt struct {
	Config Config
	Source string

	tmpl *template.Template
}
