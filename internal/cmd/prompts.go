package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fusionlab/fusionlab/internal/ailink/prompt"
	"github.com/fusionlab/fusionlab/internal/output"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List the prompt templates in use",
	Long: `List the built-in prompt templates, with any replacements loaded from
ailink.prompts_dir applied on top.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(commandContext(cmd))
		if err != nil {
			return err
		}
		registry, err := prompt.RegistryWithOverrides(cfg.AILink.PromptsDir)
		if err != nil {
			return err
		}
		return render(cmd, output.PromptsDocument(registry.List()))
	},
}

func init() {
	rootCmd.AddCommand(promptsCmd)
	addOutputFlags(promptsCmd)
}
