package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fusionlab/fusionlab/internal/output"
)

var suggestClient string

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask the text model for two concepts to fuse",
	Long: `Run the suggestion capability once, including its rate check, and print
the two proposed concepts. Requires the generation credential.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		comps, err := setupComponents(ctx)
		if err != nil {
			return err
		}
		defer comps.Close() // nolint:errcheck // best-effort cleanup

		suggestion, err := comps.service.SuggestIdeas(ctx, suggestClient)
		if err != nil {
			return err
		}
		return render(cmd, output.SuggestionDocument(suggestion))
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().StringVar(&suggestClient, "client", "cli", "client identifier charged against the suggestion budget")
	addOutputFlags(suggestCmd)
}
