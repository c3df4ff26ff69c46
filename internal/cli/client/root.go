package client

import (
	"github.com/cloo-solutions/labelrag/internal/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the labelrag client command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "labelrag",
		Short: "labelrag CLI - ask questions about drug-approval documents",
		Long: `labelrag talks to a labelragd server to index drug-approval documents and
answer questions grounded in them.

Environment variables:
  LABELRAG_API_KEY   API key, if the server requires one
  LABELRAG_API_URL   Server URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "Server URL (overrides env and config)")
	cli.BindEnv(rootCmd.PersistentFlags(), "api-key", envAPIKey)
	cli.BindEnv(rootCmd.PersistentFlags(), "api-url", envAPIURL)
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(AskCmd())
	rootCmd.AddCommand(SearchCmd())
	rootCmd.AddCommand(IngestCmd())
	rootCmd.AddCommand(JobCmd())
	rootCmd.AddCommand(StatsCmd())
	rootCmd.AddCommand(AuthCmd())

	return rootCmd
}
