package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the chunks closest to a query",
		Long:  "Runs retrieval only and prints the top-k chunks with their similarity scores.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := map[string]interface{}{"query": strings.Join(args, " ")}
			if k > 0 {
				req["k"] = k
			}

			var result SearchResult
			if err := api.Post(cmd.Context(), "/search", req, &result); err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, result)
			}
			if len(result.Results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			fmt.Fprintf(out, "Found %d results:\n\n", len(result.Results))
			printChunks(out, result.Results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of chunks to return (server default when 0)")

	return cmd
}
