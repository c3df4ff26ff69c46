package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var result AskResult
			question := strings.Join(args, " ")
			if err := api.Post(cmd.Context(), "/ask", map[string]string{"question": question}, &result); err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, result)
			}

			fmt.Fprintln(out, result.Answer)
			if result.Degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: no documents matched, answer was generated without context")
			}
			if showSources && len(result.Sources) > 0 {
				fmt.Fprintf(out, "\nSources:\n")
				printChunks(out, result.Sources)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print the chunks the answer was grounded on")

	return cmd
}
