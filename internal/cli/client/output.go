package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func wantJSON(cmd *cobra.Command) bool {
	outputJSON, _ := cmd.Flags().GetBool("output")
	return outputJSON
}

func printJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func printChunks(out io.Writer, chunks []Chunk) {
	for i, c := range chunks {
		fmt.Fprintf(out, "%d. %s#%d (%.3f)\n", i+1, c.SourceID, c.SequenceIndex, c.Score)
		fmt.Fprintf(out, "   %s\n", truncate(oneLine(c.Text), 100))
		if i < len(chunks)-1 {
			fmt.Fprintln(out, strings.Repeat("-", 40))
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
