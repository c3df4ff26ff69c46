package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// IngestCmd creates the ingest command. With --file it sends text directly;
// otherwise it queues the URL for the server's ingestion worker.
func IngestCmd() *cobra.Command {
	var (
		label string
		file  string
		wait  bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [url]",
		Short: "Add a document to the index",
		Long: `Queue a drug-approval page for background ingestion, or upload a local text file.

  labelrag ingest https://example.com/approvals/nda-1 --label NDA-1 --wait
  labelrag ingest --file label.txt --label NDA-1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if file != "" {
				text, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				id := label
				if id == "" {
					id = filepath.Base(file)
				}
				var result DocumentResult
				if err := api.Post(cmd.Context(), "/documents", map[string]string{"id": id, "text": string(text)}, &result); err != nil {
					return fmt.Errorf("ingest failed: %w", err)
				}
				if wantJSON(cmd) {
					return printJSON(out, result)
				}
				fmt.Fprintf(out, "Indexed %s: %d chunks added, %d skipped\n", result.ID, result.Added, result.Skipped)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("a URL or --file is required")
			}

			var job Job
			if err := api.Post(cmd.Context(), "/ingest", map[string]string{"url": args[0], "label": label}, &job); err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}

			if wait {
				finished, err := waitForJob(cmd, api, job.ID, jobPollInterval)
				if err != nil {
					return err
				}
				job = *finished
			}

			if wantJSON(cmd) {
				return printJSON(out, job)
			}
			printJob(out, &job)
			if job.Status == "failed" {
				return fmt.Errorf("job %s failed", job.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "Source id for the document (defaults to the URL or file name)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Ingest a local text file instead of a URL")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the queued job finishes")

	return cmd
}

var jobPollInterval = 2 * time.Second
