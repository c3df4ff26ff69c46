package client

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// JobCmd creates the job command.
func JobCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Show the status of an ingestion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var job *Job
			if wait {
				job, err = waitForJob(cmd, api, args[0], jobPollInterval)
			} else {
				job = &Job{}
				err = api.Get(cmd.Context(), "/ingest/"+args[0], job)
			}
			if err != nil {
				return err
			}

			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), job)
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job finishes")

	return cmd
}

func waitForJob(cmd *cobra.Command, api *APIClient, id string, every time.Duration) (*Job, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		var job Job
		if err := api.Get(cmd.Context(), "/ingest/"+id, &job); err != nil {
			return nil, fmt.Errorf("failed to get job %s: %w", id, err)
		}
		if job.Done() {
			return &job, nil
		}

		select {
		case <-cmd.Context().Done():
			return nil, cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

func printJob(out io.Writer, job *Job) {
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "URL:      %s\n", job.URL)
	fmt.Fprintf(out, "Label:    %s\n", job.Label)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	if job.Retries > 0 {
		fmt.Fprintf(out, "Retries:  %d\n", job.Retries)
	}
	if job.Status == "completed" {
		fmt.Fprintf(out, "Chunks:   %d\n", job.ChunkCount)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", job.Error)
	}
	if job.ArchiveURL != "" {
		fmt.Fprintf(out, "Original: %s\n", job.ArchiveURL)
	}
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index size and vector dimension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			var stats Stats
			if err := api.Get(cmd.Context(), "/stats", &stats); err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chunks:    %d\nDimension: %d\n", stats.Chunks, stats.Dimension)
			return nil
		},
	}
}
