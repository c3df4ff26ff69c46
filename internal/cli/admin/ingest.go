package admin

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/labelrag/internal/config"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command, which indexes documents directly
// into the configured store without going through the API.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into the index",
		Long: `Fetch and index documents in this process.

  labelragd ingest --url NDA-1=https://example.com/approvals/nda-1 --dir ./labels

Without LABELRAG_DATABASE_URL the index lives only as long as the command,
which is useful for checking that pages resolve to PDFs.`,
		RunE: runIngest,
	}

	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")
	addSeedFlags(cmd)

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer initTelemetry(cfg)()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	stack, err := BuildStack(ctx, cfg, StackOptions{Migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer stack.Close()

	sources := seedSources(cmd, stack)
	if len(sources) == 0 {
		return fmt.Errorf("nothing to ingest: pass --url or --dir")
	}

	report, err := stack.Ingestion.IngestSources(ctx, sources...)
	if err != nil {
		return err
	}
	logReport("ingest", report)

	fmt.Fprintf(cmd.OutOrStdout(), "%d documents indexed, %d chunks added, %d skipped, %d failed\n",
		report.Documents, report.Chunks, report.Skipped, len(report.Failures))
	if len(report.Failures) > 0 && report.Documents == 0 {
		return fmt.Errorf("no document could be ingested")
	}
	return nil
}
