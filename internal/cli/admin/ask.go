package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/labelrag/internal/config"
	"github.com/spf13/cobra"
)

// AskCmd returns the ask command. It answers from the configured store in
// this process; seeding flags allow a one-shot run against fresh documents.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question locally",
		Long: `Answer a question from the configured index without running the server.

  labelragd ask --dir ./labels "What is Drug A indicated for?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	addSeedFlags(cmd)

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer initTelemetry(cfg)()

	stack, err := BuildStack(ctx, cfg, StackOptions{NeedGenerator: true})
	if err != nil {
		return err
	}
	defer stack.Close()

	if seeds := seedSources(cmd, stack); len(seeds) > 0 {
		report, err := stack.Ingestion.IngestSources(ctx, seeds...)
		if err != nil {
			return err
		}
		logReport("ingest", report)
	}

	answer, err := stack.Orchestrator.AnswerWithSources(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Text)
	for _, s := range answer.Sources {
		fmt.Fprintf(out, "  [%s#%d %.3f]\n", s.Chunk.SourceID, s.Chunk.SequenceIndex, s.Score)
	}
	return nil
}
