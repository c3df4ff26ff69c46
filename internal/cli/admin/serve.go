package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/labelrag/internal/api/handlers"
	"github.com/cloo-solutions/labelrag/internal/api/middleware"
	"github.com/cloo-solutions/labelrag/internal/cli"
	"github.com/cloo-solutions/labelrag/internal/config"
	"github.com/cloo-solutions/labelrag/internal/jobs"
	"github.com/cloo-solutions/labelrag/internal/server"
	"github.com/cloo-solutions/labelrag/internal/service"
	"github.com/cloo-solutions/labelrag/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the labelrag API server.

Documents given with --url and --dir are ingested before the listener starts,
so the first request already sees the complete index.`,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides LABELRAG_PORT)")
	cli.BindEnv(cmd.Flags(), "port", "LABELRAG_PORT")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not process queued ingestion jobs in this process")
	addSeedFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry(cfg)
	defer shutdownTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	stack, err := BuildStack(ctx, cfg, StackOptions{Migrate: !noMigrate, NeedGenerator: true})
	if err != nil {
		return err
	}
	defer stack.Close()

	if seeds := seedSources(cmd, stack); len(seeds) > 0 {
		report, err := stack.Ingestion.IngestSources(ctx, seeds...)
		if err != nil {
			return fmt.Errorf("startup ingestion failed: %w", err)
		}
		logReport("startup ingestion", report)
	}

	var (
		worker *jobs.Worker
		queue  handlers.JobQueue = handlers.NoOpJobQueue{}
		notify handlers.JobNotifier
	)
	if stack.Jobs != nil {
		queue = service.NewJobService(stack.Jobs)
		noWorker, _ := cmd.Flags().GetBool("no-worker")
		if !noWorker {
			processor := jobs.NewIngestionWorker(stack.Jobs, stack.PageSource(), stack.Ingestion)
			worker = jobs.NewWorker(processor, cfg.WorkerPollInterval)
			go worker.Start(ctx)
			notify = worker
		}
	}

	var archive handlers.ArchiveLinker
	if stack.Archive != nil {
		archive = stack.Archive
	}

	var auth middleware.AuthValidator
	if cfg.APIKey != "" {
		auth = middleware.NewStaticKey(cfg.APIKey)
	} else {
		log.Println("LABELRAG_API_KEY not set, API is open")
	}

	router := server.NewRouter(server.RouterConfig{
		AuthValidator: auth,
		QueryHandler:  handlers.NewQueryHandler(stack.Orchestrator, stack.Retriever, stack.Index),
		IngestHandler: handlers.NewIngestHandler(stack.Ingestion, queue, notify, archive),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutting down...")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// initTelemetry starts Sentry when a DSN is configured. Failures only disable tracing.
func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}
