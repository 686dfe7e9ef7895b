package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/clipforge/clipforge/internal/artifacts"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/database"
	"github.com/clipforge/clipforge/internal/dedup"
	"github.com/clipforge/clipforge/internal/discovery"
	internalhttp "github.com/clipforge/clipforge/internal/http"
	"github.com/clipforge/clipforge/internal/http/handlers"
	"github.com/clipforge/clipforge/internal/naming"
	"github.com/clipforge/clipforge/internal/observability"
	"github.com/clipforge/clipforge/internal/paths"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/queue"
	"github.com/clipforge/clipforge/internal/repository"
	"github.com/clipforge/clipforge/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clipforge server",
	Long: `Start the clipforge HTTP server and job workers.

The server provides:
- REST API for episodes, clips, and processing jobs
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyLoggingFlags(cmd.Root().PersistentFlags(), cfg)

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	// Registry and filesystem layers.
	episodes := repository.NewEpisodeRepository(db.DB)
	clips := repository.NewClipRepository(db.DB)
	logs := repository.NewProcessingLogRepository(db.DB)

	namer := naming.NewService(cfg.Naming.ShowMappings)
	resolver := paths.NewResolver(cfg.Storage.Root, cfg.Paths.MountAliases, episodes)
	store := artifacts.NewStore(namer, cfg.Storage.OutputPath(), cfg.Storage.TranscriptPath(), logger)
	cleanup := artifacts.NewCleanupManager(store, episodes, logger)
	index := dedup.NewIndex(episodes, logger)

	// Pipeline core. Collaborators start unconfigured; deployments wire
	// real engine adapters here.
	collab := pipeline.UnconfiguredCollaborators()
	runner := pipeline.NewRunner(episodes, clips, logs, store, resolver, collab, logger)
	weights := pipeline.StageWeightsFromConfig(cfg.Pipeline.StageWeights)
	orch := pipeline.NewOrchestrator(runner, episodes, clips, store, cleanup, namer, collab.Encoder, resolver, weights, logger)

	// Job queue, webhooks, and stuck detection.
	webhooks := queue.NewWebhookDispatcher(
		cfg.Webhook.Attempts,
		cfg.Webhook.Timeout,
		int64(cfg.Webhook.MaxBody),
		logger,
	)
	jobQueue := queue.NewJobQueue(queue.Options{
		MaxWorkers:       cfg.Pipeline.MaxWorkers,
		Capacity:         cfg.Pipeline.QueueCapacity,
		ProgressInterval: cfg.Pipeline.ProgressInterval,
		JobRetention:     cfg.Pipeline.JobRetention,
	}, webhooks, logger)
	queue.RegisterPipelineHandlers(jobQueue, orch)
	jobQueue.Start()

	stuckCtx, stopStuck := context.WithCancel(context.Background())
	defer stopStuck()
	stuck := queue.NewStuckDetector(
		jobQueue,
		queue.StageTimeoutsFromConfig(cfg.Pipeline.StageTimeouts),
		cfg.Pipeline.StuckCheckInterval,
		logger,
	)
	go stuck.Run(stuckCtx)

	// Library discovery with optional scheduled rescans.
	scanner := discovery.NewScanner(cfg.Storage.LibraryPath(), discovery.Options{
		Extensions:  cfg.Discovery.Extensions,
		MinFileSize: int64(cfg.Discovery.MinFileSize),
	}, episodes, index, namer, resolver, logger)

	cronRunner := cron.New(cron.WithSeconds())
	if _, err := scanner.Schedule(cronRunner, cfg.Discovery.ScanCron); err != nil {
		return fmt.Errorf("scheduling library scan: %w", err)
	}
	cronRunner.Start()

	// HTTP surface.
	server := internalhttp.NewServer(cfg.Server, logger, version.Version)
	api := server.API()
	handlers.NewEpisodeHandler(episodes, logs, scanner, cleanup).Register(api)
	handlers.NewJobHandler(jobQueue, episodes).Register(api)
	handlers.NewClipHandler(clips, episodes, orch, jobQueue).Register(api)
	handlers.NewHealthHandler(version.Version).WithQueue(jobQueue).WithDB(db.DB).Register(api)
	handlers.NewSystemHandler(cfg.Storage).Register(api)

	logger.Info("clipforge starting",
		slog.String("version", version.Short()),
		slog.String("address", cfg.Server.Address()),
		slog.String("library", cfg.Storage.LibraryPath()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := server.ListenAndServe(ctx)

	// Shutdown order: stop accepting work, drain workers, then flush
	// pending webhooks so terminal notifications are not lost.
	cronCtx := cronRunner.Stop()
	stopStuck()
	jobQueue.Stop()
	webhooks.Wait()

	select {
	case <-cronCtx.Done():
	case <-time.After(5 * time.Second):
		logger.Warn("timed out waiting for scheduled scans to finish")
	}

	if serveErr != nil {
		return fmt.Errorf("server: %w", serveErr)
	}
	logger.Info("clipforge stopped")
	return nil
}

// applyLoggingFlags overrides logging config with explicitly set CLI
// flags. Flag > env > config file > default.
func applyLoggingFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("log-level") {
		if v, err := flags.GetString("log-level"); err == nil && v != "" {
			cfg.Logging.Level = v
		}
	}
	if flags.Changed("log-format") {
		if v, err := flags.GetString("log-format"); err == nil && v != "" {
			cfg.Logging.Format = v
		}
	}
}
