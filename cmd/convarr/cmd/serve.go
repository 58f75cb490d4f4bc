package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/convarr/convarr/internal/config"
	"github.com/convarr/convarr/internal/convert"
	"github.com/convarr/convarr/internal/engine"
	"github.com/convarr/convarr/internal/format"
	"github.com/convarr/convarr/internal/gate"
	internalhttp "github.com/convarr/convarr/internal/http"
	"github.com/convarr/convarr/internal/proc"
	"github.com/convarr/convarr/internal/resource"
	"github.com/convarr/convarr/internal/startup"
	"github.com/convarr/convarr/internal/storage"
	"github.com/convarr/convarr/internal/version"
)

// jobEvictInterval is how often finished jobs past their retention are
// dropped from the registry.
const jobEvictInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the convarr server",
	Long: `Start the convarr HTTP server and API.

The server provides:
- REST API for synchronous conversions and asynchronous jobs
- Format capability endpoints
- Health check endpoint with engine availability
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags. Like the root flags, these are applied only when
	// explicitly set so the flag > env > config > default order holds.
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8585, "Port to listen on")
	serveCmd.Flags().String("output-dir", "", "Default output directory (empty: next to source)")
	serveCmd.Flags().Int("max-concurrent", 0, "Max simultaneous conversions (0: min(4, CPUs))")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServeFlags(cmd, cfg)

	logger := slog.Default()

	// Clean up orphaned temp files from previous runs before anything can
	// create new ones.
	removed, err := startup.CleanupOrphanedTempFiles(logger, cfg.Cleanup.TempDir, startup.DefaultCleanupAge)
	if err != nil {
		logger.Warn("failed to clean orphaned temp files",
			slog.String("error", err.Error()),
		)
	} else if removed > 0 {
		logger.Info("cleaned orphaned temp files on startup",
			slog.Int("removed_count", removed),
		)
	}

	g, err := gate.New(cfg.Converter.EffectiveMaxConcurrent())
	if err != nil {
		return fmt.Errorf("initializing concurrency gate: %w", err)
	}

	monitor := resource.NewMonitor(uint64(cfg.Converter.MinFreeDisk.Bytes()), logger)
	resolver := storage.NewResolver(cfg.Converter.OutputDir, logger)
	supervisor := proc.NewSupervisor(logger)

	engines := engine.NewSet(engine.BinaryPaths{
		FFmpeg:       cfg.Engines.FFmpegPath,
		EbookConvert: cfg.Engines.EbookConvertPath,
		RSVGConvert:  cfg.Engines.RSVGConvertPath,
	}, supervisor, cfg.Cleanup.TempDir)
	engines.LogAvailability(logger)

	// Cancelling this context tears down every in-flight conversion.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	timeouts := make(map[format.Category]time.Duration, len(format.Categories))
	for _, cat := range format.Categories {
		timeouts[cat] = cfg.Converter.Timeout(string(cat))
	}

	orchestrator := convert.New(convert.Options{
		Gate:        g,
		Monitor:     monitor,
		Resolver:    resolver,
		Engines:     engines,
		Timeouts:    timeouts,
		BaseContext: ctx,
		Logger:      logger,
	})

	sweeper, err := startup.NewSweeper(cfg.Cleanup.Schedule, cfg.Cleanup.TempDir, startup.DefaultCleanupAge, logger)
	if err != nil {
		return fmt.Errorf("configuring cleanup schedule: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Converter.JobRetention > 0 {
		go evictFinishedJobs(ctx, orchestrator.Registry(), cfg.Converter.JobRetention, logger)
	}

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)
	server.RegisterRoutes(orchestrator, monitor, engines, g, version.Version)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	logger.Info("starting convarr server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.Int("max_concurrent", g.Capacity()),
		slog.String("version", version.Version),
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-errChan:
		return err
	}

	// Drain HTTP first so no new jobs arrive, then cancel what is running.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", slog.String("error", err.Error()))
	}
	cancel()

	return nil
}

// applyServeFlags overrides loaded config with explicitly provided flags.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("output-dir") {
		cfg.Converter.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("max-concurrent") {
		cfg.Converter.MaxConcurrent, _ = flags.GetInt("max-concurrent")
	}
}

// evictFinishedJobs periodically drops finished jobs older than the
// retention window.
func evictFinishedJobs(ctx context.Context, registry *convert.Registry, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(jobEvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Evict(retention); n > 0 {
				logger.Debug("evicted finished jobs",
					slog.Int("count", n),
					slog.String("retention", retention.String()),
				)
			}
		}
	}
}
