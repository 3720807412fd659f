package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cesa-global/disaster-reports-etl/internal/adapter/cesa"
	"github.com/cesa-global/disaster-reports-etl/internal/adapter/hdx"
	httpadapter "github.com/cesa-global/disaster-reports-etl/internal/adapter/http"
	"github.com/cesa-global/disaster-reports-etl/internal/config"
	"github.com/cesa-global/disaster-reports-etl/internal/gis"
	"github.com/cesa-global/disaster-reports-etl/internal/observability"
	"github.com/cesa-global/disaster-reports-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	source := buildSource(cfg, logger)

	workDir := cfg.WorkDir
	if workDir == "" {
		tmp, err := os.MkdirTemp("", "cesa-etl-")
		if err != nil {
			logger.Error("failed to create work dir", "error", err)
			os.Exit(1)
		}
		defer os.RemoveAll(tmp)
		workDir = tmp
	}

	var publisher pipeline.Publisher
	if cfg.HDXDryRun {
		logger.Info("dry run, datasets will not be published")
		publisher = &pipeline.DryRunPublisher{Logger: logger}
	} else {
		publisher = hdx.NewClient(cfg.HDXBaseURL, cfg.HDXAPIKey, cfg.UserAgent,
			cfg.RequestTimeout, cfg.RequestRetries, logger)
	}

	opts := pipeline.DatasetOptions{
		Maintainer:      cfg.DatasetMaintainer,
		Organization:    cfg.DatasetOrganization,
		UpdateFrequency: cfg.UpdateFrequency,
		Notes:           cfg.Notes,
		FixedTags:       cfg.FixedTags,
		Attribution:     cfg.Attribution,
	}

	p := pipeline.New(
		pipeline.NewScraper(source, logger, metrics),
		pipeline.NewPartitioner(logger, metrics),
		pipeline.NewAssembler(gis.NewPackager(workDir, logger), opts, logger, metrics),
		publisher,
		logger,
		metrics,
		cfg.RunInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunOnce() {
		if err := p.RunOnce(ctx); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// buildSource wires the upstream source: live API by default, optionally
// recording responses to disk, or replaying a previous recording offline.
func buildSource(cfg *config.Config, logger *slog.Logger) pipeline.ReportSource {
	if cfg.UseSaved {
		logger.Info("replaying saved responses", "dir", cfg.SavedDataDir)
		return cesa.NewReplaySource(cfg.SavedDataDir, logger)
	}

	client := cesa.NewClient(cfg.CESABaseURL, cfg.UserAgent, cfg.RequestTimeout, cfg.RequestRetries, logger)
	if cfg.SaveResponses {
		logger.Info("saving upstream responses", "dir", cfg.SavedDataDir)
		return cesa.NewRecordingSource(client, cfg.SavedDataDir, logger)
	}
	return client
}
