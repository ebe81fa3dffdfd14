// Command sdm runs the species distribution pipeline once: fetch occurrence
// records, load environmental covariate rasters, build the
// presence/background sample table, fit the model, and project and render
// the occurrence-probability surface.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/sdm-pipeline/internal/adapter/httpadapter"
	"github.com/couchcryptid/sdm-pipeline/internal/adapter/obis"
	"github.com/couchcryptid/sdm-pipeline/internal/adapter/occstore"
	"github.com/couchcryptid/sdm-pipeline/internal/adapter/rastercat"
	"github.com/couchcryptid/sdm-pipeline/internal/config"
	"github.com/couchcryptid/sdm-pipeline/internal/domain"
	"github.com/couchcryptid/sdm-pipeline/internal/observability"
	"github.com/couchcryptid/sdm-pipeline/internal/pipeline"
	"github.com/couchcryptid/sdm-pipeline/internal/render"
	"github.com/couchcryptid/sdm-pipeline/internal/sdm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Occurrence source, optionally decorated with the SQLite cache
	// (feature-flagged via CACHE_PATH).
	var source pipeline.OccurrenceSource = obis.NewClient(cfg.OBISBaseURL, cfg.OBISTimeout, logger)
	if cfg.CachePath != "" {
		store, err := occstore.Open(cfg.CachePath)
		if err != nil {
			return err
		}
		defer store.Close()
		source = occstore.NewCachedFetcher(source, store, logger)
		logger.Info("occurrence cache enabled", "path", cfg.CachePath)
	}

	loader := rastercat.NewLoader(rastercat.LoaderConfig{
		Root:      cfg.CatalogDir,
		Variables: []string{cfg.SSTVariable, cfg.ChlVariable},
		Period:    cfg.Period,
		From:      cfg.DateStart,
		To:        cfg.DateEnd,
		Month:     cfg.TargetMonth,
	}, logger, metrics)

	fitter := sdm.NewFitter(sdm.FitConfig{
		Algorithms: []string{sdm.AlgGAM},
		NbRunEval:  cfg.NbRunEval,
		DataSplit:  cfg.DataSplit,
		Metric:     sdm.MetricROC,
		Seed:       cfg.RandomSeed,
		Options:    sdm.DefaultOptions(),
	}, logger, metrics)

	projector := pipeline.NewDiskProjector(cfg.OutputDir, cfg.ProjName, logger)

	p := pipeline.New(source, loader, fitter, projector, render.New(logger), pipeline.Params{
		Species:        cfg.Species,
		Month:          cfg.TargetMonth,
		BackgroundSize: cfg.BackgroundSize,
		Exclusion: domain.ExclusionRule{
			Enabled:     cfg.LatExclusionOn,
			MaxLatitude: cfg.LatExclusionMax,
			Reason:      cfg.LatExclusionReason,
		},
		Seed:     cfg.RandomSeed,
		PlotPath: cfg.PlotPath,
	}, logger, metrics)

	// Optional ops surface while the run is in flight.
	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	runErr := p.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	return runErr
}
