package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/rtestimate/internal/config"
	"github.com/rewired-gh/rtestimate/internal/logger"
	"github.com/rewired-gh/rtestimate/internal/models"
	"github.com/rewired-gh/rtestimate/internal/monitor"
	"github.com/rewired-gh/rtestimate/internal/pipeline"
	"github.com/rewired-gh/rtestimate/internal/report"
	"github.com/rewired-gh/rtestimate/internal/rt"
	"github.com/rewired-gh/rtestimate/internal/storage"
	"github.com/rewired-gh/rtestimate/internal/telegram"
	"github.com/rewired-gh/rtestimate/internal/thl"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file (empty for defaults and environment only)")
	region     = flag.String("region", "", "Override source.region")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *region != "" {
		cfg.Source.Region = *region
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	estimator, err := rt.NewEstimator(cfg.EstimatorConfig())
	if err != nil {
		logger.Fatal("Failed to initialize estimator: %v", err)
	}

	// Initialize storage
	store, err := storage.New(cfg.Storage.DBPath, cfg.Storage.MaxRuns)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	// Initialize monitor
	mon := monitor.New(store, cfg.Monitor.RevisionThreshold)

	// Initialize THL client
	thlClient := thl.NewClient(cfg.Source.APIURL, cfg.Source.Timeout, thl.ClientConfig{
		MaxRetries:     cfg.Source.MaxRetries,
		RetryDelayBase: cfg.Source.RetryDelayBase,
		SkipLastDays:   cfg.Source.SkipLastDays,
	})

	// Initialize Telegram client
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	// Cancel the fetch on shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cancelling run...")
		cancel()
	}()

	if err := run(ctx, thlClient, estimator, mon, store, telegramClient, cfg, time.Now()); err != nil {
		if telegramClient != nil {
			if sendErr := telegramClient.SendError(cfg.Source.Region, err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		logger.Error("Run failed: %v", err)
		// Deferred close does not run after os.Exit
		_ = store.Close()
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	thlClient *thl.Client,
	estimator *rt.Estimator,
	mon *monitor.Monitor,
	store *storage.Storage,
	telegramClient *telegram.Client,
	cfg *config.Config,
	runAt time.Time,
) error {
	logger.Info("Starting Rt estimation for %s", cfg.Source.Region)

	cases, err := thlClient.FetchCases(ctx, cfg.Source.Region)
	if err != nil {
		return fmt.Errorf("failed to fetch cases: %w", err)
	}
	if cfg.Source.FillGaps {
		filled := cases.FillGaps()
		if added := len(filled) - len(cases); added > 0 {
			logger.Warn("Filled %d missing days with zero counts", added)
		}
		cases = filled
	}

	res, err := pipeline.Run(cases, estimator)
	if err != nil {
		return err
	}

	// Write CSV artifacts
	if cfg.Output.Enabled {
		artifacts, err := report.NewWriter(cfg.Output.Dir).Write(runAt, res.Original, res.Smoothed, res.Estimates)
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logger.Info("Wrote %s and %s", artifacts.CasesPath, artifacts.RtPath)
	}

	// Compare with the previous run before it is superseded
	rev, err := mon.Compare(cfg.Source.Region, res.Estimates)
	if err != nil {
		logger.Warn("Failed to compare with previous run: %v", err)
	} else if rev != nil && rev.Significant {
		logger.Info("Significant revision against run %s: max shift %+.2f on %s, verdict %s -> %s",
			rev.PreviousRunID, rev.MaxShift, rev.MaxShiftDate.Format(time.DateOnly), rev.PreviousVerdict, rev.Verdict)
	}

	// Persist the run
	r := models.NewRun(cfg.Source.Region, runAt, res.Estimates)
	if err := store.SaveRun(r, res.Original, res.Smoothed, res.Estimates); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	logger.Debug("Saved run %s", r.ID)
	if err := store.RotateRuns(); err != nil {
		logger.Warn("Failed to rotate runs: %v", err)
	}

	if telegramClient != nil {
		if err := telegramClient.Send(cfg.Source.Region, res.Estimates, rev); err != nil {
			logger.Error("Failed to send Telegram notification: %v", err)
		} else {
			logger.Info("Sent Telegram notification for %s", cfg.Source.Region)
		}
	}
	return nil
}
