package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/munimap/anomaly-engine/internal/api"
	"github.com/munimap/anomaly-engine/internal/config"
	"github.com/munimap/anomaly-engine/internal/detector"
	"github.com/munimap/anomaly-engine/internal/logger"
	"github.com/munimap/anomaly-engine/internal/models"
	"github.com/munimap/anomaly-engine/internal/store"
	"github.com/munimap/anomaly-engine/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	runOnce    = flag.Bool("once", false, "Run one detection pass and exit")
)

// job bundles everything one detection run needs. The mutex serializes the
// scheduled runs with manual API triggers; concurrent runs would only cost
// wasted work and last-writer-wins upserts, but there is no reason to allow
// them.
type job struct {
	mu     sync.Mutex
	store  *store.Store
	runner *detector.Runner
	tg     *telegram.Client
	loc    *time.Location
}

// RunOnce executes one full detection pass: snapshot read, detector fan-out,
// upsert, and notification of newly created anomalies.
func (j *job) RunOnce(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	runID := uuid.NewString()[:8]
	startTime := time.Now()
	logger.Info("job %s: starting anomaly detection run", runID)

	reports, err := j.store.FetchReportsFlat(ctx)
	if err != nil {
		return 0, err
	}
	logger.Info("job %s: fetched %d reports", runID, len(reports))

	now := time.Now().In(j.loc)
	anomalies := j.runner.RunAll(reports, now)
	if len(anomalies) == 0 {
		logger.Info("job %s: no anomalies detected", runID)
		return 0, nil
	}

	res, err := j.store.UpsertAnomalies(ctx, anomalies, time.Now())
	if err != nil {
		return 0, err
	}
	logger.Info("job %s: upserted %d anomalies (%d created, %d updated) in %v",
		runID, len(anomalies), res.Created, res.Updated, time.Since(startTime))

	if j.tg != nil && len(res.CreatedIDs) > 0 {
		createdSet := make(map[string]bool, len(res.CreatedIDs))
		for _, id := range res.CreatedIDs {
			createdSet[id] = true
		}
		var fresh []models.Anomaly
		for _, a := range anomalies {
			if createdSet[a.ID] {
				fresh = append(fresh, a)
			}
		}
		if err := j.tg.Send(fresh); err != nil {
			logger.Error("job %s: failed to send Telegram notification: %v", runID, err)
		} else {
			logger.Info("job %s: sent Telegram digest with %d new anomalies", runID, len(fresh))
		}
	}

	return len(anomalies), nil
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Failed to load timezone: %v", err)
	}

	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		logger.Fatal("Failed to open store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store: %v", err)
		}
	}()

	runner := detector.NewRunner(
		detector.NewSpikeDetector(cfg.Engine.MonthsBack),
		detector.NewSlowResolutionDetector(cfg.Engine.MonthsBack),
	)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	j := &job{store: st, runner: runner, tg: telegramClient, loc: loc}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if *runOnce {
		if _, err := j.RunOnce(ctx); err != nil {
			logger.Fatal("Detection run failed: %v", err)
		}
		return
	}

	// Start the admin/read API
	var srv *http.Server
	if cfg.Server.Enabled {
		handler := api.NewHandler(st, j)
		srv = &http.Server{Addr: cfg.Server.ListenAddr, Handler: handler.Routes()}
		go func() {
			logger.Info("API server listening on %s", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("API server failed: %v", err)
			}
		}()
	}

	logger.Info("Starting detection service (interval: %v, months_back: %d, timezone: %s)",
		cfg.Engine.Interval, cfg.Engine.MonthsBack, cfg.Engine.Timezone)

	ticker := time.NewTicker(cfg.Engine.Interval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Detection run failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	if cfg.Engine.RunOnStart {
		logger.Debug("Running initial detection pass")
		_, err := j.RunOnce(ctx)
		handleCycleResult(err)
	}

	for {
		select {
		case <-ctx.Done():
			if srv != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("API server shutdown failed: %v", err)
				}
				shutdownCancel()
			}
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled detection pass")
			_, err := j.RunOnce(ctx)
			handleCycleResult(err)
		}
	}
}
