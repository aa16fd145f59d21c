package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"wheel/internal/analysis"
	"wheel/internal/auth"
	"wheel/internal/classifier"
	"wheel/internal/config"
	"wheel/internal/db"
	httpx "wheel/internal/http"
	"wheel/internal/jobs"
	"wheel/internal/logging"
	"wheel/internal/patterns"
	"wheel/internal/profile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer func() { _ = db.Close(gdb) }()
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		logger.Fatal().Err(err).Msg("migrate database")
	}

	cls := classifier.New(classifier.Options{
		APIKey:  cfg.Classifier.APIKey,
		BaseURL: cfg.Classifier.BaseURL,
		Model:   cfg.Classifier.Model,
		RPS:     cfg.Classifier.RPS,
	})
	if !cls.Enabled() {
		logger.Warn().Msg("CLASSIFIER_API_KEY not set, queued reflections will be processed without patterns")
	}
	if cfg.CronSecret == "" {
		logger.Warn().Msg("CRON_SECRET not set, scheduled triggers will be rejected")
	}

	patternStore := &patterns.GormStore{DB: gdb}
	extractor := patterns.NewExtractor(patternStore, cls, logger)

	analysisStore := &analysis.GormStore{DB: gdb, Profiles: &profile.Store{DB: gdb}}
	scheduler := analysis.NewScheduler(
		analysisStore,
		analysis.NewPatternAnalyzer(patternStore),
		analysis.NewPatternDigester(patternStore),
		analysis.Config{
			WindowStart:     cfg.Analysis.WindowStart,
			WindowEnd:       cfg.Analysis.WindowEnd,
			DigestHour:      cfg.Analysis.DigestHour,
			WeeklyDigestDay: time.Weekday(cfg.Analysis.WeeklyDigestDay),
		},
		logger,
	)

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(cfg, gdb, jwtSvc, httpx.Services{Scheduler: scheduler, Extractor: extractor}, logger)

	var runner *jobs.Runner
	if cfg.Cron.Enabled {
		runner = jobs.NewRunner(logger, 50*time.Minute)
		if err := runner.Add(cfg.Cron.AnalysisSchedule, jobs.AnalysisJob{Scheduler: scheduler}); err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.Cron.AnalysisSchedule).Msg("register analysis job")
		}
		if err := runner.Add(cfg.Cron.DrainSchedule, jobs.DrainJob{Extractor: extractor, BatchSize: cfg.Cron.DrainBatchSize}); err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.Cron.DrainSchedule).Msg("register drain job")
		}
		runner.Start()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	if runner != nil {
		runner.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
