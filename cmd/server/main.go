package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"student-support-center/internal/config"
	"student-support-center/internal/db"
	"student-support-center/internal/handlers"
	"student-support-center/internal/logger"
	"student-support-center/internal/metrics"
	"student-support-center/internal/middleware"
	"student-support-center/internal/models"
	"student-support-center/internal/reports"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	logger.Configure(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	d, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to connect to database")
	}
	defer d.Close()

	if err := d.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	handlers.SetConfig(cfg)
	// Parse templates before serving so a broken template fails startup.
	if err := handlers.InitTemplates(); err != nil {
		log.Fatal().Err(err).Msg("failed to load templates")
	}

	m := metrics.New()
	mux := http.NewServeMux()
	handlers.Register(mux, handlers.Deps{
		Config:  cfg,
		Repo:    models.NewRepository(d, cfg.SupervisorCounselorID),
		Reports: reports.New(d),
		Metrics: m,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.Chain(mux, m),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", "http://localhost:"+cfg.Port).
			Str("env", cfg.AppEnv).
			Str("driver", cfg.DatabaseDriver).
			Int64("supervisor_id", cfg.SupervisorCounselorID).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
