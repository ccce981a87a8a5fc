package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"diagnosis-service/internal/cfg"
	"diagnosis-service/internal/logging"
	"diagnosis-service/internal/metrics"
	"diagnosis-service/internal/ml"
	"diagnosis-service/internal/server"

	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	if err := logging.Setup(c.LogLevel, c.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("logging setup failed")
	}

	// The service never starts without a model.
	forest, err := ml.LoadForest(c.ModelPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.ModelPath).Msg("model load failed")
	}

	var m *metrics.Metrics
	if c.MetricsEnabled {
		m = metrics.New()
	}

	predictor, err := ml.NewPredictor(forest, metrics.NewWrapper(m))
	if err != nil {
		log.Fatal().Err(err).Msg("predictor init failed")
	}

	srv, err := server.New(server.Config{
		Addr:           c.Addr(),
		StrictSex:      c.StrictSex,
		MaxBodyBytes:   c.MaxBodyBytes,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		MetricsEnabled: c.MetricsEnabled,
	}, predictor, m)
	if err != nil {
		log.Fatal().Err(err).Msg("server init failed")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	waitForShutdown(srv, c, errCh)
}

// waitForShutdown blocks until a signal or a server error, then drains
// in-flight requests within the configured timeout.
func waitForShutdown(srv *server.Server, c cfg.Settings, errCh <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	log.Info().Msg("server stopped")
}
