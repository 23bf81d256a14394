// v3
// cmd/enduro-backend/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/handlers"

	"github.com/etkk55/enduro-backend/internal/api"
	"github.com/etkk55/enduro-backend/internal/circuitbreaker"
	"github.com/etkk55/enduro-backend/internal/config"
	"github.com/etkk55/enduro-backend/internal/importer"
	"github.com/etkk55/enduro-backend/internal/logging"
	"github.com/etkk55/enduro-backend/internal/simulator"
	"github.com/etkk55/enduro-backend/internal/storage"
	"github.com/etkk55/enduro-backend/internal/stream"
)

func main() {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("config_load_failed", slog.Any("err", err))
		os.Exit(1)
	}

	logger, cleanup, err := logging.New(cfg.LogFilePath)
	if err != nil {
		bootstrap.Error("logger_init_failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer cleanup()

	logger.Info("service_boot",
		slog.String("listen_address", cfg.ListenAddress),
		slog.String("data_dir", cfg.DataDir),
		slog.String("log_path", cfg.LogFilePath),
		slog.String("properties_path", cfg.PropertiesPath),
		slog.Bool("stage_rank_includes_penalty", cfg.StageRankIncludesPenalty),
		slog.String("federation_base_url", cfg.FederationBaseURL),
		slog.String("kafka_brokers", strings.Join(cfg.KafkaBrokers, ",")),
		slog.String("live_topic", cfg.LiveTopic),
	)

	store, err := storage.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Error("store_open_failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("store_close_failed", slog.Any("err", cerr))
		}
	}()

	sim := simulator.NewManager(store, logger)

	var imp *importer.Importer
	if strings.TrimSpace(cfg.FederationBaseURL) != "" {
		breaker := circuitbreaker.New("federation", circuitbreaker.Config{
			MaxFailures:  cfg.BreakerMaxFailures,
			ResetTimeout: cfg.BreakerResetTimeout,
		}, logger)
		client := importer.NewClient(cfg.FederationBaseURL, breaker, logger)
		imp = importer.New(client, store, logger)
	}

	publisher, err := stream.NewPublisher(stream.Config{
		Enabled: cfg.LiveStreamEnabled(),
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.LiveTopic,
	}, logger)
	if err != nil {
		logger.Error("live_stream_init_failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if cerr := publisher.Close(); cerr != nil {
			logger.Error("live_stream_close_failed", slog.Any("err", cerr))
		}
	}()

	h := &api.Handlers{
		Cfg:      cfg,
		Log:      logger,
		Store:    store,
		Sim:      sim,
		Importer: imp,
		Stream:   publisher,
	}
	router := api.NewRouter(h)
	chain := handlers.CORS(
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(api.WithLogging(logger, router))

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           chain,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPWriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_server_listen", slog.String("address", cfg.ListenAddress))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal_received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http_shutdown_failed", slog.Any("err", err))
		}
		<-errCh
	case err := <-errCh:
		if err != nil {
			logger.Error("http_server_failed", slog.Any("err", err))
			os.Exit(1)
		}
	}

	logger.Info("service_stopped")
}
