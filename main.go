package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tessera/backend/internal/app"
	"tessera/backend/internal/config"
	applog "tessera/backend/internal/logger"

	"github.com/nsqio/go-nsq"
)

func main() {
	logger := slog.New(applog.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("backend exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.DB.Close()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, logger)
	if err != nil {
		return err
	}

	if cfg.EnableIngestWorker {
		consumer, err := nsq.NewConsumer(config.TopicIngestTask, "ingest-worker", nsq.NewConfig())
		if err != nil {
			return err
		}
		consumer.AddHandler(a.IngestConsumer)
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			return err
		}
		defer consumer.Stop()
		slog.Info("ingest worker connected", "topic", config.TopicIngestTask)
	}

	if cfg.EnableAPI {
		return a.Run(ctx)
	}

	// Worker-only deployment: block until a shutdown signal arrives.
	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}
