package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/PlayConnect01/PlayConnect-sub002/internal/call"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/server"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/store/badgerstore"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/store/memstore"
	"github.com/PlayConnect01/PlayConnect-sub002/pkg/config"
	"github.com/PlayConnect01/PlayConnect-sub002/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelDebug)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var store call.Store
	switch cfg.Store.Backend {
	case "badger":
		db, err := badgerstore.Open(cfg.Store.Path)
		if err != nil {
			logger.Error("Failed to open call store", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		store = badgerstore.New(db, logger)
		logger.Info("Using badger call store", slog.String("path", cfg.Store.Path))
	default:
		store = memstore.New()
		logger.Info("Using in-memory call store")
	}

	ctx, stop := signal.NotifyContext(context.Background())
	defer stop()

	app := server.NewApp(logger, ctx, cfg, store)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
