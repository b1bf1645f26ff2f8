package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"selfhostgpt/internal/chat"
	"selfhostgpt/internal/collection"
	"selfhostgpt/internal/completion"
	"selfhostgpt/internal/db"
	"selfhostgpt/internal/logging"
	"selfhostgpt/internal/settings"
	"selfhostgpt/internal/ui"
)

type chatStore interface {
	chat.Store
	collection.Store
	ui.UsageSource
	Close() error
}

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dir, err := settings.Dir()
	if err != nil {
		return err
	}
	log, logFile, err := logging.Open(dir)
	if err != nil {
		return err
	}
	defer logFile.Close()
	slog.SetDefault(log)

	path, err := settings.Path()
	if err != nil {
		return err
	}
	svc := settings.NewService(path)
	cfg := svc.Get()

	store, err := openStore(cfg.Store, log)
	if err != nil {
		log.Error("failed to open chat store", "driver", cfg.Store.Driver, logging.FieldError, err)
		return err
	}
	defer store.Close()

	var client completion.Client = completion.NewOpenAI(cfg.BaseURL)
	if cfg.Mock {
		client = &completion.Mock{}
	}

	ctx := context.Background()
	idx := collection.New(store, log)
	if err := idx.Load(ctx); err != nil {
		return err
	}
	core := chat.New(chat.Options{
		Store:    store,
		Client:   client,
		Settings: svc,
		Headers:  idx,
		Logger:   log,
	})
	defer core.Close()
	idx.WriteThrough(core)
	core.OpenLatest(ctx)

	log.Info("starting", "driver", cfg.Store.Driver, "model", cfg.Model, "mock", cfg.Mock)
	if _, err := ui.NewProgram(core, idx, svc, store).Run(); err != nil {
		return errors.Wrap(err, "run terminal ui")
	}
	return nil
}

func openStore(cfg settings.StoreConfig, log *slog.Logger) (chatStore, error) {
	switch cfg.Driver {
	case settings.DriverRedis:
		return db.OpenRedis(cfg.RedisAddr, log)
	case settings.DriverSQLite, "":
		path := cfg.Path
		if path == "" {
			var err error
			if path, err = db.DefaultPath(); err != nil {
				return nil, errors.Wrap(err, "locate database")
			}
		}
		return db.OpenSQLite(path, log)
	}
	return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
}
