package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fsmodels/internal/api"
	"fsmodels/internal/config"
	"fsmodels/internal/model"
	"fsmodels/internal/pg"
	"fsmodels/internal/store"
	"fsmodels/internal/store/badgerdb"
	"fsmodels/internal/store/fsstore"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fsmodels stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("fsmodels.yaml", os.Args[1:])
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. DSL и справочники
	cat, err := api.LoadCatalog(cfg.DSLDir, cfg.EnumsDir)
	if err != nil {
		return err
	}
	log.Info("catalog loaded", "entities", cat.Registry.Len(), "enums", len(cat.Enums), "dsl", cfg.DSLDir)

	// 2. хранилище
	client, err := openStore(ctx, cfg, cat.Registry, log)
	if err != nil {
		return err
	}
	defer client.Close()

	// 3. метрики
	var metrics http.Handler
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		client = store.Instrument(client, store.NewMetrics(reg))
		metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// 4. REST API
	srv := api.NewServer(cat, api.Options{
		Client:   client,
		Logger:   log,
		DSLDir:   cfg.DSLDir,
		EnumsDir: cfg.EnumsDir,
	})
	return api.Run(ctx, ":"+cfg.Port, api.NewRouter(srv, metrics), log)
}

func openStore(ctx context.Context, cfg config.Config, reg *model.Registry, log *slog.Logger) (store.Client, error) {
	switch cfg.StoreDriver {
	case config.DriverFirestore:
		if !fsstore.Available() {
			log.Warn("firestore credentials not found, store disabled")
			return store.Disabled("firestore credentials not configured"), nil
		}
		c, err := fsstore.Open(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, err
		}
		log.Info("store: firestore", "project", cfg.FirestoreProject)
		return c, nil
	case config.DriverPostgres:
		db, err := pg.Open(ctx, cfg.DBURL)
		if err != nil {
			return nil, err
		}
		s := pg.NewStore(db, cfg.PGSchema, log)
		if err := s.Provision(ctx, reg); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("store: postgres", "schema", cfg.PGSchema)
		return s, nil
	case config.DriverBadger:
		bc := badgerdb.DefaultConfig(cfg.BadgerDir)
		bc.Logger = log
		s, err := badgerdb.Open(bc)
		if err != nil {
			return nil, err
		}
		log.Info("store: badger", "dir", cfg.BadgerDir)
		return s, nil
	default:
		log.Info("store: memory")
		return store.NewMemory(), nil
	}
}
