// Sensei Server
//
// A code sharing platform: a per-user virtual filesystem over a document
// store, with per-file view/edit ACLs, public files, search and sharing,
// served over a JSON HTTP API with JWT bearer auth.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Firebreather-heart/sensei/internal/api"
	"github.com/Firebreather-heart/sensei/internal/config"
	"github.com/Firebreather-heart/sensei/internal/docstore"
	"github.com/Firebreather-heart/sensei/internal/identity"
	"github.com/Firebreather-heart/sensei/internal/logging"
	"github.com/Firebreather-heart/sensei/internal/metrics"
	"github.com/Firebreather-heart/sensei/internal/vfs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Sensei server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("docstore", cfg.DocstoreBackend))

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(cfg)
	if err != nil {
		logging.Fatal("document store init failed", zap.Error(err))
	}
	defer store.Close()

	ids := identity.New(store, cfg.JWTSecret)
	fs := vfs.NewFileSystem(store)
	acl := vfs.NewACL(store)
	gate := vfs.NewGate(fs, acl)
	sharing := vfs.NewSharing(fs, acl, ids)

	srv := api.NewServer(ids, fs, acl, gate, sharing, cfg.PublicListLimit)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}

func openStore(cfg *config.Config) (docstore.Store, error) {
	switch cfg.DocstoreBackend {
	case "postgres":
		return docstore.NewPostgresStore(cfg.DatabaseURL)
	case "memory":
		return docstore.NewMemoryStore(), nil
	default:
		return docstore.NewBadgerStore(cfg.BadgerPath)
	}
}
