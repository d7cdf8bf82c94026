// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ordinary-app/app-sub001/internal/api/handlers"
	"github.com/ordinary-app/app-sub001/internal/cli"
	"github.com/ordinary-app/app-sub001/internal/config"
	"github.com/ordinary-app/app-sub001/internal/database"
	"github.com/ordinary-app/app-sub001/internal/feed"
	"github.com/ordinary-app/app-sub001/internal/ledger"
	"github.com/ordinary-app/app-sub001/internal/logging"
	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/protocol/bluesky"
	"github.com/ordinary-app/app-sub001/internal/protocol/mastodon"
	"github.com/ordinary-app/app-sub001/internal/session"
	"github.com/ordinary-app/app-sub001/internal/worker"
	"go.uber.org/zap"
)

type networkClient interface {
	protocol.Client
	protocol.Authenticator
}

func main() {
	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	switch command {
	case "serve":
		err = serve(cfg, logger)
	case "browse":
		err = browse(cfg, logger, args)
	default:
		err = fmt.Errorf("unknown command %q (expected serve or browse)", command)
	}
	if err != nil {
		logger.Fatalw("Command failed", "command", command, "error", err)
	}
}

func newClient(cfg *config.AppConfig, store *session.Store, logger *zap.SugaredLogger) networkClient {
	httpClient := protocol.NewHTTPClient(cfg.HTTPTimeout)
	if cfg.Network == config.NetworkMastodon {
		return mastodon.New(httpClient, store, logger, cfg.MastodonInstanceURL)
	}
	return bluesky.New(httpClient, store, logger, bluesky.Options{
		ServiceURL: cfg.BlueskyServiceURL,
		AppViewURL: cfg.BlueskyAppViewURL,
	})
}

func feedOptions(cfg *config.AppConfig) feed.Options {
	return feed.Options{
		PageSize: cfg.PageSize,
		Reconciler: feed.ReconcilerOptions{
			MaxAttempts: cfg.ReconcileMaxAttempts,
			Backoff:     cfg.ReconcileBackoff,
		},
	}
}

func serve(cfg *config.AppConfig, logger *zap.SugaredLogger) error {
	store := session.NewStore(nil)
	client := newClient(cfg, store, logger)

	var (
		dbConn   *sql.DB
		recorder ledger.Recorder = ledger.Nop{}
		outcomes handlers.OutcomeLister
	)
	if cfg.DatabaseURL != "" {
		db, version, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Infow("Database ready", "schema_version", version)

		pg := ledger.NewPostgres(db)
		dbConn, recorder, outcomes = db, pg, pg
	} else {
		logger.Infow("DATABASE_URL not set, write ledger disabled")
	}

	manager := feed.NewManager(client, store, feedOptions(cfg), recorder, logger)
	defer manager.CloseAll()

	sweeper := worker.NewSweeper(manager, cfg.ScopeIdleTTL, logger)
	sweeper.Start(cfg.SweepInterval)
	defer sweeper.Stop()

	h := handlers.NewHandler(manager, client, store, client.Network(), cfg, dbConn, outcomes, sweeper, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handlers.NewRouter(h, cfg.SessionSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("Server listening", "addr", cfg.ListenAddr, "network", client.Network())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func browse(cfg *config.AppConfig, logger *zap.SugaredLogger, args []string) error {
	opts, err := cli.ParseBrowseFlags(args)
	if err != nil {
		return err
	}

	store := session.NewStore(nil)
	client := newClient(cfg, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := &cli.Browser{
		Client:   client,
		Auth:     client,
		Store:    store,
		Feed:     feedOptions(cfg),
		Instance: cfg.MastodonInstanceURL,
		Log:      logger,
	}
	return b.Browse(ctx, opts)
}
