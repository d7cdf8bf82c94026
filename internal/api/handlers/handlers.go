// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"context"
	"database/sql"

	"github.com/ordinary-app/app-sub001/internal/config"
	"github.com/ordinary-app/app-sub001/internal/feed"
	"github.com/ordinary-app/app-sub001/internal/ledger"
	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
	"github.com/ordinary-app/app-sub001/internal/worker"
	"go.uber.org/zap"
)

// OutcomeLister reads back recorded reconciliation outcomes.
type OutcomeLister interface {
	Recent(ctx context.Context, subject string, limit int) ([]ledger.Entry, error)
}

type Handler struct {
	Feeds    *feed.Manager
	Auth     protocol.Authenticator
	Session  *session.Store
	Network  string
	Config   *config.AppConfig
	DBConn   *sql.DB
	Outcomes OutcomeLister
	Worker   *worker.Sweeper
	log      *zap.SugaredLogger
}

func NewHandler(feeds *feed.Manager, auth protocol.Authenticator, store *session.Store, network string,
	cfg *config.AppConfig, dbConn *sql.DB, outcomes OutcomeLister, w *worker.Sweeper, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		Feeds:    feeds,
		Auth:     auth,
		Session:  store,
		Network:  network,
		Config:   cfg,
		DBConn:   dbConn,
		Outcomes: outcomes,
		Worker:   w,
		log:      logger,
	}
}
