// SPDX-License-Identifier: AGPL-3.0-only

// Package database holds the hand-maintained queries of the write ledger.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db: tx,
	}
}

// Open connects to Postgres and applies the embedded migrations.
func Open(dsn string) (*sql.DB, int64, error) {

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to connect to the DB: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.EnsureDBVersion(db)
	if err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to get DB version: %w", err)
	}

	return db, version, nil
}
