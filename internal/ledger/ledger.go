// SPDX-License-Identifier: AGPL-3.0-only

// Package ledger persists the outcome of every finished reconciliation
// cycle. Recording is best effort: callers log failures and move on.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ordinary-app/app-sub001/internal/database"
)

type Entry struct {
	ID          uuid.UUID
	Network     string
	Subject     string
	Kind        string
	TentativeID string
	ConfirmedID string
	Outcome     string
	Attempts    int
	CreatedAt   time.Time
	FinishedAt  time.Time
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

type Postgres struct {
	queries *database.Queries
}

func NewPostgres(db database.DBTX) *Postgres {
	return &Postgres{queries: database.New(db)}
}

func (p *Postgres) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("ledger: generate id: %w", err)
		}
		entry.ID = id
	}
	_, err := p.queries.CreateWriteOutcome(ctx, database.CreateWriteOutcomeParams{
		ID:          entry.ID,
		CreatedAt:   entry.CreatedAt,
		FinishedAt:  entry.FinishedAt,
		Network:     entry.Network,
		Subject:     entry.Subject,
		WriteKind:   entry.Kind,
		TentativeID: entry.TentativeID,
		ConfirmedID: sql.NullString{String: entry.ConfirmedID, Valid: entry.ConfirmedID != ""},
		Outcome:     entry.Outcome,
		Attempts:    int32(entry.Attempts),
	})
	if err != nil {
		return fmt.Errorf("ledger: insert outcome: %w", err)
	}
	return nil
}

// Recent lists the latest outcomes recorded for a subject key.
func (p *Postgres) Recent(ctx context.Context, subject string, limit int) ([]Entry, error) {
	rows, err := p.queries.ListWriteOutcomesBySubject(ctx, database.ListWriteOutcomesBySubjectParams{
		Subject: subject,
		Limit:   int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: list outcomes: %w", err)
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			ID:          row.ID,
			Network:     row.Network,
			Subject:     row.Subject,
			Kind:        row.WriteKind,
			TentativeID: row.TentativeID,
			ConfirmedID: row.ConfirmedID.String,
			Outcome:     row.Outcome,
			Attempts:    int(row.Attempts),
			CreatedAt:   row.CreatedAt,
			FinishedAt:  row.FinishedAt,
		})
	}
	return entries, nil
}

// Memory keeps entries in process. It backs the CLI and tests.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *Memory) Record(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

var (
	_ Recorder = Nop{}
	_ Recorder = (*Postgres)(nil)
	_ Recorder = (*Memory)(nil)
)
