// SPDX-License-Identifier: AGPL-3.0-only
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type WriteOutcome struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	FinishedAt  time.Time
	Network     string
	Subject     string
	WriteKind   string
	TentativeID string
	ConfirmedID sql.NullString
	Outcome     string
	Attempts    int32
}

const createWriteOutcome = `-- name: CreateWriteOutcome :one
INSERT INTO write_outcomes (id, created_at, finished_at, network, subject, write_kind, tentative_id, confirmed_id, outcome, attempts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at, finished_at, network, subject, write_kind, tentative_id, confirmed_id, outcome, attempts
`

type CreateWriteOutcomeParams struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	FinishedAt  time.Time
	Network     string
	Subject     string
	WriteKind   string
	TentativeID string
	ConfirmedID sql.NullString
	Outcome     string
	Attempts    int32
}

func (q *Queries) CreateWriteOutcome(ctx context.Context, arg CreateWriteOutcomeParams) (WriteOutcome, error) {
	row := q.db.QueryRowContext(ctx, createWriteOutcome,
		arg.ID,
		arg.CreatedAt,
		arg.FinishedAt,
		arg.Network,
		arg.Subject,
		arg.WriteKind,
		arg.TentativeID,
		arg.ConfirmedID,
		arg.Outcome,
		arg.Attempts,
	)
	var i WriteOutcome
	err := row.Scan(
		&i.ID,
		&i.CreatedAt,
		&i.FinishedAt,
		&i.Network,
		&i.Subject,
		&i.WriteKind,
		&i.TentativeID,
		&i.ConfirmedID,
		&i.Outcome,
		&i.Attempts,
	)
	return i, err
}

const listWriteOutcomesBySubject = `-- name: ListWriteOutcomesBySubject :many
SELECT id, created_at, finished_at, network, subject, write_kind, tentative_id, confirmed_id, outcome, attempts
FROM write_outcomes
WHERE subject = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListWriteOutcomesBySubjectParams struct {
	Subject string
	Limit   int32
}

func (q *Queries) ListWriteOutcomesBySubject(ctx context.Context, arg ListWriteOutcomesBySubjectParams) ([]WriteOutcome, error) {
	rows, err := q.db.QueryContext(ctx, listWriteOutcomesBySubject, arg.Subject, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WriteOutcome
	for rows.Next() {
		var i WriteOutcome
		if err := rows.Scan(
			&i.ID,
			&i.CreatedAt,
			&i.FinishedAt,
			&i.Network,
			&i.Subject,
			&i.WriteKind,
			&i.TentativeID,
			&i.ConfirmedID,
			&i.Outcome,
			&i.Attempts,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
