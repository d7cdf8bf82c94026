// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"time"

	"github.com/ordinary-app/app-sub001/internal/feed"
	"github.com/ordinary-app/app-sub001/internal/ledger"
	"github.com/ordinary-app/app-sub001/internal/view"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret" binding:"required"`
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

type identityResponse struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	Network     string    `json:"network"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

type reconciliationResponse struct {
	Phase             string `json:"phase"`
	TentativeID       string `json:"tentative_id,omitempty"`
	ConfirmedID       string `json:"confirmed_id,omitempty"`
	Attempt           int    `json:"attempt"`
	MaxAttempts       int    `json:"max_attempts"`
	Expecting         bool   `json:"expecting"`
	LastObservedCount int    `json:"last_observed_count"`
}

func toReconciliation(status feed.ReconcileStatus) reconciliationResponse {
	return reconciliationResponse{
		Phase:             string(status.Phase),
		TentativeID:       status.TentativeID,
		ConfirmedID:       status.ConfirmedID,
		Attempt:           status.Retry.Attempt,
		MaxAttempts:       status.Retry.MaxAttempts,
		Expecting:         status.Retry.Expecting,
		LastObservedCount: status.Retry.LastObservedCount,
	}
}

type pageResponse struct {
	Subject        string                 `json:"subject"`
	Items          []view.Item            `json:"items"`
	Cursor         string                 `json:"cursor,omitempty"`
	HasMore        bool                   `json:"has_more"`
	Fetched        int                    `json:"fetched"`
	Dropped        int                    `json:"dropped"`
	Reconciliation reconciliationResponse `json:"reconciliation"`
}

type commentResponse struct {
	Item           view.Item              `json:"item"`
	Reconciliation reconciliationResponse `json:"reconciliation"`
}

type followResponse struct {
	AuthorID  string `json:"author_id"`
	Following bool   `json:"following"`
}

type outcomeResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	TentativeID string    `json:"tentative_id"`
	ConfirmedID string    `json:"confirmed_id,omitempty"`
	Outcome     string    `json:"outcome"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"created_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

func toOutcome(e ledger.Entry) outcomeResponse {
	return outcomeResponse{
		ID:          e.ID.String(),
		Kind:        e.Kind,
		TentativeID: e.TentativeID,
		ConfirmedID: e.ConfirmedID,
		Outcome:     e.Outcome,
		Attempts:    e.Attempts,
		CreatedAt:   e.CreatedAt,
		FinishedAt:  e.FinishedAt,
	}
}
