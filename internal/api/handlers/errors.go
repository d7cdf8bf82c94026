// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ordinary-app/app-sub001/internal/feed"
)

// writeError maps engine errors onto HTTP statuses. Fetch failures are
// flagged retryable so the UI can offer a retry.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		transient *feed.TransientFetchError
		rejected  *feed.WriteRejectedError
	)

	status := http.StatusInternalServerError
	retryable := false

	switch {
	case errors.Is(err, feed.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, feed.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, feed.ErrFetchInFlight), errors.Is(err, feed.ErrToggleInFlight):
		status = http.StatusConflict
		retryable = true
	case errors.Is(err, feed.ErrSessionClosed):
		status = http.StatusGone
		retryable = true
	case errors.As(err, &rejected):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &transient):
		status = http.StatusBadGateway
		retryable = true
	}

	if status == http.StatusInternalServerError {
		h.log.Errorw("Handler: request failed", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, gin.H{
		"status":    "error",
		"message":   err.Error(),
		"retryable": retryable,
	})
}
