// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TriggerSweepHandler runs an idle-scope sweep right away.
func (h *Handler) TriggerSweepHandler(c *gin.Context) {
	if h.Worker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "Sweeper not configured",
		})
		return
	}

	closed := h.Worker.SweepNow()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"closed_scopes": len(closed),
		"open_sessions": h.Feeds.Len(),
	})
}
