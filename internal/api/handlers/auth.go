// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ordinary-app/app-sub001/internal/session"
)

func (h *Handler) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "secret is required"})
		return
	}

	account, err := h.Auth.Login(c.Request.Context(), req.Identifier, req.Secret)
	if err != nil {
		h.log.Warnw("Auth: login failed", "identifier", req.Identifier, "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid credentials"})
		return
	}

	identity := session.FromAccount(h.Network, account)
	if err := h.Session.Set(identity); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": err.Error()})
		return
	}

	// Viewer flags of already loaded items belong to the previous identity.
	h.Feeds.CloseAll()

	h.log.Infow("Auth: logged in", "handle", identity.Handle, "network", identity.Network)
	c.JSON(http.StatusOK, toIdentity(identity))
}

func (h *Handler) LogoutHandler(c *gin.Context) {
	h.Session.Clear()
	closed := h.Feeds.CloseAll()
	h.log.Infow("Auth: logged out", "closed_sessions", closed)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) MeHandler(c *gin.Context) {
	identity, ok := h.Session.Current()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "User not logged in"})
		return
	}
	c.JSON(http.StatusOK, toIdentity(identity))
}

func toIdentity(identity session.Identity) identityResponse {
	return identityResponse{
		ID:          identity.ID,
		Handle:      identity.Handle,
		DisplayName: identity.DisplayName,
		Network:     identity.Network,
		ExpiresAt:   identity.ExpiresAt,
	}
}
