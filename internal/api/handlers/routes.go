// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ordinary-app/app-sub001/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route behind the scope cookie. Raw paths are used
// for matching so ids containing slashes can be passed percent-encoded.
func NewRouter(h *Handler, sessionSecret []byte) *gin.Engine {
	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(gin.Recovery(), middleware.SecurityHeadersMiddleware())

	r.GET("/health", h.HealthCheckHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	scoped := r.Group("/", middleware.Sessions(sessionSecret), middleware.Scope())

	scoped.POST("/auth/login", h.LoginHandler)
	scoped.POST("/auth/logout", h.LogoutHandler)
	scoped.GET("/me", h.MeHandler)

	scoped.GET("/feed", h.FeedHandler)
	scoped.GET("/posts/:id/comments", h.CommentsHandler)
	scoped.POST("/posts/:id/comments", h.CreateCommentHandler)
	scoped.GET("/posts/:id/comments/reconciliation", h.ReconciliationHandler)
	scoped.GET("/posts/:id/comments/outcomes", h.OutcomesHandler)

	scoped.POST("/items/:id/like", h.LikeHandler)
	scoped.POST("/items/:id/bookmark", h.BookmarkHandler)
	scoped.POST("/authors/:id/follow", h.FollowHandler)

	scoped.DELETE("/scope", h.CloseScopeHandler)
	scoped.POST("/admin/sweep", h.TriggerSweepHandler)

	return r
}
