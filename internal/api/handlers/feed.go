// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ordinary-app/app-sub001/internal/feed"
	"github.com/ordinary-app/app-sub001/internal/middleware"
	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
	"github.com/ordinary-app/app-sub001/internal/view"
)

const maxOutcomes = 50

func (h *Handler) viewContext() view.Context {
	ctx := view.Context{
		ViewerID: session.ViewerID(h.Session),
		Network:  h.Network,
		Now:      time.Now(),
	}
	if h.Config != nil {
		ctx.InstanceURL = h.Config.MastodonInstanceURL
	}
	return ctx
}

func (h *Handler) openSession(c *gin.Context, subject protocol.Subject) (*feed.Session, bool, bool) {
	s, created, err := h.Feeds.Open(middleware.ScopeID(c), subject)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return nil, false, false
	}
	return s, created, true
}

// subjectFromQuery reads the subject an item action targets:
// "feed" (optionally with author) or "comments:<post id>".
func subjectFromQuery(c *gin.Context) protocol.Subject {
	raw := c.Query("subject")
	if postID, ok := strings.CutPrefix(raw, "comments:"); ok {
		return protocol.CommentsSubject(postID)
	}
	return protocol.FeedSubject(c.Query("author"))
}

func (h *Handler) FeedHandler(c *gin.Context) {
	h.loadPage(c, protocol.FeedSubject(c.Query("author")))
}

func (h *Handler) CommentsHandler(c *gin.Context) {
	h.loadPage(c, protocol.CommentsSubject(c.Param("id")))
}

func (h *Handler) loadPage(c *gin.Context, subject protocol.Subject) {
	s, created, ok := h.openSession(c, subject)
	if !ok {
		return
	}

	var (
		state feed.PageState
		err   error
	)
	if c.Query("more") == "1" && !created {
		state, err = s.LoadMore(c.Request.Context())
	} else {
		state, err = s.LoadFirst(c.Request.Context())
	}
	if err != nil && !errors.Is(err, feed.ErrNoMorePages) {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, pageResponse{
		Subject:        subject.Key(),
		Items:          view.ProjectAll(s.Items(), h.viewContext()),
		Cursor:         state.Cursor,
		HasMore:        state.HasMore,
		Fetched:        state.Fetched,
		Dropped:        state.Dropped,
		Reconciliation: toReconciliation(s.Reconciliation()),
	})
}

func (h *Handler) CreateCommentHandler(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "content is required"})
		return
	}

	s, _, ok := h.openSession(c, protocol.CommentsSubject(c.Param("id")))
	if !ok {
		return
	}

	cycle, tentative, err := s.Comment(c.Request.Context(), req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, commentResponse{
		Item:           view.Project(tentative, h.viewContext()),
		Reconciliation: toReconciliation(cycle.Status()),
	})
}

func (h *Handler) ReconciliationHandler(c *gin.Context) {
	s, _, ok := h.openSession(c, protocol.CommentsSubject(c.Param("id")))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toReconciliation(s.Reconciliation()))
}

func (h *Handler) OutcomesHandler(c *gin.Context) {
	if h.Outcomes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "write ledger disabled"})
		return
	}

	limit := maxOutcomes
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid limit"})
			return
		}
		limit = min(n, maxOutcomes)
	}

	entries, err := h.Outcomes.Recent(c.Request.Context(), protocol.CommentsSubject(c.Param("id")).Key(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]outcomeResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toOutcome(e))
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": out})
}

func (h *Handler) LikeHandler(c *gin.Context) {
	h.toggleItem(c, (*feed.Session).ToggleLike)
}

func (h *Handler) BookmarkHandler(c *gin.Context) {
	h.toggleItem(c, (*feed.Session).ToggleBookmark)
}

func (h *Handler) toggleItem(c *gin.Context, toggle func(*feed.Session, context.Context, string) (feed.Item, error)) {
	s, _, ok := h.openSession(c, subjectFromQuery(c))
	if !ok {
		return
	}

	item, err := toggle(s, c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Project(item, h.viewContext()))
}

func (h *Handler) FollowHandler(c *gin.Context) {
	s, _, ok := h.openSession(c, subjectFromQuery(c))
	if !ok {
		return
	}

	authorID := c.Param("id")
	following, err := s.ToggleFollow(c.Request.Context(), authorID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, followResponse{AuthorID: authorID, Following: following})
}

// CloseScopeHandler tears down the caller's scope: pending retries stop and
// in-flight results are dropped.
func (h *Handler) CloseScopeHandler(c *gin.Context) {
	closed := h.Feeds.CloseScope(middleware.ScopeID(c))
	if err := middleware.EndScope(c); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "closed_sessions": closed})
}
