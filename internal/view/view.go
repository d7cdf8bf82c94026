// SPDX-License-Identifier: AGPL-3.0-only

// Package view derives display fields from feed items. Everything here is
// a pure function of its arguments.
package view

import (
	"fmt"
	"time"

	"github.com/ordinary-app/app-sub001/internal/feed"
	"github.com/ordinary-app/app-sub001/internal/helpers"
)

// Item is the presentation form of a feed item.
type Item struct {
	ID                        string    `json:"id"`
	Content                   string    `json:"content"`
	AuthorID                  string    `json:"author_id"`
	AuthorHandle              string    `json:"author_handle"`
	AuthorName                string    `json:"author_name"`
	CreatedAt                 time.Time `json:"created_at"`
	RelativeTime              string    `json:"relative_time"`
	URL                       string    `json:"url,omitempty"`
	AuthorURL                 string    `json:"author_url,omitempty"`
	LikeCount                 int       `json:"like_count"`
	CommentCount              int       `json:"comment_count"`
	BookmarkCount             int       `json:"bookmark_count"`
	RepostCount               int       `json:"repost_count"`
	HasLikedByViewer          bool      `json:"has_liked_by_viewer"`
	HasBookmarkedByViewer     bool      `json:"has_bookmarked_by_viewer"`
	HasFollowedAuthorByViewer bool      `json:"has_followed_author_by_viewer"`
	IsOwn                     bool      `json:"is_own"`
	Pending                   bool      `json:"pending"`
}

// Context carries what projection needs besides the item itself.
type Context struct {
	ViewerID    string
	Network     string
	InstanceURL string
	Now         time.Time
}

// Project renders item for the viewer. An anonymous viewer (empty
// ViewerID) never has personal flags set.
func Project(item feed.Item, ctx Context) Item {
	name := item.AuthorName
	if name == "" {
		name = item.AuthorHandle
	}

	anonymous := ctx.ViewerID == ""
	out := Item{
		ID:                        item.ID,
		Content:                   item.Content,
		AuthorID:                  item.AuthorID,
		AuthorHandle:              item.AuthorHandle,
		AuthorName:                name,
		CreatedAt:                 item.CreatedAt,
		RelativeTime:              RelativeTime(item.CreatedAt, ctx.Now),
		LikeCount:                 item.Stats.LikeCount,
		CommentCount:              item.Stats.CommentCount,
		BookmarkCount:             item.Stats.BookmarkCount,
		RepostCount:               item.Stats.RepostCount,
		HasLikedByViewer:          !anonymous && item.ViewerState.HasLiked,
		HasBookmarkedByViewer:     !anonymous && item.ViewerState.HasBookmarked,
		HasFollowedAuthorByViewer: !anonymous && item.ViewerState.FollowsAuthor,
		IsOwn:                     !anonymous && item.AuthorID == ctx.ViewerID,
		Pending:                   item.Tentative,
	}

	if item.AuthorHandle != "" && ctx.Network != "" {
		if u, err := helpers.ConvNetworkToURL(ctx.Network, item.AuthorHandle, ctx.InstanceURL); err == nil {
			out.AuthorURL = u
		}
	}
	if !item.Tentative && ctx.Network != "" {
		if u, err := helpers.ConvPostToURL(ctx.Network, item.AuthorHandle, item.ID, ctx.InstanceURL); err == nil {
			out.URL = u
		}
	}
	return out
}

func ProjectAll(items []feed.Item, ctx Context) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = Project(item, ctx)
	}
	return out
}

// RelativeTime buckets the time elapsed since createdAt. Every bucket uses
// integer division of elapsed milliseconds, so values are truncated.
func RelativeTime(createdAt, now time.Time) string {
	ms := now.Sub(createdAt).Milliseconds()
	if ms < 0 {
		ms = 0
	}

	seconds := ms / 1000
	minutes := ms / (60 * 1000)
	hours := ms / (60 * 60 * 1000)
	days := ms / (24 * 60 * 60 * 1000)

	switch {
	case seconds < 60:
		return "Just now"
	case minutes < 60:
		return ago(minutes, "minute")
	case hours < 24:
		return ago(hours, "hour")
	case days < 7:
		return ago(days, "day")
	case days < 30:
		return ago(days/7, "week")
	case days < 365:
		return ago(days/30, "month")
	default:
		return ago(days/365, "year")
	}
}

func ago(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
