// SPDX-License-Identifier: AGPL-3.0-only

// Package feed is the paginated collection engine: cursor tracking, an
// identity-deduplicated store, a guarded fetch executor and the optimistic
// write reconciler that converges local writes with an eventually
// consistent backend.
package feed

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ordinary-app/app-sub001/internal/protocol"
)

const tentativePrefix = "temp-"

type Stats struct {
	LikeCount     int
	CommentCount  int
	BookmarkCount int
	RepostCount   int
}

type ViewerState struct {
	HasLiked      bool
	HasBookmarked bool
	FollowsAuthor bool
	LikeRef       string
	FollowRef     string
}

// Item is a post or comment. ID is its identity within a collection.
type Item struct {
	ID           string
	Ref          string
	Content      string
	AuthorID     string
	AuthorHandle string
	AuthorName   string
	CreatedAt    time.Time
	Stats        Stats
	ViewerState  ViewerState
	Tentative    bool
}

// NewTentativeID returns a time-ordered placeholder id.
func NewTentativeID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return tentativePrefix + uuid.NewString()
	}
	return tentativePrefix + id.String()
}

func IsTentativeID(id string) bool {
	return strings.HasPrefix(id, tentativePrefix)
}

func ItemFromPost(post *protocol.PostView) Item {
	return Item{
		ID:           post.ID,
		Ref:          post.Ref,
		Content:      post.Content,
		AuthorID:     post.Author.ID,
		AuthorHandle: post.Author.Handle,
		AuthorName:   post.Author.DisplayName,
		CreatedAt:    post.CreatedAt,
		Stats: Stats{
			LikeCount:     post.LikeCount,
			CommentCount:  post.CommentCount,
			BookmarkCount: post.BookmarkCount,
			RepostCount:   post.RepostCount,
		},
		ViewerState: ViewerState{
			HasLiked:      post.Liked,
			HasBookmarked: post.Bookmarked,
			FollowsAuthor: post.Following,
			LikeRef:       post.LikeRef,
			FollowRef:     post.FollowRef,
		},
	}
}
