package view

import (
	"testing"
	"time"

	"github.com/ordinary-app/app-sub001/internal/feed"
	"github.com/stretchr/testify/require"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "Just now"},
		{45 * time.Second, "Just now"},
		{59*time.Second + 999*time.Millisecond, "Just now"},
		{60 * time.Second, "1 minute ago"},
		{90 * time.Second, "1 minute ago"},
		{59 * time.Minute, "59 minutes ago"},
		{2 * time.Hour, "2 hours ago"},
		{23*time.Hour + 59*time.Minute, "23 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{6 * 24 * time.Hour, "6 days ago"},
		{7 * 24 * time.Hour, "1 week ago"},
		{29 * 24 * time.Hour, "4 weeks ago"},
		{30 * 24 * time.Hour, "1 month ago"},
		{364 * 24 * time.Hour, "12 months ago"},
		{365 * 24 * time.Hour, "1 year ago"},
		{400 * 24 * time.Hour, "1 year ago"},
		{800 * 24 * time.Hour, "2 years ago"},
		{-time.Hour, "Just now"},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.elapsed.String(), func(t *testing.T) {
			require.Equal(t, tt.want, RelativeTime(now.Add(-tt.elapsed), now))
		})
	}
}

func TestProject(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	item := feed.Item{
		ID:           "at://did:plc:bob/app.bsky.feed.post/3k1",
		Content:      "hello",
		AuthorID:     "did:plc:bob",
		AuthorHandle: "bob.test",
		CreatedAt:    now.Add(-2 * time.Hour),
		Stats:        feed.Stats{LikeCount: 4, CommentCount: 1},
		ViewerState:  feed.ViewerState{HasLiked: true, FollowsAuthor: true},
	}

	got := Project(item, Context{ViewerID: "did:plc:me", Network: "Bluesky", Now: now})
	require.Equal(t, "bob.test", got.AuthorName)
	require.Equal(t, "2 hours ago", got.RelativeTime)
	require.True(t, got.HasLikedByViewer)
	require.True(t, got.HasFollowedAuthorByViewer)
	require.False(t, got.IsOwn)
	require.Equal(t, "https://bsky.app/profile/bob.test/post/3k1", got.URL)
	require.Equal(t, "https://bsky.app/profile/bob.test", got.AuthorURL)
	require.Equal(t, 4, got.LikeCount)

	anonymous := Project(item, Context{Now: now})
	require.False(t, anonymous.HasLikedByViewer)
	require.False(t, anonymous.HasFollowedAuthorByViewer)
	require.Empty(t, anonymous.URL)
}

func TestProject_Tentative(t *testing.T) {
	now := time.Now()
	item := feed.Item{ID: feed.NewTentativeID(), AuthorID: "me", AuthorName: "Me", CreatedAt: now, Tentative: true}

	got := Project(item, Context{ViewerID: "me", Network: "Bluesky", Now: now})
	require.True(t, got.Pending)
	require.True(t, got.IsOwn)
	require.Equal(t, "Me", got.AuthorName)
	require.Equal(t, "Just now", got.RelativeTime)
	require.Empty(t, got.URL)
}
