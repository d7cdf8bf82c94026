package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
	"github.com/stretchr/testify/require"
)

func loadedFeed(t *testing.T, client *fakeClient, viewer session.Context) *Session {
	t.Helper()
	client.setPages(page("", post("a", "bob"), post("b", "bob"), post("c", "carol")))
	s := newFeedSession(t, client, viewer)
	_, err := s.LoadFirst(context.Background())
	require.NoError(t, err)
	return s
}

func TestToggleLike(t *testing.T) {
	client := &fakeClient{}
	s := loadedFeed(t, client, viewer(t))
	ctx := context.Background()

	liked, err := s.ToggleLike(ctx, "a")
	require.NoError(t, err)
	require.True(t, liked.ViewerState.HasLiked)
	require.Equal(t, 2, liked.Stats.LikeCount)
	require.Equal(t, "rcpt-like", liked.ViewerState.LikeRef)

	unliked, err := s.ToggleLike(ctx, "a")
	require.NoError(t, err)
	require.False(t, unliked.ViewerState.HasLiked)
	require.Equal(t, 1, unliked.Stats.LikeCount)
	require.Empty(t, unliked.ViewerState.LikeRef)

	writes := client.writesSeen()
	require.Equal(t, []protocol.WritePayload{
		{Kind: protocol.WriteLike, TargetID: "a", TargetRef: "cid-a"},
		{Kind: protocol.WriteUnlike, TargetID: "a", TargetRef: "cid-a", RecordRef: "rcpt-like"},
	}, writes)
}

func TestToggleLike_RejectedRestoresPriorState(t *testing.T) {
	client := &fakeClient{}
	s := loadedFeed(t, client, viewer(t))
	before, _ := s.store.Get("a")

	client.writeErr = errors.New("rate limited")
	_, err := s.ToggleLike(context.Background(), "a")

	var rejected *WriteRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, protocol.WriteLike, rejected.Kind)

	after, _ := s.store.Get("a")
	require.Equal(t, before, after)
}

func TestToggleBookmark(t *testing.T) {
	client := &fakeClient{}
	s := loadedFeed(t, client, viewer(t))

	got, err := s.ToggleBookmark(context.Background(), "c")
	require.NoError(t, err)
	require.True(t, got.ViewerState.HasBookmarked)
	require.Equal(t, 1, got.Stats.BookmarkCount)

	client.writeErr = errors.New("boom")
	_, err = s.ToggleBookmark(context.Background(), "c")
	require.Error(t, err)

	after, _ := s.store.Get("c")
	require.True(t, after.ViewerState.HasBookmarked)
	require.Equal(t, 1, after.Stats.BookmarkCount)
}

func TestToggleFollow_AppliesToEveryItemByAuthor(t *testing.T) {
	client := &fakeClient{}
	s := loadedFeed(t, client, viewer(t))

	following, err := s.ToggleFollow(context.Background(), "bob")
	require.NoError(t, err)
	require.True(t, following)

	for _, it := range s.Items() {
		if it.AuthorID == "bob" {
			require.True(t, it.ViewerState.FollowsAuthor)
			require.Equal(t, "rcpt-follow", it.ViewerState.FollowRef)
		} else {
			require.False(t, it.ViewerState.FollowsAuthor)
		}
	}

	client.writeErr = errors.New("blocked")
	following, err = s.ToggleFollow(context.Background(), "bob")
	require.Error(t, err)
	require.True(t, following)

	for _, it := range s.Items() {
		if it.AuthorID == "bob" {
			require.True(t, it.ViewerState.FollowsAuthor)
			require.Equal(t, "rcpt-follow", it.ViewerState.FollowRef)
		}
	}
}

func TestToggles_RequireIdentityAndItem(t *testing.T) {
	client := &fakeClient{}
	anonymous := loadedFeed(t, client, session.NewStore(nil))

	_, err := anonymous.ToggleLike(context.Background(), "a")
	require.ErrorIs(t, err, ErrUnauthenticated)
	got, _ := anonymous.store.Get("a")
	require.False(t, got.ViewerState.HasLiked)

	s := loadedFeed(t, client, viewer(t))
	_, err = s.ToggleLike(context.Background(), "missing")
	require.ErrorIs(t, err, ErrItemNotFound)
	_, err = s.ToggleFollow(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrItemNotFound)

	require.Empty(t, client.writesSeen())
}
