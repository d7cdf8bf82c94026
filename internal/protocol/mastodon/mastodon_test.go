package mastodon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux, store *session.Store) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(protocol.NewHTTPClient(5*time.Second), store, nil, srv.URL)
}

func loggedIn(t *testing.T) *session.Store {
	t.Helper()
	store := session.NewStore(nil)
	require.NoError(t, store.Set(session.Identity{ID: "1", AccessToken: "token"}))
	return store
}

func TestFetchPage_AccountStatuses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/lookup", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "alice", r.URL.Query().Get("acct"))
		_, _ = w.Write([]byte(`{"id": "42", "acct": "alice"}`))
	})
	mux.HandleFunc("/api/v1/accounts/42/statuses", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2", r.URL.Query().Get("limit"))
		require.Equal(t, "900", r.URL.Query().Get("max_id"))
		require.Equal(t, "true", r.URL.Query().Get("exclude_replies"))
		_, _ = w.Write([]byte(`[
			{"id": "800", "created_at": "2026-01-01T10:00:00Z", "content": "<p>Hello &amp; <a href=\"#\">world</a></p>",
			 "account": {"id": "42", "acct": "alice", "display_name": "Alice"},
			 "replies_count": 1, "reblogs_count": 2, "favourites_count": 5, "quotes_count": 1, "favourited": true},
			{"id": "799", "created_at": "2026-01-01T09:00:00Z", "content": "",
			 "account": {"id": "42", "acct": "alice"},
			 "reblog": {"id": "500", "created_at": "2025-12-31T09:00:00Z", "content": "<p>boost</p>", "account": {"id": "7", "acct": "bob@example.org"}}}
		]`))
	})

	client := newTestClient(t, mux, session.NewStore(nil))
	page, err := client.FetchPage(context.Background(), protocol.FeedSubject("@alice"), "900", 2)
	require.NoError(t, err)
	require.Equal(t, "799", page.NextCursor)
	require.Len(t, page.Records, 2)

	first := page.Records[0]
	require.Equal(t, protocol.RecordPost, first.Type)
	require.Equal(t, "800", first.Post.ID)
	require.Equal(t, "Hello & world", first.Post.Content)
	require.Equal(t, 5, first.Post.LikeCount)
	require.Equal(t, 3, first.Post.RepostCount)
	require.True(t, first.Post.Liked)

	require.Equal(t, protocol.RecordRepost, page.Records[1].Type)
	require.Equal(t, "500", page.Records[1].Post.ID)
}

func TestFetchPage_ShortPageEndsCursor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/timelines/home", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id": "1", "account": {"id": "2"}}]`))
	})

	client := newTestClient(t, mux, loggedIn(t))
	page, err := client.FetchPage(context.Background(), protocol.FeedSubject(""), "", 20)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	require.Empty(t, page.NextCursor)
}

func TestFetchPage_HomeRequiresIdentity(t *testing.T) {
	client := newTestClient(t, http.NewServeMux(), session.NewStore(nil))
	_, err := client.FetchPage(context.Background(), protocol.FeedSubject(""), "", 20)
	require.ErrorIs(t, err, protocol.ErrUnauthenticated)
}

func TestFetchPage_DirectRepliesOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statuses/100/context", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ancestors": [], "descendants": [
			{"id": "101", "in_reply_to_id": "100", "content": "<p>direct</p>", "account": {"id": "3"}},
			{"id": "102", "in_reply_to_id": "101", "content": "<p>nested</p>", "account": {"id": "4"}}
		]}`))
	})

	client := newTestClient(t, mux, session.NewStore(nil))
	page, err := client.FetchPage(context.Background(), protocol.CommentsSubject("100"), "", 20)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	require.Equal(t, protocol.RecordComment, page.Records[0].Type)
	require.Equal(t, "direct", page.Records[0].Post.Content)
}

func TestSubmitWrite_Comment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statuses", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "100", body["in_reply_to_id"])
		require.Equal(t, "hi", body["status"])
		_, _ = w.Write([]byte(`{"id": "103", "created_at": "2026-01-01T11:00:00Z"}`))
	})

	client := newTestClient(t, mux, loggedIn(t))
	receipt, err := client.SubmitWrite(context.Background(), protocol.CommentsSubject("100"),
		protocol.WritePayload{Kind: protocol.WriteComment, Content: "hi"})
	require.NoError(t, err)
	require.Equal(t, "103", receipt.ID)
	require.Equal(t, time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC), receipt.Timestamp)
}

func TestSubmitWrite_Toggles(t *testing.T) {
	var hits []string
	mux := http.NewServeMux()
	for _, path := range []string{
		"/api/v1/statuses/5/favourite",
		"/api/v1/statuses/5/unbookmark",
		"/api/v1/accounts/9/follow",
	} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, r.URL.Path)
			_, _ = w.Write([]byte(`{"id": "9", "following": true}`))
		})
	}

	client := newTestClient(t, mux, loggedIn(t))
	ctx := context.Background()
	subject := protocol.FeedSubject("")

	_, err := client.SubmitWrite(ctx, subject, protocol.WritePayload{Kind: protocol.WriteLike, TargetID: "5"})
	require.NoError(t, err)
	_, err = client.SubmitWrite(ctx, subject, protocol.WritePayload{Kind: protocol.WriteUnbookmark, TargetID: "5"})
	require.NoError(t, err)
	receipt, err := client.SubmitWrite(ctx, subject, protocol.WritePayload{Kind: protocol.WriteFollow, TargetID: "9"})
	require.NoError(t, err)
	require.Equal(t, "9", receipt.ID)

	require.Equal(t, []string{"/api/v1/statuses/5/favourite", "/api/v1/statuses/5/unbookmark", "/api/v1/accounts/9/follow"}, hits)
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/verify_credentials", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id": "1", "acct": "me", "display_name": "Me"}`))
	})

	client := newTestClient(t, mux, session.NewStore(nil))
	account, err := client.Login(context.Background(), "@me", "secret")
	require.NoError(t, err)
	require.Equal(t, "1", account.ID)
	require.Equal(t, "secret", account.AccessToken)
	require.True(t, account.ExpiresAt.IsZero())

	_, err = client.Login(context.Background(), "someone-else", "secret")
	require.Error(t, err)

	_, err = client.Login(context.Background(), "me", "")
	require.Error(t, err)
}

func TestStripHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraphs and breaks", "<p>a</p><p>b<br>c</p>", "a b c"},
		{"empty", "", ""},
		{
			"mention and hashtag",
			`<p>hi <span class="h-card" translate="no"><a href="https://example.org/@bob" class="u-url mention">@<span>bob</span></a></span> see <a href="https://example.org/tags/golang" class="mention hashtag" rel="tag">#<span>golang</span></a></p>`,
			"hi @bob see #golang",
		},
		{
			"shortened link",
			`<p><a href="https://example.com/a/long/path"><span class="invisible">https://</span><span class="ellipsis">example.com/a/lo</span><span class="invisible">ng/path</span></a></p>`,
			"https://example.com/a/long/path",
		},
		{"entities", "<p>fish &amp; chips</p><ul><li>one</li><li>two</li></ul>", "fish & chips one two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, stripHTMLToText(tt.in))
		})
	}
}

func TestFetchPage_FollowState(t *testing.T) {
	var relationshipCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statuses/100/context", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"descendants": [
			{"id": "101", "in_reply_to_id": "100", "content": "<p>a</p>", "account": {"id": "7", "acct": "bob@example.org"}},
			{"id": "102", "in_reply_to_id": "100", "content": "<p>b</p>", "account": {"id": "7", "acct": "bob@example.org"}},
			{"id": "103", "in_reply_to_id": "100", "content": "<p>c</p>", "account": {"id": "8", "acct": "carol"}},
			{"id": "104", "in_reply_to_id": "100", "content": "<p>mine</p>", "account": {"id": "1", "acct": "me"}}
		]}`))
	})
	mux.HandleFunc("/api/v1/accounts/relationships", func(w http.ResponseWriter, r *http.Request) {
		relationshipCalls++
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.Equal(t, []string{"7", "8"}, r.URL.Query()["id[]"])
		_, _ = w.Write([]byte(`[{"id": "7", "following": true}, {"id": "8", "following": false}]`))
	})

	client := newTestClient(t, mux, loggedIn(t))
	page, err := client.FetchPage(context.Background(), protocol.CommentsSubject("100"), "", 20)
	require.NoError(t, err)
	require.Equal(t, 1, relationshipCalls)
	require.Len(t, page.Records, 4)

	require.True(t, page.Records[0].Post.Following)
	require.Equal(t, "7", page.Records[0].Post.FollowRef)
	require.True(t, page.Records[1].Post.Following)
	require.False(t, page.Records[2].Post.Following)
	require.Empty(t, page.Records[2].Post.FollowRef)
	require.False(t, page.Records[3].Post.Following)
}

func TestFetchPage_FollowStateBestEffort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statuses/100/context", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"descendants": [{"id": "101", "in_reply_to_id": "100", "account": {"id": "7"}}]}`))
	})
	mux.HandleFunc("/api/v1/accounts/relationships", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := newTestClient(t, mux, loggedIn(t))
	page, err := client.FetchPage(context.Background(), protocol.CommentsSubject("100"), "", 20)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	require.False(t, page.Records[0].Post.Following)
}

func TestFetchPage_AnonymousSkipsRelationships(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statuses/100/context", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"descendants": [{"id": "101", "in_reply_to_id": "100", "account": {"id": "7"}}]}`))
	})
	mux.HandleFunc("/api/v1/accounts/relationships", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("relationships must not be requested without an identity")
	})

	client := newTestClient(t, mux, session.NewStore(nil))
	_, err := client.FetchPage(context.Background(), protocol.CommentsSubject("100"), "", 20)
	require.NoError(t, err)
}
