package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type pagedClient struct {
	pages   map[string]*protocol.Page
	cursors []string
}

func (c *pagedClient) Network() string { return "Bluesky" }

func (c *pagedClient) FetchPage(_ context.Context, _ protocol.Subject, cursor string, _ int) (*protocol.Page, error) {
	c.cursors = append(c.cursors, cursor)
	return c.pages[cursor], nil
}

func (c *pagedClient) SubmitWrite(context.Context, protocol.Subject, protocol.WritePayload) (*protocol.WriteReceipt, error) {
	return &protocol.WriteReceipt{ID: "x"}, nil
}

func (c *pagedClient) Login(_ context.Context, identifier, secret string) (*protocol.Account, error) {
	return &protocol.Account{ID: "did:plc:me", Handle: identifier, AccessToken: secret}, nil
}

func post(rkey, handle string, age time.Duration, liked bool) protocol.Record {
	return protocol.Record{Type: protocol.RecordPost, Post: &protocol.PostView{
		ID:        "at://did:plc:" + handle + "/app.bsky.feed.post/" + rkey,
		Content:   "post " + rkey,
		Author:    protocol.Author{ID: "did:plc:" + handle, Handle: handle + ".test", DisplayName: handle},
		CreatedAt: now.Add(-age),
		LikeCount: 3,
		Liked:     liked,
	}}
}

func TestParseBrowseFlags(t *testing.T) {
	opts, err := ParseBrowseFlags([]string{"--author", "alice.test", "--pages", "2"})
	require.NoError(t, err)
	require.Equal(t, protocol.FeedSubject("alice.test"), opts.Subject())
	require.Equal(t, 2, opts.Pages)

	opts, err = ParseBrowseFlags([]string{"--post", "at://x/app.bsky.feed.post/1"})
	require.NoError(t, err)
	require.Equal(t, protocol.SubjectComments, opts.Subject().Kind)

	_, err = ParseBrowseFlags([]string{"--pages", "0"})
	require.Error(t, err)
	_, err = ParseBrowseFlags([]string{"--post", "p", "--author", "a"})
	require.Error(t, err)
}

func TestBrowse_PrintsPages(t *testing.T) {
	client := &pagedClient{pages: map[string]*protocol.Page{
		"":   {Records: []protocol.Record{post("1", "alice", 2*time.Hour, true)}, NextCursor: "c1"},
		"c1": {Records: []protocol.Record{post("2", "bob", 3*24*time.Hour, false)}, NextCursor: "c2"},
	}}
	var out bytes.Buffer
	b := &Browser{
		Client: client,
		Auth:   client,
		Store:  session.NewStore(nil),
		Out:    &out,
		Prompt: func(string) (string, error) { return "token", nil },
		Now:    func() time.Time { return now },
	}

	err := b.Browse(context.Background(), BrowseOptions{Identifier: "me.test", Pages: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"", "c1"}, client.cursors)

	text := out.String()
	require.Contains(t, text, "Logged in as me.test")
	require.Contains(t, text, "alice (@alice.test) · 2 hours ago")
	require.Contains(t, text, "bob (@bob.test) · 3 days ago")
	require.Contains(t, text, "[liked]")
	require.Contains(t, text, "https://bsky.app/profile/alice.test/post/1")
	require.Contains(t, text, "2 items, more available")
}

func TestBrowse_AnonymousStopsAtLastPage(t *testing.T) {
	client := &pagedClient{pages: map[string]*protocol.Page{
		"": {Records: []protocol.Record{post("1", "alice", time.Minute, true)}},
	}}
	var out bytes.Buffer
	b := &Browser{Client: client, Auth: client, Store: session.NewStore(nil), Out: &out, Now: func() time.Time { return now }}

	require.NoError(t, b.Browse(context.Background(), BrowseOptions{Pages: 5}))
	require.Equal(t, []string{""}, client.cursors)
	require.NotContains(t, out.String(), "[liked]")
	require.Contains(t, out.String(), "1 items, end of feed")
}
