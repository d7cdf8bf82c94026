// SPDX-License-Identifier: AGPL-3.0-only

// Package bluesky implements protocol.Client over AT Protocol XRPC.
package bluesky

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
	"go.uber.org/zap"
)

const (
	NetworkName = "Bluesky"

	DefaultServiceURL = "https://bsky.social"
	DefaultAppViewURL = "https://public.api.bsky.app"

	maxLimit = 100
)

type Client struct {
	http       *protocol.HTTPClient
	serviceURL string
	appViewURL string
	session    session.Context
	now        func() time.Time
	log        *zap.SugaredLogger
}

type Options struct {
	ServiceURL string
	AppViewURL string
	Now        func() time.Time
}

func New(c *protocol.HTTPClient, sess session.Context, logger *zap.SugaredLogger, opts Options) *Client {
	if opts.ServiceURL == "" {
		opts.ServiceURL = DefaultServiceURL
	}
	if opts.AppViewURL == "" {
		opts.AppViewURL = DefaultAppViewURL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		http:       c,
		serviceURL: strings.TrimRight(opts.ServiceURL, "/"),
		appViewURL: strings.TrimRight(opts.AppViewURL, "/"),
		session:    sess,
		now:        opts.Now,
		log:        logger,
	}
}

func (c *Client) Network() string {
	return NetworkName
}

// query issues an XRPC query. Authenticated queries go through the PDS,
// which proxies app.bsky.* to the AppView with viewer state attached.
func (c *Client) query(ctx context.Context, method string, params url.Values, out any) error {
	base := c.appViewURL
	headers := map[string]string{}
	if identity, ok := c.identity(); ok {
		base = c.serviceURL
		headers["Authorization"] = "Bearer " + identity.AccessToken
	}
	endpoint := fmt.Sprintf("%s/xrpc/%s?%s", base, method, params.Encode())
	return c.http.DoJSON(ctx, http.MethodGet, endpoint, headers, nil, out)
}

func (c *Client) procedure(ctx context.Context, method string, body, out any) error {
	identity, ok := c.identity()
	if !ok {
		return protocol.ErrUnauthenticated
	}
	endpoint := fmt.Sprintf("%s/xrpc/%s", c.serviceURL, method)
	headers := map[string]string{"Authorization": "Bearer " + identity.AccessToken}
	return c.http.DoJSON(ctx, http.MethodPost, endpoint, headers, body, out)
}

func (c *Client) identity() (session.Identity, bool) {
	if c.session == nil {
		return session.Identity{}, false
	}
	return c.session.Current()
}

func (c *Client) FetchPage(ctx context.Context, subject protocol.Subject, cursor string, limit int) (*protocol.Page, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	switch subject.Kind {
	case protocol.SubjectComments:
		return c.fetchReplies(ctx, subject.PostID)
	default:
		return c.fetchFeed(ctx, subject.Filter, cursor, limit)
	}
}

func (c *Client) fetchFeed(ctx context.Context, filter protocol.FeedFilter, cursor string, limit int) (*protocol.Page, error) {

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	method := "app.bsky.feed.getTimeline"
	if filter.Author != "" {
		method = "app.bsky.feed.getAuthorFeed"
		params.Set("actor", filter.Author)
		params.Set("filter", "posts_no_replies")
	} else if _, ok := c.identity(); !ok {
		return nil, protocol.ErrUnauthenticated
	}

	var feed bskyFeed
	if err := c.query(ctx, method, params, &feed); err != nil {
		return nil, err
	}

	page := &protocol.Page{
		Records:    make([]protocol.Record, 0, len(feed.Feed)),
		NextCursor: feed.Cursor,
	}

	for _, item := range feed.Feed {
		recordType := protocol.RecordPost
		if item.Reason != nil && item.Reason.Type == typeReasonRepost && item.Reason.By.Handle != item.Post.Author.Handle {
			recordType = protocol.RecordRepost
		}
		view := toPostView(item.Post)
		page.Records = append(page.Records, protocol.Record{Type: recordType, Post: &view})
	}

	return page, nil
}

func (c *Client) fetchReplies(ctx context.Context, postURI string) (*protocol.Page, error) {

	params := url.Values{}
	params.Set("uri", postURI)
	params.Set("depth", "1")
	params.Set("parentHeight", "0")

	var thread bskyThread
	if err := c.query(ctx, "app.bsky.feed.getPostThread", params, &thread); err != nil {
		return nil, err
	}

	switch thread.Thread.Type {
	case typeThreadViewPost:
	case typeNotFoundPost:
		return nil, fmt.Errorf("post %s not found", postURI)
	case typeBlockedPost:
		return nil, fmt.Errorf("post %s is blocked", postURI)
	default:
		return nil, fmt.Errorf("unexpected thread type %q", thread.Thread.Type)
	}

	page := &protocol.Page{Records: make([]protocol.Record, 0, len(thread.Thread.Replies))}
	for _, node := range thread.Thread.Replies {
		page.Records = append(page.Records, toReplyRecord(node))
	}
	return page, nil
}

func toReplyRecord(node bskyThreadNode) protocol.Record {
	switch node.Type {
	case typeThreadViewPost:
		if node.Post == nil {
			return protocol.Record{Type: protocol.RecordUnknown}
		}
		view := toPostView(*node.Post)
		return protocol.Record{Type: protocol.RecordComment, Post: &view}
	case typeNotFoundPost:
		return protocol.Record{Type: protocol.RecordNotFound}
	case typeBlockedPost:
		return protocol.Record{Type: protocol.RecordBlocked}
	default:
		return protocol.Record{Type: protocol.RecordUnknown}
	}
}

func toPostView(p bskyPost) protocol.PostView {
	return protocol.PostView{
		ID:      p.URI,
		Ref:     p.CID,
		Content: p.Record.Text,
		Author: protocol.Author{
			ID:          p.Author.Did,
			Handle:      p.Author.Handle,
			DisplayName: p.Author.DisplayName,
		},
		CreatedAt:     p.Record.CreatedAt,
		LikeCount:     p.LikeCount,
		CommentCount:  p.ReplyCount,
		BookmarkCount: p.BookmarkCount,
		RepostCount:   p.RepostCount + p.QuoteCount,
		Liked:         p.Viewer.Like != "",
		LikeRef:       p.Viewer.Like,
		Bookmarked:    p.Viewer.Bookmarked,
		Following:     p.Author.Viewer.Following != "",
		FollowRef:     p.Author.Viewer.Following,
	}
}

var _ protocol.Client = (*Client)(nil)
