// SPDX-License-Identifier: AGPL-3.0-only

// Package mastodon implements protocol.Client over the Mastodon REST API.
package mastodon

import (
	"context"
	"errors"
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
	NetworkName = "Mastodon"

	DefaultInstanceURL = "https://mastodon.social"

	maxLimit = 40
)

type mastAccount struct {
	ID          string `json:"id"`
	Acct        string `json:"acct"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type mastStatus struct {
	ID              string      `json:"id"`
	URI             string      `json:"uri"`
	CreatedAt       time.Time   `json:"created_at"`
	InReplyToID     *string     `json:"in_reply_to_id"`
	Content         string      `json:"content"`
	Account         mastAccount `json:"account"`
	RepliesCount    int         `json:"replies_count"`
	ReblogsCount    int         `json:"reblogs_count"`
	FavouritesCount int         `json:"favourites_count"`
	QuotesCount     int         `json:"quotes_count"`
	Favourited      bool        `json:"favourited"`
	Bookmarked      bool        `json:"bookmarked"`
	Reblog          *mastStatus `json:"reblog"`
}

type mastContext struct {
	Ancestors   []mastStatus `json:"ancestors"`
	Descendants []mastStatus `json:"descendants"`
}

type mastRelationship struct {
	ID        string `json:"id"`
	Following bool   `json:"following"`
}

type Client struct {
	http        *protocol.HTTPClient
	instanceURL string
	session     session.Context
	now         func() time.Time
	log         *zap.SugaredLogger
}

func New(c *protocol.HTTPClient, sess session.Context, logger *zap.SugaredLogger, instanceURL string) *Client {
	if instanceURL == "" {
		instanceURL = DefaultInstanceURL
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		http:        c,
		instanceURL: strings.TrimRight(instanceURL, "/"),
		session:     sess,
		now:         time.Now,
		log:         logger,
	}
}

func (c *Client) Network() string {
	return NetworkName
}

func (c *Client) headers(required bool) (map[string]string, error) {
	if c.session != nil {
		if identity, ok := c.session.Current(); ok {
			return map[string]string{"Authorization": "Bearer " + identity.AccessToken}, nil
		}
	}
	if required {
		return nil, protocol.ErrUnauthenticated
	}
	return nil, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, authRequired bool, out any) error {
	headers, err := c.headers(authRequired)
	if err != nil {
		return err
	}
	endpoint := c.instanceURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return c.http.DoJSON(ctx, http.MethodGet, endpoint, headers, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	headers, err := c.headers(true)
	if err != nil {
		return err
	}
	return c.http.DoJSON(ctx, http.MethodPost, c.instanceURL+path, headers, body, out)
}

func (c *Client) FetchPage(ctx context.Context, subject protocol.Subject, cursor string, limit int) (*protocol.Page, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	if subject.Kind == protocol.SubjectComments {
		return c.fetchReplies(ctx, subject.PostID)
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("max_id", cursor)
	}

	path := "/api/v1/timelines/home"
	authRequired := true
	if subject.Filter.Author != "" {
		accountID, err := c.lookupAccount(ctx, subject.Filter.Author)
		if err != nil {
			return nil, err
		}
		path = "/api/v1/accounts/" + url.PathEscape(accountID) + "/statuses"
		params.Set("exclude_replies", "true")
		params.Set("exclude_reblogs", "false")
		authRequired = false
	}

	var statuses []mastStatus
	if err := c.get(ctx, path, params, authRequired, &statuses); err != nil {
		return nil, err
	}

	page := &protocol.Page{Records: make([]protocol.Record, 0, len(statuses))}
	for _, status := range statuses {
		if status.Reblog != nil {
			view := toPostView(*status.Reblog)
			page.Records = append(page.Records, protocol.Record{Type: protocol.RecordRepost, Post: &view})
			continue
		}
		view := toPostView(status)
		page.Records = append(page.Records, protocol.Record{Type: protocol.RecordPost, Post: &view})
	}

	if len(statuses) >= limit {
		page.NextCursor = statuses[len(statuses)-1].ID
	}

	c.annotateFollows(ctx, page)
	return page, nil
}

func (c *Client) lookupAccount(ctx context.Context, acct string) (string, error) {
	params := url.Values{}
	params.Set("acct", strings.TrimPrefix(acct, "@"))

	var account mastAccount
	if err := c.get(ctx, "/api/v1/accounts/lookup", params, false, &account); err != nil {
		return "", fmt.Errorf("lookup account %s: %w", acct, err)
	}
	if account.ID == "" {
		return "", fmt.Errorf("account %s not found", acct)
	}
	return account.ID, nil
}

// fetchReplies returns the direct replies of a status. Deeper descendants
// belong to other threads and are skipped.
func (c *Client) fetchReplies(ctx context.Context, statusID string) (*protocol.Page, error) {
	var thread mastContext
	if err := c.get(ctx, "/api/v1/statuses/"+url.PathEscape(statusID)+"/context", nil, false, &thread); err != nil {
		return nil, err
	}

	page := &protocol.Page{Records: make([]protocol.Record, 0, len(thread.Descendants))}
	for _, status := range thread.Descendants {
		if status.InReplyToID == nil || *status.InReplyToID != statusID {
			continue
		}
		view := toPostView(status)
		page.Records = append(page.Records, protocol.Record{Type: protocol.RecordComment, Post: &view})
	}
	c.annotateFollows(ctx, page)
	return page, nil
}

// annotateFollows fills the viewer's follow state of every author on the
// page with one relationships call. Statuses carry no follow flag, and a
// failed lookup leaves the page unannotated rather than failing it.
func (c *Client) annotateFollows(ctx context.Context, page *protocol.Page) {
	if c.session == nil {
		return
	}
	identity, ok := c.session.Current()
	if !ok {
		return
	}

	params := url.Values{}
	seen := make(map[string]struct{})
	for _, record := range page.Records {
		if record.Post == nil {
			continue
		}
		id := record.Post.Author.ID
		if id == "" || id == identity.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		params.Add("id[]", id)
	}
	if len(seen) == 0 {
		return
	}

	var rels []mastRelationship
	if err := c.get(ctx, "/api/v1/accounts/relationships", params, true, &rels); err != nil {
		c.log.Warnw("Mastodon: relationships lookup failed", "accounts", len(seen), "error", err)
		return
	}

	following := make(map[string]bool, len(rels))
	for _, rel := range rels {
		following[rel.ID] = rel.Following
	}
	for _, record := range page.Records {
		if record.Post == nil || !following[record.Post.Author.ID] {
			continue
		}
		record.Post.Following = true
		record.Post.FollowRef = record.Post.Author.ID
	}
}

func toPostView(status mastStatus) protocol.PostView {
	return protocol.PostView{
		ID:      status.ID,
		Content: stripHTMLToText(status.Content),
		Author: protocol.Author{
			ID:          status.Account.ID,
			Handle:      status.Account.Acct,
			DisplayName: status.Account.DisplayName,
		},
		CreatedAt:    status.CreatedAt,
		LikeCount:    status.FavouritesCount,
		CommentCount: status.RepliesCount,
		RepostCount:  status.ReblogsCount + status.QuotesCount,
		Liked:        status.Favourited,
		Bookmarked:   status.Bookmarked,
	}
}

func (c *Client) SubmitWrite(ctx context.Context, subject protocol.Subject, payload protocol.WritePayload) (*protocol.WriteReceipt, error) {
	target := url.PathEscape(payload.TargetID)

	switch payload.Kind {
	case protocol.WriteComment:
		if subject.Kind != protocol.SubjectComments {
			return nil, errors.New("comments can only be written to a comments subject")
		}
		if strings.TrimSpace(payload.Content) == "" {
			return nil, errors.New("comment content is empty")
		}
		var status mastStatus
		err := c.post(ctx, "/api/v1/statuses", map[string]string{
			"status":         payload.Content,
			"in_reply_to_id": subject.PostID,
		}, &status)
		if err != nil {
			return nil, err
		}
		return c.statusReceipt(status), nil

	case protocol.WriteLike, protocol.WriteUnlike, protocol.WriteBookmark, protocol.WriteUnbookmark:
		var status mastStatus
		if err := c.post(ctx, "/api/v1/statuses/"+target+"/"+statusAction(payload.Kind), nil, &status); err != nil {
			return nil, err
		}
		return &protocol.WriteReceipt{ID: payload.TargetID, Timestamp: c.now().UTC()}, nil

	case protocol.WriteFollow, protocol.WriteUnfollow:
		action := "follow"
		if payload.Kind == protocol.WriteUnfollow {
			action = "unfollow"
		}
		var rel mastRelationship
		if err := c.post(ctx, "/api/v1/accounts/"+target+"/"+action, nil, &rel); err != nil {
			return nil, err
		}
		return &protocol.WriteReceipt{ID: rel.ID, Timestamp: c.now().UTC()}, nil

	default:
		return nil, fmt.Errorf("unsupported write kind %q", payload.Kind)
	}
}

func statusAction(kind protocol.WriteKind) string {
	switch kind {
	case protocol.WriteLike:
		return "favourite"
	case protocol.WriteUnlike:
		return "unfavourite"
	case protocol.WriteBookmark:
		return "bookmark"
	default:
		return "unbookmark"
	}
}

func (c *Client) statusReceipt(status mastStatus) *protocol.WriteReceipt {
	ts := status.CreatedAt
	if ts.IsZero() {
		ts = c.now().UTC()
	}
	return &protocol.WriteReceipt{ID: status.ID, Timestamp: ts}
}

// Login validates an access token. identifier, when given, must match the
// token's account.
func (c *Client) Login(ctx context.Context, identifier, secret string) (*protocol.Account, error) {
	if secret == "" {
		return nil, errors.New("access token is required")
	}

	var account mastAccount
	err := c.http.DoJSON(ctx, http.MethodGet, c.instanceURL+"/api/v1/accounts/verify_credentials",
		map[string]string{"Authorization": "Bearer " + secret}, nil, &account)
	if err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	if identifier != "" && !strings.EqualFold(strings.TrimPrefix(identifier, "@"), account.Acct) {
		return nil, fmt.Errorf("token belongs to %s, not %s", account.Acct, identifier)
	}

	return &protocol.Account{
		ID:          account.ID,
		Handle:      account.Acct,
		DisplayName: account.DisplayName,
		AccessToken: secret,
	}, nil
}

var (
	_ protocol.Client        = (*Client)(nil)
	_ protocol.Authenticator = (*Client)(nil)
)
