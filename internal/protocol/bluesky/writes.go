// SPDX-License-Identifier: AGPL-3.0-only
package bluesky

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
)

func (c *Client) SubmitWrite(ctx context.Context, subject protocol.Subject, payload protocol.WritePayload) (*protocol.WriteReceipt, error) {
	identity, ok := c.identity()
	if !ok {
		return nil, protocol.ErrUnauthenticated
	}

	createdAt := c.now().UTC()
	stamp := createdAt.Format(time.RFC3339Nano)

	switch payload.Kind {
	case protocol.WriteComment:
		if subject.Kind != protocol.SubjectComments {
			return nil, errors.New("comments can only be written to a comments subject")
		}
		if strings.TrimSpace(payload.Content) == "" {
			return nil, errors.New("comment content is empty")
		}
		reply, err := c.resolveReply(ctx, subject.PostID)
		if err != nil {
			return nil, err
		}
		return c.createRecord(ctx, identity, collectionPost, postRecord{
			Type:      collectionPost,
			Text:      payload.Content,
			CreatedAt: stamp,
			Reply:     reply,
		}, createdAt)

	case protocol.WriteLike:
		return c.createRecord(ctx, identity, collectionLike, likeRecord{
			Type:      collectionLike,
			Subject:   bskyRecordRef{URI: payload.TargetID, CID: payload.TargetRef},
			CreatedAt: stamp,
		}, createdAt)

	case protocol.WriteUnlike:
		return c.deleteRecord(ctx, identity, collectionLike, payload.RecordRef, createdAt)

	case protocol.WriteFollow:
		return c.createRecord(ctx, identity, collectionFollow, followRecord{
			Type:      collectionFollow,
			Subject:   payload.TargetID,
			CreatedAt: stamp,
		}, createdAt)

	case protocol.WriteUnfollow:
		return c.deleteRecord(ctx, identity, collectionFollow, payload.RecordRef, createdAt)

	case protocol.WriteBookmark:
		err := c.procedure(ctx, "app.bsky.bookmark.createBookmark", bskyRecordRef{URI: payload.TargetID, CID: payload.TargetRef}, nil)
		if err != nil {
			return nil, err
		}
		return &protocol.WriteReceipt{ID: payload.TargetID, Timestamp: createdAt}, nil

	case protocol.WriteUnbookmark:
		err := c.procedure(ctx, "app.bsky.bookmark.deleteBookmark", map[string]string{"uri": payload.TargetID}, nil)
		if err != nil {
			return nil, err
		}
		return &protocol.WriteReceipt{ID: payload.TargetID, Timestamp: createdAt}, nil

	default:
		return nil, fmt.Errorf("unsupported write kind %q", payload.Kind)
	}
}

// resolveReply builds the root/parent refs a reply record needs.
func (c *Client) resolveReply(ctx context.Context, parentURI string) (*replyRefs, error) {
	params := url.Values{}
	params.Set("uris", parentURI)

	var posts bskyPosts
	if err := c.query(ctx, "app.bsky.feed.getPosts", params, &posts); err != nil {
		return nil, fmt.Errorf("resolve parent post: %w", err)
	}
	if len(posts.Posts) == 0 {
		return nil, fmt.Errorf("parent post %s not found", parentURI)
	}

	parent := posts.Posts[0]
	refs := &replyRefs{
		Root:   bskyRecordRef{URI: parent.URI, CID: parent.CID},
		Parent: bskyRecordRef{URI: parent.URI, CID: parent.CID},
	}
	if parent.Record.Reply != nil && parent.Record.Reply.Root.URI != "" {
		refs.Root = parent.Record.Reply.Root
	}
	return refs, nil
}

func (c *Client) createRecord(ctx context.Context, identity session.Identity, collection string, record any, createdAt time.Time) (*protocol.WriteReceipt, error) {
	var out createRecordResponse
	err := c.procedure(ctx, "com.atproto.repo.createRecord", createRecordRequest{
		Repo:       identity.ID,
		Collection: collection,
		Record:     record,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.URI == "" {
		return nil, errors.New("createRecord returned no uri")
	}
	return &protocol.WriteReceipt{ID: out.URI, Timestamp: createdAt}, nil
}

func (c *Client) deleteRecord(ctx context.Context, identity session.Identity, collection, recordURI string, createdAt time.Time) (*protocol.WriteReceipt, error) {
	rkey := recordKey(recordURI)
	if rkey == "" {
		return nil, fmt.Errorf("invalid record uri %q", recordURI)
	}
	err := c.procedure(ctx, "com.atproto.repo.deleteRecord", deleteRecordRequest{
		Repo:       identity.ID,
		Collection: collection,
		Rkey:       rkey,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &protocol.WriteReceipt{ID: recordURI, Timestamp: createdAt}, nil
}

// recordKey returns the rkey of at://<did>/<collection>/<rkey>.
func recordKey(uri string) string {
	if !strings.HasPrefix(uri, "at://") {
		return ""
	}
	uriSplit := strings.Split(strings.TrimPrefix(uri, "at://"), "/")
	if len(uriSplit) != 3 {
		return ""
	}
	return uriSplit[2]
}

// Login creates an app-password session.
func (c *Client) Login(ctx context.Context, identifier, secret string) (*protocol.Account, error) {
	if identifier == "" || secret == "" {
		return nil, errors.New("identifier and password are required")
	}

	var out createSessionResponse
	endpoint := c.serviceURL + "/xrpc/com.atproto.server.createSession"
	err := c.http.DoJSON(ctx, "POST", endpoint, nil, createSessionRequest{
		Identifier: identifier,
		Password:   secret,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	account := &protocol.Account{
		ID:           out.Did,
		Handle:       out.Handle,
		AccessToken:  out.AccessJwt,
		RefreshToken: out.RefreshJwt,
	}

	expiresAt, err := session.TokenExpiry(out.AccessJwt)
	if err != nil {
		c.log.Warnw("Bluesky: access token expiry unreadable", "handle", out.Handle, "error", err)
	} else {
		account.ExpiresAt = expiresAt
	}

	return account, nil
}

var _ protocol.Authenticator = (*Client)(nil)
