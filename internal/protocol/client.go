// SPDX-License-Identifier: AGPL-3.0-only

// Package protocol describes the external social protocol a feed talks to.
// Adapters for concrete networks live in sub-packages.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnauthenticated = errors.New("protocol: no authenticated identity")

type Client interface {
	Network() string
	FetchPage(ctx context.Context, subject Subject, cursor string, limit int) (*Page, error)
	SubmitWrite(ctx context.Context, subject Subject, payload WritePayload) (*WriteReceipt, error)
}

// Authenticator exchanges user credentials for an Account.
type Authenticator interface {
	Login(ctx context.Context, identifier, secret string) (*Account, error)
}

type SubjectKind string

const (
	SubjectFeed     SubjectKind = "feed"
	SubjectComments SubjectKind = "comments"
)

type FeedFilter struct {
	Author string
}

// Subject is the entity a paginated collection is scoped to.
type Subject struct {
	Kind   SubjectKind
	PostID string
	Filter FeedFilter
}

func FeedSubject(author string) Subject {
	return Subject{Kind: SubjectFeed, Filter: FeedFilter{Author: strings.TrimSpace(author)}}
}

func CommentsSubject(postID string) Subject {
	return Subject{Kind: SubjectComments, PostID: strings.TrimSpace(postID)}
}

func (s Subject) Key() string {
	switch s.Kind {
	case SubjectComments:
		return "comments:" + s.PostID
	default:
		return "feed:" + s.Filter.Author
	}
}

func (s Subject) Validate() error {
	switch s.Kind {
	case SubjectFeed:
		return nil
	case SubjectComments:
		if s.PostID == "" {
			return errors.New("comments subject requires a post id")
		}
		return nil
	default:
		return fmt.Errorf("unknown subject kind %q", s.Kind)
	}
}

// ExpectedRecord is the only record variant a subject's collection holds.
func (s Subject) ExpectedRecord() RecordType {
	if s.Kind == SubjectComments {
		return RecordComment
	}
	return RecordPost
}

type RecordType string

const (
	RecordPost     RecordType = "post"
	RecordComment  RecordType = "comment"
	RecordRepost   RecordType = "repost"
	RecordNotFound RecordType = "not_found"
	RecordBlocked  RecordType = "blocked"
	RecordUnknown  RecordType = "unknown"
)

// Record is one entry of a heterogeneous page. Post is set for the post,
// comment and repost variants only.
type Record struct {
	Type RecordType
	Post *PostView
}

type Author struct {
	ID          string
	Handle      string
	DisplayName string
}

type PostView struct {
	ID            string
	Ref           string
	Content       string
	Author        Author
	CreatedAt     time.Time
	LikeCount     int
	CommentCount  int
	BookmarkCount int
	RepostCount   int
	Liked         bool
	LikeRef       string
	Bookmarked    bool
	Following     bool
	FollowRef     string
}

type Page struct {
	Records    []Record
	NextCursor string
}

type WriteKind string

const (
	WriteComment    WriteKind = "comment"
	WriteLike       WriteKind = "like"
	WriteUnlike     WriteKind = "unlike"
	WriteBookmark   WriteKind = "bookmark"
	WriteUnbookmark WriteKind = "unbookmark"
	WriteFollow     WriteKind = "follow"
	WriteUnfollow   WriteKind = "unfollow"
)

// WritePayload carries one write. TargetID is the post (or author, for
// follows) acted upon; TargetRef its content reference where the network
// needs one; RecordRef the record to delete for undo kinds.
type WritePayload struct {
	Kind      WriteKind
	Content   string
	TargetID  string
	TargetRef string
	RecordRef string
}

type WriteReceipt struct {
	ID        string
	Timestamp time.Time
}

type Account struct {
	ID           string
	Handle       string
	DisplayName  string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
