// SPDX-License-Identifier: AGPL-3.0-only
package bluesky

import "time"

const (
	typeThreadViewPost = "app.bsky.feed.defs#threadViewPost"
	typeNotFoundPost   = "app.bsky.feed.defs#notFoundPost"
	typeBlockedPost    = "app.bsky.feed.defs#blockedPost"
	typeReasonRepost   = "app.bsky.feed.defs#reasonRepost"

	collectionPost   = "app.bsky.feed.post"
	collectionLike   = "app.bsky.feed.like"
	collectionFollow = "app.bsky.graph.follow"
)

type bskyAuthor struct {
	Did         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Viewer      struct {
		Following string `json:"following"`
	} `json:"viewer"`
}

type bskyRecordRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type bskyPost struct {
	URI    string     `json:"uri"`
	CID    string     `json:"cid"`
	Author bskyAuthor `json:"author"`
	Record struct {
		Type      string    `json:"$type"`
		CreatedAt time.Time `json:"createdAt"`
		Text      string    `json:"text"`
		Reply     *struct {
			Root   bskyRecordRef `json:"root"`
			Parent bskyRecordRef `json:"parent"`
		} `json:"reply,omitempty"`
	} `json:"record"`
	BookmarkCount int `json:"bookmarkCount"`
	ReplyCount    int `json:"replyCount"`
	RepostCount   int `json:"repostCount"`
	LikeCount     int `json:"likeCount"`
	QuoteCount    int `json:"quoteCount"`
	Viewer        struct {
		Like       string `json:"like"`
		Bookmarked bool   `json:"bookmarked"`
	} `json:"viewer"`
}

type bskyFeed struct {
	Feed []struct {
		Post   bskyPost `json:"post"`
		Reason *struct {
			Type string `json:"$type"`
			By   struct {
				Handle string `json:"handle"`
			} `json:"by"`
		} `json:"reason,omitempty"`
	} `json:"feed"`
	Cursor string `json:"cursor,omitempty"`
}

// bskyThreadNode is the union of threadViewPost, notFoundPost and
// blockedPost; only the fields threadViewPost carries are decoded.
type bskyThreadNode struct {
	Type    string           `json:"$type"`
	URI     string           `json:"uri"`
	Post    *bskyPost        `json:"post,omitempty"`
	Replies []bskyThreadNode `json:"replies,omitempty"`
}

type bskyThread struct {
	Thread bskyThreadNode `json:"thread"`
}

type bskyPosts struct {
	Posts []bskyPost `json:"posts"`
}

type createRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	Record     any    `json:"record"`
}

type deleteRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	Rkey       string `json:"rkey"`
}

type createRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type postRecord struct {
	Type      string     `json:"$type"`
	Text      string     `json:"text"`
	CreatedAt string     `json:"createdAt"`
	Reply     *replyRefs `json:"reply,omitempty"`
}

type replyRefs struct {
	Root   bskyRecordRef `json:"root"`
	Parent bskyRecordRef `json:"parent"`
}

type likeRecord struct {
	Type      string        `json:"$type"`
	Subject   bskyRecordRef `json:"subject"`
	CreatedAt string        `json:"createdAt"`
}

type followRecord struct {
	Type      string `json:"$type"`
	Subject   string `json:"subject"`
	CreatedAt string `json:"createdAt"`
}

type createSessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type createSessionResponse struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	Did        string `json:"did"`
}
