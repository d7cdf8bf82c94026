// SPDX-License-Identifier: AGPL-3.0-only
package feed

import (
	"context"

	"github.com/ordinary-app/app-sub001/internal/metrics"
	"github.com/ordinary-app/app-sub001/internal/protocol"
)

func (s *Session) claimToggle(key string) bool {
	s.togglesMu.Lock()
	defer s.togglesMu.Unlock()
	if _, busy := s.toggles[key]; busy {
		return false
	}
	s.toggles[key] = struct{}{}
	return true
}

func (s *Session) releaseToggle(key string) {
	s.togglesMu.Lock()
	delete(s.toggles, key)
	s.togglesMu.Unlock()
}

func bump(n int, up bool) int {
	if up {
		return n + 1
	}
	if n > 0 {
		return n - 1
	}
	return 0
}

func (s *Session) authenticated() error {
	if _, ok := currentIdentity(s.viewer); !ok {
		return ErrUnauthenticated
	}
	return nil
}

func (s *Session) submitToggle(ctx context.Context, payload protocol.WritePayload) (*protocol.WriteReceipt, error) {
	receipt, err := s.client.SubmitWrite(ctx, s.subject, payload)
	if err != nil {
		metrics.WritesTotal.WithLabelValues(string(payload.Kind), "rejected").Inc()
		return nil, &WriteRejectedError{Kind: payload.Kind, Err: err}
	}
	metrics.WritesTotal.WithLabelValues(string(payload.Kind), "ok").Inc()
	return receipt, nil
}

// ToggleLike flips the viewer's like on an item optimistically. A rejected
// write restores the item's previous like state and count.
func (s *Session) ToggleLike(ctx context.Context, itemID string) (Item, error) {
	if s.isClosed() {
		return Item{}, ErrSessionClosed
	}
	if err := s.authenticated(); err != nil {
		return Item{}, err
	}
	key := "like:" + itemID
	if !s.claimToggle(key) {
		return Item{}, ErrToggleInFlight
	}
	defer s.releaseToggle(key)

	prior, ok := s.store.Get(itemID)
	if !ok || prior.Tentative {
		return Item{}, ErrItemNotFound
	}
	like := !prior.ViewerState.HasLiked

	s.store.Update(itemID, func(item *Item) {
		item.ViewerState.HasLiked = like
		item.Stats.LikeCount = bump(item.Stats.LikeCount, like)
	})

	kind := protocol.WriteLike
	if !like {
		kind = protocol.WriteUnlike
	}
	receipt, err := s.submitToggle(ctx, protocol.WritePayload{
		Kind:      kind,
		TargetID:  prior.ID,
		TargetRef: prior.Ref,
		RecordRef: prior.ViewerState.LikeRef,
	})
	if s.isClosed() {
		return Item{}, ErrSessionClosed
	}
	if err != nil {
		s.store.Update(itemID, func(item *Item) {
			item.ViewerState.HasLiked = prior.ViewerState.HasLiked
			item.ViewerState.LikeRef = prior.ViewerState.LikeRef
			item.Stats.LikeCount = prior.Stats.LikeCount
		})
		return Item{}, err
	}

	updated, _ := s.store.Update(itemID, func(item *Item) {
		if like {
			item.ViewerState.LikeRef = receipt.ID
		} else {
			item.ViewerState.LikeRef = ""
		}
	})
	return updated, nil
}

// ToggleBookmark flips the viewer's bookmark on an item optimistically.
func (s *Session) ToggleBookmark(ctx context.Context, itemID string) (Item, error) {
	if s.isClosed() {
		return Item{}, ErrSessionClosed
	}
	if err := s.authenticated(); err != nil {
		return Item{}, err
	}
	key := "bookmark:" + itemID
	if !s.claimToggle(key) {
		return Item{}, ErrToggleInFlight
	}
	defer s.releaseToggle(key)

	prior, ok := s.store.Get(itemID)
	if !ok || prior.Tentative {
		return Item{}, ErrItemNotFound
	}
	bookmark := !prior.ViewerState.HasBookmarked

	s.store.Update(itemID, func(item *Item) {
		item.ViewerState.HasBookmarked = bookmark
		item.Stats.BookmarkCount = bump(item.Stats.BookmarkCount, bookmark)
	})

	kind := protocol.WriteBookmark
	if !bookmark {
		kind = protocol.WriteUnbookmark
	}
	_, err := s.submitToggle(ctx, protocol.WritePayload{
		Kind:      kind,
		TargetID:  prior.ID,
		TargetRef: prior.Ref,
	})
	if s.isClosed() {
		return Item{}, ErrSessionClosed
	}
	if err != nil {
		s.store.Update(itemID, func(item *Item) {
			item.ViewerState.HasBookmarked = prior.ViewerState.HasBookmarked
			item.Stats.BookmarkCount = prior.Stats.BookmarkCount
		})
		return Item{}, err
	}

	updated, _ := s.store.Get(itemID)
	return updated, nil
}

// ToggleFollow flips whether the viewer follows authorID. Every loaded item
// by that author is updated together.
func (s *Session) ToggleFollow(ctx context.Context, authorID string) (bool, error) {
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	if err := s.authenticated(); err != nil {
		return false, err
	}
	key := "follow:" + authorID
	if !s.claimToggle(key) {
		return false, ErrToggleInFlight
	}
	defer s.releaseToggle(key)

	var prior *Item
	for _, item := range s.store.Items() {
		if item.AuthorID == authorID && !item.Tentative {
			prior = &item
			break
		}
	}
	if prior == nil {
		return false, ErrItemNotFound
	}
	follow := !prior.ViewerState.FollowsAuthor
	byAuthor := func(item Item) bool { return item.AuthorID == authorID }

	s.store.UpdateWhere(byAuthor, func(item *Item) {
		item.ViewerState.FollowsAuthor = follow
	})

	kind := protocol.WriteFollow
	if !follow {
		kind = protocol.WriteUnfollow
	}
	receipt, err := s.submitToggle(ctx, protocol.WritePayload{
		Kind:      kind,
		TargetID:  authorID,
		RecordRef: prior.ViewerState.FollowRef,
	})
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	if err != nil {
		s.store.UpdateWhere(byAuthor, func(item *Item) {
			item.ViewerState.FollowsAuthor = prior.ViewerState.FollowsAuthor
			item.ViewerState.FollowRef = prior.ViewerState.FollowRef
		})
		return prior.ViewerState.FollowsAuthor, err
	}

	ref := ""
	if follow {
		ref = receipt.ID
	}
	s.store.UpdateWhere(byAuthor, func(item *Item) {
		item.ViewerState.FollowRef = ref
	})
	return follow, nil
}
