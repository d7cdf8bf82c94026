// SPDX-License-Identifier: AGPL-3.0-only
package feed

import "sync"

type CursorState struct {
	Cursor  string
	HasMore bool
}

// CursorTracker holds the continuation token of one collection. An empty
// cursor means the first page.
type CursorTracker struct {
	mu      sync.Mutex
	cursor  string
	hasMore bool
	closed  bool
}

func NewCursorTracker() *CursorTracker {
	return &CursorTracker{hasMore: true}
}

func (t *CursorTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.cursor = ""
	t.hasMore = true
}

func (t *CursorTracker) Advance(next string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.cursor = next
	t.hasMore = next != ""
}

func (t *CursorTracker) State() CursorState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CursorState{Cursor: t.cursor, HasMore: t.hasMore}
}

// Close freezes the tracker. Later Reset and Advance calls are ignored.
func (t *CursorTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}
