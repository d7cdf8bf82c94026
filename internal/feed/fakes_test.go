package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type pageResult struct {
	page *protocol.Page
	err  error
}

// fakeClient replays scripted pages in order; the last one repeats.
type fakeClient struct {
	mu        sync.Mutex
	pages     []pageResult
	fetches   []string
	writes    []protocol.WritePayload
	writeErr  error
	receiptID string
	fetchHook func(ctx context.Context, cursor string) error
}

func (f *fakeClient) Network() string { return "Fake" }

func (f *fakeClient) FetchPage(ctx context.Context, _ protocol.Subject, cursor string, _ int) (*protocol.Page, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, cursor)
	var res pageResult
	if len(f.pages) > 0 {
		res = f.pages[0]
		if len(f.pages) > 1 {
			f.pages = f.pages[1:]
		}
	}
	hook := f.fetchHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, cursor); err != nil {
			return nil, err
		}
	}
	if res.err != nil {
		return nil, res.err
	}
	if res.page == nil {
		return &protocol.Page{}, nil
	}
	return res.page, nil
}

func (f *fakeClient) SubmitWrite(_ context.Context, _ protocol.Subject, payload protocol.WritePayload) (*protocol.WriteReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, payload)
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	id := f.receiptID
	if id == "" {
		id = "rcpt-" + string(payload.Kind)
	}
	return &protocol.WriteReceipt{ID: id, Timestamp: baseTime}, nil
}

func (f *fakeClient) setPages(pages ...pageResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = pages
}

func (f *fakeClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

func (f *fakeClient) writesSeen() []protocol.WritePayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.WritePayload, len(f.writes))
	copy(out, f.writes)
	return out
}

func record(kind protocol.RecordType, id, author, content string) protocol.Record {
	return protocol.Record{Type: kind, Post: &protocol.PostView{
		ID:        id,
		Ref:       "cid-" + id,
		Content:   content,
		Author:    protocol.Author{ID: author, Handle: author + ".test"},
		CreatedAt: baseTime,
		LikeCount: 1,
	}}
}

func comment(id, author, content string) protocol.Record {
	return record(protocol.RecordComment, id, author, content)
}

func post(id, author string) protocol.Record {
	return record(protocol.RecordPost, id, author, "post "+id)
}

func page(next string, records ...protocol.Record) pageResult {
	return pageResult{page: &protocol.Page{Records: records, NextCursor: next}}
}

func viewer(t *testing.T) *session.Store {
	t.Helper()
	store := session.NewStore(nil)
	require.NoError(t, store.Set(session.Identity{ID: "me", Handle: "me.test", DisplayName: "Me", AccessToken: "token"}))
	return store
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func waitDone(t *testing.T, cycle *Cycle) {
	t.Helper()
	select {
	case <-cycle.Done():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "reconciliation cycle did not finish")
	}
}

func waitSleep(t *testing.T, sleeps <-chan time.Duration) time.Duration {
	t.Helper()
	select {
	case d := <-sleeps:
		return d
	case <-time.After(2 * time.Second):
		require.FailNow(t, "reconciler never scheduled a retry")
		return 0
	}
}

// blockingSleep parks each retry until release is closed or the cycle is
// cancelled, reporting the requested delay on the returned channel.
func blockingSleep(release <-chan struct{}) (SleepFunc, chan time.Duration) {
	sleeps := make(chan time.Duration, 16)
	return func(ctx context.Context, d time.Duration) error {
		sleeps <- d
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, sleeps
}

func (f *fakeClient) setReceipt(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptID = id
}

func (f *fakeClient) setFetchHook(hook func(ctx context.Context, cursor string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchHook = hook
}
