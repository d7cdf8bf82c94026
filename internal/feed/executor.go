// SPDX-License-Identifier: AGPL-3.0-only
package feed

import (
	"context"
	"sync"

	"github.com/ordinary-app/app-sub001/internal/metrics"
	"github.com/ordinary-app/app-sub001/internal/protocol"
	"go.uber.org/zap"
)

type FetchResult struct {
	Items      []Item
	NextCursor string
	// Count is the number of items kept after normalization.
	Count   int
	Dropped int
}

// Executor issues one page fetch at a time for a subject and normalizes the
// tagged records into items. It never touches a Collection.
type Executor struct {
	client  protocol.Client
	subject protocol.Subject
	limit   int
	log     *zap.SugaredLogger

	mu             sync.Mutex
	inFlight       bool
	firstPageCount int
	firstPageSeen  bool
}

func NewExecutor(client protocol.Client, subject protocol.Subject, limit int, logger *zap.SugaredLogger) *Executor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Executor{
		client:  client,
		subject: subject,
		limit:   limit,
		log:     logger,
	}
}

func (e *Executor) Fetch(ctx context.Context, cursor string) (*FetchResult, error) {
	kind := string(e.subject.Kind)

	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		metrics.FetchesTotal.WithLabelValues(kind, "in_flight").Inc()
		return nil, ErrFetchInFlight
	}
	e.inFlight = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	page, err := e.client.FetchPage(ctx, e.subject, cursor, e.limit)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues(kind, "error").Inc()
		return nil, &TransientFetchError{Subject: e.subject, Cursor: cursor, Err: err}
	}
	metrics.FetchesTotal.WithLabelValues(kind, "ok").Inc()

	result := e.normalize(page)

	if cursor == "" {
		e.mu.Lock()
		e.firstPageCount = result.Count
		e.firstPageSeen = true
		e.mu.Unlock()
	}

	return result, nil
}

// normalize keeps records of the subject's expected variant only. Records
// without a post, without an id, or repeated within the page are dropped.
func (e *Executor) normalize(page *protocol.Page) *FetchResult {
	expected := e.subject.ExpectedRecord()
	result := &FetchResult{
		Items:      make([]Item, 0, len(page.Records)),
		NextCursor: page.NextCursor,
	}

	seen := make(map[string]struct{}, len(page.Records))
	for _, record := range page.Records {
		if record.Type != expected || record.Post == nil || record.Post.ID == "" {
			result.Dropped++
			metrics.DroppedRecordsTotal.WithLabelValues(string(e.subject.Kind), string(record.Type)).Inc()
			continue
		}
		if _, dup := seen[record.Post.ID]; dup {
			result.Dropped++
			continue
		}
		seen[record.Post.ID] = struct{}{}
		result.Items = append(result.Items, ItemFromPost(record.Post))
	}
	result.Count = len(result.Items)

	if result.Dropped > 0 {
		e.log.Debugw("Fetcher: dropped records", "subject", e.subject.Key(), "dropped", result.Dropped)
	}
	return result
}

// LastFirstPageCount reports the count of the latest successful first-page
// fetch.
func (e *Executor) LastFirstPageCount() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.firstPageCount, e.firstPageSeen
}
