// SPDX-License-Identifier: AGPL-3.0-only
package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ordinary-app/app-sub001/internal/ledger"
	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Options struct {
	PageSize   int
	Reconciler ReconcilerOptions
}

type PageState struct {
	Fetched int
	Dropped int
	HasMore bool
	Cursor  string
}

// Session is the collection of one subject together with its cursor,
// fetcher and reconciler. It is owned by a single UI scope.
type Session struct {
	subject    protocol.Subject
	client     protocol.Client
	viewer     session.Context
	store      *Collection
	cursor     *CursorTracker
	exec       *Executor
	reconciler *Reconciler
	now        func() time.Time
	log        *zap.SugaredLogger

	mu     sync.Mutex
	closed bool

	togglesMu sync.Mutex
	toggles   map[string]struct{}
}

func NewSession(client protocol.Client, subject protocol.Subject, viewer session.Context, opts Options,
	recorder ledger.Recorder, logger *zap.SugaredLogger) (*Session, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	recOpts := opts.Reconciler.withDefaults()

	store := NewCollection()
	exec := NewExecutor(client, subject, opts.PageSize, logger)

	return &Session{
		subject:    subject,
		client:     client,
		viewer:     viewer,
		store:      store,
		cursor:     NewCursorTracker(),
		exec:       exec,
		reconciler: NewReconciler(store, exec, client, subject, recOpts, recorder, logger),
		now:        recOpts.Now,
		log:        logger,
		toggles:    make(map[string]struct{}),
	}, nil
}

func (s *Session) Subject() protocol.Subject { return s.subject }

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// LoadFirst fetches the first page and replaces the collection with it.
// On failure the collection and cursor are left as they were.
func (s *Session) LoadFirst(ctx context.Context) (PageState, error) {
	if s.isClosed() {
		return PageState{}, ErrSessionClosed
	}

	result, err := s.exec.Fetch(ctx, "")
	if s.isClosed() {
		return PageState{}, ErrSessionClosed
	}
	if err != nil {
		s.log.Warnw("Feed: first page failed", "subject", s.subject.Key(), "error", err)
		return s.pageState(0, 0), err
	}

	if !s.reconciler.ReplaceFirstPage(result.Items) {
		return PageState{}, ErrSessionClosed
	}
	s.cursor.Reset()
	s.cursor.Advance(result.NextCursor)
	return s.pageState(result.Count, result.Dropped), nil
}

// LoadMore fetches the page after the current cursor and appends it.
func (s *Session) LoadMore(ctx context.Context) (PageState, error) {
	if s.isClosed() {
		return PageState{}, ErrSessionClosed
	}

	state := s.cursor.State()
	if !state.HasMore {
		return s.pageState(0, 0), ErrNoMorePages
	}
	if state.Cursor == "" {
		return s.LoadFirst(ctx)
	}

	result, err := s.exec.Fetch(ctx, state.Cursor)
	if s.isClosed() {
		return PageState{}, ErrSessionClosed
	}
	if err != nil {
		s.log.Warnw("Feed: next page failed", "subject", s.subject.Key(), "cursor", state.Cursor, "error", err)
		return s.pageState(0, 0), err
	}

	if !s.reconciler.AppendPage(result.Items) {
		return PageState{}, ErrSessionClosed
	}
	s.cursor.Advance(result.NextCursor)
	return s.pageState(result.Count, result.Dropped), nil
}

func (s *Session) pageState(fetched, dropped int) PageState {
	state := s.cursor.State()
	return PageState{
		Fetched: fetched,
		Dropped: dropped,
		HasMore: state.HasMore,
		Cursor:  state.Cursor,
	}
}

// Comment shows a tentative comment immediately and starts reconciling it.
func (s *Session) Comment(ctx context.Context, content string) (*Cycle, Item, error) {
	if s.isClosed() {
		return nil, Item{}, ErrSessionClosed
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, Item{}, &WriteRejectedError{Kind: protocol.WriteComment, Err: errors.New("comment content is empty")}
	}

	identity, ok := currentIdentity(s.viewer)
	if !ok {
		return nil, Item{}, ErrUnauthenticated
	}

	tentative := Item{
		ID:           NewTentativeID(),
		Content:      content,
		AuthorID:     identity.ID,
		AuthorHandle: identity.Handle,
		AuthorName:   identity.DisplayName,
		CreatedAt:    s.now().UTC(),
		Tentative:    true,
	}

	cycle, err := s.reconciler.Submit(ctx, protocol.WritePayload{
		Kind:     protocol.WriteComment,
		Content:  content,
		TargetID: s.subject.PostID,
	}, tentative)
	if err != nil {
		return nil, Item{}, err
	}
	return cycle, tentative, nil
}

func currentIdentity(viewer session.Context) (session.Identity, bool) {
	if viewer == nil {
		return session.Identity{}, false
	}
	return viewer.Current()
}

func (s *Session) Items() []Item { return s.store.Items() }

func (s *Session) Cursor() CursorState { return s.cursor.State() }

func (s *Session) Reconciliation() ReconcileStatus { return s.reconciler.Status() }

// Close cancels pending retries. Results arriving afterwards are dropped
// and every call returns ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.reconciler.Close()
	s.cursor.Close()
}
