// SPDX-License-Identifier: AGPL-3.0-only
package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ordinary-app/app-sub001/internal/ledger"
	"github.com/ordinary-app/app-sub001/internal/metrics"
	"github.com/ordinary-app/app-sub001/internal/protocol"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second

	defaultMatchWindow = 2 * time.Minute
	ledgerTimeout      = 5 * time.Second
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhasePendingLocal Phase = "pending_local"
	PhaseVerifying    Phase = "verifying"
	PhaseConfirmed    Phase = "confirmed"
	PhaseExhausted    Phase = "exhausted"
	PhaseCancelled    Phase = "cancelled"
	PhaseRejected     Phase = "rejected"
)

func (p Phase) Terminal() bool {
	switch p {
	case PhaseConfirmed, PhaseExhausted, PhaseCancelled, PhaseRejected:
		return true
	}
	return false
}

// Outcome is how a cycle ended. Exhausted is a soft outcome, not an error.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeRejected  Outcome = "rejected"
)

type RetryState struct {
	Attempt           int
	MaxAttempts       int
	Expecting         bool
	LastObservedCount int
}

type ReconcileStatus struct {
	TentativeID string
	ConfirmedID string
	Phase       Phase
	Retry       RetryState
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type ReconcilerOptions struct {
	MaxAttempts int
	Backoff     time.Duration
	// MatchWindow bounds the createdAt distance when a confirmed item is
	// matched by author and content instead of by receipt id.
	MatchWindow time.Duration
	Sleep       SleepFunc
	Now         func() time.Time
}

func (o ReconcilerOptions) withDefaults() ReconcilerOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.MatchWindow <= 0 {
		o.MatchWindow = defaultMatchWindow
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Cycle is one reconciliation of one write.
type Cycle struct {
	kind      protocol.WriteKind
	tentative Item
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	phase       Phase
	state       RetryState
	receiptID   string
	confirmedID string
}

func (c *Cycle) Done() <-chan struct{} { return c.done }

func (c *Cycle) TentativeID() string { return c.tentative.ID }

func (c *Cycle) Status() ReconcileStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ReconcileStatus{
		TentativeID: c.tentative.ID,
		ConfirmedID: c.confirmedID,
		Phase:       c.phase,
		Retry:       c.state,
	}
}

func (c *Cycle) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

type unresolvedWrite struct {
	tentative Item
	receiptID string
}

// Reconciler owns the optimistic writes of one collection. Cycles are
// sequenced: starting a write cancels the previous cycle's pending retry,
// and every store commit checks that its cycle is still the current one.
type Reconciler struct {
	store    *Collection
	exec     *Executor
	client   protocol.Client
	subject  protocol.Subject
	opts     ReconcilerOptions
	recorder ledger.Recorder
	log      *zap.SugaredLogger

	mu         sync.Mutex
	current    *Cycle
	unresolved []unresolvedWrite
	closed     bool
	wg         sync.WaitGroup
}

func NewReconciler(store *Collection, exec *Executor, client protocol.Client, subject protocol.Subject,
	opts ReconcilerOptions, recorder ledger.Recorder, logger *zap.SugaredLogger) *Reconciler {
	if recorder == nil {
		recorder = ledger.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reconciler{
		store:    store,
		exec:     exec,
		client:   client,
		subject:  subject,
		opts:     opts.withDefaults(),
		recorder: recorder,
		log:      logger,
	}
}

func (r *Reconciler) observedCount() int {
	if n, ok := r.exec.LastFirstPageCount(); ok {
		return n
	}
	return r.store.ConfirmedLen()
}

// Submit inserts tentative at the front of the store, sends the write and,
// once the protocol accepts it, starts verifying in the background. A
// refused write removes the tentative item and returns a
// *WriteRejectedError without starting a cycle.
func (r *Reconciler) Submit(ctx context.Context, payload protocol.WritePayload, tentative Item) (*Cycle, error) {
	tentative.Tentative = true

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if prev := r.current; prev != nil {
		prev.cancel()
		prev.mu.Lock()
		prevPhase, prevReceipt := prev.phase, prev.receiptID
		prev.mu.Unlock()
		if !prevPhase.Terminal() && prevReceipt != "" {
			r.keepUnresolved(prev.tentative, prevReceipt)
		}
	}

	cycleCtx, cancel := context.WithCancel(context.Background())
	cycle := &Cycle{
		kind:      payload.Kind,
		tentative: tentative,
		startedAt: r.opts.Now(),
		ctx:       cycleCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
		phase:     PhasePendingLocal,
		state: RetryState{
			MaxAttempts:       r.opts.MaxAttempts,
			Expecting:         true,
			LastObservedCount: r.observedCount(),
		},
	}
	r.current = cycle
	r.store.Prepend(tentative)
	r.mu.Unlock()

	receipt, err := r.client.SubmitWrite(ctx, r.subject, payload)
	if err != nil {
		metrics.WritesTotal.WithLabelValues(string(payload.Kind), "rejected").Inc()
		r.mu.Lock()
		r.store.RemoveByID(tentative.ID)
		r.mu.Unlock()
		r.finish(cycle, OutcomeRejected, true)
		return nil, &WriteRejectedError{Kind: payload.Kind, Err: err}
	}
	metrics.WritesTotal.WithLabelValues(string(payload.Kind), "ok").Inc()

	cycle.mu.Lock()
	cycle.receiptID = receipt.ID
	cycle.mu.Unlock()

	r.mu.Lock()
	if r.closed || r.current != cycle || cycleCtx.Err() != nil {
		r.mu.Unlock()
		r.finish(cycle, OutcomeCancelled, true)
		return cycle, nil
	}
	cycle.setPhase(PhaseVerifying)
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(cycle)
	return cycle, nil
}

func (r *Reconciler) run(cycle *Cycle) {
	defer r.wg.Done()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.opts.Backoff), uint64(r.opts.MaxAttempts-1)),
		cycle.ctx,
	)
	policy.Reset()

	for {
		if r.verify(cycle) {
			r.finish(cycle, OutcomeConfirmed, false)
			return
		}

		next := policy.NextBackOff()
		if next == backoff.Stop {
			if cycle.ctx.Err() != nil {
				r.finish(cycle, OutcomeCancelled, false)
			} else {
				r.finish(cycle, OutcomeExhausted, false)
			}
			return
		}

		if err := r.opts.Sleep(cycle.ctx, next); err != nil {
			r.finish(cycle, OutcomeCancelled, false)
			return
		}
	}
}

// verify runs one verification attempt and reports whether the cycle was
// confirmed. A failed or refused fetch uses up the attempt.
func (r *Reconciler) verify(cycle *Cycle) bool {
	result, err := r.exec.Fetch(cycle.ctx, "")

	r.mu.Lock()
	defer r.mu.Unlock()

	if cycle.ctx.Err() != nil || r.current != cycle {
		return false
	}

	cycle.mu.Lock()
	cycle.state.Attempt++
	attempt := cycle.state.Attempt
	expected := cycle.state.LastObservedCount
	receiptID := cycle.receiptID
	cycle.mu.Unlock()

	if err != nil {
		r.log.Warnw("Reconciler: verification fetch failed",
			"subject", r.subject.Key(), "attempt", attempt, "error", err)
		return false
	}

	if result.Count <= expected {
		r.log.Debugw("Reconciler: no growth yet",
			"subject", r.subject.Key(), "attempt", attempt, "count", result.Count, "expected_more_than", expected)
		return false
	}

	// Growth that does not contain this write belongs to earlier writes or
	// other authors. Settle those and measure further growth from here.
	if _, ok := r.match(cycle.tentative, receiptID, result.Items); !ok && receiptID != "" {
		r.settle(result.Items)
		cycle.mu.Lock()
		cycle.state.LastObservedCount = result.Count
		cycle.mu.Unlock()
		r.log.Debugw("Reconciler: page grew without this write",
			"subject", r.subject.Key(), "attempt", attempt, "count", result.Count, "receipt_id", receiptID)
		return false
	}

	r.confirm(cycle, receiptID, result.Items)
	return true
}

// confirm swaps the tentative item for its authoritative counterpart and
// merges the rest of the first page. Caller holds r.mu.
func (r *Reconciler) confirm(cycle *Cycle, receiptID string, page []Item) {
	confirmedID := r.swap(cycle.tentative, receiptID, page)
	r.settle(page)
	r.store.MergeFront(page)

	cycle.mu.Lock()
	cycle.confirmedID = confirmedID
	cycle.mu.Unlock()
}

// swap replaces tentative with the page item matching it, or removes it
// when none matches, and returns the matched id.
func (r *Reconciler) swap(tentative Item, receiptID string, page []Item) string {
	if match, ok := r.match(tentative, receiptID, page); ok {
		r.store.ReplaceByID(tentative.ID, match)
		return match.ID
	}
	r.store.RemoveByID(tentative.ID)
	return ""
}

func (r *Reconciler) match(tentative Item, receiptID string, page []Item) (Item, bool) {
	if receiptID != "" {
		for _, item := range page {
			if item.ID == receiptID {
				return item, true
			}
		}
	}
	content := strings.TrimSpace(tentative.Content)
	for _, item := range page {
		if item.AuthorID != tentative.AuthorID || strings.TrimSpace(item.Content) != content {
			continue
		}
		delta := item.CreatedAt.Sub(tentative.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= r.opts.MatchWindow {
			return item, true
		}
	}
	return Item{}, false
}

// settle swaps earlier unresolved tentatives whose write shows up in page.
// Caller holds r.mu.
func (r *Reconciler) settle(page []Item) {
	kept := r.unresolved[:0]
	for _, w := range r.unresolved {
		if match, ok := r.match(w.tentative, w.receiptID, page); ok {
			r.store.ReplaceByID(w.tentative.ID, match)
			continue
		}
		if _, still := r.store.Get(w.tentative.ID); !still {
			continue
		}
		kept = append(kept, w)
	}
	r.unresolved = kept
}

// ReplaceFirstPage replaces the store with a fresh first page. Tentative
// items still awaiting confirmation stay at the front unless the page
// already contains their write. It reports false, leaving the store alone,
// once the reconciler is closed.
func (r *Reconciler) ReplaceFirstPage(page []Item) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}

	var pending []Item
	if cycle := r.current; cycle != nil {
		cycle.mu.Lock()
		phase, receiptID := cycle.phase, cycle.receiptID
		cycle.mu.Unlock()
		if !phase.Terminal() {
			if _, found := r.match(cycle.tentative, receiptID, page); !found {
				if item, ok := r.store.Get(cycle.tentative.ID); ok {
					pending = append(pending, item)
				}
			}
		}
	}

	r.settle(page)
	for _, w := range r.unresolved {
		if item, ok := r.store.Get(w.tentative.ID); ok {
			pending = append(pending, item)
		}
	}

	r.store.ReplaceAll(append(pending, page...))
	return true
}

// AppendPage appends a later page unless the reconciler is closed.
func (r *Reconciler) AppendPage(page []Item) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.store.Append(page)
	return true
}

// finish moves cycle to its terminal phase. With async set the ledger write
// runs in the background so request paths do not wait on the database.
func (r *Reconciler) finish(cycle *Cycle, outcome Outcome, async bool) {
	cycle.mu.Lock()
	if cycle.phase.Terminal() {
		cycle.mu.Unlock()
		return
	}
	switch outcome {
	case OutcomeConfirmed:
		cycle.phase = PhaseConfirmed
	case OutcomeExhausted:
		cycle.phase = PhaseExhausted
	case OutcomeRejected:
		cycle.phase = PhaseRejected
	default:
		cycle.phase = PhaseCancelled
	}
	cycle.state.Expecting = false
	state := cycle.state
	receiptID := cycle.receiptID
	confirmedID := cycle.confirmedID
	cycle.mu.Unlock()

	cycle.cancel()

	// Exhausted and superseded writes stay visible until a later first page
	// shows them.
	if outcome == OutcomeExhausted || (outcome == OutcomeCancelled && receiptID != "") {
		r.mu.Lock()
		r.keepUnresolved(cycle.tentative, receiptID)
		r.mu.Unlock()
	}

	metrics.ReconcileOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	metrics.ReconcileAttempts.Observe(float64(state.Attempt))

	fields := []any{
		"subject", r.subject.Key(),
		"kind", cycle.kind,
		"tentative_id", cycle.tentative.ID,
		"attempts", state.Attempt,
	}
	switch outcome {
	case OutcomeConfirmed:
		r.log.Infow("Reconciler: write confirmed", append(fields, "confirmed_id", confirmedID)...)
	case OutcomeExhausted:
		r.log.Infow("Reconciler: cycle exhausted, keeping local item", fields...)
	case OutcomeRejected:
		r.log.Warnw("Reconciler: write rejected", fields...)
	default:
		r.log.Debugw("Reconciler: cycle cancelled", fields...)
	}

	if async {
		r.mu.Lock()
		if !r.closed {
			r.wg.Add(1)
			r.mu.Unlock()
			go func() {
				defer r.wg.Done()
				r.record(cycle, outcome, state, confirmedID)
				close(cycle.done)
			}()
			return
		}
		r.mu.Unlock()
	}

	r.record(cycle, outcome, state, confirmedID)
	close(cycle.done)
}

// keepUnresolved remembers a written but unconfirmed tentative item that is
// still in the store. Caller holds r.mu.
func (r *Reconciler) keepUnresolved(tentative Item, receiptID string) {
	for _, w := range r.unresolved {
		if w.tentative.ID == tentative.ID {
			return
		}
	}
	if _, ok := r.store.Get(tentative.ID); !ok {
		return
	}
	r.unresolved = append(r.unresolved, unresolvedWrite{tentative: tentative, receiptID: receiptID})
}

func (r *Reconciler) record(cycle *Cycle, outcome Outcome, state RetryState, confirmedID string) {
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()

	err := r.recorder.Record(ctx, ledger.Entry{
		Network:     r.client.Network(),
		Subject:     r.subject.Key(),
		Kind:        string(cycle.kind),
		TentativeID: cycle.tentative.ID,
		ConfirmedID: confirmedID,
		Outcome:     string(outcome),
		Attempts:    state.Attempt,
		CreatedAt:   cycle.startedAt,
		FinishedAt:  r.opts.Now(),
	})
	if err != nil {
		r.log.Warnw("Reconciler: failed to record outcome", "tentative_id", cycle.tentative.ID, "error", err)
	}
}

// Status reports the latest cycle, or an idle state when no write happened.
func (r *Reconciler) Status() ReconcileStatus {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()
	if current == nil {
		return ReconcileStatus{
			Phase: PhaseIdle,
			Retry: RetryState{MaxAttempts: r.opts.MaxAttempts},
		}
	}
	return current.Status()
}

// Close cancels the current cycle and waits for its goroutine to stop.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.current != nil {
		r.current.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
}
