// SPDX-License-Identifier: AGPL-3.0-only
package worker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// IdleSweeper closes UI scopes that stopped talking to the service.
type IdleSweeper interface {
	SweepIdle(ttl time.Duration) []string
}

// Sweeper runs SweepIdle on a ticker. A tick that arrives while a sweep is
// still running is skipped.
type Sweeper struct {
	Sessions IdleSweeper
	TTL      time.Duration
	Ticker   *time.Ticker
	StopChan chan bool
	log      *zap.SugaredLogger
	mu       sync.Mutex
	running  bool
	active   bool
}

func NewSweeper(sessions IdleSweeper, ttl time.Duration, logger *zap.SugaredLogger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sweeper{
		Sessions: sessions,
		TTL:      ttl,
		StopChan: make(chan bool),
		log:      logger,
	}
}

func (w *Sweeper) Start(interval time.Duration) {
	w.mu.Lock()
	if w.active {
		w.mu.Unlock()
		w.log.Infow("Worker: Sweeper already active, use Restart to change interval")
		return
	}
	w.active = true
	w.Ticker = time.NewTicker(interval)
	ticker := w.Ticker
	w.mu.Unlock()

	go func() {
		defer func() {
			w.mu.Lock()
			w.active = false
			w.mu.Unlock()
		}()
		for {
			select {
			case <-ticker.C:
				w.SweepNow()
			case <-w.StopChan:
				ticker.Stop()
				return
			}
		}
	}()
	w.log.Infow("Worker: Sweeper started", "interval", interval, "ttl", w.TTL)
}

func (w *Sweeper) Stop() {
	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		w.log.Infow("Worker: Sweeper not active")
		return
	}
	w.mu.Unlock()

	w.StopChan <- true
	w.log.Infow("Worker: Sweeper stopped")
}

func (w *Sweeper) Restart(interval time.Duration) {
	w.mu.Lock()
	isActive := w.active
	w.mu.Unlock()

	if isActive {
		w.Stop()
		for w.IsActive() {
			time.Sleep(10 * time.Millisecond)
		}
	}
	w.Start(interval)
}

func (w *Sweeper) IsActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// SweepNow runs one sweep and returns the scopes it closed, or nil when
// another sweep is in progress.
func (w *Sweeper) SweepNow() []string {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.log.Infow("Worker: Sweep already in progress, skipping...")
		return nil
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	closed := w.Sessions.SweepIdle(w.TTL)
	if len(closed) > 0 {
		w.log.Infow("Worker: Closed idle scopes", "count", len(closed), "scopes", closed)
	}
	return closed
}
