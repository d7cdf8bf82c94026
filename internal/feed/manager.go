// SPDX-License-Identifier: AGPL-3.0-only
package feed

import (
	"sort"
	"sync"
	"time"

	"github.com/ordinary-app/app-sub001/internal/ledger"
	"github.com/ordinary-app/app-sub001/internal/metrics"
	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/ordinary-app/app-sub001/internal/session"
	"go.uber.org/zap"
)

type managedSession struct {
	session  *Session
	scopeID  string
	lastUsed time.Time
}

// Manager hands out one Session per UI scope and subject. Sessions are
// never shared between scopes.
type Manager struct {
	client   protocol.Client
	viewer   session.Context
	opts     Options
	recorder ledger.Recorder
	now      func() time.Time
	log      *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*managedSession
}

func NewManager(client protocol.Client, viewer session.Context, opts Options, recorder ledger.Recorder, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	now := opts.Reconciler.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		client:   client,
		viewer:   viewer,
		opts:     opts,
		recorder: recorder,
		now:      now,
		log:      logger,
		sessions: make(map[string]*managedSession),
	}
}

func sessionKey(scopeID string, subject protocol.Subject) string {
	return scopeID + "|" + subject.Key()
}

// Open returns the scope's session for subject, creating it on first use.
// The second result reports whether the session is new.
func (m *Manager) Open(scopeID string, subject protocol.Subject) (*Session, bool, error) {
	key := sessionKey(scopeID, subject)

	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, ok := m.sessions[key]; ok {
		managed.lastUsed = m.now()
		return managed.session, false, nil
	}

	s, err := NewSession(m.client, subject, m.viewer, m.opts, m.recorder, m.log)
	if err != nil {
		return nil, false, err
	}
	m.sessions[key] = &managedSession{session: s, scopeID: scopeID, lastUsed: m.now()}
	metrics.OpenSessions.Inc()
	return s, true, nil
}

// CloseScope tears down every session of a scope.
func (m *Manager) CloseScope(scopeID string) int {
	m.mu.Lock()
	var closing []*Session
	for key, managed := range m.sessions {
		if managed.scopeID != scopeID {
			continue
		}
		closing = append(closing, managed.session)
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	closeAll(closing)
	return len(closing)
}

func (m *Manager) CloseAll() int {
	m.mu.Lock()
	closing := make([]*Session, 0, len(m.sessions))
	for key, managed := range m.sessions {
		closing = append(closing, managed.session)
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	closeAll(closing)
	return len(closing)
}

// SweepIdle closes sessions unused for longer than ttl and returns the ids
// of the scopes it touched.
func (m *Manager) SweepIdle(ttl time.Duration) []string {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	var closing []*Session
	scopes := make(map[string]struct{})
	for key, managed := range m.sessions {
		if managed.lastUsed.After(cutoff) {
			continue
		}
		closing = append(closing, managed.session)
		scopes[managed.scopeID] = struct{}{}
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	closeAll(closing)

	ids := make([]string, 0, len(scopes))
	for id := range scopes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func closeAll(sessions []*Session) {
	for _, s := range sessions {
		s.Close()
	}
	metrics.OpenSessions.Sub(float64(len(sessions)))
}
