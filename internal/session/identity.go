// SPDX-License-Identifier: AGPL-3.0-only

// Package session holds the authenticated identity shared by every feed.
// It replaces ambient global auth state with an injected Context whose
// lifecycle is explicit: Set on login, Clear on logout or token expiry.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/ordinary-app/app-sub001/internal/protocol"
)

type Identity struct {
	ID           string
	Handle       string
	DisplayName  string
	Network      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Context is the read side handed to components that need the viewer.
type Context interface {
	Current() (Identity, bool)
}

type Store struct {
	mu      sync.RWMutex
	current *Identity
	now     func() time.Time
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now}
}

func FromAccount(network string, account *protocol.Account) Identity {
	if account == nil {
		return Identity{Network: network}
	}
	return Identity{
		ID:           account.ID,
		Handle:       account.Handle,
		DisplayName:  account.DisplayName,
		Network:      network,
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		ExpiresAt:    account.ExpiresAt,
	}
}

func (s *Store) Set(identity Identity) error {
	if identity.ID == "" {
		return errors.New("session: identity requires an id")
	}
	if identity.AccessToken == "" {
		return errors.New("session: identity requires an access token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &identity
	return nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Current returns the identity unless none is set or its token expired.
// An expired identity is cleared.
func (s *Store) Current() (Identity, bool) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil {
		return Identity{}, false
	}
	if !current.ExpiresAt.IsZero() && !s.now().Before(current.ExpiresAt) {
		s.mu.Lock()
		if s.current == current {
			s.current = nil
		}
		s.mu.Unlock()
		return Identity{}, false
	}
	return *current, true
}

// ViewerID returns the current identity id, or "" when anonymous.
func ViewerID(ctx Context) string {
	if ctx == nil {
		return ""
	}
	identity, ok := ctx.Current()
	if !ok {
		return ""
	}
	return identity.ID
}

var _ Context = (*Store)(nil)
