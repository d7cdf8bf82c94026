package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ordinary-app/app-sub001/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestStore_SetAndClear(t *testing.T) {
	store := NewStore(nil)

	_, ok := store.Current()
	require.False(t, ok)
	require.Equal(t, "", ViewerID(store))

	require.NoError(t, store.Set(Identity{ID: "did:plc:alice", AccessToken: "tok"}))
	identity, ok := store.Current()
	require.True(t, ok)
	require.Equal(t, "did:plc:alice", identity.ID)
	require.Equal(t, "did:plc:alice", ViewerID(store))

	store.Clear()
	_, ok = store.Current()
	require.False(t, ok)
}

func TestStore_SetRejectsIncompleteIdentity(t *testing.T) {
	store := NewStore(nil)
	require.Error(t, store.Set(Identity{AccessToken: "tok"}))
	require.Error(t, store.Set(Identity{ID: "did:plc:alice"}))
}

func TestStore_ExpiredIdentityIsCleared(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(func() time.Time { return now })

	require.NoError(t, store.Set(Identity{ID: "a", AccessToken: "tok", ExpiresAt: now.Add(time.Minute)}))
	_, ok := store.Current()
	require.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = store.Current()
	require.False(t, ok)

	now = now.Add(-time.Hour)
	_, ok = store.Current()
	require.False(t, ok, "cleared identity must not come back")
}

func TestViewerID_NilContext(t *testing.T) {
	require.Equal(t, "", ViewerID(nil))
}

func TestFromAccount(t *testing.T) {
	exp := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	identity := FromAccount("bluesky", &protocol.Account{
		ID:          "did:plc:bob",
		Handle:      "bob.test",
		AccessToken: "a",
		ExpiresAt:   exp,
	})
	require.Equal(t, "bluesky", identity.Network)
	require.Equal(t, "bob.test", identity.Handle)
	require.Equal(t, exp, identity.ExpiresAt)

	require.Equal(t, Identity{Network: "mastodon"}, FromAccount("mastodon", nil))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "did:plc:alice",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, err := TokenExpiry(token)
	require.NoError(t, err)
	require.True(t, exp.Equal(got))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	got, err = TokenExpiry(noExp)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = TokenExpiry("not-a-jwt")
	require.Error(t, err)
}
