package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/models"
)

func TestSessionStoreSingleFlowPerUser(t *testing.T) {
	store := NewSessionStore(3 * time.Minute)
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	open, ok := store.TryBegin("u1", now)
	require.True(t, ok)
	assert.Empty(t, open)

	// Busy marker alone blocks a second begin, even before Put.
	open, ok = store.TryBegin("u1", now)
	assert.False(t, ok)
	assert.Equal(t, "a command in progress", open)

	store.Put(&models.Session{Kind: models.SessionEdit, UserID: "u1", IssuedAt: now})
	open, ok = store.TryBegin("u1", now.Add(time.Minute))
	assert.False(t, ok)
	assert.Equal(t, "an edit in progress", open)

	// Another user is unaffected.
	_, ok = store.TryBegin("u2", now)
	assert.True(t, ok)

	store.End("u1")
	_, ok = store.TryBegin("u1", now)
	assert.True(t, ok)
}

func TestSessionStoreLazyExpiry(t *testing.T) {
	store := NewSessionStore(3 * time.Minute)
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	_, ok := store.TryBegin("u1", now)
	require.True(t, ok)
	store.Put(&models.Session{Kind: models.SessionDeleteConfirm, UserID: "u1", IssuedAt: now})

	session, expired := store.Get("u1", now.Add(time.Minute))
	require.NotNil(t, session)
	assert.False(t, expired)

	session, expired = store.Get("u1", now.Add(4*time.Minute))
	assert.Nil(t, session)
	assert.True(t, expired)

	// Gone for real: a later Get is a plain miss.
	session, expired = store.Get("u1", now.Add(5*time.Minute))
	assert.Nil(t, session)
	assert.False(t, expired)
}

func TestSessionStoreExpiredFlowReleasesBusyMarker(t *testing.T) {
	store := NewSessionStore(3 * time.Minute)
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	_, ok := store.TryBegin("u1", now)
	require.True(t, ok)
	store.Put(&models.Session{Kind: models.SessionEdit, UserID: "u1", IssuedAt: now})

	// The stale flow is reaped by TryBegin itself, without a Get or Sweep
	// in between, and must free the slot entirely.
	open, ok := store.TryBegin("u1", now.Add(4*time.Minute))
	assert.True(t, ok, "expired flow must not block a new one, got %q", open)
	assert.Empty(t, open)

	store.End("u1")
	_, ok = store.TryBegin("u1", now.Add(5*time.Minute))
	assert.True(t, ok)
}

func TestSessionStoreSweep(t *testing.T) {
	store := NewSessionStore(3 * time.Minute)
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"u1", "u2"} {
		_, ok := store.TryBegin(id, now)
		require.True(t, ok)
		store.Put(&models.Session{Kind: models.SessionEdit, UserID: id, IssuedAt: now})
	}
	_, ok := store.TryBegin("u3", now.Add(2*time.Minute))
	require.True(t, ok)
	store.Put(&models.Session{Kind: models.SessionEdit, UserID: "u3", IssuedAt: now.Add(2 * time.Minute)})

	expired := store.Sweep(now.Add(4 * time.Minute))
	assert.ElementsMatch(t, []string{"u1", "u2"}, expired)
	assert.Equal(t, 1, store.Open())

	// Swept users can start fresh flows.
	_, ok = store.TryBegin("u1", now.Add(4*time.Minute))
	assert.True(t, ok)
}

func TestSessionTouchExtendsLifetime(t *testing.T) {
	store := NewSessionStore(3 * time.Minute)
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	_, ok := store.TryBegin("u1", now)
	require.True(t, ok)
	session := &models.Session{Kind: models.SessionEdit, UserID: "u1", IssuedAt: now}
	store.Put(session)

	session.Touch(now.Add(2 * time.Minute))

	got, expired := store.Get("u1", now.Add(4*time.Minute))
	require.NotNil(t, got)
	assert.False(t, expired)
}
