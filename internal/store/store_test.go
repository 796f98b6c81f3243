package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.AccessToken(ctx)
	require.ErrorIs(t, err, ErrNoCredentials)

	require.NoError(t, s.SaveCredentials(ctx, "access-1", "refresh-1"))
	token, err := s.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-1", token)

	// Upsert replaces, never duplicates.
	require.NoError(t, s.SaveCredentials(ctx, "access-2", "refresh-2"))
	token, err = s.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-2", token)

	require.NoError(t, s.ClearCredentials(ctx))
	_, err = s.AccessToken(ctx)
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestIdentityRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Identity(ctx)
	require.ErrorIs(t, err, ErrNoCredentials)

	want := models.Identity{UserID: "42", Username: "alice"}
	require.NoError(t, s.SaveIdentity(ctx, want))

	got, err := s.Identity(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
