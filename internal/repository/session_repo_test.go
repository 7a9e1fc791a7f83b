package repository_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"parkflow/internal/repository"
	"parkflow/internal/session"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres when TEST_DATABASE_URL is set.
func newRepo(t *testing.T) *repository.SessionRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())

	repo := repository.NewSessionRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func TestSessionRepository_Slots(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	sid := uuid.NewString()
	t.Cleanup(func() { repo.ClearSessions(context.Background(), []string{sid}) })

	_, ok, err := repo.Get(ctx, sid, session.KeyPendingReservation)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, sid, session.KeyPendingReservation, "r-1"))
	require.NoError(t, repo.Set(ctx, sid, session.KeyPendingReservation, "r-2"))
	v, ok, err := repo.Get(ctx, sid, session.KeyPendingReservation)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r-2", v)

	slots, err := repo.List(ctx, session.KeyPendingReservation)
	require.NoError(t, err)
	var found bool
	for _, s := range slots {
		if s.SessionID == sid {
			found = true
			assert.Equal(t, "r-2", s.Value)
		}
	}
	assert.True(t, found)

	require.NoError(t, repo.Clear(ctx, sid, session.KeyPendingReservation))
	_, ok, err = repo.Get(ctx, sid, session.KeyPendingReservation)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRepository_ClearSessions(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	a, b := uuid.NewString(), uuid.NewString()

	require.NoError(t, repo.Set(ctx, a, session.KeyCredentialToken, "tok-a"))
	require.NoError(t, repo.Set(ctx, a, session.KeyPendingReservation, "r-a"))
	require.NoError(t, repo.Set(ctx, b, session.KeyCredentialToken, "tok-b"))
	t.Cleanup(func() { repo.ClearSessions(context.Background(), []string{b}) })

	require.NoError(t, repo.ClearSessions(ctx, []string{a}))
	require.NoError(t, repo.ClearSessions(ctx, nil))

	_, ok, err := repo.Get(ctx, a, session.KeyCredentialToken)
	require.NoError(t, err)
	assert.False(t, ok)
	v, ok, err := repo.Get(ctx, b, session.KeyCredentialToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-b", v)
}
