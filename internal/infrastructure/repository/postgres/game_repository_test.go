package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/riskibarqy/meme-party/internal/domain/game"
)

// newTestDB starts a throwaway postgres with the schema migrated. Skipped in
// -short mode and when no container runtime is reachable.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("meme_party"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, MigrateUp(dsn))

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGameRepository_Postgres(t *testing.T) {
	ctx := context.Background()
	repo := NewGameRepository(newTestDB(t))
	repo.now = func() time.Time { return testNow }

	lobby := game.NewGame("abc123", "", 2, testNow)
	require.NoError(t, lobby.AddPlayer("P1", "alice", "", testNow))
	require.NoError(t, repo.Create(ctx, lobby))
	require.ErrorIs(t, repo.Create(ctx, lobby), game.ErrConflict)

	_, ok, err := repo.Load(ctx, "NOPE00")
	require.NoError(t, err)
	assert.False(t, ok)

	first, ok, err := repo.Load(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), first.Version)
	second := first.Clone()

	require.NoError(t, first.AddPlayer("P2", "bob", "", testNow))
	require.NoError(t, repo.Save(ctx, &first))
	assert.Equal(t, int64(2), first.Version)

	require.NoError(t, second.AddPlayer("P3", "carol", "", testNow))
	require.ErrorIs(t, repo.Save(ctx, &second), game.ErrConcurrentModification)

	stored, _, err := repo.Load(ctx, "ABC123")
	require.NoError(t, err)
	assert.Len(t, stored.Players, 2)
	assert.Equal(t, int64(2), stored.Version)

	require.NoError(t, repo.Delete(ctx, "abc123"))
	require.ErrorIs(t, repo.Delete(ctx, "abc123"), game.ErrNotFound)
	require.ErrorIs(t, repo.Save(ctx, &first), game.ErrNotFound)
}

func TestGameRepository_PostgresKeepsRounds(t *testing.T) {
	ctx := context.Background()
	repo := NewGameRepository(newTestDB(t))

	g := playedGame(t)
	require.NoError(t, repo.Create(ctx, g))

	got, ok, err := repo.Load(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.CurrentRound)
	require.Len(t, got.Rounds, 2)
	assert.True(t, got.HasRoundEnded(1))
	assert.False(t, got.HasRoundEnded(2))
	assert.Equal(t, 4, got.GetScoresForSubmission("S1")["P2"])
}
