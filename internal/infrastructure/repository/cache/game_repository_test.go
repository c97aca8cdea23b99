package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/meme-party/internal/domain/game"
	"github.com/riskibarqy/meme-party/internal/infrastructure/repository/memory"
	basecache "github.com/riskibarqy/meme-party/internal/platform/cache"
)

type countingRepository struct {
	*memory.GameRepository
	loads int
}

func (r *countingRepository) Load(ctx context.Context, code string) (game.Game, bool, error) {
	r.loads++
	return r.GameRepository.Load(ctx, code)
}

func newCachedRepo(t *testing.T) (*GameRepository, *countingRepository) {
	t.Helper()

	inner := &countingRepository{GameRepository: memory.NewGameRepository()}
	g := game.NewGame("ABC123", "", 1, time.Now())
	require.NoError(t, g.AddPlayer("P1", "alice", "", time.Now()))
	require.NoError(t, inner.Create(context.Background(), g))

	return NewGameRepository(inner, basecache.NewStore(time.Minute)), inner
}

func TestGameRepository_LoadIsCachedAndCopied(t *testing.T) {
	ctx := context.Background()
	repo, inner := newCachedRepo(t)

	first, ok, err := repo.Load(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	first.Players[0].DisplayName = "mallory"

	second, ok, err := repo.Load(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", second.Players[0].DisplayName)
	assert.Equal(t, 1, inner.loads)
}

func TestGameRepository_SaveRefreshesCache(t *testing.T) {
	ctx := context.Background()
	repo, inner := newCachedRepo(t)

	g, _, err := repo.Load(ctx, "ABC123")
	require.NoError(t, err)
	require.NoError(t, g.AddPlayer("P2", "bob", "", time.Now()))
	require.NoError(t, repo.Save(ctx, &g))

	got, _, err := repo.Load(ctx, "ABC123")
	require.NoError(t, err)
	assert.Len(t, got.Players, 2)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 1, inner.loads)
}

func TestGameRepository_FailedSaveEvicts(t *testing.T) {
	ctx := context.Background()
	repo, inner := newCachedRepo(t)

	stale, _, err := repo.Load(ctx, "ABC123")
	require.NoError(t, err)

	// A write that bypasses the cache moves the stored version on.
	direct, _, err := inner.GameRepository.Load(ctx, "ABC123")
	require.NoError(t, err)
	require.NoError(t, direct.AddPlayer("P3", "carol", "", time.Now()))
	require.NoError(t, inner.Save(ctx, &direct))

	require.NoError(t, stale.AddPlayer("P2", "bob", "", time.Now()))
	require.ErrorIs(t, repo.Save(ctx, &stale), game.ErrConcurrentModification)

	got, _, err := repo.Load(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 2, inner.loads)
}

func TestGameRepository_MissesAreNotCached(t *testing.T) {
	ctx := context.Background()
	repo, inner := newCachedRepo(t)

	for i := 0; i < 2; i++ {
		_, ok, err := repo.Load(ctx, "NOPE00")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 2, inner.loads)
}

func TestGameRepository_DeleteEvicts(t *testing.T) {
	ctx := context.Background()
	repo, _ := newCachedRepo(t)

	_, ok, err := repo.Load(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Delete(ctx, "ABC123"))
	_, ok, err = repo.Load(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, ok)
	require.ErrorIs(t, repo.Delete(ctx, "ABC123"), game.ErrNotFound)
}

// gatedRepository parks the first Load after it has read from the store until
// release is closed.
type gatedRepository struct {
	*memory.GameRepository
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (r *gatedRepository) Load(ctx context.Context, code string) (game.Game, bool, error) {
	g, ok, err := r.GameRepository.Load(ctx, code)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return g, ok, err
}

func TestGameRepository_SlowLoadDoesNotOverwriteNewerSave(t *testing.T) {
	ctx := context.Background()
	inner := &gatedRepository{
		GameRepository: memory.NewGameRepository(),
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
	g := game.NewGame("ABC123", "", 1, time.Now())
	require.NoError(t, g.AddPlayer("P1", "alice", "", time.Now()))
	require.NoError(t, inner.Create(ctx, g))
	repo := NewGameRepository(inner, basecache.NewStore(time.Minute))

	loaded := make(chan game.Game, 1)
	go func() {
		stale, _, _ := repo.Load(ctx, "ABC123")
		loaded <- stale
	}()
	<-inner.read

	held, _, err := inner.GameRepository.Load(ctx, "ABC123")
	require.NoError(t, err)
	require.NoError(t, held.AddPlayer("P2", "bob", "", time.Now()))
	require.NoError(t, repo.Save(ctx, &held))
	require.Equal(t, int64(2), held.Version)

	close(inner.release)
	assert.Equal(t, int64(2), (<-loaded).Version, "the in-flight load yields the newer cached copy")

	next, ok, err := repo.Load(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), next.Version)
	assert.Len(t, next.Players, 2)

	require.NoError(t, next.SetPlayerReady("P2", true))
	require.NoError(t, repo.Save(ctx, &next))
}
