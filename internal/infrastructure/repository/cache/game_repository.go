package cache

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/riskibarqy/meme-party/internal/domain/game"
	basecache "github.com/riskibarqy/meme-party/internal/platform/cache"
)

var errGameMissing = errors.New("game missing")

// GameRepository is a read-through cache in front of another game store.
// Writes go to the next store first and refresh the cached copy on success;
// any failed save evicts it so the next load sees the stored version.
// It assumes this process is the only writer.
type GameRepository struct {
	next  game.Repository
	cache *basecache.Store
}

func NewGameRepository(next game.Repository, cache *basecache.Store) *GameRepository {
	return &GameRepository{next: next, cache: cache}
}

func gameKey(code string) string {
	return "game:" + game.NormalizeCode(code)
}

func (r *GameRepository) Create(ctx context.Context, g game.Game) error {
	if err := r.next.Create(ctx, g); err != nil {
		return err
	}
	r.cache.Delete(ctx, gameKey(g.Code))
	return nil
}

func (r *GameRepository) Load(ctx context.Context, code string) (game.Game, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, gameKey(code), func(ctx context.Context) (any, error) {
		g, ok, err := r.next.Load(ctx, code)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errGameMissing
		}
		return g.Clone(), nil
	})
	if errors.Is(err, errGameMissing) {
		return game.Game{}, false, nil
	}
	if err != nil {
		return game.Game{}, false, err
	}

	cached, _ := v.(game.Game)
	return cached.Clone(), true, nil
}

func (r *GameRepository) Save(ctx context.Context, g *game.Game) error {
	if g == nil {
		return errors.New("save game: nil game")
	}
	key := gameKey(g.Code)
	if err := r.next.Save(ctx, g); err != nil {
		r.cache.Delete(ctx, key)
		return err
	}
	r.cache.Set(ctx, key, g.Clone())
	return nil
}

func (r *GameRepository) Delete(ctx context.Context, code string) error {
	err := r.next.Delete(ctx, code)
	r.cache.Delete(ctx, gameKey(code))
	return err
}
