package memory

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/riskibarqy/meme-party/internal/domain/game"
)

// GameRepository keeps games in process memory. Loads and saves deep-copy the
// aggregate so callers never alias stored maps or slices.
type GameRepository struct {
	mu    sync.RWMutex
	items map[string]game.Game
}

func NewGameRepository() *GameRepository {
	return &GameRepository{items: make(map[string]game.Game)}
}

func (r *GameRepository) Create(_ context.Context, g game.Game) error {
	if err := g.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[g.Code]; exists {
		return errors.Wrapf(game.ErrConflict, "game code %s already in use", g.Code)
	}
	g.Version = 1
	r.items[g.Code] = g.Clone()
	return nil
}

func (r *GameRepository) Load(_ context.Context, code string) (game.Game, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.items[game.NormalizeCode(code)]
	if !ok {
		return game.Game{}, false, nil
	}
	return g.Clone(), true, nil
}

// Save writes the game when its Version still matches the stored one and bumps
// the version on success.
func (r *GameRepository) Save(_ context.Context, g *game.Game) error {
	if g == nil {
		return errors.New("save game: nil game")
	}
	if err := g.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[g.Code]
	if !ok {
		return errors.Wrapf(game.ErrNotFound, "game %s", g.Code)
	}
	if stored.Version != g.Version {
		return errors.Wrapf(game.ErrConcurrentModification, "game %s at version %d, saving %d", g.Code, stored.Version, g.Version)
	}

	g.Version++
	r.items[g.Code] = g.Clone()
	return nil
}

func (r *GameRepository) Delete(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	code = game.NormalizeCode(code)
	if _, ok := r.items[code]; !ok {
		return errors.Wrapf(game.ErrNotFound, "game %s", code)
	}
	delete(r.items, code)
	return nil
}

func (r *GameRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
