package game

import "context"

// Repository persists whole aggregates keyed by join code. Save must reject a
// stale Version with ErrConcurrentModification and bump Version on success.
type Repository interface {
	Create(ctx context.Context, g Game) error
	Load(ctx context.Context, code string) (Game, bool, error)
	Save(ctx context.Context, g *Game) error
	Delete(ctx context.Context, code string) error
}
