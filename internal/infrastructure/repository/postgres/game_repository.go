package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/riskibarqy/meme-party/internal/domain/game"
	qb "github.com/riskibarqy/meme-party/internal/platform/querybuilder"
)

const uniqueViolation = "23505"

// GameRepository stores each game as one row: lookup columns plus a JSONB
// document with players and rounds. Version is checked on every save.
type GameRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewGameRepository(db *sqlx.DB) *GameRepository {
	return &GameRepository{db: db, now: time.Now}
}

func (r *GameRepository) Create(ctx context.Context, g game.Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	g.Version = 1
	row, err := toGameTableModel(g, r.now().UTC())
	if err != nil {
		return err
	}

	query, args, err := qb.InsertModel(gamesTable, row, "")
	if err != nil {
		return fmt.Errorf("build insert game query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(game.ErrConflict, "game code %s already in use", g.Code)
		}
		return fmt.Errorf("insert game code=%s: %w", g.Code, err)
	}
	return nil
}

func (r *GameRepository) Load(ctx context.Context, code string) (game.Game, bool, error) {
	query, args, err := qb.Select(gameColumns...).From(gamesTable).
		Where(qb.Eq("code", game.NormalizeCode(code))).
		ToSQL()
	if err != nil {
		return game.Game{}, false, fmt.Errorf("build get game query: %w", err)
	}

	var row gameTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return game.Game{}, false, nil
		}
		return game.Game{}, false, fmt.Errorf("get game code=%s: %w", code, err)
	}

	g, err := row.toDomain()
	if err != nil {
		return game.Game{}, false, err
	}
	return g, true, nil
}

// Save updates the row only when the stored version equals g.Version, then
// bumps g.Version.
func (r *GameRepository) Save(ctx context.Context, g *game.Game) error {
	if g == nil {
		return errors.New("save game: nil game")
	}
	if err := g.Validate(); err != nil {
		return err
	}
	row, err := toGameTableModel(*g, r.now().UTC())
	if err != nil {
		return err
	}

	query, args, err := qb.Update(gamesTable).
		Set("state", row.State).
		Set("admin_id", row.AdminID).
		Set("document", row.Document).
		SetExpr("version", "version + 1").
		Set("updated_at", row.UpdatedAt).
		Where(qb.Eq("code", g.Code), qb.Eq("version", g.Version)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update game query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update game code=%s: %w", g.Code, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game code=%s rows affected: %w", g.Code, err)
	}
	if affected == 0 {
		return r.saveMiss(ctx, g)
	}

	g.Version++
	return nil
}

func (r *GameRepository) saveMiss(ctx context.Context, g *game.Game) error {
	stored, exists, err := r.Load(ctx, g.Code)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(game.ErrNotFound, "game %s", g.Code)
	}
	return errors.Wrapf(game.ErrConcurrentModification, "game %s at version %d, saving %d", g.Code, stored.Version, g.Version)
}

func (r *GameRepository) Delete(ctx context.Context, code string) error {
	code = game.NormalizeCode(code)
	query, args, err := qb.DeleteFrom(gamesTable).Where(qb.Eq("code", code)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete game query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete game code=%s: %w", code, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete game code=%s rows affected: %w", code, err)
	}
	if affected == 0 {
		return errors.Wrapf(game.ErrNotFound, "game %s", code)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
