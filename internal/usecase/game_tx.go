package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/riskibarqy/meme-party/internal/domain/game"
	"github.com/riskibarqy/meme-party/internal/domain/phasetask"
	"github.com/riskibarqy/meme-party/internal/platform/keylock"
	"github.com/riskibarqy/meme-party/internal/platform/logging"
)

// TaskCanceller drops every pending phase task of a game.
type TaskCanceller interface {
	CancelAllTasksForGame(code string) int
}

// PhaseScheduler is the delayed-task port the orchestrator drives.
type PhaseScheduler interface {
	TaskCanceller
	ScheduleCreativePhaseEnded(code string, round, delaySeconds int) phasetask.Task
	ScheduleScorePhaseEnded(code string, round int, submissionID string, delaySeconds int) phasetask.Task
	ScheduleRoundEnded(code string, round, delaySeconds int) phasetask.Task
	ScheduleStartNewRound(code string, round, delaySeconds int) phasetask.Task
}

// gameTx collects what a handler decided while holding the game lock. Nothing
// leaves the process until the game is saved.
type gameTx struct {
	game    game.Game
	dirty   bool
	deleted bool
	after   []func()
	events  []Event
}

func (tx *gameTx) touch() {
	tx.dirty = true
}

func (tx *gameTx) afterSave(fn func()) {
	tx.after = append(tx.after, fn)
}

func (tx *gameTx) emit(eventType EventType, round int, at time.Time, data any) {
	tx.events = append(tx.events, Event{
		Type:        eventType,
		GameCode:    tx.game.Code,
		RoundNumber: round,
		OccurredAt:  at.UTC(),
		Data:        data,
	})
}

// gameRunner owns the lock → load → mutate → save → side effects sequence
// shared by the lobby and the round orchestrator.
type gameRunner struct {
	repo      game.Repository
	publisher EventPublisher
	locks     *keylock.Striped
	logger    *logging.Logger
}

func newGameRunner(repo game.Repository, publisher EventPublisher, locks *keylock.Striped, logger *logging.Logger) gameRunner {
	if publisher == nil {
		publisher = NewNoopEventPublisher()
	}
	if locks == nil {
		locks = keylock.New(0)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return gameRunner{repo: repo, publisher: publisher, locks: locks, logger: logger}
}

// run executes fn against a freshly loaded game while holding the game's lock.
// The game is saved once if fn marked it dirty, then scheduled side effects
// run and events are published. It returns the game as committed.
func (r gameRunner) run(ctx context.Context, code string, fn func(tx *gameTx) error) (game.Game, error) {
	code = game.NormalizeCode(code)
	if code == "" {
		return game.Game{}, fmt.Errorf("%w: game code is required", ErrInvalidInput)
	}

	unlock := r.locks.Lock(code)
	defer unlock()

	g, ok, err := r.repo.Load(ctx, code)
	if err != nil {
		return game.Game{}, fmt.Errorf("load game code=%s: %w", code, err)
	}
	if !ok {
		return game.Game{}, errors.Wrapf(game.ErrNotFound, "game %s", code)
	}

	tx := &gameTx{game: g}
	if err := fn(tx); err != nil {
		return game.Game{}, err
	}

	switch {
	case tx.deleted:
		if err := r.repo.Delete(ctx, code); err != nil {
			return game.Game{}, fmt.Errorf("delete game code=%s: %w", code, err)
		}
	case tx.dirty:
		if err := r.repo.Save(ctx, &tx.game); err != nil {
			return game.Game{}, fmt.Errorf("save game code=%s: %w", code, err)
		}
	}

	for _, fn := range tx.after {
		fn()
	}
	r.publish(ctx, tx.events...)
	return tx.game, nil
}

// publish never fails the caller: the game state is already committed.
func (r gameRunner) publish(ctx context.Context, events ...Event) {
	for _, event := range events {
		topic := GameTopic(event.GameCode)
		if err := r.publisher.Publish(ctx, topic, event); err != nil {
			r.logger.WarnContext(ctx, "publish game event failed",
				"topic", topic,
				"event_type", event.Type,
				"error", err,
			)
		}
	}
}
