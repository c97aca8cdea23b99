package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/riskibarqy/meme-party/internal/domain/game"
	"github.com/riskibarqy/meme-party/internal/platform/id"
	"github.com/riskibarqy/meme-party/internal/platform/keylock"
	"github.com/riskibarqy/meme-party/internal/platform/logging"
)

const joinCodeAttempts = 5

type LobbyConfig struct {
	DefaultTotalRounds int
}

type CreateGameInput struct {
	PlayerID    string
	DisplayName string
	Password    string
	TotalRounds int
}

type JoinGameInput struct {
	GameCode    string
	PlayerID    string
	DisplayName string
	Password    string
}

type LobbyService struct {
	runner    gameRunner
	scheduler TaskCanceller
	ids       id.Generator
	cfg       LobbyConfig
	now       func() time.Time
}

func NewLobbyService(
	repo game.Repository,
	scheduler TaskCanceller,
	publisher EventPublisher,
	locks *keylock.Striped,
	ids id.Generator,
	cfg LobbyConfig,
	logger *logging.Logger,
) *LobbyService {
	if cfg.DefaultTotalRounds <= 0 {
		cfg.DefaultTotalRounds = game.DefaultTotalRounds
	}
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}
	return &LobbyService{
		runner:    newGameRunner(repo, publisher, locks, logger),
		scheduler: scheduler,
		ids:       ids,
		cfg:       cfg,
		now:       time.Now,
	}
}

// CreateGame opens a lobby under a fresh join code with the creator as admin.
func (s *LobbyService) CreateGame(ctx context.Context, input CreateGameInput) (game.Game, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LobbyService.CreateGame")
	defer span.End()

	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.DisplayName == "" {
		return game.Game{}, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	if input.TotalRounds == 0 {
		input.TotalRounds = s.cfg.DefaultTotalRounds
	}
	if input.TotalRounds < 1 || input.TotalRounds > game.MaxTotalRounds {
		return game.Game{}, fmt.Errorf("%w: total rounds must be between 1 and %d", ErrInvalidInput, game.MaxTotalRounds)
	}
	if input.PlayerID == "" {
		playerID, err := s.ids.NewID()
		if err != nil {
			return game.Game{}, fmt.Errorf("generate player id: %w", err)
		}
		input.PlayerID = playerID
	}

	now := s.now()
	for attempt := 1; attempt <= joinCodeAttempts; attempt++ {
		code, err := s.ids.NewJoinCode()
		if err != nil {
			return game.Game{}, fmt.Errorf("generate join code: %w", err)
		}

		g := game.NewGame(code, input.Password, input.TotalRounds, now)
		if err := g.AddPlayer(input.PlayerID, input.DisplayName, input.Password, now); err != nil {
			return game.Game{}, err
		}

		err = s.runner.repo.Create(ctx, g)
		if errors.Is(err, game.ErrConflict) {
			s.runner.logger.WarnContext(ctx, "join code collision, retrying", "game_code", g.Code, "attempt", attempt)
			continue
		}
		if err != nil {
			return game.Game{}, fmt.Errorf("create game code=%s: %w", g.Code, err)
		}

		s.runner.logger.InfoContext(ctx, "game created", "game_code", g.Code, "admin_id", input.PlayerID, "total_rounds", g.TotalRounds)
		return s.GetGame(ctx, g.Code)
	}
	return game.Game{}, errors.Wrapf(game.ErrConflict, "no free join code after %d attempts", joinCodeAttempts)
}

func (s *LobbyService) JoinGame(ctx context.Context, input JoinGameInput) (game.Game, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LobbyService.JoinGame")
	defer span.End()

	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.DisplayName == "" {
		return game.Game{}, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	if input.PlayerID == "" {
		playerID, err := s.ids.NewID()
		if err != nil {
			return game.Game{}, fmt.Errorf("generate player id: %w", err)
		}
		input.PlayerID = playerID
	}

	return s.runner.run(ctx, input.GameCode, func(tx *gameTx) error {
		now := s.now()
		if err := tx.game.AddPlayer(input.PlayerID, input.DisplayName, input.Password, now); err != nil {
			return err
		}
		tx.touch()
		tx.emit(EventPlayerJoined, 0, now, PlayerData{PlayerID: input.PlayerID, DisplayName: input.DisplayName})
		if tx.game.AdminID == input.PlayerID {
			tx.emit(EventAdminChanged, 0, now, AdminChangedData{AdminID: input.PlayerID})
		}
		return nil
	})
}

// LeaveGame removes the player. The last player out deletes the game.
func (s *LobbyService) LeaveGame(ctx context.Context, code, playerID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.LobbyService.LeaveGame")
	defer span.End()

	_, err := s.runner.run(ctx, code, func(tx *gameTx) error {
		adminBefore := tx.game.AdminID
		if err := tx.game.RemovePlayer(playerID); err != nil {
			return err
		}
		now := s.now()
		tx.touch()
		tx.emit(EventPlayerLeft, 0, now, PlayerData{PlayerID: playerID})
		s.afterRemoval(tx, adminBefore, now)
		return nil
	})
	return err
}

func (s *LobbyService) KickPlayer(ctx context.Context, code, requesterID, targetID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.LobbyService.KickPlayer")
	defer span.End()

	_, err := s.runner.run(ctx, code, func(tx *gameTx) error {
		adminBefore := tx.game.AdminID
		if err := tx.game.KickPlayer(requesterID, targetID); err != nil {
			return err
		}
		now := s.now()
		tx.touch()
		tx.emit(EventPlayerKicked, 0, now, PlayerKickedData{PlayerID: targetID, KickedBy: requesterID})
		s.afterRemoval(tx, adminBefore, now)
		return nil
	})
	return err
}

func (s *LobbyService) afterRemoval(tx *gameTx, adminBefore string, now time.Time) {
	if len(tx.game.Players) == 0 {
		s.markDeleted(tx, now)
		return
	}
	if tx.game.AdminID != adminBefore {
		tx.emit(EventAdminChanged, 0, now, AdminChangedData{AdminID: tx.game.AdminID})
	}
}

func (s *LobbyService) SetReady(ctx context.Context, code, playerID string, ready bool) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.LobbyService.SetReady")
	defer span.End()

	_, err := s.runner.run(ctx, code, func(tx *gameTx) error {
		if err := tx.game.SetPlayerReady(playerID, ready); err != nil {
			return err
		}
		tx.touch()
		tx.emit(EventPlayerReady, 0, s.now(), PlayerReadyData{PlayerID: playerID, Ready: ready})
		return nil
	})
	return err
}

func (s *LobbyService) GetGame(ctx context.Context, code string) (game.Game, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LobbyService.GetGame")
	defer span.End()

	code = game.NormalizeCode(code)
	if code == "" {
		return game.Game{}, fmt.Errorf("%w: game code is required", ErrInvalidInput)
	}
	g, ok, err := s.runner.repo.Load(ctx, code)
	if err != nil {
		return game.Game{}, fmt.Errorf("load game code=%s: %w", code, err)
	}
	if !ok {
		return game.Game{}, errors.Wrapf(game.ErrNotFound, "game %s", code)
	}
	return g, nil
}

// DeleteGame is admin only and works in any state.
func (s *LobbyService) DeleteGame(ctx context.Context, code, requesterID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.LobbyService.DeleteGame")
	defer span.End()

	_, err := s.runner.run(ctx, code, func(tx *gameTx) error {
		if !tx.game.IsAdmin(requesterID) {
			return errors.Wrapf(game.ErrAuthorization, "only the admin can delete game %s", tx.game.Code)
		}
		s.markDeleted(tx, s.now())
		return nil
	})
	return err
}

func (s *LobbyService) markDeleted(tx *gameTx, now time.Time) {
	code := tx.game.Code
	tx.deleted = true
	if s.scheduler != nil {
		tx.afterSave(func() {
			s.scheduler.CancelAllTasksForGame(code)
		})
	}
	tx.emit(EventGameDeleted, 0, now, nil)
}
