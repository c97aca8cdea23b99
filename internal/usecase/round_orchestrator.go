package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/riskibarqy/meme-party/internal/domain/game"
	"github.com/riskibarqy/meme-party/internal/domain/phasetask"
	"github.com/riskibarqy/meme-party/internal/platform/id"
	"github.com/riskibarqy/meme-party/internal/platform/keylock"
	"github.com/riskibarqy/meme-party/internal/platform/logging"
)

type RoundConfig struct {
	CreativePhaseSeconds int
	ScorePhaseSeconds    int
	RoundEndSeconds      int
}

func DefaultRoundConfig() RoundConfig {
	return RoundConfig{
		CreativePhaseSeconds: 90,
		ScorePhaseSeconds:    20,
		RoundEndSeconds:      10,
	}
}

type SubmitMemeInput struct {
	GameCode     string
	RoundNumber  int
	PlayerID     string
	SubmissionID string
	TemplateID   string
	TextEntries  []game.TextEntry
}

type RateMemeInput struct {
	GameCode     string
	RoundNumber  int
	SubmissionID string
	VoterID      string
	Rating       int
}

type RateResult struct {
	Applied         bool `json:"applied"`
	ScorePhaseEnded bool `json:"score_phase_ended"`
	RoundEnded      bool `json:"round_ended"`
}

type ScorePhaseResult struct {
	RoundEnded       bool   `json:"round_ended"`
	NextSubmissionID string `json:"next_submission_id,omitempty"`
	GameCompleted    bool   `json:"game_completed"`
	Noop             bool   `json:"noop"`
}

type RoundEndResult struct {
	Noop          bool                   `json:"noop"`
	GameCompleted bool                   `json:"game_completed"`
	Scoreboard    []game.ScoreboardEntry `json:"-"`
}

// RoundOrchestrator drives a game through its rounds. Every transition can be
// triggered by a player action or by a fired phase task; whichever comes
// second finds the transition already applied and does nothing.
type RoundOrchestrator struct {
	runner    gameRunner
	scheduler PhaseScheduler
	ids       id.Generator
	cfg       RoundConfig
	now       func() time.Time
}

func NewRoundOrchestrator(
	repo game.Repository,
	scheduler PhaseScheduler,
	publisher EventPublisher,
	locks *keylock.Striped,
	ids id.Generator,
	cfg RoundConfig,
	logger *logging.Logger,
) *RoundOrchestrator {
	defaults := DefaultRoundConfig()
	if cfg.CreativePhaseSeconds <= 0 {
		cfg.CreativePhaseSeconds = defaults.CreativePhaseSeconds
	}
	if cfg.ScorePhaseSeconds <= 0 {
		cfg.ScorePhaseSeconds = defaults.ScorePhaseSeconds
	}
	if cfg.RoundEndSeconds <= 0 {
		cfg.RoundEndSeconds = defaults.RoundEndSeconds
	}
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}
	return &RoundOrchestrator{
		runner:    newGameRunner(repo, publisher, locks, logger),
		scheduler: scheduler,
		ids:       ids,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *RoundOrchestrator) StartGame(ctx context.Context, code, requesterID string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.RoundOrchestrator.StartGame", gameAttrs(code, 1)...)
	defer span.End()

	_, err := s.runner.run(ctx, code, func(tx *gameTx) error {
		if err := tx.game.StartGame(requesterID, s.now()); err != nil {
			return err
		}
		tx.touch()
		s.openRound(tx, tx.game.CurrentRound)
		return nil
	})
	return err
}

func (s *RoundOrchestrator) SubmitMeme(ctx context.Context, input SubmitMemeInput) (game.Submission, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RoundOrchestrator.SubmitMeme", gameAttrs(input.GameCode, input.RoundNumber)...)
	defer span.End()

	input.TemplateID = strings.TrimSpace(input.TemplateID)
	if input.TemplateID == "" {
		return game.Submission{}, fmt.Errorf("%w: template id is required", ErrInvalidInput)
	}
	if input.RoundNumber <= 0 {
		return game.Submission{}, fmt.Errorf("%w: round must be > 0", ErrInvalidInput)
	}
	if input.SubmissionID == "" {
		subID, err := s.ids.NewID()
		if err != nil {
			return game.Submission{}, fmt.Errorf("generate submission id: %w", err)
		}
		input.SubmissionID = subID
	}

	var out game.Submission
	_, err := s.runner.run(ctx, input.GameCode, func(tx *gameTx) error {
		g := &tx.game
		if g.State == game.StateInProgress && g.CurrentRound != input.RoundNumber {
			return errors.Wrapf(game.ErrState, "round %d is not the current round %d", input.RoundNumber, g.CurrentRound)
		}

		now := s.now().UTC()
		sub := game.Submission{
			ID:          input.SubmissionID,
			PlayerID:    input.PlayerID,
			TemplateID:  input.TemplateID,
			TextEntries: input.TextEntries,
			SubmittedAt: now,
		}
		if err := g.AddSubmission(input.RoundNumber, sub); err != nil {
			return err
		}
		tx.touch()

		round, err := g.Round(input.RoundNumber)
		if err != nil {
			return err
		}
		out, _ = g.Submission(sub.ID)
		tx.emit(EventSubmissionReceived, input.RoundNumber, now, SubmissionReceivedData{
			PlayerID: input.PlayerID,
			Count:    len(round.Submissions),
			Expected: len(g.Players),
		})
		return nil
	})
	if err != nil {
		return game.Submission{}, err
	}
	return out, nil
}

// EndCreativePhase closes submissions and starts rating the first submission.
// It is a no-op unless the round is still in its creative phase.
func (s *RoundOrchestrator) EndCreativePhase(ctx context.Context, code string, round int) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RoundOrchestrator.EndCreativePhase", gameAttrs(code, round)...)
	defer span.End()

	advanced := false
	_, err := s.runner.run(ctx, code, func(tx *gameTx) error {
		var err error
		advanced, err = s.endCreativePhase(tx, round)
		return err
	})
	return advanced, err
}

func (s *RoundOrchestrator) endCreativePhase(tx *gameTx, roundNumber int) (bool, error) {
	g := &tx.game
	if g.State != game.StateInProgress {
		return false, nil
	}
	round, err := g.Round(roundNumber)
	if err != nil || round.Phase != game.PhaseCreative {
		return false, nil
	}

	now := s.now()
	submissionCount := len(round.Submissions)
	if submissionCount == 0 {
		tx.emit(EventCreativePhaseEnded, roundNumber, now, CreativePhaseEndedData{})
		if _, err := s.endRound(tx, roundNumber); err != nil {
			return false, err
		}
		return true, nil
	}

	next, _ := g.GetRandomUnratedSubmission(roundNumber)
	if err := g.BeginScoring(roundNumber, next.ID); err != nil {
		return false, err
	}
	tx.touch()
	tx.emit(EventCreativePhaseEnded, roundNumber, now, CreativePhaseEndedData{SubmissionCount: submissionCount})
	s.openScorePhase(tx, roundNumber, next)
	return true, nil
}

// RateMeme records one vote. A voter rating the same submission twice is
// ignored. The vote that completes the quorum ends the score phase right away.
func (s *RoundOrchestrator) RateMeme(ctx context.Context, input RateMemeInput) (RateResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RoundOrchestrator.RateMeme", gameAttrs(input.GameCode, input.RoundNumber)...)
	defer span.End()

	var result RateResult
	_, err := s.runner.run(ctx, input.GameCode, func(tx *gameTx) error {
		g := &tx.game
		if g.State != game.StateInProgress {
			return errors.Wrapf(game.ErrState, "game %s is not in progress", g.Code)
		}
		round, err := g.Round(input.RoundNumber)
		if err != nil {
			return err
		}

		sub, ok := g.Submission(input.SubmissionID)
		if !ok {
			return errors.Wrapf(game.ErrNotFound, "submission %s", input.SubmissionID)
		}
		if sub.PlayerID == input.VoterID {
			return errors.Wrapf(game.ErrInvariantViolation, "player %s cannot rate their own submission", input.VoterID)
		}
		if input.Rating < game.MinRating || input.Rating > game.MaxRating {
			return errors.Wrapf(game.ErrInvariantViolation, "rating %d outside [%d,%d]", input.Rating, game.MinRating, game.MaxRating)
		}
		if _, ok := g.Player(input.VoterID); !ok {
			return errors.Wrapf(game.ErrNotFound, "player %s is not in game %s", input.VoterID, g.Code)
		}
		if round.Phase != game.PhaseScoring || round.CurrentSubmissionID != input.SubmissionID || g.HasScoringEnded(input.SubmissionID) {
			return errors.Wrapf(game.ErrState, "submission %s is not being rated", input.SubmissionID)
		}

		if _, voted := g.GetScoresForSubmission(input.SubmissionID)[input.VoterID]; voted {
			return nil
		}
		if err := g.AddScore(input.RoundNumber, input.SubmissionID, input.VoterID, input.Rating); err != nil {
			return err
		}
		tx.touch()
		result.Applied = true

		count := len(g.GetScoresForSubmission(input.SubmissionID))
		expected := g.EligibleVoterCount(input.SubmissionID)
		tx.emit(EventRatingReceived, input.RoundNumber, s.now(), RatingReceivedData{
			SubmissionID: input.SubmissionID,
			VoterID:      input.VoterID,
			Count:        count,
			Expected:     expected,
		})
		if count < expected {
			return nil
		}

		phase, err := s.endScorePhase(tx, input.RoundNumber, input.SubmissionID)
		if err != nil {
			return err
		}
		result.ScorePhaseEnded = !phase.Noop
		result.RoundEnded = phase.RoundEnded
		return nil
	})
	if err != nil {
		return RateResult{}, err
	}
	return result, nil
}

// EndScorePhase closes rating for one submission and moves on to the next one,
// or ends the round when every submission was rated.
func (s *RoundOrchestrator) EndScorePhase(ctx context.Context, code string, round int, submissionID string) (ScorePhaseResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RoundOrchestrator.EndScorePhase", gameAttrs(code, round)...)
	defer span.End()

	var result ScorePhaseResult
	_, err := s.runner.run(ctx, code, func(tx *gameTx) error {
		var err error
		result, err = s.endScorePhase(tx, round, submissionID)
		return err
	})
	if err != nil {
		return ScorePhaseResult{}, err
	}
	return result, nil
}

func (s *RoundOrchestrator) endScorePhase(tx *gameTx, roundNumber int, submissionID string) (ScorePhaseResult, error) {
	g := &tx.game
	noop := ScorePhaseResult{Noop: true}
	if g.State != game.StateInProgress || g.HasScoringEnded(submissionID) || g.HasRoundEnded(roundNumber) {
		return noop, nil
	}
	round, err := g.Round(roundNumber)
	if err != nil {
		return noop, nil
	}
	if _, ok := g.Submission(submissionID); !ok {
		return ScorePhaseResult{}, errors.Wrapf(game.ErrNotFound, "submission %s", submissionID)
	}
	// only the submission being rated can close; its own timeout is still pending
	if round.Phase != game.PhaseScoring || round.CurrentSubmissionID != submissionID {
		return noop, nil
	}

	if err := g.MarkSubmissionScoringEnded(submissionID); err != nil {
		return ScorePhaseResult{}, err
	}
	tx.touch()

	if next, ok := g.GetRandomUnratedSubmission(roundNumber); ok {
		if err := g.BeginScoring(roundNumber, next.ID); err != nil {
			return ScorePhaseResult{}, err
		}
		s.openScorePhase(tx, roundNumber, next)
		return ScorePhaseResult{NextSubmissionID: next.ID}, nil
	}

	ended, err := s.endRound(tx, roundNumber)
	if err != nil {
		return ScorePhaseResult{}, err
	}
	return ScorePhaseResult{RoundEnded: !ended.Noop, GameCompleted: ended.GameCompleted}, nil
}

// EndRound freezes the scoreboard. The next round is scheduled, or the game is
// completed after the last round.
func (s *RoundOrchestrator) EndRound(ctx context.Context, code string, round int) (RoundEndResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RoundOrchestrator.EndRound", gameAttrs(code, round)...)
	defer span.End()

	var result RoundEndResult
	_, err := s.runner.run(ctx, code, func(tx *gameTx) error {
		var err error
		result, err = s.endRound(tx, round)
		return err
	})
	if err != nil {
		return RoundEndResult{}, err
	}
	return result, nil
}

func (s *RoundOrchestrator) endRound(tx *gameTx, roundNumber int) (RoundEndResult, error) {
	g := &tx.game
	if g.State != game.StateInProgress {
		return RoundEndResult{Noop: true}, nil
	}
	if _, err := g.Round(roundNumber); err != nil {
		return RoundEndResult{Noop: true}, nil
	}

	now := s.now()
	scoreboard, ended, err := g.EndRound(roundNumber, now)
	if err != nil {
		return RoundEndResult{}, err
	}
	if !ended {
		return RoundEndResult{Noop: true, Scoreboard: scoreboard}, nil
	}
	tx.touch()

	tx.emit(EventRoundEnded, roundNumber, now, RoundEndedData{
		RoundNumber: roundNumber,
		TotalRounds: g.TotalRounds,
		Scoreboard:  scoreboardViews(scoreboard),
	})

	code := g.Code
	if !g.IsLastRound(roundNumber) {
		delay := s.cfg.RoundEndSeconds
		tx.afterSave(func() {
			s.scheduler.ScheduleStartNewRound(code, roundNumber+1, delay)
		})
		return RoundEndResult{Scoreboard: scoreboard}, nil
	}

	g.Complete()
	tx.afterSave(func() {
		s.scheduler.CancelAllTasksForGame(code)
	})
	tx.emit(EventGameCompleted, roundNumber, now, GameCompletedData{Scoreboard: scoreboardViews(scoreboard)})
	return RoundEndResult{GameCompleted: true, Scoreboard: scoreboard}, nil
}

// StartNewRound opens round number `round`. It only acts when the previous
// round has ended and nothing newer exists yet.
func (s *RoundOrchestrator) StartNewRound(ctx context.Context, code string, round int) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RoundOrchestrator.StartNewRound", gameAttrs(code, round)...)
	defer span.End()

	started := false
	_, err := s.runner.run(ctx, code, func(tx *gameTx) error {
		g := &tx.game
		if g.State != game.StateInProgress || g.CurrentRound != round-1 || !g.HasRoundEnded(round-1) {
			return nil
		}
		next, err := g.StartNextRound(s.now())
		if err != nil {
			return err
		}
		tx.touch()
		s.openRound(tx, next.Number)
		started = true
		return nil
	})
	return started, err
}

// HandleTask dispatches a fired phase task. Stale tasks for deleted games are
// dropped quietly.
func (s *RoundOrchestrator) HandleTask(ctx context.Context, task phasetask.Task) error {
	var err error
	switch task.Type {
	case phasetask.TypeCreativePhaseEnded:
		_, err = s.EndCreativePhase(ctx, task.GameCode, task.RoundNumber)
	case phasetask.TypeScorePhaseEnded:
		_, err = s.EndScorePhase(ctx, task.GameCode, task.RoundNumber, task.SubmissionID)
	case phasetask.TypeRoundEnded:
		_, err = s.EndRound(ctx, task.GameCode, task.RoundNumber)
	case phasetask.TypeStartNewRound:
		_, err = s.StartNewRound(ctx, task.GameCode, task.RoundNumber)
	default:
		return fmt.Errorf("%w: unknown phase task type %q", ErrInvalidInput, task.Type)
	}

	if errors.Is(err, game.ErrNotFound) {
		s.runner.logger.DebugContext(ctx, "phase task for missing game dropped",
			"task_id", task.ID,
			"type", task.Type,
			"game_code", task.GameCode,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("handle %s task %s: %w", task.Type, task.ID, err)
	}
	return nil
}

func (s *RoundOrchestrator) openRound(tx *gameTx, roundNumber int) {
	code := tx.game.Code
	delay := s.cfg.CreativePhaseSeconds
	tx.afterSave(func() {
		s.scheduler.ScheduleCreativePhaseEnded(code, roundNumber, delay)
	})
	tx.emit(EventRoundStarted, roundNumber, s.now(), RoundStartedData{
		RoundNumber:     roundNumber,
		TotalRounds:     tx.game.TotalRounds,
		DurationSeconds: delay,
	})
}

func (s *RoundOrchestrator) openScorePhase(tx *gameTx, roundNumber int, sub game.Submission) {
	code := tx.game.Code
	delay := s.cfg.ScorePhaseSeconds
	tx.afterSave(func() {
		s.scheduler.ScheduleScorePhaseEnded(code, roundNumber, sub.ID, delay)
	})
	tx.emit(EventScorePhaseStarted, roundNumber, s.now(), ScorePhaseStartedData{
		SubmissionID:          sub.ID,
		OwnerID:               sub.PlayerID,
		TemplateID:            sub.TemplateID,
		TextEntries:           textEntryViews(sub.TextEntries),
		RatingDurationSeconds: delay,
	})
}
