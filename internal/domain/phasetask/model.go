package phasetask

import "time"

type Type string

const (
	TypeCreativePhaseEnded Type = "creative_phase_ended"
	TypeScorePhaseEnded    Type = "score_phase_ended"
	TypeRoundEnded         Type = "round_ended"
	TypeStartNewRound      Type = "start_new_round"
)

const (
	MinDelay = time.Second
	MaxDelay = 120 * time.Second
)

// Task is a delayed phase transition for one game. SubmissionID is only set
// for score-phase tasks.
type Task struct {
	ID           string
	Type         Type
	GameCode     string
	RoundNumber  int
	SubmissionID string
	FireAt       time.Time
	CreatedAt    time.Time
}

// ClampDelay forces a requested delay into [MinDelay, MaxDelay].
func ClampDelay(d time.Duration) time.Duration {
	if d < MinDelay {
		return MinDelay
	}
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}
