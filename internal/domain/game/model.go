package game

import (
	"strings"
	"time"
)

type State string

const (
	StateLobby      State = "lobby"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

type RoundPhase string

const (
	PhaseCreative RoundPhase = "creative"
	PhaseScoring  RoundPhase = "scoring"
	PhaseEnded    RoundPhase = "ended"
)

const (
	MinRating          = 0
	MaxRating          = 5
	MinPlayersToStart  = 2
	DefaultTotalRounds = 3
	MaxTotalRounds     = 20
)

// Game is the aggregate root for one party game. It is always loaded, mutated
// and saved as a unit.
type Game struct {
	Code         string
	AdminID      string
	Password     string
	State        State
	CreatedAt    time.Time
	CurrentRound int
	TotalRounds  int
	Rounds       []Round
	Players      []Player
	Version      int64
}

type Player struct {
	ID          string
	DisplayName string
	Ready       bool
	JoinedAt    time.Time
}

type TextEntry struct {
	FieldID string
	Text    string
}

type Submission struct {
	ID          string
	PlayerID    string
	TemplateID  string
	TextEntries []TextEntry
	SubmittedAt time.Time
}

type Round struct {
	Number              int
	StartedAt           time.Time
	Phase               RoundPhase
	Submissions         []Submission
	ScoringEnded        map[string]bool
	Ratings             map[string]map[string]int
	CurrentSubmissionID string
	Scoreboard          []ScoreboardEntry
	EndedAt             *time.Time
}

type ScoreboardEntry struct {
	PlayerID    string
	DisplayName string
	RoundPoints int
	TotalPoints int
	Rank        int
}

// NormalizeCode upper-cases a join code so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func NewGame(code, password string, totalRounds int, now time.Time) Game {
	if totalRounds <= 0 {
		totalRounds = DefaultTotalRounds
	}
	return Game{
		Code:        NormalizeCode(code),
		Password:    password,
		State:       StateLobby,
		CreatedAt:   now.UTC(),
		TotalRounds: totalRounds,
	}
}

func newRound(number int, now time.Time) Round {
	return Round{
		Number:       number,
		StartedAt:    now.UTC(),
		Phase:        PhaseCreative,
		ScoringEnded: make(map[string]bool),
		Ratings:      make(map[string]map[string]int),
	}
}

func (r *Round) submission(submissionID string) (Submission, bool) {
	for _, sub := range r.Submissions {
		if sub.ID == submissionID {
			return sub, true
		}
	}
	return Submission{}, false
}

// HasEnded reports whether the round already produced its scoreboard.
func (r *Round) HasEnded() bool {
	return r.Scoreboard != nil
}

// Clone returns a deep copy. Stores hand out clones so that callers never share
// maps or slices with persisted state.
func (g Game) Clone() Game {
	out := g
	out.Players = append([]Player(nil), g.Players...)
	out.Rounds = make([]Round, 0, len(g.Rounds))
	for _, r := range g.Rounds {
		out.Rounds = append(out.Rounds, r.clone())
	}
	return out
}

func (r Round) clone() Round {
	out := r
	out.Submissions = make([]Submission, 0, len(r.Submissions))
	for _, sub := range r.Submissions {
		sub.TextEntries = append([]TextEntry(nil), sub.TextEntries...)
		out.Submissions = append(out.Submissions, sub)
	}
	out.ScoringEnded = make(map[string]bool, len(r.ScoringEnded))
	for id, ended := range r.ScoringEnded {
		out.ScoringEnded[id] = ended
	}
	out.Ratings = make(map[string]map[string]int, len(r.Ratings))
	for subID, votes := range r.Ratings {
		copied := make(map[string]int, len(votes))
		for voter, rating := range votes {
			copied[voter] = rating
		}
		out.Ratings[subID] = copied
	}
	if r.Scoreboard != nil {
		out.Scoreboard = append([]ScoreboardEntry{}, r.Scoreboard...)
	}
	if r.EndedAt != nil {
		endedAt := *r.EndedAt
		out.EndedAt = &endedAt
	}
	return out
}
