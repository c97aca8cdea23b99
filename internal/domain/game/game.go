package game

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

// randIntN picks the next submission to score. Tests replace it to make the
// order deterministic.
var randIntN = rand.IntN

func (g *Game) requireState(want State, action string) error {
	if g.State != want {
		return errors.Wrapf(ErrState, "cannot %s while game %s is %s", action, g.Code, g.State)
	}
	return nil
}

func (g *Game) playerIndex(playerID string) int {
	for i, p := range g.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// Player returns the player with the given id.
func (g *Game) Player(playerID string) (Player, bool) {
	idx := g.playerIndex(playerID)
	if idx < 0 {
		return Player{}, false
	}
	return g.Players[idx], true
}

func (g *Game) IsAdmin(playerID string) bool {
	return playerID != "" && g.AdminID == playerID
}

// AddPlayer joins a player to the lobby. The first player to join a game that
// has no admin becomes the admin.
func (g *Game) AddPlayer(playerID, displayName, passwordAttempt string, now time.Time) error {
	if err := g.requireState(StateLobby, "join"); err != nil {
		return err
	}
	if g.Password != "" && passwordAttempt != g.Password {
		return errors.Wrapf(ErrAuthentication, "wrong password for game %s", g.Code)
	}
	for _, p := range g.Players {
		if p.ID == playerID {
			return errors.Wrapf(ErrConflict, "player %s already joined game %s", playerID, g.Code)
		}
		if p.DisplayName == displayName {
			return errors.Wrapf(ErrConflict, "display name %q already taken", displayName)
		}
	}

	g.Players = append(g.Players, Player{
		ID:          playerID,
		DisplayName: displayName,
		Ready:       false,
		JoinedAt:    now.UTC(),
	})
	if g.AdminID == "" {
		g.AdminID = playerID
	}
	return nil
}

// RemovePlayer drops a player from the lobby. When the admin leaves, the
// earliest remaining player takes over; the last player leaving leaves the game
// empty and without admin.
func (g *Game) RemovePlayer(playerID string) error {
	if err := g.requireState(StateLobby, "leave"); err != nil {
		return err
	}
	idx := g.playerIndex(playerID)
	if idx < 0 {
		return errors.Wrapf(ErrNotFound, "player %s is not in game %s", playerID, g.Code)
	}

	g.Players = append(g.Players[:idx], g.Players[idx+1:]...)
	if g.AdminID == playerID {
		g.AdminID = ""
		if len(g.Players) > 0 {
			g.AdminID = g.Players[0].ID
		}
	}
	return nil
}

func (g *Game) KickPlayer(requesterID, targetID string) error {
	if err := g.requireState(StateLobby, "kick"); err != nil {
		return err
	}
	if !g.IsAdmin(requesterID) {
		return errors.Wrap(ErrAuthorization, "only the admin can kick players")
	}
	return g.RemovePlayer(targetID)
}

func (g *Game) SetPlayerReady(playerID string, ready bool) error {
	if err := g.requireState(StateLobby, "change ready state"); err != nil {
		return err
	}
	idx := g.playerIndex(playerID)
	if idx < 0 {
		return errors.Wrapf(ErrNotFound, "player %s is not in game %s", playerID, g.Code)
	}
	g.Players[idx].Ready = ready
	return nil
}

// StartGame moves the lobby into round 1.
func (g *Game) StartGame(requesterID string, now time.Time) error {
	if !g.IsAdmin(requesterID) {
		return errors.Wrapf(ErrAuthorization, "only the admin can start game %s", g.Code)
	}
	if err := g.requireState(StateLobby, "start"); err != nil {
		return err
	}
	if len(g.Players) < MinPlayersToStart {
		return errors.Wrapf(ErrState, "need at least %d players, have %d", MinPlayersToStart, len(g.Players))
	}
	for _, p := range g.Players {
		if !p.Ready {
			return errors.Wrapf(ErrState, "player %q is not ready", p.DisplayName)
		}
	}

	g.State = StateInProgress
	g.Rounds = append(g.Rounds, newRound(1, now))
	g.CurrentRound = 1
	return nil
}

// Round returns a pointer into the aggregate so callers can mutate it.
func (g *Game) Round(number int) (*Round, error) {
	for i := range g.Rounds {
		if g.Rounds[i].Number == number {
			return &g.Rounds[i], nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "round %d of game %s", number, g.Code)
}

// roundOf finds the round holding a submission, newest round first.
func (g *Game) roundOf(submissionID string) (*Round, Submission, bool) {
	for i := len(g.Rounds) - 1; i >= 0; i-- {
		if sub, ok := g.Rounds[i].submission(submissionID); ok {
			return &g.Rounds[i], sub, true
		}
	}
	return nil, Submission{}, false
}

// Submission looks a submission up across all rounds.
func (g *Game) Submission(submissionID string) (Submission, bool) {
	_, sub, ok := g.roundOf(submissionID)
	return sub, ok
}

func (g *Game) AddSubmission(roundNumber int, sub Submission) error {
	if err := g.requireState(StateInProgress, "submit"); err != nil {
		return err
	}
	round, err := g.Round(roundNumber)
	if err != nil {
		return err
	}
	if round.Phase != PhaseCreative {
		return errors.Wrapf(ErrState, "round %d is not accepting submissions", roundNumber)
	}
	if sub.ID == "" {
		return errors.Wrap(ErrInvariantViolation, "submission id is required")
	}
	if g.playerIndex(sub.PlayerID) < 0 {
		return errors.Wrapf(ErrNotFound, "player %s is not in game %s", sub.PlayerID, g.Code)
	}
	for _, existing := range round.Submissions {
		if existing.PlayerID == sub.PlayerID {
			return errors.Wrapf(ErrConflict, "player %s already submitted in round %d", sub.PlayerID, roundNumber)
		}
		if existing.ID == sub.ID {
			return errors.Wrapf(ErrConflict, "submission %s already exists", sub.ID)
		}
	}

	sub.TextEntries = append([]TextEntry(nil), sub.TextEntries...)
	round.Submissions = append(round.Submissions, sub)
	return nil
}

// AddScore records a rating. A repeated vote from the same voter overwrites the
// previous one; callers that want to ignore repeats must check first.
func (g *Game) AddScore(roundNumber int, submissionID, voterID string, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return errors.Wrapf(ErrInvariantViolation, "rating %d outside [%d,%d]", rating, MinRating, MaxRating)
	}
	round, err := g.Round(roundNumber)
	if err != nil {
		return err
	}
	sub, ok := round.submission(submissionID)
	if !ok {
		return errors.Wrapf(ErrNotFound, "submission %s in round %d", submissionID, roundNumber)
	}
	if sub.PlayerID == voterID {
		return errors.Wrapf(ErrInvariantViolation, "player %s cannot rate their own submission", voterID)
	}
	if g.playerIndex(voterID) < 0 {
		return errors.Wrapf(ErrNotFound, "player %s is not in game %s", voterID, g.Code)
	}

	if round.Ratings == nil {
		round.Ratings = make(map[string]map[string]int)
	}
	votes := round.Ratings[submissionID]
	if votes == nil {
		votes = make(map[string]int)
		round.Ratings[submissionID] = votes
	}
	votes[voterID] = rating
	return nil
}

func (g *Game) MarkSubmissionScoringEnded(submissionID string) error {
	round, _, ok := g.roundOf(submissionID)
	if !ok {
		return errors.Wrapf(ErrNotFound, "submission %s", submissionID)
	}
	if round.ScoringEnded == nil {
		round.ScoringEnded = make(map[string]bool)
	}
	round.ScoringEnded[submissionID] = true
	return nil
}

func (g *Game) HasScoringEnded(submissionID string) bool {
	round, _, ok := g.roundOf(submissionID)
	if !ok {
		return false
	}
	return round.ScoringEnded[submissionID]
}

// GetRandomUnratedSubmission picks uniformly among the round's submissions
// whose scoring has not ended.
func (g *Game) GetRandomUnratedSubmission(roundNumber int) (Submission, bool) {
	round, err := g.Round(roundNumber)
	if err != nil {
		return Submission{}, false
	}
	candidates := make([]Submission, 0, len(round.Submissions))
	for _, sub := range round.Submissions {
		if !round.ScoringEnded[sub.ID] {
			candidates = append(candidates, sub)
		}
	}
	if len(candidates) == 0 {
		return Submission{}, false
	}
	return candidates[randIntN(len(candidates))], true
}

func (g *Game) GetScoresForSubmission(submissionID string) map[string]int {
	round, _, ok := g.roundOf(submissionID)
	if !ok {
		return map[string]int{}
	}
	votes := round.Ratings[submissionID]
	out := make(map[string]int, len(votes))
	for voter, rating := range votes {
		out[voter] = rating
	}
	return out
}

// EligibleVoterCount is the number of players allowed to rate the submission.
func (g *Game) EligibleVoterCount(submissionID string) int {
	sub, ok := g.Submission(submissionID)
	if !ok {
		return 0
	}
	count := 0
	for _, p := range g.Players {
		if p.ID != sub.PlayerID {
			count++
		}
	}
	return count
}

// BeginScoring opens the given submission for rating.
func (g *Game) BeginScoring(roundNumber int, submissionID string) error {
	round, err := g.Round(roundNumber)
	if err != nil {
		return err
	}
	if round.HasEnded() {
		return errors.Wrapf(ErrState, "round %d already ended", roundNumber)
	}
	if _, ok := round.submission(submissionID); !ok {
		return errors.Wrapf(ErrNotFound, "submission %s in round %d", submissionID, roundNumber)
	}
	round.Phase = PhaseScoring
	round.CurrentSubmissionID = submissionID
	return nil
}

func (g *Game) HasRoundEnded(roundNumber int) bool {
	round, err := g.Round(roundNumber)
	if err != nil {
		return false
	}
	return round.HasEnded()
}

// BuildScoreboard ranks players by points received up to and including the
// given round. Ties share a rank.
func (g *Game) BuildScoreboard(roundNumber int) []ScoreboardEntry {
	roundPoints := make(map[string]int, len(g.Players))
	totalPoints := make(map[string]int, len(g.Players))
	for _, r := range g.Rounds {
		if r.Number > roundNumber {
			continue
		}
		for _, sub := range r.Submissions {
			points := 0
			for _, rating := range r.Ratings[sub.ID] {
				points += rating
			}
			totalPoints[sub.PlayerID] += points
			if r.Number == roundNumber {
				roundPoints[sub.PlayerID] += points
			}
		}
	}

	out := make([]ScoreboardEntry, 0, len(g.Players))
	for _, p := range g.Players {
		out = append(out, ScoreboardEntry{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			RoundPoints: roundPoints[p.ID],
			TotalPoints: totalPoints[p.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].DisplayName < out[j].DisplayName
	})

	rank := 0
	for i := range out {
		if i == 0 || out[i].TotalPoints != out[i-1].TotalPoints {
			rank++
		}
		out[i].Rank = rank
	}
	return out
}

// EndRound freezes the round's scoreboard. It reports false when the round had
// already ended.
func (g *Game) EndRound(roundNumber int, now time.Time) ([]ScoreboardEntry, bool, error) {
	round, err := g.Round(roundNumber)
	if err != nil {
		return nil, false, err
	}
	if round.HasEnded() {
		return round.Scoreboard, false, nil
	}

	scoreboard := g.BuildScoreboard(roundNumber)
	endedAt := now.UTC()
	round.Scoreboard = scoreboard
	round.Phase = PhaseEnded
	round.CurrentSubmissionID = ""
	round.EndedAt = &endedAt
	return scoreboard, true, nil
}

// StartNextRound opens the round after the current one.
func (g *Game) StartNextRound(now time.Time) (*Round, error) {
	if err := g.requireState(StateInProgress, "start a round"); err != nil {
		return nil, err
	}
	if g.CurrentRound >= g.TotalRounds {
		return nil, errors.Wrapf(ErrState, "game %s already played %d rounds", g.Code, g.TotalRounds)
	}
	if !g.HasRoundEnded(g.CurrentRound) {
		return nil, errors.Wrapf(ErrState, "round %d has not ended", g.CurrentRound)
	}

	g.CurrentRound++
	g.Rounds = append(g.Rounds, newRound(g.CurrentRound, now))
	return &g.Rounds[len(g.Rounds)-1], nil
}

func (g *Game) IsLastRound(roundNumber int) bool {
	return roundNumber >= g.TotalRounds
}

func (g *Game) Complete() {
	g.State = StateCompleted
}

// Validate re-checks invariants that every persisted game must hold.
func (g *Game) Validate() error {
	if NormalizeCode(g.Code) == "" || g.Code != NormalizeCode(g.Code) {
		return errors.Wrapf(ErrInvariantViolation, "invalid game code %q", g.Code)
	}
	if len(g.Players) == 0 {
		if g.AdminID != "" {
			return errors.Wrapf(ErrInvariantViolation, "game %s has an admin but no players", g.Code)
		}
		return nil
	}
	if g.playerIndex(g.AdminID) < 0 {
		return errors.Wrapf(ErrInvariantViolation, "admin %s of game %s is not a player", g.AdminID, g.Code)
	}
	for i, r := range g.Rounds {
		if r.Number != i+1 {
			return errors.Wrapf(ErrInvariantViolation, "game %s has round %d at position %d", g.Code, r.Number, i+1)
		}
	}
	return nil
}
