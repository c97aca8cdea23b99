package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func lobbyWithPlayers(t *testing.T, names ...string) Game {
	t.Helper()

	g := NewGame("abc123", "", 2, testNow)
	for i, name := range names {
		require.NoError(t, g.AddPlayer(playerID(i+1), name, "", testNow))
	}
	return g
}

func playerID(n int) string {
	return "P" + string(rune('0'+n))
}

func startedGame(t *testing.T, names ...string) Game {
	t.Helper()

	g := lobbyWithPlayers(t, names...)
	for _, p := range g.Players {
		require.NoError(t, g.SetPlayerReady(p.ID, true))
	}
	require.NoError(t, g.StartGame(g.AdminID, testNow))
	return g
}

func assertAdminInvariant(t *testing.T, g Game) {
	t.Helper()

	require.NoError(t, g.Validate())
	if len(g.Players) == 0 {
		assert.Empty(t, g.AdminID)
		return
	}
	_, ok := g.Player(g.AdminID)
	assert.True(t, ok, "admin %s must be a current player", g.AdminID)
}

func TestNewGame_NormalizesCode(t *testing.T) {
	g := NewGame("  abc123 ", "", 0, testNow)

	assert.Equal(t, "ABC123", g.Code)
	assert.Equal(t, StateLobby, g.State)
	assert.Equal(t, DefaultTotalRounds, g.TotalRounds)
}

func TestAddPlayer(t *testing.T) {
	t.Run("first player becomes admin", func(t *testing.T) {
		g := lobbyWithPlayers(t, "alice", "bob")
		assert.Equal(t, "P1", g.AdminID)
		for _, p := range g.Players {
			assert.False(t, p.Ready)
		}
	})

	t.Run("duplicate display name is a conflict", func(t *testing.T) {
		g := lobbyWithPlayers(t, "alice")
		err := g.AddPlayer("P9", "alice", "", testNow)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("display names are case sensitive", func(t *testing.T) {
		g := lobbyWithPlayers(t, "alice")
		require.NoError(t, g.AddPlayer("P9", "Alice", "", testNow))
	})

	t.Run("wrong password", func(t *testing.T) {
		g := NewGame("XYZ999", "secret", 1, testNow)
		require.ErrorIs(t, g.AddPlayer("P1", "alice", "nope", testNow), ErrAuthentication)
		require.NoError(t, g.AddPlayer("P1", "alice", "secret", testNow))
	})

	t.Run("not in lobby", func(t *testing.T) {
		g := startedGame(t, "alice", "bob")
		require.ErrorIs(t, g.AddPlayer("P9", "carol", "", testNow), ErrState)
	})
}

func TestRemovePlayer_ReassignsAdmin(t *testing.T) {
	g := lobbyWithPlayers(t, "alice", "bob", "carol")

	require.NoError(t, g.RemovePlayer("P1"))
	assert.Equal(t, "P2", g.AdminID)
	assertAdminInvariant(t, g)

	require.NoError(t, g.RemovePlayer("P3"))
	assert.Equal(t, "P2", g.AdminID)
	assertAdminInvariant(t, g)

	require.NoError(t, g.RemovePlayer("P2"))
	assert.Empty(t, g.Players)
	assertAdminInvariant(t, g)

	require.ErrorIs(t, g.RemovePlayer("P2"), ErrNotFound)
}

func TestKickPlayer(t *testing.T) {
	g := lobbyWithPlayers(t, "alice", "bob", "carol")

	require.ErrorIs(t, g.KickPlayer("P2", "P3"), ErrAuthorization)
	require.NoError(t, g.KickPlayer("P1", "P3"))
	assert.Len(t, g.Players, 2)

	// kicking yourself as admin hands the role over
	require.NoError(t, g.KickPlayer("P1", "P1"))
	assert.Equal(t, "P2", g.AdminID)
	assertAdminInvariant(t, g)
}

func TestSetPlayerReady_OutsideLobby(t *testing.T) {
	g := startedGame(t, "alice", "bob")
	require.ErrorIs(t, g.SetPlayerReady("P1", false), ErrState)
}

func TestStartGame(t *testing.T) {
	t.Run("needs two players", func(t *testing.T) {
		g := lobbyWithPlayers(t, "alice")
		require.NoError(t, g.SetPlayerReady("P1", true))
		require.ErrorIs(t, g.StartGame("P1", testNow), ErrState)
	})

	t.Run("needs everyone ready", func(t *testing.T) {
		g := lobbyWithPlayers(t, "alice", "bob")
		require.NoError(t, g.SetPlayerReady("P1", true))
		require.ErrorIs(t, g.StartGame("P1", testNow), ErrState)
		assert.Equal(t, StateLobby, g.State)
	})

	t.Run("admin only", func(t *testing.T) {
		g := lobbyWithPlayers(t, "alice", "bob")
		require.NoError(t, g.SetPlayerReady("P1", true))
		require.NoError(t, g.SetPlayerReady("P2", true))
		require.ErrorIs(t, g.StartGame("P2", testNow), ErrAuthorization)
	})

	t.Run("creates empty round one", func(t *testing.T) {
		g := startedGame(t, "alice", "bob")
		assert.Equal(t, StateInProgress, g.State)
		assert.Equal(t, 1, g.CurrentRound)
		require.Len(t, g.Rounds, 1)
		assert.Equal(t, PhaseCreative, g.Rounds[0].Phase)
		assert.Empty(t, g.Rounds[0].Submissions)
	})
}

func TestAddSubmission(t *testing.T) {
	g := startedGame(t, "alice", "bob")

	require.NoError(t, g.AddSubmission(1, Submission{ID: "A", PlayerID: "P1", TemplateID: "drake"}))
	require.ErrorIs(t, g.AddSubmission(1, Submission{ID: "B", PlayerID: "P1"}), ErrConflict)
	require.ErrorIs(t, g.AddSubmission(1, Submission{ID: "A", PlayerID: "P2"}), ErrConflict)
	require.ErrorIs(t, g.AddSubmission(2, Submission{ID: "C", PlayerID: "P2"}), ErrNotFound)
	require.ErrorIs(t, g.AddSubmission(1, Submission{ID: "D", PlayerID: "P9"}), ErrNotFound)

	require.NoError(t, g.BeginScoring(1, "A"))
	require.ErrorIs(t, g.AddSubmission(1, Submission{ID: "E", PlayerID: "P2"}), ErrState)
}

func TestAddScore(t *testing.T) {
	g := startedGame(t, "alice", "bob", "carol")
	require.NoError(t, g.AddSubmission(1, Submission{ID: "A", PlayerID: "P1"}))

	for rating := -1; rating <= 6; rating++ {
		err := g.AddScore(1, "A", "P1", rating)
		require.ErrorIs(t, err, ErrInvariantViolation, "self rating %d", rating)
	}

	require.ErrorIs(t, g.AddScore(1, "A", "P2", 6), ErrInvariantViolation)
	require.ErrorIs(t, g.AddScore(1, "A", "P2", -1), ErrInvariantViolation)
	require.ErrorIs(t, g.AddScore(1, "missing", "P2", 3), ErrNotFound)

	require.NoError(t, g.AddScore(1, "A", "P2", 3))
	require.NoError(t, g.AddScore(1, "A", "P2", 5))
	require.NoError(t, g.AddScore(1, "A", "P3", 0))

	scores := g.GetScoresForSubmission("A")
	assert.Equal(t, map[string]int{"P2": 5, "P3": 0}, scores)

	scores["P2"] = 1
	assert.Equal(t, 5, g.GetScoresForSubmission("A")["P2"], "returned map must be a copy")
	assert.Equal(t, 2, g.EligibleVoterCount("A"))
}

func TestScoringEndedMarker(t *testing.T) {
	g := startedGame(t, "alice", "bob")
	require.NoError(t, g.AddSubmission(1, Submission{ID: "A", PlayerID: "P1"}))

	assert.False(t, g.HasScoringEnded("A"))
	require.NoError(t, g.MarkSubmissionScoringEnded("A"))
	require.NoError(t, g.MarkSubmissionScoringEnded("A"))
	assert.True(t, g.HasScoringEnded("A"))
	require.ErrorIs(t, g.MarkSubmissionScoringEnded("nope"), ErrNotFound)
}

func TestGetRandomUnratedSubmission(t *testing.T) {
	g := startedGame(t, "alice", "bob", "carol")
	require.NoError(t, g.AddSubmission(1, Submission{ID: "A", PlayerID: "P1"}))
	require.NoError(t, g.AddSubmission(1, Submission{ID: "B", PlayerID: "P2"}))
	require.NoError(t, g.AddSubmission(1, Submission{ID: "C", PlayerID: "P3"}))

	seen := make(map[string]bool)
	for range 200 {
		sub, ok := g.GetRandomUnratedSubmission(1)
		require.True(t, ok)
		seen[sub.ID] = true
	}
	assert.Len(t, seen, 3, "every unrated submission should eventually be picked")

	require.NoError(t, g.MarkSubmissionScoringEnded("B"))
	for range 50 {
		sub, ok := g.GetRandomUnratedSubmission(1)
		require.True(t, ok)
		assert.NotEqual(t, "B", sub.ID)
	}

	require.NoError(t, g.MarkSubmissionScoringEnded("A"))
	require.NoError(t, g.MarkSubmissionScoringEnded("C"))
	_, ok := g.GetRandomUnratedSubmission(1)
	assert.False(t, ok)
}

func TestEndRoundAndScoreboard(t *testing.T) {
	g := startedGame(t, "alice", "bob", "carol")
	require.NoError(t, g.AddSubmission(1, Submission{ID: "A", PlayerID: "P1"}))
	require.NoError(t, g.AddSubmission(1, Submission{ID: "B", PlayerID: "P2"}))
	require.NoError(t, g.AddScore(1, "A", "P2", 4))
	require.NoError(t, g.AddScore(1, "A", "P3", 5))
	require.NoError(t, g.AddScore(1, "B", "P1", 2))
	require.NoError(t, g.AddScore(1, "B", "P3", 2))

	board, ended, err := g.EndRound(1, testNow)
	require.NoError(t, err)
	require.True(t, ended)
	require.Len(t, board, 3)
	assert.Equal(t, ScoreboardEntry{PlayerID: "P1", DisplayName: "alice", RoundPoints: 9, TotalPoints: 9, Rank: 1}, board[0])
	assert.Equal(t, "P2", board[1].PlayerID)
	assert.Equal(t, 2, board[1].Rank)
	assert.Equal(t, "P3", board[2].PlayerID)
	assert.Equal(t, 3, board[2].Rank)

	_, ended, err = g.EndRound(1, testNow)
	require.NoError(t, err)
	assert.False(t, ended, "second EndRound must be a no-op")

	round, err := g.StartNextRound(testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, round.Number)
	assert.Equal(t, 2, g.CurrentRound)

	_, err = g.StartNextRound(testNow)
	require.ErrorIs(t, err, ErrState)
}

func TestScoreboard_TiesShareRank(t *testing.T) {
	g := startedGame(t, "alice", "bob")
	require.NoError(t, g.AddSubmission(1, Submission{ID: "A", PlayerID: "P1"}))
	require.NoError(t, g.AddSubmission(1, Submission{ID: "B", PlayerID: "P2"}))
	require.NoError(t, g.AddScore(1, "A", "P2", 3))
	require.NoError(t, g.AddScore(1, "B", "P1", 3))

	board := g.BuildScoreboard(1)
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, 1, board[1].Rank)
	assert.Equal(t, "alice", board[0].DisplayName)
}

func TestClone_IsDeep(t *testing.T) {
	g := startedGame(t, "alice", "bob")
	require.NoError(t, g.AddSubmission(1, Submission{ID: "A", PlayerID: "P1", TextEntries: []TextEntry{{FieldID: "top", Text: "hi"}}}))
	require.NoError(t, g.AddScore(1, "A", "P2", 3))

	clone := g.Clone()
	require.NoError(t, clone.AddScore(1, "A", "P2", 1))
	require.NoError(t, clone.MarkSubmissionScoringEnded("A"))
	clone.Rounds[0].Submissions[0].TextEntries[0].Text = "changed"
	clone.Players[0].DisplayName = "mallory"

	assert.Equal(t, 3, g.GetScoresForSubmission("A")["P2"])
	assert.False(t, g.HasScoringEnded("A"))
	assert.Equal(t, "hi", g.Rounds[0].Submissions[0].TextEntries[0].Text)
	assert.Equal(t, "alice", g.Players[0].DisplayName)
}
