package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/meme-party/internal/domain/game"
	"github.com/riskibarqy/meme-party/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/meme-party/internal/platform/keylock"
	"github.com/riskibarqy/meme-party/internal/platform/logging"
	"github.com/riskibarqy/meme-party/internal/scheduler"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) all() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func (p *recordingPublisher) count(eventType EventType) int {
	n := 0
	for _, e := range p.all() {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) last(eventType EventType) (Event, bool) {
	events := p.all()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return events[i], true
		}
	}
	return Event{}, false
}

type sequenceIDs struct {
	mu    sync.Mutex
	next  int
	codes []string
}

func (g *sequenceIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%03d", g.next), nil
}

func (g *sequenceIDs) NewJoinCode() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return "ZZZZZZ", nil
	}
	code := g.codes[0]
	g.codes = g.codes[1:]
	return code, nil
}

type fixture struct {
	repo   *memory.GameRepository
	sched  *scheduler.Scheduler
	pub    *recordingPublisher
	lobby  *LobbyService
	rounds *RoundOrchestrator
}

var fixedNow = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()

	repo := memory.NewGameRepository()
	pub := &recordingPublisher{}
	locks := keylock.New(16)
	ids := &sequenceIDs{codes: codes}
	logger := logging.NewNop()

	// never started: tests drive transitions directly and inspect what is pending
	sched := scheduler.New(nil, scheduler.Config{}, logger)

	lobby := NewLobbyService(repo, sched, pub, locks, ids, LobbyConfig{}, logger)
	lobby.now = func() time.Time { return fixedNow }
	rounds := NewRoundOrchestrator(repo, sched, pub, locks, ids, RoundConfig{
		CreativePhaseSeconds: 60,
		ScorePhaseSeconds:    15,
		RoundEndSeconds:      5,
	}, logger)
	rounds.now = func() time.Time { return fixedNow }
	sched.SetHandler(rounds.HandleTask)

	return &fixture{repo: repo, sched: sched, pub: pub, lobby: lobby, rounds: rounds}
}

// startedABC123 builds game ABC123 with alice (admin), bob and carol, all
// ready, and starts round one.
func startedABC123(t *testing.T, totalRounds int) *fixture {
	t.Helper()
	ctx := context.Background()

	f := newFixture(t, "ABC123")
	g, err := f.lobby.CreateGame(ctx, CreateGameInput{PlayerID: "P1", DisplayName: "alice", TotalRounds: totalRounds})
	require.NoError(t, err)
	require.Equal(t, "ABC123", g.Code)

	_, err = f.lobby.JoinGame(ctx, JoinGameInput{GameCode: "abc123", PlayerID: "P2", DisplayName: "bob"})
	require.NoError(t, err)
	_, err = f.lobby.JoinGame(ctx, JoinGameInput{GameCode: "ABC123", PlayerID: "P3", DisplayName: "carol"})
	require.NoError(t, err)
	for _, p := range []string{"P1", "P2", "P3"} {
		require.NoError(t, f.lobby.SetReady(ctx, "ABC123", p, true))
	}
	require.NoError(t, f.rounds.StartGame(ctx, "ABC123", "P1"))
	return f
}

func (f *fixture) load(t *testing.T) game.Game {
	t.Helper()
	g, ok, err := f.repo.Load(context.Background(), "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	return g
}

func (f *fixture) currentRound(t *testing.T) game.Round {
	t.Helper()
	g := f.load(t)
	r, err := g.Round(g.CurrentRound)
	require.NoError(t, err)
	return *r
}

func (f *fixture) submitAll(t *testing.T, round int) {
	t.Helper()
	for i, p := range []string{"P1", "P2", "P3"} {
		_, err := f.rounds.SubmitMeme(context.Background(), SubmitMemeInput{
			GameCode:     "ABC123",
			RoundNumber:  round,
			PlayerID:     p,
			SubmissionID: fmt.Sprintf("R%d-S%d", round, i+1),
			TemplateID:   "drake",
			TextEntries:  []game.TextEntry{{FieldID: "top", Text: "caption " + p}},
		})
		require.NoError(t, err)
	}
}

func ownerOf(t *testing.T, g game.Game, submissionID string) string {
	t.Helper()
	sub, ok := g.Submission(submissionID)
	require.True(t, ok, "submission %s", submissionID)
	return sub.PlayerID
}
