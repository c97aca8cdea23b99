package postgres

import (
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"

	"github.com/riskibarqy/meme-party/internal/domain/game"
)

const gamesTable = "games"

var gameColumns = []string{"code", "version", "state", "admin_id", "document", "created_at", "updated_at"}

// Document is kept as text: lib/pq sends []byte as bytea, which jsonb rejects.
type gameTableModel struct {
	Code      string    `db:"code"`
	Version   int64     `db:"version"`
	State     string    `db:"state"`
	AdminID   string    `db:"admin_id"`
	Document  string    `db:"document"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// gameDocument is the JSONB shape of everything that is not a column.
type gameDocument struct {
	Password     string           `json:"password,omitempty"`
	CurrentRound int              `json:"current_round"`
	TotalRounds  int              `json:"total_rounds"`
	Players      []playerDocument `json:"players"`
	Rounds       []roundDocument  `json:"rounds"`
}

type playerDocument struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Ready       bool      `json:"ready"`
	JoinedAt    time.Time `json:"joined_at"`
}

type textEntryDocument struct {
	FieldID string `json:"field_id"`
	Text    string `json:"text"`
}

type submissionDocument struct {
	ID          string              `json:"id"`
	PlayerID    string              `json:"player_id"`
	TemplateID  string              `json:"template_id"`
	TextEntries []textEntryDocument `json:"text_entries"`
	SubmittedAt time.Time           `json:"submitted_at"`
}

type scoreboardDocument struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	RoundPoints int    `json:"round_points"`
	TotalPoints int    `json:"total_points"`
	Rank        int    `json:"rank"`
}

type roundDocument struct {
	Number              int                       `json:"number"`
	StartedAt           time.Time                 `json:"started_at"`
	Phase               string                    `json:"phase"`
	Submissions         []submissionDocument      `json:"submissions"`
	ScoringEnded        map[string]bool           `json:"scoring_ended,omitempty"`
	Ratings             map[string]map[string]int `json:"ratings,omitempty"`
	CurrentSubmissionID string                    `json:"current_submission_id,omitempty"`
	Scoreboard          []scoreboardDocument      `json:"scoreboard"`
	EndedAt             *time.Time                `json:"ended_at,omitempty"`
}

func toGameTableModel(g game.Game, now time.Time) (gameTableModel, error) {
	doc := gameDocument{
		Password:     g.Password,
		CurrentRound: g.CurrentRound,
		TotalRounds:  g.TotalRounds,
		Players:      make([]playerDocument, 0, len(g.Players)),
		Rounds:       make([]roundDocument, 0, len(g.Rounds)),
	}
	for _, p := range g.Players {
		doc.Players = append(doc.Players, playerDocument{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Ready:       p.Ready,
			JoinedAt:    p.JoinedAt,
		})
	}
	for _, r := range g.Rounds {
		doc.Rounds = append(doc.Rounds, toRoundDocument(r))
	}

	raw, err := sonic.MarshalString(doc)
	if err != nil {
		return gameTableModel{}, errors.Wrapf(err, "encode game document code=%s", g.Code)
	}
	return gameTableModel{
		Code:      g.Code,
		Version:   g.Version,
		State:     string(g.State),
		AdminID:   g.AdminID,
		Document:  raw,
		CreatedAt: g.CreatedAt,
		UpdatedAt: now,
	}, nil
}

func toRoundDocument(r game.Round) roundDocument {
	out := roundDocument{
		Number:              r.Number,
		StartedAt:           r.StartedAt,
		Phase:               string(r.Phase),
		Submissions:         make([]submissionDocument, 0, len(r.Submissions)),
		ScoringEnded:        r.ScoringEnded,
		Ratings:             r.Ratings,
		CurrentSubmissionID: r.CurrentSubmissionID,
		EndedAt:             r.EndedAt,
	}
	for _, sub := range r.Submissions {
		entries := make([]textEntryDocument, 0, len(sub.TextEntries))
		for _, e := range sub.TextEntries {
			entries = append(entries, textEntryDocument{FieldID: e.FieldID, Text: e.Text})
		}
		out.Submissions = append(out.Submissions, submissionDocument{
			ID:          sub.ID,
			PlayerID:    sub.PlayerID,
			TemplateID:  sub.TemplateID,
			TextEntries: entries,
			SubmittedAt: sub.SubmittedAt,
		})
	}
	// nil scoreboard means the round has not ended yet
	if r.Scoreboard != nil {
		out.Scoreboard = make([]scoreboardDocument, 0, len(r.Scoreboard))
		for _, e := range r.Scoreboard {
			out.Scoreboard = append(out.Scoreboard, scoreboardDocument(e))
		}
	}
	return out
}

func (m gameTableModel) toDomain() (game.Game, error) {
	var doc gameDocument
	if err := sonic.UnmarshalString(m.Document, &doc); err != nil {
		return game.Game{}, errors.Wrapf(err, "decode game document code=%s", m.Code)
	}

	g := game.Game{
		Code:         m.Code,
		AdminID:      m.AdminID,
		Password:     doc.Password,
		State:        game.State(m.State),
		CreatedAt:    m.CreatedAt.UTC(),
		CurrentRound: doc.CurrentRound,
		TotalRounds:  doc.TotalRounds,
		Version:      m.Version,
	}
	for _, p := range doc.Players {
		g.Players = append(g.Players, game.Player{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Ready:       p.Ready,
			JoinedAt:    p.JoinedAt.UTC(),
		})
	}
	for _, r := range doc.Rounds {
		g.Rounds = append(g.Rounds, r.toDomain())
	}
	return g, nil
}

func (r roundDocument) toDomain() game.Round {
	out := game.Round{
		Number:              r.Number,
		StartedAt:           r.StartedAt.UTC(),
		Phase:               game.RoundPhase(r.Phase),
		ScoringEnded:        r.ScoringEnded,
		Ratings:             r.Ratings,
		CurrentSubmissionID: r.CurrentSubmissionID,
		EndedAt:             r.EndedAt,
	}
	if out.ScoringEnded == nil {
		out.ScoringEnded = make(map[string]bool)
	}
	if out.Ratings == nil {
		out.Ratings = make(map[string]map[string]int)
	}
	for _, sub := range r.Submissions {
		entries := make([]game.TextEntry, 0, len(sub.TextEntries))
		for _, e := range sub.TextEntries {
			entries = append(entries, game.TextEntry{FieldID: e.FieldID, Text: e.Text})
		}
		out.Submissions = append(out.Submissions, game.Submission{
			ID:          sub.ID,
			PlayerID:    sub.PlayerID,
			TemplateID:  sub.TemplateID,
			TextEntries: entries,
			SubmittedAt: sub.SubmittedAt.UTC(),
		})
	}
	if r.Scoreboard != nil {
		out.Scoreboard = make([]game.ScoreboardEntry, 0, len(r.Scoreboard))
		for _, e := range r.Scoreboard {
			out.Scoreboard = append(out.Scoreboard, game.ScoreboardEntry(e))
		}
	}
	return out
}
