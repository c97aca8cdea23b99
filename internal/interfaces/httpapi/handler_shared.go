package httpapi

import (
	"time"

	"github.com/riskibarqy/meme-party/internal/domain/game"
)

type createGameRequest struct {
	PlayerID    string `json:"player_id" validate:"omitempty,max=64"`
	DisplayName string `json:"display_name" validate:"required,max=32"`
	Password    string `json:"password" validate:"omitempty,max=64"`
	TotalRounds int    `json:"total_rounds" validate:"omitempty,min=1,max=20"`
}

type joinGameRequest struct {
	PlayerID    string `json:"player_id" validate:"omitempty,max=64"`
	DisplayName string `json:"display_name" validate:"required,max=32"`
	Password    string `json:"password" validate:"omitempty,max=64"`
}

type setReadyRequest struct {
	Ready *bool `json:"ready" validate:"required"`
}

type textEntryRequest struct {
	FieldID string `json:"field_id" validate:"required,max=32"`
	Text    string `json:"text" validate:"max=280"`
}

type submitMemeRequest struct {
	SubmissionID string             `json:"submission_id" validate:"omitempty,max=64"`
	TemplateID   string             `json:"template_id" validate:"required,max=64"`
	TextEntries  []textEntryRequest `json:"text_entries" validate:"max=10,dive"`
}

// Rating range is enforced by the game so that out-of-range values are
// reported like every other rating rule.
type rateMemeRequest struct {
	Rating *int `json:"rating" validate:"required"`
}

type playerDTO struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Ready       bool      `json:"ready"`
	IsAdmin     bool      `json:"is_admin"`
	JoinedAt    time.Time `json:"joined_at"`
}

type scoreboardEntryDTO struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	RoundPoints int    `json:"round_points"`
	TotalPoints int    `json:"total_points"`
	Rank        int    `json:"rank"`
}

type roundDTO struct {
	Number              int                  `json:"number"`
	Phase               string               `json:"phase"`
	StartedAt           time.Time            `json:"started_at"`
	SubmissionCount     int                  `json:"submission_count"`
	CurrentSubmissionID string               `json:"current_submission_id,omitempty"`
	Scoreboard          []scoreboardEntryDTO `json:"scoreboard,omitempty"`
}

type gameDTO struct {
	Code         string      `json:"code"`
	State        string      `json:"state"`
	AdminID      string      `json:"admin_id"`
	HasPassword  bool        `json:"has_password"`
	CurrentRound int         `json:"current_round"`
	TotalRounds  int         `json:"total_rounds"`
	Players      []playerDTO `json:"players"`
	Round        *roundDTO   `json:"round,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

type joinedGameDTO struct {
	PlayerID string  `json:"player_id"`
	Game     gameDTO `json:"game"`
}

type submissionDTO struct {
	ID          string             `json:"id"`
	PlayerID    string             `json:"player_id"`
	TemplateID  string             `json:"template_id"`
	TextEntries []textEntryRequest `json:"text_entries"`
	SubmittedAt time.Time          `json:"submitted_at"`
}

func gameToDTO(g game.Game) gameDTO {
	out := gameDTO{
		Code:         g.Code,
		State:        string(g.State),
		AdminID:      g.AdminID,
		HasPassword:  g.Password != "",
		CurrentRound: g.CurrentRound,
		TotalRounds:  g.TotalRounds,
		Players:      make([]playerDTO, 0, len(g.Players)),
		CreatedAt:    g.CreatedAt,
	}
	for _, p := range g.Players {
		out.Players = append(out.Players, playerDTO{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Ready:       p.Ready,
			IsAdmin:     p.ID == g.AdminID,
			JoinedAt:    p.JoinedAt,
		})
	}
	if round, err := g.Round(g.CurrentRound); err == nil {
		dto := roundToDTO(*round)
		out.Round = &dto
	}
	return out
}

func roundToDTO(r game.Round) roundDTO {
	out := roundDTO{
		Number:              r.Number,
		Phase:               string(r.Phase),
		StartedAt:           r.StartedAt,
		SubmissionCount:     len(r.Submissions),
		CurrentSubmissionID: r.CurrentSubmissionID,
	}
	for _, e := range r.Scoreboard {
		out.Scoreboard = append(out.Scoreboard, scoreboardEntryDTO(e))
	}
	return out
}

func submissionToDTO(sub game.Submission) submissionDTO {
	out := submissionDTO{
		ID:          sub.ID,
		PlayerID:    sub.PlayerID,
		TemplateID:  sub.TemplateID,
		TextEntries: make([]textEntryRequest, 0, len(sub.TextEntries)),
		SubmittedAt: sub.SubmittedAt,
	}
	for _, e := range sub.TextEntries {
		out.TextEntries = append(out.TextEntries, textEntryRequest{FieldID: e.FieldID, Text: e.Text})
	}
	return out
}
