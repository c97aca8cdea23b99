package usecase

import (
	"context"
	"time"

	"github.com/riskibarqy/meme-party/internal/domain/game"
)

type EventType string

const (
	EventPlayerJoined       EventType = "player_joined"
	EventPlayerLeft         EventType = "player_left"
	EventPlayerKicked       EventType = "player_kicked"
	EventPlayerReady        EventType = "player_ready"
	EventAdminChanged       EventType = "admin_changed"
	EventGameDeleted        EventType = "game_deleted"
	EventRoundStarted       EventType = "round_started"
	EventSubmissionReceived EventType = "submission_received"
	EventCreativePhaseEnded EventType = "creative_phase_ended"
	EventScorePhaseStarted  EventType = "score_phase_started"
	EventRatingReceived     EventType = "rating_received"
	EventRoundEnded         EventType = "round_ended"
	EventGameCompleted      EventType = "game_completed"
)

// Event is what subscribers of a game topic receive.
type Event struct {
	Type        EventType `json:"type"`
	GameCode    string    `json:"game_code"`
	RoundNumber int       `json:"round_number,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Data        any       `json:"data,omitempty"`
}

// EventPublisher delivers events to whoever listens on a topic. Delivery is
// best effort.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

type noopEventPublisher struct{}

func (noopEventPublisher) Publish(_ context.Context, _ string, _ Event) error {
	return nil
}

func NewNoopEventPublisher() EventPublisher {
	return noopEventPublisher{}
}

// GameTopic is the topic every event of a game is published on.
func GameTopic(code string) string {
	return "game." + game.NormalizeCode(code)
}

type PlayerData struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name,omitempty"`
}

type PlayerKickedData struct {
	PlayerID string `json:"player_id"`
	KickedBy string `json:"kicked_by"`
}

type PlayerReadyData struct {
	PlayerID string `json:"player_id"`
	Ready    bool   `json:"ready"`
}

type AdminChangedData struct {
	AdminID string `json:"admin_id"`
}

type RoundStartedData struct {
	RoundNumber     int `json:"round_number"`
	TotalRounds     int `json:"total_rounds"`
	DurationSeconds int `json:"duration_seconds"`
}

type SubmissionReceivedData struct {
	PlayerID string `json:"player_id"`
	Count    int    `json:"count"`
	Expected int    `json:"expected"`
}

type CreativePhaseEndedData struct {
	SubmissionCount int `json:"submission_count"`
}

type TextEntryView struct {
	FieldID string `json:"field_id"`
	Text    string `json:"text"`
}

type ScorePhaseStartedData struct {
	SubmissionID          string          `json:"submission_id"`
	OwnerID               string          `json:"owner_id"`
	TemplateID            string          `json:"template_id"`
	TextEntries           []TextEntryView `json:"text_entries"`
	RatingDurationSeconds int             `json:"rating_duration_seconds"`
}

type RatingReceivedData struct {
	SubmissionID string `json:"submission_id"`
	VoterID      string `json:"voter_id"`
	Count        int    `json:"count"`
	Expected     int    `json:"expected"`
}

type ScoreboardEntryView struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	RoundPoints int    `json:"round_points"`
	TotalPoints int    `json:"total_points"`
	Rank        int    `json:"rank"`
}

type RoundEndedData struct {
	RoundNumber int                   `json:"round_number"`
	TotalRounds int                   `json:"total_rounds"`
	Scoreboard  []ScoreboardEntryView `json:"scoreboard"`
}

type GameCompletedData struct {
	Scoreboard []ScoreboardEntryView `json:"scoreboard"`
}

func textEntryViews(entries []game.TextEntry) []TextEntryView {
	out := make([]TextEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, TextEntryView{FieldID: e.FieldID, Text: e.Text})
	}
	return out
}

func scoreboardViews(entries []game.ScoreboardEntry) []ScoreboardEntryView {
	out := make([]ScoreboardEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, ScoreboardEntryView{
			PlayerID:    e.PlayerID,
			DisplayName: e.DisplayName,
			RoundPoints: e.RoundPoints,
			TotalPoints: e.TotalPoints,
			Rank:        e.Rank,
		})
	}
	return out
}
