package httpapi

import (
	"net/http"

	"github.com/riskibarqy/meme-party/internal/domain/game"
	"github.com/riskibarqy/meme-party/internal/usecase"
)

func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StartGame")
	defer span.End()

	requesterID, err := requestPlayerID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	code := r.PathValue("code")
	if err := h.rounds.StartGame(ctx, code, requesterID); err != nil {
		h.logger.WarnContext(ctx, "start game failed", "game_code", code, "error", err)
		writeError(ctx, w, err)
		return
	}

	g, err := h.lobby.GetGame(ctx, code)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, gameToDTO(g))
}

func (h *Handler) SubmitMeme(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubmitMeme")
	defer span.End()

	playerID, err := requestPlayerID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	round, err := pathRound(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req submitMemeRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	entries := make([]game.TextEntry, 0, len(req.TextEntries))
	for _, e := range req.TextEntries {
		entries = append(entries, game.TextEntry{FieldID: e.FieldID, Text: e.Text})
	}
	code := r.PathValue("code")
	sub, err := h.rounds.SubmitMeme(ctx, usecase.SubmitMemeInput{
		GameCode:     code,
		RoundNumber:  round,
		PlayerID:     playerID,
		SubmissionID: req.SubmissionID,
		TemplateID:   req.TemplateID,
		TextEntries:  entries,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "submit meme failed", "game_code", code, "round", round, "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusCreated, submissionToDTO(sub))
}

func (h *Handler) RateMeme(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RateMeme")
	defer span.End()

	voterID, err := requestPlayerID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	round, err := pathRound(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req rateMemeRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	code, submissionID := r.PathValue("code"), r.PathValue("submissionID")
	result, err := h.rounds.RateMeme(ctx, usecase.RateMemeInput{
		GameCode:     code,
		RoundNumber:  round,
		SubmissionID: submissionID,
		VoterID:      voterID,
		Rating:       *req.Rating,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "rate meme failed", "game_code", code, "submission_id", submissionID, "voter_id", voterID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, result)
}
