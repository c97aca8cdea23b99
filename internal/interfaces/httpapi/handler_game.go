package httpapi

import (
	"net/http"
	"strings"

	"github.com/riskibarqy/meme-party/internal/usecase"
)

func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateGame")
	defer span.End()

	var req createGameRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	playerID := firstNonEmpty(r.Header.Get(playerIDHeader), req.PlayerID)

	g, err := h.lobby.CreateGame(ctx, usecase.CreateGameInput{
		PlayerID:    playerID,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		TotalRounds: req.TotalRounds,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create game failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, joinedGameDTO{PlayerID: g.AdminID, Game: gameToDTO(g)})
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetGame")
	defer span.End()

	code := r.PathValue("code")
	g, err := h.lobby.GetGame(ctx, code)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, gameToDTO(g))
}

func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.JoinGame")
	defer span.End()

	var req joinGameRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	code := r.PathValue("code")

	g, err := h.lobby.JoinGame(ctx, usecase.JoinGameInput{
		GameCode:    code,
		PlayerID:    firstNonEmpty(r.Header.Get(playerIDHeader), req.PlayerID),
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "join game failed", "game_code", code, "error", err)
		writeError(ctx, w, err)
		return
	}

	// the joiner is the newest player
	playerID := g.Players[len(g.Players)-1].ID
	writeSuccess(ctx, w, http.StatusCreated, joinedGameDTO{PlayerID: playerID, Game: gameToDTO(g)})
}

func (h *Handler) LeaveGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LeaveGame")
	defer span.End()

	playerID, err := requestPlayerID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	code := r.PathValue("code")
	if err := h.lobby.LeaveGame(ctx, code, playerID); err != nil {
		h.logger.WarnContext(ctx, "leave game failed", "game_code", code, "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeNoContent(w)
}

func (h *Handler) KickPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.KickPlayer")
	defer span.End()

	requesterID, err := requestPlayerID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	code, target := r.PathValue("code"), r.PathValue("playerID")
	if err := h.lobby.KickPlayer(ctx, code, requesterID, target); err != nil {
		h.logger.WarnContext(ctx, "kick player failed", "game_code", code, "target_id", target, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeNoContent(w)
}

func (h *Handler) SetReady(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SetReady")
	defer span.End()

	playerID, err := requestPlayerID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req setReadyRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	code := r.PathValue("code")
	if err := h.lobby.SetReady(ctx, code, playerID, *req.Ready); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeNoContent(w)
}

func (h *Handler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeleteGame")
	defer span.End()

	requesterID, err := requestPlayerID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	code := r.PathValue("code")
	if err := h.lobby.DeleteGame(ctx, code, requesterID); err != nil {
		h.logger.WarnContext(ctx, "delete game failed", "game_code", code, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeNoContent(w)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
