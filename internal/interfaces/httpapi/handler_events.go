package httpapi

import (
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/riskibarqy/meme-party/internal/domain/game"
	"github.com/riskibarqy/meme-party/internal/usecase"
)

// SubscribeEvents streams the game's events over a websocket. Only players
// of the game may subscribe.
func (h *Handler) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubscribeEvents")
	defer span.End()

	playerID, err := requestPlayerID(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	code := r.PathValue("code")
	g, err := h.lobby.GetGame(ctx, code)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if _, ok := g.Player(playerID); !ok {
		writeError(ctx, w, errors.Wrapf(game.ErrAuthorization, "player %s is not in game %s", playerID, g.Code))
		return
	}
	if h.events == nil {
		writeError(ctx, w, errors.Wrap(usecase.ErrDependencyUnavailable, "event stream is not configured"))
		return
	}

	// ServeWS blocks until the subscriber disconnects; upgrade failures were
	// already answered by the upgrader.
	if err := h.events.ServeWS(w, r.WithContext(ctx), usecase.GameTopic(g.Code), playerID); err != nil {
		h.logger.WarnContext(ctx, "event subscription failed", "game_code", g.Code, "player_id", playerID, "error", err)
	}
}
