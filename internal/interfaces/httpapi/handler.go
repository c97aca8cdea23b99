package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/meme-party/internal/platform/logging"
	"github.com/riskibarqy/meme-party/internal/usecase"
)

const maxRequestBodyBytes = 64 << 10

// EventStream attaches a websocket connection to a game topic.
type EventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, topic, playerID string) error
}

type Handler struct {
	lobby     *usecase.LobbyService
	rounds    *usecase.RoundOrchestrator
	events    EventStream
	logger    *logging.Logger
	validator *validator.Validate
}

func NewHandler(
	lobby *usecase.LobbyService,
	rounds *usecase.RoundOrchestrator,
	events EventStream,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		lobby:     lobby,
		rounds:    rounds,
		events:    events,
		logger:    logger,
		validator: validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

// decodeRequest reads a JSON body into dst and validates it. An empty body is
// treated as an empty object.
func (h *Handler) decodeRequest(ctx context.Context, r *http.Request, dst any) error {
	decoder := sonic.ConfigDefault.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return h.validateRequest(ctx, dst)
}

func requestPlayerID(ctx context.Context) (string, error) {
	playerID, ok := playerIDFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("%w: player id is missing from request context", usecase.ErrInvalidInput)
	}
	return playerID, nil
}

func pathRound(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.PathValue("round"))
	round, err := strconv.Atoi(raw)
	if err != nil || round < 1 {
		return 0, fmt.Errorf("%w: invalid round %q", usecase.ErrInvalidInput, raw)
	}
	return round, nil
}
