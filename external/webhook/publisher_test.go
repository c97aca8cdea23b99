package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/meme-party/internal/platform/logging"
	"github.com/riskibarqy/meme-party/internal/platform/resilience"
	"github.com/riskibarqy/meme-party/internal/usecase"
)

func testEvent() usecase.Event {
	return usecase.Event{
		Type:        usecase.EventRoundStarted,
		GameCode:    "ABC123",
		RoundNumber: 1,
		OccurredAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Data:        usecase.RoundStartedData{RoundNumber: 1, TotalRounds: 3, DurationSeconds: 90},
	}
}

func TestPublisher_PostsEnvelope(t *testing.T) {
	var (
		gotAuth  string
		gotType  string
		gotTopic string
		gotEvent map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("X-Event-Type")
		raw, _ := io.ReadAll(r.Body)
		var body struct {
			Topic string         `json:"topic"`
			Event map[string]any `json:"event"`
		}
		require.NoError(t, sonic.Unmarshal(raw, &body))
		gotTopic = body.Topic
		gotEvent = body.Event
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p, err := NewPublisher(Config{URL: srv.URL, Token: "secret"}, logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "game.ABC123", testEvent()))
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "round_started", gotType)
	assert.Equal(t, "game.ABC123", gotTopic)
	assert.Equal(t, "ABC123", gotEvent["game_code"])
	assert.EqualValues(t, 1, gotEvent["round_number"])
}

func TestPublisher_ServerErrorsOpenCircuit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p, err := NewPublisher(Config{
		URL: srv.URL,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	}, logging.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, p.Publish(ctx, "game.ABC123", testEvent()))
	require.Error(t, p.Publish(ctx, "game.ABC123", testEvent()))

	err = p.Publish(ctx, "game.ABC123", testEvent())
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPublisher_ClientErrorsDoNotOpenCircuit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p, err := NewPublisher(Config{
		URL:            srv.URL,
		CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: true, FailureThreshold: 1},
	}, logging.NewNop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := p.Publish(context.Background(), "game.ABC123", testEvent())
		require.ErrorContains(t, err, "status=400")
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewPublisher_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "http://"} {
		_, err := NewPublisher(Config{URL: raw}, nil)
		require.Error(t, err, raw)
	}
}
