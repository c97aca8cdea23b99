package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/meme-party/internal/usecase"
)

type captureSink struct {
	mu     sync.Mutex
	events []usecase.Event
	err    error
	panics bool
}

func (c *captureSink) Publish(_ context.Context, _ string, event usecase.Event) error {
	if c.panics {
		panic("sink exploded")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestMultiPublisher_FansOut(t *testing.T) {
	hub, hook := &captureSink{}, &captureSink{}
	pub := NewMultiPublisher(Sink{Name: "hub", Publisher: hub}, Sink{Name: "webhook", Publisher: hook}, Sink{Name: "disabled"})

	err := pub.Publish(context.Background(), "game.ABC123", usecase.Event{Type: usecase.EventRoundEnded, GameCode: "ABC123"})
	require.NoError(t, err)
	assert.Equal(t, 1, hub.count())
	assert.Equal(t, 1, hook.count())
}

func TestMultiPublisher_SinkFailureDoesNotStopOthers(t *testing.T) {
	errDown := errors.New("down")
	ok, broken, panicking := &captureSink{}, &captureSink{err: errDown}, &captureSink{panics: true}
	pub := NewMultiPublisher(
		Sink{Name: "hub", Publisher: ok},
		Sink{Name: "webhook", Publisher: broken},
		Sink{Name: "flaky", Publisher: panicking},
	)

	err := pub.Publish(context.Background(), "game.ABC123", usecase.Event{Type: usecase.EventGameCompleted})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDown)
	assert.Contains(t, err.Error(), "webhook")
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, broken.count())
}

func TestMultiPublisher_SingleSink(t *testing.T) {
	only := &captureSink{err: errors.New("nope")}
	pub := NewMultiPublisher(Sink{Name: "hub", Publisher: only})

	err := pub.Publish(context.Background(), "game.ABC123", usecase.Event{Type: usecase.EventPlayerJoined})
	require.ErrorContains(t, err, "publish to hub")
}

func TestMultiPublisher_NoSinks(t *testing.T) {
	require.NoError(t, NewMultiPublisher().Publish(context.Background(), "game.ABC123", usecase.Event{}))
}
