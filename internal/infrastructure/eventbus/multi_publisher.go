package eventbus

import (
	"context"
	stderrors "errors"

	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc"

	"github.com/riskibarqy/meme-party/internal/usecase"
)

type Sink struct {
	Name      string
	Publisher usecase.EventPublisher
}

// MultiPublisher delivers each event to every sink concurrently. A failing or
// panicking sink does not keep the others from receiving the event.
type MultiPublisher struct {
	sinks []Sink
}

func NewMultiPublisher(sinks ...Sink) *MultiPublisher {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s.Publisher != nil {
			kept = append(kept, s)
		}
	}
	return &MultiPublisher{sinks: kept}
}

func (m *MultiPublisher) Publish(ctx context.Context, topic string, event usecase.Event) error {
	errs := make([]error, len(m.sinks))
	var wg conc.WaitGroup
	for i, sink := range m.sinks {
		wg.Go(func() {
			errs[i] = m.publishOne(ctx, sink, topic, event)
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		errs = append(errs, errors.Wrap(recovered.AsError(), "event sink panicked"))
	}
	return stderrors.Join(errs...)
}

func (m *MultiPublisher) publishOne(ctx context.Context, sink Sink, topic string, event usecase.Event) error {
	if err := sink.Publisher.Publish(ctx, topic, event); err != nil {
		return errors.Wrapf(err, "publish to %s type=%s", sink.Name, event.Type)
	}
	return nil
}
