package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/meme-party/internal/platform/logging"
	"github.com/riskibarqy/meme-party/internal/platform/resilience"
	"github.com/riskibarqy/meme-party/internal/usecase"
)

var errTransient = errors.New("webhook transient failure")

type Config struct {
	URL            string
	Token          string
	Timeout        time.Duration
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Publisher forwards game events to an external HTTP endpoint as JSON.
type Publisher struct {
	client  *http.Client
	url     string
	token   string
	logger  *logging.Logger
	breaker *resilience.CircuitBreaker
}

type envelope struct {
	Topic string        `json:"topic"`
	Event usecase.Event `json:"event"`
}

func NewPublisher(cfg Config, logger *logging.Logger) (*Publisher, error) {
	target, err := validateHTTPURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid WEBHOOK_URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Publisher{
		client:  &http.Client{Timeout: timeout},
		url:     target,
		token:   strings.TrimSpace(cfg.Token),
		logger:  logger.Named("webhook"),
		breaker: resilience.NewCircuitBreaker(cfg.CircuitBreaker),
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, topic string, event usecase.Event) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(envelope{Topic: topic, Event: event}); err != nil {
		return errors.Wrapf(err, "marshal webhook event type=%s", event.Type)
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("webhook.url", p.url),
			attribute.String("webhook.topic", topic),
			attribute.String("webhook.event_type", string(event.Type)),
		)
	}

	err := p.breaker.Execute(func() error {
		return p.post(ctx, event, buf.B)
	}, isTransient)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		p.logger.WarnContext(ctx, "webhook circuit breaker rejected event",
			"event_type", event.Type,
			"game_code", event.GameCode,
			"state", p.breaker.State(),
		)
		return errors.Wrap(err, "webhook is temporarily unavailable")
	}
	if err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "webhook event delivered", "event_type", event.Type, "game_code", event.GameCode)
	return nil
}

func (p *Publisher) post(ctx context.Context, event usecase.Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(event.Type))
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Mark(fmt.Errorf("post webhook event type=%s: %w", event.Type, err), errTransient)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 == 2 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	callErr := errors.Newf("post webhook event type=%s status=%d body=%s", event.Type, resp.StatusCode, strings.TrimSpace(string(raw)))
	if isRetryableStatus(resp.StatusCode) {
		return errors.Mark(callErr, errTransient)
	}
	return callErr
}

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}

func validateHTTPURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", errors.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", errors.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", errors.Newf("%q has empty host", candidate)
	}
	return candidate, nil
}
