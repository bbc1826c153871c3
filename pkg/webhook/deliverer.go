package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/voicetyped/botkit/pkg/events"
	"github.com/voicetyped/botkit/pkg/urlvalidation"
)

// DelivererConfig holds delivery-related settings.
type DelivererConfig struct {
	MaxRetries        int
	TimeoutSec        int
	BackoffInitialSec int
	BackoffMaxSec     int
	CBFailThreshold   int
	CBResetTimeoutSec int
}

func (c DelivererConfig) withDefaults() DelivererConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.TimeoutSec <= 0 {
		c.TimeoutSec = 10
	}
	if c.BackoffInitialSec <= 0 {
		c.BackoffInitialSec = 1
	}
	if c.BackoffMaxSec < c.BackoffInitialSec {
		c.BackoffMaxSec = c.BackoffInitialSec
	}
	if c.CBFailThreshold <= 0 {
		c.CBFailThreshold = 5
	}
	if c.CBResetTimeoutSec <= 0 {
		c.CBResetTimeoutSec = 60
	}
	return c
}

// StatusError is a non-2xx delivery response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return "HTTP " + strconv.Itoa(e.Code) }

// Deliverer POSTs signed event envelopes to endpoints.
type Deliverer struct {
	httpClient   *http.Client
	config       DelivererConfig
	deadLetters  DeadLetterSink
	validateOpts []urlvalidation.Option
	now          func() time.Time

	// interval scales backoff waits; tests shrink it.
	interval time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[int]
}

// NewDeliverer creates a new webhook deliverer. deadLetters may be nil, in
// which case exhausted events are only logged.
func NewDeliverer(cfg DelivererConfig, deadLetters DeadLetterSink, validateOpts ...urlvalidation.Option) *Deliverer {
	cfg = cfg.withDefaults()
	return &Deliverer{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config:       cfg,
		deadLetters:  deadLetters,
		validateOpts: validateOpts,
		now:          time.Now,
		interval:     time.Second,
		breakers:     make(map[string]*gobreaker.CircuitBreaker[int]),
	}
}

func (d *Deliverer) breaker(ep Endpoint) *gobreaker.CircuitBreaker[int] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[ep.ID]; ok {
		return cb
	}
	threshold := uint32(d.config.CBFailThreshold)
	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        ep.ID,
		MaxRequests: 1,
		Timeout:     time.Duration(d.config.CBResetTimeoutSec) * d.interval,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("webhook circuit changed",
				slog.String("endpoint_id", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	d.breakers[ep.ID] = cb
	return cb
}

// CircuitState reports the breaker state of an endpoint.
func (d *Deliverer) CircuitState(endpointID string) string {
	d.mu.Lock()
	cb, ok := d.breakers[endpointID]
	d.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

// Deliver sends env to ep, retrying with exponential backoff. Events that
// exhaust their retries are dead-lettered.
func (d *Deliverer) Deliver(ctx context.Context, ep Endpoint, env events.Envelope) error {
	if err := urlvalidation.ValidateURL(ctx, ep.URL, d.validateOpts...); err != nil {
		slog.ErrorContext(ctx, "webhook URL failed SSRF validation",
			slog.String("endpoint_id", ep.ID),
			slog.String("url", ep.URL),
			slog.String("error", err.Error()))
		return err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(d.config.BackoffInitialSec) * d.interval
	bo.MaxInterval = time.Duration(d.config.BackoffMaxSec) * d.interval

	attempts := 0
	cb := d.breaker(ep)
	_, err = backoff.Retry(ctx, func() (int, error) {
		attempts++
		code, err := cb.Execute(func() (int, error) {
			return d.post(ctx, ep, env, body)
		})
		var se *StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
			return code, backoff.Permanent(err)
		}
		return code, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(d.config.MaxRetries)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.WarnContext(ctx, "webhook delivery failed, retrying",
				slog.String("endpoint_id", ep.ID),
				slog.String("event_id", env.ID),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()))
		}),
	)
	if err == nil {
		return nil
	}

	d.deadLetter(ctx, ep, env, body, attempts, err)
	return err
}

func (d *Deliverer) post(ctx context.Context, ep Endpoint, env events.Envelope, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	ts := d.now()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TimestampHeader, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(SignatureHeader, Sign(ep.Secret, ts, body))
	req.Header.Set(EventHeader, string(env.Type))
	req.Header.Set(DeliveryHeader, env.ID)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain for connection reuse.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

func (d *Deliverer) deadLetter(ctx context.Context, ep Endpoint, env events.Envelope, body []byte, attempts int, cause error) {
	slog.ErrorContext(ctx, "webhook delivery exhausted",
		slog.String("endpoint_id", ep.ID),
		slog.String("event_id", env.ID),
		slog.Int("attempts", attempts),
		slog.String("error", cause.Error()))

	if d.deadLetters == nil {
		return
	}
	if err := d.deadLetters.CreateDeadLetter(ctx, &DeadLetter{
		EndpointID: ep.ID,
		EventID:    env.ID,
		EventType:  string(env.Type),
		Payload:    string(body),
		LastError:  cause.Error(),
		Attempts:   attempts,
		Replayable: true,
	}); err != nil {
		slog.ErrorContext(ctx, "create dead letter failed", slog.String("error", err.Error()))
	}
}
