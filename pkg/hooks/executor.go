// Package hooks calls external HTTP endpoints from dialog steps.
package hooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voicetyped/botkit/pkg/events"
	"github.com/voicetyped/botkit/pkg/urlvalidation"
)

// SignatureHeader carries the HMAC of the request body for "hmac" auth.
const SignatureHeader = "X-Hook-Signature"

const (
	maxResponseBytes = 1 << 20
	defaultTimeout   = 10 * time.Second
)

var (
	codec  = sonic.ConfigStd
	tracer = otel.Tracer("github.com/voicetyped/botkit/pkg/hooks")
)

// StatusError is returned when a hook answers outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hook %s returned HTTP %d: %s", e.URL, e.Code, e.Body)
}

// Executor posts dialog state to hook endpoints and reports every call as
// a hook.result or hook.error event.
type Executor struct {
	client    *http.Client
	publisher *events.Publisher
	urlOpts   []urlvalidation.Option
}

// NewExecutor creates an executor. The publisher may be nil.
func NewExecutor(publisher *events.Publisher, urlOpts ...urlvalidation.Option) *Executor {
	return &Executor{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		publisher: publisher,
		urlOpts:   urlOpts,
	}
}

// Execute posts req to the hook and decodes its answer. An empty body is a
// valid, empty response.
func (e *Executor) Execute(ctx context.Context, cfg HookConfig, req HookRequest) (*HookResponse, error) {
	ctx, span := tracer.Start(ctx, "hooks.execute")
	span.SetAttributes(
		attribute.String("hook.dialog_id", req.DialogID),
		attribute.Int("hook.step", req.Step),
	)
	defer span.End()

	resp, status, err := e.call(ctx, cfg, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.publisher.EmitAsync(ctx, events.HookError, req.ConversationID, &events.HookErrorData{
			HookURL: cfg.URL,
			Error:   err.Error(),
		})
		return nil, err
	}

	e.publisher.EmitAsync(ctx, events.HookResult, req.ConversationID, &events.HookResultData{
		HookURL:    cfg.URL,
		StatusCode: status,
		Response:   resp.Data,
	})
	return resp, nil
}

func (e *Executor) call(ctx context.Context, cfg HookConfig, req HookRequest) (*HookResponse, int, error) {
	if err := urlvalidation.ValidateURL(ctx, cfg.URL, e.urlOpts...); err != nil {
		return nil, 0, fmt.Errorf("hook URL: %w", err)
	}

	body, err := codec.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("encode hook request: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build hook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	authorize(httpReq, cfg, body)
	for k, v := range cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("call hook: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	_, _ = io.Copy(io.Discard, httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("read hook response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, httpResp.StatusCode, &StatusError{URL: cfg.URL, Code: httpResp.StatusCode, Body: string(raw)}
	}

	var out HookResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := codec.Unmarshal(raw, &out); err != nil {
			return nil, httpResp.StatusCode, fmt.Errorf("decode hook response: %w", err)
		}
	}
	return &out, httpResp.StatusCode, nil
}

func authorize(r *http.Request, cfg HookConfig, body []byte) {
	switch cfg.AuthType {
	case "bearer":
		r.Header.Set("Authorization", "Bearer "+cfg.AuthSecret)
	case "hmac":
		r.Header.Set(SignatureHeader, Sign(cfg.AuthSecret, body))
	}
}

// Sign returns the "sha256=<hex>" HMAC of payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
