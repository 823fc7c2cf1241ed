// Package scoring is the gateway to the remote credit scoring model.
//
// Every call is a single POST of {"input": <payload>} with a bearer
// credential. Failures are reported with three distinct codes so callers can
// tell them apart:
//
//   - configuration_error: endpoint or key missing, detected before any I/O
//   - inference_unavailable: transport failure, timeout, non-2xx or a body
//     that is not a usable scoring response
//   - model_rejected: a 2xx response carrying the model's own error message
//
// There are no retries and no caching.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"kilimokredo/internal/loan/metrics"
	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/platform/config"
	dErrors "kilimokredo/pkg/domain-errors"
	"kilimokredo/pkg/requestcontext"
)

const tracerName = "kilimokredo/internal/loan/scoring"

// maxResponseBytes caps how much of a scoring response is read.
const maxResponseBytes = 1 << 20

// Purposes label calls in logs and metrics.
const (
	PurposeSubmit   = "submit"
	PurposeSimulate = "simulate"
)

// Request is one scoring call. Input is marshalled as the "input" member.
type Request struct {
	Purpose string
	Input   any
}

// Client calls the scoring endpoint described by a config.Scoring.
type Client struct {
	cfg        *config.Scoring
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger; the default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New builds a Client. cfg is read on every call and must not be nil.
func New(cfg *config.Scoring, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Input any `json:"input"`
}

// runpodResponse is the /runsync envelope. The model may also answer with a
// bare {"error": ...}.
type runpodResponse struct {
	Status string          `json:"status,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

type outputShape struct {
	Error       json.RawMessage `json:"error,omitempty"`
	Predictions json.RawMessage `json:"predictions,omitempty"`
}

// Score sends req to the model and returns its output.
func (c *Client) Score(ctx context.Context, req Request) (*models.ModelOutput, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scoring.Score")
	defer span.End()

	start := time.Now()
	out, outcome, err := c.score(ctx, req)
	elapsed := time.Since(start)
	c.metrics.ObserveScoring(req.Purpose, outcome, elapsed)
	span.SetAttributes(
		attribute.String("scoring.purpose", req.Purpose),
		attribute.String("scoring.outcome", outcome),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		c.logger.ErrorContext(ctx, "scoring call failed",
			"request_id", requestcontext.RequestID(ctx),
			"purpose", req.Purpose,
			"outcome", outcome,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return nil, err
	}
	c.logger.InfoContext(ctx, "scoring call succeeded",
		"request_id", requestcontext.RequestID(ctx),
		"purpose", req.Purpose,
		"credit_score", out.Predictions.CreditScore,
		"duration_ms", elapsed.Milliseconds(),
	)
	return out, nil
}

func (c *Client) score(ctx context.Context, req Request) (*models.ModelOutput, string, error) {
	if !c.cfg.Configured() {
		return nil, metrics.OutcomeConfiguration, dErrors.New(dErrors.CodeConfiguration, "scoring endpoint is not configured")
	}

	body, err := json.Marshal(envelope{Input: req.Input})
	if err != nil {
		return nil, metrics.OutcomeInternal, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode scoring payload")
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, metrics.OutcomeConfiguration, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid scoring endpoint")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		msg := "scoring service unreachable"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "scoring service timed out"
		}
		return nil, metrics.OutcomeUnavailable, dErrors.Wrap(err, dErrors.CodeInferenceUnavailable, msg)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, metrics.OutcomeUnavailable, dErrors.Wrap(err, dErrors.CodeInferenceUnavailable, "failed to read scoring response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, metrics.OutcomeUnavailable, dErrors.Newf(dErrors.CodeInferenceUnavailable, "scoring service returned status %d", resp.StatusCode)
	}
	if len(raw) > maxResponseBytes {
		return nil, metrics.OutcomeUnavailable, dErrors.New(dErrors.CodeInferenceUnavailable, "scoring response too large")
	}

	return decode(raw)
}

func decode(raw []byte) (*models.ModelOutput, string, error) {
	var env runpodResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, metrics.OutcomeUnavailable, dErrors.Wrap(err, dErrors.CodeInferenceUnavailable, "scoring response is not JSON")
	}
	if reason, ok := errorReason(env.Error); ok {
		return nil, metrics.OutcomeRejected, dErrors.New(dErrors.CodeModelRejected, reason)
	}
	if isNull(env.Output) {
		return nil, metrics.OutcomeUnavailable, dErrors.Newf(dErrors.CodeInferenceUnavailable, "scoring response has no output (status %q)", env.Status)
	}

	var shape outputShape
	if err := json.Unmarshal(env.Output, &shape); err != nil {
		return nil, metrics.OutcomeUnavailable, dErrors.Wrap(err, dErrors.CodeInferenceUnavailable, "scoring output is not an object")
	}
	if reason, ok := errorReason(shape.Error); ok {
		return nil, metrics.OutcomeRejected, dErrors.New(dErrors.CodeModelRejected, reason)
	}
	if isNull(shape.Predictions) {
		return nil, metrics.OutcomeUnavailable, dErrors.New(dErrors.CodeInferenceUnavailable, "scoring output has no predictions")
	}

	var out models.ModelOutput
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, metrics.OutcomeUnavailable, dErrors.Wrap(err, dErrors.CodeInferenceUnavailable, "scoring output has an unexpected shape")
	}
	return &out, metrics.OutcomeSuccess, nil
}

// errorReason returns the model's error text verbatim. Non-string errors are
// returned as their JSON text.
func errorReason(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

