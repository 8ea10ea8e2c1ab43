// Package assistant talks to an OpenAI-compatible text generation endpoint
// for spam screening, profile Q&A and occupation classification.
//
// Every call is rate limited and bounded by a timeout. Callers get safe
// defaults instead of errors where the UI cannot do anything useful with a
// failure: CheckSpam errors are treated as "not spam" by the inbox and
// AnswerProfileQuestion always returns text.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/folio/internal/config"
	"github.com/fyrsmithlabs/folio/internal/inbox"
)

const instrumentationName = "github.com/fyrsmithlabs/folio/internal/assistant"

const (
	defaultTimeout    = 5 * time.Second
	defaultRatePerMin = 50.0
	defaultBurst      = 5
)

// Fixed replies for the Q&A widget.
const (
	AnswerUnavailable = "Temporary error contacting the assistant."
	AnswerEmpty       = "I couldn't generate an answer."
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("assistant not configured")

// Client wraps a langchaingo model.
type Client struct {
	model   llms.Model
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
	tracer  trace.Tracer
}

var _ inbox.Classifier = (*Client)(nil)

// New builds a client for cfg. Without an API key the client is created
// but unavailable; every call fails fast with ErrNotConfigured.
func New(cfg config.AssistantConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.APIKey.IsSet() {
		return NewWithModel(nil, cfg, logger), nil
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey.Value()),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	return NewWithModel(llm, cfg, logger), nil
}

// NewWithModel uses model directly. A nil model yields an unavailable client.
func NewWithModel(model llms.Model, cfg config.AssistantConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	perMin := cfg.RatePerMin
	if perMin <= 0 {
		perMin = defaultRatePerMin
	}
	return &Client{
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(perMin/60.0), defaultBurst),
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
	}
}

// Available reports whether a model is configured.
func (c *Client) Available() bool {
	return c != nil && c.model != nil
}

// generate sends one system + user exchange and returns the first choice.
func (c *Client) generate(ctx context.Context, op, system, user string, opts ...llms.CallOption) (string, error) {
	if !c.Available() {
		return "", ErrNotConfigured
	}

	ctx, span := c.tracer.Start(ctx, "assistant."+op)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limited")
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, user))

	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	span.SetAttributes(attribute.Int("assistant.response_len", len(text)))
	return text, nil
}

// CheckSpam asks the model whether body is spam, abuse or malicious.
func (c *Client) CheckSpam(ctx context.Context, body string) (inbox.Verdict, error) {
	text, err := c.generate(ctx, "check_spam", "", spamPrompt(body), llms.WithJSONMode(), llms.WithTemperature(0))
	if err != nil {
		return inbox.Verdict{}, err
	}
	if text == "" {
		return inbox.Verdict{}, nil
	}
	var v struct {
		IsSpam bool   `json:"isSpam"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(trimFences(text)), &v); err != nil {
		return inbox.Verdict{}, fmt.Errorf("parse spam verdict: %w", err)
	}
	return inbox.Verdict{IsSpam: v.IsSpam, Reason: v.Reason}, nil
}

// OccupationResult is a Standard Occupational Classification (SOC 2020)
// match for a job.
type OccupationResult struct {
	Code       string   `json:"code"`
	Title      string   `json:"title"`
	Confidence float64  `json:"confidence"`
	Reasoning  []string `json:"reasoning"`
}

// EvaluateOccupation classifies a job title and description. Failures
// return an error and no result.
func (c *Client) EvaluateOccupation(ctx context.Context, title, description string) (*OccupationResult, error) {
	text, err := c.generate(ctx, "evaluate_occupation", "", occupationPrompt(title, description), llms.WithJSONMode(), llms.WithTemperature(0.2))
	if err != nil {
		c.logger.Warn("occupation evaluation failed", zap.Error(err))
		return nil, err
	}
	if text == "" {
		return nil, errors.New("empty occupation response")
	}
	var res OccupationResult
	if err := json.Unmarshal([]byte(trimFences(text)), &res); err != nil {
		return nil, fmt.Errorf("parse occupation result: %w", err)
	}
	if res.Code == "" {
		return nil, errors.New("occupation response missing code")
	}
	if res.Confidence < 0 {
		res.Confidence = 0
	} else if res.Confidence > 100 {
		res.Confidence = 100
	}
	return &res, nil
}

// trimFences removes a markdown code fence around a JSON reply.
func trimFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
