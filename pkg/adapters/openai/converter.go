// Package openai converts free-form flow sources with an OpenAI chat model.
//
// The model rewrites the raw document into the normalized flow schema; the
// answer is then decoded locally, so the loader validates it like any other source.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// ErrEmptyCompletion is returned when the model answers without content.
var ErrEmptyCompletion = errors.New("openai: empty completion")

const systemPrompt = `You convert kiosk conversation configurations into a strict JSON document.
Answer with JSON only, no prose and no code fences.
Schema:
{"version": string, "storeName": string, "languages": {<lang>: {
  "languageSelection": bool,
  "settings": {"autoStopSeconds": int, "voiceSpeed": number, "qrPassword": string, "qrExpiryMinutes": int},
  "nodes": {<id>: {"id": string, "type": "message"|"choice"|"input"|"confirmation", "content": string,
    "next": string, "voiceFile": string, "label": string, "field": string, "limit": int, "overLimitNext": string,
    "choices": [{"id": string, "text": string, "keywords": [string], "excludeKeywords": [string], "next": string}]}}}}}
Keep every node id, text and keyword exactly as given. The first node of every language is "start".
Every next must name an existing node id or be omitted.`

// Converter implements ports.Converter using the chat completions API.
type Converter struct {
	client  sdk.Client
	model   string
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Converter.
type Option func(*config)

type config struct {
	apiKey     string
	baseURL    string
	model      string
	rps        float64
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
}

// WithAPIKey sets the API key. Without it the SDK reads OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

// WithRate limits conversions per second (default one every 10s).
func WithRate(rps float64) Option {
	return func(c *config) {
		if rps > 0 {
			c.rps = rps
		}
	}
}

// WithTimeout bounds a single completion (default 60s).
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRetries sets the SDK retry count (default 0: the loader falls back instead).
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Converter.
func New(opts ...Option) *Converter {
	cfg := &config{
		model:   DefaultModel,
		rps:     0.1,
		timeout: 60 * time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	reqOpts := []option.RequestOption{option.WithMaxRetries(cfg.maxRetries)}
	if cfg.apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Converter{
		client:  sdk.NewClient(reqOpts...),
		model:   cfg.model,
		limiter: rate.NewLimiter(rate.Limit(cfg.rps), 1),
		timeout: cfg.timeout,
		logger:  cfg.logger,
	}
}

// Convert asks the model to normalize raw and decodes the answer.
func (c *Converter) Convert(ctx context.Context, raw map[string]any) (*domain.FlowDocument, error) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("openai: encode source: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openai: rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(systemPrompt),
			sdk.UserMessage(string(payload)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	content := stripFences(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, ErrEmptyCompletion
	}
	c.logger.Info("flow converted",
		"model", c.model,
		"duration", time.Since(start),
		"bytes", len(content),
	)

	parsed, err := flow.Parse([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	doc, err := flow.Decode(parsed)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return doc, nil
}

// stripFences removes a markdown code fence around the answer, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
