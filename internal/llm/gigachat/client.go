// Package gigachat implements llm.Client on top of the GigaChat SDK.
package gigachat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Role1776/gigago"

	"voice-intake/internal/forms"
	"voice-intake/internal/llm"
	"voice-intake/internal/llm/openai"
	"voice-intake/internal/shared/telemetry"
)

const defaultModel = "GigaChat"

// Options configures the SDK client.
type Options struct {
	APIKey             string
	Scope              string
	Model              string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

type completeFunc func(ctx context.Context, prompt string) (string, error)

// Client implements llm.Client. Prompts are sent as one user message; the system
// prompt lives on the model.
type Client struct {
	complete completeFunc
	catalog  *forms.Catalog
	model    string
	timeout  time.Duration
	close    func()
}

// NewClient authenticates against GigaChat and prepares a deterministic model.
func NewClient(ctx context.Context, opts Options, catalog *forms.Catalog) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("GIGACHAT_API_KEY is required")
	}
	sdkOpts := []gigago.Option{}
	if scope := strings.TrimSpace(opts.Scope); scope != "" {
		sdkOpts = append(sdkOpts, gigago.WithCustomScope(scope))
	}
	if opts.InsecureSkipVerify {
		sdkOpts = append(sdkOpts, gigago.WithCustomInsecureSkipVerify(true))
		telemetry.Warn("gigachat TLS verification disabled", nil)
	}
	sdk, err := gigago.NewClient(ctx, opts.APIKey, sdkOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gigachat client: %w", err)
	}

	name := strings.TrimSpace(opts.Model)
	if name == "" {
		name = defaultModel
	}
	model := sdk.GenerativeModel(name)
	model.SystemInstruction = openai.SystemPrompt
	model.Temperature = 0

	complete := func(ctx context.Context, prompt string) (string, error) {
		resp, err := model.Generate(ctx, []gigago.Message{{Role: gigago.RoleUser, Content: prompt}})
		if err != nil {
			return "", fmt.Errorf("gigachat generate: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", llm.Malformed("gigachat response missing choices")
		}
		return resp.Choices[0].Message.Content, nil
	}
	c := newClient(complete, catalog, opts.Timeout)
	c.model = name
	c.close = func() { sdk.Close() }
	return c, nil
}

func newClient(complete completeFunc, catalog *forms.Catalog, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{complete: complete, catalog: catalog, model: defaultModel, timeout: timeout}
}

// Close releases the SDK client.
func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// Extract classifies the transcript and pre-fills fields.
func (c *Client) Extract(ctx context.Context, req llm.ExtractionRequest) (llm.ExtractionResult, error) {
	content, err := c.run(ctx, "extract", openai.BuildExtractPrompt(c.catalog, req))
	if err != nil {
		return llm.ExtractionResult{}, err
	}
	return llm.ParseExtraction(content, req.LanguageHint)
}

// Interpret resolves a single field from an answer transcript.
func (c *Client) Interpret(ctx context.Context, req llm.InterpretRequest) (llm.Interpretation, error) {
	content, err := c.run(ctx, "interpret", openai.BuildInterpretPrompt(req))
	if err != nil {
		return llm.Interpretation{}, err
	}
	return llm.ParseInterpretation(content)
}

func (c *Client) run(ctx context.Context, op string, messages []openai.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	content, err := c.complete(ctx, flatten(messages))
	if err != nil {
		return "", err
	}
	content = jsonObject(content)
	if content == "" {
		return "", llm.Malformed("gigachat response empty content")
	}
	telemetry.Info("llm response", map[string]any{
		"op":          op,
		"provider":    "gigachat",
		"model":       c.model,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return content, nil
}

// flatten joins every non-system message.
func flatten(messages []openai.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		parts = append(parts, strings.TrimSpace(m.Content))
	}
	return strings.Join(parts, "\n\n")
}

// jsonObject strips markdown fences or chatter around the first JSON object.
func jsonObject(content string) string {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}

var _ llm.Client = (*Client)(nil)
