// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const defaultModel = "claude-sonnet-4-5-20250929"

// Anthropic summarizes with the Anthropic Messages API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic constructs the AI summarizer from config. The API key is
// required; the model defaults when unset.
func NewAnthropic(cfg types.SummaryConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	client := anthropic.NewClient(
		anthropicopt.WithAPIKey(cfg.APIKey),
		anthropicopt.WithMaxRetries(maxRetries),
	)
	return &Anthropic{client: &client, model: model}, nil
}

// Summarize sends the rendered prompt to the model and returns its text.
func (a *Anthropic) Summarize(ctx context.Context, req Request) (string, error) {
	if len(req.Results) == 0 {
		return "", fmt.Errorf("no results to summarize")
	}

	rsp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(Prompt(req))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API: %w", err)
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty response from model %s", a.model)
	}
	return b.String(), nil
}
