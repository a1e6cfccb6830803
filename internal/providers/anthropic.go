package providers

import (
	"context"
	"encoding/json"
	"strings"
)

const anthropicVersion = "2023-06-01"

type Anthropic struct {
	cfg Config
}

func NewAnthropic(cfg Config) *Anthropic {
	if cfg.MaxTokens <= 0 {
		// the messages API rejects requests without max_tokens
		cfg.MaxTokens = 512
	}
	return &Anthropic{cfg: cfg}
}

func (c *Anthropic) Name() Name    { return NameClaude }
func (c *Anthropic) Model() string { return c.cfg.Model }

func (c *Anthropic) Ask(ctx context.Context, prompt string) (string, error) {
	if c.cfg.DryRun {
		return dryRunAnswer(c.Name(), prompt), nil
	}
	if c.cfg.Key == "" {
		return "", missingKey(c.Name(), "ANTHROPIC_API_KEY")
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	raw, err := postJSON(ctx, c.cfg, c.Name(), c.cfg.endpoint("/messages"), map[string]string{
		"x-api-key":         c.cfg.Key,
		"anthropic-version": anthropicVersion,
	}, body)
	if err != nil {
		return "", err
	}

	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", newError(c.Name(), KindMalformed, "decode response: "+err.Error(), err)
	}

	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" || block.Type == "" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", newError(c.Name(), KindMalformed, "anthropic empty content", ErrEmptyAnswer)
	}
	return text, nil
}
