package providers

import (
	"context"
	"encoding/json"
	"strings"
)

// Ollama talks to a local inference daemon; no credentials, only a reachable base URL.
type Ollama struct {
	cfg Config
}

func NewOllama(cfg Config) *Ollama { return &Ollama{cfg: cfg} }

func (c *Ollama) Name() Name    { return NameOllama }
func (c *Ollama) Model() string { return c.cfg.Model }

func (c *Ollama) Ask(ctx context.Context, prompt string) (string, error) {
	if c.cfg.DryRun {
		return dryRunAnswer(c.Name(), prompt), nil
	}
	if c.cfg.BaseURL == "" {
		return "", newError(c.Name(), KindConfig, "missing base url (OLLAMA_BASE_URL)", ErrMissingCredentials)
	}

	options := map[string]any{"temperature": c.cfg.Temperature}
	if c.cfg.MaxTokens > 0 {
		options["num_predict"] = c.cfg.MaxTokens
	}
	body := map[string]any{
		"model":   c.cfg.Model,
		"prompt":  prompt,
		"stream":  false,
		"options": options,
	}

	raw, err := postJSON(ctx, c.cfg, c.Name(), c.cfg.endpoint("/api/generate"), nil, body)
	if err != nil {
		return "", err
	}

	var out struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", newError(c.Name(), KindMalformed, "decode response: "+err.Error(), err)
	}
	if out.Error != "" {
		return "", newError(c.Name(), KindHTTP, out.Error, nil)
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", newError(c.Name(), KindMalformed, "ollama empty response", ErrEmptyAnswer)
	}
	return text, nil
}
