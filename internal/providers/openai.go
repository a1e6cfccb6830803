package providers

import (
	"context"
	"encoding/json"
	"strings"
)

// chatCompletions speaks the OpenAI-compatible /chat/completions dialect.
// OpenAI and Groq both use it with different endpoints and credentials.
type chatCompletions struct {
	cfg    Config
	name   Name
	keyEnv string
}

func (c *chatCompletions) Name() Name    { return c.name }
func (c *chatCompletions) Model() string { return c.cfg.Model }

func (c *chatCompletions) Ask(ctx context.Context, prompt string) (string, error) {
	if c.cfg.DryRun {
		return dryRunAnswer(c.name, prompt), nil
	}
	if c.cfg.Key == "" {
		return "", missingKey(c.name, c.keyEnv)
	}

	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"temperature": c.cfg.Temperature,
	}
	if c.cfg.MaxTokens > 0 {
		body["max_tokens"] = c.cfg.MaxTokens
	}

	raw, err := postJSON(ctx, c.cfg, c.name, c.cfg.endpoint("/chat/completions"),
		map[string]string{"Authorization": "Bearer " + c.cfg.Key}, body)
	if err != nil {
		return "", err
	}

	text := extractOpenAIText(raw)
	if strings.TrimSpace(text) == "" {
		return "", newError(c.name, KindMalformed, "empty or unrecognized response", ErrEmptyAnswer)
	}
	return strings.TrimSpace(text), nil
}

// OpenAI wraps api.openai.com.
type OpenAI struct{ chatCompletions }

func NewOpenAI(cfg Config) *OpenAI {
	return &OpenAI{chatCompletions{cfg: cfg, name: NameOpenAI, keyEnv: "OPENAI_API_KEY"}}
}

// get text from Chat Completions, or the Responses API shapes some proxies return.
func extractOpenAIText(raw []byte) string {
	// chat completions: choices[0].message.content
	var r1 struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if json.Unmarshal(raw, &r1) == nil && len(r1.Choices) > 0 && strings.TrimSpace(r1.Choices[0].Message.Content) != "" {
		return r1.Choices[0].Message.Content
	}

	// responses API: output_text
	var r2 struct {
		OutputText string `json:"output_text"`
	}
	if json.Unmarshal(raw, &r2) == nil && strings.TrimSpace(r2.OutputText) != "" {
		return r2.OutputText
	}

	// responses API: output[].content[].text
	var r3 struct {
		Output []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if json.Unmarshal(raw, &r3) == nil && len(r3.Output) > 0 {
		for _, c := range r3.Output[0].Content {
			if strings.TrimSpace(c.Text) != "" {
				return c.Text
			}
		}
	}

	return ""
}
