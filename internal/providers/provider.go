package providers

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type Name string

const (
	NameOpenAI Name = "openai"
	NameClaude Name = "claude"
	NameGroq   Name = "groq"
	NameOllama Name = "ollama"
)

// Adapter wraps exactly one inference backend. Ask performs one outbound call,
// without retries or caching, and every failure it returns is a *ProviderError.
type Adapter interface {
	Name() Name
	Model() string
	Ask(ctx context.Context, prompt string) (string, error)
}

// Config is built once at startup and handed to an adapter constructor.
// Model and sampling parameters are fixed for the adapter's lifetime.
type Config struct {
	Key, Model, BaseURL string
	Temperature         float64
	MaxTokens           int
	HTTPClient          *http.Client
	DryRun              bool
}

func (c Config) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Config) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// Result is the outcome of one adapter invocation: an answer, or a failure.
type Result struct {
	Provider  Name           `json:"provider"`
	Model     string         `json:"model,omitempty"`
	Answer    string         `json:"answer,omitempty"`
	Err       *ProviderError `json:"-"`
	LatencyMs int            `json:"latency_ms"`
}

func Succeeded(a Adapter, answer string, latency time.Duration) Result {
	return Result{Provider: a.Name(), Model: a.Model(), Answer: answer, LatencyMs: int(latency / time.Millisecond)}
}

func Failed(a Adapter, err error, latency time.Duration) Result {
	return Result{Provider: a.Name(), Model: a.Model(), Err: AsProviderError(a.Name(), err), LatencyMs: int(latency / time.Millisecond)}
}

func (r Result) OK() bool { return r.Err == nil }

// Text is the wire form: the answer itself, or the failure sentinel.
func (r Result) Text() string {
	if r.OK() {
		return r.Answer
	}
	return FailureText(r.Provider, r.Err.Msg)
}
