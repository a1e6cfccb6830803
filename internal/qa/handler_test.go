package qa

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emandor/fusefind/internal/config"
	"github.com/emandor/fusefind/internal/dispatch"
	"github.com/emandor/fusefind/internal/middleware"
	"github.com/emandor/fusefind/internal/providers"
	"github.com/emandor/fusefind/internal/tts"
)

type stubAdapter struct {
	name   providers.Name
	answer string
	err    error
	delay  time.Duration
}

func (s stubAdapter) Name() providers.Name { return s.name }
func (s stubAdapter) Model() string        { return "stub-" + string(s.name) }
func (s stubAdapter) Ask(ctx context.Context, _ string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.answer, s.err
}

type stubSynth struct{}

func (stubSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	if text == "fail" {
		return nil, errors.New("upstream down")
	}
	return []byte("mp3"), nil
}

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout: 2 * time.Second,
		OpenAIKey:      "sk",
		OllamaBaseURL:  "http://localhost:11434",
	}
}

func newApp(t *testing.T, speech *tts.Service, adapters ...providers.Adapter) *fiber.App {
	t.Helper()
	return newAppWithConfig(t, testConfig(), speech, adapters...)
}

func newAppWithConfig(t *testing.T, cfg *config.Config, speech *tts.Service, adapters ...providers.Adapter) *fiber.App {
	t.Helper()
	if len(adapters) == 0 {
		adapters = []providers.Adapter{
			stubAdapter{name: providers.NameOpenAI, answer: "4"},
			stubAdapter{name: providers.NameClaude, answer: "Four."},
			stubAdapter{name: providers.NameGroq, err: errors.New("groq http 401 Unauthorized")},
			stubAdapter{name: providers.NameOllama, delay: time.Second},
		}
	}
	reg, err := providers.NewRegistry(adapters...)
	require.NoError(t, err)
	d := dispatch.New(reg, dispatch.Options{ProviderTimeout: 50 * time.Millisecond})

	app := fiber.New()
	app.Use(middleware.RequestID())
	NewHandler(cfg, d, speech, nil).Mount(app)
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

func TestMetaQAReturnsOneEntryPerProvider(t *testing.T) {
	app := newApp(t, nil)

	code, body := post(t, app, "/meta-qa", `{"question":"What is 2+2?"}`)
	require.Equal(t, fiber.StatusOK, code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, map[string]string{
		"openai": "4",
		"claude": "Four.",
		"groq":   "[groq error: groq http 401 Unauthorized]",
		"ollama": "[ollama error: timeout]",
	}, got)
	assert.True(t, providers.IsFailure(providers.NameGroq, got["groq"]))
	assert.False(t, providers.IsFailure(providers.NameOpenAI, got["openai"]))
}

func TestMetaQARejectsBadRequests(t *testing.T) {
	app := newApp(t, nil)

	for _, body := range []string{
		`{"question":`,
		`{}`,
		`{"question":"   "}`,
		`{"question":42}`,
		`null`,
	} {
		code, resp := post(t, app, "/meta-qa", body)
		assert.Equal(t, fiber.StatusBadRequest, code, body)
		assert.Contains(t, string(resp), `"error"`, body)
	}
}

func TestAskWithSubset(t *testing.T) {
	app := newApp(t, nil)

	code, body := post(t, app, "/api/v1/ask", `{"question":" What is 2+2? ","providers":["openai","groq"]}`)
	require.Equal(t, fiber.StatusOK, code)

	var got askResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "What is 2+2?", got.Question)
	require.Len(t, got.Results, 2)

	assert.Equal(t, "4", got.Results["openai"].Answer)
	assert.Equal(t, "stub-openai", got.Results["openai"].Model)
	assert.Empty(t, got.Results["openai"].Error)

	groq := got.Results["groq"]
	assert.Empty(t, groq.Answer)
	assert.Equal(t, "transport", groq.ErrorKind)
	assert.Equal(t, "[groq error: groq http 401 Unauthorized]", groq.Text)
}

func TestAskEmptySubsetCompletes(t *testing.T) {
	app := newApp(t, nil)

	code, body := post(t, app, "/api/v1/ask", `{"question":"q","providers":[]}`)
	require.Equal(t, fiber.StatusOK, code)

	var got askResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Empty(t, got.Results)
}

func TestAskUnknownProvider(t *testing.T) {
	app := newApp(t, nil)

	code, body := post(t, app, "/api/v1/ask", `{"question":"q","providers":["gemini"]}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, string(body), "unknown provider")
}

func TestRootAndProviders(t *testing.T) {
	app := newApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"message":"Hello from meta-qa server"}`, string(b))

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/providers", nil))
	require.NoError(t, err)
	var list []providerView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 4)
	assert.Equal(t, providerView{Name: "claude", Model: "stub-claude", Configured: false}, list[0])
	assert.Equal(t, providerView{Name: "ollama", Model: "stub-ollama", Configured: true}, list[2])
	assert.Equal(t, providerView{Name: "openai", Model: "stub-openai", Configured: true}, list[3])
}

func TestProvidersOllamaNeedsBaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.OllamaBaseURL = ""
	app := newAppWithConfig(t, cfg, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/providers", nil))
	require.NoError(t, err)
	var list []providerView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 4)
	assert.Equal(t, "ollama", list[2].Name)
	assert.False(t, list[2].Configured)

	cfg.DryRun = true
	app = newAppWithConfig(t, cfg, nil)
	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/providers", nil))
	require.NoError(t, err)
	list = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	for _, p := range list {
		assert.True(t, p.Configured, p.Name)
	}
}

func TestSpeech(t *testing.T) {
	speech := tts.NewService(stubSynth{}, t.TempDir(), "/storage/audio", "k", nil, 0)
	app := newApp(t, speech)

	code, body := post(t, app, "/api/v1/speech", `{"text":"Four.","provider":"claude"}`)
	require.Equal(t, fiber.StatusOK, code)
	var clip map[string]any
	require.NoError(t, json.Unmarshal(body, &clip))
	assert.True(t, strings.HasSuffix(clip["audio_path"].(string), "_claude.mp3"))

	code, _ = post(t, app, "/api/v1/speech", `{"text":"[groq error: timeout]","provider":"groq"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body = post(t, app, "/api/v1/speech", `{"text":"[groq error: timeout]"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, string(body), "provider failure")

	code, _ = post(t, app, "/api/v1/speech", `{"text":"  [ollama error: connection refused]  "}`)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body = post(t, app, "/api/v1/speech", `{"text":"Four."}`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, string(body), "_answer.mp3")

	code, _ = post(t, app, "/api/v1/speech", `{"text":"hi","provider":"gemini"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = post(t, app, "/api/v1/speech", `{"text":"fail","provider":"openai"}`)
	assert.Equal(t, fiber.StatusBadGateway, code)
}

func TestDisabledCollaboratorsAnswer404(t *testing.T) {
	app := newApp(t, nil)

	code, _ := post(t, app, "/api/v1/speech", `{"text":"hi"}`)
	assert.Equal(t, fiber.StatusNotFound, code)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBuildRegistry(t *testing.T) {
	cfg := &config.Config{EnabledProviders: []string{"openai", "Ollama"}, OpenAIModel: "gpt-4o-mini", OllamaModel: "llama3.2"}
	reg, err := BuildRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, []providers.Name{providers.NameOllama, providers.NameOpenAI}, reg.Names())

	cfg.EnabledProviders = []string{"openai", "gemini"}
	_, err = BuildRegistry(cfg)
	assert.ErrorIs(t, err, providers.ErrUnknownProvider)
}
