// Package qa is the HTTP boundary: it validates the inbound question, hands it
// to the dispatcher, and serializes the ResultSet.
package qa

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/emandor/fusefind/internal/config"
	"github.com/emandor/fusefind/internal/dispatch"
	"github.com/emandor/fusefind/internal/middleware"
	"github.com/emandor/fusefind/internal/providers"
	"github.com/emandor/fusefind/internal/store"
	"github.com/emandor/fusefind/internal/telemetry"
	"github.com/emandor/fusefind/internal/tts"
)

type Handler struct {
	cfg    *config.Config
	d      *dispatch.Dispatcher
	speech *tts.Service
	calls  *store.CallStore
}

// BuildRegistry constructs every adapter from cfg and restricts the set to
// cfg.EnabledProviders. A name that does not resolve is a boot error.
func BuildRegistry(cfg *config.Config) (*providers.Registry, error) {
	all, err := providers.NewRegistry(
		providers.NewOpenAI(providers.Config{
			Key: cfg.OpenAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL,
			Temperature: cfg.LLMTemperature, DryRun: cfg.DryRun,
		}),
		providers.NewAnthropic(providers.Config{
			Key: cfg.AnthropicKey, Model: cfg.AnthropicModel, BaseURL: cfg.AnthropicBaseURL,
			Temperature: cfg.LLMTemperature, MaxTokens: cfg.LLMMaxTokens, DryRun: cfg.DryRun,
		}),
		providers.NewGroq(providers.Config{
			Key: cfg.GroqKey, Model: cfg.GroqModel, BaseURL: cfg.GroqBaseURL,
			Temperature: cfg.LLMTemperature, MaxTokens: cfg.LLMMaxTokens, DryRun: cfg.DryRun,
		}),
		providers.NewOllama(providers.Config{
			Model: cfg.OllamaModel, BaseURL: cfg.OllamaBaseURL,
			Temperature: cfg.LLMTemperature, DryRun: cfg.DryRun,
		}),
	)
	if err != nil {
		return nil, err
	}
	return all.Subset(providers.ParseNames(cfg.EnabledProviders))
}

// NewHandler wires the boundary. speech and calls may be nil; their routes
// then answer 404.
func NewHandler(cfg *config.Config, d *dispatch.Dispatcher, speech *tts.Service, calls *store.CallStore) *Handler {
	return &Handler{cfg: cfg, d: d, speech: speech, calls: calls}
}

func (h *Handler) Mount(app fiber.Router) {
	app.Get("/", h.Root)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Post("/meta-qa", h.MetaQA)

	v1 := app.Group("/api/v1")
	v1.Post("/ask", h.Ask)
	v1.Get("/providers", h.ListProviders)
	v1.Post("/speech", h.Speech)
	v1.Get("/stats", h.Stats)
}

func (h *Handler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Hello from meta-qa server"})
}

type askRequest struct {
	Question  *string  `json:"question"`
	Providers []string `json:"providers"`
}

// parseAsk rejects what the dispatcher must never see: bodies that are not
// JSON objects, and missing or blank questions.
func parseAsk(c *fiber.Ctx) (askRequest, string, error) {
	var req askRequest
	if err := c.BodyParser(&req); err != nil {
		return req, "", fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Question == nil {
		return req, "", fiber.NewError(fiber.StatusBadRequest, "question is required")
	}
	q := strings.TrimSpace(*req.Question)
	if q == "" {
		return req, "", fiber.NewError(fiber.StatusBadRequest, "question must not be empty")
	}
	return req, q, nil
}

func (h *Handler) run(c *fiber.Ctx, q string, enabled []providers.Name) (dispatch.ResultSet, error) {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.cfg.RequestTimeout)
	defer cancel()

	log := telemetry.L().With().Str("req_id", middleware.ReqID(c)).Logger()
	log.Info().Int("question_len", len(q)).Int("providers", len(enabled)).Msg("ask_received")

	rs, err := h.d.Run(ctx, q, enabled)
	if errors.Is(err, providers.ErrUnknownProvider) {
		return nil, fiber.NewError(fiber.StatusBadRequest, strings.TrimPrefix(err.Error(), "dispatch: "))
	}
	return rs, err
}

// MetaQA asks every enabled provider and returns provider name to answer text.
// Failed providers carry the "[<name> error: ...]" sentinel as their text.
func (h *Handler) MetaQA(c *fiber.Ctx) error {
	_, q, err := parseAsk(c)
	if err != nil {
		return jsonError(c, err)
	}
	rs, err := h.run(c, q, h.d.Registry().Names())
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(rs.Texts())
}

type resultView struct {
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Answer    string `json:"answer,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Text      string `json:"text"`
	LatencyMs int    `json:"latency_ms"`
}

type askResponse struct {
	Question string                `json:"question"`
	Results  map[string]resultView `json:"results"`
}

// Ask is MetaQA with an optional provider subset and a structured result per provider.
func (h *Handler) Ask(c *fiber.Ctx) error {
	req, q, err := parseAsk(c)
	if err != nil {
		return jsonError(c, err)
	}
	enabled := h.d.Registry().Names()
	if req.Providers != nil {
		enabled = providers.ParseNames(req.Providers)
	}

	rs, err := h.run(c, q, enabled)
	if err != nil {
		return jsonError(c, err)
	}

	out := askResponse{Question: q, Results: make(map[string]resultView, len(rs))}
	for n, r := range rs {
		v := resultView{Provider: string(n), Model: r.Model, Text: r.Text(), LatencyMs: r.LatencyMs}
		if r.OK() {
			v.Answer = r.Answer
		} else {
			v.Error = r.Err.Msg
			v.ErrorKind = string(r.Err.Kind)
		}
		out.Results[string(n)] = v
	}
	return c.JSON(out)
}

type providerView struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	Configured bool   `json:"configured"`
}

func (h *Handler) ListProviders(c *fiber.Ctx) error {
	keys := h.cfg.KeyStatus()
	credential := map[providers.Name]string{
		providers.NameOpenAI: "OPENAI_API_KEY",
		providers.NameClaude: "ANTHROPIC_API_KEY",
		providers.NameGroq:   "GROQ_API_KEY",
	}

	reg := h.d.Registry()
	out := make([]providerView, 0, len(reg.Names()))
	for _, n := range reg.Names() {
		a, _ := reg.Get(n)
		configured := h.cfg.DryRun
		if env, ok := credential[n]; ok {
			configured = configured || keys[env]
		} else if n == providers.NameOllama {
			configured = configured || h.cfg.OllamaBaseURL != ""
		} else {
			configured = true
		}
		out = append(out, providerView{Name: string(n), Model: a.Model(), Configured: configured})
	}
	return c.JSON(out)
}

type speechRequest struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}

func (h *Handler) Speech(c *fiber.Ctx) error {
	if h.speech == nil {
		return jsonError(c, fiber.NewError(fiber.StatusNotFound, "speech synthesis is disabled"))
	}
	var req speechRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.NewError(fiber.StatusBadRequest, "invalid request body"))
	}

	p := providers.Name(strings.ToLower(strings.TrimSpace(req.Provider)))
	if p != "" {
		if _, ok := h.d.Registry().Get(p); !ok {
			return jsonError(c, fiber.NewError(fiber.StatusBadRequest, "unknown provider "+string(p)))
		}
	} else if isAnyFailure(h.d.Registry().Names(), req.Text) {
		return jsonError(c, fiber.NewError(fiber.StatusBadRequest, tts.ErrFailureText.Error()))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.cfg.RequestTimeout)
	defer cancel()

	clip, err := h.speech.Render(ctx, p, req.Text)
	switch {
	case errors.Is(err, tts.ErrEmptyText), errors.Is(err, tts.ErrFailureText):
		return jsonError(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
	case err != nil:
		log := telemetry.L().With().Str("req_id", middleware.ReqID(c)).Logger()
		log.Error().Err(err).Msg("speech_failed")
		return jsonError(c, fiber.NewError(fiber.StatusBadGateway, "audio generation failed"))
	}
	return c.JSON(clip)
}

// isAnyFailure reports whether text is the failure sentinel of any registered provider.
func isAnyFailure(names []providers.Name, text string) bool {
	text = strings.TrimSpace(text)
	for _, n := range names {
		if providers.IsFailure(n, text) {
			return true
		}
	}
	return false
}

func (h *Handler) Stats(c *fiber.Ctx) error {
	if h.calls == nil {
		return jsonError(c, fiber.NewError(fiber.StatusNotFound, "call ledger is disabled"))
	}
	rows, err := h.calls.Summary(c.UserContext())
	if err != nil {
		log := telemetry.L()
		log.Error().Err(err).Msg("stats_query_failed")
		return jsonError(c, fiber.NewError(fiber.StatusInternalServerError, "db error"))
	}
	if rows == nil {
		rows = []store.ProviderStats{}
	}
	return c.JSON(rows)
}

func jsonError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code, msg = fe.Code, fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
