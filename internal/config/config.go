package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv, AppPort string
	CORSOrigins     []string

	RedisAddr string
	RedisDB   int
	DBDSN     string

	EnabledProviders       []string
	RequestTimeout         time.Duration
	ProviderTimeout        time.Duration
	DispatchMaxConcurrency int
	DryRun                 bool

	OpenAIKey, OpenAIModel, OpenAIBaseURL          string
	AnthropicKey, AnthropicModel, AnthropicBaseURL string
	GroqKey, GroqModel, GroqBaseURL                string
	OllamaModel, OllamaBaseURL                     string
	LLMTemperature                                 float64
	LLMMaxTokens                                   int

	TTSModel      string
	TTSVoice      string
	TTSBaseURL    string
	TTSRPS        int
	TTSBurst      int
	TTSMaxRetries int
	TTSCacheTTL   time.Duration
	AudioDir      string

	RateLimitMax    int
	RateLimitWindow time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppEnv:                 get("APP_ENV", "dev"),
		AppPort:                get("APP_PORT", "8000"),
		CORSOrigins:            split(get("CORS_ORIGINS", "http://localhost:8501")),
		RedisAddr:              get("REDIS_ADDR", ""),
		RedisDB:                atoi(get("REDIS_DB", "0")),
		DBDSN:                  get("DB_DSN", ""),
		EnabledProviders:       GetEnvList("ENABLED_PROVIDERS", []string{"openai", "claude", "groq", "ollama"}),
		RequestTimeout:         GetEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
		ProviderTimeout:        GetEnvDuration("PROVIDER_TIMEOUT", 60*time.Second),
		DispatchMaxConcurrency: GetEnvInt("DISPATCH_MAX_CONCURRENCY", 0),
		DryRun:                 parseBool(get("DRY_RUN", "false")),
		OpenAIKey:              get("OPENAI_API_KEY", ""),
		OpenAIModel:            get("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:          get("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnthropicKey:           get("ANTHROPIC_API_KEY", ""),
		AnthropicModel:         get("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
		AnthropicBaseURL:       get("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
		GroqKey:                get("GROQ_API_KEY", ""),
		GroqModel:              get("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqBaseURL:            get("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		OllamaModel:            get("OLLAMA_MODEL", "llama3.2"),
		OllamaBaseURL:          get("OLLAMA_BASE_URL", "http://localhost:11434"),
		LLMTemperature:         parseFloat(get("LLM_TEMPERATURE", "0.3")),
		LLMMaxTokens:           GetEnvInt("LLM_MAX_TOKENS", 512),
		TTSModel:               get("TTS_MODEL", "tts-1"),
		TTSVoice:               get("TTS_VOICE", "onyx"),
		TTSBaseURL:             get("TTS_BASE_URL", get("OPENAI_BASE_URL", "https://api.openai.com/v1")),
		TTSRPS:                 GetEnvInt("TTS_RPS", 2),
		TTSBurst:               GetEnvInt("TTS_BURST", 2),
		TTSMaxRetries:          GetEnvInt("TTS_MAX_RETRIES", 3),
		TTSCacheTTL:            GetEnvDuration("TTS_CACHE_TTL", 24*time.Hour),
		AudioDir:               get("AUDIO_DIR", "./storage/audio"),
		RateLimitMax:           GetEnvInt("RATE_LIMIT_MAX", 0),
		RateLimitWindow:        GetEnvDuration("RATE_LIMIT_WINDOW", 30*time.Second),
	}
	return c
}

// KeyStatus reports which credentials are present, never their values.
func (c *Config) KeyStatus() map[string]bool {
	return map[string]bool{
		"OPENAI_API_KEY":    c.OpenAIKey != "",
		"ANTHROPIC_API_KEY": c.AnthropicKey != "",
		"GROQ_API_KEY":      c.GroqKey != "",
	}
}

func GetEnvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func GetEnvList(k string, d []string) []string {
	if v := os.Getenv(k); v != "" {
		return split(v)
	}
	return d
}

func GetEnvDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}

func get(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func atoi(s string) int           { i, _ := strconv.Atoi(s); return i }
func parseBool(s string) bool     { b, _ := strconv.ParseBool(s); return b }
func parseFloat(s string) float64 { f, _ := strconv.ParseFloat(s, 64); return f }
func split(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
