package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/emandor/fusefind/internal/telemetry"
)

var (
	ErrEmptyText   = errors.New("tts: empty text")
	ErrMissingKey  = errors.New("tts: missing OPENAI_API_KEY")
	ErrFailureText = errors.New("tts: text is a provider failure, not an answer")
)

// OpenAISpeech calls /audio/speech and returns the mp3 bytes.
type OpenAISpeech struct {
	Key, Model, Voice, BaseURL string
	Client                     *http.Client
	Limiter                    *rate.Limiter
	MaxRetries                 int
}

func NewOpenAISpeech(key, model, voice, baseURL string, rps, burst, maxRetries int) *OpenAISpeech {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 2
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "onyx"
	}
	return &OpenAISpeech{
		Key:        key,
		Model:      model,
		Voice:      voice,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Client:     &http.Client{Timeout: 60 * time.Second},
		Limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		MaxRetries: maxRetries,
	}
}

func (o *OpenAISpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if o.Key == "" {
		return nil, ErrMissingKey
	}
	if err := o.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	b, err := json.Marshal(map[string]any{
		"model":           o.Model,
		"voice":           o.Voice,
		"input":           text,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, err
	}

	log := telemetry.L().With().Str("provider", "openai-tts").Str("model", o.Model).Logger()

	var lastErr error
	start := time.Now()
	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		if attempt > 0 {
			d := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/audio/speech", bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+o.Key)
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if len(raw) == 0 {
				return nil, errors.New("openai tts: empty audio")
			}
			log.Debug().Int("latency_ms", int(time.Since(start)/time.Millisecond)).Int("bytes", len(raw)).Msg("tts_ok")
			return raw, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("tts_retry")
			lastErr = errors.New("openai tts http " + resp.Status)
			continue
		}

		lastErr = errors.New("openai tts http " + resp.Status)
		break
	}
	return nil, lastErr
}
