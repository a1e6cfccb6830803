package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/emandor/fusefind/internal/telemetry"
)

// postJSON sends one JSON request and returns the raw 2xx body.
// Every error it returns is a *ProviderError for p.
func postJSON(ctx context.Context, cfg Config, p Name, url string, headers map[string]string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, newError(p, KindMalformed, "encode request: "+err.Error(), err)
	}

	log := telemetry.Provider(string(p)).With().Str("model", cfg.Model).Int("body_len", len(b)).Logger()
	log.Debug().Msg("provider_request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, newError(p, KindConfig, "invalid endpoint: "+err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := cfg.client().Do(req)
	if err != nil {
		log.Error().Err(err).Msg("provider_request_failed")
		return nil, AsProviderError(p, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, AsProviderError(p, err)
	}
	log.Debug().Int("status_code", resp.StatusCode).Int("resp_len", len(raw)).Msg("provider_response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Str("status", resp.Status).Str("body", truncate(string(raw), 512)).Msg("provider_http_error")
		return nil, statusError(p, resp)
	}
	return raw, nil
}

func dryRunAnswer(p Name, prompt string) string {
	log := telemetry.Provider(string(p))
	log.Info().Int("prompt_len", len(prompt)).Msg("dry_run_enabled")
	return "simulated " + string(p) + " answer"
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
