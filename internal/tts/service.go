// Package tts renders a chosen answer as speech. It is a collaborator of the
// HTTP layer only; dispatch never calls it.
package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/emandor/fusefind/internal/providers"
	"github.com/emandor/fusefind/internal/telemetry"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type Clip struct {
	// URL is the public path under which the static handler serves the file.
	URL    string `json:"audio_path"`
	File   string `json:"-"`
	Cached bool   `json:"cached"`
}

type Service struct {
	synth     Synthesizer
	dir       string
	urlPrefix string
	voiceKey  string
	rdb       *redis.Client
	ttl       time.Duration
}

// NewService writes clips to dir and reports them under urlPrefix.
// rdb may be nil, which disables the clip cache.
func NewService(synth Synthesizer, dir, urlPrefix, voiceKey string, rdb *redis.Client, ttl time.Duration) *Service {
	return &Service{synth: synth, dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/"), voiceKey: voiceKey, rdb: rdb, ttl: ttl}
}

// Render synthesizes text for provider p. Failure sentinels are refused:
// only genuine answers get audio.
func (s *Service) Render(ctx context.Context, p providers.Name, text string) (Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Clip{}, ErrEmptyText
	}
	if p != "" && providers.IsFailure(p, text) {
		return Clip{}, ErrFailureText
	}

	log := telemetry.L().With().Str("module", "tts").Str("provider", string(p)).Logger()
	key := s.cacheKey(text)

	if clip, ok := s.lookup(ctx, key); ok {
		log.Info().Str("file", clip.File).Msg("tts_cache_hit")
		telemetry.TTSRequestsTotal.WithLabelValues("cached").Inc()
		return clip, nil
	}

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		log.Error().Err(err).Msg("tts_fail")
		telemetry.TTSRequestsTotal.WithLabelValues("error").Inc()
		return Clip{}, err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Clip{}, err
	}
	suffix := string(p)
	if suffix == "" {
		suffix = "answer"
	}
	name := uuid.New().String() + "_" + suffix + ".mp3"
	file := filepath.Join(s.dir, name)
	if err := os.WriteFile(file, audio, 0644); err != nil {
		return Clip{}, err
	}

	if s.rdb != nil && s.ttl > 0 {
		if err := s.rdb.Set(ctx, key, name, s.ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("tts_cache_set_err")
		}
	}

	telemetry.TTSRequestsTotal.WithLabelValues("ok").Inc()
	log.Info().Str("file", file).Int("bytes", len(audio)).Msg("tts_done")
	return Clip{URL: s.urlPrefix + "/" + name, File: file}, nil
}

func (s *Service) lookup(ctx context.Context, key string) (Clip, bool) {
	if s.rdb == nil {
		return Clip{}, false
	}
	name, err := s.rdb.Get(ctx, key).Result()
	if err != nil || name == "" {
		return Clip{}, false
	}
	file := filepath.Join(s.dir, path.Base(name))
	if _, err := os.Stat(file); err != nil {
		// the file was cleaned up; render again
		return Clip{}, false
	}
	return Clip{URL: s.urlPrefix + "/" + path.Base(name), File: file, Cached: true}, true
}

func (s *Service) cacheKey(text string) string {
	h := sha256.Sum256([]byte(s.voiceKey + "\x00" + text))
	return "tts:" + hex.EncodeToString(h[:])
}
