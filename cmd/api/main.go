package main

import (
	"context"
	"flag"
	"os"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/emandor/fusefind/internal/cache"
	"github.com/emandor/fusefind/internal/config"
	"github.com/emandor/fusefind/internal/db"
	"github.com/emandor/fusefind/internal/dispatch"
	"github.com/emandor/fusefind/internal/middleware"
	"github.com/emandor/fusefind/internal/qa"
	"github.com/emandor/fusefind/internal/store"
	"github.com/emandor/fusefind/internal/telemetry"
	"github.com/emandor/fusefind/internal/tts"
	"github.com/emandor/fusefind/internal/ws"
)

func main() {
	doMigrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	cfg := config.Load()
	tlog := telemetry.Init(telemetry.FromEnv(config.GetEnv))

	keys := cfg.KeyStatus()
	tlog.Info().
		Str("port", cfg.AppPort).
		Strs("providers", cfg.EnabledProviders).
		Bool("openai_key", keys["OPENAI_API_KEY"]).
		Bool("anthropic_key", keys["ANTHROPIC_API_KEY"]).
		Bool("groq_key", keys["GROQ_API_KEY"]).
		Bool("dry_run", cfg.DryRun).
		Msg("booting fusefind")

	sqlxDB, err := db.Connect(cfg.DBDSN)
	if err != nil {
		tlog.Fatal().Err(err).Msg("db connect failed")
	}
	if *doMigrate {
		if sqlxDB == nil {
			tlog.Fatal().Msg("DB_DSN is required for -migrate")
		}
		if err := db.Migrate(sqlxDB); err != nil {
			tlog.Fatal().Err(err).Msg("migrate failed")
		}
		tlog.Info().Msg("migrations done")
		return
	}

	rdb, err := cache.Connect(context.Background(), cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		tlog.Fatal().Err(err).Msg("redis connect failed")
	}

	reg, err := qa.BuildRegistry(cfg)
	if err != nil {
		tlog.Fatal().Err(err).Msg("provider registry")
	}

	opts := dispatch.Options{
		ProviderTimeout: cfg.ProviderTimeout,
		MaxConcurrency:  cfg.DispatchMaxConcurrency,
	}
	var calls *store.CallStore
	if sqlxDB != nil {
		calls = store.NewCallStore(sqlxDB)
		opts.Recorders = append(opts.Recorders, calls)
	}
	d := dispatch.New(reg, opts)

	speech := newSpeech(cfg, rdb)

	app := fiber.New()

	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecureHeaders())
	app.Use(middleware.RequestLog())
	if rl := middleware.RateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow); rl != nil {
		app.Use(rl)
	}

	qa.NewHandler(cfg, d, speech, calls).Mount(app)

	app.Static("/storage/audio", cfg.AudioDir)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	hub := ws.NewHub(d, cfg.RequestTimeout)
	app.Use("/ws", middleware.WSUpgrade())
	app.Get("/ws", websocket.New(hub.HandleWS))

	if err := app.Listen(":" + cfg.AppPort); err != nil {
		tlog.Fatal().Err(err).Msg("listen")
	}
}

// newSpeech returns nil when no OpenAI key is configured; /api/v1/speech then answers 404.
func newSpeech(cfg *config.Config, rdb *redis.Client) *tts.Service {
	if cfg.OpenAIKey == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.AudioDir, 0o755); err != nil {
		log := telemetry.L()
		log.Error().Err(err).Str("dir", cfg.AudioDir).Msg("audio dir unavailable")
		return nil
	}
	synth := tts.NewOpenAISpeech(cfg.OpenAIKey, cfg.TTSModel, cfg.TTSVoice, cfg.TTSBaseURL,
		cfg.TTSRPS, cfg.TTSBurst, cfg.TTSMaxRetries)
	return tts.NewService(synth, cfg.AudioDir, "/storage/audio", cfg.TTSModel+"/"+cfg.TTSVoice, rdb, cfg.TTSCacheTTL)
}
