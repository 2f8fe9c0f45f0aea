package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	salesx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/agents/sales"
	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/api"
	cachex "github.com/tanpawarit/Chative-Sales-Interceptor/agent/cache"
	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/interceptor"
	llmx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/llm"
	retryx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/retry"
	statex "github.com/tanpawarit/Chative-Sales-Interceptor/agent/state"
	storex "github.com/tanpawarit/Chative-Sales-Interceptor/agent/store"
	"github.com/tanpawarit/Chative-Sales-Interceptor/agent/telemetry"
	toolx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/tool"
	configx "github.com/tanpawarit/Chative-Sales-Interceptor/pkg/config"
	_ "github.com/tanpawarit/Chative-Sales-Interceptor/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/Chative-Sales-Interceptor/pkg/openrouter"
	qstashx "github.com/tanpawarit/Chative-Sales-Interceptor/pkg/qstash"
	tracex "github.com/tanpawarit/Chative-Sales-Interceptor/pkg/tracing"
)

type AppConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	MaxIterations   int           `split_words:"true" default:"6"`
	HistoryLimit    int           `split_words:"true" default:"40"`
	AllowedOrigins  []string      `split_words:"true"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

type CacheConfig struct {
	DefaultTTL time.Duration `split_words:"true" default:"5m"`
	SearchTTL  time.Duration `split_words:"true" default:"10m"`
	CartTTL    time.Duration `split_words:"true" default:"30s"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	cacheCfg := configx.MustNew[CacheConfig]("CACHE")
	retryCfg := configx.MustNew[retryx.Config]("RETRY")
	dbCfg := configx.MustNew[storex.Config]("DB")
	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	stateCfg := configx.MustNew[statex.UpstashConfig]("STATE")
	otelCfg := configx.MustNew[tracex.Config]("OTEL")

	tracing, err := tracex.Setup(ctx, *otelCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	store, err := storex.Open(ctx, *dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	routerCfg := llmCfg.OpenRouter()
	if llmCfg.ProbeOnStart {
		if err := openrouterx.Probe(ctx, routerCfg); err != nil {
			log.Fatal().Err(err).Msg("openrouter probe failed")
		}
	}
	chatModel, err := routerCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize chat model")
	}

	var notifier contractx.Notifier = toolx.LogNotifier{Logger: log.Logger}
	if qstashCfg.Enabled() {
		notifier = toolx.NewQueueNotifier(qstashx.MustNew(*qstashCfg), qstashCfg.Destination)
	}

	var history statex.Store = statex.NewMemoryStore()
	if stateCfg.Enabled() {
		upstash, err := statex.NewUpstashStore(*stateCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize conversation store")
		}
		history = upstash
	}

	policy := interceptor.DefaultPolicy()
	policy.TTL[toolx.SearchProduct] = cacheCfg.SearchTTL
	policy.TTL[toolx.ViewCart] = cacheCfg.CartTTL

	pipeline := interceptor.New(
		cachex.New(cachex.WithDefaultTTL(cacheCfg.DefaultTTL)),
		retryx.New(*retryCfg),
		telemetry.NewMetrics(),
		interceptor.WithPolicy(policy),
		interceptor.WithDependencies(contractx.Dependencies{
			Catalog:  store,
			Cart:     store,
			Notifier: notifier,
		}),
		interceptor.WithRecorderOptions(telemetry.WithTracer(tracing.Tracer)),
	)

	tools, exec := toolx.Build()
	maxTokens := llmCfg.MaxCompletionToken
	temperature := llmCfg.Temperature
	service, err := salesx.New(chatModel, tools, exec, pipeline, store, history, salesx.Config{
		MaxIterations: appCfg.MaxIterations,
		HistoryLimit:  appCfg.HistoryLimit,
		Model:         llmCfg.Model,
		Temperature:   &temperature,
		MaxTokens:     &maxTokens,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sales agent")
	}

	handler := api.NewHandler(service, pipeline,
		api.WithPinger(store),
		api.WithInventory(store),
		api.WithAllowedOrigins(appCfg.AllowedOrigins...),
	)
	srv := &http.Server{
		Addr:              appCfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", appCfg.Addr).Str("model", llmCfg.Model).Msg("sales interceptor listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracer shutdown failed")
	}
}
