package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spendsense/finance-api/internal/advisor"
	"github.com/spendsense/finance-api/internal/extract"
	"github.com/spendsense/finance-api/internal/provider"
	"github.com/spendsense/finance-api/internal/rates"
	"github.com/spendsense/finance-api/internal/store"
)

// appEnv holds the wired subsystems shared by the serve, parse, rates and
// summarize commands.
type appEnv struct {
	Store    store.SnapshotStore
	Caller   provider.Caller
	Advisor  *advisor.Advisor
	Pipeline *extract.Pipeline
	Rates    *rates.Manager
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, the model callers, and the three subsystems.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	caller := initCaller()

	adv := advisor.New(caller, advisor.Config{
		Roster:         provider.Roster(cfg.OpenRouter.TextModels),
		CollectTimeout: cfg.Failover.CollectTimeout(),
		StreamTimeout:  cfg.Failover.AttemptTimeout(),
		RateLimitPause: cfg.Failover.RateLimitPause(),
	})

	pipe, err := initPipeline(caller)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	mgr := rates.NewManager(st, initSources(), rates.Config{
		Window: cfg.Rates.Window(),
	})

	return &appEnv{
		Store:    st,
		Caller:   caller,
		Advisor:  adv,
		Pipeline: pipe,
		Rates:    mgr,
	}, nil
}

func initStore(ctx context.Context) (store.SnapshotStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initCaller builds the model transport: OpenRouter for the free rosters,
// with anthropic/ ids muxed to the direct API when a key is present. With no
// key configured at all it returns nil; the advisor then reports itself
// unavailable and the extraction pipeline skips its model tiers, both
// without making a single attempt.
func initCaller() provider.Caller {
	if cfg.OpenRouter.Key == "" && cfg.Anthropic.Key == "" {
		zap.L().Warn("no model api key configured, AI features disabled")
		return nil
	}

	var or *provider.Client
	if cfg.OpenRouter.Key != "" {
		var opts []provider.Option
		if cfg.OpenRouter.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(cfg.OpenRouter.BaseURL))
		}
		if cfg.OpenRouter.RateLimitRPS > 0 {
			opts = append(opts, provider.WithRateLimit(cfg.OpenRouter.RateLimitRPS, 2))
		}
		or = provider.NewClient(cfg.OpenRouter.Key, opts...)
	}

	var ac *provider.AnthropicCaller
	if cfg.Anthropic.Key != "" {
		ac = provider.NewAnthropicCaller(cfg.Anthropic.Key)
		zap.L().Info("anthropic fallback enabled")
	}

	return provider.NewMux(or, ac)
}

func initPipeline(caller provider.Caller) (*extract.Pipeline, error) {
	var engines []extract.TextEngine
	engines = append(engines,
		extract.NewEasyOCR(cfg.Extract.EasyOCRPath),
		extract.NewTesseract(cfg.Extract.TesseractPath),
	)
	if cfg.Extract.OCRSpaceKey != "" {
		engines = append(engines, extract.NewOCRSpace(cfg.Extract.OCRSpaceKey, ""))
	}

	categories := extract.DefaultCategories
	if cfg.Extract.CategoriesPath != "" {
		loaded, err := extract.LoadCategories(cfg.Extract.CategoriesPath)
		if err != nil {
			return nil, eris.Wrap(err, "load categories")
		}
		categories = loaded
	}

	return extract.NewPipeline(extract.PipelineConfig{
		Caller:               caller,
		VisionRoster:         provider.Roster(cfg.OpenRouter.VisionModels),
		TextRoster:           provider.Roster(cfg.OpenRouter.TextModels),
		Engines:              engines,
		Categories:           categories,
		VisionTimeout:        cfg.Failover.VisionTimeout(),
		TextTimeout:          cfg.Failover.AttemptTimeout(),
		RateLimitPause:       cfg.Failover.RateLimitPause(),
		RefinementOverwrites: cfg.Extract.RefinementOverwrites,
	}), nil
}

func initSources() []rates.Source {
	return []rates.Source{
		rates.NewGoldPriceSource(cfg.Rates.GoldPriceEndpoint),
		rates.NewMetalsSource(cfg.Rates.MetalsKey, cfg.Rates.MetalsEndpoint),
		rates.NewCurrencySource(cfg.Rates.CurrencyEndpoint),
	}
}
