package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/archive"
	"github.com/exitschool/offmarket/internal/audit"
	"github.com/exitschool/offmarket/internal/credential"
	"github.com/exitschool/offmarket/internal/enrichment"
	"github.com/exitschool/offmarket/internal/enrichment/vendor"
	"github.com/exitschool/offmarket/internal/notify"
	"github.com/exitschool/offmarket/internal/pipeline"
	"github.com/exitschool/offmarket/internal/report"
	"github.com/exitschool/offmarket/internal/resilience"
	"github.com/exitschool/offmarket/internal/store"
	"github.com/exitschool/offmarket/pkg/anthropic"
	"github.com/exitschool/offmarket/pkg/apollo"
	"github.com/exitschool/offmarket/pkg/clay"
	"github.com/exitschool/offmarket/pkg/hunter"
	"github.com/exitschool/offmarket/pkg/openai"
	"github.com/exitschool/offmarket/pkg/zoominfo"
)

// appEnv holds the initialized dependencies shared by the commands.
type appEnv struct {
	Store   store.Store
	Creds   *credential.Store
	Service *pipeline.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initEnv validates config for mode and wires the store, vendors, LLM and
// pipeline service.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	if mode == "migrate" {
		return env, nil
	}

	key, err := cfg.Credentials.Key()
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Creds = credential.New(st, key,
		time.Duration(cfg.Credentials.CacheTTLSecs)*time.Second, bootstrapKeys())

	weights, err := enrichment.LoadWeights(cfg.Enrichment.WeightsFile)
	if err != nil {
		env.Close()
		return nil, err
	}

	aggregator := enrichment.NewAggregator(initVendors(env.Creds), enrichment.Options{
		Weights:       weights,
		Parallel:      cfg.Enrichment.Parallel,
		VendorTimeout: time.Duration(cfg.Enrichment.VendorTimeoutSecs) * time.Second,
		Breakers: resilience.NewBreakers(resilience.BreakerConfig{
			Threshold: cfg.Enrichment.BreakerThreshold,
			Cooldown:  time.Duration(cfg.Enrichment.BreakerResetSecs) * time.Second,
		}),
		PhoneRegion: cfg.Enrichment.PhoneRegion,
	})

	generator := report.NewGenerator(initCompleter(), report.Options{
		EnhancedMaxTokens: cfg.LLM.EnhancedMaxTokens,
		BIMaxTokens:       cfg.LLM.BIMaxTokens,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.Timeout(),
	})

	archiver, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		env.Close()
		return nil, err
	}

	deps := pipeline.Deps{
		Store:      st,
		Resolver:   enrichment.NewResolver(st, cfg.Enrichment.DefaultProviders),
		Aggregator: aggregator,
		Generator:  generator,
		Audit:      audit.New(st),
		Notify:     notify.New(cfg.SMTP, st, cfg.Report.DashboardURL),
		Secrets:    env.Creds,
		AutoEnrich: cfg.Report.AutoEnrich,
	}
	if archiver != nil {
		deps.Archive = archiver
	}
	env.Service = pipeline.New(deps)

	zap.L().Debug("environment ready",
		zap.String("mode", mode),
		zap.String("store", cfg.Store.Driver),
		zap.String("llm", cfg.LLM.Provider),
		zap.Bool("archive", archiver != nil),
	)
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// bootstrapKeys are the vendor keys from config. Rotated keys stored in the
// credentials table win over these.
func bootstrapKeys() map[string]string {
	keys := map[string]string{
		"hunter":   cfg.Vendors.Hunter.Key,
		"apollo":   cfg.Vendors.Apollo.Key,
		"zoominfo": cfg.Vendors.ZoomInfo.Key,
		"clay":     cfg.Vendors.Clay.Key,
	}
	for k, v := range keys {
		if v == "" {
			delete(keys, k)
		}
	}
	return keys
}

func initVendors(creds vendor.Credentials) *vendor.Registry {
	policy := resilience.DefaultPolicy()
	if cfg.Enrichment.RetryAttempts > 0 {
		policy.Attempts = cfg.Enrichment.RetryAttempts
	}
	vcfg := vendor.Config{Policy: policy, PhoneRegion: cfg.Enrichment.PhoneRegion}

	return vendor.NewRegistry(
		vendor.NewHunter(creds, func(apiKey string) hunter.Client {
			return hunter.NewClient(apiKey, hunter.WithBaseURL(cfg.Vendors.Hunter.BaseURL))
		}, vcfg),
		vendor.NewApollo(creds, func(apiKey string) apollo.Client {
			return apollo.NewClient(apiKey, apollo.WithBaseURL(cfg.Vendors.Apollo.BaseURL))
		}, vcfg),
		vendor.NewZoomInfo(creds, zoominfo.NewClient(zoominfo.WithBaseURL(cfg.Vendors.ZoomInfo.BaseURL)), vcfg),
		vendor.NewClay(creds, func(apiKey string) clay.Client {
			return clay.NewClient(apiKey, cfg.Vendors.Clay.WebhookURL)
		}, cfg.Vendors.Clay.CallbackURL),
	)
}

// initCompleter returns the configured LLM, or nil when no key is set. A
// nil completer makes every report section fallback prose.
func initCompleter() report.Completer {
	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			break
		}
		return report.NewAnthropicCompleter(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	default:
		if cfg.OpenAI.Key == "" {
			break
		}
		return report.NewOpenAICompleter(
			openai.NewClient(cfg.OpenAI.Key, openai.WithBaseURL(cfg.OpenAI.BaseURL)),
			cfg.OpenAI.Model,
		)
	}
	zap.L().Warn("no llm key configured, reports will use fallback content",
		zap.String("provider", cfg.LLM.Provider))
	return nil
}
