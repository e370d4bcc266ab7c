package service

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tnqbao/gau-ads-orchestrator/adcache"
	"github.com/tnqbao/gau-ads-orchestrator/config"
	"github.com/tnqbao/gau-ads-orchestrator/duplicator"
	"github.com/tnqbao/gau-ads-orchestrator/guard"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/ledger"
	"github.com/tnqbao/gau-ads-orchestrator/library"
	"github.com/tnqbao/gau-ads-orchestrator/provider"
	"github.com/tnqbao/gau-ads-orchestrator/reconcile"
	"github.com/tnqbao/gau-ads-orchestrator/repository"
	"github.com/tnqbao/gau-ads-orchestrator/session"
	"github.com/tnqbao/gau-ads-orchestrator/upload"
)

// Service is the application context: every long-lived component of the process.
type Service struct {
	Breakers   *guard.Breakers
	Rate       *guard.RateTracker
	Provider   *provider.Provider
	Library    *library.Store
	Ledger     *ledger.Ledger
	Reconcile  *reconcile.Engine
	Sessions   *session.Registry
	Upload     *upload.Service
	Duplicator *duplicator.Duplicator
	AdCache    *adcache.Cache
}

var serviceInstance *Service

func InitService(cfg *config.Config, inf *infra.Infra, repo *repository.Repository) *Service {
	if serviceInstance != nil {
		return serviceInstance
	}
	env := cfg.EnvConfig

	breakers := guard.NewBreakers(guard.BreakerSettings{
		FailureThreshold: env.Breaker.FailureThreshold,
		Cooldown:         env.Breaker.Cooldown,
	}, breakerOpened(inf), breakerChanged(inf.Logger))

	rate := guard.NewRateTracker(guard.RateSettings{
		RequestsPerSecond: env.RateLimit.RequestsPerSecond,
		Burst:             env.RateLimit.Burst,
		PauseThreshold:    env.RateLimit.PauseThreshold,
	})

	prov := provider.InitProvider(env, breakers, rate, inf.Logger)

	store, err := library.NewStore(repo.CreativeRepo, env.Library.RootDir,
		NewCreativeEvents(inf.Produce.CreativeService), inf.Logger)
	if err != nil {
		log.Fatalf("Failed to open creative library: %v", err)
	}

	led := ledger.New(repo.AccountUploadRepo, inf.Logger)
	engine := reconcile.NewEngine(store, led, inf.Logger)
	sessions := session.NewRegistry(env.Upload.SessionGrace, inf.Redis, inf.Logger)

	uploads := upload.NewService(engine, prov.Graph, led, prov.Drive, sessions, env.Upload.Concurrency, inf.Logger)
	dup := duplicator.New(prov.Graph, repo.DuplicationJobRepo, inf.Produce.DuplicationService,
		inf.Produce.NotificationService, duplicator.SettingsFromConfig(env), inf.Logger)

	serviceInstance = &Service{
		Breakers:   breakers,
		Rate:       rate,
		Provider:   prov,
		Library:    store,
		Ledger:     led,
		Reconcile:  engine,
		Sessions:   sessions,
		Upload:     uploads,
		Duplicator: dup,
		AdCache:    adcache.New(prov.Graph, inf.Redis, env.AdCache.TTL, inf.Logger),
	}
	return serviceInstance
}

func GetService() *Service {
	if serviceInstance == nil {
		panic("Service not initialized. Call InitService() first.")
	}
	return serviceInstance
}

// breakerOpened escalates only the primary ads API; other services just log.
func breakerOpened(inf *infra.Infra) guard.OpenHook {
	return func(service, from string, threshold uint32) {
		ctx := context.Background()
		inf.Logger.ErrorWithContextf(ctx, nil, "[Breaker] %s opened after %d consecutive failures", service, threshold)
		if service != guard.FacebookAPI || inf.Produce == nil {
			return
		}
		// Runs under the breaker lock; publish outside of it.
		go func() {
			if err := inf.Produce.NotificationService.SendBreakerOpened(ctx, service, from, threshold); err != nil {
				inf.Logger.ErrorWithContextf(ctx, err, "[Breaker] Failed to escalate open breaker for %s", service)
			}
		}()
	}
}

func breakerChanged(logger *infra.LoggerClient) func(name, from, to string) {
	transitions, _ := otel.Meter("github.com/tnqbao/gau-ads-orchestrator/service").Int64Counter("breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"))
	return func(name, from, to string) {
		ctx := context.Background()
		logger.WarningWithContextf(ctx, "[Breaker] %s: %s -> %s", name, from, to)
		if transitions != nil {
			transitions.Add(ctx, 1, metric.WithAttributes(
				attribute.String("service", name),
				attribute.String("to", to),
			))
		}
	}
}
