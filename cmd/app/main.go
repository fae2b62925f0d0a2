package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/config"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
	"github.com/khrabrovart/telebot/internal/infra/adapters/routes"
	"github.com/khrabrovart/telebot/internal/infra/adapters/scheduler"
	tele "github.com/khrabrovart/telebot/internal/infra/adapters/telegram"
	"github.com/khrabrovart/telebot/internal/infra/api"
	"github.com/khrabrovart/telebot/internal/infra/api/apiv1"
	pg "github.com/khrabrovart/telebot/internal/infra/db/postgres"
	"github.com/khrabrovart/telebot/internal/infra/feed"
	"github.com/khrabrovart/telebot/internal/infra/logging"
	"github.com/khrabrovart/telebot/internal/infra/metrics"
	red "github.com/khrabrovart/telebot/internal/infra/redis"
	"github.com/khrabrovart/telebot/internal/infra/sched"
	"github.com/khrabrovart/telebot/internal/infra/security"
	"github.com/khrabrovart/telebot/internal/infra/worker"
	"github.com/khrabrovart/telebot/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "use in-memory gateways and skip Telegram calls")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("DEV MODE: gateways are in-memory, Telegram calls are logged only")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	txm := pg.NewTxManager(pool)
	ruleRepo := pg.NewPostingRuleRepo(pool, txm)
	botStore := pg.NewBotRepo(pool, txm)
	if cfg.Security.TokenKey != "" {
		sealer, err := security.NewTokenSealer(cfg.Security.TokenKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("token sealer")
		}
		botStore.WithSealer(sealer)
	} else if !cfg.Runtime.Dev {
		logger.Warn().Msg("security.token_key not set; bot tokens are stored in plaintext")
	}
	logRepo := pg.NewPollEventLogRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	cursors := red.NewCursorStore(redisClient)
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)
	cachedBots := red.NewBotRepoCacheDecorator(botStore, redisClient, cfg.Telegram.BotCacheTTL)

	var webhookSecrets *security.WebhookSecrets
	if cfg.Webhook.SecretKey != "" {
		webhookSecrets = security.NewWebhookSecrets(cfg.Webhook.SecretKey)
	} else if !cfg.Runtime.Dev {
		logger.Warn().Msg("webhook.secret_key not set; webhook updates are not authenticated")
	}

	// ---- Gateways ----
	var (
		schedules  adapter.ScheduleGateway
		routeGW    adapter.RouteGateway
		display    adapter.LogDisplay
		registrar  usecase.WebhookRegistrar
		botClients = tele.NewClients(cachedBots, cfg.Telegram.APIEndpoint, cfg.Telegram.RequestTimeout)
	)
	if cfg.Runtime.Dev {
		schedules = scheduler.NewMemoryGateway()
		routeGW = routes.NewMemoryGateway(cfg.Routes.PublicBaseURL)
		noop := tele.NewNoopDisplay(logger)
		display, registrar = noop, noop
	} else {
		schedules, err = scheduler.NewHTTPGateway(cfg.Scheduler.BaseURL, cfg.Scheduler.APIKey, cfg.Scheduler.Group, cfg.Scheduler.RequestTimeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler gateway")
		}
		routeGW, err = routes.NewHTTPGateway(cfg.Routes.BaseURL, cfg.Routes.APIKey, cfg.Routes.APIID, cfg.Routes.PublicBaseURL, cfg.Routes.RequestTimeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("routes gateway")
		}
		display = tele.NewLogDisplay(botClients, logger)
		wr := tele.NewWebhookRegistrar(botClients, logger)
		if webhookSecrets != nil {
			wr.WithSecret(webhookSecrets.For)
		}
		registrar = wr
	}

	// ---- Use cases ----
	reconcileUC := usecase.NewReconcileUseCase(schedules, usecase.ScheduleTarget{
		Prefix:      cfg.Scheduler.Prefix,
		TargetArn:   cfg.Scheduler.TargetArn,
		RoleArn:     cfg.Scheduler.RoleArn,
		MaxEventAge: cfg.Scheduler.MaxEventAge,
	}, logger)
	routeUC := usecase.NewRouteSyncUseCase(routeGW, registrar, cfg.Routes.Prefix, cfg.Routes.IntegrationID, logger)
	pollUC := usecase.NewPollEventUseCase(logRepo, ruleRepo, usecase.NewReplacements(), usecase.CASConfig{
		MaxAttempts: cfg.Polls.MaxCASAttempts,
		Delay:       cfg.Polls.CASDelay,
	}, logger)
	adminUC := usecase.NewAdminUseCase(ruleRepo, cachedBots, logger)

	// ---- Change feeds ----
	workers := worker.NewPool(cfg.Feed.Workers, logger)
	workers.Start(ctx)

	feedOpts := func(name string) feed.Options {
		return feed.Options{
			PollInterval: cfg.Feed.PollInterval,
			BatchSize:    cfg.Feed.BatchSize,
			LockKey:      red.FeedLockKey(name),
			LockTTL:      cfg.Feed.LockTTL,
		}
	}
	ruleFeed := feed.NewConsumer(pg.NewChangeFeed(pool, pg.FeedPostingRules), cursors,
		reconcileUC.Reconcile, workers, locker, feedOpts(pg.FeedPostingRules), logger)
	botFeed := feed.NewConsumer(pg.NewChangeFeed(pool, pg.FeedBots), cursors,
		func(ctx context.Context, rec model.ChangeRecord) error {
			if rec.Kind != model.ChangeInsert {
				botClients.Forget(rec.Key)
			}
			_, err := routeUC.Sync(ctx, rec)
			return err
		}, workers, locker, feedOpts(pg.FeedBots), logger)

	// ---- Background workers ----
	sweeper := sched.NewPollLogSweeper(cfg.Polls.SweepInterval, logRepo, logger)
	resync := sched.NewResyncWorker(reconcileUC, ruleRepo, workers, cfg.Scheduler.ResyncInterval, logger)

	var wg sync.WaitGroup
	for _, run := range []func(context.Context) error{ruleFeed.Run, botFeed.Run, sweeper.Run} {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			_ = run(ctx)
		}(run)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		resync.Start(ctx)
	}()

	// ---- HTTP ----
	secret := cfg.Admin.JWTSecret
	if secret == "" {
		secret = randomSecret()
	}
	auth := api.NewAuthenticator(secret)
	if cfg.Runtime.Dev {
		if tok, err := auth.Mint("dev", 24*time.Hour); err == nil {
			logger.Info().Str("token", tok).Msg("dev admin token")
		}
	}

	webhook := api.NewWebhookHandler(pollUC, display, rateLimiter, api.RateLimit{
		Limit:  cfg.Webhook.RateLimit,
		Window: cfg.Webhook.RateWindow,
	}, logger)
	if webhookSecrets != nil {
		webhook.WithSecrets(webhookSecrets)
	}

	router := api.NewRouter(api.RouterDeps{
		Webhook: webhook,
		API:           apiv1.NewServer(adminUC, pollUC, logger),
		Auth:          auth,
		WebhookPrefix: cfg.Routes.Prefix,
		Timeout:       cfg.Admin.RequestTimeout,
	}, logger)
	server := api.NewServer(cfg.Admin.Port, router, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
	workers.Stop()
	wg.Wait()
	logger.Info().Msg("bye")
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
