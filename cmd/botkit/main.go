package main

import (
	"context"
	"log"
	"net/http"

	"github.com/pitabwire/frame"
	frameconfig "github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"

	"github.com/voicetyped/botkit/config"
	"github.com/voicetyped/botkit/internal/app"
	"github.com/voicetyped/botkit/internal/botservice"
	"github.com/voicetyped/botkit/internal/connectutil"
	"github.com/voicetyped/botkit/pkg/events"
	"github.com/voicetyped/botkit/pkg/storage"
	"github.com/voicetyped/botkit/pkg/urlvalidation"
	"github.com/voicetyped/botkit/pkg/webhook"
	webhookapi "github.com/voicetyped/botkit/pkg/webhook/api"
)

func main() {
	ctx := context.Background()

	cfg, err := frameconfig.LoadWithOIDC[config.BotConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	serviceOpts := []frame.Option{
		frame.WithConfig(&cfg),
		frame.WithName("botkit"),
		frame.WithRegisterServerOauth2Client(),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	}
	if cfg.StateBackend == config.BackendSQL {
		serviceOpts = append(serviceOpts, frame.WithDatastore())
	}
	ctx, srv := frame.NewService(serviceOpts...)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	// Obtain the frame authenticator for JWT validation.
	authenticator := srv.SecurityManager().GetAuthenticator(ctx)

	pub := events.NewPublisher(srv.QueueManager(), "botkit", eventRef)

	var db storage.DBProvider
	if cfg.StateBackend == config.BackendSQL {
		db = srv.DatastoreManager().GetPool(ctx, "__default__pool_name__")
	}

	// --- Bot runtime ---
	bot, err := app.New(ctx, app.Options{Config: &cfg, Publisher: pub, DB: db})
	if err != nil {
		log.Fatalf("building bot: %v", err)
	}
	defer bot.Close()
	bot.Start(ctx, func(fn func()) error { return pool.Submit(ctx, fn) })

	// --- Event webhooks ---
	var urlOpts []urlvalidation.Option
	if cfg.AllowPrivateHooks {
		urlOpts = append(urlOpts, urlvalidation.AllowPrivateIPs())
	}
	var whRepo *webhook.Repository
	var deadLetters webhook.DeadLetterSink
	if bot.DB != nil {
		whRepo = webhook.NewRepository(bot.DB)
		if err := whRepo.Migrate(ctx); err != nil {
			log.Fatalf("migrating webhook tables: %v", err)
		}
		deadLetters = whRepo
	}
	whDeliverer := webhook.NewDeliverer(webhook.DelivererConfig{
		MaxRetries:        cfg.WebhookMaxRetries,
		TimeoutSec:        cfg.WebhookTimeoutSec,
		BackoffInitialSec: cfg.WebhookBackoffSec,
		BackoffMaxSec:     cfg.WebhookBackoffMax,
		CBFailThreshold:   cfg.CBFailThreshold,
		CBResetTimeoutSec: cfg.CBResetTimeoutSec,
	}, deadLetters, urlOpts...)
	endpoints := webhook.ParseEndpoints(cfg.WebhookTargets(), cfg.WebhookSecret)
	whSubscriber := &webhook.Subscriber{
		Endpoints: endpoints,
		Deliverer: whDeliverer,
		Pool:      pool,
	}

	// --- HTTP Mux: Connect service, REST and WebSocket on one server ---
	mux := http.NewServeMux()
	botservice.NewHandler(bot.Service()).RegisterRoutes(mux, connectutil.DefaultOptions()...)
	webhookapi.NewHandler(endpoints, whDeliverer, whRepo, pub).RegisterRoutes(mux)

	srv.Init(ctx,
		frame.WithRegisterSubscriber(eventRef+".webhooks", eventURL, whSubscriber),
		frame.WithHTTPHandler(connectutil.H2CHandler(
			connectutil.AuthenticatedHTTPMiddleware(mux, authenticator),
		)),
	)

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}
