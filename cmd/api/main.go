package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dentaflow/dentaflow/modules/billing"
	"github.com/dentaflow/dentaflow/pkg/config"
	"github.com/dentaflow/dentaflow/pkg/email"
	"github.com/dentaflow/dentaflow/pkg/entitlement"
	"github.com/dentaflow/dentaflow/pkg/finance"
	"github.com/dentaflow/dentaflow/pkg/httpserver"
	"github.com/dentaflow/dentaflow/pkg/logger"
	storage "github.com/dentaflow/dentaflow/pkg/mongo"
	"github.com/dentaflow/dentaflow/pkg/payment"
	"github.com/dentaflow/dentaflow/pkg/queue"
	"github.com/dentaflow/dentaflow/pkg/ratelimit"
	"github.com/dentaflow/dentaflow/pkg/redis"
	"github.com/dentaflow/dentaflow/pkg/referral"
	"github.com/dentaflow/dentaflow/pkg/requestid"
	"github.com/dentaflow/dentaflow/pkg/subscription"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"dentaflow-billing"`

	// CatalogPath optionally points at a YAML plan catalog; the compiled-in
	// default catalog is used when empty.
	CatalogPath string `env:"PLAN_CATALOG_PATH"`

	PaymentRateLimit  int           `env:"PAYMENT_RATE_LIMIT" envDefault:"20"`
	PaymentRateWindow time.Duration `env:"PAYMENT_RATE_WINDOW" envDefault:"1m"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	StaleOrderAge time.Duration `env:"STALE_ORDER_MAX_AGE" envDefault:"24h"`
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("service stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithEnvironment(cfg.Env, cfg.ServiceName))
	logger.SetAsDefault(log)

	var mongoCfg storage.Config
	config.MustLoad(&mongoCfg)
	db, err := storage.NewWithDatabase(ctx, mongoCfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Client().Disconnect(context.Background()) }()

	var redisCfg redis.Config
	config.MustLoad(&redisCfg)
	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	subStore := subscription.NewMongoStore(db)
	payStore := payment.NewMongoStore(db)
	refStore := referral.NewMongoStore(db)
	for _, ensure := range []func(context.Context) error{
		subStore.EnsureIndexes,
		payStore.EnsureIndexes,
		refStore.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return err
		}
	}

	tx := storage.NewTransactor(db.Client())

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	subs, err := subscription.NewService(catalog, subStore, tx,
		subscription.WithLogger(log))
	if err != nil {
		return err
	}

	queueStorage := queue.NewMemoryStorage()
	enqueuer, err := queue.NewEnqueuer(queueStorage)
	if err != nil {
		return err
	}

	referrals, err := referral.NewService(refStore, enqueuer,
		referral.WithLogger(log))
	if err != nil {
		return err
	}

	var rzpCfg payment.RazorpayConfig
	config.MustLoad(&rzpCfg)
	gateway, err := payment.NewRazorpayGateway(rzpCfg)
	if err != nil {
		return err
	}

	orch, err := payment.NewOrchestrator(subs, payStore, gateway, tx, rzpCfg.KeySecret,
		payment.WithLogger(log),
		payment.OnActivated(onActivated(referrals, enqueuer, catalog, log)),
	)
	if err != nil {
		return err
	}

	sender := newEmailSender(log)
	worker, err := queue.NewWorker(queueStorage, queue.WithWorkerLogger(log))
	if err != nil {
		return err
	}
	if err := worker.Register(queue.NewTaskHandler(inviteEmailHandler(sender))); err != nil {
		return err
	}
	if err := worker.Register(queue.NewTaskHandler(receiptEmailHandler(db, sender, log))); err != nil {
		return err
	}
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("queue worker stopped", slog.Any("error", err))
		}
	}()

	go sweepLoop(ctx, cfg, subs, orch, log)

	limiter, err := ratelimit.NewFixedWindow(
		ratelimit.NewRedisStore(redisClient, "billing"),
		cfg.PaymentRateLimit, cfg.PaymentRateWindow,
	)
	if err != nil {
		return err
	}

	handlers := billing.NewHandlers(subs, orch, referrals, finance.NewReporter(db), log)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(entitlement.PrincipalFromHeaders)
	r.Get("/health", httpserver.HealthHandler(
		httpserver.HealthCheck{Name: "mongodb", Check: storage.Healthcheck(db.Client())},
		httpserver.HealthCheck{Name: "redis", Check: redis.Healthcheck(redisClient)},
	))
	r.Mount("/api/v1/billing", billing.Router(billing.RouterOptions{
		Handlers:     handlers,
		ResolveOwner: entitlement.ResolveOwner(entitlement.NewMongoOwnerResolver(db), log),
		RateLimit:    ratelimit.Middleware(limiter, ratelimit.KeyByOwner),
	}))

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	srv := httpserver.New(
		httpserver.WithConfig(httpCfg),
		httpserver.WithLogger(log),
	)
	return srv.Run(ctx, r)
}

func loadCatalog(path string) (*subscription.Catalog, error) {
	if path == "" {
		return subscription.DefaultCatalog(), nil
	}
	return subscription.LoadCatalogFile(path)
}

// newEmailSender wires Postmark when a server token is configured and falls
// back to logging the email otherwise, so local environments run without
// provider credentials.
func newEmailSender(log *slog.Logger) email.EmailSender {
	var cfg email.Config
	if err := config.Load(&cfg); err != nil || cfg.PostmarkServerToken == "" {
		log.Info("email provider not configured, logging emails instead")
		return email.NewLogSender(log)
	}
	sender, err := email.NewPostmarkClient(cfg)
	if err != nil {
		log.Warn("postmark client setup failed, logging emails instead",
			slog.Any("error", err))
		return email.NewLogSender(log)
	}
	return sender
}

// onActivated runs after a verified payment commits: credit the referrer
// that brought this owner in, then queue the receipt email. Both are
// best-effort; the subscription is already live.
func onActivated(
	referrals *referral.Service,
	enqueuer *queue.Enqueuer,
	catalog *subscription.Catalog,
	log *slog.Logger,
) payment.ActivatedHook {
	return func(ctx context.Context, order *payment.Order, sub *subscription.Subscription) {
		if _, err := referrals.AcceptOnSubscription(ctx, sub); err != nil &&
			!errors.Is(err, referral.ErrReferralNotFound) {
			log.WarnContext(ctx, "referral credit failed",
				slog.String("owner_id", sub.OwnerID.String()),
				slog.Any("error", err))
		}

		planName := sub.PlanID
		if plan, err := catalog.Get(sub.PlanID); err == nil {
			planName = plan.Name
		}
		task := receiptEmailTask{
			OwnerID:  sub.OwnerID,
			PlanName: planName,
			Amount:   sub.Amount,
			Currency: sub.Currency,
			EndDate:  sub.EndDate,
		}
		if err := enqueuer.Enqueue(ctx, task); err != nil {
			log.WarnContext(ctx, "receipt email enqueue failed",
				slog.String("owner_id", sub.OwnerID.String()),
				slog.Any("error", err))
		}
	}
}

// sweepLoop periodically expires overdue subscriptions and cancels payment
// orders that were opened but never verified.
func sweepLoop(
	ctx context.Context,
	cfg appConfig,
	subs *subscription.Service,
	orch *payment.Orchestrator,
	log *slog.Logger,
) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n, err := subs.SweepExpired(ctx); err != nil {
			log.ErrorContext(ctx, "subscription sweep failed", slog.Any("error", err))
		} else if n > 0 {
			log.InfoContext(ctx, "expired subscriptions swept", slog.Int64("count", n))
		}

		if n, err := orch.CancelStaleOrders(ctx, cfg.StaleOrderAge); err != nil {
			log.ErrorContext(ctx, "stale order sweep failed", slog.Any("error", err))
		} else if n > 0 {
			log.InfoContext(ctx, "stale payment orders cancelled", slog.Int64("count", n))
		}
	}
}
