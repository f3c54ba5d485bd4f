package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/modules/billing"
	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/httpserver"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/ratelimit"
	"github.com/dmitrymomot/billingkit/pkg/redis"
)

type appConfig struct {
	Env string `env:"APP_ENV" envDefault:"development"`

	WebhookRateLimit  int           `env:"WEBHOOK_RATE_LIMIT" envDefault:"120"`
	WebhookRateWindow time.Duration `env:"WEBHOOK_RATE_WINDOW" envDefault:"1m"`

	HTTP    httpserver.Config
	PG      pg.Config
	Redis   redis.Config
	Billing billing.Config
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithEnvironment(cfg.Env, "billingd"))
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		log.Error("failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		log.Error("failed to apply migrations", logger.Error(err))
		os.Exit(1)
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", logger.Error(err))
		os.Exit(1)
	}
	defer rdb.Close()

	gateway, err := billing.NewStripeGateway(cfg.Billing.StripeSecretKey)
	if err != nil {
		log.Error("failed to configure payment gateway", logger.Error(err))
		os.Exit(1)
	}

	svcOpts := []billing.ServiceOption{
		billing.WithLogger(log),
		billing.WithNotifier(buildNotifier(log, pool)),
	}
	svcOpts = append(svcOpts, providerOptions(log, cfg.Billing)...)

	svc, err := billing.NewService(cfg.Billing,
		billing.NewPgStorage(pool),
		gateway, svcOpts...)
	if err != nil {
		log.Error("failed to build billing service", logger.Error(err))
		os.Exit(1)
	}

	limiter, err := ratelimit.NewFixedWindow(
		ratelimit.NewRedisStore(rdb, ratelimit.WithKeyPrefix("billingd")),
		cfg.WebhookRateLimit, cfg.WebhookRateWindow)
	if err != nil {
		log.Error("failed to build rate limiter", logger.Error(err))
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", httpserver.HealthCheckHandler(ctx, log,
		pg.Healthcheck(pool),
		redis.Healthcheck(rdb),
	))

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter, ratelimit.Composite(ratelimit.ByClientIP, ratelimit.ByPath)))
		r.Mount("/", svc.Handler())
	})

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.Error("server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func providerOptions(log *slog.Logger, cfg billing.Config) []billing.ServiceOption {
	var opts []billing.ServiceOption

	if cfg.StripeWebhookSecret != "" {
		p, err := billing.NewStripeProvider(cfg.StripeWebhookSecret)
		if err == nil {
			opts = append(opts, billing.WithProvider(p))
		}
	}
	if cfg.PaystackWebhookSecret != "" {
		p, err := billing.NewPaystackProvider(cfg.PaystackWebhookSecret)
		if err == nil {
			opts = append(opts, billing.WithProvider(p))
		}
	}
	if cfg.PaddleWebhookSecret != "" {
		p, err := billing.NewPaddleProvider(cfg.PaddleWebhookSecret)
		if err == nil {
			opts = append(opts, billing.WithProvider(p))
		}
	}

	if len(opts) == 0 {
		log.Warn("no webhook providers configured; webhook ingestion is disabled")
	}

	return opts
}

// buildNotifier wires Postmark email notifications when the mailer is
// configured; otherwise billing events are processed silently. Recipient
// addresses come from the host application's users table.
func buildNotifier(log *slog.Logger, pool *pgxpool.Pool) billing.Notifier {
	var emailCfg email.Config
	if err := config.Load(&emailCfg); err != nil {
		log.Warn("email notifications disabled", "reason", err.Error())
		return billing.NoopNotifier{}
	}

	sender, err := email.NewPostmarkClient(emailCfg)
	if err != nil {
		log.Warn("email notifications disabled", "reason", err.Error())
		return billing.NoopNotifier{}
	}

	resolve := func(ctx context.Context, userID uuid.UUID) (string, error) {
		var addr string
		err := pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&addr)
		return addr, err
	}

	return billing.NewEmailNotifier(sender, resolve)
}
