package billing

import "time"

// Config holds billing module settings loaded from the environment.
type Config struct {
	CronSecret     string        `env:"BILLING_CRON_SECRET,required"`
	MinRunInterval time.Duration `env:"BILLING_MIN_RUN_INTERVAL" envDefault:"1m"`
	MaxCandidates  int           `env:"BILLING_MAX_CANDIDATES" envDefault:"500"`
	EventRetention time.Duration `env:"BILLING_EVENT_RETENTION" envDefault:"720h"`

	StripeSecretKey       string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET"`
	PaystackWebhookSecret string `env:"PAYSTACK_WEBHOOK_SECRET"`
	PaddleWebhookSecret   string `env:"PADDLE_WEBHOOK_SECRET"`
}
