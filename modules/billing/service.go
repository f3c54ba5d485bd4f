package billing

import (
	"errors"
	"log/slog"
)

// Service is the billing reconciliation engine: it ingests verified
// provider webhooks and runs the periodic renewal sweep. It owns every
// write to subscription status and period boundaries.
type Service struct {
	cfg         Config
	store       Storage
	gateway     PaymentGateway
	providers   map[Provider]WebhookProvider
	notifier    Notifier
	coordinator *Coordinator
	catalog     Catalog
	log         *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithProvider registers a webhook provider. Providers are keyed by name;
// registering the same name twice keeps the last one.
func WithProvider(p WebhookProvider) ServiceOption {
	return func(s *Service) {
		s.providers[p.Name()] = p
	}
}

// WithNotifier sets the notification channel. Defaults to NoopNotifier.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithCatalog overrides the built-in plan catalog.
func WithCatalog(c Catalog) ServiceOption {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithLogger sets the structured logger. Defaults to a discard logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates the billing service. Storage and the payment gateway
// are mandatory; everything else has a default.
func NewService(cfg Config, store Storage, gateway PaymentGateway, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if gateway == nil {
		return nil, errors.New("payment gateway is required")
	}

	s := &Service{
		cfg:         cfg,
		store:       store,
		gateway:     gateway,
		providers:   make(map[Provider]WebhookProvider),
		notifier:    NoopNotifier{},
		coordinator: NewCoordinator(cfg.MinRunInterval),
		catalog:     DefaultCatalog(),
		log:         slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Coordinator exposes the run coordinator, mainly for health reporting.
func (s *Service) Coordinator() *Coordinator {
	return s.coordinator
}
