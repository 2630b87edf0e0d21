package core

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the merchant payment lifecycle engine: payments, invoices,
// refunds, webhook endpoints, and the durable event log behind them.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper

	payments  PaymentStore
	invoices  InvoiceStore
	refunds   RefundStore
	endpoints EndpointStore
	events    EventStore

	signer        WebhookSigner
	proofRecorder ProofRecorder

	now func() time.Time
}

// Dependencies exposes the wired collaborators for composition layers that
// need to reuse them (dispatcher construction, command handlers).
type Dependencies struct {
	Config          Config
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	PaymentStore    PaymentStore
	InvoiceStore    InvoiceStore
	RefundStore     RefundStore
	EndpointStore   EndpointStore
	EventStore      EventStore
	Signer          WebhookSigner
	ProofRecorder   ProofRecorder
}

func NewService(ctx context.Context, runtime Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(runtime)
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	logger := glog.Ensure(builder.logger)
	if builder.loggerProvider != nil {
		if resolved := builder.loggerProvider.GetLogger("payments"); resolved != nil {
			logger = resolved
		}
	}

	defaults := DefaultConfig()
	loaded := defaults
	if builder.configProvider != nil {
		cfg, err := builder.configProvider.Load(ctx, defaults)
		if err != nil {
			return nil, fmt.Errorf("core: config load failed: %w", err)
		}
		loaded = cfg
	}

	resolved := loaded
	if builder.optionsResolver != nil {
		cfg, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
		if err != nil {
			return nil, fmt.Errorf("core: config resolve failed: %w", err)
		}
		resolved = cfg
	}
	if err := resolved.Validate(); err != nil {
		return nil, err
	}

	if err := wireStores(&builder); err != nil {
		return nil, err
	}
	if builder.paymentStore == nil || builder.invoiceStore == nil ||
		builder.refundStore == nil || builder.endpointStore == nil || builder.eventStore == nil {
		return nil, fmt.Errorf("core: payment, invoice, refund, endpoint, and event stores are required")
	}

	service := &Service{
		config:          resolved,
		logger:          logger,
		loggerProvider:  builder.loggerProvider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		payments:        builder.paymentStore,
		invoices:        builder.invoiceStore,
		refunds:         builder.refundStore,
		endpoints:       builder.endpointStore,
		events:          builder.eventStore,
		signer:          builder.signer,
		proofRecorder:   builder.proofRecorder,
		now:             builder.now,
	}
	if service.metricsRecorder == nil {
		service.metricsRecorder = NopMetricsRecorder{}
	}
	if service.errorFactory == nil {
		service.errorFactory = goerrors.New
	}
	if service.errorMapper == nil {
		service.errorMapper = defaultErrorMapper
	}
	if service.signer == nil {
		service.signer = HMACSigner{}
	}
	if service.now == nil {
		service.now = func() time.Time {
			return time.Now().UTC()
		}
	}
	return service, nil
}

// wireStores resolves stores from a repository factory when explicit store
// options were not supplied.
func wireStores(builder *serviceBuilder) error {
	if builder.repositoryFactory == nil {
		return nil
	}

	// RepositoryStoreFactory wins over StoreProvider: factories implementing
	// both still need BuildStores to bind the persistence client.
	var provider StoreProvider
	switch factory := builder.repositoryFactory.(type) {
	case RepositoryStoreFactory:
		built, err := factory.BuildStores(builder.persistenceClient)
		if err != nil {
			return fmt.Errorf("core: store factory failed: %w", err)
		}
		provider = built
	case StoreProvider:
		provider = factory
	default:
		return fmt.Errorf("core: unsupported repository factory %T", builder.repositoryFactory)
	}

	if builder.paymentStore == nil {
		builder.paymentStore = provider.PaymentStore()
	}
	if builder.invoiceStore == nil {
		builder.invoiceStore = provider.InvoiceStore()
	}
	if builder.refundStore == nil {
		builder.refundStore = provider.RefundStore()
	}
	if builder.endpointStore == nil {
		builder.endpointStore = provider.EndpointStore()
	}
	if builder.eventStore == nil {
		builder.eventStore = provider.EventStore()
	}
	return nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() Dependencies {
	if s == nil {
		return Dependencies{}
	}
	return Dependencies{
		Config:          s.config,
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		PaymentStore:    s.payments,
		InvoiceStore:    s.invoices,
		RefundStore:     s.refunds,
		EndpointStore:   s.endpoints,
		EventStore:      s.events,
		Signer:          s.signer,
		ProofRecorder:   s.proofRecorder,
	}
}

// NewDispatcher builds a webhook dispatcher over the service's stores with
// the header names the service resolved from configuration. Extra options
// are applied after the service defaults, so callers can add a throttle or
// replace the HTTP client.
func (s *Service) NewDispatcher(config WebhookDispatcherConfig, options ...DispatcherOption) (*WebhookDispatcher, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is not configured")
	}
	if config.SignatureHeader == "" {
		config.SignatureHeader = s.config.Webhooks.SignatureHeader
	}
	if config.EventIDHeader == "" {
		config.EventIDHeader = s.config.Webhooks.EventIDHeader
	}
	if config.FailureLimit == 0 {
		config.FailureLimit = s.config.Webhooks.FailureLimit
	}
	dispatcherOptions := append([]DispatcherOption{
		WithDispatcherLogger(s.logger),
		WithDispatcherClock(s.now),
	}, options...)
	return NewWebhookDispatcher(s.events, s.endpoints, s.signer, config, dispatcherOptions...)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return paymentErrorMapper(err)
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}
