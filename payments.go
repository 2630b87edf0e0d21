package payments

import (
	"context"

	"github.com/goliatone/go-payments/core"
)

type Config = core.Config

type WebhookConfig = core.WebhookConfig

type ProofConfig = core.ProofConfig

type Option = core.Option

type Service = core.Service

type Dependencies = core.Dependencies

type PaymentStore = core.PaymentStore
type InvoiceStore = core.InvoiceStore
type RefundStore = core.RefundStore
type EndpointStore = core.EndpointStore
type EventStore = core.EventStore
type WebhookSigner = core.WebhookSigner
type ProofRecorder = core.ProofRecorder
type MetricsRecorder = core.MetricsRecorder

type Payment = core.Payment
type Invoice = core.Invoice
type Refund = core.Refund
type WebhookEndpoint = core.WebhookEndpoint
type WebhookEvent = core.WebhookEvent

type CreatePaymentInput = core.CreatePaymentInput
type TransitionPaymentInput = core.TransitionPaymentInput
type CreateInvoiceInput = core.CreateInvoiceInput
type TransitionInvoiceInput = core.TransitionInvoiceInput
type CreateRefundInput = core.CreateRefundInput
type FailRefundInput = core.FailRefundInput
type CompleteRefundRequest = core.CompleteRefundRequest
type CreateEndpointInput = core.CreateEndpointInput

type WebhookDispatcher = core.WebhookDispatcher
type WebhookDispatcherConfig = core.WebhookDispatcherConfig

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithWebhookSigner     = core.WithWebhookSigner
	WithProofRecorder     = core.WithProofRecorder
	WithPaymentStore      = core.WithPaymentStore
	WithInvoiceStore      = core.WithInvoiceStore
	WithRefundStore       = core.WithRefundStore
	WithEndpointStore     = core.WithEndpointStore
	WithEventStore        = core.WithEventStore
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(ctx context.Context, runtime Config, opts ...Option) (*Service, error) {
	return core.NewService(ctx, runtime, opts...)
}
