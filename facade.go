package payments

import (
	"fmt"

	paymentscommand "github.com/goliatone/go-payments/command"
	paymentsquery "github.com/goliatone/go-payments/query"
)

// CommandQueryService is the surface the facade needs: every mutating
// operation plus the read paths the query handlers delegate to. The core
// service satisfies it directly.
type CommandQueryService interface {
	paymentscommand.MutatingService
	paymentsquery.PaymentReader
	paymentsquery.InvoiceReader
	paymentsquery.RefundReader
	paymentsquery.WebhookReader
}

type Commands struct {
	CreatePayment     *paymentscommand.CreatePaymentCommand
	TransitionPayment *paymentscommand.TransitionPaymentCommand
	CreateInvoice     *paymentscommand.CreateInvoiceCommand
	TransitionInvoice *paymentscommand.TransitionInvoiceCommand
	MarkInvoicePaid   *paymentscommand.MarkInvoicePaidCommand
	CreateRefund      *paymentscommand.CreateRefundCommand
	StartRefund       *paymentscommand.StartRefundCommand
	FailRefund        *paymentscommand.FailRefundCommand
	CompleteRefund    *paymentscommand.CompleteRefundCommand
	RegisterEndpoint  *paymentscommand.RegisterEndpointCommand
	SetEndpointActive *paymentscommand.SetEndpointActiveCommand
	ReplayEvent       *paymentscommand.ReplayEventCommand
}

type Queries struct {
	GetPayment         *paymentsquery.GetPaymentQuery
	ListPayments       *paymentsquery.ListPaymentsQuery
	GetInvoice         *paymentsquery.GetInvoiceQuery
	GetInvoiceByNumber *paymentsquery.GetInvoiceByNumberQuery
	GetRefund          *paymentsquery.GetRefundQuery
	ListRefunds        *paymentsquery.ListRefundsQuery
	GetEndpoint        *paymentsquery.GetEndpointQuery
	ListEndpoints      *paymentsquery.ListEndpointsQuery
	GetEvent           *paymentsquery.GetEventQuery
	ListEvents         *paymentsquery.ListEventsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	paymentReader paymentsquery.PaymentReader
	invoiceReader paymentsquery.InvoiceReader
	refundReader  paymentsquery.RefundReader
	webhookReader paymentsquery.WebhookReader
}

// WithPaymentReader routes payment read queries through an alternate reader,
// such as a cache-backed or replica-backed store.
func WithPaymentReader(reader paymentsquery.PaymentReader) FacadeOption {
	return func(options *facadeOptions) {
		options.paymentReader = reader
	}
}

func WithInvoiceReader(reader paymentsquery.InvoiceReader) FacadeOption {
	return func(options *facadeOptions) {
		options.invoiceReader = reader
	}
}

func WithRefundReader(reader paymentsquery.RefundReader) FacadeOption {
	return func(options *facadeOptions) {
		options.refundReader = reader
	}
}

func WithWebhookReader(reader paymentsquery.WebhookReader) FacadeOption {
	return func(options *facadeOptions) {
		options.webhookReader = reader
	}
}

// NewFacade wires command and query handlers over a single service so
// callers get one dispatch-ready handler per operation.
func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("payments: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	paymentReader := cfg.paymentReader
	if paymentReader == nil {
		paymentReader = service
	}
	invoiceReader := cfg.invoiceReader
	if invoiceReader == nil {
		invoiceReader = service
	}
	refundReader := cfg.refundReader
	if refundReader == nil {
		refundReader = service
	}
	webhookReader := cfg.webhookReader
	if webhookReader == nil {
		webhookReader = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreatePayment:     paymentscommand.NewCreatePaymentCommand(service),
		TransitionPayment: paymentscommand.NewTransitionPaymentCommand(service),
		CreateInvoice:     paymentscommand.NewCreateInvoiceCommand(service),
		TransitionInvoice: paymentscommand.NewTransitionInvoiceCommand(service),
		MarkInvoicePaid:   paymentscommand.NewMarkInvoicePaidCommand(service),
		CreateRefund:      paymentscommand.NewCreateRefundCommand(service),
		StartRefund:       paymentscommand.NewStartRefundCommand(service),
		FailRefund:        paymentscommand.NewFailRefundCommand(service),
		CompleteRefund:    paymentscommand.NewCompleteRefundCommand(service),
		RegisterEndpoint:  paymentscommand.NewRegisterEndpointCommand(service),
		SetEndpointActive: paymentscommand.NewSetEndpointActiveCommand(service),
		ReplayEvent:       paymentscommand.NewReplayEventCommand(service),
	}
	facade.queries = Queries{
		GetPayment:         paymentsquery.NewGetPaymentQuery(paymentReader),
		ListPayments:       paymentsquery.NewListPaymentsQuery(paymentReader),
		GetInvoice:         paymentsquery.NewGetInvoiceQuery(invoiceReader),
		GetInvoiceByNumber: paymentsquery.NewGetInvoiceByNumberQuery(invoiceReader),
		GetRefund:          paymentsquery.NewGetRefundQuery(refundReader),
		ListRefunds:        paymentsquery.NewListRefundsQuery(refundReader),
		GetEndpoint:        paymentsquery.NewGetEndpointQuery(webhookReader),
		ListEndpoints:      paymentsquery.NewListEndpointsQuery(webhookReader),
		GetEvent:           paymentsquery.NewGetEventQuery(webhookReader),
		ListEvents:         paymentsquery.NewListEventsQuery(webhookReader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
