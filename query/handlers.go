package query

import (
	"context"

	"github.com/goliatone/go-payments/core"
)

type PaymentReader interface {
	GetPayment(ctx context.Context, id string) (core.Payment, error)
	ListPayments(ctx context.Context, merchantRef string, limit int) ([]core.Payment, error)
}

type InvoiceReader interface {
	GetInvoice(ctx context.Context, id string) (core.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, merchantRef string, number string) (core.Invoice, error)
}

type RefundReader interface {
	GetRefund(ctx context.Context, id string) (core.Refund, error)
	ListRefunds(ctx context.Context, paymentID string) ([]core.Refund, error)
}

type WebhookReader interface {
	GetEndpoint(ctx context.Context, id string) (core.WebhookEndpoint, error)
	ListEndpoints(ctx context.Context, merchantRef string) ([]core.WebhookEndpoint, error)
	GetEvent(ctx context.Context, eventID string) (core.WebhookEvent, error)
	ListEndpointEvents(ctx context.Context, endpointID string, limit int) ([]core.WebhookEvent, error)
}

type GetPaymentQuery struct {
	reader PaymentReader
}

func NewGetPaymentQuery(reader PaymentReader) *GetPaymentQuery {
	return &GetPaymentQuery{reader: reader}
}

func (q *GetPaymentQuery) Query(ctx context.Context, msg GetPaymentMessage) (core.Payment, error) {
	if q == nil || q.reader == nil {
		return core.Payment{}, queryDependencyError("query: payment reader is required")
	}
	return q.reader.GetPayment(ctx, msg.PaymentID)
}

type ListPaymentsQuery struct {
	reader PaymentReader
}

func NewListPaymentsQuery(reader PaymentReader) *ListPaymentsQuery {
	return &ListPaymentsQuery{reader: reader}
}

func (q *ListPaymentsQuery) Query(ctx context.Context, msg ListPaymentsMessage) ([]core.Payment, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: payment reader is required")
	}
	return q.reader.ListPayments(ctx, msg.MerchantRef, msg.Limit)
}

type GetInvoiceQuery struct {
	reader InvoiceReader
}

func NewGetInvoiceQuery(reader InvoiceReader) *GetInvoiceQuery {
	return &GetInvoiceQuery{reader: reader}
}

func (q *GetInvoiceQuery) Query(ctx context.Context, msg GetInvoiceMessage) (core.Invoice, error) {
	if q == nil || q.reader == nil {
		return core.Invoice{}, queryDependencyError("query: invoice reader is required")
	}
	return q.reader.GetInvoice(ctx, msg.InvoiceID)
}

type GetInvoiceByNumberQuery struct {
	reader InvoiceReader
}

func NewGetInvoiceByNumberQuery(reader InvoiceReader) *GetInvoiceByNumberQuery {
	return &GetInvoiceByNumberQuery{reader: reader}
}

func (q *GetInvoiceByNumberQuery) Query(ctx context.Context, msg GetInvoiceByNumberMessage) (core.Invoice, error) {
	if q == nil || q.reader == nil {
		return core.Invoice{}, queryDependencyError("query: invoice reader is required")
	}
	return q.reader.GetInvoiceByNumber(ctx, msg.MerchantRef, msg.Number)
}

type GetRefundQuery struct {
	reader RefundReader
}

func NewGetRefundQuery(reader RefundReader) *GetRefundQuery {
	return &GetRefundQuery{reader: reader}
}

func (q *GetRefundQuery) Query(ctx context.Context, msg GetRefundMessage) (core.Refund, error) {
	if q == nil || q.reader == nil {
		return core.Refund{}, queryDependencyError("query: refund reader is required")
	}
	return q.reader.GetRefund(ctx, msg.RefundID)
}

type ListRefundsQuery struct {
	reader RefundReader
}

func NewListRefundsQuery(reader RefundReader) *ListRefundsQuery {
	return &ListRefundsQuery{reader: reader}
}

func (q *ListRefundsQuery) Query(ctx context.Context, msg ListRefundsMessage) ([]core.Refund, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: refund reader is required")
	}
	return q.reader.ListRefunds(ctx, msg.PaymentID)
}

type GetEndpointQuery struct {
	reader WebhookReader
}

func NewGetEndpointQuery(reader WebhookReader) *GetEndpointQuery {
	return &GetEndpointQuery{reader: reader}
}

func (q *GetEndpointQuery) Query(ctx context.Context, msg GetEndpointMessage) (core.WebhookEndpoint, error) {
	if q == nil || q.reader == nil {
		return core.WebhookEndpoint{}, queryDependencyError("query: webhook reader is required")
	}
	return q.reader.GetEndpoint(ctx, msg.EndpointID)
}

type ListEndpointsQuery struct {
	reader WebhookReader
}

func NewListEndpointsQuery(reader WebhookReader) *ListEndpointsQuery {
	return &ListEndpointsQuery{reader: reader}
}

func (q *ListEndpointsQuery) Query(ctx context.Context, msg ListEndpointsMessage) ([]core.WebhookEndpoint, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: webhook reader is required")
	}
	return q.reader.ListEndpoints(ctx, msg.MerchantRef)
}

type GetEventQuery struct {
	reader WebhookReader
}

func NewGetEventQuery(reader WebhookReader) *GetEventQuery {
	return &GetEventQuery{reader: reader}
}

func (q *GetEventQuery) Query(ctx context.Context, msg GetEventMessage) (core.WebhookEvent, error) {
	if q == nil || q.reader == nil {
		return core.WebhookEvent{}, queryDependencyError("query: webhook reader is required")
	}
	return q.reader.GetEvent(ctx, msg.EventID)
}

type ListEventsQuery struct {
	reader WebhookReader
}

func NewListEventsQuery(reader WebhookReader) *ListEventsQuery {
	return &ListEventsQuery{reader: reader}
}

func (q *ListEventsQuery) Query(ctx context.Context, msg ListEventsMessage) ([]core.WebhookEvent, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: webhook reader is required")
	}
	return q.reader.ListEndpointEvents(ctx, msg.EndpointID, msg.Limit)
}
