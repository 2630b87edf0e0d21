package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payments/core"
)

var (
	_ gocmd.Querier[GetPaymentMessage, core.Payment]              = (*GetPaymentQuery)(nil)
	_ gocmd.Querier[ListPaymentsMessage, []core.Payment]          = (*ListPaymentsQuery)(nil)
	_ gocmd.Querier[GetInvoiceMessage, core.Invoice]              = (*GetInvoiceQuery)(nil)
	_ gocmd.Querier[GetInvoiceByNumberMessage, core.Invoice]      = (*GetInvoiceByNumberQuery)(nil)
	_ gocmd.Querier[GetRefundMessage, core.Refund]                = (*GetRefundQuery)(nil)
	_ gocmd.Querier[ListRefundsMessage, []core.Refund]            = (*ListRefundsQuery)(nil)
	_ gocmd.Querier[GetEndpointMessage, core.WebhookEndpoint]     = (*GetEndpointQuery)(nil)
	_ gocmd.Querier[ListEndpointsMessage, []core.WebhookEndpoint] = (*ListEndpointsQuery)(nil)
	_ gocmd.Querier[GetEventMessage, core.WebhookEvent]           = (*GetEventQuery)(nil)
	_ gocmd.Querier[ListEventsMessage, []core.WebhookEvent]       = (*ListEventsQuery)(nil)
)
