package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreatePaymentMessage]     = (*CreatePaymentCommand)(nil)
	_ gocmd.Commander[TransitionPaymentMessage] = (*TransitionPaymentCommand)(nil)
	_ gocmd.Commander[CreateInvoiceMessage]     = (*CreateInvoiceCommand)(nil)
	_ gocmd.Commander[TransitionInvoiceMessage] = (*TransitionInvoiceCommand)(nil)
	_ gocmd.Commander[MarkInvoicePaidMessage]   = (*MarkInvoicePaidCommand)(nil)
	_ gocmd.Commander[CreateRefundMessage]      = (*CreateRefundCommand)(nil)
	_ gocmd.Commander[StartRefundMessage]       = (*StartRefundCommand)(nil)
	_ gocmd.Commander[FailRefundMessage]        = (*FailRefundCommand)(nil)
	_ gocmd.Commander[CompleteRefundMessage]    = (*CompleteRefundCommand)(nil)
	_ gocmd.Commander[RegisterEndpointMessage]  = (*RegisterEndpointCommand)(nil)
	_ gocmd.Commander[SetEndpointActiveMessage] = (*SetEndpointActiveCommand)(nil)
	_ gocmd.Commander[ReplayEventMessage]       = (*ReplayEventCommand)(nil)
)
