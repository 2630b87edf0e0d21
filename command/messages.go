package command

import (
	"strings"

	"github.com/goliatone/go-payments/core"
)

const (
	TypeCreatePayment     = "payments.command.payment.create"
	TypeTransitionPayment = "payments.command.payment.transition"
	TypeCreateInvoice     = "payments.command.invoice.create"
	TypeTransitionInvoice = "payments.command.invoice.transition"
	TypeMarkInvoicePaid   = "payments.command.invoice.mark_paid"
	TypeCreateRefund      = "payments.command.refund.create"
	TypeStartRefund       = "payments.command.refund.start"
	TypeFailRefund        = "payments.command.refund.fail"
	TypeCompleteRefund    = "payments.command.refund.complete"
	TypeRegisterEndpoint  = "payments.command.endpoint.register"
	TypeSetEndpointActive = "payments.command.endpoint.set_active"
	TypeReplayEvent       = "payments.command.event.replay"
)

type CreatePaymentMessage struct {
	Input core.CreatePaymentInput
}

func (CreatePaymentMessage) Type() string { return TypeCreatePayment }

func (m CreatePaymentMessage) Validate() error {
	if strings.TrimSpace(m.Input.MerchantRef) == "" {
		return commandValidationError("merchantRef", "merchant ref is required")
	}
	if strings.TrimSpace(m.Input.Currency) == "" {
		return commandValidationError("currency", "currency is required")
	}
	if !m.Input.Amount.IsPositive() {
		return commandValidationError("amount", "amount must be positive")
	}
	return nil
}

type TransitionPaymentMessage struct {
	Input core.TransitionPaymentInput
}

func (TransitionPaymentMessage) Type() string { return TypeTransitionPayment }

func (m TransitionPaymentMessage) Validate() error {
	if strings.TrimSpace(m.Input.PaymentID) == "" {
		return commandValidationError("paymentId", "payment id is required")
	}
	if strings.TrimSpace(string(m.Input.To)) == "" {
		return commandValidationError("to", "target status is required")
	}
	return nil
}

type CreateInvoiceMessage struct {
	Input core.CreateInvoiceInput
}

func (CreateInvoiceMessage) Type() string { return TypeCreateInvoice }

func (m CreateInvoiceMessage) Validate() error {
	if strings.TrimSpace(m.Input.MerchantRef) == "" {
		return commandValidationError("merchantRef", "merchant ref is required")
	}
	if strings.TrimSpace(m.Input.Number) == "" {
		return commandValidationError("number", "invoice number is required")
	}
	if !m.Input.Amount.IsPositive() {
		return commandValidationError("amount", "amount must be positive")
	}
	return nil
}

type TransitionInvoiceMessage struct {
	Input core.TransitionInvoiceInput
}

func (TransitionInvoiceMessage) Type() string { return TypeTransitionInvoice }

func (m TransitionInvoiceMessage) Validate() error {
	if strings.TrimSpace(m.Input.InvoiceID) == "" {
		return commandValidationError("invoiceId", "invoice id is required")
	}
	if strings.TrimSpace(string(m.Input.To)) == "" {
		return commandValidationError("to", "target status is required")
	}
	return nil
}

type MarkInvoicePaidMessage struct {
	InvoiceID string
}

func (MarkInvoicePaidMessage) Type() string { return TypeMarkInvoicePaid }

func (m MarkInvoicePaidMessage) Validate() error {
	if strings.TrimSpace(m.InvoiceID) == "" {
		return commandValidationError("invoiceId", "invoice id is required")
	}
	return nil
}

type CreateRefundMessage struct {
	Input core.CreateRefundInput
}

func (CreateRefundMessage) Type() string { return TypeCreateRefund }

func (m CreateRefundMessage) Validate() error {
	if strings.TrimSpace(m.Input.PaymentID) == "" {
		return commandValidationError("paymentId", "payment id is required")
	}
	if !m.Input.Amount.IsPositive() {
		return commandValidationError("amount", "amount must be positive")
	}
	return nil
}

type StartRefundMessage struct {
	RefundID string
}

func (StartRefundMessage) Type() string { return TypeStartRefund }

func (m StartRefundMessage) Validate() error {
	if strings.TrimSpace(m.RefundID) == "" {
		return commandValidationError("refundId", "refund id is required")
	}
	return nil
}

type FailRefundMessage struct {
	Input core.FailRefundInput
}

func (FailRefundMessage) Type() string { return TypeFailRefund }

func (m FailRefundMessage) Validate() error {
	if strings.TrimSpace(m.Input.RefundID) == "" {
		return commandValidationError("refundId", "refund id is required")
	}
	return nil
}

type CompleteRefundMessage struct {
	Request core.CompleteRefundRequest
}

func (CompleteRefundMessage) Type() string { return TypeCompleteRefund }

func (m CompleteRefundMessage) Validate() error {
	if strings.TrimSpace(m.Request.RefundID) == "" {
		return commandValidationError("refundId", "refund id is required")
	}
	return nil
}

type RegisterEndpointMessage struct {
	Input core.CreateEndpointInput
}

func (RegisterEndpointMessage) Type() string { return TypeRegisterEndpoint }

func (m RegisterEndpointMessage) Validate() error {
	if strings.TrimSpace(m.Input.MerchantRef) == "" {
		return commandValidationError("merchantRef", "merchant ref is required")
	}
	if strings.TrimSpace(m.Input.URL) == "" {
		return commandValidationError("url", "endpoint url is required")
	}
	if strings.TrimSpace(m.Input.Secret) == "" {
		return commandValidationError("secret", "endpoint secret is required")
	}
	return nil
}

type SetEndpointActiveMessage struct {
	EndpointID string
	Active     bool
}

func (SetEndpointActiveMessage) Type() string { return TypeSetEndpointActive }

func (m SetEndpointActiveMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return commandValidationError("endpointId", "endpoint id is required")
	}
	return nil
}

type ReplayEventMessage struct {
	EventID string
}

func (ReplayEventMessage) Type() string { return TypeReplayEvent }

func (m ReplayEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return commandValidationError("eventId", "event id is required")
	}
	return nil
}
