package query

import (
	"strings"
)

const (
	TypeGetPayment         = "payments.query.payment.get"
	TypeListPayments       = "payments.query.payment.list"
	TypeGetInvoice         = "payments.query.invoice.get"
	TypeGetInvoiceByNumber = "payments.query.invoice.get_by_number"
	TypeGetRefund          = "payments.query.refund.get"
	TypeListRefunds        = "payments.query.refund.list"
	TypeGetEndpoint        = "payments.query.endpoint.get"
	TypeListEndpoints      = "payments.query.endpoint.list"
	TypeGetEvent           = "payments.query.event.get"
	TypeListEvents         = "payments.query.event.list"
)

type GetPaymentMessage struct {
	PaymentID string
}

func (GetPaymentMessage) Type() string { return TypeGetPayment }

func (m GetPaymentMessage) Validate() error {
	if strings.TrimSpace(m.PaymentID) == "" {
		return queryValidationError("paymentId", "payment id is required")
	}
	return nil
}

type ListPaymentsMessage struct {
	MerchantRef string
	Limit       int
}

func (ListPaymentsMessage) Type() string { return TypeListPayments }

func (m ListPaymentsMessage) Validate() error {
	if strings.TrimSpace(m.MerchantRef) == "" {
		return queryValidationError("merchantRef", "merchant ref is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

type GetInvoiceMessage struct {
	InvoiceID string
}

func (GetInvoiceMessage) Type() string { return TypeGetInvoice }

func (m GetInvoiceMessage) Validate() error {
	if strings.TrimSpace(m.InvoiceID) == "" {
		return queryValidationError("invoiceId", "invoice id is required")
	}
	return nil
}

type GetInvoiceByNumberMessage struct {
	MerchantRef string
	Number      string
}

func (GetInvoiceByNumberMessage) Type() string { return TypeGetInvoiceByNumber }

func (m GetInvoiceByNumberMessage) Validate() error {
	if strings.TrimSpace(m.MerchantRef) == "" {
		return queryValidationError("merchantRef", "merchant ref is required")
	}
	if strings.TrimSpace(m.Number) == "" {
		return queryValidationError("number", "invoice number is required")
	}
	return nil
}

type GetRefundMessage struct {
	RefundID string
}

func (GetRefundMessage) Type() string { return TypeGetRefund }

func (m GetRefundMessage) Validate() error {
	if strings.TrimSpace(m.RefundID) == "" {
		return queryValidationError("refundId", "refund id is required")
	}
	return nil
}

type ListRefundsMessage struct {
	PaymentID string
}

func (ListRefundsMessage) Type() string { return TypeListRefunds }

func (m ListRefundsMessage) Validate() error {
	if strings.TrimSpace(m.PaymentID) == "" {
		return queryValidationError("paymentId", "payment id is required")
	}
	return nil
}

type GetEndpointMessage struct {
	EndpointID string
}

func (GetEndpointMessage) Type() string { return TypeGetEndpoint }

func (m GetEndpointMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return queryValidationError("endpointId", "endpoint id is required")
	}
	return nil
}

type ListEndpointsMessage struct {
	MerchantRef string
}

func (ListEndpointsMessage) Type() string { return TypeListEndpoints }

func (m ListEndpointsMessage) Validate() error {
	if strings.TrimSpace(m.MerchantRef) == "" {
		return queryValidationError("merchantRef", "merchant ref is required")
	}
	return nil
}

type GetEventMessage struct {
	EventID string
}

func (GetEventMessage) Type() string { return TypeGetEvent }

func (m GetEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return queryValidationError("eventId", "event id is required")
	}
	return nil
}

type ListEventsMessage struct {
	EndpointID string
	Limit      int
}

func (ListEventsMessage) Type() string { return TypeListEvents }

func (m ListEventsMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return queryValidationError("endpointId", "endpoint id is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
