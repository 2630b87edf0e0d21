package core

import "fmt"

var paymentTransitions = map[PaymentStatus]map[PaymentStatus]struct{}{
	PaymentStatusCreated: {
		PaymentStatusPending: {},
		PaymentStatusFailed:  {},
		PaymentStatusExpired: {},
	},
	PaymentStatusPending: {
		PaymentStatusConfirmed: {},
		PaymentStatusFailed:    {},
		PaymentStatusExpired:   {},
	},
	PaymentStatusConfirmed: {
		PaymentStatusRefunded: {},
	},
}

var invoiceTransitions = map[InvoiceStatus]map[InvoiceStatus]struct{}{
	InvoiceStatusDraft: {
		InvoiceStatusSent:      {},
		InvoiceStatusCancelled: {},
	},
	InvoiceStatusSent: {
		InvoiceStatusPaid:      {},
		InvoiceStatusOverdue:   {},
		InvoiceStatusCancelled: {},
	},
	InvoiceStatusOverdue: {
		InvoiceStatusPaid:      {},
		InvoiceStatusCancelled: {},
	},
}

var refundTransitions = map[RefundStatus]map[RefundStatus]struct{}{
	RefundStatusPending: {
		RefundStatusProcessing: {},
		RefundStatusCompleted:  {},
		RefundStatusFailed:     {},
	},
	RefundStatusProcessing: {
		RefundStatusCompleted: {},
		RefundStatusFailed:    {},
	},
}

func PaymentTransitionAllowed(from, to PaymentStatus) bool {
	_, ok := paymentTransitions[from][to]
	return ok
}

func ValidatePaymentTransition(from, to PaymentStatus) error {
	if !PaymentTransitionAllowed(from, to) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func InvoiceTransitionAllowed(from, to InvoiceStatus) bool {
	_, ok := invoiceTransitions[from][to]
	return ok
}

func ValidateInvoiceTransition(from, to InvoiceStatus) error {
	if !InvoiceTransitionAllowed(from, to) {
		return fmt.Errorf("%w: invoice %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func RefundTransitionAllowed(from, to RefundStatus) bool {
	_, ok := refundTransitions[from][to]
	return ok
}

func ValidateRefundTransition(from, to RefundStatus) error {
	if !RefundTransitionAllowed(from, to) {
		return fmt.Errorf("%w: refund %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
