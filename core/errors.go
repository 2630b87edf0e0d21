package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	PaymentErrorBadInput               = "PAYMENT_BAD_INPUT"
	PaymentErrorNotFound               = "PAYMENT_NOT_FOUND"
	PaymentErrorInvalidTransition      = "PAYMENT_INVALID_TRANSITION"
	PaymentErrorConcurrentModification = "PAYMENT_CONCURRENT_MODIFICATION"
	PaymentErrorDuplicateInvoice       = "PAYMENT_DUPLICATE_INVOICE_NUMBER"
	PaymentErrorRefundExceedsAmount    = "PAYMENT_REFUND_EXCEEDS_AMOUNT"
	PaymentErrorRefundAlreadyCompleted = "PAYMENT_REFUND_ALREADY_COMPLETED"
	PaymentErrorEventNotReplayable     = "PAYMENT_EVENT_NOT_REPLAYABLE"
	PaymentErrorDeliveryThrottled      = "PAYMENT_DELIVERY_THROTTLED"
	PaymentErrorInternal               = "PAYMENT_INTERNAL_ERROR"
)

func paymentErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensurePaymentErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, ErrInvoiceNotFound),
		errors.Is(err, ErrRefundNotFound),
		errors.Is(err, ErrEndpointNotFound),
		errors.Is(err, ErrEventNotFound):
		return newPaymentError(err.Error(), goerrors.CategoryNotFound, PaymentErrorNotFound)
	case errors.Is(err, ErrInvalidTransition):
		return newPaymentError(err.Error(), goerrors.CategoryConflict, PaymentErrorInvalidTransition)
	case errors.Is(err, ErrConcurrentModification):
		return newPaymentError(err.Error(), goerrors.CategoryConflict, PaymentErrorConcurrentModification)
	case errors.Is(err, ErrDuplicateInvoiceNumber):
		return newPaymentError(err.Error(), goerrors.CategoryConflict, PaymentErrorDuplicateInvoice)
	case errors.Is(err, ErrRefundExceedsAmount):
		return newPaymentError(err.Error(), goerrors.CategoryBadInput, PaymentErrorRefundExceedsAmount)
	case errors.Is(err, ErrRefundAlreadyCompleted):
		return newPaymentError(err.Error(), goerrors.CategoryConflict, PaymentErrorRefundAlreadyCompleted)
	case errors.Is(err, ErrEventNotReplayable):
		return newPaymentError(err.Error(), goerrors.CategoryConflict, PaymentErrorEventNotReplayable)
	case errors.Is(err, ErrTxHashImmutable):
		return newPaymentError(err.Error(), goerrors.CategoryBadInput, PaymentErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newPaymentError(err.Error(), goerrors.CategoryBadInput, PaymentErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensurePaymentErrorEnvelope(mapped)
}

func newPaymentError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensurePaymentErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensurePaymentErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = paymentHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultPaymentTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultPaymentTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return PaymentErrorBadInput
	case goerrors.CategoryNotFound:
		return PaymentErrorNotFound
	case goerrors.CategoryConflict:
		return PaymentErrorConcurrentModification
	default:
		return PaymentErrorInternal
	}
}

func paymentHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
