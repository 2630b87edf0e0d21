package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound        = errors.New("core: payment not found")
	ErrInvoiceNotFound        = errors.New("core: invoice not found")
	ErrRefundNotFound         = errors.New("core: refund not found")
	ErrEndpointNotFound       = errors.New("core: webhook endpoint not found")
	ErrEventNotFound          = errors.New("core: webhook event not found")
	ErrInvalidTransition      = errors.New("core: invalid status transition")
	ErrConcurrentModification = errors.New("core: concurrent modification")
	ErrDuplicateInvoiceNumber = errors.New("core: duplicate invoice number")
	ErrRefundExceedsAmount    = errors.New("core: refund exceeds payment amount")
	ErrRefundAlreadyCompleted = errors.New("core: payment already has a completed refund")
	ErrEventNotReplayable     = errors.New("core: event is not replayable")
	ErrTxHashImmutable        = errors.New("core: transaction hash is already set")
)

type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "created"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusExpired   PaymentStatus = "expired"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusInflight  EventStatus = "inflight"
	EventStatusDelivered EventStatus = "delivered"
	EventStatusFailed    EventStatus = "failed"
)

const (
	EventTypePaymentCreated   = "payment.created"
	EventTypePaymentConfirmed = "payment.confirmed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypePaymentRefunded  = "payment.refunded"
	EventTypeInvoiceCreated   = "invoice.created"
	EventTypeInvoicePaid      = "invoice.paid"
)

// KnownEventTypes lists every event type an endpoint may subscribe to.
func KnownEventTypes() []string {
	return []string{
		EventTypePaymentCreated,
		EventTypePaymentConfirmed,
		EventTypePaymentFailed,
		EventTypePaymentRefunded,
		EventTypeInvoiceCreated,
		EventTypeInvoicePaid,
	}
}

func IsKnownEventType(eventType string) bool {
	trimmed := strings.TrimSpace(eventType)
	for _, known := range KnownEventTypes() {
		if trimmed == known {
			return true
		}
	}
	return false
}

// EventTypeForPaymentStatus returns the webhook event type emitted when a
// payment enters the given status, or "" when the status is silent.
func EventTypeForPaymentStatus(status PaymentStatus) string {
	switch status {
	case PaymentStatusCreated:
		return EventTypePaymentCreated
	case PaymentStatusConfirmed:
		return EventTypePaymentConfirmed
	case PaymentStatusFailed:
		return EventTypePaymentFailed
	case PaymentStatusRefunded:
		return EventTypePaymentRefunded
	default:
		return ""
	}
}

// EventTypeForInvoiceStatus returns the webhook event type emitted when an
// invoice enters the given status, or "" when the status is silent.
func EventTypeForInvoiceStatus(status InvoiceStatus) string {
	switch status {
	case InvoiceStatusDraft:
		return EventTypeInvoiceCreated
	case InvoiceStatusPaid:
		return EventTypeInvoicePaid
	default:
		return ""
	}
}

type Payment struct {
	ID                 string
	MerchantRef        string
	Amount             decimal.Decimal
	Currency           string
	Status             PaymentStatus
	PayerAddress       string
	MerchantAddress    string
	TxHash             string
	SettlementDuration time.Duration
	ExpiresAt          *time.Time
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusExpired:
		return true
	default:
		return false
	}
}

type Invoice struct {
	ID            string
	MerchantRef   string
	Number        string
	PaymentID     string
	Amount        decimal.Decimal
	Currency      string
	Status        InvoiceStatus
	CustomerName  string
	CustomerEmail string
	DueDate       *time.Time
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Refund struct {
	ID          string
	PaymentID   string
	MerchantRef string
	Amount      decimal.Decimal
	Currency    string
	Status      RefundStatus
	TxHash      string
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WebhookEndpoint struct {
	ID                  string
	MerchantRef         string
	URL                 string
	Secret              string
	EventTypes          []string
	Active              bool
	ConsecutiveFailures int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SubscribesTo reports whether the endpoint opted into the event type. An
// empty subscription list means the endpoint receives everything.
func (e WebhookEndpoint) SubscribesTo(eventType string) bool {
	if len(e.EventTypes) == 0 {
		return true
	}
	trimmed := strings.TrimSpace(eventType)
	for _, subscribed := range e.EventTypes {
		if strings.TrimSpace(subscribed) == trimmed {
			return true
		}
	}
	return false
}

type WebhookEvent struct {
	ID             string
	EndpointID     string
	EventType      string
	IdempotencyKey string
	Payload        []byte
	Status         EventStatus
	Attempts       int
	LastAttemptAt  *time.Time
	NextAttemptAt  *time.Time
	ClaimedAt      *time.Time
	ResponseCode   int
	ResponseBody   string
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Retryable reports whether a failed event still has a scheduled retry.
// A failed event with no next attempt is terminal and only an operator
// replay can revive it.
func (e WebhookEvent) Retryable() bool {
	return e.Status == EventStatusFailed && e.NextAttemptAt != nil
}

func (e WebhookEvent) Terminal() bool {
	switch e.Status {
	case EventStatusDelivered:
		return true
	case EventStatusFailed:
		return e.NextAttemptAt == nil
	default:
		return false
	}
}

type ProofReference struct {
	TxHash     string
	ChainID    int64
	RecordedAt time.Time
}

func validCurrency(currency string) error {
	trimmed := strings.TrimSpace(currency)
	if len(trimmed) < 3 || len(trimmed) > 10 {
		return fmt.Errorf("core: currency %q is invalid", currency)
	}
	return nil
}
