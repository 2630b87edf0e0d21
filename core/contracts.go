package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/shopspring/decimal"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// EventDraft is a webhook event ready to be persisted alongside the state
// change that produced it. Payload is the frozen entity snapshot; the
// envelope is built at dispatch time.
type EventDraft struct {
	EndpointID     string
	EventType      string
	IdempotencyKey string
	Payload        []byte
}

type CreatePaymentInput struct {
	// ID is assigned by the service before the insert so creation event
	// drafts can reference the payment. Stores must honor it when set.
	ID                 string
	MerchantRef        string
	Amount             decimal.Decimal
	Currency           string
	PayerAddress       string
	MerchantAddress    string
	SettlementDuration time.Duration
	ExpiresAt          *time.Time
}

type ApplyPaymentTransitionInput struct {
	PaymentID       string
	From            PaymentStatus
	To              PaymentStatus
	ExpectedVersion int
	TxHash          string
	Events          []EventDraft
}

type PaymentStore interface {
	Create(ctx context.Context, in CreatePaymentInput, events []EventDraft) (Payment, error)
	Get(ctx context.Context, id string) (Payment, error)
	ListByMerchant(ctx context.Context, merchantRef string, limit int) ([]Payment, error)
	// ApplyTransition commits the status change, version bump, and event
	// drafts in one transaction. Returns ErrConcurrentModification when the
	// payment moved under the caller.
	ApplyTransition(ctx context.Context, in ApplyPaymentTransitionInput) (Payment, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Payment, error)
}

type CreateInvoiceInput struct {
	// ID is assigned by the service before the insert, mirroring
	// CreatePaymentInput.ID.
	ID            string
	MerchantRef   string
	Number        string
	PaymentID     string
	Amount        decimal.Decimal
	Currency      string
	CustomerName  string
	CustomerEmail string
	DueDate       *time.Time
}

type ApplyInvoiceTransitionInput struct {
	InvoiceID       string
	From            InvoiceStatus
	To              InvoiceStatus
	ExpectedVersion int
	Events          []EventDraft
}

type InvoiceStore interface {
	Create(ctx context.Context, in CreateInvoiceInput, events []EventDraft) (Invoice, error)
	Get(ctx context.Context, id string) (Invoice, error)
	GetByNumber(ctx context.Context, merchantRef string, number string) (Invoice, error)
	ApplyTransition(ctx context.Context, in ApplyInvoiceTransitionInput) (Invoice, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]Invoice, error)
}

type CreateRefundInput struct {
	PaymentID   string
	MerchantRef string
	Amount      decimal.Decimal
	Currency    string
	Reason      string
}

type CompleteRefundInput struct {
	RefundID       string
	TxHash         string
	PaymentID      string
	PaymentVersion int
	Events         []EventDraft
}

type RefundStore interface {
	Create(ctx context.Context, in CreateRefundInput) (Refund, error)
	Get(ctx context.Context, id string) (Refund, error)
	ListByPayment(ctx context.Context, paymentID string) ([]Refund, error)
	UpdateStatus(ctx context.Context, id string, from, to RefundStatus) (Refund, error)
	// Complete atomically marks the refund completed and moves the payment
	// to refunded, emitting the payment.refunded events in the same
	// transaction. At most one completed refund per payment.
	Complete(ctx context.Context, in CompleteRefundInput) (Refund, error)
}

type CreateEndpointInput struct {
	MerchantRef string
	URL         string
	Secret      string
	EventTypes  []string
}

type EndpointStore interface {
	Create(ctx context.Context, in CreateEndpointInput) (WebhookEndpoint, error)
	Get(ctx context.Context, id string) (WebhookEndpoint, error)
	ListByMerchant(ctx context.Context, merchantRef string) ([]WebhookEndpoint, error)
	ListActiveByEventType(ctx context.Context, merchantRef string, eventType string) ([]WebhookEndpoint, error)
	SetActive(ctx context.Context, id string, active bool) error
	// RecordDeliveryFailure bumps the consecutive failure streak and
	// deactivates the endpoint once the streak reaches deactivateAfter
	// (0 disables auto-deactivation). Returns the updated endpoint.
	RecordDeliveryFailure(ctx context.Context, id string, deactivateAfter int) (WebhookEndpoint, error)
	ResetFailureStreak(ctx context.Context, id string) error
}

// AttemptOutcome records the result of one delivery attempt. NextAttemptAt
// is set only for retryable failures; a failed outcome with a nil
// NextAttemptAt is terminal.
type AttemptOutcome struct {
	Status        EventStatus
	ResponseCode  int
	ResponseBody  string
	Error         string
	NextAttemptAt *time.Time
	AttemptedAt   time.Time
}

type EventStore interface {
	// CreateEvent persists the draft, returning created=false when an
	// event with the same idempotency key already exists.
	CreateEvent(ctx context.Context, draft EventDraft) (WebhookEvent, bool, error)
	Get(ctx context.Context, id string) (WebhookEvent, error)
	// ClaimNextDeliverable claims up to limit per-endpoint queue heads that
	// are due: pending, failed with an elapsed retry schedule, or inflight
	// past the visibility timeout. Claiming only heads keeps delivery FIFO
	// per endpoint with at most one event in flight per endpoint.
	ClaimNextDeliverable(ctx context.Context, limit int, now time.Time, visibility time.Duration) ([]WebhookEvent, error)
	RecordAttempt(ctx context.Context, eventID string, outcome AttemptOutcome) error
	// Release returns a claimed event to pending without consuming an
	// attempt, used on dispatcher shutdown.
	Release(ctx context.Context, eventID string) error
	// Replay resets a terminally failed event for redelivery. Operator
	// surface only; delivered events are never replayed here.
	Replay(ctx context.Context, eventID string) (WebhookEvent, error)
	ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]WebhookEvent, error)
}

type StoreProvider interface {
	PaymentStore() PaymentStore
	InvoiceStore() InvoiceStore
	RefundStore() RefundStore
	EndpointStore() EndpointStore
	EventStore() EventStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// ProofRecorder is the boundary to the on-chain proof collaborator. The
// lifecycle never blocks on it; RecordProof runs fire-and-forget after a
// confirmed transition commits.
type ProofRecorder interface {
	IsEligible(payment Payment) bool
	RecordProof(ctx context.Context, payment Payment) (ProofReference, error)
}

type WebhookSigner interface {
	Sign(secret string, payload []byte) (string, error)
	Verify(secret string, payload []byte, signature string) bool
}

type DispatchStats struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
	// Throttled counts claimed events released back without an attempt
	// because the endpoint's delivery bucket was closed.
	Throttled int
}

type EventDispatcher interface {
	DispatchPending(ctx context.Context, batchSize int) (DispatchStats, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
