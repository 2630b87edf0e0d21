package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// In-memory stores used across the service and dispatcher tests. They keep
// the same invariants as the SQL stores: optimistic versioning, idempotent
// event creation, per-endpoint FIFO claiming.

type stubPaymentStore struct {
	mu       sync.Mutex
	payments map[string]Payment
	events   *stubEventStore
	nextID   int
}

func newStubPaymentStore(events *stubEventStore) *stubPaymentStore {
	return &stubPaymentStore{payments: map[string]Payment{}, events: events}
}

func (s *stubPaymentStore) Create(ctx context.Context, in CreatePaymentInput, events []EventDraft) (Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	id := in.ID
	if id == "" {
		id = fmt.Sprintf("pay-%d", s.nextID)
	}
	payment := Payment{
		ID:                 id,
		MerchantRef:        in.MerchantRef,
		Amount:             in.Amount,
		Currency:           in.Currency,
		Status:             PaymentStatusCreated,
		PayerAddress:       in.PayerAddress,
		MerchantAddress:    in.MerchantAddress,
		SettlementDuration: in.SettlementDuration,
		ExpiresAt:          in.ExpiresAt,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.payments[payment.ID] = payment
	s.persistEvents(ctx, events)
	return payment, nil
}

func (s *stubPaymentStore) Get(ctx context.Context, id string) (Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[id]
	if !ok {
		return Payment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
	}
	return payment, nil
}

func (s *stubPaymentStore) ListByMerchant(ctx context.Context, merchantRef string, limit int) ([]Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Payment
	for _, payment := range s.payments {
		if payment.MerchantRef == merchantRef {
			out = append(out, payment)
		}
	}
	return out, nil
}

func (s *stubPaymentStore) ApplyTransition(ctx context.Context, in ApplyPaymentTransitionInput) (Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[in.PaymentID]
	if !ok {
		return Payment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, in.PaymentID)
	}
	if payment.Version != in.ExpectedVersion || payment.Status != in.From {
		return Payment{}, fmt.Errorf("%w: payment %s", ErrConcurrentModification, in.PaymentID)
	}
	payment.Status = in.To
	if in.TxHash != "" {
		payment.TxHash = in.TxHash
	}
	payment.Version++
	payment.UpdatedAt = time.Now().UTC()
	s.payments[in.PaymentID] = payment
	s.persistEvents(ctx, in.Events)
	return payment, nil
}

func (s *stubPaymentStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Payment
	for _, payment := range s.payments {
		if payment.IsTerminal() || payment.Status == PaymentStatusConfirmed {
			continue
		}
		if payment.ExpiresAt != nil && !payment.ExpiresAt.After(now) {
			out = append(out, payment)
		}
	}
	return out, nil
}

func (s *stubPaymentStore) persistEvents(ctx context.Context, drafts []EventDraft) {
	if s.events == nil {
		return
	}
	for _, draft := range drafts {
		_, _, _ = s.events.CreateEvent(ctx, draft)
	}
}

type stubInvoiceStore struct {
	mu       sync.Mutex
	invoices map[string]Invoice
	events   *stubEventStore
	nextID   int
}

func newStubInvoiceStore(events *stubEventStore) *stubInvoiceStore {
	return &stubInvoiceStore{invoices: map[string]Invoice{}, events: events}
}

func (s *stubInvoiceStore) Create(ctx context.Context, in CreateInvoiceInput, events []EventDraft) (Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.invoices {
		if existing.MerchantRef == in.MerchantRef && existing.Number == in.Number {
			return Invoice{}, fmt.Errorf("%w: %s", ErrDuplicateInvoiceNumber, in.Number)
		}
	}
	s.nextID++
	now := time.Now().UTC()
	id := in.ID
	if id == "" {
		id = fmt.Sprintf("inv-%d", s.nextID)
	}
	invoice := Invoice{
		ID:            id,
		MerchantRef:   in.MerchantRef,
		Number:        in.Number,
		PaymentID:     in.PaymentID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Status:        InvoiceStatusDraft,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		DueDate:       in.DueDate,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.invoices[invoice.ID] = invoice
	if s.events != nil {
		for _, draft := range events {
			_, _, _ = s.events.CreateEvent(ctx, draft)
		}
	}
	return invoice, nil
}

func (s *stubInvoiceStore) Get(ctx context.Context, id string) (Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invoice, ok := s.invoices[id]
	if !ok {
		return Invoice{}, fmt.Errorf("%w: %s", ErrInvoiceNotFound, id)
	}
	return invoice, nil
}

func (s *stubInvoiceStore) GetByNumber(ctx context.Context, merchantRef string, number string) (Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, invoice := range s.invoices {
		if invoice.MerchantRef == merchantRef && invoice.Number == number {
			return invoice, nil
		}
	}
	return Invoice{}, fmt.Errorf("%w: %s", ErrInvoiceNotFound, number)
}

func (s *stubInvoiceStore) ApplyTransition(ctx context.Context, in ApplyInvoiceTransitionInput) (Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invoice, ok := s.invoices[in.InvoiceID]
	if !ok {
		return Invoice{}, fmt.Errorf("%w: %s", ErrInvoiceNotFound, in.InvoiceID)
	}
	if invoice.Version != in.ExpectedVersion || invoice.Status != in.From {
		return Invoice{}, fmt.Errorf("%w: invoice %s", ErrConcurrentModification, in.InvoiceID)
	}
	invoice.Status = in.To
	invoice.Version++
	invoice.UpdatedAt = time.Now().UTC()
	s.invoices[in.InvoiceID] = invoice
	if s.events != nil {
		for _, draft := range in.Events {
			_, _, _ = s.events.CreateEvent(ctx, draft)
		}
	}
	return invoice, nil
}

func (s *stubInvoiceStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Invoice
	for _, invoice := range s.invoices {
		if invoice.Status != InvoiceStatusSent {
			continue
		}
		if invoice.DueDate != nil && !invoice.DueDate.After(now) {
			out = append(out, invoice)
		}
	}
	return out, nil
}

type stubRefundStore struct {
	mu       sync.Mutex
	refunds  map[string]Refund
	payments *stubPaymentStore
	nextID   int
}

func newStubRefundStore(payments *stubPaymentStore) *stubRefundStore {
	return &stubRefundStore{refunds: map[string]Refund{}, payments: payments}
}

func (s *stubRefundStore) Create(ctx context.Context, in CreateRefundInput) (Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	refund := Refund{
		ID:          fmt.Sprintf("ref-%d", s.nextID),
		PaymentID:   in.PaymentID,
		MerchantRef: in.MerchantRef,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Status:      RefundStatusPending,
		Reason:      in.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.refunds[refund.ID] = refund
	return refund, nil
}

func (s *stubRefundStore) Get(ctx context.Context, id string) (Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	refund, ok := s.refunds[id]
	if !ok {
		return Refund{}, fmt.Errorf("%w: %s", ErrRefundNotFound, id)
	}
	return refund, nil
}

func (s *stubRefundStore) ListByPayment(ctx context.Context, paymentID string) ([]Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Refund
	for _, refund := range s.refunds {
		if refund.PaymentID == paymentID {
			out = append(out, refund)
		}
	}
	return out, nil
}

func (s *stubRefundStore) UpdateStatus(ctx context.Context, id string, from, to RefundStatus) (Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	refund, ok := s.refunds[id]
	if !ok {
		return Refund{}, fmt.Errorf("%w: %s", ErrRefundNotFound, id)
	}
	if refund.Status != from {
		return Refund{}, fmt.Errorf("%w: refund %s", ErrConcurrentModification, id)
	}
	refund.Status = to
	refund.UpdatedAt = time.Now().UTC()
	s.refunds[id] = refund
	return refund, nil
}

func (s *stubRefundStore) Complete(ctx context.Context, in CompleteRefundInput) (Refund, error) {
	s.mu.Lock()
	refund, ok := s.refunds[in.RefundID]
	if !ok {
		s.mu.Unlock()
		return Refund{}, fmt.Errorf("%w: %s", ErrRefundNotFound, in.RefundID)
	}
	for _, other := range s.refunds {
		if other.PaymentID == in.PaymentID && other.Status == RefundStatusCompleted {
			s.mu.Unlock()
			return Refund{}, fmt.Errorf("%w: payment %s", ErrRefundAlreadyCompleted, in.PaymentID)
		}
	}
	refund.Status = RefundStatusCompleted
	refund.TxHash = in.TxHash
	refund.UpdatedAt = time.Now().UTC()
	s.refunds[in.RefundID] = refund
	s.mu.Unlock()

	if s.payments != nil {
		if _, err := s.payments.ApplyTransition(ctx, ApplyPaymentTransitionInput{
			PaymentID:       in.PaymentID,
			From:            PaymentStatusConfirmed,
			To:              PaymentStatusRefunded,
			ExpectedVersion: in.PaymentVersion,
			Events:          in.Events,
		}); err != nil {
			return Refund{}, err
		}
	}
	return refund, nil
}

type stubEndpointStore struct {
	mu        sync.Mutex
	endpoints map[string]WebhookEndpoint
	nextID    int
}

func newStubEndpointStore() *stubEndpointStore {
	return &stubEndpointStore{endpoints: map[string]WebhookEndpoint{}}
}

func (s *stubEndpointStore) Create(ctx context.Context, in CreateEndpointInput) (WebhookEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	endpoint := WebhookEndpoint{
		ID:          fmt.Sprintf("ep-%d", s.nextID),
		MerchantRef: in.MerchantRef,
		URL:         in.URL,
		Secret:      in.Secret,
		EventTypes:  in.EventTypes,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.endpoints[endpoint.ID] = endpoint
	return endpoint, nil
}

func (s *stubEndpointStore) Get(ctx context.Context, id string) (WebhookEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	endpoint, ok := s.endpoints[id]
	if !ok {
		return WebhookEndpoint{}, fmt.Errorf("%w: %s", ErrEndpointNotFound, id)
	}
	return endpoint, nil
}

func (s *stubEndpointStore) ListByMerchant(ctx context.Context, merchantRef string) ([]WebhookEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WebhookEndpoint
	for _, endpoint := range s.endpoints {
		if endpoint.MerchantRef == merchantRef {
			out = append(out, endpoint)
		}
	}
	return out, nil
}

func (s *stubEndpointStore) ListActiveByEventType(ctx context.Context, merchantRef string, eventType string) ([]WebhookEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WebhookEndpoint
	for _, endpoint := range s.endpoints {
		if endpoint.MerchantRef == merchantRef && endpoint.Active && endpoint.SubscribesTo(eventType) {
			out = append(out, endpoint)
		}
	}
	return out, nil
}

func (s *stubEndpointStore) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	endpoint, ok := s.endpoints[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEndpointNotFound, id)
	}
	endpoint.Active = active
	s.endpoints[id] = endpoint
	return nil
}

func (s *stubEndpointStore) RecordDeliveryFailure(ctx context.Context, id string, deactivateAfter int) (WebhookEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	endpoint, ok := s.endpoints[id]
	if !ok {
		return WebhookEndpoint{}, fmt.Errorf("%w: %s", ErrEndpointNotFound, id)
	}
	endpoint.ConsecutiveFailures++
	if deactivateAfter > 0 && endpoint.ConsecutiveFailures >= deactivateAfter {
		endpoint.Active = false
	}
	s.endpoints[id] = endpoint
	return endpoint, nil
}

func (s *stubEndpointStore) ResetFailureStreak(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	endpoint, ok := s.endpoints[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEndpointNotFound, id)
	}
	endpoint.ConsecutiveFailures = 0
	s.endpoints[id] = endpoint
	return nil
}

type stubEventStore struct {
	mu     sync.Mutex
	events map[string]WebhookEvent
	order  []string
	nextID int
}

func newStubEventStore() *stubEventStore {
	return &stubEventStore{events: map[string]WebhookEvent{}}
}

func (s *stubEventStore) CreateEvent(ctx context.Context, draft EventDraft) (WebhookEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if s.events[id].IdempotencyKey == draft.IdempotencyKey {
			return s.events[id], false, nil
		}
	}
	s.nextID++
	now := time.Now().UTC()
	event := WebhookEvent{
		ID:             fmt.Sprintf("evt-%d", s.nextID),
		EndpointID:     draft.EndpointID,
		EventType:      draft.EventType,
		IdempotencyKey: draft.IdempotencyKey,
		Payload:        draft.Payload,
		Status:         EventStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.events[event.ID] = event
	s.order = append(s.order, event.ID)
	return event, true, nil
}

func (s *stubEventStore) Get(ctx context.Context, id string) (WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return WebhookEvent{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return event, nil
}

func (s *stubEventStore) ClaimNextDeliverable(ctx context.Context, limit int, now time.Time, visibility time.Duration) ([]WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claimed := make([]WebhookEvent, 0, limit)
	seen := map[string]bool{}
	for _, id := range s.order {
		if len(claimed) >= limit {
			break
		}
		event := s.events[id]
		if event.Terminal() {
			continue
		}
		// Only the oldest non-terminal event per endpoint is claimable.
		if seen[event.EndpointID] {
			continue
		}
		seen[event.EndpointID] = true
		eligible := false
		switch event.Status {
		case EventStatusPending:
			eligible = true
		case EventStatusFailed:
			eligible = event.NextAttemptAt != nil && !event.NextAttemptAt.After(now)
		case EventStatusInflight:
			eligible = event.ClaimedAt != nil && !event.ClaimedAt.After(now.Add(-visibility))
		}
		if !eligible {
			continue
		}
		claimedAt := now
		event.Status = EventStatusInflight
		event.ClaimedAt = &claimedAt
		event.UpdatedAt = now
		s.events[id] = event
		claimed = append(claimed, event)
	}
	return claimed, nil
}

func (s *stubEventStore) RecordAttempt(ctx context.Context, eventID string, outcome AttemptOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	attemptedAt := outcome.AttemptedAt
	event.Attempts++
	event.Status = outcome.Status
	event.ResponseCode = outcome.ResponseCode
	event.ResponseBody = outcome.ResponseBody
	event.LastError = outcome.Error
	event.LastAttemptAt = &attemptedAt
	event.NextAttemptAt = outcome.NextAttemptAt
	event.ClaimedAt = nil
	event.UpdatedAt = attemptedAt
	s.events[eventID] = event
	return nil
}

func (s *stubEventStore) Release(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	event.Status = EventStatusPending
	event.ClaimedAt = nil
	s.events[eventID] = event
	return nil
}

func (s *stubEventStore) Replay(ctx context.Context, eventID string) (WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return WebhookEvent{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	if event.Status != EventStatusFailed || event.NextAttemptAt != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %s", ErrEventNotReplayable, eventID)
	}
	event.Status = EventStatusPending
	event.Attempts = 0
	event.NextAttemptAt = nil
	event.ClaimedAt = nil
	event.UpdatedAt = time.Now().UTC()
	s.events[eventID] = event
	return event, nil
}

func (s *stubEventStore) ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WebhookEvent
	for _, id := range s.order {
		if len(out) >= limit {
			break
		}
		if s.events[id].EndpointID == endpointID {
			out = append(out, s.events[id])
		}
	}
	return out, nil
}

var (
	_ PaymentStore  = (*stubPaymentStore)(nil)
	_ InvoiceStore  = (*stubInvoiceStore)(nil)
	_ RefundStore   = (*stubRefundStore)(nil)
	_ EndpointStore = (*stubEndpointStore)(nil)
	_ EventStore    = (*stubEventStore)(nil)
)
