package core

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/shopspring/decimal"
)

type testFixture struct {
	service   *Service
	payments  *stubPaymentStore
	invoices  *stubInvoiceStore
	refunds   *stubRefundStore
	endpoints *stubEndpointStore
	events    *stubEventStore
}

func newTestService(t *testing.T, options ...Option) *testFixture {
	t.Helper()
	events := newStubEventStore()
	payments := newStubPaymentStore(events)
	invoices := newStubInvoiceStore(events)
	refunds := newStubRefundStore(payments)
	endpoints := newStubEndpointStore()

	base := []Option{
		WithPaymentStore(payments),
		WithInvoiceStore(invoices),
		WithRefundStore(refunds),
		WithEndpointStore(endpoints),
		WithEventStore(events),
	}
	service, err := NewService(context.Background(), Config{}, append(base, options...)...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &testFixture{
		service:   service,
		payments:  payments,
		invoices:  invoices,
		refunds:   refunds,
		endpoints: endpoints,
		events:    events,
	}
}

func assertTextCode(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with text code %s, got nil", want)
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected mapped error, got %T: %v", err, err)
	}
	if richErr.TextCode != want {
		t.Fatalf("text code = %s, want %s (%v)", richErr.TextCode, want, err)
	}
}

func registerEndpoint(t *testing.T, fx *testFixture, merchantRef string, eventTypes ...string) WebhookEndpoint {
	t.Helper()
	endpoint, err := fx.service.RegisterEndpoint(context.Background(), CreateEndpointInput{
		MerchantRef: merchantRef,
		URL:         "https://hooks.example.com/payments",
		Secret:      "super-secret-signing-key",
		EventTypes:  eventTypes,
	})
	if err != nil {
		t.Fatalf("RegisterEndpoint: %v", err)
	}
	return endpoint
}

func createPayment(t *testing.T, fx *testFixture, merchantRef string) Payment {
	t.Helper()
	payment, err := fx.service.CreatePayment(context.Background(), CreatePaymentInput{
		MerchantRef: merchantRef,
		Amount:      decimal.NewFromInt(250),
		Currency:    "usd",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	return payment
}

func confirmPayment(t *testing.T, fx *testFixture, paymentID string, txHash string) Payment {
	t.Helper()
	ctx := context.Background()
	if _, err := fx.service.TransitionPayment(ctx, TransitionPaymentInput{PaymentID: paymentID, To: PaymentStatusPending}); err != nil {
		t.Fatalf("transition to pending: %v", err)
	}
	payment, err := fx.service.TransitionPayment(ctx, TransitionPaymentInput{
		PaymentID: paymentID,
		To:        PaymentStatusConfirmed,
		TxHash:    txHash,
	})
	if err != nil {
		t.Fatalf("transition to confirmed: %v", err)
	}
	return payment
}

func TestCreatePaymentValidation(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()

	_, err := fx.service.CreatePayment(ctx, CreatePaymentInput{
		Amount:   decimal.NewFromInt(10),
		Currency: "USD",
	})
	assertTextCode(t, err, PaymentErrorBadInput)

	_, err = fx.service.CreatePayment(ctx, CreatePaymentInput{
		MerchantRef: "merchant-1",
		Amount:      decimal.Zero,
		Currency:    "USD",
	})
	assertTextCode(t, err, PaymentErrorBadInput)

	_, err = fx.service.CreatePayment(ctx, CreatePaymentInput{
		MerchantRef: "merchant-1",
		Amount:      decimal.NewFromInt(10),
		Currency:    "x",
	})
	assertTextCode(t, err, PaymentErrorBadInput)
}

func TestCreatePaymentNormalizesAndStartsCreated(t *testing.T) {
	fx := newTestService(t)
	payment := createPayment(t, fx, "merchant-1")

	if payment.Status != PaymentStatusCreated {
		t.Fatalf("status = %s, want %s", payment.Status, PaymentStatusCreated)
	}
	if payment.Currency != "USD" {
		t.Fatalf("currency = %s, want USD", payment.Currency)
	}
	if payment.Version != 1 {
		t.Fatalf("version = %d, want 1", payment.Version)
	}
}

func TestCreatePaymentFansOutToSubscribers(t *testing.T) {
	fx := newTestService(t)
	subscribed := registerEndpoint(t, fx, "merchant-1", EventTypePaymentCreated)
	other := registerEndpoint(t, fx, "merchant-1", EventTypeInvoicePaid)

	payment := createPayment(t, fx, "merchant-1")

	events, err := fx.service.ListEndpointEvents(context.Background(), subscribed.ID, 10)
	if err != nil {
		t.Fatalf("ListEndpointEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("subscribed endpoint events = %d, want 1", len(events))
	}
	if events[0].EventType != EventTypePaymentCreated {
		t.Fatalf("event type = %s", events[0].EventType)
	}
	wantKey := EventIdempotencyKey(payment.ID, EventTypePaymentCreated, subscribed.ID, 1)
	if events[0].IdempotencyKey != wantKey {
		t.Fatalf("idempotency key = %s, want %s", events[0].IdempotencyKey, wantKey)
	}

	otherEvents, err := fx.service.ListEndpointEvents(context.Background(), other.ID, 10)
	if err != nil {
		t.Fatalf("ListEndpointEvents: %v", err)
	}
	if len(otherEvents) != 0 {
		t.Fatalf("unsubscribed endpoint received %d events", len(otherEvents))
	}
}

func TestTransitionPaymentRejectsInvalidEdge(t *testing.T) {
	fx := newTestService(t)
	payment := createPayment(t, fx, "merchant-1")

	_, err := fx.service.TransitionPayment(context.Background(), TransitionPaymentInput{
		PaymentID: payment.ID,
		To:        PaymentStatusConfirmed,
	})
	assertTextCode(t, err, PaymentErrorInvalidTransition)

	_, err = fx.service.TransitionPayment(context.Background(), TransitionPaymentInput{
		PaymentID: payment.ID,
		To:        PaymentStatusRefunded,
	})
	assertTextCode(t, err, PaymentErrorInvalidTransition)
}

func TestTransitionPaymentPendingIsSilent(t *testing.T) {
	fx := newTestService(t)
	endpoint := registerEndpoint(t, fx, "merchant-1")
	payment := createPayment(t, fx, "merchant-1")

	if _, err := fx.service.TransitionPayment(context.Background(), TransitionPaymentInput{
		PaymentID: payment.ID,
		To:        PaymentStatusPending,
	}); err != nil {
		t.Fatalf("transition to pending: %v", err)
	}

	events, err := fx.service.ListEndpointEvents(context.Background(), endpoint.ID, 10)
	if err != nil {
		t.Fatalf("ListEndpointEvents: %v", err)
	}
	// payment.created only; pending emits nothing.
	if len(events) != 1 || events[0].EventType != EventTypePaymentCreated {
		t.Fatalf("unexpected events after pending transition: %+v", events)
	}
}

func TestTransitionPaymentConfirmSetsTxHashOnce(t *testing.T) {
	fx := newTestService(t)
	payment := createPayment(t, fx, "merchant-1")
	confirmed := confirmPayment(t, fx, payment.ID, "0xabc123")

	if confirmed.TxHash != "0xabc123" {
		t.Fatalf("tx hash = %s", confirmed.TxHash)
	}
	if confirmed.Version != 3 {
		t.Fatalf("version = %d, want 3", confirmed.Version)
	}

	_, err := fx.service.TransitionPayment(context.Background(), TransitionPaymentInput{
		PaymentID: payment.ID,
		To:        PaymentStatusRefunded,
		TxHash:    "0xother",
	})
	assertTextCode(t, err, PaymentErrorBadInput)
}

func TestTransitionPaymentRejectsTxHashRewrite(t *testing.T) {
	fx := newTestService(t)
	payment := createPayment(t, fx, "merchant-1")
	ctx := context.Background()

	if _, err := fx.service.TransitionPayment(ctx, TransitionPaymentInput{PaymentID: payment.ID, To: PaymentStatusPending}); err != nil {
		t.Fatalf("transition to pending: %v", err)
	}
	// Simulate a hash already recorded out of band.
	fx.payments.mu.Lock()
	stored := fx.payments.payments[payment.ID]
	stored.TxHash = "0xoriginal"
	fx.payments.payments[payment.ID] = stored
	fx.payments.mu.Unlock()

	_, err := fx.service.TransitionPayment(ctx, TransitionPaymentInput{
		PaymentID: payment.ID,
		To:        PaymentStatusConfirmed,
		TxHash:    "0xdifferent",
	})
	assertTextCode(t, err, PaymentErrorBadInput)
}

func TestExpirePaymentsSweep(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour)
	expired, err := fx.service.CreatePayment(ctx, CreatePaymentInput{
		MerchantRef: "merchant-1",
		Amount:      decimal.NewFromInt(10),
		Currency:    "USD",
		ExpiresAt:   &future,
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	// Force the expiry into the past after creation.
	past := time.Now().UTC().Add(-time.Minute)
	fx.payments.mu.Lock()
	stored := fx.payments.payments[expired.ID]
	stored.ExpiresAt = &past
	fx.payments.payments[expired.ID] = stored
	fx.payments.mu.Unlock()

	count, err := fx.service.ExpirePayments(ctx, 10)
	if err != nil {
		t.Fatalf("ExpirePayments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired = %d, want 1", count)
	}
	got, err := fx.service.GetPayment(ctx, expired.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.Status != PaymentStatusExpired {
		t.Fatalf("status = %s, want %s", got.Status, PaymentStatusExpired)
	}
}

func TestCreateInvoiceDuplicateNumber(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()

	in := CreateInvoiceInput{
		MerchantRef: "merchant-1",
		Number:      "INV-001",
		Amount:      decimal.NewFromInt(100),
		Currency:    "USD",
	}
	if _, err := fx.service.CreateInvoice(ctx, in); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	_, err := fx.service.CreateInvoice(ctx, in)
	assertTextCode(t, err, PaymentErrorDuplicateInvoice)
}

func TestMarkInvoicePaidRequiresConfirmedPayment(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	payment := createPayment(t, fx, "merchant-1")

	invoice, err := fx.service.CreateInvoice(ctx, CreateInvoiceInput{
		MerchantRef: "merchant-1",
		Number:      "INV-100",
		PaymentID:   payment.ID,
		Amount:      decimal.NewFromInt(250),
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := fx.service.TransitionInvoice(ctx, TransitionInvoiceInput{InvoiceID: invoice.ID, To: InvoiceStatusSent}); err != nil {
		t.Fatalf("transition to sent: %v", err)
	}

	_, err = fx.service.MarkInvoicePaid(ctx, invoice.ID)
	assertTextCode(t, err, PaymentErrorInvalidTransition)

	confirmPayment(t, fx, payment.ID, "0xabc")
	paid, err := fx.service.MarkInvoicePaid(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("MarkInvoicePaid: %v", err)
	}
	if paid.Status != InvoiceStatusPaid {
		t.Fatalf("status = %s, want %s", paid.Status, InvoiceStatusPaid)
	}
}

func TestMarkInvoicePaidSkipsDraft(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()

	invoice, err := fx.service.CreateInvoice(ctx, CreateInvoiceInput{
		MerchantRef: "merchant-1",
		Number:      "INV-200",
		Amount:      decimal.NewFromInt(50),
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	_, err = fx.service.MarkInvoicePaid(ctx, invoice.ID)
	assertTextCode(t, err, PaymentErrorInvalidTransition)
}

func TestCreateRefundGuards(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	payment := createPayment(t, fx, "merchant-1")

	_, err := fx.service.CreateRefund(ctx, CreateRefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.NewFromInt(10),
	})
	assertTextCode(t, err, PaymentErrorInvalidTransition)

	confirmPayment(t, fx, payment.ID, "0xabc")

	_, err = fx.service.CreateRefund(ctx, CreateRefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.NewFromInt(500),
	})
	assertTextCode(t, err, PaymentErrorRefundExceedsAmount)

	_, err = fx.service.CreateRefund(ctx, CreateRefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.NewFromInt(100),
		Currency:  "EUR",
	})
	assertTextCode(t, err, PaymentErrorBadInput)

	refund, err := fx.service.CreateRefund(ctx, CreateRefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.NewFromInt(100),
		Reason:    "customer request",
	})
	if err != nil {
		t.Fatalf("CreateRefund: %v", err)
	}
	if refund.Status != RefundStatusPending {
		t.Fatalf("status = %s, want %s", refund.Status, RefundStatusPending)
	}
	if refund.Currency != "USD" {
		t.Fatalf("currency = %s, want USD", refund.Currency)
	}
}

func TestCompleteRefundMovesPaymentToRefunded(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	endpoint := registerEndpoint(t, fx, "merchant-1", EventTypePaymentRefunded)
	payment := createPayment(t, fx, "merchant-1")
	confirmPayment(t, fx, payment.ID, "0xabc")

	refund, err := fx.service.CreateRefund(ctx, CreateRefundInput{
		PaymentID: payment.ID,
		Amount:    decimal.NewFromInt(250),
	})
	if err != nil {
		t.Fatalf("CreateRefund: %v", err)
	}
	if _, err := fx.service.StartRefund(ctx, refund.ID); err != nil {
		t.Fatalf("StartRefund: %v", err)
	}

	completed, err := fx.service.CompleteRefund(ctx, CompleteRefundRequest{
		RefundID: refund.ID,
		TxHash:   "0xrefundtx",
	})
	if err != nil {
		t.Fatalf("CompleteRefund: %v", err)
	}
	if completed.Status != RefundStatusCompleted {
		t.Fatalf("refund status = %s", completed.Status)
	}

	got, err := fx.service.GetPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.Status != PaymentStatusRefunded {
		t.Fatalf("payment status = %s, want %s", got.Status, PaymentStatusRefunded)
	}

	events, err := fx.service.ListEndpointEvents(ctx, endpoint.ID, 10)
	if err != nil {
		t.Fatalf("ListEndpointEvents: %v", err)
	}
	if len(events) != 1 || events[0].EventType != EventTypePaymentRefunded {
		t.Fatalf("unexpected refund events: %+v", events)
	}

	_, err = fx.service.CompleteRefund(ctx, CompleteRefundRequest{RefundID: refund.ID})
	assertTextCode(t, err, PaymentErrorRefundAlreadyCompleted)
}

func TestRegisterEndpointValidation(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()

	_, err := fx.service.RegisterEndpoint(ctx, CreateEndpointInput{
		MerchantRef: "merchant-1",
		URL:         "ftp://example.com/hook",
		Secret:      "super-secret-signing-key",
	})
	assertTextCode(t, err, PaymentErrorBadInput)

	_, err = fx.service.RegisterEndpoint(ctx, CreateEndpointInput{
		MerchantRef: "merchant-1",
		URL:         "https://example.com/hook",
		Secret:      "short",
	})
	assertTextCode(t, err, PaymentErrorBadInput)

	_, err = fx.service.RegisterEndpoint(ctx, CreateEndpointInput{
		MerchantRef: "merchant-1",
		URL:         "https://example.com/hook",
		Secret:      "super-secret-signing-key",
		EventTypes:  []string{"payment.bogus"},
	})
	assertTextCode(t, err, PaymentErrorBadInput)
}

func TestReplayEventOnlyForTerminalFailures(t *testing.T) {
	fx := newTestService(t)
	ctx := context.Background()
	registerEndpoint(t, fx, "merchant-1")
	createPayment(t, fx, "merchant-1")

	var eventID string
	fx.events.mu.Lock()
	for id := range fx.events.events {
		eventID = id
	}
	fx.events.mu.Unlock()
	if eventID == "" {
		t.Fatal("expected a pending event")
	}

	_, err := fx.service.ReplayEvent(ctx, eventID)
	assertTextCode(t, err, PaymentErrorEventNotReplayable)

	// Terminal failure: failed with no scheduled retry.
	now := time.Now().UTC()
	if err := fx.events.RecordAttempt(ctx, eventID, AttemptOutcome{
		Status:      EventStatusFailed,
		AttemptedAt: now,
	}); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	replayed, err := fx.service.ReplayEvent(ctx, eventID)
	if err != nil {
		t.Fatalf("ReplayEvent: %v", err)
	}
	if replayed.Status != EventStatusPending || replayed.Attempts != 0 {
		t.Fatalf("replayed = %+v", replayed)
	}
}

func TestProofRecorderFiresOnConfirm(t *testing.T) {
	recorded := make(chan Payment, 1)
	recorder := &captureProofRecorder{recorded: recorded}
	fx := newTestService(t, WithProofRecorder(recorder))
	payment := createPayment(t, fx, "merchant-1")
	confirmPayment(t, fx, payment.ID, "0xabc")

	select {
	case got := <-recorded:
		if got.ID != payment.ID {
			t.Fatalf("recorded payment %s, want %s", got.ID, payment.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("proof recorder was not invoked")
	}
}

type captureProofRecorder struct {
	recorded chan Payment
}

func (r *captureProofRecorder) IsEligible(payment Payment) bool {
	return payment.Status == PaymentStatusConfirmed
}

func (r *captureProofRecorder) RecordProof(ctx context.Context, payment Payment) (ProofReference, error) {
	r.recorded <- payment
	return ProofReference{TxHash: "0xproof", ChainID: 1, RecordedAt: time.Now().UTC()}, nil
}
