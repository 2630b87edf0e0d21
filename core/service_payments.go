package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (Payment, error) {
	startedAt := s.now()
	payment, err := s.createPayment(ctx, in)
	s.observeOperation(ctx, startedAt, "payment_create", err, map[string]any{
		"merchant_ref": in.MerchantRef,
		"payment_id":   payment.ID,
	})
	if err != nil {
		return Payment{}, s.mapError(err)
	}
	return payment, nil
}

func (s *Service) createPayment(ctx context.Context, in CreatePaymentInput) (Payment, error) {
	if s == nil || s.payments == nil {
		return Payment{}, fmt.Errorf("core: payment store is not configured")
	}
	in.MerchantRef = strings.TrimSpace(in.MerchantRef)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.MerchantRef == "" {
		return Payment{}, goerrors.NewValidation("payment merchant reference is required",
			goerrors.FieldError{Field: "merchant_ref", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}
	if err := validCurrency(in.Currency); err != nil {
		return Payment{}, goerrors.NewValidation("payment currency is invalid",
			goerrors.FieldError{Field: "currency", Message: err.Error()},
		).WithTextCode(PaymentErrorBadInput)
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return Payment{}, goerrors.NewValidation("payment amount must be positive",
			goerrors.FieldError{Field: "amount", Message: "must be greater than zero"},
		).WithTextCode(PaymentErrorBadInput)
	}
	if in.SettlementDuration < 0 {
		return Payment{}, goerrors.NewValidation("payment settlement duration is invalid",
			goerrors.FieldError{Field: "settlement_duration", Message: "must not be negative"},
		).WithTextCode(PaymentErrorBadInput)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return Payment{}, goerrors.NewValidation("payment expiry must be in the future",
			goerrors.FieldError{Field: "expires_at", Message: "must be in the future"},
		).WithTextCode(PaymentErrorBadInput)
	}

	// Creation events are drafted against the initial revision; the store
	// commits the payment row and the fan-out in one transaction.
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	snapshot := Payment{
		ID:                 in.ID,
		MerchantRef:        in.MerchantRef,
		Amount:             in.Amount,
		Currency:           in.Currency,
		Status:             PaymentStatusCreated,
		PayerAddress:       strings.TrimSpace(in.PayerAddress),
		MerchantAddress:    strings.TrimSpace(in.MerchantAddress),
		SettlementDuration: in.SettlementDuration,
		ExpiresAt:          in.ExpiresAt,
		CreatedAt:          s.now(),
	}
	drafts, err := s.paymentEventDrafts(ctx, snapshot, EventTypePaymentCreated, 1)
	if err != nil {
		return Payment{}, err
	}
	return s.payments.Create(ctx, in, drafts)
}

func (s *Service) GetPayment(ctx context.Context, id string) (Payment, error) {
	if s == nil || s.payments == nil {
		return Payment{}, s.mapError(fmt.Errorf("core: payment store is not configured"))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Payment{}, s.mapError(goerrors.NewValidation("payment id is required",
			goerrors.FieldError{Field: "id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput))
	}
	payment, err := s.payments.Get(ctx, id)
	if err != nil {
		return Payment{}, s.mapError(err)
	}
	return payment, nil
}

func (s *Service) ListPayments(ctx context.Context, merchantRef string, limit int) ([]Payment, error) {
	if s == nil || s.payments == nil {
		return nil, s.mapError(fmt.Errorf("core: payment store is not configured"))
	}
	merchantRef = strings.TrimSpace(merchantRef)
	if merchantRef == "" {
		return nil, s.mapError(goerrors.NewValidation("merchant reference is required",
			goerrors.FieldError{Field: "merchant_ref", Message: "required"},
		).WithTextCode(PaymentErrorBadInput))
	}
	if limit <= 0 {
		limit = 50
	}
	payments, err := s.payments.ListByMerchant(ctx, merchantRef, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return payments, nil
}

type TransitionPaymentInput struct {
	PaymentID string
	To        PaymentStatus
	// TxHash is accepted only on the confirmed transition and is set-once.
	TxHash string
}

func (s *Service) TransitionPayment(ctx context.Context, in TransitionPaymentInput) (Payment, error) {
	startedAt := s.now()
	payment, err := s.transitionPayment(ctx, in)
	s.observeOperation(ctx, startedAt, "payment_transition", err, map[string]any{
		"payment_id": in.PaymentID,
		"to_status":  string(in.To),
	})
	if err != nil {
		return Payment{}, s.mapError(err)
	}
	return payment, nil
}

func (s *Service) transitionPayment(ctx context.Context, in TransitionPaymentInput) (Payment, error) {
	if s == nil || s.payments == nil {
		return Payment{}, fmt.Errorf("core: payment store is not configured")
	}
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	in.TxHash = strings.TrimSpace(in.TxHash)
	if in.PaymentID == "" {
		return Payment{}, goerrors.NewValidation("payment id is required",
			goerrors.FieldError{Field: "payment_id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}

	current, err := s.payments.Get(ctx, in.PaymentID)
	if err != nil {
		return Payment{}, err
	}
	if err := ValidatePaymentTransition(current.Status, in.To); err != nil {
		return Payment{}, err
	}
	if in.TxHash != "" {
		if in.To != PaymentStatusConfirmed {
			return Payment{}, goerrors.NewValidation("transaction hash is only accepted on confirmation",
				goerrors.FieldError{Field: "tx_hash", Message: "only valid for the confirmed transition"},
			).WithTextCode(PaymentErrorBadInput)
		}
		if current.TxHash != "" && current.TxHash != in.TxHash {
			return Payment{}, fmt.Errorf("%w: payment %s", ErrTxHashImmutable, current.ID)
		}
	}

	next := current
	next.Status = in.To
	if in.TxHash != "" {
		next.TxHash = in.TxHash
	}

	var drafts []EventDraft
	if eventType := EventTypeForPaymentStatus(in.To); eventType != "" {
		drafts, err = s.paymentEventDrafts(ctx, next, eventType, current.Version+1)
		if err != nil {
			return Payment{}, err
		}
	}

	updated, err := s.payments.ApplyTransition(ctx, ApplyPaymentTransitionInput{
		PaymentID:       current.ID,
		From:            current.Status,
		To:              in.To,
		ExpectedVersion: current.Version,
		TxHash:          in.TxHash,
		Events:          drafts,
	})
	if err != nil {
		return Payment{}, err
	}

	if in.To == PaymentStatusConfirmed {
		s.recordProofAsync(updated)
	}
	return updated, nil
}

// ExpirePayments moves payments whose expiry elapsed to expired. Expiry is
// silent on the webhook channel.
func (s *Service) ExpirePayments(ctx context.Context, limit int) (int, error) {
	startedAt := s.now()
	expired, err := s.expirePayments(ctx, limit)
	s.observeOperation(ctx, startedAt, "payment_expire", err, map[string]any{
		"expired": expired,
	})
	if err != nil {
		return expired, s.mapError(err)
	}
	return expired, nil
}

func (s *Service) expirePayments(ctx context.Context, limit int) (int, error) {
	if s == nil || s.payments == nil {
		return 0, fmt.Errorf("core: payment store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	candidates, err := s.payments.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	var firstErr error
	for _, payment := range candidates {
		if !PaymentTransitionAllowed(payment.Status, PaymentStatusExpired) {
			continue
		}
		_, err := s.payments.ApplyTransition(ctx, ApplyPaymentTransitionInput{
			PaymentID:       payment.ID,
			From:            payment.Status,
			To:              PaymentStatusExpired,
			ExpectedVersion: payment.Version,
		})
		if err != nil {
			// A concurrent transition winning the race is expected here.
			if errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrInvalidTransition) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		expired++
	}
	return expired, firstErr
}

// paymentEventDrafts fans a payment snapshot out to every active endpoint
// subscribed to the event type.
func (s *Service) paymentEventDrafts(ctx context.Context, payment Payment, eventType string, revision int) ([]EventDraft, error) {
	if s.endpoints == nil {
		return nil, nil
	}
	endpoints, err := s.endpoints.ListActiveByEventType(ctx, payment.MerchantRef, eventType)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, nil
	}
	payload, err := MarshalPaymentEvent(payment)
	if err != nil {
		return nil, err
	}
	drafts := make([]EventDraft, 0, len(endpoints))
	for _, endpoint := range endpoints {
		drafts = append(drafts, EventDraft{
			EndpointID:     endpoint.ID,
			EventType:      eventType,
			IdempotencyKey: EventIdempotencyKey(payment.ID, eventType, endpoint.ID, revision),
			Payload:        payload,
		})
	}
	return drafts, nil
}

// recordProofAsync records an on-chain proof for a confirmed payment without
// blocking the transition. Proof failures never surface to the caller.
func (s *Service) recordProofAsync(payment Payment) {
	if s == nil || s.proofRecorder == nil {
		return
	}
	if !s.proofRecorder.IsEligible(payment) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		reference, err := s.proofRecorder.RecordProof(ctx, payment)
		if err != nil {
			s.logError(ctx, "proof recording failed", map[string]any{
				"payment_id": payment.ID,
				"error":      err.Error(),
			})
			s.recordCounter(ctx, "payments.proof_record.total", 1, map[string]string{"status": "failure"})
			return
		}
		s.logInfo(ctx, "proof recorded", map[string]any{
			"payment_id": payment.ID,
			"tx_hash":    reference.TxHash,
			"chain_id":   reference.ChainID,
		})
		s.recordCounter(ctx, "payments.proof_record.total", 1, map[string]string{"status": "success"})
	}()
}
