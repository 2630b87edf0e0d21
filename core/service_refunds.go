package core

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/shopspring/decimal"
)

func (s *Service) CreateRefund(ctx context.Context, in CreateRefundInput) (Refund, error) {
	startedAt := s.now()
	refund, err := s.createRefund(ctx, in)
	s.observeOperation(ctx, startedAt, "refund_create", err, map[string]any{
		"payment_id": in.PaymentID,
		"refund_id":  refund.ID,
	})
	if err != nil {
		return Refund{}, s.mapError(err)
	}
	return refund, nil
}

func (s *Service) createRefund(ctx context.Context, in CreateRefundInput) (Refund, error) {
	if s == nil || s.refunds == nil || s.payments == nil {
		return Refund{}, fmt.Errorf("core: refund and payment stores are not configured")
	}
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Reason = strings.TrimSpace(in.Reason)
	if in.PaymentID == "" {
		return Refund{}, goerrors.NewValidation("refund payment id is required",
			goerrors.FieldError{Field: "payment_id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return Refund{}, goerrors.NewValidation("refund amount must be positive",
			goerrors.FieldError{Field: "amount", Message: "must be greater than zero"},
		).WithTextCode(PaymentErrorBadInput)
	}

	payment, err := s.payments.Get(ctx, in.PaymentID)
	if err != nil {
		return Refund{}, err
	}
	if payment.Status != PaymentStatusConfirmed {
		return Refund{}, goerrors.New(
			fmt.Sprintf("payment %s is %s: only confirmed payments are refundable", payment.ID, payment.Status),
			goerrors.CategoryConflict,
		).WithTextCode(PaymentErrorInvalidTransition)
	}
	if in.Currency == "" {
		in.Currency = payment.Currency
	}
	if in.Currency != payment.Currency {
		return Refund{}, goerrors.NewValidation("refund currency mismatch",
			goerrors.FieldError{Field: "currency", Message: "must match the payment currency"},
		).WithTextCode(PaymentErrorBadInput)
	}
	if in.Amount.GreaterThan(payment.Amount) {
		return Refund{}, fmt.Errorf("%w: refund %s exceeds payment %s", ErrRefundExceedsAmount,
			in.Amount.String(), payment.Amount.String())
	}
	if in.MerchantRef == "" {
		in.MerchantRef = payment.MerchantRef
	}

	return s.refunds.Create(ctx, in)
}

func (s *Service) GetRefund(ctx context.Context, id string) (Refund, error) {
	if s == nil || s.refunds == nil {
		return Refund{}, s.mapError(fmt.Errorf("core: refund store is not configured"))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Refund{}, s.mapError(goerrors.NewValidation("refund id is required",
			goerrors.FieldError{Field: "id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput))
	}
	refund, err := s.refunds.Get(ctx, id)
	if err != nil {
		return Refund{}, s.mapError(err)
	}
	return refund, nil
}

func (s *Service) ListRefunds(ctx context.Context, paymentID string) ([]Refund, error) {
	if s == nil || s.refunds == nil {
		return nil, s.mapError(fmt.Errorf("core: refund store is not configured"))
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, s.mapError(goerrors.NewValidation("payment id is required",
			goerrors.FieldError{Field: "payment_id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput))
	}
	refunds, err := s.refunds.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return refunds, nil
}

// StartRefund moves a pending refund into processing.
func (s *Service) StartRefund(ctx context.Context, refundID string) (Refund, error) {
	startedAt := s.now()
	refund, err := s.updateRefundStatus(ctx, refundID, RefundStatusPending, RefundStatusProcessing)
	s.observeOperation(ctx, startedAt, "refund_start", err, map[string]any{
		"refund_id": refundID,
	})
	if err != nil {
		return Refund{}, s.mapError(err)
	}
	return refund, nil
}

type FailRefundInput struct {
	RefundID string
	Reason   string
}

func (s *Service) FailRefund(ctx context.Context, in FailRefundInput) (Refund, error) {
	startedAt := s.now()
	refund, err := s.failRefund(ctx, in)
	s.observeOperation(ctx, startedAt, "refund_fail", err, map[string]any{
		"refund_id": in.RefundID,
	})
	if err != nil {
		return Refund{}, s.mapError(err)
	}
	return refund, nil
}

func (s *Service) failRefund(ctx context.Context, in FailRefundInput) (Refund, error) {
	if s == nil || s.refunds == nil {
		return Refund{}, fmt.Errorf("core: refund store is not configured")
	}
	in.RefundID = strings.TrimSpace(in.RefundID)
	if in.RefundID == "" {
		return Refund{}, goerrors.NewValidation("refund id is required",
			goerrors.FieldError{Field: "refund_id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}
	current, err := s.refunds.Get(ctx, in.RefundID)
	if err != nil {
		return Refund{}, err
	}
	if err := ValidateRefundTransition(current.Status, RefundStatusFailed); err != nil {
		return Refund{}, err
	}
	return s.refunds.UpdateStatus(ctx, current.ID, current.Status, RefundStatusFailed)
}

type CompleteRefundRequest struct {
	RefundID string
	TxHash   string
}

// CompleteRefund finalizes a refund: the refund flips to completed, the
// payment moves to refunded, and the payment.refunded events enqueue, all in
// one transaction.
func (s *Service) CompleteRefund(ctx context.Context, in CompleteRefundRequest) (Refund, error) {
	startedAt := s.now()
	refund, err := s.completeRefund(ctx, in)
	s.observeOperation(ctx, startedAt, "refund_complete", err, map[string]any{
		"refund_id": in.RefundID,
	})
	if err != nil {
		return Refund{}, s.mapError(err)
	}
	return refund, nil
}

func (s *Service) completeRefund(ctx context.Context, in CompleteRefundRequest) (Refund, error) {
	if s == nil || s.refunds == nil || s.payments == nil {
		return Refund{}, fmt.Errorf("core: refund and payment stores are not configured")
	}
	in.RefundID = strings.TrimSpace(in.RefundID)
	in.TxHash = strings.TrimSpace(in.TxHash)
	if in.RefundID == "" {
		return Refund{}, goerrors.NewValidation("refund id is required",
			goerrors.FieldError{Field: "refund_id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}

	refund, err := s.refunds.Get(ctx, in.RefundID)
	if err != nil {
		return Refund{}, err
	}
	if refund.Status == RefundStatusCompleted {
		return Refund{}, fmt.Errorf("%w: refund %s", ErrRefundAlreadyCompleted, refund.ID)
	}
	if err := ValidateRefundTransition(refund.Status, RefundStatusCompleted); err != nil {
		return Refund{}, err
	}

	payment, err := s.payments.Get(ctx, refund.PaymentID)
	if err != nil {
		return Refund{}, err
	}
	if err := ValidatePaymentTransition(payment.Status, PaymentStatusRefunded); err != nil {
		return Refund{}, err
	}

	next := payment
	next.Status = PaymentStatusRefunded
	drafts, err := s.paymentEventDrafts(ctx, next, EventTypePaymentRefunded, payment.Version+1)
	if err != nil {
		return Refund{}, err
	}

	return s.refunds.Complete(ctx, CompleteRefundInput{
		RefundID:       refund.ID,
		TxHash:         in.TxHash,
		PaymentID:      payment.ID,
		PaymentVersion: payment.Version,
		Events:         drafts,
	})
}

func (s *Service) updateRefundStatus(ctx context.Context, refundID string, from, to RefundStatus) (Refund, error) {
	if s == nil || s.refunds == nil {
		return Refund{}, fmt.Errorf("core: refund store is not configured")
	}
	refundID = strings.TrimSpace(refundID)
	if refundID == "" {
		return Refund{}, goerrors.NewValidation("refund id is required",
			goerrors.FieldError{Field: "refund_id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}
	if err := ValidateRefundTransition(from, to); err != nil {
		return Refund{}, err
	}
	return s.refunds.UpdateStatus(ctx, refundID, from, to)
}
