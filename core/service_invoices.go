package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (Invoice, error) {
	startedAt := s.now()
	invoice, err := s.createInvoice(ctx, in)
	s.observeOperation(ctx, startedAt, "invoice_create", err, map[string]any{
		"merchant_ref": in.MerchantRef,
		"invoice_id":   invoice.ID,
	})
	if err != nil {
		return Invoice{}, s.mapError(err)
	}
	return invoice, nil
}

func (s *Service) createInvoice(ctx context.Context, in CreateInvoiceInput) (Invoice, error) {
	if s == nil || s.invoices == nil {
		return Invoice{}, fmt.Errorf("core: invoice store is not configured")
	}
	in.MerchantRef = strings.TrimSpace(in.MerchantRef)
	in.Number = strings.TrimSpace(in.Number)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.MerchantRef == "" {
		return Invoice{}, goerrors.NewValidation("invoice merchant reference is required",
			goerrors.FieldError{Field: "merchant_ref", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}
	if in.Number == "" {
		return Invoice{}, goerrors.NewValidation("invoice number is required",
			goerrors.FieldError{Field: "number", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}
	if err := validCurrency(in.Currency); err != nil {
		return Invoice{}, goerrors.NewValidation("invoice currency is invalid",
			goerrors.FieldError{Field: "currency", Message: err.Error()},
		).WithTextCode(PaymentErrorBadInput)
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return Invoice{}, goerrors.NewValidation("invoice amount must be positive",
			goerrors.FieldError{Field: "amount", Message: "must be greater than zero"},
		).WithTextCode(PaymentErrorBadInput)
	}

	// A linked payment must exist and share the invoice currency; the link
	// is what later allows MarkInvoicePaid to settle off a confirmation.
	if in.PaymentID != "" {
		if s.payments == nil {
			return Invoice{}, fmt.Errorf("core: payment store is not configured")
		}
		payment, err := s.payments.Get(ctx, in.PaymentID)
		if err != nil {
			return Invoice{}, err
		}
		if payment.Currency != in.Currency {
			return Invoice{}, goerrors.NewValidation("invoice currency mismatch with linked payment",
				goerrors.FieldError{Field: "currency", Message: "must match the linked payment currency"},
			).WithTextCode(PaymentErrorBadInput)
		}
	}

	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	snapshot := Invoice{
		ID:            in.ID,
		MerchantRef:   in.MerchantRef,
		Number:        in.Number,
		PaymentID:     in.PaymentID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Status:        InvoiceStatusDraft,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		DueDate:       in.DueDate,
		CreatedAt:     s.now(),
	}
	drafts, err := s.invoiceEventDrafts(ctx, snapshot, EventTypeInvoiceCreated, 1)
	if err != nil {
		return Invoice{}, err
	}
	return s.invoices.Create(ctx, in, drafts)
}

func (s *Service) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	if s == nil || s.invoices == nil {
		return Invoice{}, s.mapError(fmt.Errorf("core: invoice store is not configured"))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Invoice{}, s.mapError(goerrors.NewValidation("invoice id is required",
			goerrors.FieldError{Field: "id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput))
	}
	invoice, err := s.invoices.Get(ctx, id)
	if err != nil {
		return Invoice{}, s.mapError(err)
	}
	return invoice, nil
}

func (s *Service) GetInvoiceByNumber(ctx context.Context, merchantRef string, number string) (Invoice, error) {
	if s == nil || s.invoices == nil {
		return Invoice{}, s.mapError(fmt.Errorf("core: invoice store is not configured"))
	}
	merchantRef = strings.TrimSpace(merchantRef)
	number = strings.TrimSpace(number)
	if merchantRef == "" || number == "" {
		return Invoice{}, s.mapError(goerrors.NewValidation("merchant reference and invoice number are required",
			goerrors.FieldError{Field: "number", Message: "required"},
		).WithTextCode(PaymentErrorBadInput))
	}
	invoice, err := s.invoices.GetByNumber(ctx, merchantRef, number)
	if err != nil {
		return Invoice{}, s.mapError(err)
	}
	return invoice, nil
}

type TransitionInvoiceInput struct {
	InvoiceID string
	To        InvoiceStatus
}

func (s *Service) TransitionInvoice(ctx context.Context, in TransitionInvoiceInput) (Invoice, error) {
	startedAt := s.now()
	invoice, err := s.transitionInvoice(ctx, in)
	s.observeOperation(ctx, startedAt, "invoice_transition", err, map[string]any{
		"invoice_id": in.InvoiceID,
		"to_status":  string(in.To),
	})
	if err != nil {
		return Invoice{}, s.mapError(err)
	}
	return invoice, nil
}

func (s *Service) transitionInvoice(ctx context.Context, in TransitionInvoiceInput) (Invoice, error) {
	if s == nil || s.invoices == nil {
		return Invoice{}, fmt.Errorf("core: invoice store is not configured")
	}
	in.InvoiceID = strings.TrimSpace(in.InvoiceID)
	if in.InvoiceID == "" {
		return Invoice{}, goerrors.NewValidation("invoice id is required",
			goerrors.FieldError{Field: "invoice_id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}

	current, err := s.invoices.Get(ctx, in.InvoiceID)
	if err != nil {
		return Invoice{}, err
	}
	if err := ValidateInvoiceTransition(current.Status, in.To); err != nil {
		return Invoice{}, err
	}
	if in.To == InvoiceStatusPaid {
		if err := s.checkInvoiceSettlement(ctx, current); err != nil {
			return Invoice{}, err
		}
	}

	next := current
	next.Status = in.To

	var drafts []EventDraft
	if eventType := EventTypeForInvoiceStatus(in.To); eventType != "" {
		drafts, err = s.invoiceEventDrafts(ctx, next, eventType, current.Version+1)
		if err != nil {
			return Invoice{}, err
		}
	}

	return s.invoices.ApplyTransition(ctx, ApplyInvoiceTransitionInput{
		InvoiceID:       current.ID,
		From:            current.Status,
		To:              in.To,
		ExpectedVersion: current.Version,
		Events:          drafts,
	})
}

// MarkInvoicePaid settles an invoice off its linked payment confirmation.
func (s *Service) MarkInvoicePaid(ctx context.Context, invoiceID string) (Invoice, error) {
	return s.TransitionInvoice(ctx, TransitionInvoiceInput{
		InvoiceID: invoiceID,
		To:        InvoiceStatusPaid,
	})
}

// checkInvoiceSettlement gates the paid transition: an invoice linked to a
// payment is only payable once that payment confirmed. Unlinked invoices
// settle manually.
func (s *Service) checkInvoiceSettlement(ctx context.Context, invoice Invoice) error {
	if invoice.PaymentID == "" {
		return nil
	}
	if s.payments == nil {
		return fmt.Errorf("core: payment store is not configured")
	}
	payment, err := s.payments.Get(ctx, invoice.PaymentID)
	if err != nil {
		return err
	}
	if payment.Status != PaymentStatusConfirmed && payment.Status != PaymentStatusRefunded {
		return goerrors.New(
			fmt.Sprintf("invoice %s cannot be paid: linked payment %s is %s", invoice.ID, payment.ID, payment.Status),
			goerrors.CategoryConflict,
		).WithTextCode(PaymentErrorInvalidTransition)
	}
	return nil
}

// MarkInvoicesOverdue sweeps sent invoices whose due date elapsed. Overdue
// is silent on the webhook channel.
func (s *Service) MarkInvoicesOverdue(ctx context.Context, limit int) (int, error) {
	startedAt := s.now()
	marked, err := s.markInvoicesOverdue(ctx, limit)
	s.observeOperation(ctx, startedAt, "invoice_overdue_sweep", err, map[string]any{
		"marked": marked,
	})
	if err != nil {
		return marked, s.mapError(err)
	}
	return marked, nil
}

func (s *Service) markInvoicesOverdue(ctx context.Context, limit int) (int, error) {
	if s == nil || s.invoices == nil {
		return 0, fmt.Errorf("core: invoice store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	candidates, err := s.invoices.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	marked := 0
	var firstErr error
	for _, invoice := range candidates {
		if !InvoiceTransitionAllowed(invoice.Status, InvoiceStatusOverdue) {
			continue
		}
		_, err := s.invoices.ApplyTransition(ctx, ApplyInvoiceTransitionInput{
			InvoiceID:       invoice.ID,
			From:            invoice.Status,
			To:              InvoiceStatusOverdue,
			ExpectedVersion: invoice.Version,
		})
		if err != nil {
			if errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrInvalidTransition) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		marked++
	}
	return marked, firstErr
}

func (s *Service) invoiceEventDrafts(ctx context.Context, invoice Invoice, eventType string, revision int) ([]EventDraft, error) {
	if s.endpoints == nil {
		return nil, nil
	}
	endpoints, err := s.endpoints.ListActiveByEventType(ctx, invoice.MerchantRef, eventType)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, nil
	}
	payload, err := MarshalInvoiceEvent(invoice)
	if err != nil {
		return nil, err
	}
	drafts := make([]EventDraft, 0, len(endpoints))
	for _, endpoint := range endpoints {
		drafts = append(drafts, EventDraft{
			EndpointID:     endpoint.ID,
			EventType:      eventType,
			IdempotencyKey: EventIdempotencyKey(invoice.ID, eventType, endpoint.ID, revision),
			Payload:        payload,
		})
	}
	return drafts, nil
}
