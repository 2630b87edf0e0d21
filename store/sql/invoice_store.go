package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type InvoiceStore struct {
	db   *bun.DB
	repo repository.Repository[*invoiceRecord]
}

func NewInvoiceStore(db *bun.DB) (*InvoiceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*invoiceRecord](db, invoiceHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid invoice repository wiring: %w", err)
		}
	}
	return &InvoiceStore{db: db, repo: repo}, nil
}

func (s *InvoiceStore) Create(ctx context.Context, in core.CreateInvoiceInput, events []core.EventDraft) (core.Invoice, error) {
	if s == nil || s.db == nil {
		return core.Invoice{}, fmt.Errorf("sqlstore: invoice store is not configured")
	}
	now := time.Now().UTC()
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	record := &invoiceRecord{
		ID:            id,
		MerchantRef:   strings.TrimSpace(in.MerchantRef),
		Number:        strings.TrimSpace(in.Number),
		Amount:        in.Amount,
		Currency:      strings.TrimSpace(in.Currency),
		Status:        string(core.InvoiceStatusDraft),
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		DueDate:       in.DueDate,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if paymentID := strings.TrimSpace(in.PaymentID); paymentID != "" {
		record.PaymentID = &paymentID
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", core.ErrDuplicateInvoiceNumber, record.Number)
			}
			return err
		}
		return insertEventDraftsTx(ctx, tx, events, now)
	})
	if err != nil {
		return core.Invoice{}, err
	}
	return invoiceToDomain(record), nil
}

func (s *InvoiceStore) Get(ctx context.Context, id string) (core.Invoice, error) {
	if s == nil || s.repo == nil {
		return core.Invoice{}, fmt.Errorf("sqlstore: invoice store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNotFound(err) {
			return core.Invoice{}, fmt.Errorf("%w: %s", core.ErrInvoiceNotFound, id)
		}
		return core.Invoice{}, err
	}
	return invoiceToDomain(record), nil
}

func (s *InvoiceStore) GetByNumber(ctx context.Context, merchantRef string, number string) (core.Invoice, error) {
	if s == nil || s.repo == nil {
		return core.Invoice{}, fmt.Errorf("sqlstore: invoice store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("merchant_ref", "=", strings.TrimSpace(merchantRef)),
		repository.SelectBy("invoice_number", "=", strings.TrimSpace(number)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Invoice{}, err
	}
	if len(records) == 0 {
		return core.Invoice{}, fmt.Errorf("%w: %s", core.ErrInvoiceNotFound, number)
	}
	return invoiceToDomain(records[0]), nil
}

func (s *InvoiceStore) ApplyTransition(ctx context.Context, in core.ApplyInvoiceTransitionInput) (core.Invoice, error) {
	if s == nil || s.db == nil {
		return core.Invoice{}, fmt.Errorf("sqlstore: invoice store is not configured")
	}
	invoiceID := strings.TrimSpace(in.InvoiceID)
	if invoiceID == "" {
		return core.Invoice{}, fmt.Errorf("sqlstore: invoice id is required")
	}

	now := time.Now().UTC()
	var updated invoiceRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*invoiceRecord)(nil)).
			Set("status = ?", string(in.To)).
			Set("version = version + 1").
			Set("updated_at = ?", now).
			Where("id = ?", invoiceID).
			Where("status = ?", string(in.From)).
			Where("version = ?", in.ExpectedVersion).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			exists, err := tx.NewSelect().
				Model((*invoiceRecord)(nil)).
				Where("id = ?", invoiceID).
				Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: %s", core.ErrInvoiceNotFound, invoiceID)
			}
			return fmt.Errorf("%w: invoice %s", core.ErrConcurrentModification, invoiceID)
		}

		if err := insertEventDraftsTx(ctx, tx, in.Events, now); err != nil {
			return err
		}
		return tx.NewSelect().
			Model(&updated).
			Where("id = ?", invoiceID).
			Scan(ctx)
	})
	if err != nil {
		return core.Invoice{}, err
	}
	return invoiceToDomain(&updated), nil
}

func (s *InvoiceStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]core.Invoice, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: invoice store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", string(core.InvoiceStatusSent)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.due_date IS NOT NULL").
				Where("?TableAlias.due_date <= ?", now.UTC())
		}),
		repository.OrderBy("due_date ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Invoice, 0, len(records))
	for _, record := range records {
		out = append(out, invoiceToDomain(record))
	}
	return out, nil
}

var _ core.InvoiceStore = (*InvoiceStore)(nil)
