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

type RefundStore struct {
	db   *bun.DB
	repo repository.Repository[*refundRecord]
}

func NewRefundStore(db *bun.DB) (*RefundStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*refundRecord](db, refundHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid refund repository wiring: %w", err)
		}
	}
	return &RefundStore{db: db, repo: repo}, nil
}

func (s *RefundStore) Create(ctx context.Context, in core.CreateRefundInput) (core.Refund, error) {
	if s == nil || s.repo == nil {
		return core.Refund{}, fmt.Errorf("sqlstore: refund store is not configured")
	}
	if strings.TrimSpace(in.PaymentID) == "" {
		return core.Refund{}, fmt.Errorf("sqlstore: refund payment id is required")
	}
	now := time.Now().UTC()
	record := &refundRecord{
		ID:          uuid.NewString(),
		PaymentID:   strings.TrimSpace(in.PaymentID),
		MerchantRef: strings.TrimSpace(in.MerchantRef),
		Amount:      in.Amount,
		Currency:    strings.TrimSpace(in.Currency),
		Status:      string(core.RefundStatusPending),
		Reason:      strings.TrimSpace(in.Reason),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Refund{}, err
	}
	return refundToDomain(created), nil
}

func (s *RefundStore) Get(ctx context.Context, id string) (core.Refund, error) {
	if s == nil || s.repo == nil {
		return core.Refund{}, fmt.Errorf("sqlstore: refund store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNotFound(err) {
			return core.Refund{}, fmt.Errorf("%w: %s", core.ErrRefundNotFound, id)
		}
		return core.Refund{}, err
	}
	return refundToDomain(record), nil
}

func (s *RefundStore) ListByPayment(ctx context.Context, paymentID string) ([]core.Refund, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: refund store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("payment_id", "=", strings.TrimSpace(paymentID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Refund, 0, len(records))
	for _, record := range records {
		out = append(out, refundToDomain(record))
	}
	return out, nil
}

func (s *RefundStore) UpdateStatus(ctx context.Context, id string, from, to core.RefundStatus) (core.Refund, error) {
	if s == nil || s.db == nil {
		return core.Refund{}, fmt.Errorf("sqlstore: refund store is not configured")
	}
	refundID := strings.TrimSpace(id)
	if refundID == "" {
		return core.Refund{}, fmt.Errorf("sqlstore: refund id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*refundRecord)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", refundID).
		Where("status = ?", string(from)).
		Exec(ctx)
	if err != nil {
		return core.Refund{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.Refund{}, err
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, refundID); getErr != nil {
			return core.Refund{}, getErr
		}
		return core.Refund{}, fmt.Errorf("%w: refund %s", core.ErrConcurrentModification, refundID)
	}
	return s.Get(ctx, refundID)
}

// Complete finalizes a refund and flips its payment to refunded in one
// transaction. The completed-refund uniqueness check runs inside the same
// transaction, so two racing completions cannot both land.
func (s *RefundStore) Complete(ctx context.Context, in core.CompleteRefundInput) (core.Refund, error) {
	if s == nil || s.db == nil {
		return core.Refund{}, fmt.Errorf("sqlstore: refund store is not configured")
	}
	refundID := strings.TrimSpace(in.RefundID)
	paymentID := strings.TrimSpace(in.PaymentID)
	if refundID == "" || paymentID == "" {
		return core.Refund{}, fmt.Errorf("sqlstore: refund id and payment id are required")
	}

	now := time.Now().UTC()
	var completed refundRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*refundRecord)(nil)).
			Where("payment_id = ?", paymentID).
			Where("status = ?", string(core.RefundStatusCompleted)).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: payment %s", core.ErrRefundAlreadyCompleted, paymentID)
		}

		result, err := tx.NewUpdate().
			Model((*refundRecord)(nil)).
			Set("status = ?", string(core.RefundStatusCompleted)).
			Set("tx_hash = ?", strings.TrimSpace(in.TxHash)).
			Set("updated_at = ?", now).
			Where("id = ?", refundID).
			Where("status IN (?, ?)", string(core.RefundStatusPending), string(core.RefundStatusProcessing)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: refund %s", core.ErrConcurrentModification, refundID)
		}

		result, err = tx.NewUpdate().
			Model((*paymentRecord)(nil)).
			Set("status = ?", string(core.PaymentStatusRefunded)).
			Set("version = version + 1").
			Set("updated_at = ?", now).
			Where("id = ?", paymentID).
			Where("status = ?", string(core.PaymentStatusConfirmed)).
			Where("version = ?", in.PaymentVersion).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: payment %s", core.ErrConcurrentModification, paymentID)
		}

		if err := insertEventDraftsTx(ctx, tx, in.Events, now); err != nil {
			return err
		}
		return tx.NewSelect().
			Model(&completed).
			Where("id = ?", refundID).
			Scan(ctx)
	})
	if err != nil {
		return core.Refund{}, err
	}
	return refundToDomain(&completed), nil
}

var _ core.RefundStore = (*RefundStore)(nil)
