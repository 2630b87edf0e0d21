package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PaymentStore struct {
	db   *bun.DB
	repo repository.Repository[*paymentRecord]
}

func NewPaymentStore(db *bun.DB) (*PaymentStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*paymentRecord](db, paymentHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid payment repository wiring: %w", err)
		}
	}
	return &PaymentStore{db: db, repo: repo}, nil
}

func (s *PaymentStore) Create(ctx context.Context, in core.CreatePaymentInput, events []core.EventDraft) (core.Payment, error) {
	if s == nil || s.db == nil {
		return core.Payment{}, fmt.Errorf("sqlstore: payment store is not configured")
	}
	now := time.Now().UTC()
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	record := &paymentRecord{
		ID:                id,
		MerchantRef:       strings.TrimSpace(in.MerchantRef),
		Amount:            in.Amount,
		Currency:          strings.TrimSpace(in.Currency),
		Status:            string(core.PaymentStatusCreated),
		PayerAddress:      strings.TrimSpace(in.PayerAddress),
		MerchantAddress:   strings.TrimSpace(in.MerchantAddress),
		SettlementSeconds: int64(in.SettlementDuration / time.Second),
		ExpiresAt:         in.ExpiresAt,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		return insertEventDraftsTx(ctx, tx, events, now)
	})
	if err != nil {
		return core.Payment{}, err
	}
	return paymentToDomain(record), nil
}

func (s *PaymentStore) Get(ctx context.Context, id string) (core.Payment, error) {
	if s == nil || s.repo == nil {
		return core.Payment{}, fmt.Errorf("sqlstore: payment store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNotFound(err) {
			return core.Payment{}, fmt.Errorf("%w: %s", core.ErrPaymentNotFound, id)
		}
		return core.Payment{}, err
	}
	return paymentToDomain(record), nil
}

func (s *PaymentStore) ListByMerchant(ctx context.Context, merchantRef string, limit int) ([]core.Payment, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: payment store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("merchant_ref", "=", strings.TrimSpace(merchantRef)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Payment, 0, len(records))
	for _, record := range records {
		out = append(out, paymentToDomain(record))
	}
	return out, nil
}

func (s *PaymentStore) ApplyTransition(ctx context.Context, in core.ApplyPaymentTransitionInput) (core.Payment, error) {
	if s == nil || s.db == nil {
		return core.Payment{}, fmt.Errorf("sqlstore: payment store is not configured")
	}
	paymentID := strings.TrimSpace(in.PaymentID)
	if paymentID == "" {
		return core.Payment{}, fmt.Errorf("sqlstore: payment id is required")
	}

	now := time.Now().UTC()
	var updated paymentRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := tx.NewUpdate().
			Model((*paymentRecord)(nil)).
			Set("status = ?", string(in.To)).
			Set("version = version + 1").
			Set("updated_at = ?", now).
			Where("id = ?", paymentID).
			Where("status = ?", string(in.From)).
			Where("version = ?", in.ExpectedVersion)
		if txHash := strings.TrimSpace(in.TxHash); txHash != "" {
			query = query.Set("tx_hash = ?", txHash)
		}
		result, err := query.Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// Distinguish a missing payment from a lost optimistic race.
			exists, err := tx.NewSelect().
				Model((*paymentRecord)(nil)).
				Where("id = ?", paymentID).
				Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: %s", core.ErrPaymentNotFound, paymentID)
			}
			return fmt.Errorf("%w: payment %s", core.ErrConcurrentModification, paymentID)
		}

		if err := insertEventDraftsTx(ctx, tx, in.Events, now); err != nil {
			return err
		}
		return tx.NewSelect().
			Model(&updated).
			Where("id = ?", paymentID).
			Scan(ctx)
	})
	if err != nil {
		return core.Payment{}, err
	}
	return paymentToDomain(&updated), nil
}

func (s *PaymentStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]core.Payment, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: payment store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.status IN (?, ?)", string(core.PaymentStatusCreated), string(core.PaymentStatusPending)).
				Where("?TableAlias.expires_at IS NOT NULL").
				Where("?TableAlias.expires_at <= ?", now.UTC())
		}),
		repository.OrderBy("expires_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Payment, 0, len(records))
	for _, record := range records {
		out = append(out, paymentToDomain(record))
	}
	return out, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no rows")
}

var _ core.PaymentStore = (*PaymentStore)(nil)
