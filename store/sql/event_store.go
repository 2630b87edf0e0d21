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

type EventStore struct {
	db   *bun.DB
	repo repository.Repository[*eventRecord]
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*eventRecord](db, eventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid event repository wiring: %w", err)
		}
	}
	return &EventStore{db: db, repo: repo}, nil
}

func (s *EventStore) CreateEvent(ctx context.Context, draft core.EventDraft) (core.WebhookEvent, bool, error) {
	if s == nil || s.db == nil {
		return core.WebhookEvent{}, false, fmt.Errorf("sqlstore: event store is not configured")
	}
	if strings.TrimSpace(draft.EndpointID) == "" {
		return core.WebhookEvent{}, false, fmt.Errorf("sqlstore: event endpoint id is required")
	}
	if strings.TrimSpace(draft.IdempotencyKey) == "" {
		return core.WebhookEvent{}, false, fmt.Errorf("sqlstore: event idempotency key is required")
	}

	now := time.Now().UTC()
	record := newEventRecord(draft, now)
	result, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (idempotency_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return core.WebhookEvent{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.WebhookEvent{}, false, err
	}
	if affected == 0 {
		existing := &eventRecord{}
		err := s.db.NewSelect().
			Model(existing).
			Where("idempotency_key = ?", strings.TrimSpace(draft.IdempotencyKey)).
			Scan(ctx)
		if err != nil {
			return core.WebhookEvent{}, false, err
		}
		return eventToDomain(existing), false, nil
	}
	return eventToDomain(record), true, nil
}

func (s *EventStore) Get(ctx context.Context, id string) (core.WebhookEvent, error) {
	if s == nil || s.repo == nil {
		return core.WebhookEvent{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNotFound(err) {
			return core.WebhookEvent{}, fmt.Errorf("%w: %s", core.ErrEventNotFound, id)
		}
		return core.WebhookEvent{}, err
	}
	return eventToDomain(record), nil
}

// ClaimNextDeliverable claims due queue heads. Ranking non-terminal events
// per endpoint and claiming only position 1 keeps delivery FIFO with at most
// one event in flight per endpoint; terminal failures drop out of the ranking
// so they never wedge the queue behind them. The UPDATE repeats the
// eligibility predicate: under read committed a claimant that blocked on the
// row lock re-evaluates only the UPDATE's own quals against the new row
// version, and `id IN (claimable)` alone would let it claim an event another
// worker just took.
func (s *EventStore) ClaimNextDeliverable(ctx context.Context, limit int, now time.Time, visibility time.Duration) ([]core.WebhookEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	if visibility <= 0 {
		visibility = 2 * time.Minute
	}
	now = now.UTC()
	staleBefore := now.Add(-visibility)

	var records []eventRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH ranked AS (
	SELECT
		id,
		status,
		next_attempt_at,
		claimed_at,
		ROW_NUMBER() OVER (
			PARTITION BY endpoint_id
			ORDER BY created_at ASC, id ASC
		) AS queue_position
	FROM payment_webhook_events
	WHERE status IN (?, ?)
	   OR (status = ? AND next_attempt_at IS NOT NULL)
),
claimable AS (
	SELECT id
	FROM ranked
	WHERE queue_position = 1
	  AND (
		status = ?
		OR (status = ? AND next_attempt_at <= ?)
		OR (status = ? AND claimed_at IS NOT NULL AND claimed_at <= ?)
	  )
	LIMIT ?
)
UPDATE payment_webhook_events
SET status = ?, claimed_at = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimable)
  AND (
	status = ?
	OR (status = ? AND next_attempt_at <= ?)
	OR (status = ? AND claimed_at IS NOT NULL AND claimed_at <= ?)
  )
RETURNING
	id,
	endpoint_id,
	event_type,
	idempotency_key,
	payload,
	status,
	attempts,
	last_attempt_at,
	next_attempt_at,
	claimed_at,
	response_code,
	response_body,
	last_error,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			string(core.EventStatusPending),
			string(core.EventStatusInflight),
			string(core.EventStatusFailed),
			string(core.EventStatusPending),
			string(core.EventStatusFailed),
			now,
			string(core.EventStatusInflight),
			staleBefore,
			limit,
			string(core.EventStatusInflight),
			now,
			now,
			string(core.EventStatusPending),
			string(core.EventStatusFailed),
			now,
			string(core.EventStatusInflight),
			staleBefore,
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	events := make([]core.WebhookEvent, 0, len(records))
	for i := range records {
		events = append(events, eventToDomain(&records[i]))
	}
	return events, nil
}

func (s *EventStore) RecordAttempt(ctx context.Context, eventID string, outcome core.AttemptOutcome) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	attemptedAt := outcome.AttemptedAt.UTC()
	if attemptedAt.IsZero() {
		attemptedAt = time.Now().UTC()
	}

	result, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("status = ?", string(outcome.Status)).
		Set("attempts = attempts + 1").
		Set("response_code = ?", outcome.ResponseCode).
		Set("response_body = ?", outcome.ResponseBody).
		Set("last_error = ?", strings.TrimSpace(outcome.Error)).
		Set("last_attempt_at = ?", attemptedAt).
		Set("next_attempt_at = ?", outcome.NextAttemptAt).
		Set("claimed_at = NULL").
		Set("updated_at = ?", attemptedAt).
		Where("id = ?", eventID).
		Where("status = ?", string(core.EventStatusInflight)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: event %s is not claimed", eventID)
	}
	return nil
}

func (s *EventStore) Release(ctx context.Context, eventID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("status = ?", string(core.EventStatusPending)).
		Set("claimed_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Where("status = ?", string(core.EventStatusInflight)).
		Exec(ctx)
	return err
}

func (s *EventStore) Replay(ctx context.Context, eventID string) (core.WebhookEvent, error) {
	if s == nil || s.db == nil {
		return core.WebhookEvent{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return core.WebhookEvent{}, fmt.Errorf("sqlstore: event id is required")
	}

	now := time.Now().UTC()
	result, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("status = ?", string(core.EventStatusPending)).
		Set("attempts = 0").
		Set("next_attempt_at = NULL").
		Set("claimed_at = NULL").
		Set("last_error = ?", "").
		Set("updated_at = ?", now).
		Where("id = ?", eventID).
		Where("status = ?", string(core.EventStatusFailed)).
		Where("next_attempt_at IS NULL").
		Exec(ctx)
	if err != nil {
		return core.WebhookEvent{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.WebhookEvent{}, err
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, eventID); getErr != nil {
			return core.WebhookEvent{}, getErr
		}
		return core.WebhookEvent{}, fmt.Errorf("%w: %s", core.ErrEventNotReplayable, eventID)
	}
	return s.Get(ctx, eventID)
}

func (s *EventStore) ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]core.WebhookEvent, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("endpoint_id", "=", strings.TrimSpace(endpointID)),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.WebhookEvent, 0, len(records))
	for _, record := range records {
		out = append(out, eventToDomain(record))
	}
	return out, nil
}

func newEventRecord(draft core.EventDraft, now time.Time) *eventRecord {
	payload := make([]byte, len(draft.Payload))
	copy(payload, draft.Payload)
	return &eventRecord{
		ID:             uuid.NewString(),
		EndpointID:     strings.TrimSpace(draft.EndpointID),
		EventType:      strings.TrimSpace(draft.EventType),
		IdempotencyKey: strings.TrimSpace(draft.IdempotencyKey),
		Payload:        payload,
		Status:         string(core.EventStatusPending),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// insertEventDraftsTx persists event drafts inside the transaction that
// commits the state change producing them. Conflicting idempotency keys are
// silently skipped so a retried transition cannot duplicate events.
func insertEventDraftsTx(ctx context.Context, tx bun.Tx, drafts []core.EventDraft, now time.Time) error {
	for _, draft := range drafts {
		record := newEventRecord(draft, now)
		if _, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (idempotency_key) DO NOTHING").
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

var _ core.EventStore = (*EventStore)(nil)
