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

type EndpointStore struct {
	db   *bun.DB
	repo repository.Repository[*endpointRecord]
}

func NewEndpointStore(db *bun.DB) (*EndpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*endpointRecord](db, endpointHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid endpoint repository wiring: %w", err)
		}
	}
	return &EndpointStore{db: db, repo: repo}, nil
}

func (s *EndpointStore) Create(ctx context.Context, in core.CreateEndpointInput) (core.WebhookEndpoint, error) {
	if s == nil || s.repo == nil {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	if strings.TrimSpace(in.MerchantRef) == "" {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: endpoint merchant ref is required")
	}
	if strings.TrimSpace(in.URL) == "" {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: endpoint url is required")
	}

	eventTypes := make([]string, 0, len(in.EventTypes))
	for _, eventType := range in.EventTypes {
		if trimmed := strings.TrimSpace(eventType); trimmed != "" {
			eventTypes = append(eventTypes, trimmed)
		}
	}

	now := time.Now().UTC()
	record := &endpointRecord{
		ID:          uuid.NewString(),
		MerchantRef: strings.TrimSpace(in.MerchantRef),
		URL:         strings.TrimSpace(in.URL),
		Secret:      strings.TrimSpace(in.Secret),
		EventTypes:  eventTypes,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.WebhookEndpoint{}, err
	}
	return endpointToDomain(created), nil
}

func (s *EndpointStore) Get(ctx context.Context, id string) (core.WebhookEndpoint, error) {
	if s == nil || s.repo == nil {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if isNotFound(err) {
			return core.WebhookEndpoint{}, fmt.Errorf("%w: %s", core.ErrEndpointNotFound, id)
		}
		return core.WebhookEndpoint{}, err
	}
	return endpointToDomain(record), nil
}

func (s *EndpointStore) ListByMerchant(ctx context.Context, merchantRef string) ([]core.WebhookEndpoint, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("merchant_ref", "=", strings.TrimSpace(merchantRef)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.WebhookEndpoint, 0, len(records))
	for _, record := range records {
		out = append(out, endpointToDomain(record))
	}
	return out, nil
}

// ListActiveByEventType filters active merchant endpoints by subscription.
// Subscription matching happens in Go because the event_types JSON column
// has no dialect-portable containment operator across postgres and sqlite.
func (s *EndpointStore) ListActiveByEventType(ctx context.Context, merchantRef string, eventType string) ([]core.WebhookEndpoint, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("merchant_ref", "=", strings.TrimSpace(merchantRef)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.active = ?", true)
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.WebhookEndpoint, 0, len(records))
	for _, record := range records {
		endpoint := endpointToDomain(record)
		if endpoint.SubscribesTo(eventType) {
			out = append(out, endpoint)
		}
	}
	return out, nil
}

func (s *EndpointStore) SetActive(ctx context.Context, id string, active bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	endpointID := strings.TrimSpace(id)
	if endpointID == "" {
		return fmt.Errorf("sqlstore: endpoint id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*endpointRecord)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", endpointID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", core.ErrEndpointNotFound, endpointID)
	}
	return nil
}

func (s *EndpointStore) RecordDeliveryFailure(ctx context.Context, id string, deactivateAfter int) (core.WebhookEndpoint, error) {
	if s == nil || s.db == nil {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	endpointID := strings.TrimSpace(id)
	if endpointID == "" {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: endpoint id is required")
	}

	query := s.db.NewUpdate().
		Model((*endpointRecord)(nil)).
		Set("consecutive_failures = consecutive_failures + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", endpointID)
	if deactivateAfter > 0 {
		query = query.Set(
			"active = CASE WHEN consecutive_failures + 1 >= ? THEN ? ELSE active END",
			deactivateAfter, false,
		)
	}
	result, err := query.Exec(ctx)
	if err != nil {
		return core.WebhookEndpoint{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.WebhookEndpoint{}, err
	}
	if affected == 0 {
		return core.WebhookEndpoint{}, fmt.Errorf("%w: %s", core.ErrEndpointNotFound, endpointID)
	}
	return s.Get(ctx, endpointID)
}

func (s *EndpointStore) ResetFailureStreak(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	endpointID := strings.TrimSpace(id)
	if endpointID == "" {
		return fmt.Errorf("sqlstore: endpoint id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*endpointRecord)(nil)).
		Set("consecutive_failures = 0").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", endpointID).
		Where("consecutive_failures > 0").
		Exec(ctx)
	return err
}

var _ core.EndpointStore = (*EndpointStore)(nil)
