package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-payments/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const endpointFanoutCacheKeyPrefix = "go-payments::endpoint_fanout::v1"

// CachedEndpointStore caches the fan-out read path. Every transition calls
// ListActiveByEventType, while endpoint registrations and status flips are
// rare, so the subscriber list is cached and invalidated on any write.
type CachedEndpointStore struct {
	base  core.EndpointStore
	cache repositorycache.CacheService
}

func NewCachedEndpointStore(
	base core.EndpointStore,
	cacheService repositorycache.CacheService,
) (*CachedEndpointStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base endpoint store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: endpoint cache service is required")
	}
	return &CachedEndpointStore{base: base, cache: cacheService}, nil
}

// EndpointFanoutCacheKey returns the deterministic cache key for fan-out
// reads: go-payments::endpoint_fanout::v1::<merchant_ref>::<event_type>
// with each segment URL-path escaped.
func EndpointFanoutCacheKey(merchantRef string, eventType string) (string, error) {
	merchantRef = strings.TrimSpace(merchantRef)
	eventType = strings.TrimSpace(eventType)
	if merchantRef == "" {
		return "", fmt.Errorf("sqlstore: merchant ref is required for the fanout cache key")
	}
	if eventType == "" {
		return "", fmt.Errorf("sqlstore: event type is required for the fanout cache key")
	}
	segments := []string{url.PathEscape(merchantRef), url.PathEscape(eventType)}
	return strings.Join(append([]string{endpointFanoutCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedEndpointStore) ListActiveByEventType(ctx context.Context, merchantRef string, eventType string) ([]core.WebhookEndpoint, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	cacheKey, err := EndpointFanoutCacheKey(merchantRef, eventType)
	if err != nil {
		return nil, err
	}
	endpoints, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.WebhookEndpoint, error) {
		return s.base.ListActiveByEventType(ctx, merchantRef, eventType)
	})
	if err != nil {
		return nil, err
	}
	return cloneEndpoints(endpoints), nil
}

func (s *CachedEndpointStore) Create(ctx context.Context, in core.CreateEndpointInput) (core.WebhookEndpoint, error) {
	if s == nil || s.base == nil {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	endpoint, err := s.base.Create(ctx, in)
	if err != nil {
		return core.WebhookEndpoint{}, err
	}
	if err := s.invalidateMerchant(ctx, endpoint.MerchantRef); err != nil {
		return core.WebhookEndpoint{}, err
	}
	return endpoint, nil
}

func (s *CachedEndpointStore) Get(ctx context.Context, id string) (core.WebhookEndpoint, error) {
	if s == nil || s.base == nil {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	return s.base.Get(ctx, id)
}

func (s *CachedEndpointStore) ListByMerchant(ctx context.Context, merchantRef string) ([]core.WebhookEndpoint, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	return s.base.ListByMerchant(ctx, merchantRef)
}

func (s *CachedEndpointStore) SetActive(ctx context.Context, id string, active bool) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	if err := s.base.SetActive(ctx, id, active); err != nil {
		return err
	}
	return s.invalidateByEndpointID(ctx, id)
}

func (s *CachedEndpointStore) RecordDeliveryFailure(ctx context.Context, id string, deactivateAfter int) (core.WebhookEndpoint, error) {
	if s == nil || s.base == nil {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	endpoint, err := s.base.RecordDeliveryFailure(ctx, id, deactivateAfter)
	if err != nil {
		return core.WebhookEndpoint{}, err
	}
	// Only deactivation changes fan-out membership.
	if !endpoint.Active {
		if err := s.invalidateMerchant(ctx, endpoint.MerchantRef); err != nil {
			return core.WebhookEndpoint{}, err
		}
	}
	return endpoint, nil
}

func (s *CachedEndpointStore) ResetFailureStreak(ctx context.Context, id string) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	return s.base.ResetFailureStreak(ctx, id)
}

func (s *CachedEndpointStore) invalidateByEndpointID(ctx context.Context, id string) error {
	endpoint, err := s.base.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.invalidateMerchant(ctx, endpoint.MerchantRef)
}

// invalidateMerchant drops every fan-out entry for a merchant. Event type
// vocabulary is small and fixed, so per-type deletes stay cheap.
func (s *CachedEndpointStore) invalidateMerchant(ctx context.Context, merchantRef string) error {
	if s.cache == nil {
		return nil
	}
	for _, eventType := range core.KnownEventTypes() {
		cacheKey, err := EndpointFanoutCacheKey(merchantRef, eventType)
		if err != nil {
			return err
		}
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return err
		}
	}
	return nil
}

func cloneEndpoints(endpoints []core.WebhookEndpoint) []core.WebhookEndpoint {
	cloned := make([]core.WebhookEndpoint, len(endpoints))
	for i, endpoint := range endpoints {
		cloned[i] = endpoint
		cloned[i].EventTypes = append([]string(nil), endpoint.EventTypes...)
	}
	return cloned
}

var _ core.EndpointStore = (*CachedEndpointStore)(nil)
