package core

import (
	"context"
	"time"
)

// DeliveryRateKey identifies a throttling bucket for outbound webhook
// deliveries. BucketKey separates traffic classes to the same endpoint.
type DeliveryRateKey struct {
	EndpointID string
	BucketKey  string
}

// DeliveryResponseMeta carries the receiver's rate-limit signals back to the
// throttle after an attempt.
type DeliveryResponseMeta struct {
	StatusCode int
	Headers    map[string]string
	RetryAfter *time.Duration
	Metadata   map[string]any
}

// DeliveryThrottle gates outbound deliveries per endpoint. BeforeDeliver
// returns an error carrying ThrottleDelay() while the bucket is closed;
// AfterDeliver feeds the receiver's response back into the throttle state.
type DeliveryThrottle interface {
	BeforeDeliver(ctx context.Context, key DeliveryRateKey) error
	AfterDeliver(ctx context.Context, key DeliveryRateKey, res DeliveryResponseMeta) error
}
