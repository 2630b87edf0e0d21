package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

type WebhookDispatcherConfig struct {
	BatchSize         int
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	VisibilityTimeout time.Duration
	Concurrency       int
	RequestTimeout    time.Duration
	SignatureHeader   string
	EventIDHeader     string
	// FailureLimit mirrors Config.Webhooks.FailureLimit: the terminal
	// failure streak that deactivates an endpoint.
	FailureLimit     int
	MaxResponseBytes int
}

func DefaultWebhookDispatcherConfig() WebhookDispatcherConfig {
	return WebhookDispatcherConfig{
		BatchSize:         50,
		MaxAttempts:       5,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        5 * time.Minute,
		VisibilityTimeout: 2 * time.Minute,
		Concurrency:       4,
		RequestTimeout:    10 * time.Second,
		SignatureHeader:   "X-Payments-Signature",
		EventIDHeader:     "X-Payments-Event-Id",
		FailureLimit:      10,
		MaxResponseBytes:  2048,
	}
}

// nonRetryableStatus marks responses that signal a permanent endpoint
// problem: retrying cannot succeed without operator intervention, so the
// event fails terminally on the first such response.
func nonRetryableStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusGone:
		return true
	default:
		return false
	}
}

type WebhookDispatcher struct {
	events    EventStore
	endpoints EndpointStore
	signer    WebhookSigner
	client    *http.Client
	logger    Logger
	throttle  DeliveryThrottle
	config    WebhookDispatcherConfig
	now       func() time.Time
	jitter    func() float64
}

type DispatcherOption func(*WebhookDispatcher)

func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *WebhookDispatcher) {
		d.logger = logger
	}
}

func WithDispatcherHTTPClient(client *http.Client) DispatcherOption {
	return func(d *WebhookDispatcher) {
		d.client = client
	}
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *WebhookDispatcher) {
		d.now = now
	}
}

func WithDispatcherJitter(jitter func() float64) DispatcherOption {
	return func(d *WebhookDispatcher) {
		d.jitter = jitter
	}
}

// WithDispatcherThrottle gates deliveries through a per-endpoint throttle so
// receivers that answer 429 or Retry-After get backpressure instead of the
// regular failure path.
func WithDispatcherThrottle(throttle DeliveryThrottle) DispatcherOption {
	return func(d *WebhookDispatcher) {
		d.throttle = throttle
	}
}

func NewWebhookDispatcher(
	events EventStore,
	endpoints EndpointStore,
	signer WebhookSigner,
	config WebhookDispatcherConfig,
	options ...DispatcherOption,
) (*WebhookDispatcher, error) {
	if events == nil {
		return nil, fmt.Errorf("core: event store is required")
	}
	if endpoints == nil {
		return nil, fmt.Errorf("core: endpoint store is required")
	}
	if signer == nil {
		signer = HMACSigner{}
	}
	defaults := DefaultWebhookDispatcherConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = defaults.VisibilityTimeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if strings.TrimSpace(config.SignatureHeader) == "" {
		config.SignatureHeader = defaults.SignatureHeader
	}
	if strings.TrimSpace(config.EventIDHeader) == "" {
		config.EventIDHeader = defaults.EventIDHeader
	}
	if config.MaxResponseBytes <= 0 {
		config.MaxResponseBytes = defaults.MaxResponseBytes
	}

	dispatcher := &WebhookDispatcher{
		events:    events,
		endpoints: endpoints,
		signer:    signer,
		config:    config,
		now: func() time.Time {
			return time.Now().UTC()
		},
		jitter: rand.Float64,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(dispatcher)
	}
	if dispatcher.client == nil {
		dispatcher.client = &http.Client{Timeout: config.RequestTimeout}
	}
	return dispatcher, nil
}

// Run drives periodic dispatch until the context is cancelled. Claim
// eligibility encodes all backoff, so the loop never sleeps on an event.
func (d *WebhookDispatcher) Run(ctx context.Context, interval time.Duration) error {
	if d == nil {
		return fmt.Errorf("core: webhook dispatcher is not configured")
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DispatchPending(ctx, 0); err != nil {
				d.logDispatchError(ctx, err)
			}
		}
	}
}

func (d *WebhookDispatcher) DispatchPending(ctx context.Context, batchSize int) (DispatchStats, error) {
	if d == nil || d.events == nil {
		return DispatchStats{}, fmt.Errorf("core: webhook dispatcher is not configured")
	}
	limit := batchSize
	if limit <= 0 {
		limit = d.config.BatchSize
	}
	claimed, err := d.events.ClaimNextDeliverable(ctx, limit, d.now(), d.config.VisibilityTimeout)
	if err != nil {
		return DispatchStats{}, err
	}

	stats := DispatchStats{Claimed: len(claimed)}
	var (
		mu          sync.Mutex
		dispatchErr error
		wg          sync.WaitGroup
	)
	sem := make(chan struct{}, d.config.Concurrency)

	for _, event := range claimed {
		if ctx.Err() != nil {
			if releaseErr := d.events.Release(ctx, event.ID); releaseErr != nil {
				mu.Lock()
				dispatchErr = joinErrors(dispatchErr, releaseErr)
				mu.Unlock()
			}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(event WebhookEvent) {
			defer wg.Done()
			defer func() { <-sem }()
			outcome, throttled, err := d.deliverOne(ctx, event)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				dispatchErr = joinErrors(dispatchErr, err)
				return
			}
			switch {
			case throttled:
				stats.Throttled++
			case outcome.Status == EventStatusDelivered:
				stats.Delivered++
			case outcome.NextAttemptAt != nil:
				stats.Retried++
			default:
				stats.Failed++
			}
		}(event)
	}
	wg.Wait()

	return stats, dispatchErr
}

// deliveryBucketKey is the throttle bucket shared by all webhook deliveries
// to one endpoint.
const deliveryBucketKey = "webhook"

// deliverOne performs a single attempt for a claimed event and records the
// outcome. Delivery results never touch payment or invoice state. The bool
// result reports a throttled release, which consumes no attempt.
func (d *WebhookDispatcher) deliverOne(ctx context.Context, event WebhookEvent) (AttemptOutcome, bool, error) {
	now := d.now()
	attempt := event.Attempts + 1

	endpoint, err := d.endpoints.Get(ctx, event.EndpointID)
	if err != nil {
		outcome := d.failureOutcome(event, attempt, now, 0, "", fmt.Sprintf("load endpoint: %v", err))
		return outcome, false, d.recordOutcome(ctx, event, endpoint, outcome)
	}
	if !endpoint.Active {
		outcome := AttemptOutcome{
			Status:      EventStatusFailed,
			Error:       "endpoint is disabled",
			AttemptedAt: now,
		}
		return outcome, false, d.recordOutcome(ctx, event, endpoint, outcome)
	}

	throttleKey := DeliveryRateKey{EndpointID: endpoint.ID, BucketKey: deliveryBucketKey}
	if d.throttle != nil {
		if throttleErr := d.throttle.BeforeDeliver(ctx, throttleKey); throttleErr != nil {
			var backoff interface{ ThrottleDelay() time.Duration }
			if !errors.As(throttleErr, &backoff) {
				return AttemptOutcome{}, false, throttleErr
			}
			if releaseErr := d.events.Release(ctx, event.ID); releaseErr != nil {
				return AttemptOutcome{}, false, releaseErr
			}
			d.logDeliveryThrottled(ctx, event, backoff.ThrottleDelay())
			return AttemptOutcome{}, true, nil
		}
	}

	body, err := BuildEnvelope(event)
	if err != nil {
		outcome := AttemptOutcome{
			Status:      EventStatusFailed,
			Error:       err.Error(),
			AttemptedAt: now,
		}
		return outcome, false, d.recordOutcome(ctx, event, endpoint, outcome)
	}
	signature, err := d.signer.Sign(endpoint.Secret, body)
	if err != nil {
		outcome := AttemptOutcome{
			Status:      EventStatusFailed,
			Error:       err.Error(),
			AttemptedAt: now,
		}
		return outcome, false, d.recordOutcome(ctx, event, endpoint, outcome)
	}

	code, responseBody, responseHeaders, postErr := d.post(ctx, endpoint.URL, body, signature, event.ID)
	if d.throttle != nil && postErr == nil {
		if afterErr := d.throttle.AfterDeliver(ctx, throttleKey, DeliveryResponseMeta{
			StatusCode: code,
			Headers:    responseHeaders,
		}); afterErr != nil {
			d.logDispatchError(ctx, afterErr)
		}
	}

	var outcome AttemptOutcome
	switch {
	case postErr != nil:
		outcome = d.failureOutcome(event, attempt, now, 0, "", postErr.Error())
	case code >= 200 && code < 300:
		outcome = AttemptOutcome{
			Status:       EventStatusDelivered,
			ResponseCode: code,
			ResponseBody: responseBody,
			AttemptedAt:  now,
		}
	case nonRetryableStatus(code):
		outcome = AttemptOutcome{
			Status:       EventStatusFailed,
			ResponseCode: code,
			ResponseBody: responseBody,
			Error:        fmt.Sprintf("non-retryable response %d", code),
			AttemptedAt:  now,
		}
	default:
		outcome = d.failureOutcome(event, attempt, now, code, responseBody, fmt.Sprintf("response %d", code))
	}

	return outcome, false, d.recordOutcome(ctx, event, endpoint, outcome)
}

// failureOutcome schedules a retry unless the attempt budget is spent.
func (d *WebhookDispatcher) failureOutcome(
	event WebhookEvent,
	attempt int,
	now time.Time,
	code int,
	responseBody string,
	cause string,
) AttemptOutcome {
	outcome := AttemptOutcome{
		Status:       EventStatusFailed,
		ResponseCode: code,
		ResponseBody: responseBody,
		Error:        cause,
		AttemptedAt:  now,
	}
	if attempt < d.config.MaxAttempts {
		next := now.Add(d.nextBackoffDelay(attempt))
		outcome.NextAttemptAt = &next
	}
	return outcome
}

func (d *WebhookDispatcher) recordOutcome(
	ctx context.Context,
	event WebhookEvent,
	endpoint WebhookEndpoint,
	outcome AttemptOutcome,
) error {
	if err := d.events.RecordAttempt(ctx, event.ID, outcome); err != nil {
		return err
	}
	endpointID := strings.TrimSpace(endpoint.ID)
	if endpointID == "" {
		endpointID = strings.TrimSpace(event.EndpointID)
	}
	switch {
	case outcome.Status == EventStatusDelivered:
		if err := d.endpoints.ResetFailureStreak(ctx, endpointID); err != nil {
			return err
		}
	case outcome.NextAttemptAt == nil:
		updated, err := d.endpoints.RecordDeliveryFailure(ctx, endpointID, d.config.FailureLimit)
		if err != nil {
			return err
		}
		if !updated.Active && endpoint.Active {
			d.logEndpointDeactivated(ctx, updated)
		}
	}
	return nil
}

func (d *WebhookDispatcher) post(
	ctx context.Context,
	url string,
	body []byte,
	signature string,
	eventID string,
) (int, string, map[string]string, error) {
	requestCtx, cancel := context.WithTimeout(ctx, d.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(d.config.SignatureHeader, signature)
	req.Header.Set(d.config.EventIDHeader, eventID)

	res, err := d.client.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer func() { _ = res.Body.Close() }()

	limited := io.LimitReader(res.Body, int64(d.config.MaxResponseBytes))
	responseBody, _ := io.ReadAll(limited)
	return res.StatusCode, string(responseBody), flattenHeaders(res.Header), nil
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		out[key] = values[0]
	}
	return out
}

func (d *WebhookDispatcher) nextBackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(d.config.InitialBackoff)
	multiplier := math.Pow(2, float64(attempt-1))
	next := time.Duration(base * multiplier)
	if next < 0 || next > d.config.MaxBackoff {
		next = d.config.MaxBackoff
	}
	if d.jitter == nil {
		return next
	}
	// Half fixed, half random, so retries across endpoints spread out
	// without ever collapsing below InitialBackoff/2.
	half := next / 2
	return half + time.Duration(d.jitter()*float64(half))
}

func (d *WebhookDispatcher) logDispatchError(ctx context.Context, err error) {
	if d == nil || d.logger == nil || err == nil {
		return
	}
	logger := d.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Error("webhook dispatch failed", "error", err.Error())
}

func (d *WebhookDispatcher) logDeliveryThrottled(ctx context.Context, event WebhookEvent, delay time.Duration) {
	if d == nil || d.logger == nil {
		return
	}
	logger := d.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Debug("webhook delivery throttled",
		"event_id", event.ID,
		"endpoint_id", event.EndpointID,
		"retry_after", delay.String(),
	)
}

func (d *WebhookDispatcher) logEndpointDeactivated(ctx context.Context, endpoint WebhookEndpoint) {
	if d == nil || d.logger == nil {
		return
	}
	logger := d.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Error("webhook endpoint deactivated after failure streak",
		"endpoint_id", endpoint.ID,
		"merchant_ref", endpoint.MerchantRef,
		"consecutive_failures", endpoint.ConsecutiveFailures,
	)
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}

var _ EventDispatcher = (*WebhookDispatcher)(nil)
