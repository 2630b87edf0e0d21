package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const minWebhookSecretLength = 16

func (s *Service) RegisterEndpoint(ctx context.Context, in CreateEndpointInput) (WebhookEndpoint, error) {
	startedAt := s.now()
	endpoint, err := s.registerEndpoint(ctx, in)
	s.observeOperation(ctx, startedAt, "endpoint_register", err, map[string]any{
		"merchant_ref": in.MerchantRef,
		"endpoint_id":  endpoint.ID,
	})
	if err != nil {
		return WebhookEndpoint{}, s.mapError(err)
	}
	return endpoint, nil
}

func (s *Service) registerEndpoint(ctx context.Context, in CreateEndpointInput) (WebhookEndpoint, error) {
	if s == nil || s.endpoints == nil {
		return WebhookEndpoint{}, fmt.Errorf("core: endpoint store is not configured")
	}
	in.MerchantRef = strings.TrimSpace(in.MerchantRef)
	in.URL = strings.TrimSpace(in.URL)
	in.Secret = strings.TrimSpace(in.Secret)
	if in.MerchantRef == "" {
		return WebhookEndpoint{}, goerrors.NewValidation("endpoint merchant reference is required",
			goerrors.FieldError{Field: "merchant_ref", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}
	if err := validateEndpointURL(in.URL); err != nil {
		return WebhookEndpoint{}, goerrors.NewValidation("endpoint url is invalid",
			goerrors.FieldError{Field: "url", Message: err.Error()},
		).WithTextCode(PaymentErrorBadInput)
	}
	if len(in.Secret) < minWebhookSecretLength {
		return WebhookEndpoint{}, goerrors.NewValidation("endpoint secret is too short",
			goerrors.FieldError{Field: "secret", Message: fmt.Sprintf("must be at least %d characters", minWebhookSecretLength)},
		).WithTextCode(PaymentErrorBadInput)
	}

	cleaned := make([]string, 0, len(in.EventTypes))
	for _, eventType := range in.EventTypes {
		trimmed := strings.TrimSpace(eventType)
		if trimmed == "" {
			continue
		}
		if !IsKnownEventType(trimmed) {
			return WebhookEndpoint{}, goerrors.NewValidation("endpoint subscription is invalid",
				goerrors.FieldError{Field: "event_types", Message: fmt.Sprintf("unknown event type %q", trimmed)},
			).WithTextCode(PaymentErrorBadInput)
		}
		cleaned = append(cleaned, trimmed)
	}
	in.EventTypes = cleaned

	return s.endpoints.Create(ctx, in)
}

func validateEndpointURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func (s *Service) GetEndpoint(ctx context.Context, id string) (WebhookEndpoint, error) {
	if s == nil || s.endpoints == nil {
		return WebhookEndpoint{}, s.mapError(fmt.Errorf("core: endpoint store is not configured"))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return WebhookEndpoint{}, s.mapError(goerrors.NewValidation("endpoint id is required",
			goerrors.FieldError{Field: "id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput))
	}
	endpoint, err := s.endpoints.Get(ctx, id)
	if err != nil {
		return WebhookEndpoint{}, s.mapError(err)
	}
	return endpoint, nil
}

func (s *Service) ListEndpoints(ctx context.Context, merchantRef string) ([]WebhookEndpoint, error) {
	if s == nil || s.endpoints == nil {
		return nil, s.mapError(fmt.Errorf("core: endpoint store is not configured"))
	}
	merchantRef = strings.TrimSpace(merchantRef)
	if merchantRef == "" {
		return nil, s.mapError(goerrors.NewValidation("merchant reference is required",
			goerrors.FieldError{Field: "merchant_ref", Message: "required"},
		).WithTextCode(PaymentErrorBadInput))
	}
	endpoints, err := s.endpoints.ListByMerchant(ctx, merchantRef)
	if err != nil {
		return nil, s.mapError(err)
	}
	return endpoints, nil
}

func (s *Service) SetEndpointActive(ctx context.Context, id string, active bool) error {
	startedAt := s.now()
	err := s.setEndpointActive(ctx, id, active)
	s.observeOperation(ctx, startedAt, "endpoint_set_active", err, map[string]any{
		"endpoint_id": id,
		"active":      active,
	})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) setEndpointActive(ctx context.Context, id string, active bool) error {
	if s == nil || s.endpoints == nil {
		return fmt.Errorf("core: endpoint store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return goerrors.NewValidation("endpoint id is required",
			goerrors.FieldError{Field: "id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}
	if err := s.endpoints.SetActive(ctx, id, active); err != nil {
		return err
	}
	// Re-enabling clears the failure streak so one stale failure short of
	// the limit cannot immediately deactivate the endpoint again.
	if active {
		return s.endpoints.ResetFailureStreak(ctx, id)
	}
	return nil
}

func (s *Service) EnableEndpoint(ctx context.Context, id string) error {
	return s.SetEndpointActive(ctx, id, true)
}

func (s *Service) DisableEndpoint(ctx context.Context, id string) error {
	return s.SetEndpointActive(ctx, id, false)
}

// ReplayEvent resets a terminally failed event for redelivery on the next
// dispatcher pass.
func (s *Service) ReplayEvent(ctx context.Context, eventID string) (WebhookEvent, error) {
	startedAt := s.now()
	event, err := s.replayEvent(ctx, eventID)
	s.observeOperation(ctx, startedAt, "event_replay", err, map[string]any{
		"event_id": eventID,
	})
	if err != nil {
		return WebhookEvent{}, s.mapError(err)
	}
	return event, nil
}

func (s *Service) replayEvent(ctx context.Context, eventID string) (WebhookEvent, error) {
	if s == nil || s.events == nil {
		return WebhookEvent{}, fmt.Errorf("core: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return WebhookEvent{}, goerrors.NewValidation("event id is required",
			goerrors.FieldError{Field: "event_id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput)
	}
	return s.events.Replay(ctx, eventID)
}

func (s *Service) GetEvent(ctx context.Context, eventID string) (WebhookEvent, error) {
	if s == nil || s.events == nil {
		return WebhookEvent{}, s.mapError(fmt.Errorf("core: event store is not configured"))
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return WebhookEvent{}, s.mapError(goerrors.NewValidation("event id is required",
			goerrors.FieldError{Field: "event_id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput))
	}
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return WebhookEvent{}, s.mapError(err)
	}
	return event, nil
}

func (s *Service) ListEndpointEvents(ctx context.Context, endpointID string, limit int) ([]WebhookEvent, error) {
	if s == nil || s.events == nil {
		return nil, s.mapError(fmt.Errorf("core: event store is not configured"))
	}
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return nil, s.mapError(goerrors.NewValidation("endpoint id is required",
			goerrors.FieldError{Field: "endpoint_id", Message: "required"},
		).WithTextCode(PaymentErrorBadInput))
	}
	if limit <= 0 {
		limit = 50
	}
	events, err := s.events.ListByEndpoint(ctx, endpointID, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return events, nil
}
