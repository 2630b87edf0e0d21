package ratelimit

import (
	"testing"
	"time"

	"github.com/goliatone/go-payments/core"
)

func TestThrottledError_ToPaymentError(t *testing.T) {
	err := ThrottledError{
		EndpointID: "ep_1",
		BucketKey:  "webhook",
		RetryAfter: 3 * time.Second,
	}

	mapped := err.ToPaymentError()
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.TextCode != core.PaymentErrorDeliveryThrottled {
		t.Fatalf("expected %q text code, got %q", core.PaymentErrorDeliveryThrottled, mapped.TextCode)
	}
	if mapped.Code != 429 {
		t.Fatalf("expected status code 429, got %d", mapped.Code)
	}
}
