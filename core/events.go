package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Envelope is the wire format delivered to webhook endpoints. Payload is
// the entity snapshot frozen when the transition committed; later entity
// changes never alter an enqueued event.
type Envelope struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
}

// BuildEnvelope marshals the delivery body for an event. Signatures are
// computed over these exact bytes.
func BuildEnvelope(event WebhookEvent) ([]byte, error) {
	if strings.TrimSpace(event.ID) == "" {
		return nil, fmt.Errorf("core: event id is required to build an envelope")
	}
	if len(event.Payload) == 0 {
		return nil, fmt.Errorf("core: event %s has no payload", event.ID)
	}
	return json.Marshal(Envelope{
		ID:        event.ID,
		EventType: event.EventType,
		Payload:   json.RawMessage(event.Payload),
		Timestamp: event.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// EventIdempotencyKey derives the deduplication key for an event emitted
// by a state change. The version component is the entity revision that
// produced the event, so legitimate re-emissions (a replayed lifecycle on
// a later revision) get distinct keys while duplicate processing of the
// same transition collapses.
func EventIdempotencyKey(entityID string, eventType string, endpointID string, revision int) string {
	return fmt.Sprintf("%s::%s::%s::v%d", strings.TrimSpace(entityID), strings.TrimSpace(eventType), strings.TrimSpace(endpointID), revision)
}

type paymentEventPayload struct {
	PaymentID          string `json:"paymentId"`
	MerchantRef        string `json:"merchantRef"`
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
	Status             string `json:"status"`
	PayerAddress       string `json:"payerAddress,omitempty"`
	MerchantAddress    string `json:"merchantAddress,omitempty"`
	TxHash             string `json:"txHash,omitempty"`
	SettlementDuration int64  `json:"settlementDurationSeconds,omitempty"`
	ExpiresAt          string `json:"expiresAt,omitempty"`
	CreatedAt          string `json:"createdAt"`
}

// MarshalPaymentEvent freezes a payment snapshot for webhook delivery.
// Amounts serialize as decimal strings.
func MarshalPaymentEvent(payment Payment) ([]byte, error) {
	snapshot := paymentEventPayload{
		PaymentID:          payment.ID,
		MerchantRef:        payment.MerchantRef,
		Amount:             payment.Amount.String(),
		Currency:           payment.Currency,
		Status:             string(payment.Status),
		PayerAddress:       payment.PayerAddress,
		MerchantAddress:    payment.MerchantAddress,
		TxHash:             payment.TxHash,
		SettlementDuration: int64(payment.SettlementDuration / time.Second),
		CreatedAt:          payment.CreatedAt.UTC().Format(time.RFC3339),
	}
	if payment.ExpiresAt != nil {
		snapshot.ExpiresAt = payment.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(snapshot)
}

type invoiceEventPayload struct {
	InvoiceID     string `json:"invoiceId"`
	MerchantRef   string `json:"merchantRef"`
	Number        string `json:"invoiceNumber"`
	PaymentID     string `json:"paymentId,omitempty"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	CustomerName  string `json:"customerName,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	DueDate       string `json:"dueDate,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

func MarshalInvoiceEvent(invoice Invoice) ([]byte, error) {
	snapshot := invoiceEventPayload{
		InvoiceID:     invoice.ID,
		MerchantRef:   invoice.MerchantRef,
		Number:        invoice.Number,
		PaymentID:     invoice.PaymentID,
		Amount:        invoice.Amount.String(),
		Currency:      invoice.Currency,
		Status:        string(invoice.Status),
		CustomerName:  invoice.CustomerName,
		CustomerEmail: invoice.CustomerEmail,
		CreatedAt:     invoice.CreatedAt.UTC().Format(time.RFC3339),
	}
	if invoice.DueDate != nil {
		snapshot.DueDate = invoice.DueDate.UTC().Format(time.RFC3339)
	}
	return json.Marshal(snapshot)
}
