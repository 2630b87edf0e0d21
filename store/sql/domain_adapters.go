package sqlstore

import (
	"time"

	"github.com/goliatone/go-payments/core"
)

func paymentToDomain(record *paymentRecord) core.Payment {
	if record == nil {
		return core.Payment{}
	}
	return core.Payment{
		ID:                 record.ID,
		MerchantRef:        record.MerchantRef,
		Amount:             record.Amount,
		Currency:           record.Currency,
		Status:             core.PaymentStatus(record.Status),
		PayerAddress:       record.PayerAddress,
		MerchantAddress:    record.MerchantAddress,
		TxHash:             record.TxHash,
		SettlementDuration: time.Duration(record.SettlementSeconds) * time.Second,
		ExpiresAt:          record.ExpiresAt,
		Version:            record.Version,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}
}

func invoiceToDomain(record *invoiceRecord) core.Invoice {
	if record == nil {
		return core.Invoice{}
	}
	invoice := core.Invoice{
		ID:            record.ID,
		MerchantRef:   record.MerchantRef,
		Number:        record.Number,
		Amount:        record.Amount,
		Currency:      record.Currency,
		Status:        core.InvoiceStatus(record.Status),
		CustomerName:  record.CustomerName,
		CustomerEmail: record.CustomerEmail,
		DueDate:       record.DueDate,
		Version:       record.Version,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
	if record.PaymentID != nil {
		invoice.PaymentID = *record.PaymentID
	}
	return invoice
}

func refundToDomain(record *refundRecord) core.Refund {
	if record == nil {
		return core.Refund{}
	}
	return core.Refund{
		ID:          record.ID,
		PaymentID:   record.PaymentID,
		MerchantRef: record.MerchantRef,
		Amount:      record.Amount,
		Currency:    record.Currency,
		Status:      core.RefundStatus(record.Status),
		TxHash:      record.TxHash,
		Reason:      record.Reason,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func endpointToDomain(record *endpointRecord) core.WebhookEndpoint {
	if record == nil {
		return core.WebhookEndpoint{}
	}
	eventTypes := make([]string, len(record.EventTypes))
	copy(eventTypes, record.EventTypes)
	return core.WebhookEndpoint{
		ID:                  record.ID,
		MerchantRef:         record.MerchantRef,
		URL:                 record.URL,
		Secret:              record.Secret,
		EventTypes:          eventTypes,
		Active:              record.Active,
		ConsecutiveFailures: record.ConsecutiveFailures,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}
}

func eventToDomain(record *eventRecord) core.WebhookEvent {
	if record == nil {
		return core.WebhookEvent{}
	}
	payload := make([]byte, len(record.Payload))
	copy(payload, record.Payload)
	return core.WebhookEvent{
		ID:             record.ID,
		EndpointID:     record.EndpointID,
		EventType:      record.EventType,
		IdempotencyKey: record.IdempotencyKey,
		Payload:        payload,
		Status:         core.EventStatus(record.Status),
		Attempts:       record.Attempts,
		LastAttemptAt:  record.LastAttemptAt,
		NextAttemptAt:  record.NextAttemptAt,
		ClaimedAt:      record.ClaimedAt,
		ResponseCode:   record.ResponseCode,
		ResponseBody:   record.ResponseBody,
		LastError:      record.LastError,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}
