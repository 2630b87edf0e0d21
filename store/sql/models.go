package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type paymentRecord struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID                string          `bun:"id,pk"`
	MerchantRef       string          `bun:"merchant_ref,notnull"`
	Amount            decimal.Decimal `bun:"amount,notnull,type:numeric"`
	Currency          string          `bun:"currency,notnull"`
	Status            string          `bun:"status,notnull"`
	PayerAddress      string          `bun:"payer_address"`
	MerchantAddress   string          `bun:"merchant_address"`
	TxHash            string          `bun:"tx_hash"`
	SettlementSeconds int64           `bun:"settlement_seconds,notnull"`
	ExpiresAt         *time.Time      `bun:"expires_at,nullzero"`
	Version           int             `bun:"version,notnull"`
	CreatedAt         time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type invoiceRecord struct {
	bun.BaseModel `bun:"table:payment_invoices,alias:pi"`

	ID            string          `bun:"id,pk"`
	MerchantRef   string          `bun:"merchant_ref,notnull"`
	Number        string          `bun:"invoice_number,notnull"`
	PaymentID     *string         `bun:"payment_id"`
	Amount        decimal.Decimal `bun:"amount,notnull,type:numeric"`
	Currency      string          `bun:"currency,notnull"`
	Status        string          `bun:"status,notnull"`
	CustomerName  string          `bun:"customer_name"`
	CustomerEmail string          `bun:"customer_email"`
	DueDate       *time.Time      `bun:"due_date,nullzero"`
	Version       int             `bun:"version,notnull"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type refundRecord struct {
	bun.BaseModel `bun:"table:payment_refunds,alias:pr"`

	ID          string          `bun:"id,pk"`
	PaymentID   string          `bun:"payment_id,notnull"`
	MerchantRef string          `bun:"merchant_ref,notnull"`
	Amount      decimal.Decimal `bun:"amount,notnull,type:numeric"`
	Currency    string          `bun:"currency,notnull"`
	Status      string          `bun:"status,notnull"`
	TxHash      string          `bun:"tx_hash"`
	Reason      string          `bun:"reason"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type endpointRecord struct {
	bun.BaseModel `bun:"table:payment_webhook_endpoints,alias:pwe"`

	ID                  string    `bun:"id,pk"`
	MerchantRef         string    `bun:"merchant_ref,notnull"`
	URL                 string    `bun:"url,notnull"`
	Secret              string    `bun:"secret,notnull"`
	EventTypes          []string  `bun:"event_types,type:jsonb,notnull"`
	Active              bool      `bun:"active,notnull"`
	ConsecutiveFailures int       `bun:"consecutive_failures,notnull"`
	CreatedAt           time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type eventRecord struct {
	bun.BaseModel `bun:"table:payment_webhook_events,alias:pwv"`

	ID             string     `bun:"id,pk"`
	EndpointID     string     `bun:"endpoint_id,notnull"`
	EventType      string     `bun:"event_type,notnull"`
	IdempotencyKey string     `bun:"idempotency_key,notnull"`
	Payload        []byte     `bun:"payload,notnull"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	LastAttemptAt  *time.Time `bun:"last_attempt_at,nullzero"`
	NextAttemptAt  *time.Time `bun:"next_attempt_at,nullzero"`
	ClaimedAt      *time.Time `bun:"claimed_at,nullzero"`
	ResponseCode   int        `bun:"response_code"`
	ResponseBody   string     `bun:"response_body"`
	LastError      string     `bun:"last_error"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
