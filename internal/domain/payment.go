package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSucceeded  PaymentStatus = "succeeded"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// Payment mirrors the charge behind a booking. Refunds change its status
// rather than creating a new record.
type Payment struct {
	ID            uuid.UUID     `json:"id"`
	BookingID     int64         `json:"booking_id"`
	PayerID       int64         `json:"payer_id"`
	AmountCents   int64         `json:"amount_cents"`
	RefundedCents int64         `json:"refunded_cents"`
	Status        PaymentStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
