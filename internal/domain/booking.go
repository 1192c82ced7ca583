package domain

import (
	"strconv"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled
	case BookingConfirmed:
		return next == BookingActive || next == BookingCancelled
	case BookingActive:
		return next == BookingCompleted
	default:
		return false
	}
}

type CancelPolicy string

const (
	CancelFlexible CancelPolicy = "flexible"
	CancelModerate CancelPolicy = "moderate"
	CancelStrict   CancelPolicy = "strict"
)

type Booking struct {
	ID                 int64         `json:"id"`
	CarID              int64         `json:"car_id"`
	RenterID           int64         `json:"renter_id"`
	OwnerID            int64         `json:"owner_id"`
	StartDate          time.Time     `json:"start_date"`
	EndDate            time.Time     `json:"end_date"`
	Status             BookingStatus `json:"status"`
	TotalPriceCents    int64         `json:"total_price_cents"`
	CancelPolicy       CancelPolicy  `json:"cancel_policy"`
	CancelledBy        *int64        `json:"cancelled_by,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	RefundCents        int64         `json:"refund_cents"`
	ExtraChargeCents   int64         `json:"extra_charge_cents"`
	ConfirmedAt        *time.Time    `json:"confirmed_at,omitempty"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// BookingChanges lists the fields a status write may set next to the status.
// Nil pointers are left untouched. The Clear flags reset the fields a
// reverted transition had written.
type BookingChanges struct {
	ConfirmedAt        *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancelledBy        *int64
	CancellationReason *string
	RefundCents        *int64
	ExtraChargeCents   *int64

	// ClearCompletion nulls completed_at.
	ClearCompletion bool
	// ClearCancellation nulls cancelled_at, cancelled_by and the reason, and
	// zeroes refund_cents.
	ClearCancellation bool
}

// Apply copies the set fields onto b.
func (c BookingChanges) Apply(b *Booking) {
	if c.ConfirmedAt != nil {
		b.ConfirmedAt = c.ConfirmedAt
	}
	if c.StartedAt != nil {
		b.StartedAt = c.StartedAt
	}
	if c.CompletedAt != nil {
		b.CompletedAt = c.CompletedAt
	}
	if c.CancelledAt != nil {
		b.CancelledAt = c.CancelledAt
	}
	if c.CancelledBy != nil {
		b.CancelledBy = c.CancelledBy
	}
	if c.CancellationReason != nil {
		b.CancellationReason = *c.CancellationReason
	}
	if c.RefundCents != nil {
		b.RefundCents = *c.RefundCents
	}
	if c.ExtraChargeCents != nil {
		b.ExtraChargeCents = *c.ExtraChargeCents
	}
	if c.ClearCompletion {
		b.CompletedAt = nil
	}
	if c.ClearCancellation {
		b.CancelledAt = nil
		b.CancelledBy = nil
		b.CancellationReason = ""
		b.RefundCents = 0
	}
}

// ReferenceID is the ledger reference a booking's hold is filed under.
func (b *Booking) ReferenceID() string {
	return BookingReference(b.ID)
}

const (
	ReferenceTypeBooking      = "booking"
	ReferenceTypeBookingExtra = "booking_extra"
)

func BookingReference(bookingID int64) string {
	return strconv.FormatInt(bookingID, 10)
}

func BookingExtraReference(bookingID int64) string {
	return strconv.FormatInt(bookingID, 10) + ":extra"
}
