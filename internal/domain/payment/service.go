package payment

import (
	"context"
	"errors"
	"fmt"

	"carshare/internal/domain"
	"carshare/internal/domain/wallet"
)

// HoldView is the ledger side of a booking charge.
type HoldView struct {
	ReferenceID    string            `json:"reference_id"`
	AmountCents    int64             `json:"amount_cents"`
	RemainingCents int64             `json:"remaining_cents"`
	Status         wallet.HoldStatus `json:"status"`
}

type Record struct {
	BookingID     int64           `json:"booking_id"`
	BookingStatus string          `json:"booking_status"`
	Payment       *domain.Payment `json:"payment"`
	Hold          *HoldView       `json:"hold,omitempty"`
	ExtraHold     *HoldView       `json:"extra_hold,omitempty"`
}

type Service struct {
	bookings bookingReader
	payments paymentReader
	holds    holdReader
}

func NewService(bookings bookingReader, payments paymentReader, holds holdReader) *Service {
	return &Service{bookings: bookings, payments: payments, holds: holds}
}

// GetForBooking returns the payment record and hold state behind a booking.
// Only the renter, the car owner and admins can read it.
func (s *Service) GetForBooking(ctx context.Context, actor domain.Actor, bookingID int64) (*Record, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.UserID != b.RenterID && actor.UserID != b.OwnerID {
		return nil, domain.ErrUnauthorized
	}

	p, err := s.payments.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("payment for booking %d: %w", bookingID, err)
	}

	rec := &Record{Payment: p, BookingID: b.ID, BookingStatus: string(b.Status)}
	if rec.Hold, err = s.hold(ctx, b.RenterID, b.ReferenceID()); err != nil {
		return nil, err
	}
	if rec.ExtraHold, err = s.hold(ctx, b.RenterID, domain.BookingExtraReference(b.ID)); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) hold(ctx context.Context, userID int64, ref string) (*HoldView, error) {
	h, err := s.holds.GetHold(ctx, userID, ref)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &HoldView{
		ReferenceID:    h.ReferenceID,
		AmountCents:    h.AmountCents,
		RemainingCents: h.RemainingCents,
		Status:         h.Status,
	}, nil
}
