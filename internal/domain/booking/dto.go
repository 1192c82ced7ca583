package booking

import (
	"time"

	"carshare/internal/domain"
	"carshare/internal/domain/cancellation"
	"carshare/internal/domain/pricing"
)

type QuoteRequest struct {
	CarID        int64     `json:"car_id" binding:"required,gt=0"`
	StartDate    time.Time `json:"start_date" binding:"required"`
	EndDate      time.Time `json:"end_date" binding:"required"`
	Insurance    string    `json:"insurance"`
	ExtraDrivers int       `json:"extra_drivers" binding:"gte=0,lte=4"`
	Extras       []string  `json:"extras"`
	PromoCode    string    `json:"promo_code"`
}

type CreateBookingRequest struct {
	QuoteRequest
}

type CompleteBookingRequest struct {
	ExtraChargeCents int64 `json:"extra_charge_cents" binding:"gte=0"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type CreateResult struct {
	Booking *domain.Booking `json:"booking"`
	Quote   *pricing.Quote  `json:"quote"`
}

// CompleteResult reports the main settlement and, separately, the extra
// charge. ExtraChargeErr is set when the extra charge could not be taken;
// the main settlement stands regardless.
type CompleteResult struct {
	Booking          *domain.Booking `json:"booking"`
	PayoutCents      int64           `json:"payout_cents"`
	ExtraChargeCents int64           `json:"extra_charge_cents"`
	ExtraChargeErr   error           `json:"-"`
}

type CancelResult struct {
	Booking  *domain.Booking       `json:"booking"`
	Decision cancellation.Decision `json:"decision"`
}
