package payment

import (
	"context"

	"carshare/internal/domain"
	"carshare/internal/domain/wallet"
)

type bookingReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
}

type paymentReader interface {
	GetByBookingID(ctx context.Context, bookingID int64) (*domain.Payment, error)
}

type holdReader interface {
	GetHold(ctx context.Context, userID int64, referenceID string) (*wallet.Hold, error)
}
