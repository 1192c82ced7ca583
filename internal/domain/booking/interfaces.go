package booking

import (
	"context"
	"time"

	"carshare/internal/domain"
	"carshare/internal/domain/wallet"
)

// BookingRepository defines the interface for booking persistence
type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	ListForUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error)
	// UpdateStatus applies only while the stored status equals from and
	// returns domain.ErrConcurrentModification otherwise.
	UpdateStatus(ctx context.Context, id int64, from, to domain.BookingStatus, changes domain.BookingChanges) error
}

type CarCatalog interface {
	GetCar(ctx context.Context, id int64) (*domain.Car, error)
	IsAvailable(ctx context.Context, carID int64, start, end time.Time) (bool, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByBookingID(ctx context.Context, bookingID int64) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, bookingID int64, status domain.PaymentStatus, refundedCents int64) error
}

// Ledger is the subset of the wallet service the booking flow moves money with.
type Ledger interface {
	Hold(ctx context.Context, userID, amount int64, referenceType, referenceID string) (*wallet.Result, error)
	Release(ctx context.Context, userID, amount int64, referenceID string) (*wallet.Result, error)
	Capture(ctx context.Context, payerID, amount int64, referenceID string, recipientID int64) (*wallet.Result, error)
	Settle(ctx context.Context, payerID int64, referenceID string, releaseAmount, captureAmount, recipientID int64) (*wallet.Result, error)
}

type NotificationSender interface {
	NotifyBookingConfirmed(ctx context.Context, renterID, bookingID int64, start time.Time) error
	NotifyBookingCancelled(ctx context.Context, userID, bookingID, refundCents int64, reason string) error
	NotifyPayoutReceived(ctx context.Context, ownerID, bookingID, amountCents int64) error
}
