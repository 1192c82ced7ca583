package booking

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"carshare/internal/domain"
	"carshare/internal/domain/wallet"
)

// fakeBookings is an in-memory BookingRepository with the same conditional
// update semantics as the gorm one.
type fakeBookings struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.Booking

	// conflicts makes the next n UpdateStatus calls lose the race.
	conflicts   int
	updateCalls int
	// failTo forces an error for writes targeting a status.
	failTo map[domain.BookingStatus]error
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{rows: map[int64]domain.Booking{}, failTo: map[domain.BookingStatus]error{}}
}

func (f *fakeBookings) Create(_ context.Context, b *domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	f.rows[b.ID] = *b
	return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (f *fakeBookings) ListForUser(_ context.Context, userID int64, _, _ int) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.rows {
		if b.RenterID == userID || b.OwnerID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookings) UpdateStatus(_ context.Context, id int64, from, to domain.BookingStatus, changes domain.BookingChanges) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if err := f.failTo[to]; err != nil {
		return err
	}
	if f.conflicts > 0 {
		f.conflicts--
		return domain.ErrConcurrentModification
	}
	b, ok := f.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Status != from {
		return domain.ErrConcurrentModification
	}
	b.Status = to
	changes.Apply(&b)
	f.rows[id] = b
	return nil
}

func (f *fakeBookings) put(b domain.Booking) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	f.rows[b.ID] = b
	return b.ID
}

func (f *fakeBookings) status(id int64) domain.BookingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Status
}

type fakeCars struct {
	cars        map[int64]domain.Car
	unavailable bool
}

func (f *fakeCars) GetCar(_ context.Context, id int64) (*domain.Car, error) {
	c, ok := f.cars[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCars) IsAvailable(context.Context, int64, time.Time, time.Time) (bool, error) {
	return !f.unavailable, nil
}

type fakePayments struct {
	mu   sync.Mutex
	rows map[int64]domain.Payment
}

func newFakePayments() *fakePayments {
	return &fakePayments{rows: map[int64]domain.Payment{}}
}

func (f *fakePayments) Create(_ context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[p.BookingID] = *p
	return nil
}

func (f *fakePayments) GetByBookingID(_ context.Context, bookingID int64) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[bookingID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (f *fakePayments) UpdateStatus(_ context.Context, bookingID int64, status domain.PaymentStatus, refunded int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[bookingID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	p.RefundedCents = refunded
	f.rows[bookingID] = p
	return nil
}

func (f *fakePayments) status(bookingID int64) domain.PaymentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[bookingID].Status
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Hold(ctx context.Context, userID, amount int64, referenceType, referenceID string) (*wallet.Result, error) {
	args := m.Called(ctx, userID, amount, referenceType, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Result), args.Error(1)
}

func (m *MockLedger) Release(ctx context.Context, userID, amount int64, referenceID string) (*wallet.Result, error) {
	args := m.Called(ctx, userID, amount, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Result), args.Error(1)
}

func (m *MockLedger) Capture(ctx context.Context, payerID, amount int64, referenceID string, recipientID int64) (*wallet.Result, error) {
	args := m.Called(ctx, payerID, amount, referenceID, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Result), args.Error(1)
}

func (m *MockLedger) Settle(ctx context.Context, payerID int64, referenceID string, releaseAmount, captureAmount, recipientID int64) (*wallet.Result, error) {
	args := m.Called(ctx, payerID, referenceID, releaseAmount, captureAmount, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Result), args.Error(1)
}

type MockNotificationSender struct {
	mock.Mock
}

func (m *MockNotificationSender) NotifyBookingConfirmed(ctx context.Context, renterID, bookingID int64, start time.Time) error {
	args := m.Called(ctx, renterID, bookingID, start)
	return args.Error(0)
}

func (m *MockNotificationSender) NotifyBookingCancelled(ctx context.Context, userID, bookingID, refundCents int64, reason string) error {
	args := m.Called(ctx, userID, bookingID, refundCents, reason)
	return args.Error(0)
}

func (m *MockNotificationSender) NotifyPayoutReceived(ctx context.Context, ownerID, bookingID, amountCents int64) error {
	args := m.Called(ctx, ownerID, bookingID, amountCents)
	return args.Error(0)
}
