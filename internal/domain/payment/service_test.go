package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carshare/internal/domain"
	"carshare/internal/domain/wallet"
)

type fakeBookings map[int64]*domain.Booking

func (f fakeBookings) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	b, ok := f[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

type fakePayments map[int64]*domain.Payment

func (f fakePayments) GetByBookingID(_ context.Context, id int64) (*domain.Payment, error) {
	p, ok := f[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type fakeHolds struct {
	holds map[string]*wallet.Hold
	err   error
}

func (f fakeHolds) GetHold(_ context.Context, _ int64, ref string) (*wallet.Hold, error) {
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.holds[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return h, nil
}

func newTestService(holdErr error) *Service {
	b := &domain.Booking{ID: 5, RenterID: 3, OwnerID: 7, Status: domain.BookingConfirmed, TotalPriceCents: 7080}
	return NewService(
		fakeBookings{5: b},
		fakePayments{5: {ID: uuid.New(), BookingID: 5, PayerID: 3, AmountCents: 7080, Status: domain.PaymentProcessing}},
		fakeHolds{
			holds: map[string]*wallet.Hold{
				domain.BookingReference(5): {UserID: 3, ReferenceID: domain.BookingReference(5), AmountCents: 7080, RemainingCents: 7080, Status: wallet.HoldActive},
			},
			err: holdErr,
		},
	)
}

func TestGetForBooking_Participants(t *testing.T) {
	svc := newTestService(nil)

	for _, actor := range []domain.Actor{
		{UserID: 3, Role: domain.RoleUser},
		{UserID: 7, Role: domain.RoleUser},
		{UserID: 99, Role: domain.RoleAdmin},
	} {
		rec, err := svc.GetForBooking(context.Background(), actor, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(7080), rec.Payment.AmountCents)
		assert.Equal(t, "confirmed", rec.BookingStatus)
		require.NotNil(t, rec.Hold)
		assert.Equal(t, int64(7080), rec.Hold.RemainingCents)
		assert.Nil(t, rec.ExtraHold)
	}
}

func TestGetForBooking_Stranger(t *testing.T) {
	_, err := newTestService(nil).GetForBooking(context.Background(), domain.Actor{UserID: 42, Role: domain.RoleUser}, 5)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGetForBooking_Missing(t *testing.T) {
	_, err := newTestService(nil).GetForBooking(context.Background(), domain.Actor{UserID: 3}, 6)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetForBooking_HoldLookupFails(t *testing.T) {
	boom := errors.New("db down")
	_, err := newTestService(boom).GetForBooking(context.Background(), domain.Actor{UserID: 3}, 5)
	assert.ErrorIs(t, err, boom)
}

func TestHandler_GetBookingPayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(newTestService(nil))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", int64(3))
		c.Set("role", "user")
		c.Next()
	})
	h.RegisterProtectedRoutes(r.Group("/"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/5/payment", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool   `json:"success"`
		Data    Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(5), body.Data.BookingID)
	assert.Equal(t, domain.PaymentProcessing, body.Data.Payment.Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/abc/payment", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
