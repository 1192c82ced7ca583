package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"carshare/internal/domain"
)

// blockingStatuses are the booking states that occupy a car's calendar.
var blockingStatuses = []string{
	string(domain.BookingPending),
	string(domain.BookingConfirmed),
	string(domain.BookingActive),
}

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type bookingModel struct {
	ID                 int64      `gorm:"column:id;primaryKey"`
	CarID              int64      `gorm:"column:car_id;index:idx_bookings_car_dates"`
	RenterID           int64      `gorm:"column:renter_id;index"`
	OwnerID            int64      `gorm:"column:owner_id;index"`
	StartDate          time.Time  `gorm:"column:start_date;index:idx_bookings_car_dates"`
	EndDate            time.Time  `gorm:"column:end_date;index:idx_bookings_car_dates"`
	Status             string     `gorm:"column:status;size:20;not null"`
	TotalPriceCents    int64      `gorm:"column:total_price_cents;not null"`
	CancelPolicy       string     `gorm:"column:cancel_policy;size:20"`
	CancelledBy        *int64     `gorm:"column:cancelled_by"`
	CancellationReason *string    `gorm:"column:cancellation_reason"`
	RefundCents        int64      `gorm:"column:refund_cents;not null;default:0"`
	ExtraChargeCents   int64      `gorm:"column:extra_charge_cents;not null;default:0"`
	ConfirmedAt        *time.Time `gorm:"column:confirmed_at"`
	StartedAt          *time.Time `gorm:"column:started_at"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (bookingModel) TableName() string { return "bookings" }

func toDomainBooking(m bookingModel) *domain.Booking {
	var reason string
	if m.CancellationReason != nil {
		reason = *m.CancellationReason
	}

	return &domain.Booking{
		ID:                 m.ID,
		CarID:              m.CarID,
		RenterID:           m.RenterID,
		OwnerID:            m.OwnerID,
		StartDate:          m.StartDate,
		EndDate:            m.EndDate,
		Status:             domain.BookingStatus(m.Status),
		TotalPriceCents:    m.TotalPriceCents,
		CancelPolicy:       domain.CancelPolicy(m.CancelPolicy),
		CancelledBy:        m.CancelledBy,
		CancellationReason: reason,
		RefundCents:        m.RefundCents,
		ExtraChargeCents:   m.ExtraChargeCents,
		ConfirmedAt:        m.ConfirmedAt,
		StartedAt:          m.StartedAt,
		CompletedAt:        m.CompletedAt,
		CancelledAt:        m.CancelledAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toBookingModel(b *domain.Booking) bookingModel {
	var reason *string
	if b.CancellationReason != "" {
		v := b.CancellationReason
		reason = &v
	}

	return bookingModel{
		ID:                 b.ID,
		CarID:              b.CarID,
		RenterID:           b.RenterID,
		OwnerID:            b.OwnerID,
		StartDate:          b.StartDate,
		EndDate:            b.EndDate,
		Status:             string(b.Status),
		TotalPriceCents:    b.TotalPriceCents,
		CancelPolicy:       string(b.CancelPolicy),
		CancelledBy:        b.CancelledBy,
		CancellationReason: reason,
		RefundCents:        b.RefundCents,
		ExtraChargeCents:   b.ExtraChargeCents,
		ConfirmedAt:        b.ConfirmedAt,
		StartedAt:          b.StartedAt,
		CompletedAt:        b.CompletedAt,
		CancelledAt:        b.CancelledAt,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

// Create inserts b after re-checking the car's calendar inside the same
// transaction. It fails with domain.ErrCarNotAvailable on overlap.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := countOverlapping(tx, b.CarID, b.StartDate, b.EndDate)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrCarNotAvailable
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		return err
	}

	*b = *toDomainBooking(m)
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var m bookingModel
	err := r.db.WithContext(ctx).First(&m, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return toDomainBooking(m), nil
}

// ListForUser returns bookings where userID is the renter or the owner, newest first.
func (r *BookingRepository) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var rows []bookingModel
	err := r.db.WithContext(ctx).
		Where("renter_id = ? OR owner_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.Booking, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainBooking(m))
	}
	return out, nil
}

// UpdateStatus moves booking id from one status to another, setting the
// given changes in the same statement. The write only applies while the
// stored status still equals from; otherwise it returns
// domain.ErrConcurrentModification.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.BookingStatus, changes domain.BookingChanges) error {
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}
	if changes.ConfirmedAt != nil {
		updates["confirmed_at"] = *changes.ConfirmedAt
	}
	if changes.StartedAt != nil {
		updates["started_at"] = *changes.StartedAt
	}
	if changes.CompletedAt != nil {
		updates["completed_at"] = *changes.CompletedAt
	}
	if changes.CancelledAt != nil {
		updates["cancelled_at"] = *changes.CancelledAt
	}
	if changes.CancelledBy != nil {
		updates["cancelled_by"] = *changes.CancelledBy
	}
	if changes.CancellationReason != nil {
		updates["cancellation_reason"] = *changes.CancellationReason
	}
	if changes.RefundCents != nil {
		updates["refund_cents"] = *changes.RefundCents
	}
	if changes.ExtraChargeCents != nil {
		updates["extra_charge_cents"] = *changes.ExtraChargeCents
	}
	if changes.ClearCompletion {
		updates["completed_at"] = nil
	}
	if changes.ClearCancellation {
		updates["cancelled_at"] = nil
		updates["cancelled_by"] = nil
		updates["cancellation_reason"] = nil
		updates["refund_cents"] = 0
	}

	res := r.db.WithContext(ctx).
		Model(&bookingModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var existing int64
	if err := r.db.WithContext(ctx).Model(&bookingModel{}).Where("id = ?", id).Count(&existing).Error; err != nil {
		return err
	}
	if existing == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConcurrentModification
}

func countOverlapping(db *gorm.DB, carID int64, start, end time.Time) (int64, error) {
	var n int64
	err := db.Model(&bookingModel{}).
		Where("car_id = ?", carID).
		Where("status IN ?", blockingStatuses).
		Where("start_date < ? AND end_date > ?", end, start).
		Count(&n).Error
	return n, err
}
