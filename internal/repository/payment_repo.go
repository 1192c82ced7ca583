package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"carshare/internal/domain"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

type paymentModel struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BookingID     int64     `gorm:"column:booking_id;uniqueIndex;not null"`
	PayerID       int64     `gorm:"column:payer_id;index;not null"`
	AmountCents   int64     `gorm:"column:amount_cents;not null"`
	RefundedCents int64     `gorm:"column:refunded_cents;not null;default:0"`
	Status        string    `gorm:"column:status;size:20;not null"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (paymentModel) TableName() string { return "payments" }

func (m *paymentModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func toDomainPayment(m paymentModel) *domain.Payment {
	return &domain.Payment{
		ID:            m.ID,
		BookingID:     m.BookingID,
		PayerID:       m.PayerID,
		AmountCents:   m.AmountCents,
		RefundedCents: m.RefundedCents,
		Status:        domain.PaymentStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	if p.Status == "" {
		p.Status = domain.PaymentPending
	}
	m := paymentModel{
		ID:            p.ID,
		BookingID:     p.BookingID,
		PayerID:       p.PayerID,
		AmountCents:   p.AmountCents,
		RefundedCents: p.RefundedCents,
		Status:        string(p.Status),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}

	*p = *toDomainPayment(m)
	return nil
}

func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	var m paymentModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return toDomainPayment(m), nil
}

// UpdateStatus sets the payment status of a booking's charge and the amount refunded so far.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, bookingID int64, status domain.PaymentStatus, refundedCents int64) error {
	res := r.db.WithContext(ctx).
		Model(&paymentModel{}).
		Where("booking_id = ?", bookingID).
		Updates(map[string]interface{}{
			"status":         string(status),
			"refunded_cents": refundedCents,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
