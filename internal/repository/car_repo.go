package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"carshare/internal/domain"
)

type CarRepository struct {
	db *gorm.DB
}

func NewCarRepository(db *gorm.DB) *CarRepository {
	return &CarRepository{db: db}
}

type carModel struct {
	ID               int64     `gorm:"column:id;primaryKey"`
	OwnerID          int64     `gorm:"column:owner_id;index;not null"`
	Title            string    `gorm:"column:title;size:255;not null"`
	Region           string    `gorm:"column:region;size:50"`
	PricePerDayCents int64     `gorm:"column:price_per_day_cents;not null;check:chk_cars_price,price_per_day_cents > 0"`
	CancelPolicy     string    `gorm:"column:cancel_policy;size:20;not null;default:moderate"`
	Status           string    `gorm:"column:status;size:20;not null;default:active"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (carModel) TableName() string { return "cars" }

func toDomainCar(m carModel) *domain.Car {
	return &domain.Car{
		ID:               m.ID,
		OwnerID:          m.OwnerID,
		Title:            m.Title,
		Region:           m.Region,
		PricePerDayCents: m.PricePerDayCents,
		CancelPolicy:     domain.CancelPolicy(m.CancelPolicy),
		Status:           domain.CarStatus(m.Status),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func (r *CarRepository) Create(ctx context.Context, c *domain.Car) error {
	if c.Status == "" {
		c.Status = domain.CarActive
	}
	if c.CancelPolicy == "" {
		c.CancelPolicy = domain.CancelModerate
	}

	m := carModel{
		OwnerID:          c.OwnerID,
		Title:            c.Title,
		Region:           c.Region,
		PricePerDayCents: c.PricePerDayCents,
		CancelPolicy:     string(c.CancelPolicy),
		Status:           string(c.Status),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}

	*c = *toDomainCar(m)
	return nil
}

func (r *CarRepository) GetCar(ctx context.Context, id int64) (*domain.Car, error) {
	var m carModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return toDomainCar(m), nil
}

// IsAvailable reports whether the car is active and no pending, confirmed
// or active booking overlaps [start, end).
func (r *CarRepository) IsAvailable(ctx context.Context, carID int64, start, end time.Time) (bool, error) {
	car, err := r.GetCar(ctx, carID)
	if err != nil {
		return false, err
	}
	if car.Status != domain.CarActive {
		return false, nil
	}

	n, err := countOverlapping(r.db.WithContext(ctx), carID, start, end)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
