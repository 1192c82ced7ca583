package domain

import "time"

type CarStatus string

const (
	CarActive   CarStatus = "active"
	CarInactive CarStatus = "inactive"
)

type Car struct {
	ID               int64        `json:"id"`
	OwnerID          int64        `json:"owner_id"`
	Title            string       `json:"title"`
	Region           string       `json:"region"`
	PricePerDayCents int64        `json:"price_per_day_cents"`
	CancelPolicy     CancelPolicy `json:"cancel_policy"`
	Status           CarStatus    `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
