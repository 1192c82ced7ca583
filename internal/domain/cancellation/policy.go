package cancellation

import (
	"time"

	"carshare/internal/domain"
)

type Role string

const (
	RoleRenter Role = "renter"
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
)

type Input struct {
	TotalCents  int64
	Start       time.Time
	Policy      domain.CancelPolicy
	CancelledBy Role
	Now         time.Time
}

type Decision struct {
	RefundPercent int64         `json:"refund_percent"`
	RefundCents   int64         `json:"refund_cents"`
	FeeCents      int64         `json:"fee_cents"`
	Remaining     time.Duration `json:"-"`
}

type tier struct {
	minRemaining time.Duration
	percent      int64
}

// Tiers are ordered from the longest notice down; the first one met applies.
var renterTiers = map[domain.CancelPolicy][]tier{
	domain.CancelFlexible: {
		{minRemaining: 24 * time.Hour, percent: 100},
	},
	domain.CancelModerate: {
		{minRemaining: 120 * time.Hour, percent: 100},
		{minRemaining: 48 * time.Hour, percent: 50},
	},
	domain.CancelStrict: {
		{minRemaining: 168 * time.Hour, percent: 100},
	},
}

// Resolve computes the refund for a cancellation. Notice is measured in
// elapsed time until Start, not in calendar days. Unknown policies and
// unknown roles refund nothing.
func Resolve(in Input) Decision {
	remaining := in.Start.Sub(in.Now)

	var percent int64
	switch in.CancelledBy {
	case RoleOwner, RoleAdmin:
		percent = 100
	case RoleRenter:
		for _, t := range renterTiers[in.Policy] {
			if remaining >= t.minRemaining {
				percent = t.percent
				break
			}
		}
	}

	refund := in.TotalCents * percent / 100
	return Decision{
		RefundPercent: percent,
		RefundCents:   refund,
		FeeCents:      in.TotalCents - refund,
		Remaining:     remaining,
	}
}
