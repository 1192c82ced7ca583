package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

type InsuranceTier string

const (
	InsuranceNone    InsuranceTier = "none"
	InsuranceBasic   InsuranceTier = "basic"
	InsurancePremium InsuranceTier = "premium"
)

// Promo is either a percentage of the subtotal or a fixed amount off.
type Promo struct {
	Percent    decimal.Decimal
	FixedCents int64
}

// Rates is the read-only lookup table the engine prices against.
type Rates struct {
	RegionMultipliers map[string]decimal.Decimal
	WeekendUplift     decimal.Decimal

	HighSeasonMonths     []time.Month
	HighSeasonMultiplier decimal.Decimal
	LowSeasonMonths      []time.Month
	LowSeasonMultiplier  decimal.Decimal

	WeeklyDays        int
	WeeklyMultiplier  decimal.Decimal
	MonthlyDays       int
	MonthlyMultiplier decimal.Decimal

	EarlyBirdLeadTime time.Duration
	EarlyBirdPercent  decimal.Decimal

	InsuranceDailyCents   map[InsuranceTier]int64
	ExtraDriverDailyCents int64
	ExtrasDailyCents      map[string]int64
	Promos                map[string]Promo

	ServiceFeePercent decimal.Decimal
	TaxPercent        decimal.Decimal
	QuoteTTL          time.Duration
}

func DefaultRates() Rates {
	return Rates{
		RegionMultipliers: map[string]decimal.Decimal{
			"metro":   decimal.RequireFromString("1.15"),
			"airport": decimal.RequireFromString("1.25"),
			"rural":   decimal.RequireFromString("0.95"),
		},
		WeekendUplift: decimal.RequireFromString("1.2"),

		HighSeasonMonths:     []time.Month{time.June, time.July, time.August, time.December},
		HighSeasonMultiplier: decimal.RequireFromString("1.2"),
		LowSeasonMonths:      []time.Month{time.January, time.February, time.November},
		LowSeasonMultiplier:  decimal.RequireFromString("0.9"),

		WeeklyDays:        7,
		WeeklyMultiplier:  decimal.RequireFromString("0.90"),
		MonthlyDays:       28,
		MonthlyMultiplier: decimal.RequireFromString("0.80"),

		EarlyBirdLeadTime: 30 * 24 * time.Hour,
		EarlyBirdPercent:  decimal.RequireFromString("0.05"),

		InsuranceDailyCents: map[InsuranceTier]int64{
			InsuranceNone:    0,
			InsuranceBasic:   1500,
			InsurancePremium: 3000,
		},
		ExtraDriverDailyCents: 1000,
		ExtrasDailyCents: map[string]int64{
			"child_seat": 500,
			"gps":        700,
			"roof_rack":  800,
		},
		Promos: map[string]Promo{
			"WELCOME10": {Percent: decimal.RequireFromString("0.10")},
			"FLAT2000":  {FixedCents: 2000},
		},

		ServiceFeePercent: decimal.RequireFromString("0.10"),
		TaxPercent:        decimal.RequireFromString("0.08"),
		QuoteTTL:          30 * time.Minute,
	}
}

func (r Rates) regionMultiplier(region string) decimal.Decimal {
	if m, ok := r.RegionMultipliers[region]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

func (r Rates) seasonMultiplier(month time.Month) decimal.Decimal {
	for _, m := range r.HighSeasonMonths {
		if m == month {
			return r.HighSeasonMultiplier
		}
	}
	for _, m := range r.LowSeasonMonths {
		if m == month {
			return r.LowSeasonMultiplier
		}
	}
	return decimal.NewFromInt(1)
}

func (r Rates) durationMultiplier(days int) decimal.Decimal {
	switch {
	case r.MonthlyDays > 0 && days >= r.MonthlyDays:
		return r.MonthlyMultiplier
	case r.WeeklyDays > 0 && days >= r.WeeklyDays:
		return r.WeeklyMultiplier
	default:
		return decimal.NewFromInt(1)
	}
}
