package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"carshare/internal/domain"
)

const (
	MultiplierRegion   = "region"
	MultiplierDemand   = "demand"
	MultiplierSeason   = "season"
	MultiplierDuration = "duration"
	MultiplierOverride = "override"

	DiscountDuration  = "duration"
	DiscountEarlyBird = "early_bird"
	DiscountPromo     = "promo"

	AddonInsurance   = "insurance"
	AddonExtraDriver = "extra_driver"
)

type Request struct {
	PricePerDayCents int64
	Start            time.Time
	End              time.Time
	Region           string
	Insurance        InsuranceTier
	ExtraDrivers     int
	Extras           []string
	PromoCode        string
	// Override scales the subtotal when set. Admin and testing use only.
	Override *decimal.Decimal
}

type Multiplier struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

type LineItem struct {
	Code        string `json:"code"`
	AmountCents int64  `json:"amount_cents"`
}

// Quote is an itemized price. It is never persisted and must be recomputed
// once ValidUntil has passed.
type Quote struct {
	RentalDays          int          `json:"rental_days"`
	BaseSubtotalCents   int64        `json:"base_subtotal_cents"`
	Multipliers         []Multiplier `json:"multipliers"`
	SubtotalCents       int64        `json:"subtotal_cents"`
	Discounts           []LineItem   `json:"discounts"`
	TotalDiscountsCents int64        `json:"total_discounts_cents"`
	Addons              []LineItem   `json:"addons"`
	TotalAddonsCents    int64        `json:"total_addons_cents"`
	ServiceFeeCents     int64        `json:"service_fee_cents"`
	TaxCents            int64        `json:"tax_cents"`
	TotalCents          int64        `json:"total_cents"`
	QuotedAt            time.Time    `json:"quoted_at"`
	ValidUntil          time.Time    `json:"valid_until"`
}

func (q *Quote) Expired(now time.Time) bool {
	return !now.Before(q.ValidUntil)
}

type Engine struct {
	rates Rates
}

func NewEngine(rates Rates) *Engine {
	return &Engine{rates: rates}
}

// RentalDays counts started 24h periods between start and end, at least one.
func RentalDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// Quote prices req as of now. The result depends only on req, now and the
// rate table.
//
// The duration multiplier is listed with the others but takes effect as the
// duration discount line, so it is counted once.
func (e *Engine) Quote(req Request, now time.Time) (*Quote, error) {
	if err := e.validate(req); err != nil {
		return nil, err
	}

	r := e.rates
	days := RentalDays(req.Start, req.End)
	start := req.Start.UTC()
	base := req.PricePerDayCents * int64(days)

	demand := decimal.NewFromInt(1)
	if wd := start.Weekday(); wd == time.Saturday || wd == time.Sunday {
		demand = r.WeekendUplift
	}
	multipliers := []Multiplier{
		{Name: MultiplierRegion, Value: r.regionMultiplier(req.Region)},
		{Name: MultiplierDemand, Value: demand},
		{Name: MultiplierSeason, Value: r.seasonMultiplier(start.Month())},
		{Name: MultiplierDuration, Value: r.durationMultiplier(days)},
	}

	running := decimal.NewFromInt(base)
	for _, m := range multipliers[:3] {
		running = running.Mul(m.Value)
	}
	subtotal := floorCents(running)

	durationMult := multipliers[3].Value
	discounts := []LineItem{
		{Code: DiscountDuration, AmountCents: subtotal - floorCents(decimal.NewFromInt(subtotal).Mul(durationMult))},
	}
	if req.Start.Sub(now) >= r.EarlyBirdLeadTime {
		discounts = append(discounts, LineItem{
			Code:        DiscountEarlyBird,
			AmountCents: percentOf(subtotal, r.EarlyBirdPercent),
		})
	}
	if req.PromoCode != "" {
		promo := r.Promos[req.PromoCode]
		amount := promo.FixedCents
		if !promo.Percent.IsZero() {
			amount = percentOf(subtotal, promo.Percent)
		}
		discounts = append(discounts, LineItem{Code: DiscountPromo, AmountCents: amount})
	}

	addons := []LineItem{}
	if daily := r.InsuranceDailyCents[req.Insurance]; daily > 0 {
		addons = append(addons, LineItem{Code: AddonInsurance, AmountCents: daily * int64(days)})
	}
	if req.ExtraDrivers > 0 {
		addons = append(addons, LineItem{
			Code:        AddonExtraDriver,
			AmountCents: r.ExtraDriverDailyCents * int64(req.ExtraDrivers) * int64(days),
		})
	}
	for _, code := range req.Extras {
		addons = append(addons, LineItem{Code: code, AmountCents: r.ExtrasDailyCents[code] * int64(days)})
	}

	if req.Override != nil {
		multipliers = append(multipliers, Multiplier{Name: MultiplierOverride, Value: *req.Override})
		subtotal = floorCents(decimal.NewFromInt(subtotal).Mul(*req.Override))
	}

	// Discounts never take the subtotal below zero; the line that would
	// overshoot is cut down so the lines still add up to the total.
	var totalDiscounts, totalAddons int64
	for i := range discounts {
		if remaining := subtotal - totalDiscounts; discounts[i].AmountCents > remaining {
			discounts[i].AmountCents = remaining
		}
		totalDiscounts += discounts[i].AmountCents
	}
	for _, a := range addons {
		totalAddons += a.AmountCents
	}

	fee := percentOf(subtotal, r.ServiceFeePercent)
	tax := percentOf(subtotal, r.TaxPercent)

	return &Quote{
		RentalDays:          days,
		BaseSubtotalCents:   base,
		Multipliers:         multipliers,
		SubtotalCents:       subtotal,
		Discounts:           discounts,
		TotalDiscountsCents: totalDiscounts,
		Addons:              addons,
		TotalAddonsCents:    totalAddons,
		ServiceFeeCents:     fee,
		TaxCents:            tax,
		TotalCents:          subtotal - totalDiscounts + totalAddons + fee + tax,
		QuotedAt:            now,
		ValidUntil:          now.Add(r.QuoteTTL),
	}, nil
}

func (e *Engine) validate(req Request) error {
	switch {
	case req.PricePerDayCents <= 0:
		return fmt.Errorf("%w: price per day must be positive", domain.ErrValidation)
	case req.Start.IsZero() || req.End.IsZero():
		return fmt.Errorf("%w: start and end dates are required", domain.ErrValidation)
	case !req.End.After(req.Start):
		return fmt.Errorf("%w: end date must be after start date", domain.ErrValidation)
	case req.ExtraDrivers < 0:
		return fmt.Errorf("%w: extra drivers must not be negative", domain.ErrValidation)
	case req.Override != nil && !req.Override.IsPositive():
		return fmt.Errorf("%w: override multiplier must be positive", domain.ErrValidation)
	}
	if req.Insurance != "" {
		if _, ok := e.rates.InsuranceDailyCents[req.Insurance]; !ok {
			return fmt.Errorf("%w: unknown insurance tier %q", domain.ErrValidation, req.Insurance)
		}
	}
	for _, code := range req.Extras {
		if _, ok := e.rates.ExtrasDailyCents[code]; !ok {
			return fmt.Errorf("%w: unknown extra %q", domain.ErrValidation, code)
		}
	}
	if req.PromoCode != "" {
		if _, ok := e.rates.Promos[req.PromoCode]; !ok {
			return fmt.Errorf("%w: unknown promo code %q", domain.ErrValidation, req.PromoCode)
		}
	}
	return nil
}

func floorCents(d decimal.Decimal) int64 {
	return d.Floor().IntPart()
}

func percentOf(cents int64, pct decimal.Decimal) int64 {
	return floorCents(decimal.NewFromInt(cents).Mul(pct))
}
