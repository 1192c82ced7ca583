package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carshare/internal/domain"
)

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func lineAmount(items []LineItem, code string) int64 {
	for _, it := range items {
		if it.Code == code {
			return it.AmountCents
		}
	}
	return 0
}

func TestQuote_PlainWeekdayRental(t *testing.T) {
	e := NewEngine(DefaultRates())
	now := at(2027, time.April, 1, 0)

	q, err := e.Quote(Request{
		PricePerDayCents: 5000,
		Start:            at(2027, time.April, 14, 10),
		End:              at(2027, time.April, 17, 10),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, 3, q.RentalDays)
	assert.Equal(t, int64(15000), q.BaseSubtotalCents)
	assert.Equal(t, int64(15000), q.SubtotalCents)
	assert.Equal(t, int64(0), q.TotalDiscountsCents)
	assert.Equal(t, int64(0), q.TotalAddonsCents)
	assert.Equal(t, int64(1500), q.ServiceFeeCents)
	assert.Equal(t, int64(1200), q.TaxCents)
	assert.Equal(t, int64(17700), q.TotalCents)
	assert.Equal(t, now.Add(30*time.Minute), q.ValidUntil)
}

func TestQuote_AllAdjustments(t *testing.T) {
	e := NewEngine(DefaultRates())
	start := at(2027, time.July, 17, 10) // Saturday, high season

	q, err := e.Quote(Request{
		PricePerDayCents: 4333,
		Start:            start,
		End:              start.Add(7 * 24 * time.Hour),
		Region:           "metro",
		Insurance:        InsuranceBasic,
		ExtraDrivers:     1,
		Extras:           []string{"gps"},
		PromoCode:        "WELCOME10",
	}, at(2027, time.May, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, 7, q.RentalDays)
	assert.Equal(t, int64(30331), q.BaseSubtotalCents)
	// 30331 * 1.15 * 1.2 * 1.2 = 50228.136
	assert.Equal(t, int64(50228), q.SubtotalCents)

	assert.Equal(t, int64(5023), lineAmount(q.Discounts, DiscountDuration))
	assert.Equal(t, int64(2511), lineAmount(q.Discounts, DiscountEarlyBird))
	assert.Equal(t, int64(5022), lineAmount(q.Discounts, DiscountPromo))
	assert.Equal(t, int64(12556), q.TotalDiscountsCents)

	assert.Equal(t, int64(10500), lineAmount(q.Addons, AddonInsurance))
	assert.Equal(t, int64(7000), lineAmount(q.Addons, AddonExtraDriver))
	assert.Equal(t, int64(4900), lineAmount(q.Addons, "gps"))
	assert.Equal(t, int64(22400), q.TotalAddonsCents)

	assert.Equal(t, int64(5022), q.ServiceFeeCents)
	assert.Equal(t, int64(4018), q.TaxCents)
	assert.Equal(t, int64(69112), q.TotalCents)

	names := make([]string, 0, len(q.Multipliers))
	for _, m := range q.Multipliers {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{MultiplierRegion, MultiplierDemand, MultiplierSeason, MultiplierDuration}, names)
}

func TestQuote_MonthlyLowSeason(t *testing.T) {
	e := NewEngine(DefaultRates())
	start := at(2027, time.January, 13, 10)

	q, err := e.Quote(Request{
		PricePerDayCents: 3000,
		Start:            start,
		End:              start.Add(28 * 24 * time.Hour),
	}, at(2027, time.January, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, int64(75600), q.SubtotalCents)
	assert.Equal(t, int64(15120), lineAmount(q.Discounts, DiscountDuration))
	assert.True(t, q.Multipliers[3].Value.Equal(decimal.RequireFromString("0.80")))
	assert.Equal(t, int64(74088), q.TotalCents)
}

func TestQuote_PartialDayRoundsUpAndOverride(t *testing.T) {
	e := NewEngine(DefaultRates())
	start := at(2027, time.April, 14, 10)
	override := decimal.RequireFromString("1.5")

	q, err := e.Quote(Request{
		PricePerDayCents: 5000,
		Start:            start,
		End:              start.Add(49 * time.Hour),
		Override:         &override,
	}, at(2027, time.April, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, 3, q.RentalDays)
	assert.Equal(t, int64(22500), q.SubtotalCents)
	assert.Equal(t, int64(26550), q.TotalCents)
	assert.Equal(t, MultiplierOverride, q.Multipliers[len(q.Multipliers)-1].Name)
}

func TestQuote_DiscountsNeverExceedSubtotal(t *testing.T) {
	e := NewEngine(DefaultRates())
	start := at(2027, time.April, 14, 10)

	q, err := e.Quote(Request{
		PricePerDayCents: 1000,
		Start:            start,
		End:              start.Add(24 * time.Hour),
		PromoCode:        "FLAT2000",
	}, at(2027, time.April, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, int64(1000), q.TotalDiscountsCents)
	assert.Equal(t, int64(180), q.TotalCents)
	assert.GreaterOrEqual(t, q.TotalCents, int64(0))

	// the promo line is cut to what the subtotal could absorb
	assert.Equal(t, int64(1000), lineAmount(q.Discounts, DiscountPromo))
	var sum int64
	for _, d := range q.Discounts {
		sum += d.AmountCents
	}
	assert.Equal(t, q.TotalDiscountsCents, sum)
}

func TestQuote_IsDeterministic(t *testing.T) {
	e := NewEngine(DefaultRates())
	start := at(2027, time.August, 7, 9)
	req := Request{
		PricePerDayCents: 7777,
		Start:            start,
		End:              start.Add(10*24*time.Hour + time.Hour),
		Region:           "airport",
		Insurance:        InsurancePremium,
		ExtraDrivers:     2,
		Extras:           []string{"child_seat", "roof_rack"},
		PromoCode:        "WELCOME10",
	}
	now := at(2027, time.June, 1, 0)

	first, err := e.Quote(req, now)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := e.Quote(req, now)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Equal(t,
		first.SubtotalCents-first.TotalDiscountsCents+first.TotalAddonsCents+first.ServiceFeeCents+first.TaxCents,
		first.TotalCents)
}

func TestQuote_Validation(t *testing.T) {
	e := NewEngine(DefaultRates())
	start := at(2027, time.April, 14, 10)
	now := at(2027, time.April, 1, 0)
	zero := decimal.Zero

	cases := []Request{
		{PricePerDayCents: 0, Start: start, End: start.Add(24 * time.Hour)},
		{PricePerDayCents: 100, Start: start, End: start},
		{PricePerDayCents: 100, Start: start, End: start.Add(-time.Hour)},
		{PricePerDayCents: 100, Start: start, End: start.Add(24 * time.Hour), Insurance: "gold"},
		{PricePerDayCents: 100, Start: start, End: start.Add(24 * time.Hour), Extras: []string{"jetpack"}},
		{PricePerDayCents: 100, Start: start, End: start.Add(24 * time.Hour), PromoCode: "NOPE"},
		{PricePerDayCents: 100, Start: start, End: start.Add(24 * time.Hour), ExtraDrivers: -1},
		{PricePerDayCents: 100, Start: start, End: start.Add(24 * time.Hour), Override: &zero},
	}
	for i, req := range cases {
		_, err := e.Quote(req, now)
		assert.ErrorIs(t, err, domain.ErrValidation, "case %d", i)
	}
}

func TestQuote_Expired(t *testing.T) {
	q := &Quote{ValidUntil: at(2027, time.April, 1, 1)}
	assert.False(t, q.Expired(at(2027, time.April, 1, 0)))
	assert.True(t, q.Expired(at(2027, time.April, 1, 1)))
}

func TestRentalDays(t *testing.T) {
	start := at(2027, time.April, 14, 10)
	assert.Equal(t, 1, RentalDays(start, start.Add(time.Hour)))
	assert.Equal(t, 1, RentalDays(start, start.Add(24*time.Hour)))
	assert.Equal(t, 2, RentalDays(start, start.Add(25*time.Hour)))
}
