package cancellation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"carshare/internal/domain"
)

func TestResolve_ModerateTable(t *testing.T) {
	start := time.Date(2027, time.May, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		hoursBefore int
		refund      int64
	}{
		{130, 10000},
		{120, 10000},
		{119, 5000},
		{50, 5000},
		{48, 5000},
		{47, 0},
		{10, 0},
		{-5, 0},
	}
	for _, tc := range cases {
		d := Resolve(Input{
			TotalCents:  10000,
			Start:       start,
			Policy:      domain.CancelModerate,
			CancelledBy: RoleRenter,
			Now:         start.Add(-time.Duration(tc.hoursBefore) * time.Hour),
		})
		assert.Equal(t, tc.refund, d.RefundCents, "%dh before start", tc.hoursBefore)
		assert.Equal(t, 10000-tc.refund, d.FeeCents)
	}
}

func TestResolve_FlexibleAndStrict(t *testing.T) {
	start := time.Date(2027, time.May, 10, 12, 0, 0, 0, time.UTC)
	renter := func(policy domain.CancelPolicy, before time.Duration) int64 {
		return Resolve(Input{TotalCents: 8000, Start: start, Policy: policy, CancelledBy: RoleRenter, Now: start.Add(-before)}).RefundCents
	}

	assert.Equal(t, int64(8000), renter(domain.CancelFlexible, 24*time.Hour))
	assert.Equal(t, int64(0), renter(domain.CancelFlexible, 24*time.Hour-time.Second))
	assert.Equal(t, int64(8000), renter(domain.CancelStrict, 168*time.Hour))
	assert.Equal(t, int64(0), renter(domain.CancelStrict, 167*time.Hour))
}

func TestResolve_HoursNotCalendarDays(t *testing.T) {
	// 23:30 the evening before a 00:15 pickup is under 24h even though it is
	// the previous calendar day.
	start := time.Date(2027, time.May, 10, 0, 15, 0, 0, time.UTC)
	now := time.Date(2027, time.May, 9, 23, 30, 0, 0, time.UTC)

	d := Resolve(Input{TotalCents: 5000, Start: start, Policy: domain.CancelFlexible, CancelledBy: RoleRenter, Now: now})
	assert.Equal(t, int64(0), d.RefundCents)
	assert.Equal(t, 45*time.Minute, d.Remaining)
}

func TestResolve_OwnerAndAdminAlwaysFull(t *testing.T) {
	start := time.Date(2027, time.May, 10, 12, 0, 0, 0, time.UTC)
	for _, role := range []Role{RoleOwner, RoleAdmin} {
		for _, policy := range []domain.CancelPolicy{domain.CancelStrict, domain.CancelModerate, "unknown"} {
			d := Resolve(Input{TotalCents: 10000, Start: start, Policy: policy, CancelledBy: role, Now: start.Add(time.Hour)})
			assert.Equal(t, int64(10000), d.RefundCents)
			assert.Equal(t, int64(100), d.RefundPercent)
		}
	}
}

func TestResolve_UnknownPolicyOrRoleRefundsNothing(t *testing.T) {
	start := time.Date(2027, time.May, 10, 12, 0, 0, 0, time.UTC)
	now := start.Add(-1000 * time.Hour)

	assert.Equal(t, int64(0), Resolve(Input{TotalCents: 10000, Start: start, Policy: "super_flexible", CancelledBy: RoleRenter, Now: now}).RefundCents)
	assert.Equal(t, int64(0), Resolve(Input{TotalCents: 10000, Start: start, Policy: domain.CancelFlexible, CancelledBy: "stranger", Now: now}).RefundCents)
}

func TestResolve_HalfRefundFloors(t *testing.T) {
	start := time.Date(2027, time.May, 10, 12, 0, 0, 0, time.UTC)
	d := Resolve(Input{TotalCents: 10001, Start: start, Policy: domain.CancelModerate, CancelledBy: RoleRenter, Now: start.Add(-60 * time.Hour)})
	assert.Equal(t, int64(5000), d.RefundCents)
	assert.Equal(t, int64(5001), d.FeeCents)
}
