package bookings

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDashboard(t *testing.T) {
	cal := NewCalendar(testNow, time.UTC)
	rs := []Reservation{
		res("arrive", "c1", "Ana", "2024-07-12", "2024-07-20", map[string]any{
			"total_amount": 1000,
			"payments":     []any{map[string]any{"amount": 250}},
		}),
		res("leave", "c2", "Ben", "2024-07-01", "2024-07-11", map[string]any{
			"total_amount": 500,
			"payments":     []any{map[string]any{"amount": 500}},
		}),
		res("far", "c3", "Cat", "2024-09-01", "2024-09-10", map[string]any{"total_amount": 2000}),
		res("last-year", "c3", "Cat", "2023-12-20", "2023-12-28", map[string]any{"total_amount": 700}),
		res("gone", "deleted", "Dan", "2024-07-15", "2024-07-16", map[string]any{
			"total_amount": 100,
			"status":       "cancelled",
		}),
	}
	known := map[string]bool{"c1": true, "c2": true, "c3": true}

	d := BuildDashboard(cal.EvaluateAll(rs, known), cal, 7, 0)

	assert.Equal(t, 5, d.Reservations)
	assert.Equal(t, 1, d.Cancelled)
	assert.Equal(t, 1, d.Orphaned)
	assert.Equal(t, 2024, d.Year)
	assert.Equal(t, 2, d.Buckets[BucketUpcoming])
	assert.Equal(t, 1, d.Buckets[BucketActive])
	assert.Equal(t, 1, d.Buckets[BucketPast])
	assert.Equal(t, 1, d.Statuses[PaymentCancelled])
	assert.Equal(t, 2, d.Statuses[PaymentUnpaid])

	assert.Equal(t, Revenue{Total: 4200, Collected: 750, Outstanding: 3450}, d.Revenue)

	require.Len(t, d.Arrivals, 1)
	assert.Equal(t, "arrive", d.Arrivals[0].ReservationID)
	require.Len(t, d.Departures, 1)
	assert.Equal(t, "leave", d.Departures[0].ReservationID)
	assert.Equal(t, Date{2024, time.July, 11}, d.Departures[0].Date)

	assert.Equal(t, 1500.0, d.Monthly[time.July-1])
	assert.Equal(t, 2000.0, d.Monthly[time.September-1])
	assert.Zero(t, d.Monthly[time.December-1])

	prev := BuildDashboard(cal.EvaluateAll(rs, known), cal, 7, 2023)
	assert.Equal(t, 700.0, prev.Monthly[time.December-1])
}

func TestDashboardJSON(t *testing.T) {
	cal := NewCalendar(testNow, time.UTC)
	d := BuildDashboard(nil, cal, 0, 0)

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "2024-07-10", decoded["today"])
	assert.Equal(t, []any{}, decoded["arrivals"])
	assert.Len(t, decoded["monthly_revenue"], 12)
}
