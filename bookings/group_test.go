package bookings

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 7, 10, 9, 30, 0, 0, time.UTC)

func res(id, client, name, in, out string, extra map[string]any) Reservation {
	doc := map[string]any{
		"id":          id,
		"client_id":   client,
		"client_name": name,
		"check_in":    in,
		"check_out":   out,
	}
	for k, v := range extra {
		doc[k] = v
	}
	return NormalizeReservation(doc)
}

func TestCalendarBucket(t *testing.T) {
	cal := NewCalendar(testNow, time.UTC)

	tests := []struct {
		name    string
		in, out string
		want    Bucket
	}{
		{"upcoming", "2024-07-11", "2024-07-15", BucketUpcoming},
		{"arrives today", "2024-07-10", "2024-07-15", BucketActive},
		{"leaves today", "2024-07-01", "2024-07-10", BucketActive},
		{"past", "2024-07-01", "2024-07-09", BucketPast},
		{"missing check-out in past", "2024-07-01", "", BucketPast},
		{"missing check-out today", "2024-07-10", "", BucketActive},
		{"unscheduled", "", "2024-07-20", BucketUnscheduled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.Bucket(res("r", "c", "n", tt.in, tt.out, nil)))
		})
	}
}

func TestCalendarUsesCompanyTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2024-07-10 20:00 UTC is already 2024-07-11 in Tokyo.
	cal := NewCalendar(time.Date(2024, 7, 10, 20, 0, 0, 0, time.UTC), tokyo)
	assert.Equal(t, Date{2024, time.July, 11}, cal.Today)

	// Date-only values keep their day.
	r := res("r", "c", "n", "2024-07-11", "2024-07-12", nil)
	assert.Equal(t, BucketActive, cal.Bucket(r))

	// Instants are read in the company zone.
	r.CheckIn = time.Date(2024, 7, 11, 16, 0, 0, 0, time.UTC) // 12 July in Tokyo
	r.CheckOut = time.Time{}
	assert.Equal(t, BucketUpcoming, cal.Bucket(r))
}

func TestGroupByClient(t *testing.T) {
	cal := NewCalendar(testNow, time.UTC)
	priced := func(total, paid float64) map[string]any {
		m := map[string]any{"total_amount": total}
		if paid > 0 {
			m["payments"] = []any{map[string]any{"amount": paid}}
		}
		return m
	}

	rs := []Reservation{
		res("p1", "past-client", "Zed", "2024-06-01", "2024-06-05", priced(1000, 1000)),
		res("p2", "older-past", "Amy", "2024-05-01", "2024-05-05", priced(500, 0)),
		res("u1", "soon", "Bob", "2024-07-20", "2024-07-25", priced(2000, 500)),
		res("u2", "sooner", "Cid", "2024-07-12", "2024-07-14", priced(300, 0)),
		res("u3", "soon", "Bob", "2024-08-01", "2024-08-03", priced(1000, 0)),
		res("a1", "", "Dee Walker", "2024-07-08", "2024-07-12", priced(800, 800)),
		res("a2", "", " dee walker ", "2024-06-01", "2024-06-02", priced(100, 100)),
		res("x1", "soon", "Bob", "2024-07-22", "2024-07-23", map[string]any{"total_amount": 999, "status": "cancelled"}),
	}

	groups := GroupByClient(cal.EvaluateAll(rs, nil))
	require.Len(t, groups, 5)

	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	assert.Equal(t, []string{"name:dee walker", "sooner", "soon", "past-client", "older-past"}, keys)

	dee := groups[0]
	assert.Equal(t, "Dee Walker", dee.ClientName)
	assert.Equal(t, PaymentPaid, dee.Status)
	assert.Equal(t, 1, dee.Counts[BucketActive])
	assert.Equal(t, 1, dee.Counts[BucketPast])
	assert.Equal(t, "a2", dee.Entries[0].Reservation.ID)

	bob := groups[2]
	assert.Len(t, bob.Entries, 3)
	assert.Equal(t, 3000.0, bob.Total)
	assert.Equal(t, 500.0, bob.Paid)
	assert.Equal(t, 2500.0, bob.Due)
	assert.Equal(t, PaymentPartial, bob.Status)
	assert.Equal(t, 2, bob.Counts[BucketUpcoming])
	assert.Equal(t, Date{2024, time.July, 20}, bob.NextCheckIn)

	assert.Equal(t, PaymentUnpaid, groups[1].Status)
	assert.Equal(t, PaymentUnpaid, groups[4].Status)
}

func TestGroupByClientRollups(t *testing.T) {
	cal := NewCalendar(testNow, time.UTC)

	onlyCancelled := GroupByClient(cal.EvaluateAll([]Reservation{
		res("x", "c", "C", "2024-07-20", "", map[string]any{"status": "cancelled", "total_amount": 100}),
	}, nil))
	require.Len(t, onlyCancelled, 1)
	assert.Equal(t, PaymentCancelled, onlyCancelled[0].Status)
	assert.Zero(t, onlyCancelled[0].Total)

	unpriced := GroupByClient(cal.EvaluateAll([]Reservation{
		res("u", "c", "C", "2024-07-20", "", nil),
	}, nil))
	assert.Equal(t, PaymentUnpriced, unpriced[0].Status)

	paidAndUnpriced := GroupByClient(cal.EvaluateAll([]Reservation{
		res("p", "c", "C", "2024-07-20", "", map[string]any{
			"total_amount": 100,
			"payments":     []any{map[string]any{"amount": 100}},
		}),
		res("q", "c", "C", "2024-08-20", "", nil),
	}, nil))
	require.Len(t, paidAndUnpriced, 1)
	assert.Equal(t, PaymentPartial, paidAndUnpriced[0].Status)

	paidAndCancelled := GroupByClient(cal.EvaluateAll([]Reservation{
		res("p", "c", "C", "2024-07-20", "", map[string]any{
			"total_amount": 100,
			"payments":     []any{map[string]any{"amount": 100}},
		}),
		res("x", "c", "C", "2024-08-20", "", map[string]any{"status": "cancelled", "total_amount": 50}),
	}, nil))
	assert.Equal(t, PaymentPaid, paidAndCancelled[0].Status)

	unknown := GroupByClient(cal.EvaluateAll([]Reservation{res("n", "", "", "", "", nil)}, nil))
	assert.Equal(t, "unknown", unknown[0].Key)
}

func TestEmptyGroupJSON(t *testing.T) {
	raw, err := json.Marshal(EmptyGroup("c1", "Ana"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, map[string]any{}, decoded["counts"])
	assert.Equal(t, "unpriced", decoded["payment_status"])
	assert.Equal(t, "Ana", decoded["client_name"])
}

func TestEvaluateAllFlagsOrphans(t *testing.T) {
	cal := NewCalendar(testNow, time.UTC)
	rs := []Reservation{
		res("a", "c1", "Known", "2024-07-20", "", nil),
		res("b", "gone", "Deleted", "2024-07-20", "", nil),
		res("c", "", "Walk-in", "2024-07-20", "", nil),
	}

	entries := cal.EvaluateAll(rs, map[string]bool{"c1": true})
	assert.False(t, entries[0].Orphaned)
	assert.True(t, entries[1].Orphaned)
	assert.False(t, entries[2].Orphaned)

	groups := GroupByClient(entries)
	for _, g := range groups {
		assert.Equal(t, g.Key == "gone", g.Orphaned, g.Key)
	}
}

func TestParseBucket(t *testing.T) {
	b, err := ParseBucket("upcoming")
	require.NoError(t, err)
	assert.Equal(t, BucketUpcoming, b)

	_, err = ParseBucket("later")
	assert.Error(t, err)
}
