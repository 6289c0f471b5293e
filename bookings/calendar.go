package bookings

import (
	"fmt"
	"time"
)

// Bucket places a reservation relative to today.
type Bucket string

const (
	BucketUpcoming    Bucket = "upcoming"
	BucketActive      Bucket = "active"
	BucketPast        Bucket = "past"
	BucketUnscheduled Bucket = "unscheduled"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{BucketActive, BucketUpcoming, BucketPast, BucketUnscheduled}

// ParseBucket validates a bucket name coming from a query string.
func ParseBucket(s string) (Bucket, error) {
	for _, b := range Buckets {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown bucket %q", s)
}

// Date is a calendar day with no time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in loc. Values at exactly midnight UTC are
// stored date-only ("2024-07-01") and keep their UTC day whatever loc is.
func DateOf(t time.Time, loc *time.Location) Date {
	if t.IsZero() {
		return Date{}
	}
	u := t.UTC()
	if loc == nil || (u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0) {
		y, m, d := u.Date()
		return Date{y, m, d}
	}
	y, m, d := t.In(loc).Date()
	return Date{y, m, d}
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Compare(o Date) int {
	return d.time().Compare(o.time())
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// AddDays moves the date by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.time().AddDate(0, 0, n), time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.time().Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// Calendar fixes "today" for a company so one request buckets every reservation
// against the same day.
type Calendar struct {
	Location *time.Location
	Today    Date
}

// NewCalendar builds a calendar for now in loc (UTC when loc is nil).
func NewCalendar(now time.Time, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return Calendar{Location: loc, Today: Date{y, m, d}}
}

// Stay returns the check-in and check-out days. A missing check-out equals check-in.
func (c Calendar) Stay(r Reservation) (in, out Date) {
	in = DateOf(r.CheckIn, c.Location)
	out = DateOf(r.CheckOut, c.Location)
	if out.IsZero() || out.Before(in) {
		out = in
	}
	return in, out
}

// Bucket classifies the reservation against today.
func (c Calendar) Bucket(r Reservation) Bucket {
	in, out := c.Stay(r)
	switch {
	case in.IsZero():
		return BucketUnscheduled
	case in.After(c.Today):
		return BucketUpcoming
	case out.Before(c.Today):
		return BucketPast
	default:
		return BucketActive
	}
}

// Entry is a reservation with everything derived from it.
type Entry struct {
	Reservation Reservation `json:"-"`
	Summary     Summary     `json:"summary"`
	Bucket      Bucket      `json:"bucket"`
	CheckIn     Date        `json:"check_in"`
	CheckOut    Date        `json:"check_out"`
	Orphaned    bool        `json:"orphaned"`
}

// Evaluate derives the summary, bucket and stay days of r.
func (c Calendar) Evaluate(r Reservation) Entry {
	in, out := c.Stay(r)
	return Entry{
		Reservation: r,
		Summary:     Summarize(r),
		Bucket:      c.Bucket(r),
		CheckIn:     in,
		CheckOut:    out,
	}
}

// EvaluateAll evaluates every reservation and flags those whose client id is not in
// knownClients. A nil knownClients disables the check.
func (c Calendar) EvaluateAll(rs []Reservation, knownClients map[string]bool) []Entry {
	entries := make([]Entry, len(rs))
	for i, r := range rs {
		entries[i] = c.Evaluate(r)
		if knownClients != nil && r.ClientID != "" && !knownClients[r.ClientID] {
			entries[i].Orphaned = true
		}
	}
	return entries
}
