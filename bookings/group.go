package bookings

import (
	"sort"
	"strings"
)

// ClientGroup is every reservation of one client with running totals.
type ClientGroup struct {
	Key          string         `json:"key"`
	ClientID     string         `json:"client_id"`
	ClientName   string         `json:"client_name"`
	Entries      []Entry        `json:"-"`
	Total        float64        `json:"total"`
	Paid         float64        `json:"paid"`
	Due          float64        `json:"due"`
	Status       PaymentStatus  `json:"payment_status"`
	Counts       map[Bucket]int `json:"counts"`
	NextCheckIn  Date           `json:"next_check_in"`
	LastCheckOut Date           `json:"last_check_out"`
	Orphaned     bool           `json:"orphaned"`
}

// ClientKey identifies the client a reservation belongs to: its client id, or the
// lower-cased name for documents that were never linked to a client record.
func ClientKey(r Reservation) string {
	if r.ClientID != "" {
		return r.ClientID
	}
	if name := strings.ToLower(strings.TrimSpace(r.ClientName)); name != "" {
		return "name:" + name
	}
	return "unknown"
}

// EmptyGroup is the group of a client without reservations.
func EmptyGroup(clientID, name string) ClientGroup {
	return ClientGroup{
		Key:        clientID,
		ClientID:   clientID,
		ClientName: name,
		Entries:    []Entry{},
		Status:     PaymentUnpriced,
		Counts:     map[Bucket]int{},
	}
}

// GroupByClient groups entries per client. Cancelled reservations stay in the group
// but are left out of sums and bucket counts. Groups with an active stay come first,
// then upcoming ones by next arrival, then past ones by most recent departure.
func GroupByClient(entries []Entry) []ClientGroup {
	index := map[string]int{}
	var groups []ClientGroup

	for _, e := range entries {
		key := ClientKey(e.Reservation)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			g := EmptyGroup(e.Reservation.ClientID, "")
			g.Key = key
			groups = append(groups, g)
		}
		g := &groups[i]
		g.Entries = append(g.Entries, e)
		if g.ClientName == "" {
			g.ClientName = e.Reservation.ClientName
		}
		if e.Orphaned {
			g.Orphaned = true
		}
	}

	for i := range groups {
		finishGroup(&groups[i])
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groupLess(groups[a], groups[b])
	})
	return groups
}

func finishGroup(g *ClientGroup) {
	sortEntries(g.Entries)

	var active, paid, priced int
	anyPaid := false
	for _, e := range g.Entries {
		if e.Reservation.Cancelled() {
			continue
		}
		active++
		g.Total += e.Summary.Total
		g.Paid += e.Summary.Paid
		g.Due += e.Summary.Due
		g.Counts[e.Bucket]++

		switch e.Summary.Status {
		case PaymentPaid:
			paid++
			priced++
		case PaymentUnpriced:
		default:
			priced++
		}
		if e.Summary.Paid > tolerance {
			anyPaid = true
		}

		switch e.Bucket {
		case BucketUpcoming:
			if g.NextCheckIn.IsZero() || e.CheckIn.Before(g.NextCheckIn) {
				g.NextCheckIn = e.CheckIn
			}
		case BucketPast, BucketActive:
			if e.CheckOut.After(g.LastCheckOut) {
				g.LastCheckOut = e.CheckOut
			}
		}
	}
	g.Total = round2(g.Total)
	g.Paid = round2(g.Paid)
	g.Due = round2(g.Due)

	switch {
	case active == 0:
		g.Status = PaymentCancelled
	case priced == 0:
		g.Status = PaymentUnpriced
	case paid == active:
		g.Status = PaymentPaid
	case anyPaid:
		g.Status = PaymentPartial
	default:
		g.Status = PaymentUnpaid
	}
}

// sortEntries orders by check-in, unscheduled last, ties by id.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(a, b int) bool {
		ea, eb := entries[a], entries[b]
		if ea.CheckIn.IsZero() != eb.CheckIn.IsZero() {
			return eb.CheckIn.IsZero()
		}
		if c := ea.CheckIn.Compare(eb.CheckIn); c != 0 {
			return c < 0
		}
		return ea.Reservation.ID < eb.Reservation.ID
	})
}

func groupRank(g ClientGroup) int {
	switch {
	case g.Counts[BucketActive] > 0:
		return 0
	case g.Counts[BucketUpcoming] > 0:
		return 1
	case g.Counts[BucketPast] > 0:
		return 2
	}
	return 3
}

func groupLess(a, b ClientGroup) bool {
	ra, rb := groupRank(a), groupRank(b)
	if ra != rb {
		return ra < rb
	}
	switch ra {
	case 1:
		if c := a.NextCheckIn.Compare(b.NextCheckIn); c != 0 {
			return c < 0
		}
	case 2:
		if c := a.LastCheckOut.Compare(b.LastCheckOut); c != 0 {
			return c > 0
		}
	}
	na, nb := strings.ToLower(a.ClientName), strings.ToLower(b.ClientName)
	if na != nb {
		return na < nb
	}
	return a.Key < b.Key
}

// FilterBucket keeps entries in bucket b.
func FilterBucket(entries []Entry, b Bucket) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Bucket == b {
			out = append(out, e)
		}
	}
	return out
}
