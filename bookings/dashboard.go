package bookings

// Revenue sums money over reservations that are not cancelled.
type Revenue struct {
	Total       float64 `json:"total"`
	Collected   float64 `json:"collected"`
	Outstanding float64 `json:"outstanding"`
}

// Movement is an arrival or departure shown on the dashboard.
type Movement struct {
	ReservationID string `json:"reservation_id"`
	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name"`
	PropertyName  string `json:"property_name"`
	Date          Date   `json:"date"`
}

// Dashboard is the per-company overview.
type Dashboard struct {
	Today        Date                  `json:"today"`
	Reservations int                   `json:"reservations"`
	Cancelled    int                   `json:"cancelled"`
	Buckets      map[Bucket]int        `json:"buckets"`
	Statuses     map[PaymentStatus]int `json:"payment_statuses"`
	Revenue      Revenue               `json:"revenue"`
	Arrivals     []Movement            `json:"arrivals"`
	Departures   []Movement            `json:"departures"`
	Year         int                   `json:"year"`
	Monthly      [12]float64           `json:"monthly_revenue"`
	Orphaned     int                   `json:"orphaned"`
}

// BuildDashboard aggregates entries. Arrivals and departures cover [today, today+days);
// monthly revenue is booked on the check-in month of year.
func BuildDashboard(entries []Entry, cal Calendar, days, year int) Dashboard {
	if days <= 0 {
		days = 7
	}
	if year <= 0 {
		year = cal.Today.Year
	}
	horizon := cal.Today.AddDays(days)

	d := Dashboard{
		Today:      cal.Today,
		Buckets:    map[Bucket]int{},
		Statuses:   map[PaymentStatus]int{},
		Arrivals:   []Movement{},
		Departures: []Movement{},
		Year:       year,
	}

	sorted := append([]Entry(nil), entries...)
	sortEntries(sorted)

	for _, e := range sorted {
		d.Reservations++
		d.Statuses[e.Summary.Status]++
		if e.Orphaned {
			d.Orphaned++
		}
		if e.Reservation.Cancelled() {
			d.Cancelled++
			continue
		}

		d.Buckets[e.Bucket]++
		d.Revenue.Total += e.Summary.Total
		d.Revenue.Collected += e.Summary.Paid
		d.Revenue.Outstanding += e.Summary.Due

		if within(e.CheckIn, cal.Today, horizon) {
			d.Arrivals = append(d.Arrivals, movement(e, e.CheckIn))
		}
		if within(e.CheckOut, cal.Today, horizon) && e.CheckOut != e.CheckIn {
			d.Departures = append(d.Departures, movement(e, e.CheckOut))
		}
		if e.CheckIn.Year == year && !e.CheckIn.IsZero() {
			d.Monthly[e.CheckIn.Month-1] = round2(d.Monthly[e.CheckIn.Month-1] + e.Summary.Total)
		}
	}

	d.Revenue.Total = round2(d.Revenue.Total)
	d.Revenue.Collected = round2(d.Revenue.Collected)
	d.Revenue.Outstanding = round2(d.Revenue.Outstanding)
	return d
}

func within(d, from, until Date) bool {
	return !d.IsZero() && !d.Before(from) && d.Before(until)
}

func movement(e Entry, on Date) Movement {
	return Movement{
		ReservationID: e.Reservation.ID,
		ClientID:      e.Reservation.ClientID,
		ClientName:    e.Reservation.ClientName,
		PropertyName:  e.Reservation.PropertyName,
		Date:          on,
	}
}
