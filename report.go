package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/concierge-hq/concierge/bookings"
)

// runBookingsReport prints a company's bookings grouped by client
func runBookingsReport(app core.App, w io.Writer, companyID, bucket string, now time.Time) error {
	c, err := loadCompany(app, companyID)
	if err != nil {
		return fmt.Errorf("company %s not found", companyID)
	}

	entries, _, err := companyEntries(app, c, now, "", "check_in", nil)
	if err != nil {
		return fmt.Errorf("load reservations: %w", err)
	}
	if bucket != "" {
		b, err := bookings.ParseBucket(bucket)
		if err != nil {
			return err
		}
		entries = bookings.FilterBucket(entries, b)
	}

	fmt.Fprintf(w, "%s, %s (%s)\n\n", c.Name, c.calendar(now).Today, c.Location)
	return writeBookingsReport(w, bookings.GroupByClient(entries), c.Currency)
}

// writeBookingsReport renders client groups as an aligned table
func writeBookingsReport(w io.Writer, groups []bookings.ClientGroup, currency string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT\tSTAYS\tNEXT\tTOTAL\tPAID\tDUE\tSTATUS\t")

	var total, paid, due float64
	for _, g := range groups {
		name := g.ClientName
		if name == "" {
			name = g.Key
		}
		if g.Orphaned {
			name += " (deleted)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.2f\t%.2f\t%.2f\t%s\t\n",
			name, len(g.Entries), g.NextCheckIn, g.Total, g.Paid, g.Due, g.Status)
		total += g.Total
		paid += g.Paid
		due += g.Due
	}
	fmt.Fprintf(tw, "\t\t\t%.2f\t%.2f\t%.2f\t%s\t\n", total, paid, due, currency)
	return tw.Flush()
}
