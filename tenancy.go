package main

import (
	"errors"
	"log"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"github.com/concierge-hq/concierge/bookings"
	"github.com/concierge-hq/concierge/utils"
)

var errNotFound = errors.New("not found")

// company is the tenant a request acts on
type company struct {
	ID       string
	Name     string
	Currency string
	Location *time.Location
}

// loadCompany reads a company record. Unknown timezones fall back to UTC.
func loadCompany(app core.App, id string) (*company, error) {
	record, err := app.FindRecordById(utils.CollectionCompanies, id)
	if err != nil {
		return nil, errNotFound
	}

	c := &company{
		ID:       record.Id,
		Name:     record.GetString("name"),
		Currency: record.GetString("currency"),
		Location: time.UTC,
	}
	if c.Currency == "" {
		c.Currency = "EUR"
	}
	if tz := record.GetString("timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			log.Printf("[Tenancy] Unknown timezone %q for company %s, using UTC", tz, id)
		} else {
			c.Location = loc
		}
	}
	return c, nil
}

// calendar returns today's calendar in the company timezone
func (c *company) calendar(now time.Time) bookings.Calendar {
	return bookings.NewCalendar(now, c.Location)
}

// requestCompany resolves and loads the company of a request
func requestCompany(re *core.RequestEvent, app core.App) (*company, error) {
	id := utils.CompanyID(re)
	if id == "" {
		return nil, errNotFound
	}
	return loadCompany(app, id)
}

// findTenantRecord loads a record by id and hides records of other
// companies behind errNotFound.
func findTenantRecord(app core.App, collection, id, companyID string) (*core.Record, error) {
	if id == "" {
		return nil, errNotFound
	}
	record, err := app.FindRecordById(collection, id)
	if err != nil || !utils.BelongsTo(record, companyID) {
		return nil, errNotFound
	}
	return record, nil
}

// companyRecords returns every record of a collection owned by the company
// that also matches filter.
func companyRecords(app core.App, collection, companyID, filter, sort string, params dbx.Params) ([]*core.Record, error) {
	if params == nil {
		params = dbx.Params{}
	}
	params["company"] = companyID
	return app.FindRecordsByFilter(collection, utils.AndFilter("company = {:company}", filter), sort, 0, 0, params)
}

// knownClientIDs is the set of client ids that exist for a company
func knownClientIDs(app core.App, companyID string) (map[string]bool, error) {
	var ids []string
	err := app.DB().
		Select("id").
		From(utils.CollectionClients).
		Where(dbx.HashExp{"company": companyID}).
		Column(&ids)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return known, nil
}

// companyEntries loads and evaluates the reservations of a company matching
// filter in sort order, flagging those whose client no longer exists.
func companyEntries(app core.App, c *company, now time.Time, filter, sort string, params dbx.Params) ([]bookings.Entry, map[string]*core.Record, error) {
	records, err := companyRecords(app, utils.CollectionReservations, c.ID, filter, sort, params)
	if err != nil {
		return nil, nil, err
	}
	known, err := knownClientIDs(app, c.ID)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[string]*core.Record, len(records))
	rs := make([]bookings.Reservation, len(records))
	for i, r := range records {
		rs[i] = normalizeRecord(r)
		byID[r.Id] = r
	}
	return c.calendar(now).EvaluateAll(rs, known), byID, nil
}
