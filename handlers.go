package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"github.com/concierge-hq/concierge/bookings"
	"github.com/concierge-hq/concierge/utils"
)

// --- Dashboard & bookings ---

// handleDashboard returns the per-company booking overview
func handleDashboard(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}

	q := re.Request.URL.Query()
	days, _ := strconv.Atoi(q.Get("days"))
	year, _ := strconv.Atoi(q.Get("year"))

	now := time.Now()
	entries, _, err := companyEntries(app, c, now, "", "check_in", nil)
	if err != nil {
		log.Printf("[Dashboard] Failed to load reservations for %s: %v", c.ID, err)
		return utils.InternalErrorResponse(re, "Failed to load dashboard")
	}

	clients, _ := app.CountRecords(utils.CollectionClients, dbx.HashExp{"company": c.ID})
	villas, _ := app.CountRecords(utils.CollectionVillas, dbx.HashExp{"company": c.ID, "status": "active"})
	boats, _ := app.CountRecords(utils.CollectionBoats, dbx.HashExp{"company": c.ID, "status": "active"})
	openOffers, _ := app.CountRecords(utils.CollectionOffers,
		dbx.HashExp{"company": c.ID},
		dbx.In("status", "draft", "sent"),
	)

	return utils.DataResponse(re, map[string]any{
		"company": map[string]any{
			"id":       c.ID,
			"name":     c.Name,
			"currency": c.Currency,
			"timezone": c.Location.String(),
		},
		"bookings":    bookings.BuildDashboard(entries, c.calendar(now), days, year),
		"clients":     clients,
		"villas":      villas,
		"boats":       boats,
		"open_offers": openOffers,
	})
}

// handleBookings returns reservations grouped by client
func handleBookings(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}

	q := re.Request.URL.Query()
	var bucket bookings.Bucket
	if b := q.Get("bucket"); b != "" {
		if bucket, err = bookings.ParseBucket(b); err != nil {
			return utils.BadRequestResponse(re, err.Error())
		}
	}

	entries, records, err := companyEntries(app, c, time.Now(), "", "check_in", nil)
	if err != nil {
		log.Printf("[Bookings] Failed to load reservations for %s: %v", c.ID, err)
		return utils.InternalErrorResponse(re, "Failed to load bookings")
	}
	if bucket != "" {
		entries = bookings.FilterBucket(entries, bucket)
	}

	groups := bookings.GroupByClient(entries)
	if search := strings.ToLower(strings.TrimSpace(q.Get("search"))); search != "" {
		filtered := groups[:0]
		for _, g := range groups {
			if strings.Contains(strings.ToLower(g.ClientName), search) {
				filtered = append(filtered, g)
			}
		}
		groups = filtered
	}

	page := utils.ParsePage(re)
	start := min(page.Offset(), len(groups))
	end := min(start+page.PerPage, len(groups))

	items := make([]map[string]any, 0, end-start)
	for _, g := range groups[start:end] {
		items = append(items, buildGroupResponse(g, records))
	}

	return utils.ListResponse(re, items, page, len(groups))
}

func buildGroupResponse(g bookings.ClientGroup, records map[string]*core.Record) map[string]any {
	reservations := make([]map[string]any, 0, len(g.Entries))
	for _, e := range g.Entries {
		if r, ok := records[e.Reservation.ID]; ok {
			reservations = append(reservations, buildReservationResponse(r, e))
		}
	}
	return map[string]any{
		"key":            g.Key,
		"client_id":      g.ClientID,
		"client_name":    g.ClientName,
		"total":          g.Total,
		"paid":           g.Paid,
		"due":            g.Due,
		"payment_status": g.Status,
		"counts":         g.Counts,
		"next_check_in":  g.NextCheckIn,
		"last_check_out": g.LastCheckOut,
		"orphaned":       g.Orphaned,
		"reservations":   reservations,
	}
}

// --- Clients ---

// handleClientsList returns clients with their booking totals
func handleClientsList(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}

	q := re.Request.URL.Query()
	page := utils.ParsePage(re)
	search := strings.TrimSpace(q.Get("search"))
	status := q.Get("status")
	sort := utils.SortField(q.Get("sort"), []string{"name", "created", "updated", "nationality"}, "name")

	cipher := utils.DefaultCipher()
	var parts []string
	params := dbx.Params{"company": c.ID, "status": status, "search": search}
	parts = append(parts, "company = {:company}")
	if status != "" {
		parts = append(parts, "status = {:status}")
	}
	if search != "" {
		// Name by LIKE, email by blind index (exact match) when encrypted
		if cipher.Enabled() {
			parts = append(parts, "name ~ {:search} || email_index = {:emailIdx}")
			params["emailIdx"] = cipher.BlindIndex(search)
		} else {
			parts = append(parts, "name ~ {:search} || email ~ {:search}")
		}
	}
	filter := utils.AndFilter(parts...)

	all, err := app.FindRecordsByFilter(utils.CollectionClients, filter, "", 0, 0, params)
	if err != nil {
		log.Printf("[Clients] List failed: %v", err)
		return utils.InternalErrorResponse(re, "Failed to list clients")
	}
	records, err := app.FindRecordsByFilter(utils.CollectionClients, filter, sort, page.PerPage, page.Offset(), params)
	if err != nil {
		log.Printf("[Clients] List failed: %v", err)
		return utils.InternalErrorResponse(re, "Failed to list clients")
	}

	entries, _, err := companyEntries(app, c, time.Now(), "", "check_in", nil)
	if err != nil {
		log.Printf("[Clients] Failed to load reservations: %v", err)
		return utils.InternalErrorResponse(re, "Failed to list clients")
	}
	groups := map[string]bookings.ClientGroup{}
	for _, g := range bookings.GroupByClient(entries) {
		groups[g.Key] = g
	}

	items := make([]map[string]any, len(records))
	for i, r := range records {
		item := buildClientResponse(r, cipher.DecryptRecord(r))
		item["bookings"] = clientTotals(groups[r.Id])
		items[i] = item
	}

	return utils.ListResponse(re, items, page, len(all))
}

func clientTotals(g bookings.ClientGroup) map[string]any {
	status := g.Status
	if status == "" {
		status = bookings.PaymentUnpriced
	}
	return map[string]any{
		"reservations":   len(g.Entries),
		"total":          g.Total,
		"paid":           g.Paid,
		"due":            g.Due,
		"payment_status": status,
		"counts":         g.Counts,
		"next_check_in":  g.NextCheckIn,
	}
}

// handleClientGet returns one client
func handleClientGet(re *core.RequestEvent, app core.App) error {
	record, err := findTenantRecord(app, utils.CollectionClients, re.Request.PathValue("id"), utils.CompanyID(re))
	if err != nil {
		return utils.NotFoundResponse(re, "Client not found")
	}
	return utils.DataResponse(re, buildClientResponse(record, utils.DefaultCipher().DecryptRecord(record)))
}

// handleClientCreate creates a client in the request's company
func handleClientCreate(re *core.RequestEvent, app core.App) error {
	companyID := utils.CompanyID(re)

	input, err := utils.DecodeBody(re)
	if err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	collection, err := app.FindCachedCollectionByNameOrId(utils.CollectionClients)
	if err != nil {
		return utils.InternalErrorResponse(re, "Clients collection not found")
	}

	record := core.NewRecord(collection)
	record.Set(utils.FieldCompany, companyID)
	record.Set(utils.FieldStatus, "active")
	if err := applyInput(record, input, clientFields); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if strings.TrimSpace(record.GetString("name")) == "" {
		return utils.BadRequestResponse(re, "Name is required")
	}

	email := utils.NormalizeEmail(record.GetString("email"))
	record.Set("email", email)
	if email != "" && clientEmailTaken(app, companyID, email, "") {
		return utils.ConflictResponse(re, "A client with this email already exists")
	}

	if err := app.Save(record); err != nil {
		log.Printf("[ClientCreate] Failed to save: %v", err)
		return utils.InternalErrorResponse(re, "Failed to create client")
	}

	return utils.CreatedResponse(re, buildClientResponse(record, utils.DefaultCipher().DecryptRecord(record)))
}

// handleClientUpdate updates a client
func handleClientUpdate(re *core.RequestEvent, app core.App) error {
	companyID := utils.CompanyID(re)
	record, err := findTenantRecord(app, utils.CollectionClients, re.Request.PathValue("id"), companyID)
	if err != nil {
		return utils.NotFoundResponse(re, "Client not found")
	}

	input, err := utils.DecodeBody(re)
	if err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}
	if err := applyInput(record, input, clientFields); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if strings.TrimSpace(record.GetString("name")) == "" {
		return utils.BadRequestResponse(re, "Name is required")
	}

	if _, ok := input["email"]; ok {
		email := utils.NormalizeEmail(record.GetString("email"))
		record.Set("email", email)
		if email == "" {
			record.Set("email_index", "")
		} else if clientEmailTaken(app, companyID, email, record.Id) {
			return utils.ConflictResponse(re, "A client with this email already exists")
		}
	}

	if err := app.Save(record); err != nil {
		log.Printf("[ClientUpdate] Failed to save: %v", err)
		return utils.InternalErrorResponse(re, "Failed to update client")
	}

	return utils.DataResponse(re, buildClientResponse(record, utils.DefaultCipher().DecryptRecord(record)))
}

// clientEmailTaken checks for another client of the company with the same
// email, through the blind index when encryption is on.
func clientEmailTaken(app core.App, companyID, email, exceptID string) bool {
	cipher := utils.DefaultCipher()
	filter := "company = {:company} && id != {:id} && email = {:email}"
	params := dbx.Params{"company": companyID, "id": exceptID, "email": email}
	if cipher.Enabled() {
		filter = "company = {:company} && id != {:id} && email_index = {:idx}"
		params["idx"] = cipher.BlindIndex(email)
	}
	existing, _ := app.FindRecordsByFilter(utils.CollectionClients, filter, "", 1, 0, params)
	return len(existing) > 0
}

// handleClientDelete deletes a client. Its reservations and offers are kept
// and surface as orphans.
func handleClientDelete(re *core.RequestEvent, app core.App) error {
	record, err := findTenantRecord(app, utils.CollectionClients, re.Request.PathValue("id"), utils.CompanyID(re))
	if err != nil {
		return utils.NotFoundResponse(re, "Client not found")
	}

	if err := app.Delete(record); err != nil {
		log.Printf("[ClientDelete] Failed to delete: %v", err)
		return utils.InternalErrorResponse(re, "Failed to delete client")
	}

	return utils.SuccessResponse(re, "Client deleted successfully")
}

// handleClientReservations returns a client's reservations and their totals
func handleClientReservations(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}
	client, err := findTenantRecord(app, utils.CollectionClients, re.Request.PathValue("id"), c.ID)
	if err != nil {
		return utils.NotFoundResponse(re, "Client not found")
	}

	entries, records, err := companyEntries(app, c, time.Now(), "client_id = {:client}", "check_in", dbx.Params{"client": client.Id})
	if err != nil {
		log.Printf("[ClientReservations] Failed to load: %v", err)
		return utils.InternalErrorResponse(re, "Failed to load reservations")
	}

	groups := bookings.GroupByClient(entries)
	summary := bookings.EmptyGroup(client.Id, client.GetString("name"))
	if len(groups) > 0 {
		summary = groups[0]
	}

	return utils.DataResponse(re, buildGroupResponse(summary, records))
}

// --- Utility Functions ---

// getBaseURL returns the base URL of the web app (share links, emails)
func getBaseURL() string {
	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	return strings.TrimRight(baseURL, "/")
}
