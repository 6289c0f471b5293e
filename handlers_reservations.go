package main

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/spf13/cast"

	"github.com/concierge-hq/concierge/bookings"
	"github.com/concierge-hq/concierge/metrics"
	"github.com/concierge-hq/concierge/utils"
)

// applyDerivedFields recomputes the stored payment totals of a reservation.
// Derived fields use their own names so they are never read back as input.
func applyDerivedFields(record *core.Record) bookings.Summary {
	s := bookings.Summarize(normalizeRecord(record))
	record.Set("computed_total", s.Total)
	record.Set("paid_total", s.Paid)
	record.Set("due_total", s.Due)
	record.Set("payment_status", string(s.Status))
	return s
}

// registerReservationHooks keeps derived fields current on every save,
// including saves through the built-in collection API
func registerReservationHooks(app core.App) {
	derive := func(e *core.RecordEvent) error {
		applyDerivedFields(e.Record)
		return e.Next()
	}
	app.OnRecordCreate(utils.CollectionReservations).BindFunc(derive)
	app.OnRecordUpdate(utils.CollectionReservations).BindFunc(derive)
}

// evaluateRecord derives the bucket and summary of a single reservation
func evaluateRecord(app core.App, c *company, r *core.Record) bookings.Entry {
	entry := c.calendar(time.Now()).Evaluate(normalizeRecord(r))
	if clientID := r.GetString("client_id"); clientID != "" {
		if _, err := findTenantRecord(app, utils.CollectionClients, clientID, c.ID); err != nil {
			entry.Orphaned = true
		}
	}
	return entry
}

var reservationSorts = []string{
	"check_in", "check_out", "created", "updated",
	"client_name", "property_name", "computed_total", "due_total",
}

// handleReservationsList returns reservations with summary, bucket and orphan flag
func handleReservationsList(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}

	q := re.Request.URL.Query()
	var parts []string
	params := dbx.Params{}
	if status := q.Get("status"); status != "" {
		parts = append(parts, "status = {:status}")
		params["status"] = status
	}
	if ps := q.Get("payment_status"); ps != "" {
		parts = append(parts, "payment_status = {:ps}")
		params["ps"] = ps
	}
	if search := strings.TrimSpace(q.Get("search")); search != "" {
		parts = append(parts, "client_name ~ {:search} || property_name ~ {:search}")
		params["search"] = search
	}
	if clientID := q.Get("client_id"); clientID != "" {
		parts = append(parts, "client_id = {:client}")
		params["client"] = clientID
	}

	var bucket bookings.Bucket
	if b := q.Get("bucket"); b != "" {
		if bucket, err = bookings.ParseBucket(b); err != nil {
			return utils.BadRequestResponse(re, err.Error())
		}
	}

	sort := utils.SortField(q.Get("sort"), reservationSorts, "check_in")
	entries, records, err := companyEntries(app, c, time.Now(), utils.AndFilter(parts...), sort, params)
	if err != nil {
		log.Printf("[Reservations] List failed: %v", err)
		return utils.InternalErrorResponse(re, "Failed to list reservations")
	}
	if bucket != "" {
		entries = bookings.FilterBucket(entries, bucket)
	}
	if q.Get("orphaned") == "1" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Orphaned {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	page := utils.ParsePage(re)
	start := min(page.Offset(), len(entries))
	end := min(start+page.PerPage, len(entries))

	items := make([]map[string]any, 0, end-start)
	for _, e := range entries[start:end] {
		items = append(items, buildReservationResponse(records[e.Reservation.ID], e))
	}
	return utils.ListResponse(re, items, page, len(entries))
}

func handleReservationGet(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}
	record, err := findTenantRecord(app, utils.CollectionReservations, re.Request.PathValue("id"), c.ID)
	if err != nil {
		return utils.NotFoundResponse(re, "Reservation not found")
	}
	return utils.DataResponse(re, buildReservationResponse(record, evaluateRecord(app, c, record)))
}

// fillReservationRefs checks the references set by input and copies the
// client name and property name from them when left empty. Stored references
// are not rechecked, so orphaned reservations stay editable.
func fillReservationRefs(app core.App, record *core.Record, companyID string, input map[string]any) error {
	_, clientSet := input[utils.FieldClientID]
	if clientID := record.GetString(utils.FieldClientID); clientSet && clientID != "" {
		client, err := findTenantRecord(app, utils.CollectionClients, clientID, companyID)
		if err != nil {
			return errors.New("client not found")
		}
		if record.GetString("client_name") == "" {
			record.Set("client_name", client.GetString("name"))
		}
	}
	for _, ref := range []struct{ field, collection string }{
		{"villa_id", utils.CollectionVillas},
		{"boat_id", utils.CollectionBoats},
	} {
		id := record.GetString(ref.field)
		if _, ok := input[ref.field]; !ok || id == "" {
			continue
		}
		item, err := findTenantRecord(app, ref.collection, id, companyID)
		if err != nil {
			return errors.New(strings.TrimSuffix(ref.collection, "s") + " not found")
		}
		if record.GetString("property_name") == "" {
			record.Set("property_name", item.GetString("name"))
		}
	}
	return nil
}

// validateStay rejects a check-out before check-in
func validateStay(record *core.Record) error {
	in, out := record.GetDateTime("check_in"), record.GetDateTime("check_out")
	if !in.IsZero() && !out.IsZero() && out.Time().Before(in.Time()) {
		return errors.New("check_out must not be before check_in")
	}
	return nil
}

func handleReservationCreate(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}

	input, err := utils.DecodeBody(re)
	if err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	collection, err := app.FindCachedCollectionByNameOrId(utils.CollectionReservations)
	if err != nil {
		return utils.InternalErrorResponse(re, "Reservations collection not found")
	}

	record := core.NewRecord(collection)
	record.Set(utils.FieldCompany, c.ID)
	record.Set(utils.FieldStatus, bookings.StatusPending)
	record.Set("currency", c.Currency)
	if err := applyInput(record, input, reservationFields); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if err := fillReservationRefs(app, record, c.ID, input); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if err := validateStay(record); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}

	if err := app.Save(record); err != nil {
		log.Printf("[ReservationCreate] Failed to save: %v", err)
		return utils.InternalErrorResponse(re, "Failed to create reservation")
	}

	return utils.CreatedResponse(re, buildReservationResponse(record, evaluateRecord(app, c, record)))
}

func handleReservationUpdate(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}
	record, err := findTenantRecord(app, utils.CollectionReservations, re.Request.PathValue("id"), c.ID)
	if err != nil {
		return utils.NotFoundResponse(re, "Reservation not found")
	}

	input, err := utils.DecodeBody(re)
	if err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}
	if err := applyInput(record, input, reservationFields); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if err := fillReservationRefs(app, record, c.ID, input); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if err := validateStay(record); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}

	if err := app.Save(record); err != nil {
		log.Printf("[ReservationUpdate] Failed to save: %v", err)
		return utils.InternalErrorResponse(re, "Failed to update reservation")
	}

	return utils.DataResponse(re, buildReservationResponse(record, evaluateRecord(app, c, record)))
}

func handleReservationDelete(re *core.RequestEvent, app core.App) error {
	record, err := findTenantRecord(app, utils.CollectionReservations, re.Request.PathValue("id"), utils.CompanyID(re))
	if err != nil {
		return utils.NotFoundResponse(re, "Reservation not found")
	}

	if err := app.Delete(record); err != nil {
		log.Printf("[ReservationDelete] Failed to delete: %v", err)
		return utils.InternalErrorResponse(re, "Failed to delete reservation")
	}

	return utils.SuccessResponse(re, "Reservation deleted successfully")
}

// --- Payments ---

// updatePayments loads a reservation inside a transaction, lets change edit
// its payments list and saves it. Concurrent payment edits are serialized.
func updatePayments(app core.App, companyID, reservationID string, change func([]map[string]any) ([]map[string]any, error)) (*core.Record, error) {
	var saved *core.Record
	err := app.RunInTransaction(func(txApp core.App) error {
		record, err := findTenantRecord(txApp, utils.CollectionReservations, reservationID, companyID)
		if err != nil {
			return err
		}

		entries, err := change(bookings.PaymentEntries(plainValue(record.Get("payments"))))
		if err != nil {
			return err
		}
		record.Set("payments", entries)

		if err := txApp.Save(record); err != nil {
			return err
		}
		saved = record
		return nil
	})
	return saved, err
}

// paymentInput reads a payment from a request body. Amounts may be numbers
// or numeric strings and dates any format the bookings package reads.
func paymentInput(body map[string]any) bookings.PaymentInput {
	in := bookings.PaymentInput{
		Amount: bookings.Amount(body["amount"]),
		Method: cast.ToString(body["method"]),
		Type:   cast.ToString(body["type"]),
		Note:   cast.ToString(body["note"]),
	}
	if d, ok := bookings.ParseDate(body["date"]); ok {
		in.Date = d
	}
	return in
}

// handlePaymentAdd appends a payment to a reservation
func handlePaymentAdd(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}

	body, err := utils.DecodeBody(re)
	if err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	payment, err := bookings.NewPayment(paymentInput(body), time.Now())
	if err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}

	id := re.Request.PathValue("id")
	record, err := updatePayments(app, c.ID, id, func(entries []map[string]any) ([]map[string]any, error) {
		return append(entries, payment.Document()), nil
	})
	if errors.Is(err, errNotFound) {
		return utils.NotFoundResponse(re, "Reservation not found")
	}
	if err != nil {
		log.Printf("[Payments] Failed to add payment to %s: %v", id, err)
		return utils.InternalErrorResponse(re, "Failed to add payment")
	}

	utils.LogFromRequest(app, re, "payment_add", utils.CollectionReservations, record.Id, map[string]any{
		"payment": payment.Document(),
	})
	metrics.PaymentAdded(payment.Type)
	log.Printf("[Payments] Added %s %.2f to reservation %s", payment.Type, payment.Amount, record.Id)

	return utils.CreatedResponse(re, buildReservationResponse(record, evaluateRecord(app, c, record)))
}

// handlePaymentDelete removes a payment from a reservation
func handlePaymentDelete(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}

	id := re.Request.PathValue("id")
	paymentID := re.Request.PathValue("paymentId")
	record, err := updatePayments(app, c.ID, id, func(entries []map[string]any) ([]map[string]any, error) {
		return bookings.RemovePayment(entries, paymentID)
	})
	switch {
	case errors.Is(err, errNotFound):
		return utils.NotFoundResponse(re, "Reservation not found")
	case errors.Is(err, bookings.ErrPaymentNotFound):
		return utils.NotFoundResponse(re, "Payment not found")
	case err != nil:
		log.Printf("[Payments] Failed to remove payment %s from %s: %v", paymentID, id, err)
		return utils.InternalErrorResponse(re, "Failed to remove payment")
	}

	utils.LogFromRequest(app, re, "payment_remove", utils.CollectionReservations, record.Id, map[string]any{
		"payment_id": paymentID,
	})
	metrics.PaymentRemoved()

	return utils.DataResponse(re, buildReservationResponse(record, evaluateRecord(app, c, record)))
}
