package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/concierge-hq/concierge/bookings"
	"github.com/concierge-hq/concierge/metrics"
	"github.com/concierge-hq/concierge/utils"
)

// legacyDoc is one document read from the legacy store
type legacyDoc struct {
	ID   string
	Data map[string]any
}

// legacySource lists the documents of a legacy collection that belong to a company
type legacySource interface {
	Documents(ctx context.Context, collection, companyID string) ([]legacyDoc, error)
}

// firestoreSource reads from Google Cloud Firestore
type firestoreSource struct {
	client *firestore.Client
}

// newFirestoreSource connects with the given service account file, or with
// GOOGLE_APPLICATION_CREDENTIALS_JSON, or with application default credentials.
func newFirestoreSource(ctx context.Context, projectID, credentialsFile string) (*firestoreSource, error) {
	var opts []option.ClientOption
	switch {
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	case os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON") != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &firestoreSource{client: client}, nil
}

func (s *firestoreSource) Close() error {
	return s.client.Close()
}

func (s *firestoreSource) Documents(ctx context.Context, collection, companyID string) ([]legacyDoc, error) {
	iter := s.client.Collection(collection).Where("companyId", "==", companyID).Documents(ctx)
	defer iter.Stop()

	var docs []legacyDoc
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", collection, err)
		}
		docs = append(docs, legacyDoc{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

// importOrder is the write order; references must be written after their targets
var importOrder = []string{
	utils.CollectionClients,
	utils.CollectionVillas,
	utils.CollectionBoats,
	utils.CollectionReservations,
	utils.CollectionOffers,
}

// ImportStats counts the outcome per collection
type ImportStats struct {
	Created int
	Updated int
	Failed  int
}

// idMap maps legacy ids to PocketBase ids per collection
type idMap map[string]map[string]string

// resolve returns the new id for a legacy reference. Unknown references are
// kept as they are so they surface as orphans.
func (m idMap) resolve(collection, legacyID string) string {
	if legacyID == "" {
		return ""
	}
	if id, ok := m[collection][legacyID]; ok {
		return id
	}
	return legacyID
}

// fetchLegacy reads every collection concurrently
func fetchLegacy(ctx context.Context, src legacySource, companyID string) (map[string][]legacyDoc, error) {
	results := make([][]legacyDoc, len(importOrder))
	g, ctx := errgroup.WithContext(ctx)
	for i, coll := range importOrder {
		g.Go(func() error {
			docs, err := src.Documents(ctx, coll, companyID)
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]legacyDoc, len(importOrder))
	for i, coll := range importOrder {
		out[coll] = results[i]
	}
	return out, nil
}

// runFirestoreImport copies a company's legacy documents into PocketBase.
// Documents are matched on legacy_id so the import can be repeated.
func runFirestoreImport(ctx context.Context, app core.App, src legacySource, companyID string) (map[string]ImportStats, error) {
	if _, err := loadCompany(app, companyID); err != nil {
		return nil, fmt.Errorf("company %s not found", companyID)
	}

	docs, err := fetchLegacy(ctx, src, companyID)
	if err != nil {
		return nil, err
	}

	ids := idMap{}
	stats := map[string]ImportStats{}
	now := time.Now()

	for _, coll := range importOrder {
		ids[coll] = map[string]string{}
		st := stats[coll]
		log.Printf("[Import] %s: %d documents", coll, len(docs[coll]))

		for _, doc := range docs[coll] {
			input, fields, payments := mapLegacy(coll, doc, ids, now)
			id, created, err := upsertLegacy(app, coll, companyID, doc.ID, input, fields, payments)
			if err != nil {
				log.Printf("[Import] Warning: %s/%s: %v", coll, doc.ID, err)
				st.Failed++
				continue
			}
			ids[coll][doc.ID] = id
			if created {
				st.Created++
			} else {
				st.Updated++
			}
		}
		stats[coll] = st
		metrics.Imported(coll, "created", st.Created)
		metrics.Imported(coll, "updated", st.Updated)
		metrics.Imported(coll, "failed", st.Failed)
	}

	// Synchronous: the command exits right after
	if err := utils.SaveAudit(app, utils.AuditEntry{
		Company:      companyID,
		Action:       "import",
		ResourceType: "firestore",
		Changes:      map[string]any{"stats": stats},
		Status:       "success",
	}); err != nil {
		log.Printf("[Import] Warning: Failed to save audit log: %v", err)
	}

	return stats, nil
}

func mapLegacy(coll string, doc legacyDoc, ids idMap, now time.Time) (map[string]any, []fieldSpec, []map[string]any) {
	switch coll {
	case utils.CollectionClients:
		return mapLegacyClient(doc.Data), clientFields, nil
	case utils.CollectionVillas:
		return mapLegacyVilla(doc.Data), villaFields, nil
	case utils.CollectionBoats:
		return mapLegacyBoat(doc.Data), boatFields, nil
	case utils.CollectionReservations:
		input, payments := mapLegacyReservation(doc, ids, now)
		return input, reservationFields, payments
	default:
		return mapLegacyOffer(doc.Data, ids), offerFields, nil
	}
}

func upsertLegacy(app core.App, coll, companyID, legacyID string, input map[string]any, fields []fieldSpec, payments []map[string]any) (string, bool, error) {
	record, err := app.FindFirstRecordByFilter(coll,
		"company = {:company} && legacy_id = {:legacy}",
		dbx.Params{"company": companyID, "legacy": legacyID},
	)
	created := false
	if err != nil {
		collection, err := app.FindCachedCollectionByNameOrId(coll)
		if err != nil {
			return "", false, err
		}
		record = core.NewRecord(collection)
		record.Set(utils.FieldCompany, companyID)
		record.Set(utils.FieldLegacyID, legacyID)
		created = true
	}

	if err := applyInput(record, input, fields); err != nil {
		return "", false, err
	}
	if payments != nil {
		if !created {
			payments = mergePayments(bookings.PaymentEntries(plainValue(record.Get("payments"))), payments)
		}
		record.Set("payments", payments)
	}
	if err := app.Save(record); err != nil {
		return "", false, err
	}
	return record.Id, created, nil
}

// --- Legacy document mapping ---

func legacyString(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(cast.ToString(doc[k])); s != "" {
			return s
		}
	}
	return ""
}

func legacyNumber(doc map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := doc[k]; ok && v != nil {
			return bookings.Amount(v)
		}
	}
	return 0
}

func legacyDate(doc map[string]any, keys ...string) any {
	for _, k := range keys {
		if t, ok := bookings.ParseDate(doc[k]); ok {
			return t.UTC()
		}
	}
	return ""
}

// legacyChoice lowercases s and returns it when allowed, else fallback
func legacyChoice(s string, allowed []string, fallback string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "canceled" {
		s = bookings.StatusCancelled
	}
	if slices.Contains(allowed, s) {
		return s
	}
	return fallback
}

func mapLegacyClient(d map[string]any) map[string]any {
	name := legacyString(d, "name", "fullName", "full_name")
	if name == "" {
		name = strings.TrimSpace(legacyString(d, "firstName", "first_name") + " " + legacyString(d, "lastName", "last_name"))
	}
	email := utils.NormalizeEmail(legacyString(d, "email", "emailAddress"))
	if name == "" {
		name = email
	}
	tags := bookings.PhotoStrings(d["tags"])
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"name":        name,
		"email":       email,
		"phone":       legacyString(d, "phone", "phoneNumber", "mobile"),
		"nationality": legacyString(d, "nationality", "country"),
		"notes":       legacyString(d, "notes", "note", "comments"),
		"tags":        tags,
		"status":      legacyChoice(legacyString(d, "status"), utils.ClientStatuses, "active"),
	}
}

func legacyPhotos(d map[string]any) []string {
	for _, k := range []string{"photos", "images", "gallery", "photoUrls"} {
		if photos := bookings.PhotoStrings(d[k]); photos != nil {
			return photos
		}
	}
	return []string{}
}

func mapLegacyVilla(d map[string]any) map[string]any {
	return map[string]any{
		"name":            legacyString(d, "name", "title"),
		"location":        legacyString(d, "location", "area", "address"),
		"description":     legacyString(d, "description"),
		"bedrooms":        legacyNumber(d, "bedrooms", "rooms"),
		"capacity":        legacyNumber(d, "capacity", "maxGuests", "max_guests"),
		"price_per_night": legacyNumber(d, "price_per_night", "pricePerNight", "nightlyRate", "price"),
		"photos":          legacyPhotos(d),
		"status":          legacyChoice(legacyString(d, "status"), utils.InventoryStatuses, "active"),
	}
}

func mapLegacyBoat(d map[string]any) map[string]any {
	return map[string]any{
		"name":          legacyString(d, "name", "title"),
		"boat_type":     legacyString(d, "boat_type", "boatType", "type"),
		"description":   legacyString(d, "description"),
		"capacity":      legacyNumber(d, "capacity", "maxGuests", "max_guests"),
		"length_m":      legacyNumber(d, "length_m", "length", "lengthMeters"),
		"price_per_day": legacyNumber(d, "price_per_day", "pricePerDay", "dailyRate", "price"),
		"photos":        legacyPhotos(d),
		"status":        legacyChoice(legacyString(d, "status"), utils.InventoryStatuses, "active"),
	}
}

// legacyEntryID is a stable id for a nested entry of a legacy document, so
// imports can be repeated without changing ids.
func legacyEntryID(legacyID, kind string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%s/%d", legacyID, kind, i))).String()
}

// mergePayments replaces the imported entries of a payments list and keeps
// those recorded since the previous import.
func mergePayments(existing, imported []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(existing)+len(imported))
	out = append(out, imported...)
	seen := make(map[string]bool, len(imported))
	for _, p := range imported {
		seen[cast.ToString(p["id"])] = true
	}
	for _, p := range existing {
		if id := cast.ToString(p["id"]); id == "" || !seen[id] {
			out = append(out, p)
		}
	}
	return out
}

// mapLegacyReservation reads a reservation in any legacy shape. Payments
// without an id get a stable one so they can be removed later, and a legacy
// paid amount without history becomes a single payment entry.
func mapLegacyReservation(doc legacyDoc, ids idMap, now time.Time) (map[string]any, []map[string]any) {
	r := bookings.NormalizeReservation(doc.Data)

	services := make([]map[string]any, 0, len(r.Services))
	for _, s := range r.Services {
		svc := map[string]any{
			"id":       s.ID,
			"type":     s.Type,
			"name":     s.Name,
			"price":    s.Price,
			"quantity": s.Quantity,
			"status":   s.Status,
		}
		if svc["id"] == "" {
			svc["id"] = legacyEntryID(doc.ID, "service", len(services))
		}
		if !s.Date.IsZero() {
			svc["date"] = s.Date.UTC().Format(time.RFC3339)
		}
		services = append(services, svc)
	}

	payments := make([]map[string]any, 0, len(r.Payments))
	for i, p := range r.Payments {
		if p.ID == "" {
			p.ID = legacyEntryID(doc.ID, "payment", i)
		}
		payments = append(payments, p.Document())
	}
	if len(payments) == 0 && r.LegacyPaid > 0 {
		date := r.CheckIn
		if date.IsZero() {
			date = now
		}
		if p, err := bookings.NewPayment(bookings.PaymentInput{
			Amount: r.LegacyPaid,
			Method: "other",
			Note:   "Imported paid amount",
			Date:   date,
		}, now); err == nil {
			p.ID = legacyEntryID(doc.ID, "paid", 0)
			payments = append(payments, p.Document())
		}
	}

	input := map[string]any{
		"client_id":     ids.resolve(utils.CollectionClients, r.ClientID),
		"client_name":   r.ClientName,
		"villa_id":      ids.resolve(utils.CollectionVillas, r.VillaID),
		"boat_id":       ids.resolve(utils.CollectionBoats, r.BoatID),
		"property_name": r.PropertyName,
		"check_in":      timeOrEmpty(r.CheckIn),
		"check_out":     timeOrEmpty(r.CheckOut),
		"guests":        r.Guests,
		"status":        legacyChoice(r.Status, utils.ReservationStatuses, bookings.StatusConfirmed),
		"currency":      r.Currency,
		"base_price":    r.BasePrice,
		"total_amount":  r.ExplicitTotal,
		"services":      services,
		"notes":         legacyString(doc.Data, "notes", "note", "comments"),
	}
	return input, payments
}

func mapLegacyOffer(d map[string]any, ids idMap) map[string]any {
	items := d["items"]
	if items == nil {
		items = d["lineItems"]
	}
	if items == nil {
		items = []any{}
	}
	title := legacyString(d, "title", "name")
	if title == "" {
		title = "Imported offer"
	}
	return map[string]any{
		"client_id":     ids.resolve(utils.CollectionClients, legacyString(d, "client_id", "clientId")),
		"client_name":   legacyString(d, "client_name", "clientName"),
		"client_email":  utils.NormalizeEmail(legacyString(d, "client_email", "clientEmail")),
		"title":         title,
		"items":         items,
		"total_amount":  legacyNumber(d, "total_amount", "totalAmount", "total", "totalPrice"),
		"currency":      strings.ToUpper(legacyString(d, "currency")),
		"status":        legacyChoice(legacyString(d, "status"), utils.OfferStatuses, "draft"),
		"valid_until":   legacyDate(d, "valid_until", "validUntil", "expiresAt"),
		"villa_id":      ids.resolve(utils.CollectionVillas, legacyString(d, "villa_id", "villaId")),
		"boat_id":       ids.resolve(utils.CollectionBoats, legacyString(d, "boat_id", "boatId")),
		"property_name": legacyString(d, "property_name", "propertyName", "villaName", "boatName"),
		"check_in":      legacyDate(d, "check_in", "checkIn", "startDate"),
		"check_out":     legacyDate(d, "check_out", "checkOut", "endDate"),
		"guests":        legacyNumber(d, "guests", "guestCount"),
		"notes":         legacyString(d, "notes", "note"),
	}
}

func timeOrEmpty(t time.Time) any {
	if t.IsZero() {
		return ""
	}
	return t.UTC()
}
