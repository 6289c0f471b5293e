package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/spf13/cast"

	"github.com/concierge-hq/concierge/bookings"
	"github.com/concierge-hq/concierge/utils"
)

// recordDoc converts a record into a plain document: JSON fields decoded,
// dates as time.Time, the id under "id".
func recordDoc(r *core.Record) map[string]any {
	data := r.FieldsData()
	doc := make(map[string]any, len(data)+1)
	for k, v := range data {
		doc[k] = plainValue(v)
	}
	doc["id"] = r.Id
	return doc
}

// plainValue unwraps PocketBase field types into values the bookings
// package understands.
func plainValue(v any) any {
	switch t := v.(type) {
	case types.JSONRaw:
		if len(t) == 0 {
			return nil
		}
		var out any
		if err := json.Unmarshal(t, &out); err != nil {
			return nil
		}
		return out
	case types.DateTime:
		if t.IsZero() {
			return nil
		}
		return t.Time()
	}
	return v
}

// normalizeRecord reads a reservation record
func normalizeRecord(r *core.Record) bookings.Reservation {
	return bookings.NormalizeReservation(recordDoc(r))
}

// --- Input mapping ---

type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
	kindInt
	kindDate
	kindJSON
	kindUpper
)

// fieldSpec describes a user-writable field
type fieldSpec struct {
	Name    string
	Kind    fieldKind
	Allowed []string
}

// recordSetter is satisfied by *core.Record
type recordSetter interface {
	Set(key string, value any)
}

var clientFields = []fieldSpec{
	{Name: "name"},
	{Name: "email"},
	{Name: "phone"},
	{Name: "nationality"},
	{Name: "notes"},
	{Name: "tags", Kind: kindJSON},
	{Name: "status", Allowed: utils.ClientStatuses},
}

var villaFields = []fieldSpec{
	{Name: "name"},
	{Name: "location"},
	{Name: "description"},
	{Name: "bedrooms", Kind: kindInt},
	{Name: "capacity", Kind: kindInt},
	{Name: "price_per_night", Kind: kindNumber},
	{Name: "photos", Kind: kindJSON},
	{Name: "status", Allowed: utils.InventoryStatuses},
}

var boatFields = []fieldSpec{
	{Name: "name"},
	{Name: "boat_type"},
	{Name: "description"},
	{Name: "capacity", Kind: kindInt},
	{Name: "length_m", Kind: kindNumber},
	{Name: "price_per_day", Kind: kindNumber},
	{Name: "photos", Kind: kindJSON},
	{Name: "status", Allowed: utils.InventoryStatuses},
}

// Payments are only changed through the payments endpoints and the derived
// totals only by the save hook.
var reservationFields = []fieldSpec{
	{Name: "client_id"},
	{Name: "client_name"},
	{Name: "villa_id"},
	{Name: "boat_id"},
	{Name: "property_name"},
	{Name: "check_in", Kind: kindDate},
	{Name: "check_out", Kind: kindDate},
	{Name: "guests", Kind: kindInt},
	{Name: "status", Allowed: utils.ReservationStatuses},
	{Name: "currency", Kind: kindUpper},
	{Name: "base_price", Kind: kindNumber},
	{Name: "total_amount", Kind: kindNumber},
	{Name: "services", Kind: kindJSON},
	{Name: "notes"},
}

var offerFields = []fieldSpec{
	{Name: "client_id"},
	{Name: "client_name"},
	{Name: "client_email"},
	{Name: "title"},
	{Name: "items", Kind: kindJSON},
	{Name: "total_amount", Kind: kindNumber},
	{Name: "currency", Kind: kindUpper},
	{Name: "status", Allowed: utils.OfferStatuses},
	{Name: "valid_until", Kind: kindDate},
	{Name: "villa_id"},
	{Name: "boat_id"},
	{Name: "property_name"},
	{Name: "check_in", Kind: kindDate},
	{Name: "check_out", Kind: kindDate},
	{Name: "guests", Kind: kindInt},
	{Name: "notes"},
}

// applyInput copies the listed fields present in input onto a record.
// Unknown keys are ignored; company and id can never be set this way.
func applyInput(record recordSetter, input map[string]any, fields []fieldSpec) error {
	for _, f := range fields {
		raw, ok := input[f.Name]
		if !ok {
			continue
		}
		value, err := inputValue(f, raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		record.Set(f.Name, value)
	}
	return nil
}

func inputValue(f fieldSpec, raw any) (any, error) {
	switch f.Kind {
	case kindNumber, kindInt:
		if raw == nil || raw == "" {
			return 0, nil
		}
		n, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, fmt.Errorf("must be a number")
		}
		if n < 0 {
			return nil, fmt.Errorf("must not be negative")
		}
		if f.Kind == kindInt {
			return int(n), nil
		}
		return n, nil
	case kindDate:
		if raw == nil || raw == "" {
			return "", nil
		}
		t, ok := bookings.ParseDate(raw)
		if !ok {
			return nil, fmt.Errorf("must be a date")
		}
		return t.UTC(), nil
	case kindJSON:
		return raw, nil
	}

	s, err := cast.ToStringE(raw)
	if err != nil {
		return nil, fmt.Errorf("must be a string")
	}
	s = strings.TrimSpace(s)
	if f.Kind == kindUpper {
		s = strings.ToUpper(s)
	}
	if len(f.Allowed) > 0 && s != "" && !slices.Contains(f.Allowed, s) {
		return nil, fmt.Errorf("must be one of %s", strings.Join(f.Allowed, ", "))
	}
	return s, nil
}

// --- Response builders ---

func dateString(r *core.Record, field string) string {
	dt := r.GetDateTime(field)
	if dt.IsZero() {
		return ""
	}
	return dt.Time().UTC().Format(time.RFC3339)
}

func jsonValue(r *core.Record, field string) any {
	return plainValue(r.Get(field))
}

func buildClientResponse(r *core.Record, pii map[string]string) map[string]any {
	return map[string]any{
		"id":          r.Id,
		"name":        r.GetString("name"),
		"email":       pii["email"],
		"phone":       pii["phone"],
		"nationality": r.GetString("nationality"),
		"notes":       r.GetString("notes"),
		"tags":        jsonValue(r, "tags"),
		"status":      r.GetString("status"),
		"legacy_id":   r.GetString("legacy_id"),
		"created":     dateString(r, "created"),
		"updated":     dateString(r, "updated"),
	}
}

func buildReservationResponse(r *core.Record, e bookings.Entry) map[string]any {
	return map[string]any{
		"id":             r.Id,
		"client_id":      r.GetString("client_id"),
		"client_name":    r.GetString("client_name"),
		"villa_id":       r.GetString("villa_id"),
		"boat_id":        r.GetString("boat_id"),
		"property_name":  r.GetString("property_name"),
		"check_in":       e.CheckIn,
		"check_out":      e.CheckOut,
		"guests":         r.GetInt("guests"),
		"status":         r.GetString("status"),
		"currency":       r.GetString("currency"),
		"base_price":     r.GetFloat("base_price"),
		"total_amount":   r.GetFloat("total_amount"),
		"services":       jsonValue(r, "services"),
		"payments":       jsonValue(r, "payments"),
		"summary":        e.Summary,
		"payment_status": e.Summary.Status,
		"bucket":         e.Bucket,
		"orphaned":       e.Orphaned,
		"offer_id":       r.GetString("offer_id"),
		"notes":          r.GetString("notes"),
		"legacy_id":      r.GetString("legacy_id"),
		"created":        dateString(r, "created"),
		"updated":        dateString(r, "updated"),
	}
}

func buildOfferResponse(r *core.Record) map[string]any {
	return map[string]any{
		"id":             r.Id,
		"client_id":      r.GetString("client_id"),
		"client_name":    r.GetString("client_name"),
		"client_email":   r.GetString("client_email"),
		"title":          r.GetString("title"),
		"items":          jsonValue(r, "items"),
		"total_amount":   r.GetFloat("total_amount"),
		"currency":       r.GetString("currency"),
		"status":         r.GetString("status"),
		"valid_until":    dateString(r, "valid_until"),
		"villa_id":       r.GetString("villa_id"),
		"boat_id":        r.GetString("boat_id"),
		"property_name":  r.GetString("property_name"),
		"check_in":       dateString(r, "check_in"),
		"check_out":      dateString(r, "check_out"),
		"guests":         r.GetInt("guests"),
		"notes":          r.GetString("notes"),
		"shared":         r.GetString("share_token") != "",
		"share_expires":  dateString(r, "share_expires"),
		"reservation_id": r.GetString("reservation_id"),
		"legacy_id":      r.GetString("legacy_id"),
		"created":        dateString(r, "created"),
		"updated":        dateString(r, "updated"),
	}
}

// buildPublicOfferResponse is what a client sees through a share link
func buildPublicOfferResponse(r *core.Record, companyName string, now time.Time) map[string]any {
	validUntil := r.GetDateTime("valid_until")
	return map[string]any{
		"company":       companyName,
		"title":         r.GetString("title"),
		"client_name":   r.GetString("client_name"),
		"items":         jsonValue(r, "items"),
		"total_amount":  r.GetFloat("total_amount"),
		"currency":      r.GetString("currency"),
		"status":        r.GetString("status"),
		"valid_until":   dateString(r, "valid_until"),
		"expired":       !validUntil.IsZero() && validUntil.Time().Before(now),
		"property_name": r.GetString("property_name"),
		"check_in":      dateString(r, "check_in"),
		"check_out":     dateString(r, "check_out"),
		"guests":        r.GetInt("guests"),
	}
}
