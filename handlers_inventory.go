package main

import (
	"context"
	"log"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"github.com/concierge-hq/concierge/bookings"
	"github.com/concierge-hq/concierge/storage"
	"github.com/concierge-hq/concierge/utils"
)

// inventory describes one bookable collection (villas, boats)
type inventory struct {
	Collection string
	Label      string
	Fields     []fieldSpec
	Sorts      []string
}

var (
	villaInventory = inventory{
		Collection: utils.CollectionVillas,
		Label:      "Villa",
		Fields:     villaFields,
		Sorts:      []string{"name", "location", "bedrooms", "capacity", "price_per_night", "created"},
	}
	boatInventory = inventory{
		Collection: utils.CollectionBoats,
		Label:      "Boat",
		Fields:     boatFields,
		Sorts:      []string{"name", "boat_type", "capacity", "length_m", "price_per_day", "created"},
	}
)

// photoResolver turns reconciled photo references into URLs
type photoResolver interface {
	ResolvePhotos(ctx context.Context, refs []bookings.PhotoRef) []storage.Photo
}

// rawPhotos returns reconciled references without URLs, used when object
// storage is not configured
type rawPhotos struct{}

func (rawPhotos) ResolvePhotos(_ context.Context, refs []bookings.PhotoRef) []storage.Photo {
	out := make([]storage.Photo, len(refs))
	for i, ref := range refs {
		out[i] = storage.Photo{Key: ref.Key, URL: ref.External}
	}
	return out
}

// reconciledPhotos reads the stored photos of a record and maps them onto
// canonical keys under the record's own prefix
func reconciledPhotos(r *core.Record) []bookings.PhotoRef {
	owner := bookings.PhotoOwner{
		Company: r.GetString(utils.FieldCompany),
		Kind:    r.Collection().Name,
		ID:      r.Id,
	}
	return bookings.ReconcilePhotos(bookings.PhotoStrings(plainValue(r.Get("photos"))), owner)
}

func buildInventoryResponse(ctx context.Context, r *core.Record, photos photoResolver) map[string]any {
	data := map[string]any{
		"id":        r.Id,
		"status":    r.GetString("status"),
		"legacy_id": r.GetString("legacy_id"),
		"created":   dateString(r, "created"),
		"updated":   dateString(r, "updated"),
	}
	fields := villaFields
	if r.Collection().Name == utils.CollectionBoats {
		fields = boatFields
	}
	for _, f := range fields {
		switch f.Kind {
		case kindNumber:
			data[f.Name] = r.GetFloat(f.Name)
		case kindInt:
			data[f.Name] = r.GetInt(f.Name)
		case kindJSON:
			data[f.Name] = jsonValue(r, f.Name)
		default:
			data[f.Name] = r.GetString(f.Name)
		}
	}
	data["photos"] = photos.ResolvePhotos(ctx, reconciledPhotos(r))
	return data
}

func handleInventoryList(re *core.RequestEvent, app core.App, inv inventory, photos photoResolver) error {
	q := re.Request.URL.Query()
	page := utils.ParsePage(re)
	search := strings.TrimSpace(q.Get("search"))
	status := q.Get("status")
	sort := utils.SortField(q.Get("sort"), inv.Sorts, "name")

	parts := []string{"company = {:company}"}
	if status != "" {
		parts = append(parts, "status = {:status}")
	}
	if search != "" {
		parts = append(parts, "name ~ {:search} || description ~ {:search}")
	}
	filter := utils.AndFilter(parts...)
	params := dbx.Params{"company": utils.CompanyID(re), "status": status, "search": search}

	total, err := app.FindRecordsByFilter(inv.Collection, filter, "", 0, 0, params)
	if err != nil {
		log.Printf("[%s] List failed: %v", inv.Label, err)
		return utils.InternalErrorResponse(re, "Failed to list "+inv.Collection)
	}
	records, err := app.FindRecordsByFilter(inv.Collection, filter, sort, page.PerPage, page.Offset(), params)
	if err != nil {
		log.Printf("[%s] List failed: %v", inv.Label, err)
		return utils.InternalErrorResponse(re, "Failed to list "+inv.Collection)
	}

	ctx := re.Request.Context()
	items := make([]map[string]any, len(records))
	for i, r := range records {
		items[i] = buildInventoryResponse(ctx, r, photos)
	}
	return utils.ListResponse(re, items, page, len(total))
}

func handleInventoryGet(re *core.RequestEvent, app core.App, inv inventory, photos photoResolver) error {
	record, err := findTenantRecord(app, inv.Collection, re.Request.PathValue("id"), utils.CompanyID(re))
	if err != nil {
		return utils.NotFoundResponse(re, inv.Label+" not found")
	}
	return utils.DataResponse(re, buildInventoryResponse(re.Request.Context(), record, photos))
}

func handleInventoryCreate(re *core.RequestEvent, app core.App, inv inventory, photos photoResolver) error {
	input, err := utils.DecodeBody(re)
	if err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	collection, err := app.FindCachedCollectionByNameOrId(inv.Collection)
	if err != nil {
		return utils.InternalErrorResponse(re, inv.Label+" collection not found")
	}

	record := core.NewRecord(collection)
	record.Set(utils.FieldCompany, utils.CompanyID(re))
	record.Set(utils.FieldStatus, "active")
	if err := applyInput(record, input, inv.Fields); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if strings.TrimSpace(record.GetString("name")) == "" {
		return utils.BadRequestResponse(re, "Name is required")
	}

	if err := app.Save(record); err != nil {
		log.Printf("[%sCreate] Failed to save: %v", inv.Label, err)
		return utils.InternalErrorResponse(re, "Failed to create "+strings.ToLower(inv.Label))
	}

	return utils.CreatedResponse(re, buildInventoryResponse(re.Request.Context(), record, photos))
}

func handleInventoryUpdate(re *core.RequestEvent, app core.App, inv inventory, photos photoResolver) error {
	record, err := findTenantRecord(app, inv.Collection, re.Request.PathValue("id"), utils.CompanyID(re))
	if err != nil {
		return utils.NotFoundResponse(re, inv.Label+" not found")
	}

	input, err := utils.DecodeBody(re)
	if err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}
	if err := applyInput(record, input, inv.Fields); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if strings.TrimSpace(record.GetString("name")) == "" {
		return utils.BadRequestResponse(re, "Name is required")
	}

	if err := app.Save(record); err != nil {
		log.Printf("[%sUpdate] Failed to save: %v", inv.Label, err)
		return utils.InternalErrorResponse(re, "Failed to update "+strings.ToLower(inv.Label))
	}

	return utils.DataResponse(re, buildInventoryResponse(re.Request.Context(), record, photos))
}

func handleInventoryDelete(re *core.RequestEvent, app core.App, inv inventory) error {
	record, err := findTenantRecord(app, inv.Collection, re.Request.PathValue("id"), utils.CompanyID(re))
	if err != nil {
		return utils.NotFoundResponse(re, inv.Label+" not found")
	}

	if err := app.Delete(record); err != nil {
		log.Printf("[%sDelete] Failed to delete: %v", inv.Label, err)
		return utils.InternalErrorResponse(re, "Failed to delete "+strings.ToLower(inv.Label))
	}

	return utils.SuccessResponse(re, inv.Label+" deleted successfully")
}
