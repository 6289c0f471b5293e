package main

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/spf13/cast"

	"github.com/concierge-hq/concierge/bookings"
	"github.com/concierge-hq/concierge/metrics"
	"github.com/concierge-hq/concierge/utils"
)

var ErrOfferNotConvertible = errors.New("offer cannot be converted")

const offerStatusAccepted = "accepted"

// handleOffersList returns offers. Offers whose client was deleted are left
// out unless include_orphaned=1.
func handleOffersList(re *core.RequestEvent, app core.App) error {
	companyID := utils.CompanyID(re)
	q := re.Request.URL.Query()

	var parts []string
	params := dbx.Params{}
	if status := q.Get("status"); status != "" {
		parts = append(parts, "status = {:status}")
		params["status"] = status
	}
	if clientID := q.Get("client_id"); clientID != "" {
		parts = append(parts, "client_id = {:client}")
		params["client"] = clientID
	}
	if search := strings.TrimSpace(q.Get("search")); search != "" {
		parts = append(parts, "title ~ {:search} || client_name ~ {:search}")
		params["search"] = search
	}
	sort := utils.SortField(q.Get("sort"), []string{"created", "updated", "title", "valid_until", "total_amount"}, "-created")

	records, err := companyRecords(app, utils.CollectionOffers, companyID, utils.AndFilter(parts...), sort, params)
	if err != nil {
		log.Printf("[Offers] List failed: %v", err)
		return utils.InternalErrorResponse(re, "Failed to list offers")
	}
	known, err := knownClientIDs(app, companyID)
	if err != nil {
		log.Printf("[Offers] Failed to load clients: %v", err)
		return utils.InternalErrorResponse(re, "Failed to list offers")
	}

	clientOf := func(r *core.Record) string { return r.GetString("client_id") }
	kept, orphaned := bookings.PartitionOrphans(records, clientOf, known)
	orphanSet := map[string]bool{}
	for _, r := range orphaned {
		orphanSet[r.Id] = true
	}
	if q.Get("include_orphaned") == "1" {
		kept = records
	}

	page := utils.ParsePage(re)
	start := min(page.Offset(), len(kept))
	end := min(start+page.PerPage, len(kept))

	items := make([]map[string]any, 0, end-start)
	for _, r := range kept[start:end] {
		item := buildOfferResponse(r)
		item["orphaned"] = orphanSet[r.Id]
		items = append(items, item)
	}

	return utils.DataResponse(re, map[string]any{
		"items":      items,
		"page":       page.Page,
		"perPage":    page.PerPage,
		"totalItems": len(kept),
		"totalPages": page.TotalPages(len(kept)),
		"orphaned":   len(orphaned),
	})
}

func handleOfferGet(re *core.RequestEvent, app core.App) error {
	record, err := findTenantRecord(app, utils.CollectionOffers, re.Request.PathValue("id"), utils.CompanyID(re))
	if err != nil {
		return utils.NotFoundResponse(re, "Offer not found")
	}
	return utils.DataResponse(re, buildOfferResponse(record))
}

// fillOfferClient copies the client's name onto an offer that references one
func fillOfferClient(app core.App, record *core.Record, companyID string) error {
	clientID := record.GetString("client_id")
	if clientID == "" {
		return nil
	}
	client, err := findTenantRecord(app, utils.CollectionClients, clientID, companyID)
	if err != nil {
		return errors.New("client not found")
	}
	if record.GetString("client_name") == "" {
		record.Set("client_name", client.GetString("name"))
	}
	return nil
}

func handleOfferCreate(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}

	input, err := utils.DecodeBody(re)
	if err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}

	collection, err := app.FindCachedCollectionByNameOrId(utils.CollectionOffers)
	if err != nil {
		return utils.InternalErrorResponse(re, "Offers collection not found")
	}

	record := core.NewRecord(collection)
	record.Set(utils.FieldCompany, c.ID)
	record.Set(utils.FieldStatus, "draft")
	record.Set("currency", c.Currency)
	if err := applyInput(record, input, offerFields); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if strings.TrimSpace(record.GetString("title")) == "" {
		return utils.BadRequestResponse(re, "Title is required")
	}
	if err := fillOfferClient(app, record, c.ID); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}

	if err := app.Save(record); err != nil {
		log.Printf("[OfferCreate] Failed to save: %v", err)
		return utils.InternalErrorResponse(re, "Failed to create offer")
	}

	return utils.CreatedResponse(re, buildOfferResponse(record))
}

func handleOfferUpdate(re *core.RequestEvent, app core.App) error {
	companyID := utils.CompanyID(re)
	record, err := findTenantRecord(app, utils.CollectionOffers, re.Request.PathValue("id"), companyID)
	if err != nil {
		return utils.NotFoundResponse(re, "Offer not found")
	}

	input, err := utils.DecodeBody(re)
	if err != nil {
		return utils.BadRequestResponse(re, "Invalid request body")
	}
	if err := applyInput(record, input, offerFields); err != nil {
		return utils.BadRequestResponse(re, err.Error())
	}
	if strings.TrimSpace(record.GetString("title")) == "" {
		return utils.BadRequestResponse(re, "Title is required")
	}
	if _, ok := input["client_id"]; ok {
		if err := fillOfferClient(app, record, companyID); err != nil {
			return utils.BadRequestResponse(re, err.Error())
		}
	}

	if err := app.Save(record); err != nil {
		log.Printf("[OfferUpdate] Failed to save: %v", err)
		return utils.InternalErrorResponse(re, "Failed to update offer")
	}

	return utils.DataResponse(re, buildOfferResponse(record))
}

func handleOfferDelete(re *core.RequestEvent, app core.App) error {
	record, err := findTenantRecord(app, utils.CollectionOffers, re.Request.PathValue("id"), utils.CompanyID(re))
	if err != nil {
		return utils.NotFoundResponse(re, "Offer not found")
	}

	if err := app.Delete(record); err != nil {
		log.Printf("[OfferDelete] Failed to delete: %v", err)
		return utils.InternalErrorResponse(re, "Failed to delete offer")
	}

	return utils.SuccessResponse(re, "Offer deleted successfully")
}

// shareURL is the public link of a share token
func shareURL(token string) string {
	return getBaseURL() + "/offers/view/" + token
}

// handleOfferShare issues a signed share link. Issuing a new link revokes
// the previous one. With send_email the link is mailed to the client.
func handleOfferShare(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}
	record, err := findTenantRecord(app, utils.CollectionOffers, re.Request.PathValue("id"), c.ID)
	if err != nil {
		return utils.NotFoundResponse(re, "Offer not found")
	}

	// An empty body is allowed
	input, _ := utils.DecodeBody(re)

	// The recipient is checked before the current link is revoked
	sendEmail := cast.ToBool(input["send_email"])
	var to mail.Address
	if sendEmail {
		if to, err = offerRecipient(app, record, c.ID, cast.ToString(input["email"])); err != nil {
			return utils.BadRequestResponse(re, err.Error())
		}
	}

	now := time.Now()
	token, claims, err := utils.DefaultShareSigner().Issue(record.Id, c.ID, utils.ShareLinkTTL, now)
	if err != nil {
		log.Printf("[OfferShare] Failed to issue token: %v", err)
		return utils.InternalErrorResponse(re, "Failed to share offer")
	}

	record.Set("share_token", token)
	record.Set("share_expires", time.Unix(claims.ExpiresAt, 0).UTC())
	if record.GetString("status") == "draft" {
		record.Set("status", "sent")
	}
	if err := app.Save(record); err != nil {
		log.Printf("[OfferShare] Failed to save: %v", err)
		return utils.InternalErrorResponse(re, "Failed to share offer")
	}

	url := shareURL(token)
	metrics.OfferShared()
	utils.LogFromRequest(app, re, "offer_share", utils.CollectionOffers, record.Id, map[string]any{
		"expires": dateString(record, "share_expires"),
	})

	resp := map[string]any{
		"url":     url,
		"expires": dateString(record, "share_expires"),
		"offer":   buildOfferResponse(record),
	}

	if sendEmail {
		err := sendOfferEmail(app, to, offerEmail{
			CompanyName:   c.Name,
			RecipientName: record.GetString("client_name"),
			Title:         record.GetString("title"),
			Total:         formatMoney(record.GetFloat("total_amount"), record.GetString("currency")),
			ValidUntil:    dateOnly(record, "valid_until"),
			URL:           url,
		})
		// The link stays valid when mailing fails
		resp["email_sent"] = err == nil
	}

	return utils.DataResponse(re, resp)
}

// offerRecipient picks the address to mail an offer to: an explicit
// override, the offer's client_email, or the linked client's email
func offerRecipient(app core.App, offer *core.Record, companyID, override string) (mail.Address, error) {
	name := offer.GetString("client_name")
	candidates := []string{override, offer.GetString("client_email")}
	if clientID := offer.GetString("client_id"); clientID != "" {
		if client, err := findTenantRecord(app, utils.CollectionClients, clientID, companyID); err == nil {
			candidates = append(candidates, utils.DefaultCipher().DecryptField(client.GetString("email")))
		}
	}
	for _, c := range candidates {
		if c = utils.NormalizeEmail(c); c == "" {
			continue
		}
		addr, err := mail.ParseAddress(c)
		if err != nil {
			return mail.Address{}, fmt.Errorf("invalid email %q", c)
		}
		addr.Name = name
		return *addr, nil
	}
	return mail.Address{}, errors.New("offer has no recipient email")
}

func formatMoney(amount float64, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %.2f", currency, amount))
}

func dateOnly(r *core.Record, field string) string {
	dt := r.GetDateTime(field)
	if dt.IsZero() {
		return ""
	}
	return dt.Time().UTC().Format("2006-01-02")
}

// convertOffer creates a confirmed reservation from an accepted offer and
// links the two. Converting twice fails with ErrOfferNotConvertible.
func convertOffer(app core.App, companyID, offerID string) (*core.Record, error) {
	var reservation *core.Record
	err := app.RunInTransaction(func(txApp core.App) error {
		offer, err := findTenantRecord(txApp, utils.CollectionOffers, offerID, companyID)
		if err != nil {
			return err
		}
		if offer.GetString("status") != offerStatusAccepted {
			return fmt.Errorf("%w: status is %q", ErrOfferNotConvertible, offer.GetString("status"))
		}
		if offer.GetString("reservation_id") != "" {
			return fmt.Errorf("%w: already converted", ErrOfferNotConvertible)
		}

		collection, err := txApp.FindCachedCollectionByNameOrId(utils.CollectionReservations)
		if err != nil {
			return err
		}
		reservation = core.NewRecord(collection)
		reservation.Set(utils.FieldCompany, companyID)
		reservation.Set(utils.FieldStatus, bookings.StatusConfirmed)
		for _, f := range []string{"client_id", "client_name", "villa_id", "boat_id", "property_name", "check_in", "check_out", "guests", "currency", "total_amount"} {
			reservation.Set(f, offer.Get(f))
		}
		reservation.Set("services", plainValue(offer.Get("items")))
		reservation.Set("offer_id", offer.Id)
		if err := txApp.Save(reservation); err != nil {
			return err
		}

		offer.Set("reservation_id", reservation.Id)
		return txApp.Save(offer)
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func handleOfferConvert(re *core.RequestEvent, app core.App) error {
	c, err := requestCompany(re, app)
	if err != nil {
		return utils.NotFoundResponse(re, "Company not found")
	}

	id := re.Request.PathValue("id")
	reservation, err := convertOffer(app, c.ID, id)
	switch {
	case errors.Is(err, errNotFound):
		return utils.NotFoundResponse(re, "Offer not found")
	case errors.Is(err, ErrOfferNotConvertible):
		return utils.ConflictResponse(re, err.Error())
	case err != nil:
		log.Printf("[OfferConvert] Failed to convert %s: %v", id, err)
		return utils.InternalErrorResponse(re, "Failed to convert offer")
	}

	metrics.OfferConverted()
	utils.LogFromRequest(app, re, "offer_convert", utils.CollectionOffers, id, map[string]any{
		"reservation_id": reservation.Id,
	})

	return utils.CreatedResponse(re, buildReservationResponse(reservation, evaluateRecord(app, c, reservation)))
}

// handlePublicOffer shows a shared offer to anyone holding a valid link
func handlePublicOffer(re *core.RequestEvent, app core.App) error {
	token := re.Request.PathValue("token")
	now := time.Now()

	claims, err := utils.DefaultShareSigner().Validate(token, now)
	if err != nil {
		return utils.NotFoundResponse(re, "Offer link is invalid or has expired")
	}

	record, err := findTenantRecord(app, utils.CollectionOffers, claims.OfferID, claims.Company)
	if err != nil || subtle.ConstantTimeCompare([]byte(record.GetString("share_token")), []byte(token)) != 1 {
		return utils.NotFoundResponse(re, "Offer link is invalid or has expired")
	}

	companyName := ""
	if c, err := loadCompany(app, claims.Company); err == nil {
		companyName = c.Name
	}

	return utils.DataResponse(re, buildPublicOfferResponse(record, companyName, now))
}
