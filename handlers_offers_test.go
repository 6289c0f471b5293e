package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concierge-hq/concierge/utils"
)

func TestShareURL(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://app.example.com/")
	assert.Equal(t, "https://app.example.com/offers/view/tok", shareURL("tok"))

	t.Setenv("PUBLIC_BASE_URL", "")
	assert.Equal(t, "http://localhost:8090/offers/view/tok", shareURL("tok"))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "EUR 1250.50", formatMoney(1250.5, "EUR"))
	assert.Equal(t, "10.00", formatMoney(10, ""))
}

func saveOffer(t *testing.T, app core.App, companyID string, fields map[string]any) *core.Record {
	t.Helper()
	data := map[string]any{
		"company":  companyID,
		"title":    "Summer week",
		"status":   "draft",
		"currency": "EUR",
	}
	for k, v := range fields {
		data[k] = v
	}
	return saveRecord(t, app, utils.CollectionOffers, data)
}

func TestConvertOffer(t *testing.T) {
	app := newTestApp(t)
	acme := saveCompany(t, app, "acme")
	other := saveCompany(t, app, "other")
	client := saveRecord(t, app, utils.CollectionClients, map[string]any{"company": acme.Id, "name": "Ana"})
	offer := saveOffer(t, app, acme.Id, map[string]any{
		"client_id":     client.Id,
		"client_name":   "Ana",
		"property_name": "Villa Azul",
		"total_amount":  3000,
		"guests":        4,
		"items":         []map[string]any{{"name": "Villa", "price": 3000}},
	})

	_, err := convertOffer(app, acme.Id, offer.Id)
	assert.ErrorIs(t, err, ErrOfferNotConvertible, "draft offers do not convert")

	offer.Set("status", offerStatusAccepted)
	require.NoError(t, app.Save(offer))

	_, err = convertOffer(app, other.Id, offer.Id)
	assert.ErrorIs(t, err, errNotFound)

	reservation, err := convertOffer(app, acme.Id, offer.Id)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", reservation.GetString("status"))
	assert.Equal(t, offer.Id, reservation.GetString("offer_id"))
	assert.Equal(t, client.Id, reservation.GetString("client_id"))
	assert.Equal(t, "Villa Azul", reservation.GetString("property_name"))
	assert.Equal(t, 3000.0, reservation.GetFloat("total_amount"))
	assert.Equal(t, 4, reservation.GetInt("guests"))
	assert.Equal(t, "unpaid", reservation.GetString("payment_status"))

	stored, err := app.FindRecordById(utils.CollectionOffers, offer.Id)
	require.NoError(t, err)
	assert.Equal(t, reservation.Id, stored.GetString("reservation_id"))

	_, err = convertOffer(app, acme.Id, offer.Id)
	assert.ErrorIs(t, err, ErrOfferNotConvertible, "offers convert once")

	manager := testUser(t, app, utils.RoleManager, acme.Id)
	re, rec := newRequestEvent(t, app, manager, http.MethodPost, "/", nil, map[string]string{"id": offer.Id})
	require.NoError(t, handleOfferConvert(re, app))
	assert.Equal(t, http.StatusConflict, rec.Code)

	count, err := app.CountRecords(utils.CollectionReservations)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func shareOffer(t *testing.T, app core.App, user *core.Record, offerID string, body map[string]any) (int, map[string]any) {
	t.Helper()
	re, rec := newRequestEvent(t, app, user, http.MethodPost, "/", body, map[string]string{"id": offerID})
	require.NoError(t, handleOfferShare(re, app))
	return rec.Code, decodeResponse(t, rec)
}

func viewSharedOffer(t *testing.T, app core.App, url string) int {
	t.Helper()
	token := strings.TrimPrefix(url, shareURL(""))
	re, rec := newRequestEvent(t, app, nil, http.MethodGet, "/", nil, map[string]string{"token": token})
	require.NoError(t, handlePublicOffer(re, app))
	return rec.Code
}

func TestShareRevokesPreviousLink(t *testing.T) {
	app := newTestApp(t)
	acme := saveCompany(t, app, "acme")
	offer := saveOffer(t, app, acme.Id, nil)
	manager := testUser(t, app, utils.RoleManager, acme.Id)

	code, first := shareOffer(t, app, manager, offer.Id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sent", first["offer"].(map[string]any)["status"])
	assert.Equal(t, http.StatusOK, viewSharedOffer(t, app, first["url"].(string)))

	code, second := shareOffer(t, app, manager, offer.Id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEqual(t, first["url"], second["url"])

	assert.Equal(t, http.StatusNotFound, viewSharedOffer(t, app, first["url"].(string)))
	assert.Equal(t, http.StatusOK, viewSharedOffer(t, app, second["url"].(string)))
	assert.Equal(t, http.StatusNotFound, viewSharedOffer(t, app, "garbage"))
}

func TestShareWithoutRecipientChangesNothing(t *testing.T) {
	app := newTestApp(t)
	acme := saveCompany(t, app, "acme")
	offer := saveOffer(t, app, acme.Id, nil)
	manager := testUser(t, app, utils.RoleManager, acme.Id)

	code, _ := shareOffer(t, app, manager, offer.Id, map[string]any{"send_email": true})
	assert.Equal(t, http.StatusBadRequest, code)

	stored, err := app.FindRecordById(utils.CollectionOffers, offer.Id)
	require.NoError(t, err)
	assert.Equal(t, "draft", stored.GetString("status"))
	assert.Empty(t, stored.GetString("share_token"))

	code, shared := shareOffer(t, app, manager, offer.Id, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = shareOffer(t, app, manager, offer.Id, map[string]any{"send_email": true, "email": "not-an-address"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, http.StatusOK, viewSharedOffer(t, app, shared["url"].(string)), "a rejected share keeps the current link")
}

func TestOffersListHidesOrphans(t *testing.T) {
	app := newTestApp(t)
	acme := saveCompany(t, app, "acme")
	client := saveRecord(t, app, utils.CollectionClients, map[string]any{"company": acme.Id, "name": "Ana"})
	saveOffer(t, app, acme.Id, map[string]any{"title": "Linked", "client_id": client.Id})
	saveOffer(t, app, acme.Id, map[string]any{"title": "Orphan", "client_id": "deletedclient01"})
	saveOffer(t, app, acme.Id, map[string]any{"title": "Walk-in"})
	viewer := testUser(t, app, utils.RoleViewer, acme.Id)

	list := func(target string) map[string]any {
		re, rec := newRequestEvent(t, app, viewer, http.MethodGet, target, nil, nil)
		require.NoError(t, handleOffersList(re, app))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decodeResponse(t, rec)
	}

	titles := func(body map[string]any) []string {
		var out []string
		for _, item := range body["items"].([]any) {
			out = append(out, item.(map[string]any)["title"].(string))
		}
		return out
	}

	body := list("/api/offers?sort=title")
	assert.Equal(t, []string{"Linked", "Walk-in"}, titles(body))
	assert.EqualValues(t, 1, body["orphaned"])
	assert.EqualValues(t, 2, body["totalItems"])

	body = list("/api/offers?sort=title&include_orphaned=1")
	assert.Equal(t, []string{"Linked", "Orphan", "Walk-in"}, titles(body))
}
