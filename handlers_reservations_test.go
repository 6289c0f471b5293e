package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concierge-hq/concierge/bookings"
	"github.com/concierge-hq/concierge/utils"
)

func TestReservationHookDerivesTotals(t *testing.T) {
	app := newTestApp(t)
	acme := saveCompany(t, app, "acme")

	r := saveRecord(t, app, utils.CollectionReservations, map[string]any{
		"company":      acme.Id,
		"total_amount": 1000,
		"payments":     []map[string]any{{"id": "p1", "amount": 400}},
	})

	stored, err := app.FindRecordById(utils.CollectionReservations, r.Id)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, stored.GetFloat("computed_total"))
	assert.Equal(t, 400.0, stored.GetFloat("paid_total"))
	assert.Equal(t, 600.0, stored.GetFloat("due_total"))
	assert.Equal(t, "partial", stored.GetString("payment_status"))

	stored.Set("status", bookings.StatusCancelled)
	require.NoError(t, app.Save(stored))
	assert.Equal(t, "cancelled", stored.GetString("payment_status"))
}

func TestPaymentAddAndRemove(t *testing.T) {
	app := newTestApp(t)
	acme := saveCompany(t, app, "acme")
	other := saveCompany(t, app, "other")
	r := saveRecord(t, app, utils.CollectionReservations, map[string]any{"company": acme.Id, "total_amount": 500})
	ids := map[string]string{"id": r.Id}
	manager := testUser(t, app, utils.RoleManager, acme.Id)

	re, rec := newRequestEvent(t, app, manager, http.MethodPost, "/api/reservations/"+r.Id+"/payments",
		map[string]any{"amount": "200", "method": "card"}, ids)
	require.NoError(t, handlePaymentAdd(re, app))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, err := app.FindRecordById(utils.CollectionReservations, r.Id)
	require.NoError(t, err)
	entries := bookings.PaymentEntries(plainValue(stored.Get("payments")))
	require.Len(t, entries, 1)
	paymentID := bookings.NormalizePayment(entries[0]).ID
	require.NotEmpty(t, paymentID)
	assert.Equal(t, 200.0, stored.GetFloat("paid_total"))
	assert.Equal(t, "partial", stored.GetString("payment_status"))

	tests := []struct {
		name      string
		auth      string
		paymentID string
		want      int
	}{
		{"unknown payment", acme.Id, "nope", http.StatusNotFound},
		{"other company", other.Id, paymentID, http.StatusNotFound},
		{"removed", acme.Id, paymentID, http.StatusOK},
		{"already removed", acme.Id, paymentID, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin := testUser(t, app, utils.RoleAdmin, tt.auth)
			re, rec := newRequestEvent(t, app, admin, http.MethodDelete, "/api/reservations/"+r.Id+"/payments/"+tt.paymentID, nil,
				map[string]string{"id": r.Id, "paymentId": tt.paymentID})
			require.NoError(t, handlePaymentDelete(re, app))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	stored, err = app.FindRecordById(utils.CollectionReservations, r.Id)
	require.NoError(t, err)
	assert.Zero(t, stored.GetFloat("paid_total"))
	assert.Equal(t, "unpaid", stored.GetString("payment_status"))
}

func TestPaymentAddRejectsInvalidAmount(t *testing.T) {
	app := newTestApp(t)
	acme := saveCompany(t, app, "acme")
	r := saveRecord(t, app, utils.CollectionReservations, map[string]any{"company": acme.Id})

	re, rec := newRequestEvent(t, app, testUser(t, app, utils.RoleManager, acme.Id), http.MethodPost, "/", map[string]any{"amount": 0},
		map[string]string{"id": r.Id})
	require.NoError(t, handlePaymentAdd(re, app))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReservationUpdateKeepsOrphansEditable(t *testing.T) {
	app := newTestApp(t)
	acme := saveCompany(t, app, "acme")
	r := saveRecord(t, app, utils.CollectionReservations, map[string]any{
		"company":     acme.Id,
		"client_id":   "deletedclient01",
		"client_name": "Gone Client",
	})
	manager := testUser(t, app, utils.RoleManager, acme.Id)
	ids := map[string]string{"id": r.Id}

	re, rec := newRequestEvent(t, app, manager, http.MethodPatch, "/", map[string]any{"notes": "late arrival"}, ids)
	require.NoError(t, handleReservationUpdate(re, app))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeResponse(t, rec)
	assert.Equal(t, "late arrival", body["notes"])
	assert.Equal(t, true, body["orphaned"])

	re, rec = newRequestEvent(t, app, manager, http.MethodPatch, "/", map[string]any{"client_id": "missing00000001"}, ids)
	require.NoError(t, handleReservationUpdate(re, app))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReservationsListSort(t *testing.T) {
	app := newTestApp(t)
	acme := saveCompany(t, app, "acme")
	saveRecord(t, app, utils.CollectionReservations, map[string]any{"company": acme.Id, "client_name": "Early", "check_in": "2030-01-05 00:00:00.000Z"})
	saveRecord(t, app, utils.CollectionReservations, map[string]any{"company": acme.Id, "client_name": "Late", "check_in": "2030-03-05 00:00:00.000Z"})
	viewer := testUser(t, app, utils.RoleViewer, acme.Id)

	names := func(target string) []string {
		re, rec := newRequestEvent(t, app, viewer, http.MethodGet, target, nil, nil)
		require.NoError(t, handleReservationsList(re, app))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []string
		for _, item := range decodeResponse(t, rec)["items"].([]any) {
			out = append(out, item.(map[string]any)["client_name"].(string))
		}
		return out
	}

	assert.Equal(t, []string{"Early", "Late"}, names("/api/reservations"))
	assert.Equal(t, []string{"Late", "Early"}, names("/api/reservations?sort=-check_in"))
	assert.Equal(t, []string{"Late", "Early"}, names("/api/reservations?sort=-client_name"))
	assert.Equal(t, []string{"Early", "Late"}, names("/api/reservations?sort=password"))
}
