package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/require"

	"github.com/concierge-hq/concierge/utils"
)

// newTestApp is a migrated app in a temp dir with the reservation hooks bound
func newTestApp(t *testing.T) core.App {
	t.Helper()
	app := core.NewBaseApp(core.BaseAppConfig{DataDir: t.TempDir()})
	require.NoError(t, app.Bootstrap())
	t.Cleanup(func() { _ = app.ResetBootstrapState() })
	require.NoError(t, app.RunAllMigrations())
	registerReservationHooks(app)
	return app
}

func saveRecord(t *testing.T, app core.App, collection string, fields map[string]any) *core.Record {
	t.Helper()
	c, err := app.FindCollectionByNameOrId(collection)
	require.NoError(t, err)
	record := core.NewRecord(c)
	for k, v := range fields {
		record.Set(k, v)
	}
	require.NoError(t, app.Save(record))
	return record
}

func saveCompany(t *testing.T, app core.App, slug string) *core.Record {
	t.Helper()
	return saveRecord(t, app, utils.CollectionCompanies, map[string]any{
		"name":     slug + " concierge",
		"slug":     slug,
		"currency": "EUR",
	})
}

// testUser is an unsaved user of a company; request auth only reads its fields
func testUser(t *testing.T, app core.App, role, companyID string) *core.Record {
	t.Helper()
	users, err := app.FindCollectionByNameOrId(utils.CollectionUsers)
	require.NoError(t, err)
	user := core.NewRecord(users)
	user.Id = role + "user0000001"
	user.Set(utils.FieldRole, role)
	user.Set(utils.FieldCompany, companyID)
	return user
}

// newRequestEvent builds a request event for calling a handler directly
func newRequestEvent(t *testing.T, app core.App, auth *core.Record, method, target string, body any, pathValues map[string]string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	rec := httptest.NewRecorder()

	re := &core.RequestEvent{App: app, Auth: auth}
	re.Request = req
	re.Response = rec
	return re, rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
