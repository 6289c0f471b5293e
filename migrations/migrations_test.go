package migrations

import (
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concierge-hq/concierge/utils"
)

func newMigratedApp(t *testing.T) core.App {
	t.Helper()
	app := core.NewBaseApp(core.BaseAppConfig{DataDir: t.TempDir()})
	require.NoError(t, app.Bootstrap())
	t.Cleanup(func() { _ = app.ResetBootstrapState() })
	require.NoError(t, app.RunAllMigrations())
	return app
}

func saveUser(t *testing.T, app core.App, email, role, company string) *core.Record {
	t.Helper()
	users, err := app.FindCollectionByNameOrId(utils.CollectionUsers)
	require.NoError(t, err)
	user := core.NewRecord(users)
	user.SetEmail(email)
	user.SetPassword("correct-horse-battery")
	user.Set(utils.FieldRole, role)
	user.Set(utils.FieldCompany, company)
	require.NoError(t, app.Save(user))
	return user
}

func TestUsersRules(t *testing.T) {
	app := newMigratedApp(t)

	users, err := app.FindCollectionByNameOrId(utils.CollectionUsers)
	require.NoError(t, err)
	assert.Nil(t, users.CreateRule, "accounts must not be self-service")
	require.NotNil(t, users.UpdateRule)
	assert.Contains(t, *users.UpdateRule, "@request.body.role:isset = false")
	assert.Contains(t, *users.UpdateRule, "@request.body.company:isset = false")

	field, ok := users.Fields.GetByName(utils.FieldRole).(*core.SelectField)
	require.True(t, ok)
	assert.ElementsMatch(t, utils.UserRoles, field.Values)
}

func TestTenantRules(t *testing.T) {
	app := newMigratedApp(t)

	for _, name := range utils.TenantCollections {
		t.Run(name, func(t *testing.T) {
			collection, err := app.FindCollectionByNameOrId(name)
			require.NoError(t, err)
			for _, rule := range []*string{collection.ListRule, collection.ViewRule, collection.CreateRule, collection.UpdateRule, collection.DeleteRule} {
				require.NotNil(t, rule)
				assert.Contains(t, *rule, "@request.auth.company = company")
			}
			assert.Contains(t, *collection.DeleteRule, "@request.auth.role = 'admin'")
		})
	}
}

func TestReservationPaymentsNotWritableThroughRecordAPI(t *testing.T) {
	app := newMigratedApp(t)

	collection, err := app.FindCollectionByNameOrId(utils.CollectionReservations)
	require.NoError(t, err)
	reservation := core.NewRecord(collection)
	reservation.Set(utils.FieldCompany, "c1")
	reservation.Set("client_name", "Ana")
	require.NoError(t, app.Save(reservation))

	manager := saveUser(t, app, "manager@acme.test", utils.RoleManager, "c1")
	outsider := saveUser(t, app, "manager@other.test", utils.RoleManager, "c2")

	tests := []struct {
		name string
		auth *core.Record
		body map[string]any
		want bool
	}{
		{"notes only", manager, map[string]any{"notes": "late arrival"}, true},
		{"payments", manager, map[string]any{"payments": []any{map[string]any{"amount": 10}}}, false},
		{"other company", outsider, map[string]any{"notes": "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &core.RequestInfo{Auth: tt.auth, Body: tt.body, Method: "PATCH"}
			ok, err := app.CanAccessRecord(reservation, info, collection.UpdateRule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	require.NotNil(t, collection.CreateRule)
	assert.Contains(t, *collection.CreateRule, "@request.body.payments:isset = false")
}
