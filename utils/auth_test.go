package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
)

func newUser(role, company string) *core.Record {
	users := core.NewAuthCollection(CollectionUsers)
	users.Fields.Add(&core.TextField{Name: FieldRole})
	users.Fields.Add(&core.TextField{Name: FieldCompany})

	record := core.NewRecord(users)
	record.Id = "u_" + role
	record.Set(FieldRole, role)
	record.Set(FieldCompany, company)
	return record
}

func newSuperuser() *core.Record {
	record := core.NewRecord(core.NewAuthCollection(CollectionSuperusers))
	record.Id = "root"
	return record
}

func newEvent(auth *core.Record, target string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	e := &core.RequestEvent{Auth: auth}
	e.Request = httptest.NewRequest(http.MethodGet, target, nil)
	e.Response = rec
	return e, rec
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		role string
		need string
		want bool
	}{
		{RoleViewer, RoleViewer, true},
		{RoleViewer, RoleManager, false},
		{RoleManager, RoleManager, true},
		{RoleManager, RoleAdmin, false},
		{RoleAdmin, RoleAdmin, true},
		{"", RoleViewer, false},
		{"owner", RoleViewer, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasRole(newUser(tt.role, "acme"), tt.need), "%s needs %s", tt.role, tt.need)
	}

	assert.True(t, HasRole(newSuperuser(), RoleAdmin))
	assert.False(t, HasRole(nil, RoleViewer))
}

func TestCompanyID(t *testing.T) {
	e, _ := newEvent(newUser(RoleViewer, "acme"), "/api/clients?company=other")
	assert.Equal(t, "acme", CompanyID(e))

	e, _ = newEvent(newSuperuser(), "/api/clients?company=other")
	assert.Equal(t, "other", CompanyID(e))

	e, _ = newEvent(newSuperuser(), "/api/clients")
	assert.Empty(t, CompanyID(e))

	e, _ = newEvent(nil, "/api/clients?company=acme")
	assert.Empty(t, CompanyID(e))
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		auth   *core.Record
		target string
		mw     func(*core.RequestEvent) error
		want   int
	}{
		{"anonymous", nil, "/", RequireViewer, http.StatusUnauthorized},
		{"viewer reads", newUser(RoleViewer, "acme"), "/", RequireViewer, http.StatusOK},
		{"viewer writes", newUser(RoleViewer, "acme"), "/", RequireManager, http.StatusForbidden},
		{"manager deletes", newUser(RoleManager, "acme"), "/", RequireAdmin, http.StatusForbidden},
		{"admin deletes", newUser(RoleAdmin, "acme"), "/", RequireAdmin, http.StatusOK},
		{"user without company", newUser(RoleAdmin, ""), "/", RequireViewer, http.StatusForbidden},
		{"superuser without company", newSuperuser(), "/", RequireViewer, http.StatusForbidden},
		{"superuser with company", newSuperuser(), "/?company=acme", RequireAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rec := newEvent(tt.auth, tt.target)
			assert.NoError(t, tt.mw(e))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestBelongsTo(t *testing.T) {
	record := newUser(RoleViewer, "acme")
	assert.True(t, BelongsTo(record, "acme"))
	assert.False(t, BelongsTo(record, "other"))
	assert.False(t, BelongsTo(record, ""))
	assert.False(t, BelongsTo(nil, "acme"))
}
