package utils

import (
	"log"
	"net/http"

	"github.com/pocketbase/pocketbase/core"
)

var roleRank = map[string]int{
	RoleViewer:  1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// RequireRole returns middleware that requires an authenticated user with at
// least the given role and a resolved company.
func RequireRole(role string) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Auth == nil {
			log.Printf("[Auth] Unauthorized request to %s from %s", e.Request.URL.Path, e.RealIP())
			return e.JSON(http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
		}

		if !HasRole(e.Auth, role) {
			log.Printf("[Auth] Forbidden request to %s from user %s (needs %s)", e.Request.URL.Path, e.Auth.Id, role)
			return e.JSON(http.StatusForbidden, map[string]string{
				"error": "Forbidden",
			})
		}

		if CompanyID(e) == "" {
			return e.JSON(http.StatusForbidden, map[string]string{
				"error": "No company selected",
			})
		}

		return e.Next()
	}
}

// RequireViewer allows any role of the company
func RequireViewer(e *core.RequestEvent) error {
	return RequireRole(RoleViewer)(e)
}

// RequireManager allows managers and admins
func RequireManager(e *core.RequestEvent) error {
	return RequireRole(RoleManager)(e)
}

// RequireAdmin allows admins and superusers
func RequireAdmin(e *core.RequestEvent) error {
	return RequireRole(RoleAdmin)(e)
}

// GetUserRole extracts the user role from a record
func GetUserRole(record *core.Record) string {
	if record == nil {
		return ""
	}
	return record.GetString(FieldRole)
}

// IsSuperuser checks if a record belongs to the superusers collection
func IsSuperuser(record *core.Record) bool {
	return record != nil && record.Collection().Name == CollectionSuperusers
}

// HasRole checks if a record holds at least the given role.
// Superusers hold every role.
func HasRole(record *core.Record, role string) bool {
	if record == nil {
		return false
	}
	if IsSuperuser(record) {
		return true
	}
	have, ok := roleRank[GetUserRole(record)]
	return ok && have >= roleRank[role]
}

// CompanyID resolves the company a request acts on. Users are bound to their
// own company; superusers pick one with ?company=.
func CompanyID(e *core.RequestEvent) string {
	if e.Auth == nil {
		return ""
	}
	if IsSuperuser(e.Auth) {
		return e.Request.URL.Query().Get("company")
	}
	return e.Auth.GetString(FieldCompany)
}

// BelongsTo reports whether a record is owned by the company
func BelongsTo(record *core.Record, companyID string) bool {
	return record != nil && companyID != "" && record.GetString(FieldCompany) == companyID
}
