package utils

import (
	"log"

	"github.com/pocketbase/pocketbase/core"
)

// AuditEntry represents an audit log entry
type AuditEntry struct {
	UserID       string
	UserEmail    string
	Company      string
	Action       string // create, update, delete, login, payment_add, payment_remove, offer_share, offer_convert
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
	Changes      map[string]any
	Status       string // success, failure, error
	ErrorMessage string
}

// LogAudit creates an audit log entry asynchronously to avoid blocking requests
func LogAudit(app core.App, entry AuditEntry) {
	go func() {
		if err := SaveAudit(app, entry); err != nil {
			log.Printf("[Audit] Failed to save audit log: %v", err)
		}
	}()
}

// SaveAudit writes an audit log entry synchronously
func SaveAudit(app core.App, entry AuditEntry) error {
	collection, err := app.FindCachedCollectionByNameOrId(CollectionAuditLogs)
	if err != nil {
		return err
	}

	record := core.NewRecord(collection)
	record.Set("user_id", entry.UserID)
	record.Set("user_email", entry.UserEmail)
	record.Set(FieldCompany, entry.Company)
	record.Set("action", entry.Action)
	record.Set("resource_type", entry.ResourceType)
	record.Set("resource_id", entry.ResourceID)
	record.Set("ip_address", entry.IPAddress)
	record.Set("user_agent", entry.UserAgent)
	record.Set("changes", entry.Changes)
	record.Set("status", entry.Status)
	record.Set("error_message", entry.ErrorMessage)

	return app.Save(record)
}

// AuditFromRequest builds an audit entry from a request event
func AuditFromRequest(re *core.RequestEvent, action, resourceType, resourceID string, changes map[string]any) AuditEntry {
	entry := AuditEntry{
		Company:      CompanyID(re),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    re.RealIP(),
		UserAgent:    re.Request.UserAgent(),
		Changes:      changes,
		Status:       "success",
	}

	if re.Auth != nil {
		entry.UserID = re.Auth.Id
		entry.UserEmail = re.Auth.GetString("email")
	}

	return entry
}

// LogFromRequest creates an audit entry from a request event
func LogFromRequest(app core.App, re *core.RequestEvent, action, resourceType, resourceID string, changes map[string]any) {
	LogAudit(app, AuditFromRequest(re, action, resourceType, resourceID, changes))
}

// LogRecordChange logs a record change from PocketBase hooks
func LogRecordChange(app core.App, action string, record *core.Record, changes map[string]any) {
	LogAudit(app, AuditEntry{
		Company:      record.GetString(FieldCompany),
		Action:       action,
		ResourceType: record.Collection().Name,
		ResourceID:   record.Id,
		Changes:      changes,
		Status:       "success",
	})
}

// LogAuthEvent logs authentication events
func LogAuthEvent(app core.App, action string, user *core.Record, status string) {
	LogAudit(app, AuditEntry{
		UserID:       user.Id,
		UserEmail:    user.GetString("email"),
		Company:      user.GetString(FieldCompany),
		Action:       action,
		ResourceType: user.Collection().Name,
		ResourceID:   user.Id,
		Status:       status,
	})
}
