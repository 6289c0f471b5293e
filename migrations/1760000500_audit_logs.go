package migrations

import (
	"log"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		existing, _ := app.FindCollectionByNameOrId("audit_logs")
		if existing != nil {
			log.Println("[Migration] audit_logs collection already exists")
			return nil
		}

		collection := core.NewBaseCollection("audit_logs")
		collection.Fields.Add(
			&core.TextField{Id: "audit_user_id", Name: "user_id", Max: 50},
			&core.TextField{Id: "audit_user_email", Name: "user_email", Max: 200},
			&core.TextField{Id: "audit_company", Name: "company", Max: 50},
			&core.SelectField{
				Id:        "audit_action",
				Name:      "action",
				Required:  true,
				MaxSelect: 1,
				Values: []string{
					"create", "update", "delete", "login",
					"payment_add", "payment_remove",
					"offer_share", "offer_convert", "import",
				},
			},
			&core.TextField{Id: "audit_resource_type", Name: "resource_type", Required: true, Max: 50},
			&core.TextField{Id: "audit_resource_id", Name: "resource_id", Max: 50},
			&core.TextField{
				Id:   "audit_ip_address",
				Name: "ip_address",
				Max:  45, // IPv6 max length
			},
			&core.TextField{Id: "audit_user_agent", Name: "user_agent", Max: 500},
			&core.JSONField{Id: "audit_changes", Name: "changes", MaxSize: 50000},
			&core.SelectField{
				Id:        "audit_status",
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"success", "failure", "error"},
			},
			&core.TextField{Id: "audit_error_message", Name: "error_message", Max: 1000},
			&core.AutodateField{Id: "audit_created", Name: "created", OnCreate: true},
		)

		collection.Indexes = []string{
			"CREATE INDEX idx_audit_company ON audit_logs (company, created)",
			"CREATE INDEX idx_audit_user ON audit_logs (user_id)",
			"CREATE INDEX idx_audit_resource ON audit_logs (resource_type, resource_id)",
		}

		// Admins of the company can read; only the system writes
		collection.ListRule = types.Pointer("@request.auth.role = 'admin' && @request.auth.company = company")
		collection.ViewRule = types.Pointer("@request.auth.role = 'admin' && @request.auth.company = company")

		if err := app.Save(collection); err != nil {
			return err
		}
		log.Println("[Migration] Created audit_logs collection")
		return nil
	}, dropCollection("audit_logs"))
}
