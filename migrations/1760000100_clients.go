package migrations

import (
	"log"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"

	"github.com/concierge-hq/concierge/utils"
)

func init() {
	m.Register(func(app core.App) error {
		existing, _ := app.FindCollectionByNameOrId("clients")
		if existing != nil {
			log.Println("[Migration] clients collection already exists")
			return nil
		}

		collection := core.NewBaseCollection("clients")
		collection.Fields.Add(
			&core.TextField{
				Id:       "cli_name",
				Name:     "name",
				Required: true,
				Max:      200,
			},
			// email and phone hold ciphertext when encryption is enabled,
			// so they are plain text fields
			&core.TextField{
				Id:   "cli_email",
				Name: "email",
				Max:  500,
			},
			&core.TextField{
				Id:   "cli_email_index",
				Name: "email_index",
				Max:  64,
			},
			&core.TextField{
				Id:   "cli_phone",
				Name: "phone",
				Max:  500,
			},
			&core.TextField{
				Id:   "cli_nationality",
				Name: "nationality",
				Max:  100,
			},
			&core.TextField{
				Id:   "cli_notes",
				Name: "notes",
				Max:  10000,
			},
			&core.JSONField{
				Id:      "cli_tags",
				Name:    "tags",
				MaxSize: 5000,
			},
			&core.SelectField{
				Id:        "cli_status",
				Name:      "status",
				MaxSelect: 1,
				Values:    utils.ClientStatuses,
			},
		)
		collection.Fields.Add(tenantFields("cli")...)

		collection.Indexes = []string{
			"CREATE INDEX idx_clients_company ON clients (company)",
			"CREATE INDEX idx_clients_email_index ON clients (company, email_index)",
			"CREATE INDEX idx_clients_legacy ON clients (company, legacy_id)",
		}
		applyTenantRules(collection)

		if err := app.Save(collection); err != nil {
			return err
		}
		log.Println("[Migration] Created clients collection")
		return nil
	}, dropCollection("clients"))
}
