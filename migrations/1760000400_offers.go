package migrations

import (
	"log"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"

	"github.com/concierge-hq/concierge/utils"
)

func init() {
	m.Register(func(app core.App) error {
		existing, _ := app.FindCollectionByNameOrId("offers")
		if existing != nil {
			log.Println("[Migration] offers collection already exists")
			return nil
		}

		collection := core.NewBaseCollection("offers")
		collection.Fields.Add(
			&core.TextField{Id: "off_client_id", Name: "client_id", Max: 50},
			&core.TextField{Id: "off_client_name", Name: "client_name", Max: 200},
			&core.TextField{Id: "off_client_email", Name: "client_email", Max: 200},
			&core.TextField{
				Id:       "off_title",
				Name:     "title",
				Required: true,
				Max:      300,
			},
			&core.JSONField{Id: "off_items", Name: "items", MaxSize: 100000},
			&core.NumberField{Id: "off_total_amount", Name: "total_amount", Min: types.Pointer(0.0)},
			&core.TextField{
				Id:      "off_currency",
				Name:    "currency",
				Max:     3,
				Pattern: `^[A-Z]{3}$`,
			},
			&core.SelectField{
				Id:        "off_status",
				Name:      "status",
				MaxSelect: 1,
				Values:    utils.OfferStatuses,
			},
			&core.DateField{Id: "off_valid_until", Name: "valid_until"},
			&core.TextField{Id: "off_villa_id", Name: "villa_id", Max: 50},
			&core.TextField{Id: "off_boat_id", Name: "boat_id", Max: 50},
			&core.TextField{Id: "off_property_name", Name: "property_name", Max: 200},
			&core.DateField{Id: "off_check_in", Name: "check_in"},
			&core.DateField{Id: "off_check_out", Name: "check_out"},
			&core.NumberField{Id: "off_guests", Name: "guests", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.TextField{Id: "off_notes", Name: "notes", Max: 10000},
			&core.TextField{Id: "off_share_token", Name: "share_token", Max: 1000, Hidden: true},
			&core.DateField{Id: "off_share_expires", Name: "share_expires"},
			&core.TextField{Id: "off_reservation_id", Name: "reservation_id", Max: 50},
		)
		collection.Fields.Add(tenantFields("off")...)

		collection.Indexes = []string{
			"CREATE INDEX idx_offers_company ON offers (company)",
			"CREATE INDEX idx_offers_client ON offers (company, client_id)",
			"CREATE INDEX idx_offers_legacy ON offers (company, legacy_id)",
		}
		applyTenantRules(collection)

		if err := app.Save(collection); err != nil {
			return err
		}
		log.Println("[Migration] Created offers collection")
		return nil
	}, dropCollection("offers"))
}
