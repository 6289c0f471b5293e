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
		existing, _ := app.FindCollectionByNameOrId("reservations")
		if existing != nil {
			log.Println("[Migration] reservations collection already exists")
			return nil
		}

		collection := core.NewBaseCollection("reservations")

		// Cross references are plain ids so imported documents may point at
		// records that no longer exist
		collection.Fields.Add(
			&core.TextField{Id: "res_client_id", Name: "client_id", Max: 50},
			&core.TextField{Id: "res_client_name", Name: "client_name", Max: 200},
			&core.TextField{Id: "res_villa_id", Name: "villa_id", Max: 50},
			&core.TextField{Id: "res_boat_id", Name: "boat_id", Max: 50},
			&core.TextField{Id: "res_property_name", Name: "property_name", Max: 200},
		)

		collection.Fields.Add(
			&core.DateField{Id: "res_check_in", Name: "check_in"},
			&core.DateField{Id: "res_check_out", Name: "check_out"},
			&core.NumberField{
				Id:      "res_guests",
				Name:    "guests",
				OnlyInt: true,
				Min:     types.Pointer(0.0),
			},
			&core.SelectField{
				Id:        "res_status",
				Name:      "status",
				MaxSelect: 1,
				Values:    utils.ReservationStatuses,
			},
			&core.TextField{
				Id:      "res_currency",
				Name:    "currency",
				Max:     3,
				Pattern: `^[A-Z]{3}$`,
			},
		)

		// Pricing inputs
		collection.Fields.Add(
			&core.NumberField{Id: "res_base_price", Name: "base_price", Min: types.Pointer(0.0)},
			&core.NumberField{Id: "res_total_amount", Name: "total_amount", Min: types.Pointer(0.0)},
			&core.JSONField{Id: "res_services", Name: "services", MaxSize: 100000},
			&core.JSONField{Id: "res_payments", Name: "payments", MaxSize: 100000},
		)

		// Derived on every save, never read back as input
		collection.Fields.Add(
			&core.NumberField{Id: "res_computed_total", Name: "computed_total"},
			&core.NumberField{Id: "res_paid_total", Name: "paid_total"},
			&core.NumberField{Id: "res_due_total", Name: "due_total"},
			&core.SelectField{
				Id:        "res_payment_status",
				Name:      "payment_status",
				MaxSelect: 1,
				Values:    utils.PaymentStatuses,
			},
		)

		collection.Fields.Add(
			&core.TextField{Id: "res_offer_id", Name: "offer_id", Max: 50},
			&core.TextField{Id: "res_notes", Name: "notes", Max: 10000},
		)
		collection.Fields.Add(tenantFields("res")...)

		collection.Indexes = []string{
			"CREATE INDEX idx_reservations_company ON reservations (company)",
			"CREATE INDEX idx_reservations_client ON reservations (company, client_id)",
			"CREATE INDEX idx_reservations_check_in ON reservations (company, check_in)",
			"CREATE INDEX idx_reservations_legacy ON reservations (company, legacy_id)",
		}
		applyTenantRules(collection)
		// Payments change only through the payment endpoints
		collection.CreateRule = types.Pointer(*collection.CreateRule + " && @request.body.payments:isset = false")
		collection.UpdateRule = types.Pointer(*collection.UpdateRule + " && @request.body.payments:isset = false")

		if err := app.Save(collection); err != nil {
			return err
		}
		log.Println("[Migration] Created reservations collection")
		return nil
	}, dropCollection("reservations"))
}
