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
		if err := createVillasCollection(app); err != nil {
			return err
		}
		return createBoatsCollection(app)
	}, func(app core.App) error {
		if err := dropCollection("boats")(app); err != nil {
			return err
		}
		return dropCollection("villas")(app)
	})
}

func inventoryStatusField(prefix string) core.Field {
	return &core.SelectField{
		Id:        prefix + "_status",
		Name:      "status",
		MaxSelect: 1,
		Values:    utils.InventoryStatuses,
	}
}

func createVillasCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("villas")
	if existing != nil {
		log.Println("[Migration] villas collection already exists")
		return nil
	}

	collection := core.NewBaseCollection("villas")
	collection.Fields.Add(
		&core.TextField{
			Id:       "vil_name",
			Name:     "name",
			Required: true,
			Max:      200,
		},
		&core.TextField{
			Id:   "vil_location",
			Name: "location",
			Max:  300,
		},
		&core.TextField{
			Id:   "vil_description",
			Name: "description",
			Max:  20000,
		},
		&core.NumberField{
			Id:      "vil_bedrooms",
			Name:    "bedrooms",
			OnlyInt: true,
			Min:     types.Pointer(0.0),
		},
		&core.NumberField{
			Id:      "vil_capacity",
			Name:    "capacity",
			OnlyInt: true,
			Min:     types.Pointer(0.0),
		},
		&core.NumberField{
			Id:   "vil_price_per_night",
			Name: "price_per_night",
			Min:  types.Pointer(0.0),
		},
		&core.JSONField{
			Id:      "vil_photos",
			Name:    "photos",
			MaxSize: 50000,
		},
		inventoryStatusField("vil"),
	)
	collection.Fields.Add(tenantFields("vil")...)

	collection.Indexes = []string{
		"CREATE INDEX idx_villas_company ON villas (company)",
		"CREATE INDEX idx_villas_legacy ON villas (company, legacy_id)",
	}
	applyTenantRules(collection)

	if err := app.Save(collection); err != nil {
		return err
	}
	log.Println("[Migration] Created villas collection")
	return nil
}

func createBoatsCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("boats")
	if existing != nil {
		log.Println("[Migration] boats collection already exists")
		return nil
	}

	collection := core.NewBaseCollection("boats")
	collection.Fields.Add(
		&core.TextField{
			Id:       "boat_name",
			Name:     "name",
			Required: true,
			Max:      200,
		},
		&core.TextField{
			Id:   "boat_type",
			Name: "boat_type",
			Max:  100,
		},
		&core.TextField{
			Id:   "boat_description",
			Name: "description",
			Max:  20000,
		},
		&core.NumberField{
			Id:      "boat_capacity",
			Name:    "capacity",
			OnlyInt: true,
			Min:     types.Pointer(0.0),
		},
		&core.NumberField{
			Id:   "boat_length_m",
			Name: "length_m",
			Min:  types.Pointer(0.0),
		},
		&core.NumberField{
			Id:   "boat_price_per_day",
			Name: "price_per_day",
			Min:  types.Pointer(0.0),
		},
		&core.JSONField{
			Id:      "boat_photos",
			Name:    "photos",
			MaxSize: 50000,
		},
		inventoryStatusField("boat"),
	)
	collection.Fields.Add(tenantFields("boat")...)

	collection.Indexes = []string{
		"CREATE INDEX idx_boats_company ON boats (company)",
		"CREATE INDEX idx_boats_legacy ON boats (company, legacy_id)",
	}
	applyTenantRules(collection)

	if err := app.Save(collection); err != nil {
		return err
	}
	log.Println("[Migration] Created boats collection")
	return nil
}
