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
		if err := createCompaniesCollection(app); err != nil {
			return err
		}
		return extendUsersCollection(app)
	}, dropCollection("companies"))
}

func createCompaniesCollection(app core.App) error {
	existing, _ := app.FindCollectionByNameOrId("companies")
	if existing != nil {
		log.Println("[Migration] companies collection already exists")
		return nil
	}

	collection := core.NewBaseCollection("companies")
	collection.Fields.Add(
		&core.TextField{
			Id:       "comp_name",
			Name:     "name",
			Required: true,
			Max:      200,
		},
		&core.TextField{
			Id:       "comp_slug",
			Name:     "slug",
			Required: true,
			Max:      100,
			Pattern:  `^[a-z0-9][a-z0-9-]*$`,
		},
		&core.TextField{
			Id:      "comp_currency",
			Name:    "currency",
			Max:     3,
			Pattern: `^[A-Z]{3}$`,
		},
		&core.TextField{
			Id:   "comp_timezone",
			Name: "timezone",
			Max:  64,
		},
		&core.SelectField{
			Id:        "comp_status",
			Name:      "status",
			MaxSelect: 1,
			Values:    utils.CompanyStatuses,
		},
		&core.AutodateField{
			Id:       "comp_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       "comp_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	)

	collection.Indexes = []string{
		"CREATE UNIQUE INDEX idx_companies_slug ON companies (slug)",
	}

	// Users see their own company; companies are managed by superusers
	collection.ListRule = types.Pointer("@request.auth.company = id")
	collection.ViewRule = types.Pointer("@request.auth.company = id")

	if err := app.Save(collection); err != nil {
		return err
	}
	log.Println("[Migration] Created companies collection")
	return nil
}

func extendUsersCollection(app core.App) error {
	collection, err := app.FindCollectionByNameOrId("users")
	if err != nil {
		// Users collection should exist by default, just extend it
		return nil
	}

	if !fieldExists(collection, "role") {
		collection.Fields.Add(&core.SelectField{
			Id:        "users_role",
			Name:      "role",
			MaxSelect: 1,
			Values:    utils.UserRoles,
		})
	}

	if !fieldExists(collection, "company") {
		collection.Fields.Add(&core.TextField{
			Id:   "users_company",
			Name: "company",
			Max:  50,
		})
	}

	if !fieldExists(collection, "name") {
		collection.Fields.Add(&core.TextField{
			Id:   "users_name",
			Name: "name",
			Max:  200,
		})
	}

	// Role and company are assigned by admins, never self-service.
	// Accounts are created by superusers only.
	collection.CreateRule = nil
	collection.UpdateRule = types.Pointer("id = @request.auth.id && @request.body.role:isset = false && @request.body.company:isset = false")

	return app.Save(collection)
}
