package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// Same-company access rules for the built-in collection API. Superusers
// bypass rules entirely.
const (
	tenantReadRule   = "@request.auth.id != '' && @request.auth.company = company"
	tenantWriteRule  = tenantReadRule + " && @request.auth.role != 'viewer'"
	tenantDeleteRule = tenantReadRule + " && @request.auth.role = 'admin'"
)

// fieldExists checks if a field with the given name exists in the collection
func fieldExists(collection *core.Collection, fieldName string) bool {
	return collection.Fields.GetByName(fieldName) != nil
}

// applyTenantRules sets the standard per-company access rules
func applyTenantRules(collection *core.Collection) {
	collection.ListRule = types.Pointer(tenantReadRule)
	collection.ViewRule = types.Pointer(tenantReadRule)
	collection.CreateRule = types.Pointer(tenantWriteRule + " && @request.body.company = @request.auth.company")
	collection.UpdateRule = types.Pointer(tenantWriteRule + " && (@request.body.company:isset = false || @request.body.company = company)")
	collection.DeleteRule = types.Pointer(tenantDeleteRule)
}

// tenantFields are carried by every business collection
func tenantFields(prefix string) []core.Field {
	return []core.Field{
		&core.TextField{
			Id:       prefix + "_company",
			Name:     "company",
			Required: true,
			Max:      50,
		},
		&core.TextField{
			Id:   prefix + "_legacy_id",
			Name: "legacy_id",
			Max:  100,
		},
		&core.AutodateField{
			Id:       prefix + "_created",
			Name:     "created",
			OnCreate: true,
		},
		&core.AutodateField{
			Id:       prefix + "_updated",
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		},
	}
}

// dropCollection is the shared down migration
func dropCollection(name string) func(app core.App) error {
	return func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId(name)
		if err != nil {
			return nil
		}
		return app.Delete(collection)
	}
}
