package utils

import "time"

// Collection names
const (
	CollectionUsers        = "users"
	CollectionSuperusers   = "_superusers"
	CollectionCompanies    = "companies"
	CollectionClients      = "clients"
	CollectionVillas       = "villas"
	CollectionBoats        = "boats"
	CollectionReservations = "reservations"
	CollectionOffers       = "offers"
	CollectionAuditLogs    = "audit_logs"
)

// Field names
const (
	FieldCompany  = "company"
	FieldStatus   = "status"
	FieldRole     = "role"
	FieldLegacyID = "legacy_id"
	FieldClientID = "client_id"
)

// Roles, lowest privilege first
const (
	RoleViewer  = "viewer"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// Status values
var (
	UserRoles           = []string{RoleAdmin, RoleManager, RoleViewer}
	CompanyStatuses     = []string{"active", "archived"}
	ClientStatuses      = []string{"active", "archived"}
	InventoryStatuses   = []string{"active", "maintenance", "archived"}
	ReservationStatuses = []string{"pending", "confirmed", "cancelled"}
	OfferStatuses       = []string{"draft", "sent", "accepted", "declined", "expired"}
	PaymentStatuses     = []string{"paid", "partial", "unpaid", "unpriced", "cancelled"}
)

// Collections that carry a company field and are audited
var TenantCollections = []string{
	CollectionClients,
	CollectionVillas,
	CollectionBoats,
	CollectionReservations,
	CollectionOffers,
}

// Pagination limits
const (
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// ShareLinkTTL is how long a shared offer link stays valid
const ShareLinkTTL = 14 * 24 * time.Hour
