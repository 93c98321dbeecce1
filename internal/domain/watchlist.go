package domain

// EntityKind identifies what a watchlist entry refers to
type EntityKind string

const (
	EntityAccount  EntityKind = "ACCOUNT"
	EntityMerchant EntityKind = "MERCHANT"
	EntityCountry  EntityKind = "COUNTRY"
	EntityState    EntityKind = "STATE"
)

// WatchlistEntry is one row of a named screening list. Entries are grouped
// into a map-of-sets keyed by list name and reloaded wholesale on refresh.
type WatchlistEntry struct {
	List     string     `json:"list" db:"list"`
	EntityID string     `json:"entity_id" db:"entity_id"`
	Kind     EntityKind `json:"kind" db:"kind"`
	Active   bool       `json:"active" db:"active"`
}

// Well-known list names consumed by the sanctions/geography screener
const (
	ListSanctionedAccounts  = "sanctioned_accounts"
	ListSanctionedMerchants = "sanctioned_merchants"
	ListSanctionedCountries = "sanctioned_countries"
	ListHighRiskStates      = "high_risk_states"
)
