package domain

// PatternKind classifies a pattern definition
type PatternKind string

const (
	PatternRuleBased   PatternKind = "RULE_BASED"
	PatternStatistical PatternKind = "STATISTICAL"
	PatternBehavioral  PatternKind = "BEHAVIORAL"
)

// ClauseKind is the closed set of predicate operators a rule clause can
// carry. Evaluation happens in a single exhaustive switch in the rule
// matcher; adding a kind here without extending that switch is a bug the
// matcher reports as an unknown-clause error.
type ClauseKind string

const (
	ClauseAmountRange  ClauseKind = "AMOUNT_RANGE"
	ClauseMerchantType ClauseKind = "MERCHANT_TYPE"
	ClauseTimeOfDay    ClauseKind = "TIME_OF_DAY"
	ClauseFrequency    ClauseKind = "FREQUENCY"
	ClauseLocation     ClauseKind = "LOCATION"
	ClauseSequence     ClauseKind = "SEQUENCE"
)

// LocationCondition selects the location clause variant
type LocationCondition string

const (
	LocationOutsideRadius LocationCondition = "OUTSIDE_RADIUS"
	LocationHighRiskArea  LocationCondition = "HIGH_RISK_AREA"
)

// PredicateClause is one predicate of a rule-based pattern. Only the
// fields relevant to its Kind are populated.
type PredicateClause struct {
	Kind ClauseKind `json:"kind"`

	// AMOUNT_RANGE
	MinAmount float64 `json:"min_amount,omitempty"`
	MaxAmount float64 `json:"max_amount,omitempty"`

	// MERCHANT_TYPE
	MerchantTypes []string `json:"merchant_types,omitempty"`

	// TIME_OF_DAY
	StartHour int `json:"start_hour,omitempty"`
	EndHour   int `json:"end_hour,omitempty"`

	// FREQUENCY
	WindowHours int `json:"window_hours,omitempty"`
	Threshold   int `json:"threshold,omitempty"`

	// LOCATION
	Condition   LocationCondition `json:"condition,omitempty"`
	CenterLat   float64           `json:"center_lat,omitempty"`
	CenterLon   float64           `json:"center_lon,omitempty"`
	RadiusMiles float64           `json:"radius_miles,omitempty"`
	Areas       []string          `json:"areas,omitempty"`

	// SEQUENCE
	SequenceLength int      `json:"sequence_length,omitempty"`
	Sequences      []string `json:"sequences,omitempty"`
}

// PatternDefinition is one versioned pattern from the pattern library.
// Definitions are immutable once loaded into an active snapshot; reloads
// replace the whole snapshot, never mutate it in place.
type PatternDefinition struct {
	ID        string            `json:"id" db:"id"`
	Name      string            `json:"name" db:"name"`
	Kind      PatternKind       `json:"kind" db:"kind"`
	Clauses   []PredicateClause `json:"clauses" db:"clauses"`
	RiskLevel RiskLevel         `json:"risk_level" db:"risk_level"`

	// MatchThreshold is the percentage of satisfied clauses required for
	// a match; partial rule satisfaction is intentional so noisy signals
	// still contribute.
	MatchThreshold float64 `json:"match_threshold" db:"match_threshold"`

	Active bool `json:"active" db:"active"`
}

// LevelWeight returns the fixed risk-level multiplier applied to a matched
// pattern's confidence so low-value rules never dominate the aggregate
func (p *PatternDefinition) LevelWeight() float64 {
	switch p.RiskLevel {
	case RiskLevelHigh, RiskLevelCritical:
		return 20
	case RiskLevelMedium:
		return 10
	default:
		return 5
	}
}
