// Package tariff resolves carrier rates from an immutable rate table.
//
// A table prices weights in two regimes. Up to and including the breakpoint
// every zone has a tabulated rate per weight step; chargeable weight is rounded
// up to the next step. Above the breakpoint the weight is rounded up to whole
// kilograms and multiplied by the per-kilogram rate of the bracket it falls in.
//
// Tables are only obtainable through New, which validates the structure once.
// A *Table is never mutated afterwards and may be shared by any number of
// goroutines without locking.
package tariff

import (
	"github.com/shopspring/decimal"
)

// ZoneCode identifies a destination/service rate column, e.g. "C3"
type ZoneCode string

// Rate is an amount in minor currency units
type Rate int64

// RateUnknown marks a cell whose source value was missing or unreadable.
// Zero is a legitimate rate and is never used for this.
const RateUnknown Rate = -1

// Known reports whether r holds an actual amount
func (r Rate) Known() bool {
	return r >= 0
}

// Regime identifies which pricing rule produced a rate
type Regime string

const (
	// RegimeExact is the per-step lookup at or below the breakpoint
	RegimeExact Regime = "exact"

	// RegimeRange is the per-kilogram pricing above the breakpoint
	RegimeRange Regime = "range"
)

// Definition is the unvalidated structural description of a tariff as a
// loader produces it. Pass it to New to obtain a usable Table.
type Definition struct {
	// Name identifies the tariff, e.g. "ups-express-saver"
	Name string `json:"name"`

	// Currency is the ISO code of the minor units (informational)
	Currency string `json:"currency,omitempty"`

	// Zones is the complete set of zone columns, in display order
	Zones []ZoneCode `json:"zones"`

	// Step is the exact-regime weight granularity in kilograms
	Step decimal.Decimal `json:"step"`

	// MinWeight is the minimum billable weight and the first exact row
	MinWeight decimal.Decimal `json:"min_weight"`

	// Breakpoint is the last exact row; heavier weights use brackets
	Breakpoint decimal.Decimal `json:"breakpoint"`

	// MaxWeight is the heaviest weight the tariff prices
	MaxWeight decimal.Decimal `json:"max_weight"`

	// Exact holds one row per weight from MinWeight to Breakpoint
	Exact []ExactRow `json:"exact"`

	// Brackets cover (Breakpoint, MaxWeight] in ascending order
	Brackets []RangeBracket `json:"brackets,omitempty"`
}

// ExactRow is one weight line of the exact-rate grid
type ExactRow struct {
	Weight decimal.Decimal   `json:"weight"`
	Rates  map[ZoneCode]Rate `json:"rates"`
}

// RangeBracket prices weights in [MinWeight, MaxWeight] per kilogram
type RangeBracket struct {
	MinWeight decimal.Decimal   `json:"min_weight"`
	MaxWeight decimal.Decimal   `json:"max_weight"`
	PerKg     map[ZoneCode]Rate `json:"per_kg"`
}

// Resolution explains how a rate was derived
type Resolution struct {
	Zone ZoneCode `json:"zone"`

	// Weight is the weight as requested
	Weight float64 `json:"weight"`

	// Chargeable is the weight after carrier rounding
	Chargeable decimal.Decimal `json:"chargeable_weight"`

	Regime Regime `json:"regime"`
	Rate   Rate   `json:"rate"`

	// PerKg and Bracket are set for the range regime only
	PerKg   Rate `json:"per_kg,omitempty"`
	Bracket int  `json:"bracket"`
}
