package tariff

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"carrier-tariff/core/determinism"
	"carrier-tariff/internal/errors"
)

// Table is a validated, immutable tariff
type Table struct {
	name     string
	currency string

	zones     []ZoneCode
	zoneIndex map[ZoneCode]int

	step       decimal.Decimal
	minWeight  decimal.Decimal
	breakpoint decimal.Decimal
	maxWeight  decimal.Decimal

	// exact[zone][i] is the rate for minWeight + i*step
	exact [][]Rate

	brackets []bracket

	fingerprint determinism.ContentHash
}

// bracket is a RangeBracket resolved to the whole kilograms it bills
type bracket struct {
	min, max decimal.Decimal
	lo, hi   int64
	perKg    []Rate
}

// New validates def and returns an immutable table.
// Every structural violation is reported as a TypeMalformedTable error and no
// table is returned.
func New(def Definition) (*Table, error) {
	t := &Table{
		name:       strings.TrimSpace(def.Name),
		currency:   def.Currency,
		step:       def.Step,
		minWeight:  def.MinWeight,
		breakpoint: def.Breakpoint,
		maxWeight:  def.MaxWeight,
	}

	if err := t.buildZones(def.Zones); err != nil {
		return nil, err
	}
	if err := t.checkLimits(); err != nil {
		return nil, err
	}
	if err := t.buildExact(def.Exact); err != nil {
		return nil, err
	}
	if err := t.buildBrackets(def.Brackets); err != nil {
		return nil, err
	}

	hash, err := fingerprint(t.Definition())
	if err != nil {
		return nil, errors.Internal("fingerprint tariff", err)
	}
	t.fingerprint = hash
	return t, nil
}

func (t *Table) buildZones(zones []ZoneCode) error {
	if len(zones) == 0 {
		return errors.Malformed("tariff %q declares no zones", t.name)
	}
	t.zones = make([]ZoneCode, 0, len(zones))
	t.zoneIndex = make(map[ZoneCode]int, len(zones))
	for _, z := range zones {
		if strings.TrimSpace(string(z)) == "" {
			return errors.Malformed("tariff %q declares an empty zone code", t.name)
		}
		if _, dup := t.zoneIndex[z]; dup {
			return errors.Malformed("zone %s declared twice", z)
		}
		t.zoneIndex[z] = len(t.zones)
		t.zones = append(t.zones, z)
	}
	return nil
}

func (t *Table) checkLimits() error {
	switch {
	case !t.step.IsPositive():
		return errors.Malformed("step must be positive, got %s", t.step)
	case !t.minWeight.IsPositive():
		return errors.Malformed("min weight must be positive, got %s", t.minWeight)
	case !t.minWeight.Mod(t.step).IsZero():
		return errors.Malformed("min weight %s is not a multiple of step %s", t.minWeight, t.step)
	case t.breakpoint.LessThan(t.minWeight):
		return errors.Malformed("breakpoint %s is below min weight %s", t.breakpoint, t.minWeight)
	case !t.breakpoint.Sub(t.minWeight).Mod(t.step).IsZero():
		return errors.Malformed("breakpoint %s is not on the %s step grid from %s", t.breakpoint, t.step, t.minWeight)
	case t.maxWeight.LessThan(t.breakpoint):
		return errors.Malformed("max weight %s is below breakpoint %s", t.maxWeight, t.breakpoint)
	}
	return nil
}

func (t *Table) buildExact(rows []ExactRow) error {
	count := t.breakpoint.Sub(t.minWeight).Div(t.step).IntPart() + 1

	t.exact = make([][]Rate, len(t.zones))
	for i := range t.exact {
		t.exact[i] = make([]Rate, count)
	}

	for i, row := range rows {
		want := t.weightAt(int64(i))
		switch {
		case i > 0 && !row.Weight.GreaterThan(rows[i-1].Weight):
			return errors.Malformed("exact weights not strictly increasing: %s follows %s", row.Weight, rows[i-1].Weight)
		case row.Weight.GreaterThan(t.breakpoint):
			return errors.Malformed("exact weight %s is above breakpoint %s", row.Weight, t.breakpoint)
		case row.Weight.GreaterThan(want):
			return errors.Malformed("missing exact weight %s (gap before %s)", want, row.Weight)
		case row.Weight.LessThan(want):
			return errors.Malformed("exact weight %s is off the %s step grid", row.Weight, t.step)
		}

		label := "weight " + row.Weight.String()
		cells, err := t.zoneRates(label, row.Rates)
		if err != nil {
			return err
		}
		for zi, rate := range cells {
			t.exact[zi][i] = rate
		}
	}

	if int64(len(rows)) < count {
		return errors.Malformed("missing exact weight %s (table ends before breakpoint %s)", t.weightAt(int64(len(rows))), t.breakpoint)
	}
	return nil
}

func (t *Table) buildBrackets(defs []RangeBracket) error {
	if t.maxWeight.Equal(t.breakpoint) {
		if len(defs) > 0 {
			return errors.Malformed("%d range brackets given but max weight equals breakpoint %s", len(defs), t.breakpoint)
		}
		return nil
	}
	if len(defs) == 0 {
		return errors.Malformed("no range brackets cover (%s, %s]", t.breakpoint, t.maxWeight)
	}
	if !t.maxWeight.Equal(t.maxWeight.Floor()) {
		return errors.Malformed("max weight %s must be a whole number of kilograms", t.maxWeight)
	}

	// Range weights bill in whole kilograms, so coverage is judged on that grid.
	prevMax := t.breakpoint
	prevHi := t.breakpoint.Floor().IntPart()
	t.brackets = make([]bracket, 0, len(defs))

	for i, def := range defs {
		if def.MinWeight.GreaterThan(def.MaxWeight) {
			return errors.Malformed("bracket %d: min %s is above max %s", i, def.MinWeight, def.MaxWeight)
		}
		if !def.MinWeight.GreaterThan(prevMax) {
			if i == 0 {
				return errors.Malformed("bracket 0 starts at %s, overlapping the exact range up to %s", def.MinWeight, prevMax)
			}
			return errors.Malformed("bracket %d starts at %s, overlapping bracket %d ending at %s", i, def.MinWeight, i-1, prevMax)
		}

		lo := def.MinWeight.Ceil().IntPart()
		hi := def.MaxWeight.Floor().IntPart()
		if lo > hi {
			return errors.Malformed("bracket %d [%s, %s] covers no whole kilogram", i, def.MinWeight, def.MaxWeight)
		}
		if lo != prevHi+1 {
			return errors.Malformed("gap between %s and bracket %d starting at %s", prevMax, i, def.MinWeight)
		}

		label := "bracket " + def.MinWeight.String() + "-" + def.MaxWeight.String()
		perKg, err := t.zoneRates(label, def.PerKg)
		if err != nil {
			return err
		}
		for zi, rate := range perKg {
			if rate > 0 && rate > Rate(math.MaxInt64/hi) {
				return errors.Malformed("%s: per-kg rate %d for zone %s overflows at %d kg", label, rate, t.zones[zi], hi)
			}
		}

		t.brackets = append(t.brackets, bracket{
			min:   def.MinWeight,
			max:   def.MaxWeight,
			lo:    lo,
			hi:    hi,
			perKg: perKg,
		})
		prevMax = def.MaxWeight
		prevHi = hi
	}

	if !prevMax.Equal(t.maxWeight) {
		return errors.Malformed("brackets end at %s but max weight is %s", prevMax, t.maxWeight)
	}
	return nil
}

// zoneRates orders rates by zone index, requiring exactly the declared zones
func (t *Table) zoneRates(label string, rates map[ZoneCode]Rate) ([]Rate, error) {
	out := make([]Rate, len(t.zones))
	for zi, z := range t.zones {
		rate, ok := rates[z]
		if !ok {
			return nil, errors.Malformed("%s: missing rate for zone %s", label, z)
		}
		if rate < 0 && rate != RateUnknown {
			return nil, errors.Malformed("%s: negative rate %d for zone %s", label, rate, z)
		}
		out[zi] = rate
	}
	if len(rates) != len(t.zones) {
		for _, z := range determinism.SortedKeys(rates) {
			if _, ok := t.zoneIndex[z]; !ok {
				return nil, errors.Malformed("%s: rate for undeclared zone %s", label, z)
			}
		}
	}
	return out, nil
}

func (t *Table) weightAt(i int64) decimal.Decimal {
	return t.minWeight.Add(t.step.Mul(decimal.NewFromInt(i)))
}

// Name returns the tariff name
func (t *Table) Name() string { return t.name }

// Currency returns the currency code of the rates
func (t *Table) Currency() string { return t.currency }

// Zones returns the zone codes in declaration order
func (t *Table) Zones() []ZoneCode {
	out := make([]ZoneCode, len(t.zones))
	copy(out, t.zones)
	return out
}

// HasZone reports whether z is one of the table's zones
func (t *Table) HasZone(z ZoneCode) bool {
	_, ok := t.zoneIndex[z]
	return ok
}

// Step returns the exact-regime weight step
func (t *Table) Step() decimal.Decimal { return t.step }

// MinWeight returns the minimum billable weight
func (t *Table) MinWeight() decimal.Decimal { return t.minWeight }

// Breakpoint returns the last exact-regime weight
func (t *Table) Breakpoint() decimal.Decimal { return t.breakpoint }

// MaxWeight returns the heaviest weight the table prices
func (t *Table) MaxWeight() decimal.Decimal { return t.maxWeight }

// Fingerprint is the content hash of the table's canonical definition.
// Two tables with the same fingerprint resolve every query identically.
func (t *Table) Fingerprint() determinism.ContentHash { return t.fingerprint }

// Definition returns a deep copy of the table's structure, suitable for
// persisting. New(t.Definition()) reproduces an equivalent table.
func (t *Table) Definition() Definition {
	def := Definition{
		Name:       t.name,
		Currency:   t.currency,
		Zones:      t.Zones(),
		Step:       t.step,
		MinWeight:  t.minWeight,
		Breakpoint: t.breakpoint,
		MaxWeight:  t.maxWeight,
		Exact:      make([]ExactRow, 0, len(t.exact[0])),
	}

	for i := range t.exact[0] {
		rates := make(map[ZoneCode]Rate, len(t.zones))
		for zi, z := range t.zones {
			rates[z] = t.exact[zi][i]
		}
		def.Exact = append(def.Exact, ExactRow{Weight: t.weightAt(int64(i)), Rates: rates})
	}

	for _, b := range t.brackets {
		perKg := make(map[ZoneCode]Rate, len(t.zones))
		for zi, z := range t.zones {
			perKg[z] = b.perKg[zi]
		}
		def.Brackets = append(def.Brackets, RangeBracket{MinWeight: b.min, MaxWeight: b.max, PerKg: perKg})
	}
	return def
}

// fingerprint hashes the canonical JSON form; encoding/json sorts map keys
func fingerprint(def Definition) (determinism.ContentHash, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return determinism.ContentHash{}, err
	}
	return determinism.ComputeHash(data), nil
}
