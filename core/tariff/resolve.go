package tariff

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"carrier-tariff/internal/errors"
)

// Resolve returns the rate for weight kilograms shipped to zone.
// It is a pure function of its arguments and never substitutes a zero rate
// for a failed lookup.
func Resolve(t *Table, zone ZoneCode, weight float64) (Rate, error) {
	res, err := t.Explain(zone, weight)
	if err != nil {
		return 0, err
	}
	return res.Rate, nil
}

// Resolve is the method form of Resolve
func (t *Table) Resolve(zone ZoneCode, weight float64) (Rate, error) {
	return Resolve(t, zone, weight)
}

// Explain resolves a rate and reports the chargeable weight, regime and
// bracket that produced it.
func (t *Table) Explain(zone ZoneCode, weight float64) (Resolution, error) {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
		return Resolution{}, errors.Newf(errors.TypeInvalidWeight, "weight must be a finite non-negative number, got %v", weight).
			WithContext("weight", weight)
	}
	zi, ok := t.zoneIndex[zone]
	if !ok {
		return Resolution{}, errors.Newf(errors.TypeUnknownZone, "zone %q is not part of tariff %q", zone, t.name).
			WithContext("zone", string(zone))
	}

	w := decimal.NewFromFloat(weight)
	if w.GreaterThan(t.maxWeight) {
		return Resolution{}, errors.Newf(errors.TypeWeightOutOfRange, "weight %s kg exceeds maximum %s kg", w, t.maxWeight).
			WithContext("weight", weight).
			WithContext("max_weight", t.maxWeight.String())
	}

	if w.LessThanOrEqual(t.breakpoint) {
		return t.resolveExact(zone, zi, weight, w)
	}
	return t.resolveRange(zone, zi, weight, w)
}

func (t *Table) resolveExact(zone ZoneCode, zi int, weight float64, w decimal.Decimal) (Resolution, error) {
	if w.LessThan(t.minWeight) {
		w = t.minWeight
	}

	// Round up to the next step; minWeight is itself on the grid.
	q, r := w.Sub(t.minWeight).QuoRem(t.step, 0)
	idx := q.IntPart()
	if r.IsPositive() {
		idx++
	}

	rate := t.exact[zi][idx]
	res := Resolution{
		Zone:       zone,
		Weight:     weight,
		Chargeable: t.weightAt(idx),
		Regime:     RegimeExact,
		Rate:       rate,
		Bracket:    -1,
	}
	if !rate.Known() {
		return Resolution{}, unavailable(zone, res.Chargeable)
	}
	return res, nil
}

func (t *Table) resolveRange(zone ZoneCode, zi int, weight float64, w decimal.Decimal) (Resolution, error) {
	kg := w.Ceil().IntPart()

	i := sort.Search(len(t.brackets), func(i int) bool { return t.brackets[i].hi >= kg })
	if i == len(t.brackets) || t.brackets[i].lo > kg {
		// New guarantees contiguous coverage up to maxWeight.
		return Resolution{}, errors.Newf(errors.TypeInternal, "no bracket covers %d kg in tariff %q", kg, t.name)
	}

	perKg := t.brackets[i].perKg[zi]
	chargeable := decimal.NewFromInt(kg)
	if !perKg.Known() {
		return Resolution{}, unavailable(zone, chargeable)
	}

	return Resolution{
		Zone:       zone,
		Weight:     weight,
		Chargeable: chargeable,
		Regime:     RegimeRange,
		Rate:       Rate(kg) * perKg,
		PerKg:      perKg,
		Bracket:    i,
	}, nil
}

func unavailable(zone ZoneCode, chargeable decimal.Decimal) error {
	return errors.Newf(errors.TypeRateUnavailable, "no known rate for zone %s at %s kg", zone, chargeable).
		WithContext("zone", string(zone)).
		WithContext("chargeable_weight", chargeable.String())
}
