// Package quote turns a carrier tariff rate into a quote with surcharges.
// All rate math is delegated to core/tariff; this package only adds
// percentages of the resolved base rate.
package quote

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"carrier-tariff/core/carrier"
	"carrier-tariff/core/determinism"
	"carrier-tariff/core/tariff"
	"carrier-tariff/internal/errors"
)

// Sheets provides the live tariff of a carrier; *carrier.Registry satisfies it
type Sheets interface {
	Get(name string) (*carrier.Sheet, error)
}

// Options configures a Calculator
type Options struct {
	// WarRiskPercent is charged on every base rate
	WarRiskPercent decimal.Decimal

	// VolumetricDivisor is used when a request carries pieces
	VolumetricDivisor int
}

// DefaultOptions matches the carriers' published express terms
func DefaultOptions() Options {
	return Options{
		WarRiskPercent:    decimal.NewFromInt(5),
		VolumetricDivisor: 5000,
	}
}

// Request describes a shipment to quote.
// Either Zone or Country selects the rate column; Zone wins when both are set.
// Either Pieces or WeightKg gives the weight; Pieces wins when both are set.
// A zero WeightKg is a real weight and bills at the table minimum.
type Request struct {
	Carrier              string          `json:"carrier"`
	Country              string          `json:"country,omitempty"`
	Zone                 tariff.ZoneCode `json:"zone,omitempty"`
	WeightKg             *float64        `json:"weight_kg,omitempty"`
	Pieces               []Piece         `json:"pieces,omitempty"`
	Packing              Packing         `json:"packing,omitempty"`
	FuelSurchargePercent decimal.Decimal `json:"fuel_surcharge_percent"`

	// SurchargeMinor is a manual surcharge in minor units added to the total
	SurchargeMinor int64 `json:"surcharge,omitempty"`
}

// Quote is a priced shipment in minor currency units
type Quote struct {
	Carrier     string            `json:"carrier"`
	Tariff      string            `json:"tariff"`
	Fingerprint string            `json:"fingerprint"`
	Currency    string            `json:"currency,omitempty"`
	Zone        tariff.ZoneCode   `json:"zone"`
	ZoneLabel   string            `json:"zone_label,omitempty"`
	Weights     *Weights          `json:"weights,omitempty"`
	Resolution  tariff.Resolution `json:"resolution"`

	Base          tariff.Rate `json:"base"`
	FuelSurcharge tariff.Rate `json:"fuel_surcharge"`
	WarRisk       tariff.Rate `json:"war_risk"`
	Surcharge     tariff.Rate `json:"surcharge"`
	Total         tariff.Rate `json:"total"`

	Warnings []string `json:"warnings,omitempty"`
}

// Calculator prices requests against the live carrier tariffs
type Calculator struct {
	sheets Sheets
	opts   Options
}

// NewCalculator creates a calculator
func NewCalculator(sheets Sheets, opts Options) *Calculator {
	if opts.VolumetricDivisor <= 0 {
		opts.VolumetricDivisor = DefaultOptions().VolumetricDivisor
	}
	return &Calculator{sheets: sheets, opts: opts}
}

// Quote prices req. Tariff errors (unknown zone, invalid or out-of-range
// weight, unavailable rate) are returned unchanged.
func (c *Calculator) Quote(ctx context.Context, req Request) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	sheet, err := c.sheets.Get(req.Carrier)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		Carrier:     sheet.Carrier,
		Tariff:      sheet.Table.Name(),
		Fingerprint: sheet.Table.Fingerprint().Hex(),
		Currency:    sheet.Table.Currency(),
	}

	if err := c.selectZone(sheet, req, q); err != nil {
		return nil, err
	}

	var weight float64
	if len(req.Pieces) > 0 {
		w, err := ChargeableWeight(req.Pieces, c.opts.VolumetricDivisor, req.Packing)
		if err != nil {
			return nil, err
		}
		q.Weights = &w
		weight, _ = w.Chargeable.Float64()
		if w.HighVolumetric() {
			q.Warnings = append(q.Warnings, "volumetric weight is more than 20% over actual weight; consider repacking")
		}
	} else {
		weight = *req.WeightKg
	}

	res, err := sheet.Table.Explain(q.Zone, weight)
	if err != nil {
		return nil, err
	}
	q.Resolution = res

	base := determinism.NewMoney(int64(res.Rate), q.Currency)
	fsc := base.Percent(req.FuelSurchargePercent).RoundMinor()
	warRisk := base.Percent(c.opts.WarRiskPercent).RoundMinor()
	surcharge := determinism.NewMoney(req.SurchargeMinor, q.Currency)

	q.Base = res.Rate
	q.FuelSurcharge = tariff.Rate(fsc.Minor())
	q.WarRisk = tariff.Rate(warRisk.Minor())
	q.Surcharge = tariff.Rate(surcharge.Minor())
	q.Total = tariff.Rate(base.Add(fsc).Add(warRisk).Add(surcharge).Minor())
	return q, nil
}

// checkRequest rejects missing or negative inputs before any lookup
func checkRequest(req Request) error {
	switch {
	case req.FuelSurchargePercent.IsNegative():
		return errors.Newf(errors.TypeInput, "fuel surcharge percent must not be negative, got %s", req.FuelSurchargePercent)
	case req.SurchargeMinor < 0:
		return errors.Newf(errors.TypeInput, "surcharge must not be negative, got %d", req.SurchargeMinor)
	case !req.Packing.Valid():
		return errors.Newf(errors.TypeInput, "unknown packing %q", req.Packing)
	case len(req.Pieces) == 0 && req.WeightKg == nil:
		return errors.New(errors.TypeInput, "either weight or pieces is required")
	case len(req.Pieces) == 0 && req.Packing.packed():
		return errors.Newf(errors.TypeInput, "packing %s needs pieces with dimensions", req.Packing)
	}
	return nil
}

func (c *Calculator) selectZone(sheet *carrier.Sheet, req Request, q *Quote) error {
	if req.Zone != "" {
		q.Zone = req.Zone
		if z, ok := sheet.Zones.Zone(req.Zone); ok {
			q.ZoneLabel = z.Label
		}
		return nil
	}

	country := strings.TrimSpace(req.Country)
	if country == "" {
		return errors.New(errors.TypeInput, "either zone or country is required")
	}
	z, ok := sheet.Zones.Lookup(country)
	if !ok {
		return errors.Newf(errors.TypeUnknownZone, "no %s zone serves country %s", sheet.Carrier, strings.ToUpper(country)).
			WithContext("country", country)
	}
	q.Zone = z.Code
	q.ZoneLabel = z.Label
	return nil
}
