package quote

import (
	"math"

	"github.com/shopspring/decimal"

	"carrier-tariff/internal/errors"
)

// Piece is a packed item line: dimensions in centimetres, weight in kilograms
type Piece struct {
	LengthCm float64 `json:"length_cm"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`
	WeightKg float64 `json:"weight_kg"`
	Quantity int     `json:"quantity"`
}

// Packing is the export packing put around every piece before it is weighed
type Packing string

const (
	PackingNone      Packing = "none"
	PackingWoodenBox Packing = "wooden_box"
	PackingSkid      Packing = "skid"
	PackingVacuum    Packing = "vacuum"
)

// Packed pieces grow by 10x10x15 cm and weigh 1.1x their weight plus 10 kg.
var (
	packLength       = decimal.NewFromInt(10)
	packWidth        = decimal.NewFromInt(10)
	packHeight       = decimal.NewFromInt(15)
	packWeightFactor = decimal.RequireFromString("1.1")
	packWeightAdd    = decimal.NewFromInt(10)
)

// highVolumetricRatio flags shipments whose volumetric weight is more than
// 20% above their actual weight
var highVolumetricRatio = decimal.RequireFromString("1.2")

// Valid reports whether p is a known packing. The empty packing means none.
func (p Packing) Valid() bool {
	switch p {
	case "", PackingNone, PackingWoodenBox, PackingSkid, PackingVacuum:
		return true
	}
	return false
}

func (p Packing) packed() bool {
	return p != "" && p != PackingNone
}

// Weights is the outcome of ChargeableWeight
type Weights struct {
	Packing    Packing         `json:"packing,omitempty"`
	Actual     decimal.Decimal `json:"actual"`
	Volumetric decimal.Decimal `json:"volumetric"`
	Chargeable decimal.Decimal `json:"chargeable"`
}

// HighVolumetric reports a volumetric weight more than 20% over actual
func (w Weights) HighVolumetric() bool {
	return w.Volumetric.GreaterThan(w.Actual.Mul(highVolumetricRatio))
}

// ChargeableWeight returns the greater of total actual and total volumetric
// weight. Packing is added to every piece first. Each dimension is then
// rounded up to a whole centimetre before the volume is divided by divisor
// (5000 for express, 6000 for economy).
func ChargeableWeight(pieces []Piece, divisor int, packing Packing) (Weights, error) {
	if divisor <= 0 {
		return Weights{}, errors.Newf(errors.TypeInput, "volumetric divisor must be positive, got %d", divisor)
	}
	if !packing.Valid() {
		return Weights{}, errors.Newf(errors.TypeInput, "unknown packing %q", packing)
	}
	if len(pieces) == 0 {
		return Weights{}, errors.New(errors.TypeInvalidWeight, "no pieces to weigh")
	}

	actual := decimal.Zero
	volumetric := decimal.Zero
	div := decimal.NewFromInt(int64(divisor))

	for i, p := range pieces {
		if p.Quantity <= 0 {
			return Weights{}, errors.Newf(errors.TypeInvalidWeight, "piece %d: quantity must be positive, got %d", i, p.Quantity)
		}
		for _, v := range []float64{p.LengthCm, p.WidthCm, p.HeightCm, p.WeightKg} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return Weights{}, errors.Newf(errors.TypeInvalidWeight, "piece %d: dimensions and weight must be finite and non-negative", i)
			}
		}

		l := decimal.NewFromFloat(p.LengthCm)
		w := decimal.NewFromFloat(p.WidthCm)
		h := decimal.NewFromFloat(p.HeightCm)
		kg := decimal.NewFromFloat(p.WeightKg)
		if packing.packed() {
			l, w, h = l.Add(packLength), w.Add(packWidth), h.Add(packHeight)
			kg = kg.Mul(packWeightFactor).Add(packWeightAdd)
		}

		qty := decimal.NewFromInt(int64(p.Quantity))
		volume := l.Ceil().Mul(w.Ceil()).Mul(h.Ceil())

		actual = actual.Add(kg.Mul(qty))
		volumetric = volumetric.Add(volume.Div(div).Mul(qty))
	}

	result := Weights{
		Actual:     actual,
		Volumetric: volumetric,
		Chargeable: decimal.Max(actual, volumetric),
	}
	if packing.packed() {
		result.Packing = packing
	}
	return result, nil
}
