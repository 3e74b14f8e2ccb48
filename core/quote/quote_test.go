package quote

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"carrier-tariff/core/carrier"
	"carrier-tariff/core/tariff"
	"carrier-tariff/core/zones"
	"carrier-tariff/internal/errors"
)

type fakeSheets map[string]*carrier.Sheet

func (f fakeSheets) Get(name string) (*carrier.Sheet, error) {
	s, ok := f[name]
	if !ok {
		return nil, errors.NotFound("carrier", name)
	}
	return s, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func kg(v float64) *float64 {
	return &v
}

func upsSheets(t *testing.T) fakeSheets {
	t.Helper()
	table, err := tariff.New(tariff.Definition{
		Name:       "ups-express-saver",
		Currency:   "KRW",
		Zones:      []tariff.ZoneCode{"C3", "C7"},
		Step:       dec("0.5"),
		MinWeight:  dec("0.5"),
		Breakpoint: dec("1"),
		MaxWeight:  dec("9999"),
		Exact: []tariff.ExactRow{
			{Weight: dec("0.5"), Rates: map[tariff.ZoneCode]tariff.Rate{"C3": 31950, "C7": 37950}},
			{Weight: dec("1"), Rates: map[tariff.ZoneCode]tariff.Rate{"C3": 33500, "C7": 40100}},
		},
		Brackets: []tariff.RangeBracket{{
			MinWeight: dec("2"),
			MaxWeight: dec("9999"),
			PerKg:     map[tariff.ZoneCode]tariff.Rate{"C3": 4300, "C7": 8700},
		}},
	})
	if err != nil {
		t.Fatalf("tariff.New: %v", err)
	}
	dir, err := zones.New([]zones.Zone{
		{Code: "C3", Label: "China/Taiwan", Countries: []string{"CN", "TW"}},
		{Code: "C7", Label: "North America", Countries: []string{"US", "CA"}},
	}, "")
	if err != nil {
		t.Fatalf("zones.New: %v", err)
	}
	sheet, err := carrier.NewSheet("ups", table, dir, "test")
	if err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	return fakeSheets{"ups": sheet}
}

func TestQuote(t *testing.T) {
	calc := NewCalculator(upsSheets(t), DefaultOptions())

	tests := []struct {
		name      string
		req       Request
		zone      tariff.ZoneCode
		base      tariff.Rate
		fsc       tariff.Rate
		warRisk   tariff.Rate
		surcharge tariff.Rate
		total     tariff.Rate
	}{
		{
			name:    "minimum weight to China",
			req:     Request{Carrier: "ups", Country: "CN", WeightKg: kg(0.5)},
			zone:    "C3",
			base:    31950,
			warRisk: 1598,
			total:   33548,
		},
		{
			name:    "freight to USA with fuel surcharge",
			req:     Request{Carrier: "ups", Country: "us", WeightKg: kg(100), FuelSurchargePercent: dec("23.25")},
			zone:    "C7",
			base:    870000,
			fsc:     202275,
			warRisk: 43500,
			total:   1115775,
		},
		{
			name:    "zero weight bills the minimum",
			req:     Request{Carrier: "ups", Country: "CN", WeightKg: kg(0)},
			zone:    "C3",
			base:    31950,
			warRisk: 1598,
			total:   33548,
		},
		{
			name:      "manual surcharge is added to the total",
			req:       Request{Carrier: "ups", Country: "CN", WeightKg: kg(0.5), SurchargeMinor: 8000},
			zone:      "C3",
			base:      31950,
			warRisk:   1598,
			surcharge: 8000,
			total:     41548,
		},
		{
			name:    "explicit zone wins over country",
			req:     Request{Carrier: "ups", Country: "CN", Zone: "C7", WeightKg: kg(1)},
			zone:    "C7",
			base:    40100,
			warRisk: 2005,
			total:   42105,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := calc.Quote(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Quote: %v", err)
			}
			if q.Zone != tt.zone {
				t.Errorf("zone = %s, want %s", q.Zone, tt.zone)
			}
			if q.Base != tt.base || q.FuelSurcharge != tt.fsc || q.WarRisk != tt.warRisk || q.Surcharge != tt.surcharge || q.Total != tt.total {
				t.Errorf("quote = base %d fsc %d war %d surcharge %d total %d, want %d %d %d %d %d",
					q.Base, q.FuelSurcharge, q.WarRisk, q.Surcharge, q.Total, tt.base, tt.fsc, tt.warRisk, tt.surcharge, tt.total)
			}
			if len(q.Warnings) != 0 {
				t.Errorf("warnings = %v, want none", q.Warnings)
			}
			if q.Currency != "KRW" || q.Tariff != "ups-express-saver" {
				t.Errorf("metadata = %s/%s", q.Currency, q.Tariff)
			}
		})
	}
}

func TestQuoteFromPiecesUsesVolumetricWeight(t *testing.T) {
	calc := NewCalculator(upsSheets(t), DefaultOptions())

	q, err := calc.Quote(context.Background(), Request{
		Carrier: "ups",
		Country: "TW",
		Pieces:  []Piece{{LengthCm: 50, WidthCm: 40, HeightCm: 30, WeightKg: 5, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.Weights.Chargeable.Equal(dec("24")) {
		t.Errorf("chargeable = %s, want 24", q.Weights.Chargeable)
	}
	if q.Base != 24*4300 {
		t.Errorf("base = %d, want %d", q.Base, 24*4300)
	}
	if q.Resolution.Regime != tariff.RegimeRange {
		t.Errorf("regime = %s", q.Resolution.Regime)
	}
	if len(q.Warnings) != 1 {
		t.Errorf("warnings = %v, want one high volumetric warning", q.Warnings)
	}
}

func TestQuoteWithPacking(t *testing.T) {
	calc := NewCalculator(upsSheets(t), DefaultOptions())

	q, err := calc.Quote(context.Background(), Request{
		Carrier: "ups",
		Country: "CN",
		Pieces:  []Piece{{LengthCm: 50, WidthCm: 40, HeightCm: 30, WeightKg: 5, Quantity: 2}},
		Packing: PackingWoodenBox,
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	// 60x50x45 cm and 15.5 kg per packed piece
	if !q.Weights.Actual.Equal(dec("31")) || !q.Weights.Volumetric.Equal(dec("54")) {
		t.Errorf("weights = actual %s volumetric %s, want 31 and 54", q.Weights.Actual, q.Weights.Volumetric)
	}
	if q.Weights.Packing != PackingWoodenBox {
		t.Errorf("packing = %q", q.Weights.Packing)
	}
	if q.Base != 54*4300 {
		t.Errorf("base = %d, want %d", q.Base, 54*4300)
	}
}

func TestQuoteWithoutHighVolumetricWarning(t *testing.T) {
	calc := NewCalculator(upsSheets(t), DefaultOptions())

	q, err := calc.Quote(context.Background(), Request{
		Carrier: "ups",
		Zone:    "C3",
		Pieces:  []Piece{{LengthCm: 10, WidthCm: 10, HeightCm: 10, WeightKg: 3, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if len(q.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", q.Warnings)
	}
}

func TestQuoteErrors(t *testing.T) {
	calc := NewCalculator(upsSheets(t), DefaultOptions())

	tests := []struct {
		name string
		req  Request
		want errors.Type
	}{
		{"unknown carrier", Request{Carrier: "fedex", Country: "CN", WeightKg: kg(1)}, errors.TypeNotFound},
		{"country without zone", Request{Carrier: "ups", Country: "FR", WeightKg: kg(1)}, errors.TypeUnknownZone},
		{"zone not in table", Request{Carrier: "ups", Zone: "C9", WeightKg: kg(1)}, errors.TypeUnknownZone},
		{"no destination", Request{Carrier: "ups", WeightKg: kg(1)}, errors.TypeInput},
		{"negative fuel surcharge", Request{Carrier: "ups", Country: "CN", WeightKg: kg(1), FuelSurchargePercent: dec("-1")}, errors.TypeInput},
		{"negative weight", Request{Carrier: "ups", Country: "CN", WeightKg: kg(-2)}, errors.TypeInvalidWeight},
		{"too heavy", Request{Carrier: "ups", Country: "CN", WeightKg: kg(10000)}, errors.TypeWeightOutOfRange},
		{"no weight and no pieces", Request{Carrier: "ups", Zone: "C3"}, errors.TypeInput},
		{"negative surcharge", Request{Carrier: "ups", Zone: "C3", WeightKg: kg(1), SurchargeMinor: -1}, errors.TypeInput},
		{"unknown packing", Request{Carrier: "ups", Zone: "C3", WeightKg: kg(1), Packing: "crate"}, errors.TypeInput},
		{"packing without pieces", Request{Carrier: "ups", Zone: "C3", WeightKg: kg(1), Packing: PackingSkid}, errors.TypeInput},
		{"bad piece", Request{Carrier: "ups", Country: "CN", Pieces: []Piece{{LengthCm: 10, Quantity: 0}}}, errors.TypeInvalidWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := calc.Quote(context.Background(), tt.req)
			if q != nil {
				t.Errorf("got quote %+v alongside error", q)
			}
			if !errors.IsType(err, tt.want) {
				t.Fatalf("Quote error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestQuoteHonoursCancelledContext(t *testing.T) {
	calc := NewCalculator(upsSheets(t), DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := calc.Quote(ctx, Request{Carrier: "ups", Country: "CN", WeightKg: kg(1)}); err == nil {
		t.Fatal("expected context error")
	}
}
