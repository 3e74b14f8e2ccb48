// Package hcl reads and writes carrier tariffs in HCL.
//
//	tariff "ups-express-saver" {
//	  currency     = "KRW"
//	  step         = "0.5"
//	  min_weight   = "0.5"
//	  breakpoint   = "20"
//	  max_weight   = "9999"
//	  default_zone = "C10"
//
//	  zone "C3" {
//	    label     = "China/Taiwan"
//	    countries = ["CN", "MO", "TW"]
//	  }
//
//	  exact "0.5" {
//	    rates = { C3 = 31950 }
//	  }
//
//	  bracket {
//	    min    = "21"
//	    max    = "9999"
//	    per_kg = { C3 = 4300 }
//	  }
//	}
//
// Weights are strings so that grid values stay exact. Zone codes are object
// keys and may be quoted when they are not identifiers. A cell written as
// "unknown" decodes to tariff.RateUnknown.
package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"carrier-tariff/core/tariff"
	"carrier-tariff/core/zones"
	"carrier-tariff/internal/errors"
)

// unknownRate is the cell literal for tariff.RateUnknown
const unknownRate = "unknown"

// Document is a decoded tariff file. It is not validated; call Build.
type Document struct {
	Definition  tariff.Definition
	Zones       []zones.Zone
	DefaultZone tariff.ZoneCode
}

type fileSchema struct {
	Tariff tariffBlock `hcl:"tariff,block"`
}

type tariffBlock struct {
	Name        string         `hcl:"name,label"`
	Currency    string         `hcl:"currency,optional"`
	Step        string         `hcl:"step"`
	MinWeight   string         `hcl:"min_weight"`
	Breakpoint  string         `hcl:"breakpoint"`
	MaxWeight   string         `hcl:"max_weight"`
	DefaultZone string         `hcl:"default_zone,optional"`
	Zones       []zoneBlock    `hcl:"zone,block"`
	Exact       []exactBlock   `hcl:"exact,block"`
	Brackets    []bracketBlock `hcl:"bracket,block"`
}

type zoneBlock struct {
	Code      string   `hcl:"code,label"`
	Label     string   `hcl:"label,optional"`
	Countries []string `hcl:"countries,optional"`
}

type exactBlock struct {
	Weight string         `hcl:"weight,label"`
	Rates  hcl.Expression `hcl:"rates"`
}

type bracketBlock struct {
	Min   string         `hcl:"min"`
	Max   string         `hcl:"max"`
	PerKg hcl.Expression `hcl:"per_kg"`
}

// Decode parses a tariff file. Syntax errors and values of the wrong shape
// are TypeParsing errors.
func Decode(filename string, src []byte) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Parsing("failed to parse "+filename, diags)
	}

	var root fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, errors.Parsing("failed to decode "+filename, diags)
	}

	tb := root.Tariff
	doc := &Document{DefaultZone: tariff.ZoneCode(tb.DefaultZone)}
	def := &doc.Definition
	def.Name = tb.Name
	def.Currency = tb.Currency

	var err error
	if def.Step, err = weight("step", tb.Step); err != nil {
		return nil, err
	}
	if def.MinWeight, err = weight("min_weight", tb.MinWeight); err != nil {
		return nil, err
	}
	if def.Breakpoint, err = weight("breakpoint", tb.Breakpoint); err != nil {
		return nil, err
	}
	if def.MaxWeight, err = weight("max_weight", tb.MaxWeight); err != nil {
		return nil, err
	}

	for _, zb := range tb.Zones {
		code := tariff.ZoneCode(zb.Code)
		def.Zones = append(def.Zones, code)
		doc.Zones = append(doc.Zones, zones.Zone{Code: code, Label: zb.Label, Countries: zb.Countries})
	}

	for _, eb := range tb.Exact {
		row, err := decodeExact(eb)
		if err != nil {
			return nil, err
		}
		def.Exact = append(def.Exact, row)
	}

	for i, bb := range tb.Brackets {
		br, err := decodeBracket(i, bb)
		if err != nil {
			return nil, err
		}
		def.Brackets = append(def.Brackets, br)
	}

	return doc, nil
}

// Build validates the document into a table and its zone directory
func (d *Document) Build() (*tariff.Table, *zones.Directory, error) {
	table, err := tariff.New(d.Definition)
	if err != nil {
		return nil, nil, err
	}
	dir, err := zones.New(d.Zones, d.DefaultZone)
	if err != nil {
		return nil, nil, err
	}
	return table, dir, nil
}

func decodeExact(eb exactBlock) (tariff.ExactRow, error) {
	w, err := weight("exact", eb.Weight)
	if err != nil {
		return tariff.ExactRow{}, err
	}
	rates, err := zoneRates("exact "+eb.Weight+" rates", eb.Rates)
	if err != nil {
		return tariff.ExactRow{}, err
	}
	return tariff.ExactRow{Weight: w, Rates: rates}, nil
}

func decodeBracket(i int, bb bracketBlock) (tariff.RangeBracket, error) {
	lo, err := weight(fmt.Sprintf("bracket %d min", i), bb.Min)
	if err != nil {
		return tariff.RangeBracket{}, err
	}
	hi, err := weight(fmt.Sprintf("bracket %d max", i), bb.Max)
	if err != nil {
		return tariff.RangeBracket{}, err
	}
	perKg, err := zoneRates(fmt.Sprintf("bracket %d per_kg", i), bb.PerKg)
	if err != nil {
		return tariff.RangeBracket{}, err
	}
	return tariff.RangeBracket{MinWeight: lo, MaxWeight: hi, PerKg: perKg}, nil
}

// zoneRates decodes an object of zone code to rate
func zoneRates(field string, expr hcl.Expression) (map[tariff.ZoneCode]tariff.Rate, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, errors.Parsing(field, diags)
	}
	ty := val.Type()
	if val.IsNull() || !(ty.IsObjectType() || ty.IsMapType()) {
		return nil, errors.Newf(errors.TypeParsing, "%s must be an object of zone rates", field)
	}

	rates := make(map[tariff.ZoneCode]tariff.Rate)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		r, err := rate(v)
		if err != nil {
			return nil, errors.Wrapf(errors.TypeParsing, err, "%s: zone %s", field, k.AsString())
		}
		rates[tariff.ZoneCode(k.AsString())] = r
	}
	return rates, nil
}

func weight(field, s string) (decimal.Decimal, error) {
	w, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(errors.TypeParsing, err, "%s: %q is not a weight", field, s)
	}
	return w, nil
}

// rate converts a cell value. Numbers must be whole and non-negative.
func rate(v cty.Value) (tariff.Rate, error) {
	if v.IsNull() {
		return 0, fmt.Errorf("rate is null")
	}
	switch ty := v.Type(); {
	case ty.Equals(cty.String):
		if v.AsString() == unknownRate {
			return tariff.RateUnknown, nil
		}
		return 0, fmt.Errorf("rate %q is neither a number nor %q", v.AsString(), unknownRate)
	case ty.Equals(cty.Number):
		var n int64
		if err := gocty.FromCtyValue(v, &n); err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("rate %d is negative", n)
		}
		return tariff.Rate(n), nil
	default:
		return 0, fmt.Errorf("rate has type %s", ty.FriendlyName())
	}
}
