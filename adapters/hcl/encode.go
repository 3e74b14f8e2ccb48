package hcl

import (
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"carrier-tariff/core/determinism"
	"carrier-tariff/core/tariff"
	"carrier-tariff/core/zones"
)

// NewDocument captures a validated table and its zone directory for encoding
func NewDocument(table *tariff.Table, dir *zones.Directory) *Document {
	doc := &Document{Definition: table.Definition()}
	if dir != nil {
		doc.Zones = dir.Zones()
		doc.DefaultZone = dir.Default()
	}
	return doc
}

// Encode writes the document in the syntax Decode reads. Zone blocks are
// written for every zone of the definition, in definition order.
func Encode(doc *Document) []byte {
	def := doc.Definition

	f := hclwrite.NewEmptyFile()
	tb := f.Body().AppendNewBlock("tariff", []string{def.Name}).Body()

	if def.Currency != "" {
		tb.SetAttributeValue("currency", cty.StringVal(def.Currency))
	}
	tb.SetAttributeValue("step", cty.StringVal(def.Step.String()))
	tb.SetAttributeValue("min_weight", cty.StringVal(def.MinWeight.String()))
	tb.SetAttributeValue("breakpoint", cty.StringVal(def.Breakpoint.String()))
	tb.SetAttributeValue("max_weight", cty.StringVal(def.MaxWeight.String()))
	if doc.DefaultZone != "" {
		tb.SetAttributeValue("default_zone", cty.StringVal(string(doc.DefaultZone)))
	}

	mapped := make(map[tariff.ZoneCode]zones.Zone, len(doc.Zones))
	for _, z := range doc.Zones {
		mapped[z.Code] = z
	}
	for _, code := range def.Zones {
		tb.AppendNewline()
		zb := tb.AppendNewBlock("zone", []string{string(code)}).Body()
		z := mapped[code]
		if z.Label != "" {
			zb.SetAttributeValue("label", cty.StringVal(z.Label))
		}
		if len(z.Countries) > 0 {
			countries := make([]cty.Value, len(z.Countries))
			for i, c := range z.Countries {
				countries[i] = cty.StringVal(c)
			}
			zb.SetAttributeValue("countries", cty.ListVal(countries))
		}
	}

	for _, row := range def.Exact {
		tb.AppendNewline()
		eb := tb.AppendNewBlock("exact", []string{row.Weight.String()}).Body()
		eb.SetAttributeRaw("rates", ratesTokens(row.Rates))
	}

	for _, br := range def.Brackets {
		tb.AppendNewline()
		bb := tb.AppendNewBlock("bracket", nil).Body()
		bb.SetAttributeValue("min", cty.StringVal(br.MinWeight.String()))
		bb.SetAttributeValue("max", cty.StringVal(br.MaxWeight.String()))
		bb.SetAttributeRaw("per_kg", ratesTokens(br.PerKg))
	}

	return hclwrite.Format(f.Bytes())
}

// ratesTokens writes zone rates as an object in zone order. Keys that are
// not plain identifiers, or that read as keywords, are quoted.
func ratesTokens(rates map[tariff.ZoneCode]tariff.Rate) hclwrite.Tokens {
	attrs := make([]hclwrite.ObjectAttrTokens, 0, len(rates))
	for _, code := range determinism.SortedKeys(rates) {
		key := hclwrite.TokensForIdentifier(string(code))
		if !hclsyntax.ValidIdentifier(string(code)) || keywords[string(code)] {
			key = hclwrite.TokensForValue(cty.StringVal(string(code)))
		}
		attrs = append(attrs, hclwrite.ObjectAttrTokens{
			Name:  key,
			Value: hclwrite.TokensForValue(rateValue(rates[code])),
		})
	}
	return hclwrite.TokensForObject(attrs)
}

var keywords = map[string]bool{"true": true, "false": true, "null": true}

func rateValue(r tariff.Rate) cty.Value {
	if !r.Known() {
		return cty.StringVal(unknownRate)
	}
	return cty.NumberIntVal(int64(r))
}
