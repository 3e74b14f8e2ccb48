// Package zones maps destination countries to a carrier's tariff zones.
package zones

import (
	"sort"
	"strings"

	"carrier-tariff/core/tariff"
	"carrier-tariff/internal/errors"
)

// Zone is one rate column with the countries it serves
type Zone struct {
	Code      tariff.ZoneCode `json:"code"`
	Label     string          `json:"label,omitempty"`
	Countries []string        `json:"countries,omitempty"`
}

// Directory resolves ISO 3166 alpha-2 country codes to zones.
// It is immutable after New.
type Directory struct {
	zones       []Zone
	byCode      map[tariff.ZoneCode]int
	byCountry   map[string]int
	defaultZone tariff.ZoneCode
}

// New validates the zone list. defaultZone, when set, must be one of zones
// and is used for countries not listed anywhere.
func New(zones []Zone, defaultZone tariff.ZoneCode) (*Directory, error) {
	d := &Directory{
		zones:       make([]Zone, 0, len(zones)),
		byCode:      make(map[tariff.ZoneCode]int, len(zones)),
		byCountry:   make(map[string]int),
		defaultZone: defaultZone,
	}

	for _, z := range zones {
		if _, dup := d.byCode[z.Code]; dup {
			return nil, errors.Malformed("zone %s listed twice in zone directory", z.Code)
		}
		idx := len(d.zones)
		countries := make([]string, 0, len(z.Countries))
		for _, c := range z.Countries {
			c = normalize(c)
			if len(c) != 2 {
				return nil, errors.Malformed("zone %s: %q is not a two-letter country code", z.Code, c)
			}
			if other, taken := d.byCountry[c]; taken {
				return nil, errors.Malformed("country %s assigned to both %s and %s", c, d.zones[other].Code, z.Code)
			}
			d.byCountry[c] = idx
			countries = append(countries, c)
		}
		sort.Strings(countries)
		d.byCode[z.Code] = idx
		d.zones = append(d.zones, Zone{Code: z.Code, Label: z.Label, Countries: countries})
	}

	if defaultZone != "" {
		if _, ok := d.byCode[defaultZone]; !ok {
			return nil, errors.Malformed("default zone %s is not listed", defaultZone)
		}
	}
	return d, nil
}

// Lookup returns the zone serving country, falling back to the default zone.
// ok is false when the country is unlisted and there is no default.
func (d *Directory) Lookup(country string) (Zone, bool) {
	if idx, found := d.byCountry[normalize(country)]; found {
		return d.zones[idx].clone(), true
	}
	if d.defaultZone == "" {
		return Zone{}, false
	}
	return d.zones[d.byCode[d.defaultZone]].clone(), true
}

// Zone returns the zone with the given code
func (d *Directory) Zone(code tariff.ZoneCode) (Zone, bool) {
	idx, ok := d.byCode[code]
	if !ok {
		return Zone{}, false
	}
	return d.zones[idx].clone(), true
}

// Zones returns all zones in declaration order
func (d *Directory) Zones() []Zone {
	out := make([]Zone, len(d.zones))
	for i, z := range d.zones {
		out[i] = z.clone()
	}
	return out
}

// Default returns the fallback zone code, if any
func (d *Directory) Default() tariff.ZoneCode {
	return d.defaultZone
}

// CheckAgainst reports zones the directory names that the table lacks
func (d *Directory) CheckAgainst(t *tariff.Table) error {
	for _, z := range d.zones {
		if !t.HasZone(z.Code) {
			return errors.Malformed("zone %s is mapped to countries but has no rates in tariff %q", z.Code, t.Name())
		}
	}
	return nil
}

// clone copies the country list so callers cannot edit the directory
func (z Zone) clone() Zone {
	if z.Countries != nil {
		z.Countries = append([]string(nil), z.Countries...)
	}
	return z
}

func normalize(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}
