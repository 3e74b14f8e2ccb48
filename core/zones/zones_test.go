package zones

import (
	"testing"

	"carrier-tariff/core/tariff"
	"carrier-tariff/internal/errors"
)

func upsZones(t *testing.T) *Directory {
	t.Helper()
	dir, err := New([]Zone{
		{Code: "C3", Label: "China/Taiwan", Countries: []string{"CN", "MO", "TW"}},
		{Code: "C4", Label: "Japan/SE Asia 1", Countries: []string{"JP", "VN", "SG", "MY", "PH"}},
		{Code: "C7", Label: "North America", Countries: []string{"US", "CA", "MX", "PR"}},
		{Code: "C10", Label: "Rest of World"},
	}, "C10")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return dir
}

func TestLookup(t *testing.T) {
	dir := upsZones(t)

	tests := []struct {
		country string
		want    string
	}{
		{"CN", "C3"},
		{"jp", "C4"},
		{" us ", "C7"},
		{"BR", "C10"},
	}

	for _, tt := range tests {
		t.Run(tt.country, func(t *testing.T) {
			z, ok := dir.Lookup(tt.country)
			if !ok {
				t.Fatalf("Lookup(%q) found nothing", tt.country)
			}
			if string(z.Code) != tt.want {
				t.Errorf("Lookup(%q) = %s, want %s", tt.country, z.Code, tt.want)
			}
		})
	}
}

func TestLookupWithoutDefault(t *testing.T) {
	dir, err := New([]Zone{{Code: "Z2", Countries: []string{"JP"}}}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := dir.Lookup("FR"); ok {
		t.Error("unlisted country resolved without a default zone")
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	tests := []struct {
		name string
		get  func(d *Directory) Zone
	}{
		{"Zones", func(d *Directory) Zone { return d.Zones()[0] }},
		{"Zone", func(d *Directory) Zone { z, _ := d.Zone("C3"); return z }},
		{"Lookup", func(d *Directory) Zone { z, _ := d.Lookup("CN"); return z }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := upsZones(t)
			z := tt.get(dir)
			z.Countries[0] = "KR"

			if got := dir.Zones()[0].Countries[0]; got != "CN" {
				t.Errorf("Zones()[0].Countries[0] = %s after caller edit, want CN", got)
			}
			if c3, _ := dir.Zone("C3"); c3.Countries[0] != "CN" {
				t.Errorf("Zone(C3).Countries = %v after caller edit", c3.Countries)
			}
			if z, _ := dir.Lookup("CN"); z.Code != "C3" {
				t.Errorf("Lookup(CN) = %s after caller edit, want C3", z.Code)
			}
			if z, _ := dir.Lookup("KR"); z.Code != "C10" {
				t.Errorf("Lookup(KR) = %s after caller edit, want default C10", z.Code)
			}
		})
	}
}

func TestNewRejectsInvalidDirectories(t *testing.T) {
	tests := []struct {
		name  string
		zones []Zone
		def   string
	}{
		{"country in two zones", []Zone{{Code: "C3", Countries: []string{"CN"}}, {Code: "C4", Countries: []string{"cn"}}}, ""},
		{"duplicate zone", []Zone{{Code: "C3"}, {Code: "C3"}}, ""},
		{"bad country code", []Zone{{Code: "C3", Countries: []string{"CHN"}}}, ""},
		{"unlisted default", []Zone{{Code: "C3"}}, "C10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.zones, tariff.ZoneCode(tt.def))
			if !errors.IsType(err, errors.TypeMalformedTable) {
				t.Fatalf("New() error = %v, want malformed", err)
			}
		})
	}
}
