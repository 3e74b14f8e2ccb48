// Package api - response types for the tariff endpoints.
// These types define the JSON contract; the engine types stay internal.
package api

import (
	"time"

	"carrier-tariff/core/carrier"
	"carrier-tariff/core/tariff"
)

// SuccessResponse is the envelope of every 2xx response
type SuccessResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse is the envelope of every error response
type ErrorResponse struct {
	Status  string                 `json:"status"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CarrierInfo describes a carrier's live tariff
type CarrierInfo struct {
	Name        string     `json:"name"`
	Loaded      bool       `json:"loaded"`
	Tariff      string     `json:"tariff,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Source      string     `json:"source,omitempty"`
	LoadedAt    *time.Time `json:"loaded_at,omitempty"`
	Limits      *Limits    `json:"limits,omitempty"`
	Zones       []ZoneInfo `json:"zones,omitempty"`
	DefaultZone string     `json:"default_zone,omitempty"`
}

// Limits are the weight bounds of a tariff, in kilograms
type Limits struct {
	Step       string `json:"step"`
	MinWeight  string `json:"min_weight"`
	Breakpoint string `json:"breakpoint"`
	MaxWeight  string `json:"max_weight"`
}

// ZoneInfo is one rate column and the countries mapped to it
type ZoneInfo struct {
	Code      tariff.ZoneCode `json:"code"`
	Label     string          `json:"label,omitempty"`
	Countries []string        `json:"countries,omitempty"`
}

// RateResponse is the result of a single rate lookup
type RateResponse struct {
	Carrier     string            `json:"carrier"`
	Tariff      string            `json:"tariff"`
	Fingerprint string            `json:"fingerprint"`
	Currency    string            `json:"currency,omitempty"`
	Resolution  tariff.Resolution `json:"resolution"`
}

func carrierInfo(name string, sheet *carrier.Sheet) CarrierInfo {
	if sheet == nil {
		return CarrierInfo{Name: name}
	}
	t := sheet.Table
	loadedAt := sheet.LoadedAt
	info := CarrierInfo{
		Name:        name,
		Loaded:      true,
		Tariff:      t.Name(),
		Currency:    t.Currency(),
		Fingerprint: t.Fingerprint().Hex(),
		Source:      sheet.Source,
		LoadedAt:    &loadedAt,
		Limits: &Limits{
			Step:       t.Step().String(),
			MinWeight:  t.MinWeight().String(),
			Breakpoint: t.Breakpoint().String(),
			MaxWeight:  t.MaxWeight().String(),
		},
		DefaultZone: string(sheet.Zones.Default()),
	}

	labels := make(map[tariff.ZoneCode]ZoneInfo)
	for _, z := range sheet.Zones.Zones() {
		labels[z.Code] = ZoneInfo{Code: z.Code, Label: z.Label, Countries: z.Countries}
	}
	for _, code := range t.Zones() {
		zi, ok := labels[code]
		if !ok {
			zi = ZoneInfo{Code: code}
		}
		info.Zones = append(info.Zones, zi)
	}
	return info
}
