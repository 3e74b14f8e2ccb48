package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"carrier-tariff/core/carrier"
	"carrier-tariff/core/quote"
	"carrier-tariff/core/tariff"
	"carrier-tariff/internal/errors"
)

// maxBodyBytes bounds request bodies; a quote with many pieces is still tiny
const maxBodyBytes = 1 << 20

// Handler serves the tariff endpoints
type Handler struct {
	registry *carrier.Registry
	quotes   *quote.Calculator
	version  string
}

// NewHandler creates a new handler
func NewHandler(registry *carrier.Registry, quotes *quote.Calculator, version string) *Handler {
	return &Handler{registry: registry, quotes: quotes, version: version}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	loaded := 0
	names := h.registry.Names()
	for _, name := range names {
		if _, err := h.registry.Get(name); err == nil {
			loaded++
		}
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  h.version,
		"carriers": len(names),
		"loaded":   loaded,
	})
}

func (h *Handler) listCarriers(w http.ResponseWriter, _ *http.Request) {
	names := h.registry.Names()
	infos := make([]CarrierInfo, 0, len(names))
	for _, name := range names {
		sheet, _ := h.registry.Get(name)
		infos = append(infos, carrierInfo(name, sheet))
	}
	writeSuccess(w, http.StatusOK, infos)
}

func (h *Handler) getCarrier(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "carrier")
	sheet, err := h.registry.Get(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, carrierInfo(name, sheet))
}

// resolveRate handles GET /api/v1/carriers/{carrier}/rate?zone=&weight=.
// country may replace zone when the carrier maps countries.
func (h *Handler) resolveRate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "carrier")
	sheet, err := h.registry.Get(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	q := r.URL.Query()
	rawWeight := strings.TrimSpace(q.Get("weight"))
	if rawWeight == "" {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "weight is required")
		return
	}
	weight, err := strconv.ParseFloat(rawWeight, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_WEIGHT", "weight must be a number of kilograms")
		return
	}

	zone := tariff.ZoneCode(strings.TrimSpace(q.Get("zone")))
	if zone == "" {
		country := strings.TrimSpace(q.Get("country"))
		if country == "" {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "zone or country is required")
			return
		}
		z, ok := sheet.Zones.Lookup(country)
		if !ok {
			writeDomainError(w, errors.Newf(errors.TypeUnknownZone, "no %s zone serves country %s", name, strings.ToUpper(country)))
			return
		}
		zone = z.Code
	}

	res, err := sheet.Table.Explain(zone, weight)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, RateResponse{
		Carrier:     name,
		Tariff:      sheet.Table.Name(),
		Fingerprint: sheet.Table.Fingerprint().Hex(),
		Currency:    sheet.Table.Currency(),
		Resolution:  res,
	})
}

func (h *Handler) createQuote(w http.ResponseWriter, r *http.Request) {
	var req quote.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid json body: "+err.Error())
		return
	}

	q, err := h.quotes.Quote(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, q)
}

func (h *Handler) reloadCarrier(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "carrier")
	sheet, err := h.registry.Reload(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, carrierInfo(name, sheet))
}
