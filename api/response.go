package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"carrier-tariff/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Code: code, Message: message})
}

// writeDomainError maps err to a status and code; the typed error's context
// is passed through as details
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := mapDomainError(err)
	resp := ErrorResponse{Status: "error", Code: code, Message: err.Error()}
	if e, ok := errors.As(err); ok && len(e.Context) > 0 {
		resp.Details = e.Context
	}
	writeJSON(w, status, resp)
}

func mapDomainError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELLED"
	}

	switch errors.TypeOf(err) {
	case errors.TypeMalformedTable:
		return http.StatusUnprocessableEntity, "MALFORMED_TABLE"
	case errors.TypeParsing:
		return http.StatusUnprocessableEntity, "PARSE_ERROR"
	case errors.TypeUnknownZone:
		return http.StatusNotFound, "UNKNOWN_ZONE"
	case errors.TypeInvalidWeight:
		return http.StatusBadRequest, "INVALID_WEIGHT"
	case errors.TypeWeightOutOfRange:
		return http.StatusUnprocessableEntity, "WEIGHT_OUT_OF_RANGE"
	case errors.TypeRateUnavailable:
		return http.StatusConflict, "RATE_UNAVAILABLE"
	case errors.TypeNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case errors.TypeInput:
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.TypeConfig:
		return http.StatusConflict, "NOT_RELOADABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
