package cmd

import (
	"carrier-tariff/internal/errors"
)

// Process exit codes. Tariff failures get distinct codes so scripts can
// tell an unknown zone from a broken table.
const (
	ExitOK              = 0
	ExitError           = 1
	ExitMalformedTable  = 2
	ExitUnknownZone     = 3
	ExitInvalidWeight   = 4
	ExitOutOfRange      = 5
	ExitRateUnavailable = 6
	ExitConfig          = 7
)

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch errors.TypeOf(err) {
	case errors.TypeMalformedTable, errors.TypeParsing:
		return ExitMalformedTable
	case errors.TypeUnknownZone:
		return ExitUnknownZone
	case errors.TypeInvalidWeight:
		return ExitInvalidWeight
	case errors.TypeWeightOutOfRange:
		return ExitOutOfRange
	case errors.TypeRateUnavailable:
		return ExitRateUnavailable
	case errors.TypeConfig:
		return ExitConfig
	default:
		return ExitError
	}
}
