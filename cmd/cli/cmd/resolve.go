package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"carrier-tariff/core/carrier"
	"carrier-tariff/core/tariff"
	"carrier-tariff/internal/errors"
)

var (
	resolveZone    string
	resolveCountry string
	resolveWeight  float64
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <file.hcl>",
	Short: "Resolve the rate for a zone and weight",
	Long: `Resolve the base rate of a shipment from a tariff file.

Exit codes: 3 unknown zone, 4 invalid weight, 5 weight out of range,
6 rate unavailable in the table.

Examples:
  tariff resolve ups.hcl --zone C3 --weight 0.2
  tariff resolve ups.hcl --country TW --weight 20.1`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVarP(&resolveZone, "zone", "z", "", "zone code, e.g. C3")
	resolveCmd.Flags().StringVarP(&resolveCountry, "country", "c", "", "destination country (ISO alpha-2), used when --zone is not set")
	resolveCmd.Flags().Float64VarP(&resolveWeight, "weight", "w", 0, "shipment weight in kg [REQUIRED]")
	resolveCmd.MarkFlagRequired("weight")
}

func runResolve(cmd *cobra.Command, args []string) error {
	sheet, err := loadSheet(args[0])
	if err != nil {
		return err
	}

	zone, err := pickZone(sheet, resolveZone, resolveCountry)
	if err != nil {
		return err
	}

	res, err := sheet.Table.Explain(zone, resolveWeight)
	if err != nil {
		return err
	}

	return render(cmd.OutOrStdout(), res, func(w io.Writer) {
		fmt.Fprintf(w, "%s %g kg -> %d %s\n", res.Zone, res.Weight, res.Rate, sheet.Table.Currency())
		fmt.Fprintf(w, "  regime:     %s\n", res.Regime)
		fmt.Fprintf(w, "  chargeable: %s kg\n", res.Chargeable)
		if res.Regime == tariff.RegimeRange {
			fmt.Fprintf(w, "  bracket:    %d at %d per kg\n", res.Bracket, res.PerKg)
		}
	})
}

// pickZone returns zone when set, otherwise the zone serving country
func pickZone(sheet *carrier.Sheet, zone, country string) (tariff.ZoneCode, error) {
	if zone = strings.TrimSpace(zone); zone != "" {
		return tariff.ZoneCode(zone), nil
	}
	if country = strings.TrimSpace(country); country == "" {
		return "", errors.New(errors.TypeInput, "either --zone or --country is required")
	}
	z, ok := sheet.Zones.Lookup(country)
	if !ok {
		return "", errors.Newf(errors.TypeUnknownZone, "no zone serves country %s", strings.ToUpper(country))
	}
	return z.Code, nil
}
