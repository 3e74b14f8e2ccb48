package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"carrier-tariff/core/carrier"
	"carrier-tariff/core/quote"
	"carrier-tariff/core/tariff"
	"carrier-tariff/internal/config"
	"carrier-tariff/internal/errors"
)

var (
	quoteZone      string
	quoteCountry   string
	quoteWeight    float64
	quotePieces    []string
	quotePacking   string
	quoteFSC       string
	quoteSurcharge int64
)

var quoteCmd = &cobra.Command{
	Use:   "quote <file.hcl>",
	Short: "Quote a shipment with fuel and war-risk surcharges",
	Long: `Price a shipment from a tariff file.

The base rate comes from the tariff; the fuel surcharge (--fsc) and the
configured war-risk percentage are added on top, each rounded to whole
minor units.

Either --weight or at least one --piece is required. Pieces are given as
LxWxH:kg[:qty] in centimetres and kilograms; when set, the chargeable weight
is the greater of actual and volumetric weight. --packing adds export
packing (wooden_box, skid, vacuum) to every piece before weighing.
--surcharge adds a manual amount in minor units to the total.

Examples:
  tariff quote ups.hcl --country CN --weight 0.5
  tariff quote ups.hcl --zone C7 --piece 50x40x30:5:2 --fsc 23.25
  tariff quote ups.hcl --country US --piece 50x40x30:5 --packing wooden_box --surcharge 8000`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVarP(&quoteZone, "zone", "z", "", "zone code, e.g. C3")
	quoteCmd.Flags().StringVarP(&quoteCountry, "country", "c", "", "destination country (ISO alpha-2)")
	quoteCmd.Flags().Float64VarP(&quoteWeight, "weight", "w", 0, "shipment weight in kg")
	quoteCmd.Flags().StringArrayVarP(&quotePieces, "piece", "p", nil, "piece as LxWxH:kg[:qty], repeatable")
	quoteCmd.Flags().StringVar(&quotePacking, "packing", "", "export packing: none, wooden_box, skid, vacuum")
	quoteCmd.Flags().StringVar(&quoteFSC, "fsc", "0", "fuel surcharge percent")
	quoteCmd.Flags().Int64Var(&quoteSurcharge, "surcharge", 0, "manual surcharge in minor units")
}

func runQuote(cmd *cobra.Command, args []string) error {
	sheet, err := loadSheet(args[0])
	if err != nil {
		return err
	}

	fsc, err := decimal.NewFromString(quoteFSC)
	if err != nil {
		return errors.Wrapf(errors.TypeInput, err, "--fsc %q is not a number", quoteFSC)
	}
	pieces := make([]quote.Piece, 0, len(quotePieces))
	for _, raw := range quotePieces {
		p, err := parsePiece(raw)
		if err != nil {
			return err
		}
		pieces = append(pieces, p)
	}

	opts, err := config.Get().Quote.Options()
	if err != nil {
		return err
	}

	var weight *float64
	if cmd.Flags().Changed("weight") {
		weight = &quoteWeight
	}

	name := sheet.Table.Name()
	reg := carrier.NewRegistry()
	reg.Install(name, sheet)
	calc := quote.NewCalculator(reg, opts)

	q, err := calc.Quote(context.Background(), quote.Request{
		Carrier:              name,
		Country:              quoteCountry,
		Zone:                 tariff.ZoneCode(strings.TrimSpace(quoteZone)),
		WeightKg:             weight,
		Pieces:               pieces,
		Packing:              quote.Packing(strings.TrimSpace(quotePacking)),
		FuelSurchargePercent: fsc,
		SurchargeMinor:       quoteSurcharge,
	})
	if err != nil {
		return err
	}

	return render(cmd.OutOrStdout(), q, func(w io.Writer) {
		zone := string(q.Zone)
		if q.ZoneLabel != "" {
			zone += " (" + q.ZoneLabel + ")"
		}
		fmt.Fprintf(w, "%s to %s\n", q.Tariff, zone)
		if q.Weights != nil {
			fmt.Fprintf(w, "  weight:         actual %s kg, volumetric %s kg\n", q.Weights.Actual, q.Weights.Volumetric)
			if q.Weights.Packing != "" {
				fmt.Fprintf(w, "  packing:        %s\n", q.Weights.Packing)
			}
		}
		fmt.Fprintf(w, "  chargeable:     %s kg (%s)\n", q.Resolution.Chargeable, q.Resolution.Regime)
		fmt.Fprintf(w, "  base:           %d\n", q.Base)
		fmt.Fprintf(w, "  fuel surcharge: %d\n", q.FuelSurcharge)
		fmt.Fprintf(w, "  war risk:       %d\n", q.WarRisk)
		if q.Surcharge != 0 {
			fmt.Fprintf(w, "  surcharge:      %d\n", q.Surcharge)
		}
		fmt.Fprintf(w, "  total:          %d %s\n", q.Total, q.Currency)
		for _, warning := range q.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warning)
		}
	})
}

// parsePiece reads LxWxH:kg[:qty]
func parsePiece(raw string) (quote.Piece, error) {
	bad := func(reason string) (quote.Piece, error) {
		return quote.Piece{}, errors.Newf(errors.TypeInput, "piece %q: %s (want LxWxH:kg[:qty])", raw, reason)
	}

	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return bad("wrong number of fields")
	}
	dims := strings.Split(strings.ToLower(parts[0]), "x")
	if len(dims) != 3 {
		return bad("dimensions must be LxWxH")
	}

	var vals [4]float64
	for i, s := range append(dims, parts[1]) {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return bad(fmt.Sprintf("%q is not a number", s))
		}
		vals[i] = v
	}

	qty := 1
	if len(parts) == 3 {
		n, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return bad(fmt.Sprintf("quantity %q is not a whole number", parts[2]))
		}
		qty = n
	}

	return quote.Piece{
		LengthCm: vals[0],
		WidthCm:  vals[1],
		HeightCm: vals[2],
		WeightKg: vals[3],
		Quantity: qty,
	}, nil
}
