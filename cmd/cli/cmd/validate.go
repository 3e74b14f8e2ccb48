package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"carrier-tariff/core/carrier"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file.hcl>...",
	Short: "Validate tariff files",
	Long: `Build each tariff and report its fingerprint and limits.

A file that cannot be parsed or violates a table rule (missing exact weight,
overlapping brackets, unknown zone column) fails with exit code 2.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

type validateResult struct {
	File        string   `json:"file"`
	Tariff      string   `json:"tariff"`
	Currency    string   `json:"currency,omitempty"`
	Fingerprint string   `json:"fingerprint"`
	Zones       []string `json:"zones"`
	MinWeight   string   `json:"min_weight"`
	Breakpoint  string   `json:"breakpoint"`
	MaxWeight   string   `json:"max_weight"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	results := make([]validateResult, 0, len(args))
	for _, path := range args {
		sheet, err := loadSheet(path)
		if err != nil {
			return err
		}
		results = append(results, summarize(path, sheet))
	}

	return render(cmd.OutOrStdout(), results, func(w io.Writer) {
		for _, r := range results {
			fmt.Fprintf(w, "OK %s\n", r.File)
			fmt.Fprintf(w, "  tariff:      %s %s\n", r.Tariff, r.Currency)
			fmt.Fprintf(w, "  fingerprint: %s\n", r.Fingerprint)
			fmt.Fprintf(w, "  zones:       %v\n", r.Zones)
			fmt.Fprintf(w, "  weights:     %s..%s kg exact, up to %s kg\n", r.MinWeight, r.Breakpoint, r.MaxWeight)
		}
	})
}

func summarize(path string, sheet *carrier.Sheet) validateResult {
	t := sheet.Table
	r := validateResult{
		File:        path,
		Tariff:      t.Name(),
		Currency:    t.Currency(),
		Fingerprint: t.Fingerprint().Hex(),
		MinWeight:   t.MinWeight().String(),
		Breakpoint:  t.Breakpoint().String(),
		MaxWeight:   t.MaxWeight().String(),
	}
	for _, z := range t.Zones() {
		r.Zones = append(r.Zones, string(z))
	}
	return r
}
