// Package cmd provides the CLI commands for the tariff tool.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	tariffhcl "carrier-tariff/adapters/hcl"
	"carrier-tariff/core/carrier"
	"carrier-tariff/internal/config"
	"carrier-tariff/internal/errors"
	"carrier-tariff/internal/logging"
)

// version is set at build time with -ldflags "-X carrier-tariff/cmd/cli/cmd.version=..."
var version = "0.1.0"

var (
	cfgFile      string
	verbose      bool
	outputFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tariff",
	Short: "Validate carrier tariffs and resolve shipping rates",
	Long: `tariff validates carrier rate tables and resolves the rate for a
destination zone and shipment weight.

Examples:
  tariff validate ups.hcl
  tariff resolve ups.hcl --zone C3 --weight 20.1
  tariff quote ups.hcl --country US --weight 12 --fsc 23.25
  tariff snapshot store ups.hcl --carrier ups`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "output format (text, json)")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(ExitConfig)
		}
		config.Set(cfg)
	}

	cfg := config.Get()
	cfg.ApplyEnv()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tariff version %s\n", version)
	},
}

func loadSheet(path string) (*carrier.Sheet, error) {
	sheet, err := tariffhcl.LoadFile(path)
	if err != nil {
		return nil, err
	}
	logging.Debug("tariff loaded",
		zap.String("file", path),
		zap.String("tariff", sheet.Table.Name()),
		zap.String("fingerprint", sheet.Table.Fingerprint().Short()))
	return sheet, nil
}

// render writes v as JSON when --format json is set, otherwise calls text
func render(w io.Writer, v any, text func(io.Writer)) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "text", "":
		text(w)
		return nil
	default:
		return errors.Newf(errors.TypeInput, "unknown output format %q (use text or json)", outputFormat)
	}
}
