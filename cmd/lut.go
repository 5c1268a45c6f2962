package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/sergev/swpll/appll"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	lutFormat string
	lutOutput string
)

var lutCmd = &cobra.Command{
	Use:   "lut",
	Short: "Generate the fractional divider lookup table",
	Long: "Generate the table of fractional divider settings around the target frequency\n" +
		"for the synthesizer settings of the profile, in TOML or YAML format.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s, _, err := solve(profile)
		if err != nil {
			cobra.CheckErr(err)
		}
		table, err := appll.GenerateLUT(s, profile.TargetHz, float64(profile.PPMRange),
			profile.LUT.MaxDenominator, profile.LUT.MaxEntries)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to generate lookup table: %w", err))
		}

		var out io.Writer = os.Stdout
		if lutOutput != "" {
			file, err := os.Create(lutOutput)
			if err != nil {
				cobra.CheckErr(fmt.Errorf("failed to create output file: %w", err))
			}
			defer file.Close()
			out = file
		}
		if err := encodeTable(out, table, lutFormat); err != nil {
			cobra.CheckErr(err)
		}
		if lutOutput != "" {
			fmt.Printf("Wrote %d entries, %.3f ppm average step, to %s\n", len(table.Entries), table.StepPPM(), lutOutput)
		}
	},
}

// encodeTable writes the table in the given format.
func encodeTable(w io.Writer, table *appll.Table, format string) error {
	switch format {
	case "toml":
		if err := toml.NewEncoder(w).Encode(table); err != nil {
			return fmt.Errorf("failed to encode TOML: %w", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(table); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (must be toml or yaml)", format)
	}
	return nil
}

func init() {
	lutCmd.Flags().StringVarP(&lutFormat, "format", "f", "toml", "output format: toml or yaml")
	lutCmd.Flags().StringVarP(&lutOutput, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(lutCmd)
}
