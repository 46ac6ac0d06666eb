package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/dpsmeter/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load and validate the configuration given with --config, including
environment overrides, without starting a capture.

Examples:
  dpsmeter validate -c dpsmeter.yml
  dpsmeter validate -c dpsmeter.yml --print   # also print the effective config`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(configFile, validatePrint, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var validatePrint bool

func init() {
	validateCmd.Flags().BoolVar(&validatePrint, "print", false, "print the effective configuration as YAML")
}

func runValidate(path string, dump bool, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "VALID: backend %s, port %d, %d city world(s)\n",
		cfg.Capture.Backend, cfg.Capture.Port, len(cfg.Meter.CityWorlds))

	if dump {
		out, err := cfg.YAML()
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		_, err = w.Write(out)
		return err
	}
	return nil
}
