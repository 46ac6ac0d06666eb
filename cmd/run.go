package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/dpsmeter/internal/app"
	"firestige.xyz/dpsmeter/internal/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live meter",
	Long: `Capture the game session live and show the ranking table in the terminal.

Commands are read from stdin, one per line:
  s  suspend the meter until resumed
  r  resume the meter
  x  reset all statistics and the tracked connection
  q  quit

Examples:
  dpsmeter run                           # default config, pcap on device "any"
  dpsmeter run -c dpsmeter.yml           # use config file
  dpsmeter run --backend afpacket        # Linux AF_PACKET capture`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMeter(cmd); err != nil {
			exitWithError("meter failed", err)
		}
	},
}

var (
	runBackend string
	runPort    uint16
)

func init() {
	runCmd.Flags().StringVarP(&runBackend, "backend", "b", "", "capture backend override (pcap, afpacket)")
	runCmd.Flags().Uint16VarP(&runPort, "port", "p", 0, "game server port override")
}

func runMeter(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("backend") {
		if err := cfg.Capture.Backend.UnmarshalText([]byte(runBackend)); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("port") {
		cfg.Capture.Port = runPort
	}
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return err
	}

	a := app.New(cfg, app.Options{Output: os.Stdout, ClearScreen: true})
	if err := a.Start(); err != nil {
		return err
	}
	if !a.Capturing() {
		fmt.Fprintln(os.Stderr, "capture unavailable, the meter will not update (see log)")
	}

	go func() {
		fmt.Fprintln(os.Stderr, keysHelp)
		quit, err := runKeys(context.Background(), os.Stdin, a.Engine(), os.Stderr)
		if err != nil {
			log.GetLogger().WithError(err).Warn("keyboard control stopped")
			return
		}
		if quit {
			a.Shutdown()
		}
	}()

	return a.Run()
}
