package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/dpsmeter/internal/app"
	"firestige.xyz/dpsmeter/internal/capture"
	"firestige.xyz/dpsmeter/internal/report"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a capture file and print the final ranking",
	Long: `Replay a pcap or pcapng capture of a game session through the meter.

Encounter time is taken from the capture timestamps, so rates match the
original session. Frames written with capture.dump_file can be replayed.

Examples:
  dpsmeter replay -f session.pcap
  dpsmeter replay -f session.pcap -p 15011`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runReplay(cmd); err != nil {
			exitWithError("replay failed", err)
		}
	},
}

var (
	replayFile string
	replayPort uint16
)

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "capture file to replay (required)")
	replayCmd.Flags().Uint16VarP(&replayPort, "port", "p", 0, "game server port override")
	replayCmd.MarkFlagRequired("file")
}

func runReplay(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Capture.Backend = capture.TypeFile
	cfg.Capture.File = replayFile
	cfg.Capture.DumpFile = ""
	if cmd.Flags().Changed("port") {
		cfg.Capture.Port = replayPort
	}
	cfg.Report.Console.Enabled = false
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return err
	}

	a := app.New(cfg, app.Options{FrameClock: true})
	if err := a.Start(); err != nil {
		return err
	}
	if !a.Capturing() {
		_ = a.Stop()
		return fmt.Errorf("cannot open %s", replayFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-a.Engine().CaptureDone():
	case <-ctx.Done():
	}

	v, err := a.Engine().View(context.Background())
	if stopErr := a.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	if err != nil {
		return err
	}

	if err := report.Render(os.Stdout, v); err != nil {
		return err
	}
	fmt.Printf("%d bytes reassembled, %d messages decoded, %d dropped\n",
		v.Stream.DeliveredBytes, v.Decoder.Messages, v.Decoder.Dropped)
	return nil
}
