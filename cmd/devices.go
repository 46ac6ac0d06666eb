package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"firestige.xyz/dpsmeter/internal/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices",
	Long:  `List the network devices libpcap can capture on, for capture.device.`,
	Run: func(cmd *cobra.Command, args []string) {
		devs, err := capture.ListDevices()
		if err != nil {
			exitWithError("failed to list devices", err)
		}

		fmt.Println()
		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"Name", "Description", "Addresses"})
		tw.SetBorder(true)
		tw.SetAutoWrapText(false)
		for _, d := range devs {
			tw.Append([]string{d.Name, d.Description, strings.Join(d.Addresses, ", ")})
		}
		tw.Render()
		fmt.Println()
	},
}
