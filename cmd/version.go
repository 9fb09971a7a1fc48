package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dogma165/push-notification/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("webpushd " + build.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
