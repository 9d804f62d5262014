package main

import (
	"fmt"

	"github.com/aretw0/itpbot"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of itpbot",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "itpbot version %s\n", itpbot.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
