package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tellerflow/tellerflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tellerd",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tellerd version %s\n", tellerflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
