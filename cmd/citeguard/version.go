// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the citeguard version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("citeguard %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
