package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queryTypesCmd = &cobra.Command{
	Use:   "querytypes",
	Short: "List available query types",
	RunE: func(cmd *cobra.Command, args []string) error {
		configMgr, err := getConfigManager()
		if err != nil {
			return err
		}
		registry, err := loadRegistry(configMgr)
		if err != nil {
			return err
		}

		for _, qt := range registry.All() {
			fmt.Printf("%-14s %s\n", qt.Name, qt.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryTypesCmd)
}
