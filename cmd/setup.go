package main

import (
	"github.com/spf13/cobra"

	"github.com/vadiminshakov/trendbot/internal/setup"
)

var setupOutput string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive wizard that writes a config file",
	RunE: func(_ *cobra.Command, _ []string) error {
		return setup.RunTUI(setupOutput)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().StringVarP(&setupOutput, "output", "o", setup.DefaultOutput, "where to write the generated config")
}
