package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/vadiminshakov/trendbot/internal/storage/ledger"
)

var (
	ledgerDir        string
	ledgerUnresolved bool
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Print the order ledger audit log as JSON lines",
	Long: `Read the ledger WAL written by "trendbot run" and print it as JSON lines.

With --unresolved only the last state of entries without a confirmed stop-loss is printed.

Example:
  trendbot ledger --dir /var/lib/trendbot --unresolved`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sink, err := ledger.NewWALSink(ledgerDir)
		if err != nil {
			return err
		}
		defer sink.Close()

		records, err := sink.Records()
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if ledgerUnresolved {
			for _, e := range ledger.Unresolved(records) {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		}
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)

	ledgerCmd.Flags().StringVarP(&ledgerDir, "dir", "d", "", "ledger WAL directory (ledger_wal_dir in the config) (required)")
	ledgerCmd.Flags().BoolVar(&ledgerUnresolved, "unresolved", false, "only entries without a confirmed stop-loss")
	_ = ledgerCmd.MarkFlagRequired("dir")
}
