package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd *cobra.Command

func init() {
	rootCmd = &cobra.Command{
		Use:   "settlement",
		Short: "Booking settlement service",
		Long: `settlement charges pending bookings, records every gateway attempt on the
transaction ledger and issues invoices, receipts and refunds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(newVersionCmd(version))

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
