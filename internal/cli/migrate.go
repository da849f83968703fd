package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	intdb "settlement/internal/db"
)

var errRedisRequired = errors.New("REDIS_ADDR is required for the worker")

var printSchema bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the settlement tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if printSchema {
			for _, stmt := range intdb.SchemaStatements(intdb.Dialect(dialectFlag)) {
				fmt.Fprintln(cmd.OutOrStdout(), stmt+";")
			}
			return nil
		}
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		if err := intdb.Migrate(cmd.Context(), a.db, a.dialect); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.dialect)
		return nil
	},
}

var dialectFlag string

func init() {
	migrateCmd.Flags().BoolVar(&printSchema, "print", false, "Print the DDL instead of applying it")
	migrateCmd.Flags().StringVar(&dialectFlag, "dialect", string(intdb.DialectSQLite), "Dialect used with --print (sqlite or mysql)")
}
