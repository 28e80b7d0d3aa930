package commands

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/viant/sqlite-dbscan/dbscanadmin"
)

func newAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "admin <operation>",
		Short: "Run an operation through the dbscan_admin virtual table",
		Long: `Executes SELECT op FROM dbscan_admin WHERE op MATCH <operation> and prints the
result rows. Operations:
  fit <dataset> eps=<f> min_pts=<n> [metric=<m>]
  predict <dataset> <x,y,...>`,
		Example: `  dbscan admin "fit points eps=0.5 min_pts=2"
  dbscan admin "predict points 1.05,1.05"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			db, st, err := sess.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := dbscanadmin.Register(db, st, sess.logger); err != nil {
				return err
			}
			// Drop pooled connections opened before the module was registered.
			db.SetMaxIdleConns(0)
			db.SetMaxIdleConns(2)
			if _, err := db.ExecContext(ctx, `CREATE VIRTUAL TABLE IF NOT EXISTS dbscan_admin USING dbscan_admin(op)`); err != nil {
				return errors.Wrap(err, "create dbscan_admin table")
			}

			rows, err := db.QueryContext(ctx, `SELECT op FROM dbscan_admin WHERE op MATCH ?`, strings.Join(args, " "))
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var result string
				if err := rows.Scan(&result); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result)
			}
			return rows.Err()
		},
	}
}
