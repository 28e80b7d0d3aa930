package commands

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/viant/sqlite-dbscan/store"
)

func newDatasetsCmd() *cobra.Command {
	var remove, history string
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List stored datasets and their fits",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()
			out := cmd.OutOrStdout()

			db, st, err := sess.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if history != "" {
				events, err := st.FitHistory(ctx, history)
				if err != nil {
					return err
				}
				for _, e := range events {
					fmt.Fprintf(out, "%4d  %-7s clusters=%-4d eps=%v min_pts=%d metric=%s  %s\n",
						e.Seq, e.Op, e.Clusters, e.Eps, e.MinPts, e.Metric, e.CreatedAt.Format(time.RFC3339))
				}
				return nil
			}
			if remove != "" {
				if err := st.DeleteDataset(ctx, remove); err != nil {
					return err
				}
				fmt.Fprintln(out, pterm.Yellow(fmt.Sprintf("Dataset %q deleted", remove)))
				return nil
			}

			list, err := st.Datasets(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(out, pterm.Gray("No datasets stored"))
				return nil
			}
			for _, d := range list {
				line := fmt.Sprintf("%-20s points=%-6d dim=%-3d", d.ID, d.Size, d.Dimension)
				fit, err := st.LoadFit(ctx, d.ID)
				switch {
				case errors.Is(err, store.ErrNotFitted):
					line += pterm.Gray(" not fitted")
				case err != nil:
					return err
				default:
					line += pterm.Green(fmt.Sprintf(" clusters=%d noise=%d", fit.Result.Clusters, len(fit.Result.Noise()))) +
						pterm.Gray(fmt.Sprintf(" eps=%v min_pts=%d metric=%s", fit.Eps, fit.MinPts, fit.Metric))
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "Show the fit log of the dataset with this id")
	cmd.Flags().StringVar(&remove, "delete", "", "Delete the dataset with this id instead of listing")
	return cmd
}
