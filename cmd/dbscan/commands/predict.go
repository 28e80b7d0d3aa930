package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/viant/sqlite-dbscan/dbscan"
	"github.com/viant/sqlite-dbscan/vector"
)

type predictFlags struct {
	dataset string
	points  []string
	sql     bool
}

func newPredictCmd() *cobra.Command {
	var flags predictFlags
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify points against a stored clustering",
		Long: `Assigns each --point the label of the nearest clustered training point within
eps of the stored fit, or noise when there is none. With --sql the lookup runs
inside SQLite through the dbscan distance functions.`,
		Example: `  dbscan predict --dataset points --point 1.05,1.05 --point 100,100
  dbscan predict --dataset points --point 1.05,1.05 --sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.dataset, "dataset", "", "Dataset id")
	cmd.Flags().StringArrayVarP(&flags.points, "point", "p", nil, "Point as comma separated coordinates (repeatable)")
	cmd.Flags().BoolVar(&flags.sql, "sql", false, "Evaluate the prediction in SQL")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("point")
	return cmd
}

func runPredict(cmd *cobra.Command, flags predictFlags) error {
	ctx := cmd.Context()
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	out := cmd.OutOrStdout()

	points := make([][]float64, len(flags.points))
	for i, text := range flags.points {
		if points[i], err = vector.ParsePoint(text); err != nil {
			return errors.Wrapf(err, "--point %q", text)
		}
	}

	db, st, err := sess.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var labels []dbscan.Label
	if flags.sql {
		for _, p := range points {
			l, err := st.Predict(ctx, flags.dataset, p)
			if err != nil {
				return err
			}
			labels = append(labels, l)
		}
	} else {
		c, err := st.Clusterer(ctx, flags.dataset, dbscan.WithLogger(sess.logger))
		if err != nil {
			return err
		}
		if labels, err = c.PredictBatch(ctx, points); err != nil {
			return err
		}
	}
	for i, l := range labels {
		fmt.Fprintf(out, "%-24s %s\n", formatPoint(points[i]), colorLabel(l))
	}
	return nil
}
