package commands

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/viant/sqlite-dbscan/dataset"
	"github.com/viant/sqlite-dbscan/dbscan"
	"go.uber.org/zap"
)

type fitFlags struct {
	input   string
	dataset string
	output  string
	labels  bool
}

func newFitCmd() *cobra.Command {
	var flags fitFlags
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Load a CSV or JSON file, store it and cluster it",
		Long: `Reads feature rows from --input, optionally holds out a test split, stores the
training rows as a dataset and clusters them. Held-out rows are classified
against the fresh clustering.`,
		Example: `  dbscan fit --input points.csv --eps 0.5 --min-pts 2
  dbscan fit --input iris.json --supervised --test-size 0.3 --seed 7 --output labels.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "CSV or JSON file with one row per point")
	cmd.Flags().StringVar(&flags.dataset, "dataset", "", "Dataset id (default: input file name without extension)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write training rows with their labels to this CSV file")
	cmd.Flags().BoolVar(&flags.labels, "labels", false, "Print the label of every training point")
	cmd.Flags().Float64("eps", 0, "Neighbourhood radius")
	cmd.Flags().Int("min-pts", 0, "Minimum neighbourhood size of a core point, self included")
	cmd.Flags().String("metric", "", "Distance metric: euclidean or cosine")
	cmd.Flags().Float64("test-size", 0, "Fraction of rows held out for prediction (0 keeps all rows)")
	cmd.Flags().Uint64("seed", 0, "Seed for the train/test shuffle")
	cmd.Flags().Bool("supervised", false, "Treat the last column as a target, not a feature")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runFit(cmd *cobra.Command, flags fitFlags) error {
	ctx := cmd.Context()
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()
	cfg := sess.cfg
	out := cmd.OutOrStdout()

	frame, err := dataset.ReadFile(flags.input)
	if err != nil {
		return err
	}
	x, y := dataset.Extract(frame, cfg.Dataset.Supervised)
	columns := frame.Columns
	if cfg.Dataset.Supervised && len(columns) > 0 {
		columns = columns[:len(columns)-1]
	}

	split := &dataset.Split{XTrain: x, YTrain: y}
	if cfg.Dataset.TestSize > 0 && len(x) > 1 {
		seed := cfg.Dataset.Seed
		split, err = dataset.TrainTestSplit(x, y, cfg.Dataset.TestSize, rand.New(rand.NewPCG(seed, seed)))
		if err != nil {
			return err
		}
	}
	sess.logger.Info("dataset loaded",
		zap.String("input", flags.input),
		zap.Int("rows", len(x)),
		zap.Int("train", len(split.XTrain)),
		zap.Int("test", len(split.XTest)))

	id := flags.dataset
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(flags.input), filepath.Ext(flags.input))
	}

	db, st, err := sess.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	opts, err := cfg.ClusterOptions()
	if err != nil {
		return err
	}
	opts = append(opts, dbscan.WithLogger(sess.logger))
	c, err := dbscan.New(cfg.Cluster.Eps, cfg.Cluster.MinPts, opts...)
	if err != nil {
		return err
	}
	started := time.Now()
	res, err := st.PutFitted(ctx, id, split.XTrain, c)
	if err != nil {
		return errors.Wrapf(err, "store dataset %q", id)
	}

	writeSummary(out, id, c, res, time.Since(started))
	if flags.labels {
		for i, l := range res.Labels {
			fmt.Fprintf(out, "  %4d  %-24s %s\n", i, formatPoint(split.XTrain[i]), colorLabel(l))
		}
	}

	if len(split.XTest) > 0 {
		predicted, err := c.PredictBatch(ctx, split.XTest)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, pterm.LightCyan(fmt.Sprintf("Predictions for %d held-out points:", len(predicted))))
		for i, l := range predicted {
			line := fmt.Sprintf("  %-24s %s", formatPoint(split.XTest[i]), colorLabel(l))
			if len(split.YTest) > i {
				line += pterm.Gray(fmt.Sprintf("  target=%s", formatPoint(split.YTest[i])))
			}
			fmt.Fprintln(out, line)
		}
	}

	if flags.output != "" {
		if err := writeLabels(flags.output, columns, split.XTrain, res.Labels); err != nil {
			return err
		}
		fmt.Fprintln(out, pterm.Green("Labels written to "+flags.output))
	}
	return nil
}

func writeSummary(w io.Writer, id string, c *dbscan.Clusterer, res *dbscan.Result, elapsed time.Duration) {
	fmt.Fprintln(w, pterm.Green(fmt.Sprintf("Dataset %q clustered: %d clusters, %d noise points of %d",
		id, res.Clusters, len(res.Noise()), len(res.Labels))))
	fmt.Fprintln(w, pterm.Gray(fmt.Sprintf("  eps=%v min_pts=%d metric=%s elapsed=%s",
		c.Eps(), c.MinPts(), c.Metric(), elapsed.Round(time.Millisecond))))
	for k, size := range res.Sizes() {
		fmt.Fprintf(w, "  cluster %s: %d points\n", pterm.Yellow(strconv.Itoa(k+1)), size)
	}
}

func writeLabels(path string, columns []string, points [][]float64, labels []dbscan.Label) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	header := append(append([]string{}, columns...), "label")
	rows := make([][]string, len(points))
	for i, p := range points {
		row := make([]string, 0, len(p)+1)
		for _, v := range p {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rows[i] = append(row, labels[i].String())
	}
	if err := dataset.WriteCSV(file, header, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func formatPoint(p []float64) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func colorLabel(l dbscan.Label) string {
	if l.IsNoise() {
		return pterm.Gray(l.String())
	}
	return pterm.Green("cluster " + l.String())
}
