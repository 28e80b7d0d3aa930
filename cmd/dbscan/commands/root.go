package commands

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/viant/sqlite-dbscan/engine"
	"github.com/viant/sqlite-dbscan/internal/config"
	"github.com/viant/sqlite-dbscan/internal/logging"
	"github.com/viant/sqlite-dbscan/store"
	"go.uber.org/zap"
)

// flagKeys maps command flags onto config keys so that an explicit flag
// overrides env and file settings.
var flagKeys = map[string]string{
	"eps":        "cluster.eps",
	"min-pts":    "cluster.min_pts",
	"metric":     "cluster.metric",
	"db":         "database.path",
	"test-size":  "dataset.test_size",
	"seed":       "dataset.seed",
	"supervised": "dataset.supervised",
	"json":       "log.json",
	"verbose":    "log.verbosity",
}

// NewRootCmd builds the dbscan command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dbscan",
		Short: "Density-based clustering over SQLite-stored datasets",
		Long: `dbscan clusters point datasets with DBSCAN and keeps datasets, labels and
fit parameters in a SQLite database.

Examples:
  dbscan fit --input points.csv --eps 0.5 --min-pts 2
  dbscan predict --dataset points --point 1.05,1.05
  dbscan admin "fit points eps=0.5 min_pts=2"
  dbscan datasets`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Config file (default ./dbscan.{toml,yaml,json})")
	root.PersistentFlags().String("db", "", "SQLite database path")
	root.PersistentFlags().Bool("json", false, "Emit JSON logs")
	root.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")

	root.AddCommand(newFitCmd(), newPredictCmd(), newDatasetsCmd(), newAdminCmd(), newVersionCmd())
	return root
}

type session struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newSession(cmd *cobra.Command) (*session, error) {
	path, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(path)
	if err != nil {
		return nil, err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "bind --%s", name)
			}
		}
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.JSON, cfg.Log.Verbosity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize logger")
	}
	return &session{cfg: cfg, logger: logger}, nil
}

func (s *session) close() { _ = s.logger.Sync() }

func (s *session) openStore(ctx context.Context) (*sql.DB, *store.SQLiteStore, error) {
	db, err := engine.Open(dsn(s.cfg.Database.Path))
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	s.logger.Debug("store opened", zap.String("path", s.cfg.Database.Path))
	return db, st, nil
}

// dsn enables WAL and a busy timeout for file databases; the admin virtual
// table runs store queries on a second connection while its own is open.
func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
