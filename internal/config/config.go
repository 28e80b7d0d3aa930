// Package config loads dbscan command settings from defaults, an optional
// config file and DBSCAN_* environment variables.
package config

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/viant/sqlite-dbscan/dbscan"
	"github.com/viant/sqlite-dbscan/vector"
)

// EnvPrefix is prepended to every environment override, e.g. DBSCAN_CLUSTER_EPS.
const EnvPrefix = "DBSCAN"

// Config is the full command configuration.
type Config struct {
	Cluster  Cluster  `mapstructure:"cluster"`
	Database Database `mapstructure:"database"`
	Dataset  Dataset  `mapstructure:"dataset"`
	Log      Log      `mapstructure:"log"`
}

// Cluster holds the clustering parameters.
type Cluster struct {
	Eps    float64 `mapstructure:"eps"`
	MinPts int     `mapstructure:"min_pts"`
	Metric string  `mapstructure:"metric"`
}

// Database locates the sqlite file that stores datasets and fits.
type Database struct {
	Path string `mapstructure:"path"`
}

// Dataset controls ingestion and the train/test split.
type Dataset struct {
	TestSize   float64 `mapstructure:"test_size"`
	Seed       uint64  `mapstructure:"seed"`
	Supervised bool    `mapstructure:"supervised"`
}

// Log selects the logger format and verbosity.
type Log struct {
	JSON      bool `mapstructure:"json"`
	Verbosity int  `mapstructure:"verbosity"`
}

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cluster.eps", 1.5)
	v.SetDefault("cluster.min_pts", 3)
	v.SetDefault("cluster.metric", string(vector.MetricEuclidean))

	v.SetDefault("database.path", "dbscan.db")

	v.SetDefault("dataset.test_size", 0.0)
	v.SetDefault("dataset.seed", 42)
	v.SetDefault("dataset.supervised", false)

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)
}

// NewViper returns a viper instance with defaults and env binding. When
// path is empty, dbscan.{toml,yaml,json} is looked up in the working
// directory and silently skipped if absent.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
		return v, nil
	}
	v.SetConfigName("dbscan")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "config: read dbscan config")
		}
	}
	return v, nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is NewViper followed by FromViper.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Validate applies the same parameter rules as dbscan.New plus the dataset
// split bounds.
func (c *Config) Validate() error {
	if c.Cluster.Eps <= 0 || math.IsNaN(c.Cluster.Eps) || math.IsInf(c.Cluster.Eps, 0) {
		return errors.Wrapf(dbscan.ErrInvalidParameter, "config: cluster.eps must be a positive finite number, got %v", c.Cluster.Eps)
	}
	if c.Cluster.MinPts <= 0 {
		return errors.Wrapf(dbscan.ErrInvalidParameter, "config: cluster.min_pts must be positive, got %d", c.Cluster.MinPts)
	}
	if _, err := vector.ParseMetric(c.Cluster.Metric); err != nil {
		return errors.Mark(errors.Wrap(err, "config: cluster.metric"), dbscan.ErrInvalidParameter)
	}
	if c.Dataset.TestSize < 0 || c.Dataset.TestSize >= 1 || math.IsNaN(c.Dataset.TestSize) {
		return errors.Newf("config: dataset.test_size must be in [0,1), got %v", c.Dataset.TestSize)
	}
	if c.Database.Path == "" {
		return errors.New("config: database.path is required")
	}
	return nil
}

// ClusterOptions returns the dbscan options implied by the cluster section.
func (c *Config) ClusterOptions() ([]dbscan.Option, error) {
	metric, err := vector.ParseMetric(c.Cluster.Metric)
	if err != nil {
		return nil, err
	}
	return []dbscan.Option{dbscan.WithMetric(metric)}, nil
}
