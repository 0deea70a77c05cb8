// Package config loads and validates batchload run configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/batchload/pkg/batch"
	"github.com/rshade/batchload/pkg/sqlexec"
)

// Environment variables that override file settings.
const (
	EnvDSN       = "BATCHLOAD_DSN"
	EnvDriver    = "BATCHLOAD_DRIVER"
	EnvBatchSize = "BATCHLOAD_BATCH_SIZE"
	EnvPrefetch  = "BATCHLOAD_PREFETCH"
	EnvLogLevel  = "BATCHLOAD_LOG_LEVEL"
	EnvLogFormat = "BATCHLOAD_LOG_FORMAT"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

const (
	defaultMaxOpenConns = 4
	outputTypeFile      = "file"
)

// Config is the complete configuration of a run.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Loader   LoaderConfig   `yaml:"loader"`
	Logging  LoggingConfig  `yaml:"logging"`
	Output   OutputConfig   `yaml:"output"`
	Plan     PlanConfig     `yaml:"plan"`
}

// DatabaseConfig selects the database/sql driver and connection pool.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty"`
}

// Options converts the section into sqlexec options.
func (d DatabaseConfig) Options() sqlexec.Options {
	return sqlexec.Options{
		Driver:          d.Driver,
		DSN:             d.DSN,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	}
}

// LoaderConfig tunes batching.
type LoaderConfig struct {
	BatchSize int `yaml:"batch_size"`
	Prefetch  int `yaml:"prefetch"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// OutputConfig selects the record renderer. An empty format picks text on a
// terminal and json otherwise.
type OutputConfig struct {
	Format string `yaml:"format,omitempty"`
}

// PlanConfig declares the primary table and its dependent tables.
type PlanConfig struct {
	Primary  PrimaryConfig `yaml:"primary"`
	Children []ChildConfig `yaml:"children,omitempty"`
}

// PrimaryConfig declares the outer table.
type PrimaryConfig struct {
	Name     string   `yaml:"name"`
	IDColumn string   `yaml:"id_column"`
	KeyQuery string   `yaml:"key_query"`
	RowQuery string   `yaml:"row_query"`
	OrderBy  []string `yaml:"order_by"`
	Label    string   `yaml:"label,omitempty"`
}

// ChildConfig declares a dependent table.
type ChildConfig struct {
	Name         string        `yaml:"name"`
	IDColumn     string        `yaml:"id_column"`
	ParentColumn string        `yaml:"parent_column"`
	Query        string        `yaml:"query"`
	OrderBy      []string      `yaml:"order_by,omitempty"`
	Label        string        `yaml:"label,omitempty"`
	Children     []ChildConfig `yaml:"children,omitempty"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       sqlexec.DriverSQLite,
			MaxOpenConns: defaultMaxOpenConns,
		},
		Loader: LoaderConfig{
			BatchSize: batch.DefaultBatchSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path on top of the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := New()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err = os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDSN); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := lookup(EnvDriver); ok && v != "" {
		c.Database.Driver = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = v
	}

	var errs []error
	if v, ok := lookup(EnvBatchSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvBatchSize, err))
		} else {
			c.Loader.BatchSize = n
		}
	}
	if v, ok := lookup(EnvPrefetch); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvPrefetch, err))
		} else {
			c.Loader.Prefetch = n
		}
	}
	return errors.Join(errs...)
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if _, err := sqlexec.DialectFor(c.Database.Driver); err != nil {
		errs = append(errs, fmt.Errorf("database.driver: %w", err))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Database.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("database.max_open_conns must be >= 0, got %d", c.Database.MaxOpenConns))
	}

	if c.Loader.BatchSize < batch.MinBatchSize {
		errs = append(errs, fmt.Errorf("loader.batch_size must be >= %d, got %d",
			batch.MinBatchSize, c.Loader.BatchSize))
	}
	if c.Loader.Prefetch < 0 {
		errs = append(errs, fmt.Errorf("loader.prefetch must be >= 0, got %d", c.Loader.Prefetch))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	switch strings.ToLower(c.Output.Format) {
	case "", OutputText, OutputJSON:
	default:
		errs = append(errs, fmt.Errorf("output.format must be text or json, got %q", c.Output.Format))
	}

	errs = append(errs, c.Plan.validate()...)
	return errors.Join(errs...)
}

func (p PlanConfig) validate() []error {
	var errs []error
	pc := p.Primary
	prefix := "plan.primary"

	if pc.IDColumn == "" {
		errs = append(errs, fmt.Errorf("%s.id_column is required", prefix))
	}
	if pc.KeyQuery == "" {
		errs = append(errs, fmt.Errorf("%s.key_query is required", prefix))
	}
	if pc.RowQuery == "" {
		errs = append(errs, fmt.Errorf("%s.row_query is required", prefix))
	}
	if len(pc.OrderBy) == 0 {
		errs = append(errs, fmt.Errorf("%s.order_by needs at least one column", prefix))
	}
	errs = append(errs, validateOrderBy(prefix, pc.OrderBy)...)
	errs = append(errs, validateLabel(prefix, pc.Label)...)
	errs = append(errs, validateChildren(prefix, p.Children)...)
	return errs
}

func validateChildren(parent string, children []ChildConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(children))

	for i, ch := range children {
		prefix := fmt.Sprintf("%s.children[%d]", parent, i)
		if ch.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if seen[ch.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate child name %q", prefix, ch.Name))
			}
			seen[ch.Name] = true
			prefix = fmt.Sprintf("%s(%s)", prefix, ch.Name)
		}
		if ch.IDColumn == "" {
			errs = append(errs, fmt.Errorf("%s.id_column is required", prefix))
		}
		if ch.ParentColumn == "" {
			errs = append(errs, fmt.Errorf("%s.parent_column is required", prefix))
		}
		if ch.Query == "" {
			errs = append(errs, fmt.Errorf("%s.query is required", prefix))
		}
		errs = append(errs, validateOrderBy(prefix, ch.OrderBy)...)
		errs = append(errs, validateLabel(prefix, ch.Label)...)
		errs = append(errs, validateChildren(prefix, ch.Children)...)
	}
	return errs
}

func validateOrderBy(prefix string, exprs []string) []error {
	var errs []error
	for _, expr := range exprs {
		if _, err := batch.ParseSortKey(expr); err != nil {
			errs = append(errs, fmt.Errorf("%s.order_by: %w", prefix, err))
		}
	}
	return errs
}

func validateLabel(prefix, label string) []error {
	if label == "" {
		return nil
	}
	if _, err := template.New(prefix).Parse(label); err != nil {
		return []error{fmt.Errorf("%s.label: %w", prefix, err)}
	}
	return nil
}
