package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/batchload/internal/config"
	"github.com/rshade/batchload/internal/logging"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestNew_Defaults(t *testing.T) {
	cfg := config.New()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 100, cfg.Loader.BatchSize)
	assert.Equal(t, 0, cfg.Loader.Prefetch)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Output.Format)
}

func TestLoad(t *testing.T) {
	path := writeOverlay(t, `
database:
  driver: mysql
  dsn: user:pw@tcp(localhost:3306)/music
  conn_max_lifetime: 5m
loader:
  batch_size: 25
plan:
  primary:
    name: artist
    id_column: id
    key_query: SELECT id, name FROM artist
    row_query: SELECT * FROM artist WHERE id IN (:ids)
    order_by: [name, "id:desc"]
  children:
    - name: album
      id_column: id
      parent_column: artist_id
      query: SELECT * FROM album WHERE artist_id IN (:ids)
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "5m0s", cfg.Database.ConnMaxLifetime.String())
	assert.Equal(t, 4, cfg.Database.MaxOpenConns, "defaults survive for absent fields")
	assert.Equal(t, 25, cfg.Loader.BatchSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, []string{"name", "id:desc"}, cfg.Plan.Primary.OrderBy)
	require.Len(t, cfg.Plan.Children, 1)
	assert.Equal(t, "artist_id", cfg.Plan.Children[0].ParentColumn)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = config.Load(writeOverlay(t, "loader:\n  batchsize: 3\n"))
	require.Error(t, err, "unknown fields are rejected")
	assert.Contains(t, err.Error(), "batchsize")
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := config.Load(writeOverlay(t, ""))
	require.NoError(t, err)
	assert.Equal(t, config.New(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "plan.yaml")
	want := config.Sample("sqlite", "music.db")
	require.NoError(t, want.Save(path))

	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestApplyEnv(t *testing.T) {
	cfg := config.New()
	err := cfg.ApplyEnv(envLookup(map[string]string{
		config.EnvDSN:       "env.db",
		config.EnvDriver:    "pgx",
		config.EnvBatchSize: "7",
		config.EnvPrefetch:  "3",
		config.EnvLogLevel:  "debug",
		config.EnvLogFormat: "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env.db", cfg.Database.DSN)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 7, cfg.Loader.BatchSize)
	assert.Equal(t, 3, cfg.Loader.Prefetch)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestApplyEnv_InvalidNumbers(t *testing.T) {
	cfg := config.New()
	err := cfg.ApplyEnv(envLookup(map[string]string{
		config.EnvBatchSize: "ten",
		config.EnvPrefetch:  "-x",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvBatchSize)
	assert.Contains(t, err.Error(), config.EnvPrefetch)
	assert.Equal(t, 100, cfg.Loader.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr []string
	}{
		{
			name:   "sample is valid",
			mutate: func(*config.Config) {},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *config.Config) { c.Database.Driver = "oracle" },
			wantErr: []string{"database.driver"},
		},
		{
			name:    "missing dsn",
			mutate:  func(c *config.Config) { c.Database.DSN = "" },
			wantErr: []string{"database.dsn"},
		},
		{
			name: "bad loader",
			mutate: func(c *config.Config) {
				c.Loader.BatchSize = 0
				c.Loader.Prefetch = -1
			},
			wantErr: []string{"loader.batch_size", "loader.prefetch"},
		},
		{
			name:    "bad output",
			mutate:  func(c *config.Config) { c.Output.Format = "xml" },
			wantErr: []string{"output.format"},
		},
		{
			name:    "bad log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "logfmt" },
			wantErr: []string{"logging.format"},
		},
		{
			name: "primary missing fields",
			mutate: func(c *config.Config) {
				c.Plan.Primary = config.PrimaryConfig{}
			},
			wantErr: []string{"id_column", "key_query", "row_query", "order_by"},
		},
		{
			name:    "bad sort order",
			mutate:  func(c *config.Config) { c.Plan.Primary.OrderBy = []string{"name:sideways"} },
			wantErr: []string{"plan.primary.order_by"},
		},
		{
			name:    "bad label",
			mutate:  func(c *config.Config) { c.Plan.Primary.Label = "{{.name" },
			wantErr: []string{"plan.primary.label"},
		},
		{
			name: "duplicate child",
			mutate: func(c *config.Config) {
				c.Plan.Children = append(c.Plan.Children, c.Plan.Children[0])
			},
			wantErr: []string{"duplicate child name"},
		},
		{
			name: "nested child missing parent column",
			mutate: func(c *config.Config) {
				c.Plan.Children[0].Children[0].ParentColumn = ""
			},
			wantErr: []string{"(song).parent_column"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Sample("sqlite", "music.db")
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestToLoggingConfig(t *testing.T) {
	lc := config.LoggingConfig{Level: "debug", Format: "json"}
	got := lc.ToLoggingConfig()
	assert.Equal(t, logging.OutputStderr, got.Output)
	assert.Equal(t, "debug", got.Level)

	lc.File = "/tmp/batchload.log"
	got = lc.ToLoggingConfig()
	assert.Equal(t, logging.OutputFile, got.Output)
	assert.Equal(t, "/tmp/batchload.log", got.File)
}

func TestDatabaseOptions(t *testing.T) {
	cfg := config.Sample("pgx", "postgres://db")
	opts := cfg.Database.Options()
	assert.Equal(t, "pgx", opts.Driver)
	assert.Equal(t, "postgres://db", opts.DSN)
	assert.Equal(t, 4, opts.MaxOpenConns)
}
