package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("source", "", "")
	flags.String("db", "", "")
	flags.Int("retries", 0, "")
	flags.Duration("wait", 0, "")
	flags.String("log-format", "", "")
	flags.Bool("verbose", false, "")
	return flags
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sheetsql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, SourceKindFile, cfg.Source.Kind)
	assert.Equal(t, "dummy_data.xlsx", cfg.Source.Path)
	assert.Equal(t, "dummy_data.db", cfg.Store.Path)
	assert.Equal(t, time.Second, cfg.Store.LockTimeout)
	assert.Equal(t, 8, cfg.Retry.Attempts)
	assert.Equal(t, 750*time.Millisecond, cfg.Retry.Delay)
	assert.Equal(t, ":5001", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndFlags(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
source:
  path: /data/intake.xlsx
store:
  path: /data/intake.db
  default_table: applications
retry:
  attempts: 3
server:
  roles:
    admin: ["*"]
    agent: [visa_breakdown, offer_expiry_surge]
`)

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--db", "override.db", "--wait", "2s", "--verbose"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "/data/intake.xlsx", cfg.Source.Path)
	assert.Equal(t, "override.db", cfg.Store.Path)
	assert.Equal(t, "applications", cfg.Store.DefaultTable)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay)
	assert.Equal(t, map[string][]string{
		"admin": {"*"},
		"agent": {"visa_breakdown", "offer_expiry_surge"},
	}, cfg.Server.Roles)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SHEETSQL_STORE__PATH", "/env/store.db")
	t.Setenv("SHEETSQL_RETRY__ATTEMPTS", "5")
	t.Setenv("USE_SHAREPOINT", "true")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--retries", "2"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "/env/store.db", cfg.Store.Path)
	assert.Equal(t, SourceKindS3, cfg.Source.Kind)
	assert.Equal(t, 2, cfg.Retry.Attempts)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "unknown kind", mutate: func(c *Config) { c.Source.Kind = "ftp" }, want: "source.kind"},
		{name: "empty path", mutate: func(c *Config) { c.Source.Path = " " }, want: "source.path"},
		{name: "s3 without key", mutate: func(c *Config) { c.Source.Kind = SourceKindS3; c.Source.S3.Bucket = "b" }, want: "source.s3"},
		{name: "empty store", mutate: func(c *Config) { c.Store.Path = "" }, want: "store.path"},
		{name: "zero attempts", mutate: func(c *Config) { c.Retry.Attempts = 0 }, want: "retry.attempts"},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, want: "log.level"},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, want: "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LogConfig{Level: "warn", Format: LogFormatJSON})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "table", "offers")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"table":"offers"`)

	_, err = NewLogger(&buf, LogConfig{Level: "loud"})
	require.Error(t, err)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
	assert.NotNil(t, GetLogger(context.Background()))
}
