/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datadirector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 30*time.Second, cfg.Director.FlushInterval.Std())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
backend: redis
redis:
  address: cache:6379
  db: 2
director:
  flushInterval: 10s
  negativeCacheTTL: 0s
  serializeBackend: true
log:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "cache:6379", cfg.Redis.Address)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "datadirector", cfg.Redis.Prefix, "unset fields keep defaults")
	assert.Equal(t, 10*time.Second, cfg.Director.FlushInterval.Std())
	assert.Equal(t, time.Duration(0), cfg.Director.NegativeCacheTTL.Std())
	assert.True(t, cfg.Director.SerializeBackend)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "backend: redis\n")
	t.Setenv("DATADIRECTOR_BACKEND", "dynamodb")
	t.Setenv("DATADIRECTOR_DYNAMODB_REGION", "eu-west-1")
	t.Setenv("DATADIRECTOR_DYNAMODB_TABLE", "alicia")
	t.Setenv("DATADIRECTOR_FLUSH_INTERVAL", "1m")
	t.Setenv("DATADIRECTOR_SERIALIZE_BACKEND", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendDynamoDB, cfg.Backend)
	assert.Equal(t, "eu-west-1", cfg.DynamoDB.Region)
	assert.Equal(t, "alicia", cfg.DynamoDB.Table)
	assert.Equal(t, time.Minute, cfg.Director.FlushInterval.Std())
	assert.True(t, cfg.Director.SerializeBackend)
}

func TestLoadBadEnvironmentValues(t *testing.T) {
	t.Setenv("DATADIRECTOR_FLUSH_INTERVAL", "soon")
	t.Setenv("DATADIRECTOR_LOG_PRETTY", "maybe")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATADIRECTOR_FLUSH_INTERVAL")
	assert.Contains(t, err.Error(), "DATADIRECTOR_LOG_PRETTY")
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "backend: file\nflush: 3s\n"))
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "director:\n  flushInterval: often\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate  func(*Config)
		expErrs []string
	}{
		"defaults are valid": {
			mutate: func(*Config) {},
		},
		"unknown backend": {
			mutate:  func(c *Config) { c.Backend = "postgres" },
			expErrs: []string{`backend "postgres"`},
		},
		"file without root": {
			mutate:  func(c *Config) { c.File.Root = "" },
			expErrs: []string{"file.root is required"},
		},
		"dynamodb incomplete": {
			mutate: func(c *Config) {
				c.Backend = BackendDynamoDB
				c.DynamoDB.AccessKey = "key"
			},
			expErrs: []string{
				"dynamodb.region is required",
				"dynamodb.table is required",
				"must be set together",
			},
		},
		"director timings": {
			mutate: func(c *Config) {
				c.Director.FlushInterval = 0
				c.Director.NegativeCacheTTL = Duration(-time.Second)
			},
			expErrs: []string{
				"director.flushInterval must be positive",
				"director.negativeCacheTTL must not be negative",
			},
		},
		"log level": {
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			expErrs: []string{"log.level"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if len(tc.expErrs) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, exp := range tc.expErrs {
				assert.Contains(t, err.Error(), exp)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn"}.Logger(&buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("kind", "horse").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"kind":"horse"`)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}
