package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_ENDPOINT", "")
	t.Setenv("PAGE_SIZE", "")
	t.Setenv("HTTP_TIMEOUT", "")
	t.Setenv("STORAGE_TYPE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000/api", cfg.APIEndpoint)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "user.login", cfg.ActorField)
	assert.Equal(t, "number", cfg.SequenceField)
	assert.Equal(t, "repo_id", cfg.RepoField)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("STORAGE_TYPE", "none")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "none", cfg.StorageType)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("PAGE_SIZE", "lots")
	t.Setenv("HTTP_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
}

func TestValidate(t *testing.T) {
	base := Config{APIEndpoint: "http://x", PageSize: 10, HTTPTimeout: time.Second, StorageType: "sqlite"}

	cases := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing endpoint", func(c *Config) { c.APIEndpoint = "" }, "API_ENDPOINT"},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, "PAGE_SIZE"},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }, "HTTP_TIMEOUT"},
		{"unknown storage", func(c *Config) { c.StorageType = "mysql" }, "STORAGE_TYPE"},
		{"postgres without url", func(c *Config) { c.StorageType = "postgres" }, "POSTGRES_URL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}

	assert.NoError(t, base.Validate())
}

func TestColumnOptions(t *testing.T) {
	cfg := Config{ActorField: "author", SequenceField: "num", RepoField: "repo", IssuesCollection: "tickets"}

	opts := cfg.ColumnOptions()
	assert.Equal(t, "author", opts.ActorField)
	assert.Equal(t, "num", opts.SequenceField)
	assert.Equal(t, "repo", opts.RepoField)
	assert.Equal(t, "tickets", opts.IssuesKind)
}
