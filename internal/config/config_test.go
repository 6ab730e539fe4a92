package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hbcai/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := config.Load(writeFile(t, "DRY_RUN: true\n"))
	require.NoError(t, err)
	require.True(t, c.DryRun)
	require.Equal(t, "enwiki", c.Site)
	require.Equal(t, "https://en.wikipedia.org/w/", c.SiteURL)
	require.Equal(t, "sqlite", c.Database.Type)
	require.Equal(t, 4, c.Concurrency.Pages)
	require.Equal(t, 2, c.Concurrency.Masks)
	require.Equal(t, 12, c.RecentEditHours)
	require.Equal(t, "pretty", c.LogFormat)
}

func TestLoad_Explicit(t *testing.T) {
	body := `
SITE: testwiki
SITE_URL: https://test.wikipedia.org/w/
DATABASE:
  dsn: /tmp/x.db
CONCURRENCY:
  pages: 8
  masks: 3
  rate: 1.5
METRICS_FILE: /tmp/hbcai.prom
LOG_FORMAT: json
`
	c, err := config.Load(writeFile(t, body))
	require.NoError(t, err)
	require.Equal(t, "testwiki", c.Site)
	require.Equal(t, 8, c.Concurrency.Pages)
	require.Equal(t, 3, c.Concurrency.Masks)
	require.InDelta(t, 1.5, c.Concurrency.Rate, 1e-9)
	require.Equal(t, "/tmp/hbcai.prom", c.MetricsFile)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad db":        "DATABASE:\n  type: mysql\n",
		"bad url":       "SITE_URL: not a url\n",
		"bad format":    "LOG_FORMAT: xml\n",
		"too many":      "CONCURRENCY:\n  pages: 1000\n",
		"negative days": "HISTORY_KEEP_DAYS: -1\n",
	}
	for name, body := range cases {
		_, err := config.Load(writeFile(t, body))
		require.Error(t, err, name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestCredentials(t *testing.T) {
	t.Setenv(config.EnvUsername, "Bot@hbcai")
	t.Setenv(config.EnvPassword, "")
	_, _, ok := config.Credentials()
	require.False(t, ok)

	t.Setenv(config.EnvPassword, "secret")
	u, p, ok := config.Credentials()
	require.True(t, ok)
	require.Equal(t, "Bot@hbcai", u)
	require.Equal(t, "secret", p)
}
