package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Admin.SessionTTL)
	assert.Equal(t, "file", cfg.Quotes.Backend)
	assert.Equal(t, "data/cotizaciones.json", cfg.Quotes.Path)
	assert.Equal(t, "direct", cfg.Quotes.Delivery)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.False(t, cfg.Temporal.Enabled)
	assert.False(t, cfg.Production())
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FLOW_API_KEY", "k")
	t.Setenv("SESSION_SECRET", "legacy-secret")
	t.Setenv("WC_URL", "https://shop.example")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("QUOTES_DELIVERY", "temporal")
	t.Setenv("NODE_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Flow.APIKey)
	assert.Equal(t, "legacy-secret", cfg.Admin.SessionSecret)
	assert.Equal(t, "https://shop.example", cfg.Woo.Base)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.True(t, cfg.Temporal.Enabled)
	assert.True(t, cfg.Production())
}

func TestLoad_FileAndDotenv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
addr: ":9090"
quotes:
  backend: sqlite
  path: data/quotes.db
flow:
  base_url: https://sandbox.flow.cl/api
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ADMIN_USER=dotenv-admin\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ADMIN_USER") })
	t.Setenv("ADDR", ":7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr, "environment wins over the file")
	assert.Equal(t, "sqlite", cfg.Quotes.Backend)
	assert.Equal(t, "data/quotes.db", cfg.Quotes.Path)
	assert.Equal(t, "https://sandbox.flow.cl/api", cfg.Flow.BaseURL)
	assert.Equal(t, "dotenv-admin", cfg.Admin.User)
}
