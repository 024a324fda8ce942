package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "release", c.Mode)
	assert.Equal(t, "rentledger.db", c.DB.Path)
	assert.Equal(t, ":8888", c.Server.Addr)
	assert.Equal(t, "1000", c.Ledger.CashAccount)
	assert.Empty(t, c.Kafka.Brokers)
	assert.True(t, c.Metrics.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: debug
db:
  path: /var/lib/rentledger/ledger.db
kafka:
  brokers: ["k1:9092"]
`), 0o644))

	t.Setenv("RENTLEDGER_SERVER_ADDR", ":9999")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Mode)
	assert.Equal(t, "/var/lib/rentledger/ledger.db", c.DB.Path)
	assert.Equal(t, ":9999", c.Server.Addr)
	assert.Equal(t, []string{"k1:9092"}, c.Kafka.Brokers)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RENTLEDGER_KAFKA_BROKERS=a:9092,b:9092\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RENTLEDGER_KAFKA_BROKERS") })

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
}
