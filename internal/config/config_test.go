package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tabsh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, ""), nil)
	require.NoError(t, err)

	assert.Equal(t, "tabsh> ", cfg.Prompt)
	assert.Equal(t, 1024, cfg.HistoryLimit)
	assert.Equal(t, 10, cfg.HeadRows)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, []int{25, 75}, cfg.Describe.Percentiles)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
head_rows: 5
describe:
  percentiles: [10, 50, 90]
log:
  level: debug
metrics:
  addr: ":9100"
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.HeadRows)
	assert.Equal(t, []int{10, 50, 90}, cfg.Describe.Percentiles)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "head_rows: 5\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("head-rows", 10, "")
	flags.String("log-level", "warn", "")
	require.NoError(t, flags.Parse([]string{"--head-rows=7", "--log-level=error"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.HeadRows)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing explicit file", func(t *testing.T) {
		t.Parallel()

		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
		assert.Error(t, err)
	})

	t.Run("invalid head rows", func(t *testing.T) {
		t.Parallel()

		_, err := Load(writeConfig(t, "head_rows: 0\n"), nil)
		assert.ErrorContains(t, err, "head_rows")
	})

	t.Run("percentile out of range", func(t *testing.T) {
		t.Parallel()

		_, err := Load(writeConfig(t, "describe:\n  percentiles: [101]\n"), nil)
		assert.ErrorContains(t, err, "percentiles")
	})
}
