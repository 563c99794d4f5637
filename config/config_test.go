package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.EvalHorizon())
	assert.Equal(t, 1.0, cfg.Sweep.BucketSize)
	assert.Equal(t, "UTC", cfg.Sweep.Timezone)
	require.NotNil(t, cfg.Sweep.ReopenOnReverse)
	assert.True(t, *cfg.Sweep.ReopenOnReverse)
	assert.Equal(t, 15, cfg.Sweep.TopN)
	assert.Equal(t, "sqlite", cfg.Feed.Kind)
	assert.Equal(t, "info", cfg.Log.Level)

	grid := cfg.ParameterGrid()
	assert.Equal(t, 3*2*2*2*2, grid.Size())
	sets, err := grid.Expand()
	require.NoError(t, err)
	for _, s := range sets {
		assert.NoError(t, s.Validate())
	}
}

func TestParse_Overrides(t *testing.T) {
	data := []byte(`
sweep:
  timezone: Asia/Tokyo
  reopen_on_reverse: false
grid:
  absorption_window_seconds: [15]
  cooldown_seconds: [0, 60]
feed:
  from: "2024-03-01T00:00:00Z"
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.False(t, *cfg.Sweep.ReopenOnReverse)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())

	g := cfg.ParameterGrid()
	assert.Equal(t, []time.Duration{15 * time.Second}, g.AbsorptionWindow)
	assert.Equal(t, []time.Duration{0, time.Minute}, g.Cooldown)

	from, to, err := cfg.Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), from.UTC())
	assert.True(t, to.IsZero())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("sweep: [unclosed"))
	assert.Error(t, err)

	_, err = Parse([]byte("sweep:\n  timezone: Mars/Olympus\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("feed:\n  to: yesterday\n"))
	assert.Error(t, err)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("ABSORB_DB", ":memory:")
	t.Setenv("ABSORB_SYMBOL", "ETHUSDT")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Parse([]byte("storage:\n  dsn: other.db\n"))
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "ETHUSDT", cfg.Feed.Symbol)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", cfg.Feed.Symbol)
	assert.True(t, cfg.Baseline.Enabled)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sweep:\n  workers: 3\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Sweep.Workers)
}
