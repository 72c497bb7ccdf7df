package gi

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(32), cfg.GridSize)
	assert.Equal(t, 4, cfg.Cascades)
	assert.Equal(t, 8, cfg.PropagationSteps)
	assert.Equal(t, []float32{1.0, 0.65, 0.4, 0.25}, cfg.CascadeScales)
}

func TestDefaultCascadeScalesStrictlyDecrease(t *testing.T) {
	assert.Equal(t, float32(1), DefaultCascadeScales[0])
	for i := 1; i < len(DefaultCascadeScales); i++ {
		assert.Less(t, DefaultCascadeScales[i], DefaultCascadeScales[i-1])
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero grid", func(c *Config) { c.GridSize = 0 }},
		{"scale count", func(c *Config) { c.CascadeScales = c.CascadeScales[:2] }},
		{"first scale", func(c *Config) { c.CascadeScales[0] = 0.9 }},
		{"increasing scales", func(c *Config) { c.CascadeScales[2] = 0.7 }},
		{"no steps", func(c *Config) { c.PropagationSteps = 0 }},
		{"negative attenuation", func(c *Config) { c.IndirectAttenuation = -1 }},
		{"negative tolerance", func(c *Config) { c.GridChangeTolerance = -0.1 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"backend", func(c *Config) { c.Backend = "vulkan" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateGridSizeSentinel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GridSize = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidGridSize)
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("indirect_attenuation = 2.5\ngrid_size = 16\n"))
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), cfg.IndirectAttenuation)
	assert.Equal(t, uint32(16), cfg.GridSize)
	assert.Equal(t, 8, cfg.PropagationSteps)
	assert.Equal(t, "cpu", cfg.Backend)
	assert.False(t, cfg.ForceSoftware)

	cfg, err = ParseConfig([]byte("backend = \"wgpu\"\nforce_software = true\n"))
	require.NoError(t, err)
	assert.Equal(t, "wgpu", cfg.Backend)
	assert.True(t, cfg.ForceSoftware)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	_, err := ParseConfig([]byte("cascades = 3\n"))
	assert.ErrorIs(t, err, ErrInvalidCascades)

	_, err = ParseConfig([]byte("grid_size = \"big\""))
	assert.Error(t, err)
}

func TestSaveLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gi.toml")
	cfg := DefaultConfig()
	cfg.IndirectAttenuation = 0.5
	cfg.GridChangeTolerance = 0.001
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestWatchConfigDeliversReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gi.toml")
	require.NoError(t, os.WriteFile(path, []byte("indirect_attenuation = 1.0\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := WatchConfig(ctx, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("indirect_attenuation = 3.0\n"), 0o644))

	// A truncating write can surface as several events; wait for the final content.
	deadline := time.After(5 * time.Second)
	for received := false; !received; {
		select {
		case cfg := <-updates:
			received = cfg.IndirectAttenuation == 3.0
		case <-deadline:
			t.Fatal("no config update received")
		}
	}

	cancel()
	for range updates {
	}
}

func TestTypeHelpers(t *testing.T) {
	assert.True(t, TypeLayeredLpvG.Layered())
	assert.True(t, TypeLayeredLpvG.Geometry())
	assert.False(t, TypeLpv.Layered())
	assert.True(t, TypeLpvG.Geometry())

	for ty := TypeNone; ty <= TypeLayeredLpvG; ty++ {
		parsed, ok := ParseType(ty.String())
		require.True(t, ok)
		assert.Equal(t, ty, parsed)
	}
	_, ok := ParseType("VCT")
	assert.False(t, ok)
}
