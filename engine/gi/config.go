package gi

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the tunable state of the LPV pipeline.
// It is loaded from TOML and must pass Validate before any pipeline is built from it.
type Config struct {
	// GridSize is the number of cells along each grid axis.
	GridSize uint32 `toml:"grid_size"`

	// Cascades is the number of cascades used by the layered variants.
	Cascades int `toml:"cascades"`

	// PropagationSteps is the number of propagation iterations per cascade.
	PropagationSteps int `toml:"propagation_steps"`

	// CascadeScales holds one strictly decreasing scale per cascade, the first being 1.
	CascadeScales []float32 `toml:"cascade_scales"`

	// IndirectAttenuation scales the resolved indirect radiance.
	IndirectAttenuation float32 `toml:"indirect_attenuation"`

	// ForwardBias moves each grid along the camera direction, as a fraction of the grid extent.
	ForwardBias float32 `toml:"forward_bias"`

	// GridChangeTolerance is the per-component tolerance used when deciding whether the
	// bounding box or camera moved. Zero means exact comparison.
	GridChangeTolerance float32 `toml:"grid_change_tolerance"`

	// Workers is the number of goroutines used to execute independent passes.
	Workers int `toml:"workers"`

	// Backend names the GPU backend: "cpu" or "wgpu".
	Backend string `toml:"backend"`

	// ForceSoftware asks the wgpu backend for a fallback (software) adapter.
	ForceSoftware bool `toml:"force_software"`
}

// DefaultConfig returns the configuration used when no file is provided.
//
// Returns:
//   - Config: the default configuration
func DefaultConfig() Config {
	return Config{
		GridSize:            LpvGridSize,
		Cascades:            LpvMaxCascadesCount,
		PropagationSteps:    LpvMaxPropagationSteps,
		CascadeScales:       append([]float32(nil), DefaultCascadeScales[:]...),
		IndirectAttenuation: 1.0,
		ForwardBias:         0.25,
		GridChangeTolerance: 0,
		Workers:             4,
		Backend:             "cpu",
	}
}

var (
	// ErrInvalidGridSize is returned when the grid has no cells.
	ErrInvalidGridSize = errors.New("gi: grid size must be greater than zero")

	// ErrInvalidCascades is returned when the cascade count and scales disagree.
	ErrInvalidCascades = errors.New("gi: cascade scales must match the cascade count")
)

// Validate checks the configuration for values the pipeline cannot run with.
//
// Returns:
//   - error: nil if the configuration is usable
func (c Config) Validate() error {
	if c.GridSize == 0 {
		return ErrInvalidGridSize
	}
	if c.Cascades <= 0 || len(c.CascadeScales) != c.Cascades {
		return fmt.Errorf("%w: %d cascades, %d scales", ErrInvalidCascades, c.Cascades, len(c.CascadeScales))
	}
	if c.CascadeScales[0] != 1 {
		return fmt.Errorf("gi: first cascade scale must be 1, got %v", c.CascadeScales[0])
	}
	for i := 1; i < len(c.CascadeScales); i++ {
		s := c.CascadeScales[i]
		if s <= 0 || s >= c.CascadeScales[i-1] {
			return fmt.Errorf("gi: cascade scales must be strictly decreasing and positive, got %v", c.CascadeScales)
		}
	}
	if c.PropagationSteps <= 0 {
		return fmt.Errorf("gi: propagation steps must be greater than zero, got %d", c.PropagationSteps)
	}
	if c.IndirectAttenuation < 0 {
		return fmt.Errorf("gi: indirect attenuation must not be negative, got %v", c.IndirectAttenuation)
	}
	if c.GridChangeTolerance < 0 {
		return fmt.Errorf("gi: grid change tolerance must not be negative, got %v", c.GridChangeTolerance)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("gi: workers must be greater than zero, got %d", c.Workers)
	}
	switch c.Backend {
	case "cpu", "wgpu":
	default:
		return fmt.Errorf("gi: unknown backend %q", c.Backend)
	}
	return nil
}

// ParseConfig decodes TOML on top of the defaults, so a file only needs the keys it changes.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the decoded, validated configuration
//   - error: a decode or validation error
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("gi: failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and validates a TOML configuration file.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the loaded configuration
//   - error: a read, decode or validation error
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("gi: failed to read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// SaveConfig writes the configuration as TOML.
//
// Parameters:
//   - path: the destination file
//   - cfg: the configuration to write
//
// Returns:
//   - error: an encode or write error
func SaveConfig(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("gi: failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("gi: failed to write config %s: %w", path, err)
	}
	return nil
}
