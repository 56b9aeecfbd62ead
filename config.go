package mandel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileConfig is the TOML representation of a render configuration.
// Zero fields leave the corresponding Config value untouched.
//
//	width = 1920
//	height = 1080
//	max_iterations = 255
//	workers = 8
//	region = "seahorse-valley"
//	upper_left = [-1.20, 0.35]
//	lower_right = [-1.0, 0.20]
//	output = "mandel.png"
type FileConfig struct {
	Width         int       `toml:"width,omitempty"`
	Height        int       `toml:"height,omitempty"`
	MaxIterations int       `toml:"max_iterations,omitempty"`
	Workers       int       `toml:"workers,omitempty"`
	Region        string    `toml:"region,omitempty"`
	UpperLeft     []float64 `toml:"upper_left,omitempty"`
	LowerRight    []float64 `toml:"lower_right,omitempty"`
	Output        string    `toml:"output,omitempty"`
}

// LoadConfigFile parses the TOML file at path.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return FileConfig{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("parsing %s: unknown keys %v", path, undecoded)
	}
	return fc, nil
}

// Merge returns fc with every non-zero field of override applied on top.
// A region in override discards the corners of fc, so the region takes effect.
func (fc FileConfig) Merge(override FileConfig) FileConfig {
	if override.Width != 0 {
		fc.Width = override.Width
	}
	if override.Height != 0 {
		fc.Height = override.Height
	}
	if override.MaxIterations != 0 {
		fc.MaxIterations = override.MaxIterations
	}
	if override.Workers != 0 {
		fc.Workers = override.Workers
	}
	if override.Region != "" {
		fc.Region, fc.UpperLeft, fc.LowerRight = override.Region, nil, nil
	}
	if override.UpperLeft != nil {
		fc.UpperLeft = override.UpperLeft
	}
	if override.LowerRight != nil {
		fc.LowerRight = override.LowerRight
	}
	if override.Output != "" {
		fc.Output = override.Output
	}
	return fc
}

// Apply overlays fc onto base and validates the result.
// An explicit upper_left/lower_right pair wins over region.
func (fc FileConfig) Apply(base Config) (Config, error) {
	cfg := base
	if fc.Width != 0 {
		cfg.Geometry.Width = fc.Width
	}
	if fc.Height != 0 {
		cfg.Geometry.Height = fc.Height
	}
	if fc.MaxIterations != 0 {
		cfg.MaxIterations = fc.MaxIterations
	}
	if fc.Workers != 0 {
		cfg.Workers = fc.Workers
	}
	if fc.Region != "" {
		v, ok := LookupRegion(fc.Region)
		if !ok {
			return Config{}, fmt.Errorf("%w: unknown region %q (known: %s)", ErrInvalidConfig, fc.Region, strings.Join(RegionNames(), ", "))
		}
		cfg.Viewport = v
	}
	if fc.UpperLeft != nil {
		p, err := pointFromPair(fc.UpperLeft)
		if err != nil {
			return Config{}, fmt.Errorf("upper_left: %w", err)
		}
		cfg.Viewport.UpperLeft = p
	}
	if fc.LowerRight != nil {
		p, err := pointFromPair(fc.LowerRight)
		if err != nil {
			return Config{}, fmt.Errorf("lower_right: %w", err)
		}
		cfg.Viewport.LowerRight = p
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func pointFromPair(p []float64) (complex128, error) {
	if len(p) != 2 {
		return 0, fmt.Errorf("%w: want [re, im], got %d values", ErrInvalidConfig, len(p))
	}
	return complex(p[0], p[1]), nil
}

// ParsePoint parses a complex-plane point written as "re,im".
func ParsePoint(s string) (complex128, error) {
	reStr, imStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, fmt.Errorf("%w: point %q is not re,im", ErrInvalidConfig, s)
	}
	re, err := strconv.ParseFloat(strings.TrimSpace(reStr), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: real part of %q: %w", ErrInvalidConfig, s, err)
	}
	im, err := strconv.ParseFloat(strings.TrimSpace(imStr), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: imaginary part of %q: %w", ErrInvalidConfig, s, err)
	}
	p := complex(re, im)
	if !finite(p) {
		return 0, fmt.Errorf("%w: point %q is not finite", ErrInvalidConfig, s)
	}
	return p, nil
}
