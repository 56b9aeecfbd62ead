package mandel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Geometry.Width = 0 }},
		{"negative height", func(c *Config) { c.Geometry.Height = -1 }},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"flipped real axis", func(c *Config) {
			c.Viewport = Viewport{UpperLeft: complex(1, 1), LowerRight: complex(-1, -1)}
		}},
		{"flipped imaginary axis", func(c *Config) {
			c.Viewport = Viewport{UpperLeft: complex(-1, -1), LowerRight: complex(1, 1)}
		}},
		{"degenerate viewport", func(c *Config) {
			c.Viewport = Viewport{UpperLeft: complex(0, 1), LowerRight: complex(0, -1)}
		}},
		{"NaN upper left", func(c *Config) { c.Viewport.UpperLeft = complex(math.NaN(), 1) }},
		{"NaN lower right", func(c *Config) { c.Viewport.LowerRight = complex(1, math.NaN()) }},
		{"infinite lower right", func(c *Config) { c.Viewport.LowerRight = complex(math.Inf(1), -1) }},
		{"infinite upper left", func(c *Config) { c.Viewport.UpperLeft = complex(-1, math.Inf(1)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, Geometry{Width: 1920, Height: 1080}, cfg.Geometry)
	assert.Equal(t, complex(-1.20, 0.35), cfg.Viewport.UpperLeft)
	assert.Equal(t, complex(-1.0, 0.20), cfg.Viewport.LowerRight)
	assert.Equal(t, 255, cfg.MaxIterations)
	assert.Positive(t, cfg.Workers)
}

func TestRegions(t *testing.T) {
	names := RegionNames()
	require.Contains(t, names, "seahorse-valley")
	require.IsIncreasing(t, names)

	for _, name := range names {
		v, ok := LookupRegion(name)
		require.True(t, ok, name)
		cfg := DefaultConfig()
		cfg.Viewport = v
		assert.NoError(t, cfg.Validate(), name)
	}

	v, _ := LookupRegion("seahorse-valley")
	assert.Equal(t, complex(-0.8, 0.15), v.UpperLeft)
	assert.Equal(t, complex(-0.7, 0.05), v.LowerRight)

	_, ok := LookupRegion("nowhere")
	assert.False(t, ok)
}
