package main

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mandel "github.com/marben/gray_mandel"
)

func TestSceneDefaults(t *testing.T) {
	rc, output, err := scene(Config{})
	require.NoError(t, err)
	assert.Equal(t, defaultOutput, output)
	assert.Equal(t, mandel.DefaultConfig(), rc)
}

func TestSceneFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
width = 320
height = 200
region = "elephant-valley"
output = "from-file.bmp"
`), 0o644))

	rc, output, err := scene(Config{
		ConfigFile: path,
		Height:     100,
		UpperLeft:  "-1.9,-0.01",
		Iterations: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, "from-file.bmp", output)
	assert.Equal(t, mandel.Geometry{Width: 320, Height: 100}, rc.Geometry)
	assert.Equal(t, 40, rc.MaxIterations)
	assert.Equal(t, complex(-1.9, -0.01), rc.Viewport.UpperLeft)
	assert.Equal(t, mandel.ElephantValley.LowerRight, rc.Viewport.LowerRight)
}

func TestSceneRejectsBadPoint(t *testing.T) {
	_, _, err := scene(Config{LowerRight: "east"})
	require.ErrorIs(t, err, mandel.ErrInvalidConfig)

	_, _, err = scene(Config{UpperLeft: "nan,0"})
	require.ErrorIs(t, err, mandel.ErrInvalidConfig)
}

func TestRunRejectsNonFiniteViewport(t *testing.T) {
	out := filepath.Join(t.TempDir(), "never.png")
	err := run(context.Background(), Config{Width: 4, Height: 4, UpperLeft: "-inf,1", Output: out})
	require.ErrorIs(t, err, mandel.ErrInvalidConfig)
	assert.NoFileExists(t, out)
}

func TestRunWritesImage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "small.png")
	err := run(context.Background(), Config{
		Width:      30,
		Height:     20,
		Iterations: 60,
		Workers:    3,
		Region:     "full",
		Output:     out,
	})
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
}

func TestRunRejectsUnknownExtension(t *testing.T) {
	err := run(context.Background(), Config{Output: filepath.Join(t.TempDir(), "out.gif")})
	require.ErrorContains(t, err, "unsupported image extension")
}
