package mandel

import (
	"errors"
	"fmt"
	"math/cmplx"
	"runtime"
	"sort"
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Geometry is the size of the rendered image in pixels
type Geometry struct {
	Width, Height int
}

// Pixels returns the number of pixels (and bytes) of an image with geometry g.
func (g Geometry) Pixels() int {
	return g.Width * g.Height
}

// Viewport is the rectangle of the complex plane mapped onto the image.
// UpperLeft lands on pixel (0,0), LowerRight on pixel (Width,Height).
type Viewport struct {
	UpperLeft  complex128
	LowerRight complex128
}

// Config describes one render.
type Config struct {
	Geometry      Geometry
	Viewport      Viewport
	MaxIterations int
	Workers       int // parallelism hint, not a hard limit
}

// Validate reports the first violated invariant of c.
func (c Config) Validate() error {
	switch {
	case c.Geometry.Width <= 0 || c.Geometry.Height <= 0:
		return fmt.Errorf("%w: geometry %dx%d must be positive", ErrInvalidConfig, c.Geometry.Width, c.Geometry.Height)
	case c.MaxIterations <= 0:
		return fmt.Errorf("%w: max iterations %d must be positive", ErrInvalidConfig, c.MaxIterations)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers %d must be positive", ErrInvalidConfig, c.Workers)
	case !finite(c.Viewport.UpperLeft) || !finite(c.Viewport.LowerRight):
		return fmt.Errorf("%w: viewport %v .. %v must be finite", ErrInvalidConfig, c.Viewport.UpperLeft, c.Viewport.LowerRight)
	case !(real(c.Viewport.LowerRight) > real(c.Viewport.UpperLeft)):
		return fmt.Errorf("%w: viewport lower right %v must be right of upper left %v", ErrInvalidConfig, c.Viewport.LowerRight, c.Viewport.UpperLeft)
	case !(imag(c.Viewport.UpperLeft) > imag(c.Viewport.LowerRight)):
		return fmt.Errorf("%w: viewport upper left %v must be above lower right %v", ErrInvalidConfig, c.Viewport.UpperLeft, c.Viewport.LowerRight)
	}
	return nil
}

func finite(p complex128) bool {
	return !cmplx.IsNaN(p) && !cmplx.IsInf(p)
}

// DefaultViewport frames the antenna region west of the main cardioid.
var DefaultViewport = Viewport{
	UpperLeft:  complex(-1.20, 0.35),
	LowerRight: complex(-1.0, 0.20),
}

// DefaultConfig returns a full-HD render of DefaultViewport using every available CPU.
func DefaultConfig() Config {
	return Config{
		Geometry:      Geometry{Width: 1920, Height: 1080},
		Viewport:      DefaultViewport,
		MaxIterations: 255,
		Workers:       runtime.GOMAXPROCS(0),
	}
}

// region converts the classic xmin/xmax/ymin/ymax notation into a Viewport
func region(xmin, xmax, ymin, ymax float64) Viewport {
	return Viewport{
		UpperLeft:  complex(xmin, ymax),
		LowerRight: complex(xmax, ymin),
	}
}

// Classic regions / landmarks in the Mandelbrot set
var (
	// Full set
	Full = region(-2.5, 1.0, -1.25, 1.25)

	// Seahorse Valley – dense filaments and repeating “seahorse” curls
	SeahorseValley = region(-0.8, -0.7, 0.05, 0.15)

	// Elephant Valley – large bulb with trunk-like tendrils
	ElephantValley = region(-1.85, -1.75, -0.10, -0.02)

	// Spiral Minibrot – small Mandelbrot copy with tight spiral arms
	SpiralMinibrot = region(-0.7435, -0.7420, 0.1310, 0.1325)

	// Triple Spiral – threefold symmetric spiral structure
	TripleSpiral = region(-0.7480, -0.7450, 0.0950, 0.0980)

	// Valley of the Dragon – deep, highly detailed spiral filaments
	ValleyOfTheDragon = region(-0.7400, -0.7350, 0.1800, 0.1850)

	// Minibrot in a Mini-Spiral – self-similar Mandelbrot copy inside a spiral arm
	MinibrotInMiniSpiral = region(-1.7390, -1.7375, -0.0235, -0.0220)
)

var regions = map[string]Viewport{
	"default":                 DefaultViewport,
	"full":                    Full,
	"seahorse-valley":         SeahorseValley,
	"elephant-valley":         ElephantValley,
	"spiral-minibrot":         SpiralMinibrot,
	"triple-spiral":           TripleSpiral,
	"valley-of-the-dragon":    ValleyOfTheDragon,
	"minibrot-in-mini-spiral": MinibrotInMiniSpiral,
}

// LookupRegion returns the named landmark viewport.
func LookupRegion(name string) (Viewport, bool) {
	v, ok := regions[name]
	return v, ok
}

// RegionNames lists the names accepted by LookupRegion, sorted.
func RegionNames() []string {
	names := make([]string, 0, len(regions))
	for n := range regions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
