package mandel

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Renderer fills grayscale pixel buffers for one immutable Config.
// A Renderer holds no mutable state and can be used from multiple goroutines.
type Renderer struct {
	cfg Config
}

// NewRenderer validates cfg and returns a Renderer for it.
func NewRenderer(cfg Config) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{cfg: cfg}, nil
}

// Config returns the configuration r renders.
func (r *Renderer) Config() Config {
	return r.cfg
}

// Render fills pix, which must hold exactly Width*Height bytes, row-major.
// Every row is an independent band; at most cfg.Workers bands are rendered concurrently.
func (r *Renderer) Render(pix []byte) {
	_ = r.RenderContext(context.Background(), pix)
}

// RenderContext is Render with cooperative cancellation.
// Bands check ctx between pixels; on cancellation the content of pix is unspecified
// and ctx.Err() is returned.
func (r *Renderer) RenderContext(ctx context.Context, pix []byte) error {
	g := r.cfg.Geometry
	if len(pix) != g.Pixels() {
		panic(fmt.Sprintf("pixel buffer holds %d bytes, want %d (%dx%d)", len(pix), g.Pixels(), g.Width, g.Height))
	}
	return r.renderBands(ctx, 0, g.Height, pix)
}

// RenderRows renders image rows [first, last) into pix, which holds (last-first)*Width bytes.
// The output is byte-identical to the same rows of a full Render.
func (r *Renderer) RenderRows(ctx context.Context, first, last int, pix []byte) error {
	g := r.cfg.Geometry
	if first < 0 || last > g.Height || first >= last {
		panic(fmt.Sprintf("row range [%d, %d) outside image height %d", first, last, g.Height))
	}
	if want := (last - first) * g.Width; len(pix) != want {
		panic(fmt.Sprintf("pixel buffer holds %d bytes, want %d for rows [%d, %d)", len(pix), want, first, last))
	}
	return r.renderBands(ctx, first, last, pix)
}

// renderBands fans rows [first, last) out over an errgroup limited to cfg.Workers.
// pix[0] corresponds to the first pixel of row first.
func (r *Renderer) renderBands(ctx context.Context, first, last int, pix []byte) error {
	w := r.cfg.Geometry.Width

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for y := first; y < last; y++ {
		if gctx.Err() != nil {
			break
		}
		off := (y - first) * w
		band := pix[off : off+w : off+w]
		g.Go(func() error {
			return r.renderBand(gctx, y, band)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// renderBand renders image row y into band.
func (r *Renderer) renderBand(ctx context.Context, y int, band []byte) error {
	g := r.cfg.Geometry
	ul, lr := r.cfg.Viewport.UpperLeft, r.cfg.Viewport.LowerRight

	bandUL := PixelToPoint(0, y, ul, lr, g)
	bandLR := PixelToPoint(g.Width, y+1, ul, lr, g)
	return r.renderSection(ctx, band, Geometry{Width: g.Width, Height: 1}, bandUL, bandLR)
}

// RenderSection renders the rectangle ul..lr of the complex plane into pix,
// using bounds as the local pixel geometry.
// Escaped points get 255 minus the escape iteration, points in the set get 0.
func (r *Renderer) RenderSection(pix []byte, bounds Geometry, ul, lr complex128) {
	_ = r.renderSection(context.Background(), pix, bounds, ul, lr)
}

func (r *Renderer) renderSection(ctx context.Context, pix []byte, bounds Geometry, ul, lr complex128) error {
	if len(pix) != bounds.Pixels() {
		panic(fmt.Sprintf("section buffer holds %d bytes, want %d (%dx%d)", len(pix), bounds.Pixels(), bounds.Width, bounds.Height))
	}
	done := ctx.Done()
	for row := range bounds.Height {
		for col := range bounds.Width {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
			point := PixelToPoint(col, row, ul, lr, bounds)
			pix[row*bounds.Width+col] = intensity(r.Compute(point))
		}
	}
	return nil
}

// intensity maps an escape result to a gray level.
// Counts above 255 wrap, exactly like a byte conversion of the count.
func intensity(iter int, escaped bool) byte {
	if !escaped {
		return 0
	}
	return 255 - uint8(iter)
}

// PixelToPoint maps pixel (x, y) of an image with geometry g onto the rectangle ul..lr.
// Rows grow downwards while the imaginary part decreases.
func PixelToPoint(x, y int, ul, lr complex128, g Geometry) complex128 {
	width := real(lr) - real(ul)
	height := imag(ul) - imag(lr)
	return complex(
		real(ul)+float64(x)*width/float64(g.Width),
		imag(ul)-float64(y)*height/float64(g.Height),
	)
}

// Compute runs Escape with the renderer's iteration limit.
func (r *Renderer) Compute(c complex128) (iter int, escaped bool) {
	return Escape(c, r.cfg.MaxIterations)
}

// Escape iterates z = z*z + c from z = 0 at most maxIter times.
// It returns the 0-based iteration at which |z|² first exceeded 4 and true,
// or false when c did not escape and is presumed to be in the set.
func Escape(c complex128, maxIter int) (iter int, escaped bool) {
	var z complex128
	for i := range maxIter {
		z = z*z + c
		if real(z)*real(z)+imag(z)*imag(z) > 4 {
			return i, true
		}
	}
	return 0, false
}
