package mandel

import (
	"context"
	"image"
)

// ImgProvider hands out the fully rendered image, blocking until it is ready.
type ImgProvider interface {
	GetImage(ctx context.Context) (*image.Gray, error)
}

// BandRenderer renders image rows [first, last) and returns their (last-first)*Width bytes.
type BandRenderer interface {
	RenderBand(ctx context.Context, first, last int) ([]byte, error)
}

// LocalRenderer is a BandRenderer running on this machine's CPUs.
type LocalRenderer struct {
	r *Renderer
}

func NewLocalRenderer(r *Renderer) LocalRenderer {
	return LocalRenderer{r: r}
}

// RenderBand implements BandRenderer.
func (l LocalRenderer) RenderBand(ctx context.Context, first, last int) ([]byte, error) {
	pix := make([]byte, (last-first)*l.r.cfg.Geometry.Width)
	if err := l.r.RenderRows(ctx, first, last, pix); err != nil {
		return nil, err
	}
	return pix, nil
}

var (
	_ BandRenderer = LocalRenderer{}
	_ BandRenderer = (*RemoteRenderer)(nil)
)
