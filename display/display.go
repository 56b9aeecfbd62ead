// Package display shows a rendered grayscale buffer in the terminal.
//
// Every terminal cell carries two image rows: the upper half block glyph is
// painted with the upper pixel as foreground and the lower pixel as background.
// The image is scaled to fit the screen keeping its aspect ratio.
package display

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	mandel "github.com/marben/gray_mandel"
)

const upperHalfBlock = '▀'

// Show opens the terminal, draws pix and waits for any key press or ctx cancellation.
// The buffer is only read.
func Show(ctx context.Context, pix []byte, g mandel.Geometry) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()

	return run(ctx, screen, pix, g)
}

// run is the event loop of Show on an initialized screen.
func run(ctx context.Context, screen tcell.Screen, pix []byte, g mandel.Geometry) error {
	events := make(chan tcell.Event)
	quit := make(chan struct{})
	defer close(quit)
	go screen.ChannelEvents(events, quit)

	Draw(screen, pix, g)
	screen.Show()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
				Draw(screen, pix, g)
				screen.Show()
			case *tcell.EventKey:
				return nil
			}
		}
	}
}

// Draw paints pix onto the whole screen without calling Show.
func Draw(screen tcell.Screen, pix []byte, g mandel.Geometry) {
	sw, sh := screen.Size()
	if sw <= 0 || sh <= 0 || g.Pixels() == 0 {
		return
	}

	// image pixels per screen pixel; a cell is one pixel wide and two pixels tall
	scale := max(float64(g.Width)/float64(sw), float64(g.Height)/float64(2*sh))

	sample := func(x, y int) (byte, bool) {
		ix, iy := int(float64(x)*scale), int(float64(y)*scale)
		if ix >= g.Width || iy >= g.Height {
			return 0, false
		}
		return pix[iy*g.Width+ix], true
	}

	for cy := range sh {
		for cx := range sw {
			upper, okU := sample(cx, 2*cy)
			lower, okL := sample(cx, 2*cy+1)
			if !okU && !okL {
				screen.SetContent(cx, cy, ' ', nil, tcell.StyleDefault)
				continue
			}
			style := tcell.StyleDefault.Foreground(gray(upper))
			if okL {
				style = style.Background(gray(lower))
			}
			screen.SetContent(cx, cy, upperHalfBlock, nil, style)
		}
	}
}

func gray(v byte) tcell.Color {
	return tcell.NewRGBColor(int32(v), int32(v), int32(v))
}
