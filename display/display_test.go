package display

import (
	"context"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mandel "github.com/marben/gray_mandel"
)

func simScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, s.Init())
	s.SetSize(w, h)
	t.Cleanup(s.Fini)
	return s
}

func cellGrays(t *testing.T, c tcell.SimCell) (fg, bg int32) {
	t.Helper()
	f, b, _ := c.Style.Decompose()
	fr, fgc, fb := f.RGB()
	br, bgc, bb := b.RGB()
	require.Equal(t, fr, fgc)
	require.Equal(t, fr, fb)
	require.Equal(t, br, bgc)
	require.Equal(t, br, bb)
	return fr, br
}

func TestDrawOnePixelPerHalfCell(t *testing.T) {
	g := mandel.Geometry{Width: 4, Height: 4}
	pix := []byte{
		0, 10, 20, 30,
		40, 50, 60, 70,
		80, 90, 100, 110,
		120, 130, 140, 150,
	}
	s := simScreen(t, 4, 2)

	Draw(s, pix, g)
	s.Show()

	cells, w, h := s.GetContents()
	require.Equal(t, 4, w)
	require.Equal(t, 2, h)
	for cy := range h {
		for cx := range w {
			c := cells[cy*w+cx]
			require.Equal(t, []rune{upperHalfBlock}, c.Runes)
			fg, bg := cellGrays(t, c)
			assert.EqualValues(t, pix[(2*cy)*g.Width+cx], fg, "cell %d,%d upper", cx, cy)
			assert.EqualValues(t, pix[(2*cy+1)*g.Width+cx], bg, "cell %d,%d lower", cx, cy)
		}
	}
}

func TestDrawKeepsAspectRatio(t *testing.T) {
	// 2x2 image on a 8x1 screen: scale is 1, the right part stays empty
	g := mandel.Geometry{Width: 2, Height: 2}
	pix := []byte{255, 255, 255, 255}
	s := simScreen(t, 8, 1)

	Draw(s, pix, g)
	s.Show()

	cells, w, _ := s.GetContents()
	for cx := range w {
		if cx < 2 {
			assert.Equal(t, []rune{upperHalfBlock}, cells[cx].Runes)
		} else {
			assert.Equal(t, []rune{' '}, cells[cx].Runes)
		}
	}
}

func TestDrawDownscales(t *testing.T) {
	g := mandel.Geometry{Width: 8, Height: 8}
	pix := make([]byte, g.Pixels())
	for i := range pix {
		pix[i] = byte(i)
	}
	s := simScreen(t, 4, 2)

	Draw(s, pix, g)
	s.Show()

	cells, w, _ := s.GetContents()
	// scale 2: cell (1,1) samples image pixels (2,4) and (2,6)
	fg, bg := cellGrays(t, cells[1*w+1])
	assert.EqualValues(t, 4*8+2, fg)
	assert.EqualValues(t, 6*8+2, bg)
}

func TestRunReturnsOnKey(t *testing.T) {
	g := mandel.Geometry{Width: 2, Height: 2}
	s := simScreen(t, 4, 2)

	done := make(chan error, 1)
	go func() { done <- run(context.Background(), s, make([]byte, 4), g) }()

	s.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after a key press")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	g := mandel.Geometry{Width: 2, Height: 2}
	s := simScreen(t, 4, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := run(ctx, s, make([]byte, 4), g)
	require.ErrorIs(t, err, context.Canceled)
}
