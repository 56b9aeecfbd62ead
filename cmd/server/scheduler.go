package main

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	mandel "github.com/marben/gray_mandel"
)

// rowBand is a half-open range of image rows [First, Last)
type rowBand struct {
	First, Last int
}

func (b rowBand) String() string {
	return fmt.Sprintf("rows[%d,%d)", b.First, b.Last)
}

// imgWorkScheduler hands row bands of one image to any number of BandRenderers
// and assembles their results.
type imgWorkScheduler struct {
	cfg    mandel.Config
	pix    []byte
	logger *slog.Logger

	ctx       context.Context
	ctxCancel context.CancelFunc

	workers      int
	totalRows    int
	finishedRows int
	totalBands   int

	unstarted map[rowBand]struct{}
	inProcess map[rowBand]struct{}
	m         sync.Mutex
}

func newImgWorkScheduler(cfg mandel.Config, bandRows int, logger *slog.Logger) *imgWorkScheduler {
	bands := splitRows(cfg.Geometry.Height, bandRows)
	unstarted := make(map[rowBand]struct{}, len(bands))
	for _, b := range bands {
		unstarted[b] = struct{}{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &imgWorkScheduler{
		cfg:        cfg,
		pix:        make([]byte, cfg.Geometry.Pixels()),
		logger:     logger,
		unstarted:  unstarted,
		inProcess:  make(map[rowBand]struct{}),
		totalRows:  cfg.Geometry.Height,
		totalBands: len(bands),
		ctx:        ctx,
		ctxCancel:  cancel,
	}
}

func (iws *imgWorkScheduler) popBand() (band rowBand, found bool) {
	iws.m.Lock()
	defer iws.m.Unlock()

	// Get unstarted band
	if len(iws.unstarted) > 0 {
		for band = range iws.unstarted {
			break
		}
		delete(iws.unstarted, band)

		// Move popped band to currently processed bands
		iws.inProcess[band] = struct{}{}
		return band, true
	}

	// If there is no unstarted band, we work again on a started one
	if len(iws.inProcess) > 0 {
		for band = range iws.inProcess {
			break
		}

		return band, true
	}

	return rowBand{}, false
}

// done is closed once every band has been rendered.
func (iws *imgWorkScheduler) done() <-chan struct{} {
	return iws.ctx.Done()
}

// GetImage implements mandel.ImgProvider.
func (iws *imgWorkScheduler) GetImage(ctx context.Context) (*image.Gray, error) {
	select {
	case <-iws.done():
		return mandel.GrayImage(iws.pix, iws.cfg.Geometry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ mandel.ImgProvider = (*imgWorkScheduler)(nil)

func (iws *imgWorkScheduler) finished() float32 {
	iws.m.Lock()
	defer iws.m.Unlock()
	return float32(iws.finishedRows) / float32(iws.totalRows)
}

func (iws *imgWorkScheduler) bandFinished(band rowBand, pix []byte) {
	defer func() { iws.logger.Debug("band finished", "band", band, "progress", iws.finished()) }()

	iws.m.Lock()
	defer iws.m.Unlock()

	// a band handed out twice is only copied once, so the image is never written after completion
	if _, found := iws.inProcess[band]; !found {
		return
	}

	w := iws.cfg.Geometry.Width
	copy(iws.pix[band.First*w:band.Last*w], pix)
	iws.finishedRows += band.Last - band.First
	delete(iws.inProcess, band)

	if len(iws.unstarted) == 0 && len(iws.inProcess) == 0 {
		iws.ctxCancel()
	}
}

func (iws *imgWorkScheduler) incActiveWorker() {
	iws.m.Lock()
	iws.workers++
	w := iws.workers
	iws.m.Unlock()

	iws.logger.Info("worker joined", "workers", w)
}

func (iws *imgWorkScheduler) decActiveWorkers() {
	iws.m.Lock()
	iws.workers--
	w := iws.workers
	iws.m.Unlock()

	iws.logger.Info("worker left", "workers", w)
}

// status is the progress report served on /status
type status struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	TotalBands    int     `json:"total_bands"`
	FinishedBands int     `json:"finished_bands"`
	Workers       int     `json:"workers"`
	Progress      float32 `json:"progress"`
	Done          bool    `json:"done"`
}

func (iws *imgWorkScheduler) status() status {
	iws.m.Lock()
	defer iws.m.Unlock()

	return status{
		Width:         iws.cfg.Geometry.Width,
		Height:        iws.cfg.Geometry.Height,
		TotalBands:    iws.totalBands,
		FinishedBands: iws.totalBands - len(iws.unstarted) - len(iws.inProcess),
		Workers:       iws.workers,
		Progress:      float32(iws.finishedRows) / float32(iws.totalRows),
		Done:          len(iws.unstarted) == 0 && len(iws.inProcess) == 0,
	}
}

// addRenderer renders unfinished bands on the provided BandRenderer until none are left.
// It can be called from multiple goroutines in parallel.
// A failing renderer leaves its band in process, so other renderers pick it up.
func (iws *imgWorkScheduler) addRenderer(ctx context.Context, renderer mandel.BandRenderer) error {
	iws.incActiveWorker()
	defer iws.decActiveWorkers()

	for {
		band, found := iws.popBand()
		if !found {
			return nil
		}
		pix, err := renderer.RenderBand(ctx, band.First, band.Last)
		if err != nil {
			return fmt.Errorf("render of %s failed: %w", band, err)
		}
		iws.bandFinished(band, pix)
	}
}

// splitRows splits height rows into bands of bandRows rows.
// The last band is smaller if height is not divisible.
func splitRows(height, bandRows int) []rowBand {
	if bandRows <= 0 {
		panic("band rows must be positive")
	}

	var bands []rowBand
	for first := 0; first < height; first += bandRows {
		bands = append(bands, rowBand{First: first, Last: min(first+bandRows, height)})
	}
	return bands
}
