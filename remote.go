package mandel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Job asks a worker to render image rows [First, Last).
// It carries the whole scene, so workers stay stateless.
type Job struct {
	ID            uint64     `json:"id"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	UpperLeft     [2]float64 `json:"upper_left"`
	LowerRight    [2]float64 `json:"lower_right"`
	MaxIterations int        `json:"max_iterations"`
	First         int        `json:"first"`
	Last          int        `json:"last"`
}

// Result answers the Job with the same ID.
// Pix holds (Last-First)*Width bytes unless Err is set.
type Result struct {
	ID    uint64 `json:"id"`
	First int    `json:"first"`
	Pix   []byte `json:"pix,omitempty"`
	Err   string `json:"error,omitempty"`
}

// NewJob describes rows [first, last) of cfg.
func NewJob(id uint64, cfg Config, first, last int) Job {
	ul, lr := cfg.Viewport.UpperLeft, cfg.Viewport.LowerRight
	return Job{
		ID:            id,
		Width:         cfg.Geometry.Width,
		Height:        cfg.Geometry.Height,
		UpperLeft:     [2]float64{real(ul), imag(ul)},
		LowerRight:    [2]float64{real(lr), imag(lr)},
		MaxIterations: cfg.MaxIterations,
		First:         first,
		Last:          last,
	}
}

// Config rebuilds the scene of j, rendered with the given number of local workers.
func (j Job) Config(workers int) Config {
	return Config{
		Geometry: Geometry{Width: j.Width, Height: j.Height},
		Viewport: Viewport{
			UpperLeft:  complex(j.UpperLeft[0], j.UpperLeft[1]),
			LowerRight: complex(j.LowerRight[0], j.LowerRight[1]),
		},
		MaxIterations: j.MaxIterations,
		Workers:       workers,
	}
}

// Work serves jobs arriving on conn until the coordinator closes the connection or ctx ends.
// A normal closure by the coordinator is not an error.
func Work(ctx context.Context, conn *websocket.Conn, workers int, logger *slog.Logger) error {
	for {
		var job Job
		if err := wsjson.Read(ctx, conn, &job); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read job: %w", err)
		}

		res := runJob(ctx, job, workers)
		if res.Err != "" {
			logger.Warn("job rejected", "id", job.ID, "err", res.Err)
		} else {
			logger.Debug("rendered rows", "id", job.ID, "first", job.First, "last", job.Last)
		}

		if err := wsjson.Write(ctx, conn, res); err != nil {
			return fmt.Errorf("write result %d: %w", job.ID, err)
		}
	}
}

// maxJobBytes bounds the pixels a worker allocates for one job.
const maxJobBytes = 256 << 20

func runJob(ctx context.Context, job Job, workers int) Result {
	res := Result{ID: job.ID, First: job.First}

	r, err := NewRenderer(job.Config(workers))
	if err != nil {
		res.Err = err.Error()
		return res
	}
	if job.First < 0 || job.Last > job.Height || job.First >= job.Last {
		res.Err = fmt.Sprintf("row range [%d, %d) outside image height %d", job.First, job.Last, job.Height)
		return res
	}
	// divide rather than multiply, Width is positive after NewRenderer
	if rows := job.Last - job.First; rows > maxJobBytes/job.Width {
		res.Err = fmt.Sprintf("rows [%d, %d) of width %d exceed %d bytes", job.First, job.Last, job.Width, maxJobBytes)
		return res
	}

	pix := make([]byte, (job.Last-job.First)*job.Width)
	if err := r.RenderRows(ctx, job.First, job.Last, pix); err != nil {
		res.Err = err.Error()
		return res
	}
	res.Pix = pix
	return res
}

// RemoteRenderer is a BandRenderer backed by a worker on the other end of a websocket.
// Jobs on one connection are serialized.
type RemoteRenderer struct {
	conn *websocket.Conn
	cfg  Config

	m      sync.Mutex
	nextID uint64
}

func NewRemoteRenderer(conn *websocket.Conn, cfg Config) *RemoteRenderer {
	return &RemoteRenderer{conn: conn, cfg: cfg}
}

// RenderBand implements BandRenderer.
func (rr *RemoteRenderer) RenderBand(ctx context.Context, first, last int) ([]byte, error) {
	rr.m.Lock()
	defer rr.m.Unlock()

	rr.nextID++
	job := NewJob(rr.nextID, rr.cfg, first, last)
	want := (last - first) * rr.cfg.Geometry.Width

	if err := wsjson.Write(ctx, rr.conn, job); err != nil {
		return nil, fmt.Errorf("send job %d: %w", job.ID, err)
	}

	// base64 inflates Pix by 4/3
	rr.conn.SetReadLimit(int64(2*want + 4096))
	var res Result
	if err := wsjson.Read(ctx, rr.conn, &res); err != nil {
		return nil, fmt.Errorf("receive result %d: %w", job.ID, err)
	}

	switch {
	case res.ID != job.ID:
		return nil, fmt.Errorf("result id %d does not match job %d", res.ID, job.ID)
	case res.Err != "":
		return nil, fmt.Errorf("job %d: %s", job.ID, res.Err)
	case len(res.Pix) != want:
		return nil, fmt.Errorf("job %d: got %d bytes, want %d", job.ID, len(res.Pix), want)
	}
	return res.Pix, nil
}

// Close ends the session with the worker.
func (rr *RemoteRenderer) Close() error {
	return rr.conn.Close(websocket.StatusNormalClosure, "render finished")
}
