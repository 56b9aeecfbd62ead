package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"

	mandel "github.com/marben/gray_mandel"
)

// webServer creates the http server of the coordinator.
// Workers attach on /ws and are handed to the returned WebsocketListener;
// the finished image is served on /image and progress on /status.
func webServer(ctx context.Context, addr string, iws *imgWorkScheduler) (*WebsocketListener, *http.Server) {
	l := NewWSListener(ctx, addr+"/ws", iws.logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(l, iws),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return l, srv
}

func newMux(l *WebsocketListener, iws *imgWorkScheduler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", websocketHandler(l))
	mux.HandleFunc("GET /image", imageHandler(iws))
	mux.HandleFunc("GET /status", statusHandler(iws))
	return mux
}

// websocketHandler handles the http ws endpoint
// if websocket is succesfully initialized it is passed to WebsocketListener so it can be accepted
func websocketHandler(l *WebsocketListener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			l.logger.Warn("websocket accept", "remote", r.RemoteAddr, "err", err)
			return
		}

		select {
		case l.ch <- c:
		case <-l.ctx.Done():
			c.Close(websocket.StatusGoingAway, "server shutting down")
		}
	}
}

// imageHandler blocks until the image is complete and sends it encoded as ?format= (png by default).
func imageHandler(iws *imgWorkScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "png"
		}
		contentType, ok := contentTypes[format]
		if !ok {
			http.Error(w, "unsupported format "+format, http.StatusBadRequest)
			return
		}

		img, err := iws.GetImage(r.Context())
		if err != nil {
			// client went away
			return
		}

		w.Header().Set("Content-Type", contentType)
		if err := mandel.EncodeImage(w, format, img.Pix, iws.cfg.Geometry); err != nil {
			iws.logger.Warn("send image", "remote", r.RemoteAddr, "err", err)
		}
	}
}

var contentTypes = map[string]string{
	"png":  "image/png",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

func statusHandler(iws *imgWorkScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(iws.status()); err != nil {
			iws.logger.Warn("send status", "remote", r.RemoteAddr, "err", err)
		}
	}
}

// WebsocketListener hands accepted worker connections to the accept loop
type WebsocketListener struct {
	ch     chan *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	addr   wsAddr
	logger *slog.Logger
}

func NewWSListener(ctx context.Context, addr string, logger *slog.Logger) *WebsocketListener {
	ctx, cancel := context.WithCancel(ctx)
	return &WebsocketListener{
		ch:     make(chan *websocket.Conn),
		ctx:    ctx,
		cancel: cancel,
		addr:   wsAddr{addr: addr},
		logger: logger,
	}
}

func (l *WebsocketListener) Accept() (*websocket.Conn, error) {
	select {
	case c := <-l.ch:
		return c, nil
	case <-l.ctx.Done():
		if cause := context.Cause(l.ctx); cause != context.Canceled {
			return nil, cause
		}
		return nil, net.ErrClosed
	}
}

func (l *WebsocketListener) Addr() net.Addr {
	return l.addr
}

func (l *WebsocketListener) Close() error {
	l.cancel()
	return nil
}

// wsAddrs implements net.Addr
type wsAddr struct {
	addr string
}

func (a wsAddr) Network() string {
	return "ws"
}

func (a wsAddr) String() string {
	return a.addr
}
