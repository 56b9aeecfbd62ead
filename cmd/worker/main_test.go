package main

import (
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mandel "github.com/marben/gray_mandel"
)

func testScene() mandel.Config {
	return mandel.Config{
		Geometry:      mandel.Geometry{Width: 24, Height: 16},
		Viewport:      mandel.Full,
		MaxIterations: 80,
		Workers:       2,
	}
}

// coordinator renders the whole scene on the first worker attaching to /mandel/ws
// and serves the result on /mandel/image.
func coordinator(t *testing.T, cfg mandel.Config) *httptest.Server {
	t.Helper()
	done := make(chan struct{})
	var pix []byte

	mux := http.NewServeMux()
	mux.HandleFunc("GET /mandel/ws", func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		rr := mandel.NewRemoteRenderer(c, cfg)
		defer rr.Close()
		p, err := rr.RenderBand(r.Context(), 0, cfg.Geometry.Height)
		if assert.NoError(t, err) {
			pix = p
			close(done)
		}
	})
	mux.HandleFunc("GET /mandel/image", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "png", r.URL.Query().Get("format"))
		select {
		case <-done:
		case <-r.Context().Done():
			return
		}
		assert.NoError(t, mandel.EncodeImage(w, "png", pix, cfg.Geometry))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWorkerURL(t *testing.T) {
	tests := []struct {
		server string
		ws     string
		image  string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws", "http://localhost:8080/image?format=png"},
		{"https://render.example/mandel/", "wss://render.example/mandel/ws", "https://render.example/mandel/image?format=png"},
		{"http://host/a/b?x=1", "ws://host/a/b/ws", "http://host/a/b/image?format=png"},
	}
	for _, tt := range tests {
		base, err := url.Parse(tt.server)
		require.NoError(t, err)
		assert.Equal(t, tt.ws, workerURL(base), tt.server)
		assert.Equal(t, tt.image, imageURL(base, "png"), tt.server)
	}
}

func TestRunFetchesImage(t *testing.T) {
	cfg := testScene()
	srv := coordinator(t, cfg)
	out := filepath.Join(t.TempDir(), "fetched.png")

	err := run(context.Background(), options{Server: srv.URL + "/mandel", Workers: 3, Fetch: out})
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	gray, ok := img.(*image.Gray)
	require.True(t, ok, "decoded %T", img)

	r, err := mandel.NewRenderer(cfg)
	require.NoError(t, err)
	want := make([]byte, cfg.Geometry.Pixels())
	r.Render(want)
	assert.Equal(t, want, gray.Pix)
}

func TestRunFetchFailsOnHTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c.Close(websocket.StatusNormalClosure, "nothing to render")
	})
	mux.HandleFunc("GET /image", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "never.png")
	err := run(context.Background(), options{Server: srv.URL, Workers: 1, Fetch: out})
	require.ErrorContains(t, err, "503")
	assert.NoFileExists(t, out)
}

func TestRunRejectsBadOptions(t *testing.T) {
	err := run(context.Background(), options{Server: "http://localhost:1", Workers: 0})
	require.ErrorContains(t, err, "workers 0 must be positive")

	err = run(context.Background(), options{Server: "http://localhost:1", Workers: 1, Fetch: "out.gif"})
	require.ErrorContains(t, err, "unsupported image extension")
}
