// server coordinates a distributed render of one image.
// Workers (cmd/worker) attach over a websocket and are handed bands of rows;
// the finished image is served over http and optionally written to a file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	mandel "github.com/marben/gray_mandel"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	Config       string
	Region       string
	Width        int
	Height       int
	Iterations   int
	BandRows     int
	Addr         string
	Local        int
	Output       string
	ExitWhenDone bool
	Debug        bool
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "server [flags]",
		Short: "Coordinate a distributed grayscale Mandelbrot render",
		Example: `  # render the default scene on attached workers
  server --addr :8080

  # help out with two local renderers and save the result
  server --local 2 --output mandel.png --exit-when-done`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	rootCmd.Flags().StringVarP(&opts.Config, "config", "c", "", "TOML scene file")
	rootCmd.Flags().StringVarP(&opts.Region, "region", "r", "", "named region to render")
	rootCmd.Flags().IntVar(&opts.Width, "width", 0, "image width in pixels")
	rootCmd.Flags().IntVar(&opts.Height, "height", 0, "image height in pixels")
	rootCmd.Flags().IntVarP(&opts.Iterations, "iterations", "i", 0, "maximum escape iterations")
	rootCmd.Flags().IntVar(&opts.BandRows, "band-rows", 16, "image rows handed to a worker at once")
	rootCmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "http listen address")
	rootCmd.Flags().IntVar(&opts.Local, "local", 0, "number of in-process renderers")
	rootCmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the finished image to this file")
	rootCmd.Flags().BoolVar(&opts.ExitWhenDone, "exit-when-done", false, "stop serving once the image is finished")
	rootCmd.Flags().BoolVarP(&opts.Debug, "debug", "d", false, "enable debug logging")

	if err := fang.Execute(context.Background(), rootCmd,
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, err.Error())
		}),
	); err != nil {
		os.Exit(1)
	}
}

// sceneConfig builds the render configuration from the config file and the flags.
func sceneConfig(opts options) (mandel.Config, error) {
	var fc mandel.FileConfig
	if opts.Config != "" {
		var err error
		if fc, err = mandel.LoadConfigFile(opts.Config); err != nil {
			return mandel.Config{}, err
		}
	}
	fc = fc.Merge(mandel.FileConfig{
		Width:         opts.Width,
		Height:        opts.Height,
		MaxIterations: opts.Iterations,
		Region:        opts.Region,
	})
	return fc.Apply(mandel.DefaultConfig())
}

func run(ctx context.Context, opts options) error {
	logger := mandel.NewLogger(os.Stderr, opts.Debug)

	cfg, err := sceneConfig(opts)
	if err != nil {
		return err
	}
	if opts.BandRows <= 0 {
		return fmt.Errorf("band rows %d must be positive", opts.BandRows)
	}

	iws := newImgWorkScheduler(cfg, opts.BandRows, logger)
	logger.Info("scene",
		"width", cfg.Geometry.Width, "height", cfg.Geometry.Height,
		"upper_left", cfg.Viewport.UpperLeft, "lower_right", cfg.Viewport.LowerRight,
		"iterations", cfg.MaxIterations, "bands", iws.totalBands)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wsListener, httpServer := webServer(ctx, opts.Addr, iws)
	defer wsListener.Close()

	tcpListener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("net.Listen: %w", err)
	}
	logger.Info("listening", "addr", tcpListener.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(tcpListener); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("httpServer: %w", err)
		}
	}()

	go acceptWorkers(ctx, wsListener, iws, logger)

	if opts.Local > 0 {
		r, err := mandel.NewRenderer(cfg)
		if err != nil {
			return err
		}
		for range opts.Local {
			go func() {
				if err := iws.addRenderer(ctx, mandel.NewLocalRenderer(r)); err != nil {
					logger.Warn("local renderer", "err", err)
				}
			}()
		}
	}

	select {
	case <-iws.done():
		logger.Info("image finished")
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		return shutdown(httpServer)
	}

	if opts.Output != "" {
		img, err := iws.GetImage(ctx)
		if err != nil {
			return err
		}
		if err := mandel.WriteImage(opts.Output, img.Pix, cfg.Geometry); err != nil {
			return err
		}
		logger.Info("image saved", "file", opts.Output)
	}

	if !opts.ExitWhenDone {
		select {
		case err := <-serveErr:
			return err
		case <-ctx.Done():
		}
	}
	return shutdown(httpServer)
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// acceptWorkers turns every attached websocket into a renderer of the scheduler.
func acceptWorkers(ctx context.Context, l *WebsocketListener, iws *imgWorkScheduler, logger *slog.Logger) {
	logger.Info("waiting for workers", "endpoint", l.Addr().String())
	for {
		c, err := l.Accept()
		if err != nil {
			return
		}
		go func() {
			rr := mandel.NewRemoteRenderer(c, iws.cfg)
			defer rr.Close()
			if err := iws.addRenderer(ctx, rr); err != nil {
				logger.Warn("remote renderer", "err", err)
			}
		}()
	}
}
