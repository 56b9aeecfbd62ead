// worker lends this machine's CPUs to a coordinating server (cmd/server).
// It connects over a websocket, renders the bands of rows it is handed and,
// with --fetch, saves the finished image once the server has assembled it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/coder/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	mandel "github.com/marben/gray_mandel"
)

type options struct {
	Server  string
	Workers int
	Fetch   string
	Debug   bool
}

// main is the entry point for the worker.
func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "worker [flags]",
		Short: "Render bands of a distributed Mandelbrot image",
		Example: `  # help the server on this machine
  worker --server http://localhost:8080

  # help, then keep the result
  worker --server http://render-host:8080 --fetch mandel.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	rootCmd.Flags().StringVarP(&opts.Server, "server", "s", "http://localhost:8080", "coordinating server url")
	rootCmd.Flags().IntVarP(&opts.Workers, "workers", "w", runtime.GOMAXPROCS(0), "rows rendered in parallel")
	rootCmd.Flags().StringVarP(&opts.Fetch, "fetch", "f", "", "download the finished image to this file (.png, .bmp, .tif)")
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

// run connects to the server, renders bands until released and optionally saves the image.
func run(ctx context.Context, opts options) error {
	logger := mandel.NewLogger(os.Stderr, opts.Debug)

	if opts.Workers <= 0 {
		return fmt.Errorf("workers %d must be positive", opts.Workers)
	}
	if opts.Fetch != "" {
		if _, err := mandel.FormatFromPath(opts.Fetch); err != nil {
			return fmt.Errorf("fetch %q: %w", opts.Fetch, err)
		}
	}
	base, err := url.Parse(opts.Server)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		wsURL := workerURL(base)
		logger.Info("connecting to server", "url", wsURL)
		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		defer conn.CloseNow()

		if err := mandel.Work(ctx, conn, opts.Workers, logger); err != nil {
			return fmt.Errorf("work: %w", err)
		}
		logger.Info("released by server")
		return nil
	})

	if opts.Fetch != "" {
		eg.Go(func() error {
			return fetchImage(ctx, base, opts.Fetch, logger)
		})
	}

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// workerURL is the websocket endpoint under the server url: http becomes ws, https wss.
func workerURL(base *url.URL) string {
	u := *base
	u.Scheme = strings.Replace(base.Scheme, "http", "ws", 1)
	u.Path = strings.TrimSuffix(base.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String()
}

func imageURL(base *url.URL, format string) string {
	u := *base
	u.Path = strings.TrimSuffix(base.Path, "/") + "/image"
	u.RawQuery = url.Values{"format": {format}}.Encode()
	return u.String()
}

// fetchImage waits for the server to finish the image and saves it to path.
func fetchImage(ctx context.Context, base *url.URL, path string, logger *slog.Logger) (err error) {
	format, err := mandel.FormatFromPath(path)
	if err != nil {
		return err
	}

	imgURL := imageURL(base, format)
	logger.Info("requesting finished image", "url", imgURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get image: %s", resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write image %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("write image %q: %w", path, cerr)
		}
	}()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write image %q: %w", path, err)
	}

	logger.Info("finished image saved", "file", path)
	return nil
}
