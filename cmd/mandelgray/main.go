// mandelgray renders a grayscale Mandelbrot image on this machine,
// writes it to a file and optionally shows it in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	mandel "github.com/marben/gray_mandel"
	"github.com/marben/gray_mandel/display"
)

// Config holds the command line of mandelgray
type Config struct {
	ConfigFile  string
	Width       int
	Height      int
	Iterations  int
	Workers     int
	Region      string
	UpperLeft   string
	LowerRight  string
	Output      string
	Display     bool
	ListRegions bool
	Debug       bool
}

const defaultOutput = "mandel.png"

func main() {
	var cfg Config

	rootCmd := &cobra.Command{
		Use:   "mandelgray [flags]",
		Short: "Render the Mandelbrot set to a grayscale image",
		Example: `  # render the default scene to mandel.png
  mandelgray

  # a landmark at 4k, shown in the terminal afterwards
  mandelgray --region seahorse-valley --width 3840 --height 2160 --display

  # an explicit viewport from a scene file, saved as TIFF
  mandelgray --config scene.toml --upper-left=-2,1.2 --lower-right=0.8,-1.2 -o scene.tif`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.ListRegions {
				for _, name := range mandel.RegionNames() {
					v, _ := mandel.LookupRegion(name)
					fmt.Fprintf(cmd.OutOrStdout(), "%-24s %v .. %v\n", name, v.UpperLeft, v.LowerRight)
				}
				return nil
			}
			return run(cmd.Context(), cfg)
		},
	}

	rootCmd.Flags().StringVarP(&cfg.ConfigFile, "config", "c", "", "TOML scene file")
	rootCmd.Flags().IntVar(&cfg.Width, "width", 0, "image width in pixels (default 1920)")
	rootCmd.Flags().IntVar(&cfg.Height, "height", 0, "image height in pixels (default 1080)")
	rootCmd.Flags().IntVarP(&cfg.Iterations, "iterations", "i", 0, "maximum escape iterations (default 255)")
	rootCmd.Flags().IntVarP(&cfg.Workers, "workers", "w", 0, "rows rendered in parallel (default GOMAXPROCS)")
	rootCmd.Flags().StringVarP(&cfg.Region, "region", "r", "", "named region, see --list-regions")
	rootCmd.Flags().StringVar(&cfg.UpperLeft, "upper-left", "", "upper left corner as re,im")
	rootCmd.Flags().StringVar(&cfg.LowerRight, "lower-right", "", "lower right corner as re,im")
	rootCmd.Flags().StringVarP(&cfg.Output, "output", "o", "", "output image (.png, .bmp, .tif) (default "+defaultOutput+")")
	rootCmd.Flags().BoolVar(&cfg.Display, "display", false, "show the image in the terminal after rendering")
	rootCmd.Flags().BoolVar(&cfg.ListRegions, "list-regions", false, "print the named regions and exit")
	rootCmd.Flags().BoolVarP(&cfg.Debug, "debug", "d", false, "enable debug logging")

	if err := fang.Execute(context.Background(), rootCmd,
		fang.WithVersion("v0.1.0"),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, err.Error())
		}),
	); err != nil {
		os.Exit(1)
	}
}

// scene merges the config file, the flags and the defaults.
func scene(cfg Config) (mandel.Config, string, error) {
	var fc mandel.FileConfig
	if cfg.ConfigFile != "" {
		var err error
		if fc, err = mandel.LoadConfigFile(cfg.ConfigFile); err != nil {
			return mandel.Config{}, "", err
		}
	}

	flags := mandel.FileConfig{
		Width:         cfg.Width,
		Height:        cfg.Height,
		MaxIterations: cfg.Iterations,
		Workers:       cfg.Workers,
		Region:        cfg.Region,
		Output:        cfg.Output,
	}
	for _, corner := range []struct {
		flag string
		dst  *[]float64
	}{
		{cfg.UpperLeft, &flags.UpperLeft},
		{cfg.LowerRight, &flags.LowerRight},
	} {
		if corner.flag == "" {
			continue
		}
		p, err := mandel.ParsePoint(corner.flag)
		if err != nil {
			return mandel.Config{}, "", err
		}
		*corner.dst = []float64{real(p), imag(p)}
	}
	fc = fc.Merge(flags)

	rc, err := fc.Apply(mandel.DefaultConfig())
	if err != nil {
		return mandel.Config{}, "", err
	}
	output := fc.Output
	if output == "" {
		output = defaultOutput
	}
	return rc, output, nil
}

func run(ctx context.Context, cfg Config) error {
	logger := mandel.NewLogger(os.Stderr, cfg.Debug)

	rc, output, err := scene(cfg)
	if err != nil {
		return err
	}
	// fail on a bad extension before spending time on the render
	if _, err := mandel.FormatFromPath(output); err != nil {
		return fmt.Errorf("output %q: %w", output, err)
	}

	r, err := mandel.NewRenderer(rc)
	if err != nil {
		return err
	}

	logger.Info("rendering",
		"size", fmt.Sprintf("%dx%d", rc.Geometry.Width, rc.Geometry.Height),
		"upper_left", rc.Viewport.UpperLeft, "lower_right", rc.Viewport.LowerRight,
		"iterations", rc.MaxIterations, "workers", rc.Workers)

	start := time.Now()
	pix := make([]byte, rc.Geometry.Pixels())
	if err := r.RenderContext(ctx, pix); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	logger.Info("rendered", "took", time.Since(start))

	if err := mandel.WriteImage(output, pix, rc.Geometry); err != nil {
		return err
	}
	logger.Info("image saved", "file", output)

	if cfg.Display {
		if err := display.Show(ctx, pix, rc.Geometry); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("display: %w", err)
		}
	}
	return nil
}
