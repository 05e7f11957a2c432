// Package capture renders a GeoLift plot inside the R session and brings
// it back as a decoded raster image.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"regexp"

	"github.com/ryanlrappa/geo-testing/internal/rbridge"
	"github.com/ryanlrappa/geo-testing/internal/rscript"
)

// ErrEmptyPlot indicates the render produced no bytes at all, typically a
// plot expression that evaluated to nothing drawable.
var ErrEmptyPlot = errors.New("capture: empty plot payload")

var backgroundRe = regexp.MustCompile(`^[#A-Za-z0-9]+$`)

// Options control the R-side raster device.
type Options struct {
	Width      int
	Height     int
	PointSize  int
	Background string
}

func DefaultOptions() Options {
	return Options{Width: 800, Height: 600, PointSize: 16, Background: "transparent"}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.PointSize <= 0 {
		o.PointSize = d.PointSize
	}
	if !backgroundRe.MatchString(o.Background) {
		o.Background = d.Background
	}
	return o
}

// Result is one captured plot.
type Result struct {
	Image image.Image
	PNG   []byte
}

// Capture runs the plot's setup fragment (if any), renders its expression
// through a png device into an R-side temp file, reads the file back into
// a raw vector and unlinks it, then fetches and decodes the bytes.
//
// The temp file lives entirely inside R: created fresh per call, fully
// written before readBin, removed via on.exit even when rendering fails.
func Capture(ctx context.Context, exec rbridge.Executor, plot rscript.Plot, opts Options) (*Result, error) {
	opts = opts.normalized()

	if plot.Setup != "" {
		if err := exec.Execute(ctx, plot.Setup); err != nil {
			return nil, err
		}
	}

	render := fmt.Sprintf(`.geolift_capture <- function() {
  p <- %s
  f <- tempfile(fileext = ".png")
  on.exit(unlink(f), add = TRUE)
  grDevices::png(f, width = %d, height = %d, pointsize = %d, bg = "%s")
  print(p)
  grDevices::dev.off()
  readBin(f, what = "raw", n = file.info(f)$size)
}
.geolift_png <- .geolift_capture()`,
		plot.Expr, opts.Width, opts.Height, opts.PointSize, opts.Background)

	if err := exec.Execute(ctx, render); err != nil {
		return nil, err
	}

	raw, err := exec.Fetch(ctx, ".geolift_png")
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPlot
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("capture: decoding plot: %w", err)
	}

	return &Result{Image: img, PNG: raw}, nil
}
