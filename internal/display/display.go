// Package display presents captured plots: inline in the terminal, or
// through the platform image viewer.
package display

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ryanlrappa/geo-testing/internal/viz"
)

// ErrNoViewer indicates no platform image viewer could be determined.
var ErrNoViewer = errors.New("display: no image viewer available")

// Displayer shows one captured plot. Exactly one display path runs per
// call.
type Displayer interface {
	Display(img image.Image, png []byte, title string) error
}

// Inline renders the plot directly into the terminal.
type Inline struct {
	Out   io.Writer // defaults to os.Stdout
	Width int       // terminal columns, defaults to 80
	Mono  bool      // braille rendering instead of color half-blocks
}

func (d *Inline) Display(img image.Image, _ []byte, title string) error {
	out := d.Out
	if out == nil {
		out = os.Stdout
	}

	var body string
	if d.Mono {
		body = viz.RenderBraille(img, d.Width)
	} else {
		body = viz.RenderHalfBlocks(img, d.Width)
	}

	if title != "" {
		if _, err := fmt.Fprintln(out, viz.Title.Render(title)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(out, body)
	return err
}

// Viewer writes the plot to a fresh temporary .png and opens it with the
// platform image viewer, synchronously. The temp file is removed when the
// viewer command returns, so nothing survives the call.
type Viewer struct {
	Command []string // viewer argv, path appended; empty selects per-platform
	TempDir string   // defaults to the system temp dir
	Logger  *zap.Logger
}

func (v *Viewer) Display(_ image.Image, png []byte, title string) error {
	f, err := os.CreateTemp(v.TempDir, "geolift-*.png")
	if err != nil {
		return err
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.Write(png); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	argv := v.Command
	if len(argv) == 0 {
		argv = defaultViewer()
	}
	if len(argv) == 0 {
		return ErrNoViewer
	}
	argv = append(append([]string{}, argv...), name)

	if v.Logger != nil {
		v.Logger.Debug("opening image viewer",
			zap.String("viewer", argv[0]),
			zap.String("file", filepath.Base(name)))
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("display: viewer %s: %w", argv[0], err)
	}
	return nil
}

// ParseViewer splits a configured viewer command line into argv form.
func ParseViewer(command string) []string {
	return strings.Fields(command)
}
