package viz

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Downscale box-samples img to fit within maxW x maxH, preserving aspect
// ratio. The source is returned unchanged when it already fits.
func Downscale(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		sy0 := b.Min.Y + y*h/dh
		sy1 := b.Min.Y + (y+1)*h/dh
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		for x := 0; x < dw; x++ {
			sx0 := b.Min.X + x*w/dw
			sx1 := b.Min.X + (x+1)*w/dw
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}
			dst.Set(x, y, boxAverage(img, sx0, sy0, sx1, sy1))
		}
	}
	return dst
}

func boxAverage(img image.Image, x0, y0, x1, y1 int) color.Color {
	var r, g, b, a, n uint64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			pr, pg, pb, pa := img.At(x, y).RGBA()
			r += uint64(pr)
			g += uint64(pg)
			b += uint64(pb)
			a += uint64(pa)
			n++
		}
	}
	if n == 0 {
		return color.Transparent
	}
	return color.RGBA64{
		R: uint16(r / n),
		G: uint16(g / n),
		B: uint16(b / n),
		A: uint16(a / n),
	}
}

// RenderHalfBlocks renders img in color using the upper-half-block glyph:
// each terminal cell carries two vertically stacked pixels, the top one as
// the foreground color and the bottom one as the background.
func RenderHalfBlocks(img image.Image, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}
	cols, rows := fitCells(img.Bounds().Dx(), img.Bounds().Dy(), maxWidth, 1, 2)
	scaled := Downscale(img, cols, rows*2)
	b := scaled.Bounds()

	var out strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			top := flatten(scaled.At(x, y))
			bottom := color.RGBA{255, 255, 255, 255}
			if y+1 < b.Max.Y {
				bottom = flatten(scaled.At(x, y+1))
			}
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexColor(top))).
				Background(lipgloss.Color(hexColor(bottom)))
			out.WriteString(style.Render("▀"))
		}
		out.WriteString("\n")
	}
	return out.String()
}

// flatten composites a possibly transparent pixel over white, matching how
// the transparent-background GeoLift plots read on paper.
func flatten(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return color.RGBA{255, 255, 255, 255}
	}
	if a == 0xffff {
		return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 255}
	}
	// RGBA() is alpha-premultiplied, so compositing over white is just
	// adding the uncovered fraction.
	af := float64(a) / 0xffff
	blend := func(v uint32) uint8 {
		out := float64(v)/0xffff + (1 - af)
		if out > 1 {
			out = 1
		}
		return uint8(out * 255)
	}
	return color.RGBA{blend(r), blend(g), blend(b), 255}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// luminance returns perceived brightness and alpha in [0, 1].
func luminance(c color.Color) (float64, float64) {
	r, g, b, a := c.RGBA()
	l := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 0xffff
	return l, float64(a) / 0xffff
}

// fitCells converts image dimensions to terminal cell dimensions given the
// pixels-per-cell density, capping at maxWidth columns.
func fitCells(imgW, imgH, maxWidth, pxPerCol, pxPerRow int) (cols, rows int) {
	cols = maxWidth
	if imgW/pxPerCol < cols {
		cols = imgW / pxPerCol
	}
	if cols < 1 {
		cols = 1
	}
	// Preserve the source aspect ratio; a cell is roughly twice as tall
	// as it is wide.
	rows = cols * imgH * pxPerCol / (imgW * pxPerRow)
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}
