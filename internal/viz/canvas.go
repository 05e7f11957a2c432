package viz

import (
	"image"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800 // Empty braille char
		}
	}
	return c
}

// Set sets a pixel at (x, y) in sub-pixel coordinates. The canvas size in
// sub-pixels is (Width*2) x (Height*4).
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// Clear resets the canvas
func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800
		}
	}
}

// DrawImage draws img onto the canvas, one sub-pixel per sampled source
// pixel. Pixels darker than the luminance threshold are set; a transparent
// background therefore renders as empty cells.
func (c *Canvas) DrawImage(img image.Image, threshold float64) {
	scaled := Downscale(img, c.Width*2, c.Height*4)
	b := scaled.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			l, a := luminance(scaled.At(x, y))
			if a > 0.5 && l < threshold {
				c.Set(x-b.Min.X, y-b.Min.Y)
			}
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// RenderBraille renders img as monochrome braille text fitting maxWidth
// terminal columns.
func RenderBraille(img image.Image, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}
	b := img.Bounds()
	cols, rows := fitCells(b.Dx(), b.Dy(), maxWidth, 2, 4)
	canvas := NewCanvas(cols, rows)
	canvas.DrawImage(img, 0.55)
	return canvas.String()
}
