package viz

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDownscale(t *testing.T) {
	src := solid(800, 600, color.RGBA{100, 150, 200, 255})
	dst := Downscale(src, 80, 80)

	b := dst.Bounds()
	if b.Dx() > 80 || b.Dy() > 80 {
		t.Errorf("not downscaled: %dx%d", b.Dx(), b.Dy())
	}
	// Aspect ratio preserved: 800x600 -> 80x60.
	if b.Dx() != 80 || b.Dy() != 60 {
		t.Errorf("expected 80x60, got %dx%d", b.Dx(), b.Dy())
	}

	r, g, bl, _ := dst.At(10, 10).RGBA()
	if r>>8 != 100 || g>>8 != 150 || bl>>8 != 200 {
		t.Errorf("solid color changed by box sampling: %d %d %d", r>>8, g>>8, bl>>8)
	}
}

func TestDownscale_SmallImageUntouched(t *testing.T) {
	src := solid(10, 10, color.White)
	if dst := Downscale(src, 80, 80); dst != src {
		t.Error("image already within bounds should be returned as-is")
	}
}

func TestRenderHalfBlocks(t *testing.T) {
	out := RenderHalfBlocks(solid(8, 8, color.RGBA{255, 0, 0, 255}), 8)
	if out == "" {
		t.Fatal("empty render")
	}
	if !strings.Contains(out, "▀") {
		t.Error("expected half-block glyphs")
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Errorf("8px tall image should render 4 rows, got %d", len(lines))
	}
}

func TestRenderBraille(t *testing.T) {
	out := RenderBraille(solid(8, 8, color.Black), 10)
	if !strings.ContainsRune(out, '⣿') {
		t.Error("black image should fill braille cells")
	}

	blank := RenderBraille(solid(8, 8, color.White), 10)
	if strings.ContainsRune(blank, '⣿') {
		t.Error("white image should leave braille cells empty")
	}
}

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	if c.Grid[0][0] == 0x2800 {
		t.Error("pixel not set")
	}
	c.Clear()
	if c.Grid[0][0] != 0x2800 {
		t.Error("clear did not reset cell")
	}

	// Out-of-bounds writes are ignored.
	c.Set(-1, 0)
	c.Set(100, 100)
}

func TestFitCells(t *testing.T) {
	cols, rows := fitCells(800, 600, 100, 1, 2)
	if cols != 100 {
		t.Errorf("expected width cap 100, got %d", cols)
	}
	if rows != 37 {
		t.Errorf("expected 37 rows for 4:3 at halved height, got %d", rows)
	}

	cols, rows = fitCells(4, 4, 80, 2, 4)
	if cols != 2 || rows != 1 {
		t.Errorf("tiny image: expected 2x1 cells, got %dx%d", cols, rows)
	}
}
