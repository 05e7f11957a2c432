package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanlrappa/geo-testing/internal/rscript"
)

// fakeExecutor records calls and serves canned payloads.
type fakeExecutor struct {
	scripts []string
	fetched []string

	execErr  error
	fetchErr error
	payload  []byte
}

func (f *fakeExecutor) Execute(_ context.Context, script string) error {
	f.scripts = append(f.scripts, script)
	return f.execErr
}

func (f *fakeExecutor) Fetch(_ context.Context, expr string) ([]byte, error) {
	f.fetched = append(f.fetched, expr)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.payload, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 30), uint8(y * 40), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCapture(t *testing.T) {
	exec := &fakeExecutor{payload: testPNG(t)}
	plot, err := rscript.MarketPlot(rscript.DefaultObjects(), 3)
	require.NoError(t, err)

	res, err := Capture(context.Background(), exec, plot, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Image)
	assert.Equal(t, 8, res.Image.Bounds().Dx())
	assert.Equal(t, 6, res.Image.Bounds().Dy())
	assert.NotEmpty(t, res.PNG)

	// No setup fragment: exactly one Execute (the render) and one Fetch.
	require.Len(t, exec.scripts, 1)
	require.Len(t, exec.fetched, 1)
	assert.Equal(t, ".geolift_png", exec.fetched[0])

	render := exec.scripts[0]
	assert.Contains(t, render, "plot(MarketSelections, market_ID = 3, print_summary = TRUE)")
	assert.Contains(t, render, "grDevices::png(f, width = 800, height = 600, pointsize = 16")
	assert.Contains(t, render, "on.exit(unlink(f), add = TRUE)")
	assert.Contains(t, render, "readBin(f")
}

func TestCapture_Deterministic(t *testing.T) {
	exec := &fakeExecutor{payload: testPNG(t)}
	plot, err := rscript.GeoPlot("GeoPlot(GeoTestData_PreTest)")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res, err := Capture(context.Background(), exec, plot, DefaultOptions())
		require.NoError(t, err, "call %d", i)
		require.NotNil(t, res.Image, "call %d", i)
	}
}

func TestCapture_SetupRunsFirst(t *testing.T) {
	exec := &fakeExecutor{payload: testPNG(t)}
	plot, err := rscript.MulticellPlot(rscript.DefaultObjects(), []int{1, 2})
	require.NoError(t, err)

	_, err = Capture(context.Background(), exec, plot, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, exec.scripts, 2)
	assert.True(t, strings.HasPrefix(exec.scripts[0], "test_locs <- list("))
	assert.Contains(t, exec.scripts[1], ".geolift_capture")
}

func TestCapture_ExecuteErrorPropagates(t *testing.T) {
	wantErr := errors.New("object 'MarketSelections' not found")
	exec := &fakeExecutor{execErr: wantErr}
	plot, _ := rscript.MarketPlot(rscript.DefaultObjects(), 99)

	_, err := Capture(context.Background(), exec, plot, DefaultOptions())
	assert.ErrorIs(t, err, wantErr)
}

func TestCapture_FetchErrorPropagates(t *testing.T) {
	wantErr := errors.New("fetch failed")
	exec := &fakeExecutor{fetchErr: wantErr}
	plot, _ := rscript.MarketPlot(rscript.DefaultObjects(), 3)

	_, err := Capture(context.Background(), exec, plot, DefaultOptions())
	assert.ErrorIs(t, err, wantErr)
}

func TestCapture_EmptyPayload(t *testing.T) {
	exec := &fakeExecutor{payload: nil}
	plot, _ := rscript.MarketPlot(rscript.DefaultObjects(), 3)

	_, err := Capture(context.Background(), exec, plot, DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyPlot)
}

func TestCapture_CorruptPayload(t *testing.T) {
	exec := &fakeExecutor{payload: []byte("this is not a png")}
	plot, _ := rscript.MarketPlot(rscript.DefaultObjects(), 3)

	_, err := Capture(context.Background(), exec, plot, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding plot")
}

func TestOptionsNormalized(t *testing.T) {
	opts := Options{Width: -1, Height: 0, PointSize: 0, Background: `white"); q(); cat("`}.normalized()
	def := DefaultOptions()
	assert.Equal(t, def.Width, opts.Width)
	assert.Equal(t, def.Height, opts.Height)
	assert.Equal(t, def.PointSize, opts.PointSize)
	assert.Equal(t, def.Background, opts.Background)

	kept := Options{Width: 400, Height: 300, PointSize: 12, Background: "white"}.normalized()
	assert.Equal(t, 400, kept.Width)
	assert.Equal(t, "white", kept.Background)
}
