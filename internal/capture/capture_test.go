package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenbridge/internal/backend/backendtest"
	"screenbridge/internal/display"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// writesImage emulates a capture tool that writes img to the path it is given
func writesImage(img image.Image) func(backendtest.Call) ([]byte, error) {
	return func(c backendtest.Call) ([]byte, error) {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return nil, os.WriteFile(c.Args[len(c.Args)-1], buf.Bytes(), 0o600)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "capture left files behind")
}

func TestCapturePNG(t *testing.T) {
	dir := t.TempDir()
	rec := &backendtest.Recorder{Handler: writesImage(solidImage(64, 48, color.NRGBA{R: 200, A: 255}))}
	c := New(rec, Options{Session: display.SessionX11, TempDir: dir})

	res, err := c.Capture(context.Background(), FormatPNG, DefaultQuality)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.ContentType)

	img, err := png.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "scrot", calls[0].Name)
	assert.Equal(t, "-o", calls[0].Args[0])
	assertEmptyDir(t, dir)
}

func TestCaptureJPEGFlattensAlpha(t *testing.T) {
	dir := t.TempDir()
	src := solidImage(32, 32, color.NRGBA{R: 10, G: 120, B: 240, A: 128})
	rec := &backendtest.Recorder{Handler: writesImage(src)}
	c := New(rec, Options{TempDir: dir})

	res, err := c.Capture(context.Background(), FormatJPEG, 80)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", res.ContentType)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, color.YCbCrModel, cfg.ColorModel, "expected a three-channel JPEG")

	img, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	_, ok := img.(*image.YCbCr)
	assert.True(t, ok)
	assertEmptyDir(t, dir)
}

func TestCaptureDecodeFailureRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	rec := &backendtest.Recorder{Handler: func(c backendtest.Call) ([]byte, error) {
		return nil, os.WriteFile(c.Args[len(c.Args)-1], []byte("not an image"), 0o600)
	}}
	c := New(rec, Options{TempDir: dir})

	res, err := c.Capture(context.Background(), FormatPNG, 0)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrCapture))
	assert.True(t, errors.Is(err, ErrDecode))
	assertEmptyDir(t, dir)
}

func TestCaptureX11FailureIsFinal(t *testing.T) {
	dir := t.TempDir()
	rec := &backendtest.Recorder{Handler: backendtest.Fail("scrot")}
	c := New(rec, Options{Session: display.SessionX11, TempDir: dir})

	_, err := c.Capture(context.Background(), FormatJPEG, 80)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapture))
	assert.Equal(t, []string{"scrot"}, callNames(rec))
	assertEmptyDir(t, dir)
}

func TestCaptureWaylandFallsBackToGnomeScreenshot(t *testing.T) {
	dir := t.TempDir()
	good := writesImage(solidImage(8, 8, color.NRGBA{G: 255, A: 255}))
	rec := &backendtest.Recorder{Handler: func(c backendtest.Call) ([]byte, error) {
		if c.Name == "grim" {
			return backendtest.Fail("grim")(c)
		}
		return good(c)
	}}
	c := New(rec, Options{Session: display.SessionWayland, TempDir: dir})
	require.Equal(t, StrategyWaylandGrim, c.Strategy())

	res, err := c.Capture(context.Background(), FormatPNG, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Data)

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "grim", calls[0].Name)
	assert.Equal(t, "gnome-screenshot", calls[1].Name)
	assert.Equal(t, "-f", calls[1].Args[0])
	assertEmptyDir(t, dir)
}

func TestCaptureWaylandWithoutGrim(t *testing.T) {
	rec := &backendtest.Recorder{
		Handler: writesImage(solidImage(4, 4, color.NRGBA{A: 255})),
		Missing: map[string]bool{"grim": true},
	}
	c := New(rec, Options{Session: display.SessionWayland, TempDir: t.TempDir()})
	require.Equal(t, StrategyWaylandFallback, c.Strategy())

	_, err := c.Capture(context.Background(), FormatPNG, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"gnome-screenshot"}, callNames(rec))
}

func TestCaptureRejectsUnknownFormat(t *testing.T) {
	rec := &backendtest.Recorder{}
	c := New(rec, Options{TempDir: t.TempDir()})

	_, err := c.Capture(context.Background(), Format("bmp"), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.Empty(t, rec.Calls())
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"jpeg": FormatJPEG, "JPG": FormatJPEG, "png": FormatPNG, " PNG ": FormatPNG} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("gif")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestClampQuality(t *testing.T) {
	assert.Equal(t, 1, clampQuality(-5))
	assert.Equal(t, 1, clampQuality(0))
	assert.Equal(t, 55, clampQuality(55))
	assert.Equal(t, 100, clampQuality(150))
}

func TestFlattenGrayProducesColor(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	res, err := Encode(gray, FormatJPEG, 90)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, color.YCbCrModel, cfg.ColorModel)
}

func callNames(rec *backendtest.Recorder) []string {
	var names []string
	for _, c := range rec.Calls() {
		names = append(names, c.Name)
	}
	return names
}
