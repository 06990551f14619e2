package codec_test

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"imageseq/internal/codec"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	return img
}

func TestEncodeDecodeEachFormat(t *testing.T) {
	c := codec.New()
	src := gradient(8, 6)

	for _, ext := range []string{"png", "jpg", "jpeg", "bmp", "tiff", "tif"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "frame."+ext)
			require.NoError(t, c.Encode(src, path, codec.QualityBest))

			got, err := c.Decode(path)
			require.NoError(t, err)
			require.Equal(t, src.Bounds(), got.Bounds())
		})
	}
}

func TestDecodeSniffsMislabelledContent(t *testing.T) {
	c := codec.New()
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "real.png")
	require.NoError(t, c.Encode(gradient(4, 4), pngPath, codec.QualityHigh))

	// PNG bytes behind a .jpg name still decode.
	mislabelled := filepath.Join(dir, "fake.jpg")
	data, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mislabelled, data, 0o644))

	img, err := c.Decode(mislabelled)
	require.NoError(t, err)
	require.Equal(t, 4, img.Bounds().Dx())
}

func TestDecodeRejectsNonImages(t *testing.T) {
	c := codec.New()
	dir := t.TempDir()

	textFile := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(textFile, []byte("definitely not pixels\n"), 0o644))
	_, err := c.Decode(textFile)
	require.ErrorIs(t, err, codec.ErrUnsupportedFormat)

	truncated := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(truncated, []byte("\x89PNG\r\n\x1a\n\x00\x00"), 0o644))
	_, err = c.Decode(truncated)
	require.Error(t, err)

	_, err = c.Decode(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

func TestEncodeRejectsUnknownExtension(t *testing.T) {
	err := codec.New().Encode(gradient(2, 2), filepath.Join(t.TempDir(), "frame.webp"), codec.QualityBest)
	require.ErrorIs(t, err, codec.ErrUnsupportedFormat)
	require.False(t, codec.CanEncode("webp"))
	require.True(t, codec.CanEncode(".TIFF"))
}

func TestQualityAffectsJPEGSize(t *testing.T) {
	c := codec.New()
	dir := t.TempDir()
	src := gradient(64, 64)

	best := filepath.Join(dir, "best.jpg")
	worst := filepath.Join(dir, "worst.jpg")
	require.NoError(t, c.Encode(src, best, codec.QualityBest))
	require.NoError(t, c.Encode(src, worst, codec.QualityWorst))

	bestInfo, err := os.Stat(best)
	require.NoError(t, err)
	worstInfo, err := os.Stat(worst)
	require.NoError(t, err)
	require.Greater(t, bestInfo.Size(), worstInfo.Size())
}

func TestParseQuality(t *testing.T) {
	for _, name := range []string{"best", "HIGH", " medium ", "low", "worst"} {
		q, err := codec.ParseQuality(name)
		require.NoError(t, err, name)
		require.NotEmpty(t, q.String())
	}
	q, err := codec.ParseQuality("")
	require.NoError(t, err)
	require.Equal(t, codec.QualityBest, q)

	_, err = codec.ParseQuality("superb")
	require.Error(t, err)
}

func TestExtensionsReturnsCopy(t *testing.T) {
	exts := codec.Extensions()
	require.Equal(t, []string{"png", "jpg", "jpeg", "tiff", "bmp"}, exts)
	exts[0] = "mutated"
	require.Equal(t, "png", codec.Extensions()[0])
}
