package codec

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"imageseq/internal/fileutil"
)

// ErrUnsupportedFormat reports a file whose content or extension has no codec.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Decoder turns an image file into pixels.
type Decoder interface {
	Decode(path string) (image.Image, error)
}

// Encoder persists pixels to path; the format follows the path extension.
type Encoder interface {
	Encode(img image.Image, path string, quality Quality) error
}

// Codec is the filesystem-backed Decoder and Encoder.
type Codec struct{}

// New returns the default codec.
func New() Codec { return Codec{} }

type decodeFunc func(io.Reader) (image.Image, error)

var decodersByMIME = map[string]decodeFunc{
	"image/png":  png.Decode,
	"image/jpeg": jpeg.Decode,
	"image/gif":  gif.Decode,
	"image/bmp":  bmp.Decode,
	"image/tiff": tiff.Decode,
}

var decodersByExt = map[string]decodeFunc{
	"png":  png.Decode,
	"jpg":  jpeg.Decode,
	"jpeg": jpeg.Decode,
	"gif":  gif.Decode,
	"bmp":  bmp.Decode,
	"tif":  tiff.Decode,
	"tiff": tiff.Decode,
}

// defaultImportExtensions is the allow-list applied by folder scans.
var defaultImportExtensions = []string{"png", "jpg", "jpeg", "tiff", "bmp"}

// Extensions returns a copy of the default import allow-list.
func Extensions() []string {
	out := make([]string, len(defaultImportExtensions))
	copy(out, defaultImportExtensions)
	return out
}

// NormalizeExt lower-cases ext and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// CanEncode reports whether Encode supports the extension.
func CanEncode(ext string) bool {
	switch NormalizeExt(ext) {
	case "png", "jpg", "jpeg", "bmp", "tif", "tiff":
		return true
	default:
		return false
	}
}

// Decode sniffs the file content to pick a decoder, falling back to the
// extension when the content type is not recognised.
func (Codec) Decode(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	decode, err := pickDecoder(reader, path)
	if err != nil {
		return nil, err
	}
	img, err := decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func pickDecoder(reader *bufio.Reader, path string) (decodeFunc, error) {
	// Peek keeps the bytes in the buffer for the real decode.
	head, _ := reader.Peek(3072)
	mtype := mimetype.Detect(head)
	for m := mtype; m != nil; m = m.Parent() {
		if fn, ok := decodersByMIME[m.String()]; ok {
			return fn, nil
		}
	}
	if len(head) > 0 && !strings.HasPrefix(mtype.String(), "application/octet-stream") {
		return nil, fmt.Errorf("%s is %s: %w", filepath.Base(path), mtype.String(), ErrUnsupportedFormat)
	}
	if fn, ok := decodersByExt[NormalizeExt(filepath.Ext(path))]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
}

// Encode writes img to path atomically using the encoder for the path
// extension.
func (Codec) Encode(img image.Image, path string, quality Quality) error {
	if img == nil {
		return errors.New("encode: nil image")
	}
	ext := NormalizeExt(filepath.Ext(path))
	var write func(io.Writer) error
	switch ext {
	case "png":
		enc := png.Encoder{CompressionLevel: quality.pngCompression()}
		write = func(w io.Writer) error { return enc.Encode(w, img) }
	case "jpg", "jpeg":
		write = func(w io.Writer) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: quality.jpegQuality()})
		}
	case "bmp":
		write = func(w io.Writer) error { return bmp.Encode(w, img) }
	case "tif", "tiff":
		compression := quality.tiffCompression()
		write = func(w io.Writer) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: compression, Predictor: compression == tiff.Deflate})
		}
	default:
		return fmt.Errorf("encode %q: %w", ext, ErrUnsupportedFormat)
	}
	return fileutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		buffered := bufio.NewWriter(w)
		if err := write(buffered); err != nil {
			return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
		return buffered.Flush()
	})
}
