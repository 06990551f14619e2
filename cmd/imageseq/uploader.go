package main

import (
	"image"
	"os"
	"path/filepath"

	"imageseq/internal/codec"
	"imageseq/internal/framestore"
)

// fileUploader stands in for a texture upload on the command line: the bound
// frame is written to dest and the path becomes the display handle.
type fileUploader struct {
	encoder codec.Encoder
	dest    string
	quality codec.Quality
	uploads int
}

func newFileUploader(dest string, quality codec.Quality) *fileUploader {
	return &fileUploader{encoder: codec.New(), dest: filepath.Clean(dest), quality: quality}
}

func (u *fileUploader) Upload(pixels image.Image, _ framestore.Filter) (framestore.Handle, error) {
	if err := os.MkdirAll(filepath.Dir(u.dest), 0o755); err != nil {
		return nil, err
	}
	if err := u.encoder.Encode(pixels, u.dest, u.quality); err != nil {
		return nil, err
	}
	u.uploads++
	return u.dest, nil
}
