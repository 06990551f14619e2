// Package codec decodes image files into pixels and encodes pixels back to
// disk.
//
// Decoding sniffs file content with mimetype so mislabelled frames still load,
// and reports ErrUnsupportedFormat for anything that is not a raster image.
// Encoding picks the format from the destination extension (png, jpeg, bmp,
// tiff) and maps Quality onto each format's own knob.
package codec
