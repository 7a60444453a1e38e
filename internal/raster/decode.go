package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/tiff"
)

// ErrDecode wraps raster decoding failures.
var ErrDecode = errors.New("raster decode failed")

// Raster is a decoded GeoTIFF.
type Raster struct {
	Image image.Image
	Meta  *Metadata
}

// Open reads and decodes a GeoTIFF from disk.
func Open(path string) (*Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	r, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	xres, yres := r.Meta.Transform.Resolution()
	log.Info().
		Str("path", path).
		Int("width", r.Meta.Width).
		Int("height", r.Meta.Height).
		Int("bands", r.Meta.Bands).
		Int("epsg", r.Meta.EPSG).
		Floats64("resolution", []float64{xres, yres}).
		Str("transform", r.Meta.Transform.String()).
		Msg("Raster loaded")

	return r, nil
}

// Decode parses the georeferencing and the pixels of an in-memory GeoTIFF.
func Decode(data []byte) (*Raster, error) {
	meta, err := ReadMetadata(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return &Raster{Image: img, Meta: meta}, nil
}
