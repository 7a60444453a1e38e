package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/woozymasta/geolens/internal/geo"
	"github.com/woozymasta/geolens/internal/raster"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultPixelSize is the ground size of one output pixel in degrees (about 1.1 m at the equator).
const DefaultPixelSize = 0.00001

var (
	// ErrNoGPSMetadata is returned by Georeference for photos without a GPS fix.
	ErrNoGPSMetadata = errors.New("no GPS metadata")

	// ErrDecode wraps failures to decode the photo pixels.
	ErrDecode = errors.New("image decode failed")
)

// Transform centres a width x height footprint of pixelSize degrees on fix, north up.
// The half extent uses integer halving of the pixel counts.
func Transform(fix geo.GPSFix, width, height int, pixelSize float64) geo.Affine {
	return geo.FromGDAL([6]float64{
		fix.Lon - float64(width/2)*pixelSize,
		pixelSize,
		0,
		fix.Lat + float64(height/2)*pixelSize,
		0,
		-pixelSize,
	})
}

// Georeference writes the photo as a 3-band byte GeoTIFF in EPSG:4326, centred on its GPS fix.
//
// Photos without a GPS fix fail with ErrNoGPSMetadata before the sink is touched.
// Sink failures are reported as raster.ErrWrite. The number of bytes written is returned.
func Georeference(data []byte, sink raster.Sink, pixelSize float64) (int64, error) {
	if pixelSize <= 0 {
		return 0, fmt.Errorf("pixel size must be > 0, got %v", pixelSize)
	}

	fix, err := ExtractGPS(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoGPSMetadata, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	rgb := raster.ToRGB(img)
	transform := Transform(fix, rgb.Width, rgb.Height, pixelSize)

	log.Debug().
		Str("format", format).
		Float64("lat", fix.Lat).
		Float64("lon", fix.Lon).
		Int("width", rgb.Width).
		Int("height", rgb.Height).
		Float64("pixel_size", pixelSize).
		Str("transform", transform.String()).
		Msg("Photo decoded")

	ref := raster.Georef{Transform: transform, EPSG: geo.WGS84EPSG}
	return sink.WriteRaster(func(w io.Writer) (int64, error) {
		return raster.Encode(w, rgb, ref)
	})
}
