// Package photo turns geotagged photos into georeferenced GeoTIFFs.
package photo

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/woozymasta/geolens/internal/geo"

	"github.com/rwcarlsen/goexif/exif"
)

// ErrGPSNotFound is returned when the photo has no complete GPS tag group.
var ErrGPSNotFound = errors.New("no GPS metadata found in image")

// ExtractGPS reads the EXIF GPS position of a photo.
//
// GPSLatitude, GPSLongitude and their hemisphere references must all be present,
// each coordinate as three rationals (degrees, minutes, seconds).
func ExtractGPS(data []byte) (geo.GPSFix, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return geo.GPSFix{}, fmt.Errorf("%w: %w", ErrGPSNotFound, err)
	}

	lat, err := coordinate(x, exif.GPSLatitude, exif.GPSLatitudeRef)
	if err != nil {
		return geo.GPSFix{}, err
	}
	lon, err := coordinate(x, exif.GPSLongitude, exif.GPSLongitudeRef)
	if err != nil {
		return geo.GPSFix{}, err
	}

	fix := geo.GPSFix{Lat: lat, Lon: lon}
	if err := fix.Validate(); err != nil {
		return geo.GPSFix{}, fmt.Errorf("%w: %w", ErrGPSNotFound, err)
	}

	return fix, nil
}

func coordinate(x *exif.Exif, value, ref exif.FieldName) (float64, error) {
	tag, err := x.Get(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrGPSNotFound, value, err)
	}
	if tag.Count < 3 {
		return 0, fmt.Errorf("%w: %s holds %d values, want 3", ErrGPSNotFound, value, tag.Count)
	}

	var dms [3]float64
	for i := range dms {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrGPSNotFound, value, err)
		}
		if den == 0 {
			return 0, fmt.Errorf("%w: %s has a zero denominator", ErrGPSNotFound, value)
		}
		dms[i] = float64(num) / float64(den)
	}

	refTag, err := x.Get(ref)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrGPSNotFound, ref, err)
	}
	hemisphere, err := refTag.StringVal()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrGPSNotFound, ref, err)
	}

	return geo.DMSToDecimal(dms[0], dms[1], dms[2], hemisphere), nil
}
