package raster

import (
	"errors"
	"fmt"
	"io"

	"github.com/woozymasta/geolens/internal/geo"

	"github.com/rwcarlsen/goexif/tiff"
)

// ErrNotGeoreferenced is returned for TIFFs without a model transform.
var ErrNotGeoreferenced = errors.New("tiff carries no georeferencing tags")

// Metadata describes a GeoTIFF's grid and georeferencing.
type Metadata struct {
	Width     int
	Height    int
	Bands     int
	Transform geo.Affine
	EPSG      int // 0 when the GeoKey directory names no EPSG code
}

// ReadMetadata parses the first IFD of a GeoTIFF.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	t, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode tiff tags: %w", err)
	}
	if len(t.Dirs) == 0 {
		return nil, errors.New("tiff has no image directory")
	}

	tags := make(map[uint16]*tiff.Tag, len(t.Dirs[0].Tags))
	for _, tag := range t.Dirs[0].Tags {
		tags[tag.Id] = tag
	}

	meta := &Metadata{Bands: 1}
	if meta.Width, err = intTag(tags, tagImageWidth); err != nil {
		return nil, err
	}
	if meta.Height, err = intTag(tags, tagImageLength); err != nil {
		return nil, err
	}
	if n, err := intTag(tags, tagSamplesPerPixel); err == nil {
		meta.Bands = n
	}

	rasterType := rasterPixelIsArea
	if keys, ok := tags[tagGeoKeyDirectory]; ok {
		meta.EPSG, rasterType = parseGeoKeys(keys)
	}

	switch {
	case tags[tagModelTransformation] != nil:
		m, err := floatTag(tags[tagModelTransformation], 16)
		if err != nil {
			return nil, fmt.Errorf("ModelTransformation: %w", err)
		}
		meta.Transform = geo.Affine{A: m[0], B: m[1], C: m[3], D: m[4], E: m[5], F: m[7]}

	case tags[tagModelPixelScale] != nil && tags[tagModelTiepoint] != nil:
		scale, err := floatTag(tags[tagModelPixelScale], 2)
		if err != nil {
			return nil, fmt.Errorf("ModelPixelScale: %w", err)
		}
		tie, err := floatTag(tags[tagModelTiepoint], 6)
		if err != nil {
			return nil, fmt.Errorf("ModelTiepoint: %w", err)
		}
		// tiepoint maps pixel (I, J) to (X, Y)
		meta.Transform = geo.Affine{
			A: scale[0],
			C: tie[3] - tie[0]*scale[0],
			E: -scale[1],
			F: tie[4] + tie[1]*scale[1],
		}

	default:
		return nil, ErrNotGeoreferenced
	}

	// PixelIsPoint anchors the tiepoint at the pixel centre
	if rasterType == rasterPixelIsPoint {
		meta.Transform.C -= 0.5 * (meta.Transform.A + meta.Transform.B)
		meta.Transform.F -= 0.5 * (meta.Transform.D + meta.Transform.E)
	}

	return meta, nil
}

// CRS resolves the EPSG code to a reference system.
func (m *Metadata) CRS(defs map[string]string) (geo.CRS, error) {
	if m.EPSG == 0 {
		return geo.CRS{}, fmt.Errorf("%w: GeoKey directory names no EPSG code", geo.ErrUnknownCRS)
	}

	return geo.ParseCRS(fmt.Sprintf("EPSG:%d", m.EPSG), defs)
}

func intTag(tags map[uint16]*tiff.Tag, id uint16) (int, error) {
	tag, ok := tags[id]
	if !ok {
		return 0, fmt.Errorf("missing tiff tag %d", id)
	}

	v, err := tag.Int(0)
	if err != nil {
		return 0, fmt.Errorf("tiff tag %d: %w", id, err)
	}

	return v, nil
}

func floatTag(tag *tiff.Tag, min int) ([]float64, error) {
	if int(tag.Count) < min {
		return nil, fmt.Errorf("expected at least %d values, got %d", min, tag.Count)
	}

	vals := make([]float64, tag.Count)
	for i := range vals {
		v, err := tag.Float(i)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}

	return vals, nil
}

// parseGeoKeys extracts the EPSG code and the raster type from the GeoKey directory.
func parseGeoKeys(tag *tiff.Tag) (epsg int, rasterType int) {
	rasterType = rasterPixelIsArea

	keys := make([]int, tag.Count)
	for i := range keys {
		v, err := tag.Int(i)
		if err != nil {
			return 0, rasterType
		}
		keys[i] = v
	}

	return GeoKeyEPSG(keys)
}

// GeoKeyEPSG reads the EPSG code and the raster type from a GeoKey directory
// given as its raw SHORT values. It is shared by GeoTIFF tags and LAS projection records.
func GeoKeyEPSG(keys []int) (epsg int, rasterType int) {
	rasterType = rasterPixelIsArea
	if len(keys) < 4 {
		return 0, rasterType
	}

	var projected, geographic int

	// header: KeyDirectoryVersion, KeyRevision, MinorRevision, NumberOfKeys
	for i := 0; i < keys[3]; i++ {
		base := 4 + i*4
		if base+3 >= len(keys) {
			break
		}
		// only keys stored inline (location 0) are used
		if keys[base+1] != 0 {
			continue
		}

		// 32767 is "user defined"
		v := keys[base+3]
		switch keys[base] {
		case gkRasterType:
			rasterType = v
		case gkProjectedType:
			if v > 0 && v != 32767 {
				projected = v
			}
		case gkGeographicType:
			if v > 0 && v != 32767 {
				geographic = v
			}
		}
	}

	// a projected system also names its datum's geographic system
	if projected != 0 {
		return projected, rasterType
	}

	return geographic, rasterType
}
