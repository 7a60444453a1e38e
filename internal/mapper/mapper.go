// Package mapper converts raster pixel positions to geodetic longitude/latitude.
package mapper

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/woozymasta/geolens/internal/geo"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNoRasterLoaded is returned by lookups made before SetRaster.
	ErrNoRasterLoaded = errors.New("no raster loaded")

	// ErrOutOfBounds is returned for pixels outside a raster of known size.
	ErrOutOfBounds = errors.New("position outside the raster")
)

// raster pairs a transform with the CRS and size of the same raster.
// It is never modified after SetRaster publishes it.
type raster struct {
	transform geo.Affine
	crs       geo.CRS

	// zero when the size is unknown
	width, height int

	// reprojection to WGS 84 and back, built on first use
	proj *projCache
}

type projCache struct {
	once   sync.Once
	fwd    geo.Transformer
	inv    geo.Transformer
	err    error
	crsID  string
	crsDef string
}

func (c *projCache) load(crs geo.CRS) (geo.Transformer, geo.Transformer, error) {
	c.once.Do(func() {
		c.fwd, c.err = geo.NewTransformer(crs, geo.WGS84())
		if c.err != nil {
			return
		}
		c.inv, c.err = geo.NewTransformer(geo.WGS84(), crs)

		log.Debug().
			Str("crs", crs.ID).
			Bool("identity", crs.IsWGS84()).
			Err(c.err).
			Msg("Reprojection to WGS 84 built")
	})

	return c.fwd, c.inv, c.err
}

// GeoMapper holds the transform and CRS of the currently displayed raster.
// Both are replaced together; lookups running during a replace finish against the old pair.
type GeoMapper struct {
	current atomic.Pointer[raster]
}

// New returns a mapper with no raster loaded.
func New() *GeoMapper {
	return &GeoMapper{}
}

// SetRaster installs the pixel to world transform and the CRS of a newly loaded raster.
// The cached reprojection is kept when the CRS identifier is unchanged.
func (m *GeoMapper) SetRaster(transform geo.Affine, crs geo.CRS) error {
	return m.SetRasterSize(transform, crs, 0, 0)
}

// SetRasterSize is SetRaster for a raster of width x height pixels.
// PixelToGeo then rejects pixels outside it.
func (m *GeoMapper) SetRasterSize(transform geo.Affine, crs geo.CRS, width, height int) error {
	if _, err := transform.Invert(); err != nil {
		return err
	}
	if width < 0 || height < 0 {
		return fmt.Errorf("invalid raster size %dx%d", width, height)
	}

	next := &raster{transform: transform, crs: crs, width: width, height: height}
	if prev := m.current.Load(); prev != nil && prev.proj.crsID == crs.ID && prev.proj.crsDef == crs.Def {
		next.proj = prev.proj
	} else {
		next.proj = &projCache{crsID: crs.ID, crsDef: crs.Def}
	}

	m.current.Store(next)

	log.Debug().
		Str("crs", crs.ID).
		Str("transform", transform.String()).
		Int("width", width).
		Int("height", height).
		Msg("Raster set on mapper")

	return nil
}

// Loaded reports whether a raster has been set.
func (m *GeoMapper) Loaded() bool {
	return m.current.Load() != nil
}

// CRS returns the source CRS of the current raster.
func (m *GeoMapper) CRS() (geo.CRS, error) {
	r := m.current.Load()
	if r == nil {
		return geo.CRS{}, ErrNoRasterLoaded
	}

	return r.crs, nil
}

// Size returns the pixel size of the current raster, zero when it was set without one.
func (m *GeoMapper) Size() (width, height int, err error) {
	r := m.current.Load()
	if r == nil {
		return 0, 0, ErrNoRasterLoaded
	}

	return r.width, r.height, nil
}

func (r *raster) contains(col, row float64) bool {
	if r.width == 0 && r.height == 0 {
		return true
	}

	return col >= 0 && row >= 0 && col < float64(r.width) && row < float64(r.height)
}

// PixelToGeo maps the centre of pixel (col, row) to WGS 84 longitude and latitude.
func (m *GeoMapper) PixelToGeo(col, row float64) (lon, lat float64, err error) {
	r := m.current.Load()
	if r == nil {
		return 0, 0, ErrNoRasterLoaded
	}
	if !r.contains(col, row) {
		return 0, 0, fmt.Errorf("%w: pixel (%v, %v) in a %dx%d raster",
			ErrOutOfBounds, col, row, r.width, r.height)
	}

	fwd, _, err := r.proj.load(r.crs)
	if err != nil {
		return 0, 0, err
	}

	x, y := r.transform.PixelCenter(col, row)
	lon, lat, err = fwd(x, y)
	if err != nil {
		return 0, 0, fmt.Errorf("reproject (%f, %f) from %s: %w", x, y, r.crs.ID, err)
	}

	return lon, lat, nil
}

// GeoToPixel is the inverse of PixelToGeo: it returns the fractional pixel index
// whose centre maps to (lon, lat).
func (m *GeoMapper) GeoToPixel(lon, lat float64) (col, row float64, err error) {
	r := m.current.Load()
	if r == nil {
		return 0, 0, ErrNoRasterLoaded
	}

	_, inv, err := r.proj.load(r.crs)
	if err != nil {
		return 0, 0, err
	}

	x, y, err := inv(lon, lat)
	if err != nil {
		return 0, 0, fmt.Errorf("reproject (%f, %f) to %s: %w", lon, lat, r.crs.ID, err)
	}

	world, err := r.transform.Invert()
	if err != nil {
		return 0, 0, err
	}

	col, row = world.Multiply(x, y)
	return col - 0.5, row - 0.5, nil
}
