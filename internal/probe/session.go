// Package probe samples a georeferenced raster and a point cloud at pixel positions.
package probe

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/woozymasta/geolens/internal/config"
	"github.com/woozymasta/geolens/internal/elevation"
	"github.com/woozymasta/geolens/internal/geo"
	"github.com/woozymasta/geolens/internal/mapper"
	"github.com/woozymasta/geolens/internal/pointcloud"
	"github.com/woozymasta/geolens/internal/raster"

	"github.com/rs/zerolog/log"
)

// ErrOutOfBounds is returned for positions outside the loaded raster.
var ErrOutOfBounds = mapper.ErrOutOfBounds

// Session holds the loaded raster, its pixel mapper and the elevation index.
// The mapper alone decides which pixels exist; the raster is kept for previews.
type Session struct {
	cfg    *config.Config
	mapper *mapper.GeoMapper
	index  *elevation.Index
	raster atomic.Pointer[raster.Raster]
}

// NewSession creates an empty session. A nil cfg uses the defaults.
func NewSession(cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Default()
	}

	return &Session{
		cfg:    cfg,
		mapper: mapper.New(),
		index:  elevation.New(elevation.WithThreshold(cfg.Threshold)),
	}
}

// LoadRaster opens a GeoTIFF and makes it the active raster.
// crsID overrides the system named by the file's GeoKeys when set.
func (s *Session) LoadRaster(path, crsID string) error {
	r, err := raster.Open(path)
	if err != nil {
		return err
	}

	var crs geo.CRS
	if crsID != "" {
		crs, err = geo.ParseCRS(crsID, s.cfg.CRS)
	} else {
		crs, err = r.Meta.CRS(s.cfg.CRS)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := s.mapper.SetRasterSize(r.Meta.Transform, crs, r.Meta.Width, r.Meta.Height); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	s.raster.Store(r)

	log.Info().
		Str("path", path).
		Str("crs", crs.String()).
		Msg("Raster ready for sampling")

	return nil
}

// LoadCloud reads a point cloud, brings it to WGS 84 degrees and rebuilds the elevation index.
//
// The source system is crsID if set, then the config's cloud_crs, then whatever the file names.
// Clouds naming nothing are taken to be WGS 84 degrees already.
func (s *Session) LoadCloud(path, crsID string) error {
	cloud, err := pointcloud.Load(path)
	if err != nil {
		return err
	}

	if crsID == "" {
		crsID = s.cfg.CloudCRS
	}

	var src geo.CRS
	switch {
	case crsID != "":
		src, err = geo.ParseCRS(crsID, s.cfg.CRS)
	default:
		src, err = cloud.CRS(s.cfg.CRS)
		if errors.Is(err, pointcloud.ErrNoCRS) {
			log.Warn().
				Str("path", path).
				Msg("Point cloud names no coordinate system, assuming WGS 84 degrees")
			src, err = geo.WGS84(), nil
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	points, err := pointcloud.Reproject(cloud.Points, src)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	s.index.Build(points)

	ev := log.Info().
		Str("path", path).
		Str("crs", src.String()).
		Int("points", s.index.Len()).
		Float64("threshold", s.index.Threshold())
	if b, ok := s.index.Bounds(); ok {
		ev = ev.Floats64("bounds", []float64{b.MinX, b.MinY, b.MaxX, b.MaxY})
	}
	ev.Msg("Elevation index built")

	return nil
}

// Sample maps pixel (col, row) to WGS 84 and looks up the nearest elevation.
func (s *Session) Sample(col, row int) (Sample, error) {
	lon, lat, err := s.mapper.PixelToGeo(float64(col), float64(row))
	if err != nil {
		return Sample{}, err
	}

	smp := Sample{Col: col, Row: row, Lon: lon, Lat: lat}
	if z, ok := s.index.Query(lon, lat); ok {
		smp.Z = &z
	}

	return smp, nil
}

// Locate finds the pixel covering a WGS 84 position and samples it.
func (s *Session) Locate(lon, lat float64) (Sample, error) {
	col, row, err := s.mapper.GeoToPixel(lon, lat)
	if err != nil {
		return Sample{}, err
	}
	if math.IsNaN(col) || math.IsNaN(row) || math.IsInf(col, 0) || math.IsInf(row, 0) {
		return Sample{}, fmt.Errorf("%w: (%f, %f) has no pixel position", ErrOutOfBounds, lon, lat)
	}

	return s.Sample(int(math.Round(col)), int(math.Round(row)))
}

// WritePreview renders the active raster as a normalised, downscaled WebP.
func (s *Session) WritePreview(path string) error {
	r := s.raster.Load()
	if r == nil {
		return mapper.ErrNoRasterLoaded
	}

	img := raster.Preview(r.Image, s.cfg.Preview.MaxSize)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	if err := raster.EncodePreview(f, img, s.cfg.Preview.Quality); err != nil {
		return fmt.Errorf("encode preview %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("Preview written")

	return nil
}
