// Package pointcloud loads LiDAR point clouds and brings them into geodetic coordinates.
package pointcloud

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/geolens/internal/geo"

	"github.com/rs/zerolog/log"
)

// ErrNoCRS is returned by Cloud.CRS when the file names no coordinate system.
var ErrNoCRS = errors.New("point cloud names no coordinate system")

// Cloud is a loaded point cloud in its source coordinates.
type Cloud struct {
	Points []geo.Point
	EPSG   int    // from a LAS GeoKey directory record
	WKT    string // from a LAS OGC WKT record
}

// CRS returns the coordinate system named by the file.
// The EPSG code is preferred over the WKT.
func (c *Cloud) CRS(defs map[string]string) (geo.CRS, error) {
	if c.EPSG != 0 {
		crs, err := geo.ParseCRS(fmt.Sprintf("EPSG:%d", c.EPSG), defs)
		if err == nil || c.WKT == "" {
			return crs, err
		}
	}
	if c.WKT != "" {
		return geo.CRS{ID: "LAS OGC WKT", Def: c.WKT}, nil
	}

	return geo.CRS{}, ErrNoCRS
}

// Load reads a point cloud, picking the reader by file extension.
// .las files are read as LAS, .xyz, .txt, .csv and .pts as ASCII columns.
func Load(path string) (*Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var cloud *Cloud
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".las":
		cloud, err = ReadLAS(path)
	case ".laz":
		err = ErrCompressed
	case ".xyz", ".txt", ".csv", ".pts":
		cloud, err = ReadXYZ(f)
	default:
		err = fmt.Errorf("unsupported point cloud extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("points", len(cloud.Points)).
		Int("epsg", cloud.EPSG).
		Bool("wkt", cloud.WKT != "").
		Msg("Point cloud loaded")

	return cloud, nil
}

// Reproject converts points from src to geodetic WGS 84 degrees (X = lon, Y = lat).
// Z is carried over unchanged. Points already in WGS 84 are returned as is.
func Reproject(points []geo.Point, src geo.CRS) ([]geo.Point, error) {
	if src.IsWGS84() {
		return points, nil
	}

	tr, err := geo.NewTransformer(src, geo.WGS84())
	if err != nil {
		return nil, err
	}

	out := make([]geo.Point, len(points))
	for i, p := range points {
		lon, lat, err := tr(p.X, p.Y)
		if err != nil {
			return nil, fmt.Errorf("reproject point %d (%f, %f): %w", i, p.X, p.Y, err)
		}
		out[i] = geo.Point{X: lon, Y: lat, Z: p.Z}
	}

	log.Debug().
		Str("from", src.String()).
		Int("points", len(out)).
		Msg("Point cloud reprojected to WGS 84")

	return out, nil
}
