package probe

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/woozymasta/geolens/internal/geo"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Sample is the result of probing one pixel.
type Sample struct {
	Z   *float64 // nil when no point lies within the threshold
	Col int
	Row int
	Lon float64
	Lat float64
}

// Labels returns the three display strings for the sample.
func (s Sample) Labels() (lon, lat, z string) {
	z = "Z: N/A"
	if s.Z != nil {
		z = fmt.Sprintf("Z: %.2f", *s.Z)
	}

	return fmt.Sprintf("Lon: %.6f", s.Lon), fmt.Sprintf("Lat: %.6f", s.Lat), z
}

func (s Sample) String() string {
	lon, lat, z := s.Labels()
	return fmt.Sprintf("%d,%d\t%s\t%s\t%s", s.Col, s.Row, lon, lat, z)
}

// WriteText writes one line per sample.
func WriteText(w io.Writer, samples []Sample) error {
	for _, s := range samples {
		if _, err := fmt.Fprintln(w, s); err != nil {
			return err
		}
	}

	return nil
}

// FeatureCollection converts samples to GeoJSON points carrying their pixel position.
func FeatureCollection(samples []Sample) geo.GeoJSONFeatureCollection {
	fc := geo.NewFeatureCollection(len(samples))
	for _, s := range samples {
		props := map[string]interface{}{
			"col": s.Col,
			"row": s.Row,
		}
		if s.Z != nil {
			props["z"] = *s.Z
		}
		fc.Features = append(fc.Features, geo.PointFeature(s.Lon, s.Lat, s.Z, props))
	}

	return fc
}

// WriteGeoJSON encodes the samples as a feature collection.
func WriteGeoJSON(w io.Writer, samples []Sample) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(FeatureCollection(samples))
}

// WriteYAML encodes the feature collection as YAML.
func WriteYAML(w io.Writer, samples []Sample) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FeatureCollection(samples)); err != nil {
		return err
	}
	return enc.Close()
}

// SaveGeoJSON writes the samples to a GeoJSON file, creating its directory.
func SaveGeoJSON(path string, samples []Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	// We care about write errors on close
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	return WriteGeoJSON(f, samples)
}
