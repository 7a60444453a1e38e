// Package geo holds the coordinate types shared by the mapper, the elevation index and the
// photo georeferencer: affine transforms, reference systems, point samples and GeoJSON output.
package geo

// GeoJSONFeatureCollection represents a collection of geographic features.
// It follows the standard GeoJSON structure.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type" yaml:"type"`
	Features []GeoJSONFeature `json:"features" yaml:"features"`
}

// GeoJSONFeature represents a single geographic feature with geometry and properties.
type GeoJSONFeature struct {
	Properties map[string]interface{} `json:"properties" yaml:"properties"`
	Type       string                 `json:"type" yaml:"type"`
	Geometry   GeoJSONGeometry        `json:"geometry" yaml:"geometry"`
}

// GeoJSONGeometry represents the geometry of a feature.
// Coordinates are [Lon, Lat] or [Lon, Lat, Elevation].
type GeoJSONGeometry struct {
	Type        string    `json:"type" yaml:"type"`
	Coordinates []float64 `json:"coordinates" yaml:"coordinates"`
}

// NewFeatureCollection returns an empty collection ready to be appended to.
func NewFeatureCollection(capacity int) GeoJSONFeatureCollection {
	return GeoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]GeoJSONFeature, 0, capacity),
	}
}

// PointFeature builds a Point feature. The elevation is appended to the coordinates when set.
func PointFeature(lon, lat float64, z *float64, props map[string]interface{}) GeoJSONFeature {
	coords := []float64{lon, lat}
	if z != nil {
		coords = append(coords, *z)
	}

	return GeoJSONFeature{
		Type: "Feature",
		Geometry: GeoJSONGeometry{
			Type:        "Point",
			Coordinates: coords,
		},
		Properties: props,
	}
}
