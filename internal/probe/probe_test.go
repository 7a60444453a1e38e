package probe

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/woozymasta/geolens/internal/config"
	"github.com/woozymasta/geolens/internal/geo"
	"github.com/woozymasta/geolens/internal/mapper"
	"github.com/woozymasta/geolens/internal/raster"

	"golang.org/x/image/webp"
	"gopkg.in/yaml.v3"
)

func writeRaster(t *testing.T, dir string, gt [6]float64, w, h int) string {
	t.Helper()

	img := &raster.RGB{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}

	path := filepath.Join(dir, "scene.tif")
	if _, err := raster.WriteFile(path, img, raster.Georef{Transform: geo.FromGDAL(gt), EPSG: 4326}); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeCloud(t *testing.T, dir, body string) string {
	t.Helper()

	path := filepath.Join(dir, "cloud.xyz")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var sceneGT = [6]float64{10, 0.001, 0, 50, 0, -0.001}

func TestSessionSample(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Threshold = 0.0005

	s := NewSession(cfg)
	if err := s.LoadRaster(writeRaster(t, dir, sceneGT, 20, 10), ""); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadCloud(writeCloud(t, dir, "10.0005 49.9995 123.4\n"), ""); err != nil {
		t.Fatal(err)
	}

	got, err := s.Sample(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Lon-10.0005) > 1e-9 || math.Abs(got.Lat-49.9995) > 1e-9 {
		t.Errorf("Sample(0, 0) = (%f, %f), want the centre of the first pixel", got.Lon, got.Lat)
	}
	if got.Z == nil || *got.Z != 123.4 {
		t.Errorf("Sample(0, 0).Z = %v, want 123.4", got.Z)
	}

	far, err := s.Sample(19, 9)
	if err != nil {
		t.Fatal(err)
	}
	if far.Z != nil {
		t.Errorf("Sample(19, 9).Z = %v, want none beyond the threshold", *far.Z)
	}

	for _, px := range [][2]int{{20, 0}, {0, 10}, {-1, 3}} {
		if _, err := s.Sample(px[0], px[1]); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Sample(%d, %d) error = %v, want ErrOutOfBounds", px[0], px[1], err)
		}
	}
}

func TestSessionReloadFollowsNewRaster(t *testing.T) {
	s := NewSession(nil)
	if err := s.LoadRaster(writeRaster(t, t.TempDir(), sceneGT, 20, 10), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Sample(15, 8); err != nil {
		t.Fatal(err)
	}

	if err := s.LoadRaster(writeRaster(t, t.TempDir(), [6]float64{20, 0.5, 0, 40, 0, -0.5}, 4, 2), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Sample(15, 8); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Sample(15, 8) after reload error = %v, want ErrOutOfBounds", err)
	}

	got, err := s.Sample(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Lon-21.75) > 1e-9 || math.Abs(got.Lat-39.25) > 1e-9 {
		t.Errorf("Sample(3, 1) = (%f, %f), want the new raster's (21.75, 39.25)", got.Lon, got.Lat)
	}
}

func TestSessionWithoutRaster(t *testing.T) {
	s := NewSession(nil)

	if _, err := s.Sample(0, 0); !errors.Is(err, mapper.ErrNoRasterLoaded) {
		t.Errorf("Sample() error = %v, want ErrNoRasterLoaded", err)
	}
	if _, err := s.Locate(10, 50); !errors.Is(err, mapper.ErrNoRasterLoaded) {
		t.Errorf("Locate() error = %v, want ErrNoRasterLoaded", err)
	}
	if err := s.WritePreview(filepath.Join(t.TempDir(), "p.webp")); !errors.Is(err, mapper.ErrNoRasterLoaded) {
		t.Errorf("WritePreview() error = %v, want ErrNoRasterLoaded", err)
	}
}

func TestSessionSampleWithoutCloud(t *testing.T) {
	s := NewSession(nil)
	if err := s.LoadRaster(writeRaster(t, t.TempDir(), sceneGT, 4, 4), ""); err != nil {
		t.Fatal(err)
	}

	got, err := s.Sample(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, z := got.Labels(); z != "Z: N/A" {
		t.Errorf("z label = %q, want Z: N/A", z)
	}
}

func TestSessionLocate(t *testing.T) {
	s := NewSession(nil)
	if err := s.LoadRaster(writeRaster(t, t.TempDir(), sceneGT, 20, 10), ""); err != nil {
		t.Fatal(err)
	}

	got, err := s.Locate(10.0071, 49.9952)
	if err != nil {
		t.Fatal(err)
	}
	if got.Col != 7 || got.Row != 4 {
		t.Errorf("Locate() pixel = (%d, %d), want (7, 4)", got.Col, got.Row)
	}

	if _, err := s.Locate(9.5, 50); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Locate() west of the raster error = %v, want ErrOutOfBounds", err)
	}
}

func TestSessionProjectedCloud(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.CloudCRS = "EPSG:32633"

	s := NewSession(cfg)
	if err := s.LoadRaster(writeRaster(t, dir, [6]float64{14.99, 0.001, 0, 0.005, 0, -0.001}, 20, 10), ""); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadCloud(writeCloud(t, dir, "500000 0 42\n"), ""); err != nil {
		t.Fatal(err)
	}

	got, err := s.Sample(10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.Z == nil || *got.Z != 42 {
		t.Errorf("Sample(10, 5).Z = %v, want 42 from the reprojected cloud", got.Z)
	}

	if err := s.LoadCloud(writeCloud(t, dir, "1 2 3\n"), "EPSG:99999"); err == nil {
		t.Error("LoadCloud() accepted an unknown CRS")
	}
}

func TestSessionRasterCRSOverride(t *testing.T) {
	cfg := config.Default()
	cfg.CRS = map[string]string{"local": "+proj=longlat +datum=WGS84 +no_defs"}

	s := NewSession(cfg)
	path := writeRaster(t, t.TempDir(), sceneGT, 4, 4)
	if err := s.LoadRaster(path, "local"); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadRaster(path, "nowhere"); err == nil {
		t.Error("LoadRaster() accepted an unknown CRS override")
	}
}

func TestWritePreview(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(nil)
	if err := s.LoadRaster(writeRaster(t, dir, sceneGT, 20, 10), ""); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "out", "preview.webp")
	if err := s.WritePreview(path); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := webp.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 20 || cfg.Height != 10 {
		t.Errorf("preview size = %dx%d, want 20x10", cfg.Width, cfg.Height)
	}
}

func TestLabels(t *testing.T) {
	z := 12.5
	lon, lat, zl := Sample{Lon: -79.9822221, Lat: 40.4461111, Z: &z}.Labels()

	if lon != "Lon: -79.982222" || lat != "Lat: 40.446111" || zl != "Z: 12.50" {
		t.Errorf("Labels() = %q, %q, %q", lon, lat, zl)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, []Sample{{Col: 3, Row: 4, Lon: 1, Lat: 2}}); err != nil {
		t.Fatal(err)
	}

	want := "3,4\tLon: 1.000000\tLat: 2.000000\tZ: N/A\n"
	if buf.String() != want {
		t.Errorf("WriteText() = %q, want %q", buf.String(), want)
	}
}

func TestSaveGeoJSON(t *testing.T) {
	z := 7.25
	samples := []Sample{
		{Col: 1, Row: 2, Lon: 10, Lat: 50, Z: &z},
		{Col: 3, Row: 4, Lon: 11, Lat: 51},
	}

	path := filepath.Join(t.TempDir(), "nested", "samples.geojson")
	if err := SaveGeoJSON(path, samples); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var fc geo.GeoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("collection = %+v", fc)
	}
	if got := fc.Features[0].Geometry.Coordinates; len(got) != 3 || got[2] != 7.25 {
		t.Errorf("first coordinates = %v, want elevation appended", got)
	}
	if got := fc.Features[1].Geometry.Coordinates; len(got) != 2 {
		t.Errorf("second coordinates = %v, want lon and lat only", got)
	}
	if fc.Features[1].Properties["col"] != float64(3) {
		t.Errorf("properties = %v", fc.Features[1].Properties)
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, []Sample{{Col: 1, Row: 2, Lon: 10, Lat: 50}}); err != nil {
		t.Fatal(err)
	}

	var fc geo.GeoJSONFeatureCollection
	if err := yaml.Unmarshal(buf.Bytes(), &fc); err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 1 || fc.Features[0].Geometry.Coordinates[0] != 10 {
		t.Errorf("collection = %+v", fc)
	}
}

func TestParsePixel(t *testing.T) {
	tests := []struct {
		in       string
		col, row int
		wantErr  bool
	}{
		{"10,20", 10, 20, false},
		{" 3 4 ", 3, 4, false},
		{"5;6", 5, 6, false},
		{"1", 0, 0, true},
		{"1,2,3", 0, 0, true},
		{"a,2", 0, 0, true},
		{"1.5,2", 0, 0, true},
	}

	for _, tt := range tests {
		col, row, err := ParsePixel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePixel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if col != tt.col || row != tt.row {
			t.Errorf("ParsePixel(%q) = (%d, %d), want (%d, %d)", tt.in, col, row, tt.col, tt.row)
		}
	}
}

func TestParseLonLat(t *testing.T) {
	lon, lat, err := ParseLonLat("-79.982222, 40.446111")
	if err != nil {
		t.Fatal(err)
	}
	if lon != -79.982222 || lat != 40.446111 {
		t.Errorf("ParseLonLat() = (%v, %v)", lon, lat)
	}

	if _, _, err := ParseLonLat("east,north"); err == nil {
		t.Error("ParseLonLat() accepted words")
	}
}
