package elevation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/woozymasta/geolens/internal/geo"
)

func TestQueryBeforeBuild(t *testing.T) {
	ix := New()
	if _, ok := ix.Query(0, 0); ok {
		t.Error("Query() before Build() reported an elevation")
	}
	if ix.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ix.Len())
	}
}

func TestQueryEmptyCloud(t *testing.T) {
	ix := New()
	ix.Build(nil)

	for _, q := range [][2]float64{{0, 0}, {-79.98, 40.44}, {1e9, -1e9}} {
		if _, ok := ix.Query(q[0], q[1]); ok {
			t.Errorf("Query(%v) on an empty index reported an elevation", q)
		}
	}
	if _, ok := ix.Bounds(); ok {
		t.Error("Bounds() reported an extent for an empty index")
	}
}

func TestQueryThreshold(t *testing.T) {
	ix := New()
	ix.Build([]geo.Point{{X: 0, Y: 0, Z: 10.0}})

	tests := []struct {
		name   string
		lon    float64
		lat    float64
		want   float64
		wantOK bool
	}{
		{name: "far away", lon: 2.0, lat: 2.0, wantOK: false},
		{name: "next to the point", lon: 0.0000001, lat: 0.0, want: 10.0, wantOK: true},
		{name: "exactly on the point", lon: 0, lat: 0, want: 10.0, wantOK: true},
		{name: "exactly at the threshold", lon: 1.0, lat: 0, wantOK: false},
		{name: "just inside the threshold", lon: 0.6, lat: 0.79, want: 10.0, wantOK: true},
		{name: "nan position", lon: math.NaN(), lat: math.NaN(), wantOK: false},
		{name: "nan longitude", lon: math.NaN(), lat: 0, wantOK: false},
		{name: "positive infinity", lon: math.Inf(1), lat: 0, wantOK: false},
		{name: "negative infinity", lon: 0, lat: math.Inf(-1), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ix.Query(tt.lon, tt.lat)
			if ok != tt.wantOK {
				t.Fatalf("Query(%v, %v) ok = %v, want %v", tt.lon, tt.lat, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Query(%v, %v) = %v, want %v", tt.lon, tt.lat, got, tt.want)
			}
		})
	}
}

func TestWithThreshold(t *testing.T) {
	ix := New(WithThreshold(0.01))
	ix.Build([]geo.Point{{X: 5, Y: 5, Z: 1}})

	if _, ok := ix.Query(5.02, 5); ok {
		t.Error("Query() ignored the configured threshold")
	}
	if z, ok := ix.Query(5.005, 5); !ok || z != 1 {
		t.Errorf("Query() = %v, %v; want 1, true", z, ok)
	}

	if New(WithThreshold(-1)).Threshold() != DefaultThreshold {
		t.Error("negative threshold was accepted")
	}
}

func TestQueryEveryPointReturnsItsElevation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := make([]geo.Point, 500)
	for i := range points {
		// unique positions so every point is its own nearest neighbour
		points[i] = geo.Point{
			X: float64(i%25) + rng.Float64()*0.5,
			Y: float64(i/25) + rng.Float64()*0.5,
			Z: float64(i),
		}
	}

	ix := New(WithThreshold(0.1))
	ix.Build(points)

	if ix.Len() != len(points) {
		t.Fatalf("Len() = %d, want %d", ix.Len(), len(points))
	}

	for _, p := range points {
		z, ok := ix.Query(p.X, p.Y)
		if !ok || z != p.Z {
			t.Fatalf("Query(%v, %v) = %v, %v; want %v", p.X, p.Y, z, ok, p.Z)
		}
	}
}

func TestQueryMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	points := make([]geo.Point, 2000)
	for i := range points {
		points[i] = geo.Point{X: rng.Float64() * 100, Y: rng.Float64() * 100, Z: rng.Float64() * 1000}
	}

	ix := New(WithThreshold(5))
	ix.Build(points)

	for i := 0; i < 200; i++ {
		qx, qy := rng.Float64()*110-5, rng.Float64()*110-5

		best := math.Inf(1)
		for _, p := range points {
			best = math.Min(best, math.Hypot(p.X-qx, p.Y-qy))
		}

		z, ok := ix.Query(qx, qy)
		if ok != (best < 5) {
			t.Fatalf("Query(%v, %v) ok = %v, nearest distance %v", qx, qy, ok, best)
		}
		if !ok {
			continue
		}

		// the returned elevation must belong to a point at the nearest distance
		found := false
		for _, p := range points {
			if p.Z == z && math.Abs(math.Hypot(p.X-qx, p.Y-qy)-best) < 1e-9 {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("Query(%v, %v) = %v is not the elevation of a nearest point", qx, qy, z)
		}
	}
}

func TestBuildReplacesPreviousCloud(t *testing.T) {
	ix := New()
	ix.Build([]geo.Point{{X: 0, Y: 0, Z: 111}, {X: 10, Y: 10, Z: 222}})

	if z, ok := ix.Query(0, 0); !ok || z != 111 {
		t.Fatalf("Query() = %v, %v; want 111, true", z, ok)
	}

	ix.Build([]geo.Point{{X: 100, Y: 100, Z: 333}})

	if z, ok := ix.Query(0, 0); ok {
		t.Errorf("Query() returned %v from the replaced cloud", z)
	}
	if z, ok := ix.Query(10, 10); ok {
		t.Errorf("Query() returned %v from the replaced cloud", z)
	}
	if z, ok := ix.Query(100, 100); !ok || z != 333 {
		t.Errorf("Query() = %v, %v; want 333, true", z, ok)
	}
	if ix.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ix.Len())
	}
}

func TestBuildDoesNotReorderInput(t *testing.T) {
	points := []geo.Point{{X: 3, Y: 0, Z: 3}, {X: 1, Y: 0, Z: 1}, {X: 2, Y: 0, Z: 2}}
	orig := append([]geo.Point(nil), points...)

	New().Build(points)

	for i := range points {
		if points[i] != orig[i] {
			t.Fatalf("Build() modified its input: %v", points)
		}
	}
}

func TestBounds(t *testing.T) {
	ix := New()
	ix.Build([]geo.Point{{X: -1, Y: 4, Z: 0}, {X: 3, Y: -2, Z: 0}})

	b, ok := ix.Bounds()
	if !ok {
		t.Fatal("Bounds() reported no extent")
	}
	want := Bounds{MinX: -1, MinY: -2, MaxX: 3, MaxY: 4}
	if b != want {
		t.Errorf("Bounds() = %+v, want %+v", b, want)
	}
}
