package geo

import (
	"fmt"
	"math"
	"strings"
)

// Point is a single point cloud sample.
type Point struct {
	X, Y, Z float64
}

// GPSFix is a position in decimal degrees.
type GPSFix struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the fix lies within the geodetic ranges.
func (f GPSFix) Validate() error {
	if math.IsNaN(f.Lat) || f.Lat < -90.0 || f.Lat > 90.0 {
		return fmt.Errorf("latitude %f out of valid range [-90, 90]", f.Lat)
	}
	if math.IsNaN(f.Lon) || f.Lon < -180.0 || f.Lon > 180.0 {
		return fmt.Errorf("longitude %f out of valid range [-180, 180]", f.Lon)
	}

	return nil
}

// DMSToDecimal converts degrees, minutes and seconds into decimal degrees.
// The result is negated for the southern and western hemispheres ("S", "W").
func DMSToDecimal(deg, min, sec float64, ref string) float64 {
	dec := deg + min/60.0 + sec/3600.0

	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -dec
	}

	return dec
}

// Affine maps pixel indices (col, row) to world coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// The coefficient order follows rasterio, GDAL order is available through FromGDAL/ToGDAL.
type Affine struct {
	A float64
	B float64
	C float64
	D float64
	E float64
	F float64
}

// FromGDAL creates an Affine from GDAL's geotransform representation.
func FromGDAL(gt [6]float64) Affine {
	return Affine{
		A: gt[1],
		B: gt[2],
		C: gt[0],
		D: gt[4],
		E: gt[5],
		F: gt[3],
	}
}

// ToGDAL converts the transform to GDAL's representation.
func (a Affine) ToGDAL() (gt [6]float64) {
	gt[0] = a.C
	gt[1] = a.A
	gt[2] = a.B
	gt[3] = a.F
	gt[4] = a.D
	gt[5] = a.E

	return gt
}

// Multiply applies the transform to (col, row).
func (a Affine) Multiply(col, row float64) (x, y float64) {
	return col*a.A + row*a.B + a.C, col*a.D + row*a.E + a.F
}

// PixelCenter returns the world coordinate of the centre of pixel (col, row).
func (a Affine) PixelCenter(col, row float64) (x, y float64) {
	return a.Multiply(col+0.5, row+0.5)
}

// Determinant of the linear part. Zero means the transform cannot be inverted.
func (a Affine) Determinant() float64 {
	return a.A*a.E - a.B*a.D
}

// Invert returns the world to pixel transform.
func (a Affine) Invert() (Affine, error) {
	det := a.Determinant()
	if det == 0 || math.IsNaN(det) {
		return Affine{}, fmt.Errorf("affine transform is not invertible: %s", a)
	}
	inv := 1 / det

	A := a.E * inv
	B := -a.B * inv
	D := -a.D * inv
	E := a.A * inv

	return Affine{
		A: A,
		B: B,
		C: -a.C*A - a.F*B,
		D: D,
		E: E,
		F: -a.C*D - a.F*E,
	}, nil
}

// IsRectilinear reports whether the transform has no rotation or shear terms.
func (a Affine) IsRectilinear() bool {
	return a.B == 0 && a.D == 0
}

// Resolution returns the absolute x, y pixel sizes.
func (a Affine) Resolution() (float64, float64) {
	return math.Abs(a.A), math.Abs(a.E)
}

func (a Affine) String() string {
	return fmt.Sprintf("Affine(%v, %v, %v, %v, %v, %v)", a.A, a.B, a.C, a.D, a.E, a.F)
}
