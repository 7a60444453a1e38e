// Package elevation looks up point cloud elevations near a horizontal position.
package elevation

import (
	"math"
	"sync/atomic"

	"github.com/woozymasta/geolens/internal/geo"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// DefaultThreshold is the maximum distance, in index units, between a query
// and the nearest point for its elevation to be reported.
const DefaultThreshold = 1.0

// Index is a nearest-neighbour index over the (x, y) columns of a point cloud.
// Build replaces the whole index at once; queries never mix two clouds.
type Index struct {
	threshold float64
	current   atomic.Pointer[snapshot]
}

type snapshot struct {
	tree   *kdtree.Tree
	count  int
	bounds Bounds
}

// Bounds is the horizontal extent of the indexed points.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Option configures an Index.
type Option func(*Index)

// WithThreshold sets the query distance threshold. Non-positive values are ignored.
func WithThreshold(threshold float64) Option {
	return func(ix *Index) {
		if threshold > 0 && !math.IsInf(threshold, 0) {
			ix.threshold = threshold
		}
	}
}

// New returns an empty index.
func New(opts ...Option) *Index {
	ix := &Index{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(ix)
	}

	return ix
}

// Threshold returns the configured query distance threshold.
func (ix *Index) Threshold() float64 {
	return ix.threshold
}

// Build indexes points, replacing any previous index. The slice is copied.
func (ix *Index) Build(points []geo.Point) {
	snap := &snapshot{count: len(points)}

	if len(points) > 0 {
		pts := make(samples, 0, len(points))
		b := Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
		for _, p := range points {
			pts = append(pts, sample(p))
			b.MinX = math.Min(b.MinX, p.X)
			b.MinY = math.Min(b.MinY, p.Y)
			b.MaxX = math.Max(b.MaxX, p.X)
			b.MaxY = math.Max(b.MaxY, p.Y)
		}
		snap.tree = kdtree.New(pts, false)
		snap.bounds = b
	}

	ix.current.Store(snap)

	log.Debug().
		Int("points", snap.count).
		Float64("threshold", ix.threshold).
		Msg("KD-tree rebuilt")
}

// Query returns the elevation of the point nearest to (lon, lat) if it is closer than
// the threshold. ok is false when no point qualifies or nothing was built yet.
func (ix *Index) Query(lon, lat float64) (z float64, ok bool) {
	snap := ix.current.Load()
	if snap == nil || snap.tree == nil {
		return 0, false
	}

	got, dist2 := snap.tree.Nearest(sample{X: lon, Y: lat})
	if got == nil {
		return 0, false
	}

	// kdtree distances are squared; NaN must not pass
	if !(dist2 < ix.threshold*ix.threshold) {
		return 0, false
	}

	return got.(sample).Z, true
}

// Len returns the number of indexed points.
func (ix *Index) Len() int {
	snap := ix.current.Load()
	if snap == nil {
		return 0
	}

	return snap.count
}

// Bounds returns the horizontal extent of the indexed points.
// ok is false for an empty index.
func (ix *Index) Bounds() (b Bounds, ok bool) {
	snap := ix.current.Load()
	if snap == nil || snap.count == 0 {
		return Bounds{}, false
	}

	return snap.bounds, true
}
