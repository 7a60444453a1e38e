package elevation

import (
	"github.com/woozymasta/geolens/internal/geo"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// sample is a cloud point compared on its horizontal coordinates only.
type sample geo.Point

// Compare returns the signed distance of s from the plane through c along dimension d.
func (s sample) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(sample)
	switch d {
	case 0:
		return s.X - q.X
	case 1:
		return s.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of indexed dimensions.
func (s sample) Dims() int { return 2 }

// Distance returns the squared horizontal distance between s and c.
func (s sample) Distance(c kdtree.Comparable) float64 {
	q := c.(sample)
	dx := s.X - q.X
	dy := s.Y - q.Y
	return dx*dx + dy*dy
}

type samples []sample

func (s samples) Index(i int) kdtree.Comparable         { return s[i] }
func (s samples) Len() int                              { return len(s) }
func (s samples) Pivot(d kdtree.Dim) int                { return plane{samples: s, Dim: d}.Pivot() }
func (s samples) Slice(start, end int) kdtree.Interface { return s[start:end] }

// plane sorts samples along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	samples
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.samples[i].X < p.samples[j].X
	case 1:
		return p.samples[i].Y < p.samples[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.samples = p.samples[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.samples[i], p.samples[j] = p.samples[j], p.samples[i]
}
