package centerline

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// vertex is a centerline point tagged with its position along the path
type vertex struct {
	r3.Vec
	idx int
}

// Compare implements the kdtree.Comparable interface
func (p vertex) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(vertex)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p vertex) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p vertex) Distance(c kdtree.Comparable) float64 {
	q := c.(vertex)
	return r3.Norm2(r3.Sub(p.Vec, q.Vec))
}

// vertices is a collection of vertex that satisfies kdtree.Interface
type vertices []vertex

func (p vertices) Index(i int) kdtree.Comparable         { return p[i] }
func (p vertices) Len() int                              { return len(p) }
func (p vertices) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p vertices) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(vertexPlane{vertices: p, Dim: d}, kdtree.MedianOfRandoms(vertexPlane{vertices: p, Dim: d}, 100))
}

// vertexPlane implements sort.Interface and kdtree.SortSlicer for vertices
type vertexPlane struct {
	vertices
	kdtree.Dim
}

func (p vertexPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.vertices[i].X < p.vertices[j].X
	case 1:
		return p.vertices[i].Y < p.vertices[j].Y
	case 2:
		return p.vertices[i].Z < p.vertices[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	return vertexPlane{vertices: p.vertices[start:end], Dim: p.Dim}
}

func (p vertexPlane) Swap(i, j int) {
	p.vertices[i], p.vertices[j] = p.vertices[j], p.vertices[i]
}

// Index answers nearest-point queries against a Result. It is safe for
// concurrent use once built.
type Index struct {
	res  *Result
	tree *kdtree.Tree
}

// NewIndex builds a kd-tree over the points of res.
func NewIndex(res *Result) *Index {
	pts := make(vertices, len(res.points))
	for i, p := range res.points {
		pts[i] = vertex{Vec: p, idx: i}
	}
	return &Index{res: res, tree: kdtree.New(pts, false)}
}

// Nearest returns the index of the centerline point closest to p and its
// distance in mm.
func (x *Index) Nearest(p r3.Vec) (int, float64) {
	c, d2 := x.tree.Nearest(vertex{Vec: p})
	return c.(vertex).idx, math.Sqrt(d2)
}

// DistanceTo returns the distance from p to the centerline polyline and the
// radius interpolated at the closest point. Only the segments adjacent to
// the nearest vertex are examined.
func (x *Index) DistanceTo(p r3.Vec) (dist, radius float64) {
	i, d := x.Nearest(p)
	dist, radius = d, x.res.radii[i]

	for _, seg := range [2][2]int{{i - 1, i}, {i, i + 1}} {
		a, b := seg[0], seg[1]
		if a < 0 || b >= len(x.res.points) {
			continue
		}
		pa, pb := x.res.points[a], x.res.points[b]
		ab := r3.Sub(pb, pa)
		t := math.Max(0, math.Min(1, r3.Dot(r3.Sub(p, pa), ab)/r3.Norm2(ab)))
		if sd := r3.Norm(r3.Sub(p, r3.Add(pa, r3.Scale(t, ab)))); sd < dist {
			dist = sd
			radius = x.res.radii[a] + t*(x.res.radii[b]-x.res.radii[a])
		}
	}
	return dist, radius
}

// Contains reports whether p lies inside the tube described by the result.
func (x *Index) Contains(p r3.Vec) bool {
	d, r := x.DistanceTo(p)
	return d <= r
}
