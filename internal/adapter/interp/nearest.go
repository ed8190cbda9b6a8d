package interp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"go.ngs.io/glorys-ic/internal/domain"
)

// node is a source location on the unit sphere.
type node struct {
	xyz [3]float64
	idx int
}

func toSphere(lon, lat float64, idx int) node {
	lam := lon * math.Pi / 180
	phi := lat * math.Pi / 180
	return node{
		xyz: [3]float64{math.Cos(phi) * math.Cos(lam), math.Cos(phi) * math.Sin(lam), math.Sin(phi)},
		idx: idx,
	}
}

// Compare satisfies kdtree.Comparable.
func (n node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return n.xyz[d] - c.(node).xyz[d]
}

// Dims satisfies kdtree.Comparable.
func (n node) Dims() int { return 3 }

// Distance returns the squared chord length between two nodes.
func (n node) Distance(c kdtree.Comparable) float64 {
	q := c.(node)
	var sum float64
	for d := range n.xyz {
		diff := n.xyz[d] - q.xyz[d]
		sum += diff * diff
	}
	return sum
}

// nodes satisfies kdtree.Interface.
type nodes []node

func (p nodes) Index(i int) kdtree.Comparable { return p[i] }
func (p nodes) Len() int                      { return len(p) }
func (p nodes) Pivot(d kdtree.Dim) int        { return plane{nodes: p, Dim: d}.Pivot() }
func (p nodes) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// plane sorts nodes along one dimension.
type plane struct {
	kdtree.Dim
	nodes
}

func (p plane) Less(i, j int) bool { return p.nodes[i].xyz[p.Dim] < p.nodes[j].xyz[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.nodes = p.nodes[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i] }

// NearestWeights maps every destination point to its nearest source point
// by great-circle distance, with weight 1.
func NearestWeights(src, dst domain.Points) ([]Triplet, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}
	if err := dst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid destination: %w", err)
	}

	pts := make(nodes, 0, src.Len())
	for n := 0; n < src.Len(); n++ {
		if math.IsNaN(src.Lon[n]) || math.IsNaN(src.Lat[n]) {
			continue
		}
		pts = append(pts, toSphere(src.Lon[n], src.Lat[n], n))
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("source has no valid coordinates")
	}
	tree := kdtree.New(pts, false)

	out := make([]Triplet, 0, dst.Len())
	for row := 0; row < dst.Len(); row++ {
		if math.IsNaN(dst.Lon[row]) || math.IsNaN(dst.Lat[row]) {
			continue
		}
		best, _ := tree.Nearest(toSphere(dst.Lon[row], dst.Lat[row], -1))
		out = append(out, Triplet{Row: row, Col: best.(node).idx, S: 1})
	}
	return out, nil
}
