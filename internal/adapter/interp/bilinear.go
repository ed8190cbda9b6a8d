package interp

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"go.ngs.io/glorys-ic/internal/domain"
)

// Triplet is one sparse weight: destination Row receives S times source Col.
type Triplet struct {
	Row int
	Col int
	S   float64
}

// GridCell represents a cell in a regular grid.
type GridCell struct {
	// Corner coordinates (forming a rectangle).
	X0, X1 float64 // X boundaries (e.g., longitude).
	Y0, Y1 float64 // Y boundaries (e.g., latitude).
}

// CellWeights returns the bilinear weights of the four corners of a cell,
// in the order (X0,Y0), (X1,Y0), (X0,Y1), (X1,Y1).
// Formula:
//
//	f(x,y) ≈ (1-t)(1-u)f(x0,y0) + t(1-u)f(x1,y0) + (1-t)u*f(x0,y1) + tu*f(x1,y1)
//
// where:
//
//	t = (x - x0) / (x1 - x0)
//	u = (y - y0) / (y1 - y0)
func CellWeights(cell GridCell, x, y float64) ([4]float64, error) {
	// Validate grid cell.
	if cell.X1 <= cell.X0 {
		return [4]float64{}, fmt.Errorf("invalid grid cell: X1 must be > X0")
	}
	if cell.Y1 <= cell.Y0 {
		return [4]float64{}, fmt.Errorf("invalid grid cell: Y1 must be > Y0")
	}

	// Check if point is within cell (with small tolerance for floating point).
	const epsilon = 1e-9
	if x < cell.X0-epsilon || x > cell.X1+epsilon {
		return [4]float64{}, fmt.Errorf("x coordinate %.6f is outside grid cell [%.6f, %.6f]", x, cell.X0, cell.X1)
	}
	if y < cell.Y0-epsilon || y > cell.Y1+epsilon {
		return [4]float64{}, fmt.Errorf("y coordinate %.6f is outside grid cell [%.6f, %.6f]", y, cell.Y0, cell.Y1)
	}

	// Calculate normalized coordinates (0 to 1).
	t := (x - cell.X0) / (cell.X1 - cell.X0)
	u := (y - cell.Y0) / (cell.Y1 - cell.Y0)

	// Clamp to [0, 1] to handle edge cases with floating point precision.
	t = math.Max(0, math.Min(1, t))
	u = math.Max(0, math.Min(1, u))

	return [4]float64{(1 - t) * (1 - u), t * (1 - u), (1 - t) * u, t * u}, nil
}

// sortedAxis is a 1-D axis in increasing order with the original index of
// every entry.
type sortedAxis struct {
	values []float64
	index  []int
}

func newSortedAxis(values []float64) (sortedAxis, error) {
	a := sortedAxis{values: append([]float64(nil), values...), index: make([]int, len(values))}
	floats.Argsort(a.values, a.index)
	if len(a.values) < 2 {
		return a, fmt.Errorf("axis must have at least 2 coordinates")
	}
	// Check that coordinates are sorted and unique.
	for i := 1; i < len(a.values); i++ {
		if a.values[i] <= a.values[i-1] {
			return a, fmt.Errorf("axis coordinates must be unique, %g repeats", a.values[i])
		}
	}
	return a, nil
}

// locate returns the lower index of the interval containing v, or -1.
func (a sortedAxis) locate(v float64) int {
	n := len(a.values)
	if math.IsNaN(v) || v < a.values[0] || v > a.values[n-1] {
		return -1
	}
	i := sort.SearchFloat64s(a.values, v)
	if i == n {
		i = n - 1
	}
	if i > 0 && a.values[i] > v {
		i--
	}
	if i == n-1 {
		i = n - 2
	}
	return i
}

// BilinearWeights maps a rectilinear source mesh onto destination points.
// Columns index the source mesh row-major in its original (lat, lon) order.
// Destinations outside the source mesh receive no weights.
func BilinearWeights(src, dst domain.Points) ([]Triplet, error) {
	if !src.Rectilinear() {
		return nil, fmt.Errorf("bilinear weights need a rectilinear source")
	}
	if err := dst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid destination: %w", err)
	}
	xs, err := newSortedAxis(src.LonAxis)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	ys, err := newSortedAxis(src.LatAxis)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}

	nx := len(src.LonAxis)
	out := make([]Triplet, 0, 4*dst.Len())
	for row := 0; row < dst.Len(); row++ {
		x, y := dst.Lon[row], dst.Lat[row]
		xi, yi := xs.locate(x), ys.locate(y)
		if xi < 0 || yi < 0 {
			continue
		}
		cell := GridCell{
			X0: xs.values[xi],
			X1: xs.values[xi+1],
			Y0: ys.values[yi],
			Y1: ys.values[yi+1],
		}
		w, err := CellWeights(cell, x, y)
		if err != nil {
			return nil, fmt.Errorf("destination %d: %w", row, err)
		}
		corners := [4]int{
			ys.index[yi]*nx + xs.index[xi],
			ys.index[yi]*nx + xs.index[xi+1],
			ys.index[yi+1]*nx + xs.index[xi],
			ys.index[yi+1]*nx + xs.index[xi+1],
		}
		for c, col := range corners {
			if w[c] == 0 {
				continue
			}
			out = append(out, Triplet{Row: row, Col: col, S: w[c]})
		}
	}
	return out, nil
}
