package domain

import (
	"fmt"
	"math"
)

// VerticalGrid holds the target layer structure.
type VerticalGrid struct {
	Interfaces []float64 // Interface depths in meters, starting at 0.
	Layers     []float64 // Layer mid-depths in meters.
}

// NewVerticalGrid builds a grid from layer thicknesses.
func NewVerticalGrid(dz []float64) (*VerticalGrid, error) {
	if len(dz) == 0 {
		return nil, fmt.Errorf("vertical grid has no layers")
	}
	zi := make([]float64, len(dz)+1)
	for k, h := range dz {
		if !(h > 0) {
			return nil, fmt.Errorf("layer %d has non-positive thickness %g", k, h)
		}
		zi[k+1] = zi[k] + h
	}
	zl := make([]float64, len(dz))
	for k := range zl {
		zl[k] = 0.5 * (zi[k] + zi[k+1])
	}
	g := &VerticalGrid{Interfaces: zi, Layers: zl}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks that layers are strictly increasing.
func (g *VerticalGrid) Validate() error {
	if len(g.Layers) == 0 {
		return fmt.Errorf("vertical grid has no layers")
	}
	for k := 1; k < len(g.Layers); k++ {
		if g.Layers[k] <= g.Layers[k-1] {
			return fmt.Errorf("layer depths must be strictly increasing (layer %d: %g after %g)", k, g.Layers[k], g.Layers[k-1])
		}
	}
	return nil
}

// BoundingBox is a geographic window in degrees.
type BoundingBox struct {
	LonMin, LonMax float64
	LatMin, LatMax float64
}

// Validate checks that the box is not inverted.
func (b BoundingBox) Validate() error {
	if b.LonMin >= b.LonMax {
		return fmt.Errorf("bounding box lon_min %g must be below lon_max %g", b.LonMin, b.LonMax)
	}
	if b.LatMin >= b.LatMax {
		return fmt.Errorf("bounding box lat_min %g must be below lat_max %g", b.LatMin, b.LatMax)
	}
	return nil
}

// FieldRequest describes one source variable to load.
type FieldRequest struct {
	Path     string
	Variable string
	Box      BoundingBox
	Stride   int  // Lat/lon decimation; 1 keeps every point.
	Surface  bool // Keep only the shallowest level and drop the depth axis.
}

// Points is a set of (lon, lat) locations laid out as NY rows of NX.
type Points struct {
	NY, NX int
	Lon    []float64
	Lat    []float64

	// LonAxis and LatAxis are set when the points form a rectilinear mesh.
	LonAxis []float64
	LatAxis []float64
}

// RectilinearPoints expands 1-D axes into a mesh.
func RectilinearPoints(lat, lon []float64) Points {
	p := Points{
		NY:      len(lat),
		NX:      len(lon),
		Lon:     make([]float64, len(lat)*len(lon)),
		Lat:     make([]float64, len(lat)*len(lon)),
		LonAxis: append([]float64(nil), lon...),
		LatAxis: append([]float64(nil), lat...),
	}
	for j, y := range lat {
		for i, x := range lon {
			p.Lon[j*p.NX+i] = x
			p.Lat[j*p.NX+i] = y
		}
	}
	return p
}

// Len returns the number of points.
func (p Points) Len() int { return p.NY * p.NX }

// Rectilinear reports whether 1-D axes are attached.
func (p Points) Rectilinear() bool { return p.LonAxis != nil && p.LatAxis != nil }

// Validate checks array lengths.
func (p Points) Validate() error {
	if p.NY <= 0 || p.NX <= 0 {
		return fmt.Errorf("points have empty shape %dx%d", p.NY, p.NX)
	}
	if len(p.Lon) != p.Len() || len(p.Lat) != p.Len() {
		return fmt.Errorf("points shape %dx%d does not match %d lon / %d lat values", p.NY, p.NX, len(p.Lon), len(p.Lat))
	}
	return nil
}

// HorizontalGrid is a MOM6 supergrid of shape (NYP, NXP) = (2*NY+1, 2*NX+1).
type HorizontalGrid struct {
	NYP, NXP int
	X        []float64 // Longitude, row-major.
	Y        []float64 // Latitude, row-major.
	Angle    []float64 // Local rotation angle in radians.
}

// NX returns the number of tracer columns.
func (g *HorizontalGrid) NX() int { return (g.NXP - 1) / 2 }

// NY returns the number of tracer rows.
func (g *HorizontalGrid) NY() int { return (g.NYP - 1) / 2 }

// Validate checks shapes and that the angle is defined at every tracer point.
func (g *HorizontalGrid) Validate() error {
	if g.NXP < 3 || g.NYP < 3 || g.NXP%2 == 0 || g.NYP%2 == 0 {
		return fmt.Errorf("supergrid shape %dx%d is not (2n+1)x(2m+1)", g.NYP, g.NXP)
	}
	n := g.NYP * g.NXP
	if len(g.X) != n || len(g.Y) != n || len(g.Angle) != n {
		return fmt.Errorf("supergrid arrays do not match shape %dx%d", g.NYP, g.NXP)
	}
	for j := 1; j < g.NYP; j += 2 {
		for i := 1; i < g.NXP; i += 2 {
			if a := g.Angle[j*g.NXP+i]; math.IsNaN(a) || math.IsInf(a, 0) {
				return fmt.Errorf("rotation angle undefined at tracer point (%d, %d)", (j-1)/2, (i-1)/2)
			}
		}
	}
	return nil
}

// Subset returns supergrid points starting at (j0, i0) with stride 2.
func (g *HorizontalGrid) Subset(j0, i0 int) Points {
	ny := (g.NYP - j0 + 1) / 2
	nx := (g.NXP - i0 + 1) / 2
	p := Points{NY: ny, NX: nx, Lon: make([]float64, ny*nx), Lat: make([]float64, ny*nx)}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			src := (j0+2*j)*g.NXP + i0 + 2*i
			p.Lon[j*nx+i] = g.X[src]
			p.Lat[j*nx+i] = g.Y[src]
		}
	}
	return p
}

// Tracer returns the h-points.
func (g *HorizontalGrid) Tracer() Points { return g.Subset(1, 1) }

// Lattice returns every supergrid point; velocities are interpolated here
// before rotation.
func (g *HorizontalGrid) Lattice() Points {
	return Points{
		NY:  g.NYP,
		NX:  g.NXP,
		Lon: append([]float64(nil), g.X...),
		Lat: append([]float64(nil), g.Y...),
	}
}

// MaxLon returns the largest supergrid longitude.
func (g *HorizontalGrid) MaxLon() float64 {
	m := math.Inf(-1)
	for _, x := range g.X {
		m = math.Max(m, x)
	}
	return m
}
