package domain

import (
	"math"
	"testing"
)

// TestNewVerticalGrid_LayersAtMidpoints tests interface and layer derivation from thicknesses.
func TestNewVerticalGrid_LayersAtMidpoints(t *testing.T) {
	g, err := NewVerticalGrid([]float64{2, 4, 6})
	if err != nil {
		t.Fatalf("NewVerticalGrid: %v", err)
	}
	wantZi := []float64{0, 2, 6, 12}
	wantZl := []float64{1, 4, 9}
	for k, v := range wantZi {
		if g.Interfaces[k] != v {
			t.Errorf("interface %d: expected %g, got %g", k, v, g.Interfaces[k])
		}
	}
	for k, v := range wantZl {
		if g.Layers[k] != v {
			t.Errorf("layer %d: expected %g, got %g", k, v, g.Layers[k])
		}
	}
}

// TestNewVerticalGrid_RejectsBadThickness tests that zero or negative layers fail.
func TestNewVerticalGrid_RejectsBadThickness(t *testing.T) {
	for _, dz := range [][]float64{{}, {1, 0}, {1, -2}, {math.NaN()}} {
		if _, err := NewVerticalGrid(dz); err == nil {
			t.Errorf("expected error for dz=%v", dz)
		}
	}
}

func supergrid(nyp, nxp int) *HorizontalGrid {
	g := &HorizontalGrid{NYP: nyp, NXP: nxp}
	for j := 0; j < nyp; j++ {
		for i := 0; i < nxp; i++ {
			g.X = append(g.X, float64(i)*0.5)
			g.Y = append(g.Y, 10+float64(j)*0.5)
			g.Angle = append(g.Angle, 0)
		}
	}
	return g
}

// TestHorizontalGrid_StaggeredSubsets tests h, u and v point extraction from the supergrid.
func TestHorizontalGrid_StaggeredSubsets(t *testing.T) {
	g := supergrid(5, 7)
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if g.NY() != 2 || g.NX() != 3 {
		t.Fatalf("expected 2x3 tracer grid, got %dx%d", g.NY(), g.NX())
	}

	h := g.Tracer()
	if h.NY != 2 || h.NX != 3 {
		t.Fatalf("tracer shape: got %dx%d", h.NY, h.NX)
	}
	if h.Lon[0] != 0.5 || h.Lat[0] != 10.5 {
		t.Errorf("first tracer point: got (%g, %g)", h.Lon[0], h.Lat[0])
	}

	u := g.Subset(1, 0)
	if u.NY != 2 || u.NX != 4 {
		t.Errorf("u-point shape: expected 2x4, got %dx%d", u.NY, u.NX)
	}
	v := g.Subset(0, 1)
	if v.NY != 3 || v.NX != 3 {
		t.Errorf("v-point shape: expected 3x3, got %dx%d", v.NY, v.NX)
	}
	if g.MaxLon() != 3 {
		t.Errorf("max lon: expected 3, got %g", g.MaxLon())
	}
}

// TestHorizontalGrid_ValidateAngle tests that a NaN angle at a tracer point is rejected.
func TestHorizontalGrid_ValidateAngle(t *testing.T) {
	g := supergrid(3, 3)
	g.Angle[0] = math.NaN() // Corner, not a tracer point.
	if err := g.Validate(); err != nil {
		t.Fatalf("corner NaN should be accepted: %v", err)
	}
	g.Angle[4] = math.NaN()
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for NaN angle at tracer point")
	}
}

// TestField_IndexingAndColumns tests the [time][z][y][x] layout.
func TestField_IndexingAndColumns(t *testing.T) {
	f := NewField("temp", 2, []float64{0, 10, 20}, 2, 2)
	if f.Missing() != len(f.Data) {
		t.Fatalf("new field should be all missing")
	}
	f.SetColumn(1, 1, 0, []float64{1, 2, 3})
	if got := f.At(1, 2, 1, 0); got != 3 {
		t.Errorf("At(1,2,1,0): expected 3, got %g", got)
	}
	col := f.Column(1, 1, 0)
	if col[0] != 1 || col[1] != 2 || col[2] != 3 {
		t.Errorf("Column: got %v", col)
	}
	layer := f.Layer(1, 1)
	if layer[2] != 2 {
		t.Errorf("Layer(1,1)[2]: expected 2, got %g", layer[2])
	}
	lo, hi, ok := f.Range()
	if !ok || lo != 1 || hi != 3 {
		t.Errorf("Range: got %g %g %v", lo, hi, ok)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	c := f.Clone()
	c.Set(0, 0, 0, 0, 42)
	if !math.IsNaN(f.At(0, 0, 0, 0)) {
		t.Errorf("Clone shares data with the original")
	}
}
