// Package domain holds the data model shared by every pipeline stage.
package domain

import (
	"fmt"
	"math"
)

// Canonical axis names.
const (
	DimTime  = "time"
	DimDepth = "depth"
	DimLat   = "lat"
	DimLon   = "lon"

	// Target model (MOM6) axes.
	DimLayer = "zl"
	DimYH    = "yh"
	DimYQ    = "yq"
	DimXH    = "xh"
	DimXQ    = "xq"

	// Supergrid axes used by the combined velocity lattice.
	DimNYP = "nyp"
	DimNXP = "nxp"
)

// Field is a labeled [time][z][y][x] array.
// Missing (land or out-of-range) cells are NaN.
type Field struct {
	Name  string
	Units string

	Time      []float64
	TimeUnits string

	// Z is nil for surface fields, which then have a single implicit level.
	Z     []float64
	ZName string

	NY, NX       int
	YName, XName string

	// Lat and Lon are the 1-D axes of a rectilinear source grid.
	// They are nil once the field lives on a curvilinear target grid.
	Lat []float64
	Lon []float64

	Data []float64
}

// NewField allocates a field filled with NaN. A nil z makes a surface field.
func NewField(name string, nt int, z []float64, ny, nx int) *Field {
	nz := len(z)
	if nz == 0 {
		nz = 1
	}
	data := make([]float64, nt*nz*ny*nx)
	for i := range data {
		data[i] = math.NaN()
	}
	f := &Field{
		Name:  name,
		Time:  make([]float64, nt),
		Z:     append([]float64(nil), z...),
		NY:    ny,
		NX:    nx,
		YName: DimLat,
		XName: DimLon,
		Data:  data,
	}
	if f.Z != nil {
		f.ZName = DimDepth
	}
	return f
}

// NT returns the number of time records.
func (f *Field) NT() int { return len(f.Time) }

// NZ returns the number of vertical levels (1 for surface fields).
func (f *Field) NZ() int {
	if len(f.Z) == 0 {
		return 1
	}
	return len(f.Z)
}

// Surface reports whether the field has no vertical axis.
func (f *Field) Surface() bool { return len(f.Z) == 0 }

// LayerSize returns the number of cells in one horizontal slice.
func (f *Field) LayerSize() int { return f.NY * f.NX }

// Index returns the flat offset of (t, k, j, i).
func (f *Field) Index(t, k, j, i int) int {
	return ((t*f.NZ()+k)*f.NY+j)*f.NX + i
}

// At returns the value at (t, k, j, i).
func (f *Field) At(t, k, j, i int) float64 { return f.Data[f.Index(t, k, j, i)] }

// Set stores v at (t, k, j, i).
func (f *Field) Set(t, k, j, i int, v float64) { f.Data[f.Index(t, k, j, i)] = v }

// Layer returns the horizontal slice at (t, k). The slice aliases Data.
func (f *Field) Layer(t, k int) []float64 {
	start := f.Index(t, k, 0, 0)
	return f.Data[start : start+f.LayerSize()]
}

// Column copies the vertical profile at (t, j, i).
func (f *Field) Column(t, j, i int) []float64 {
	nz := f.NZ()
	col := make([]float64, nz)
	for k := 0; k < nz; k++ {
		col[k] = f.At(t, k, j, i)
	}
	return col
}

// SetColumn writes a vertical profile at (t, j, i).
func (f *Field) SetColumn(t, j, i int, col []float64) {
	for k, v := range col {
		f.Set(t, k, j, i, v)
	}
}

// Validate checks that the buffer matches the declared shape.
func (f *Field) Validate() error {
	if f.NY <= 0 || f.NX <= 0 {
		return fmt.Errorf("field %s has empty horizontal shape %dx%d", f.Name, f.NY, f.NX)
	}
	if want := f.NT() * f.NZ() * f.NY * f.NX; len(f.Data) != want {
		return fmt.Errorf("field %s has %d values, expected %d", f.Name, len(f.Data), want)
	}
	if f.Lat != nil && len(f.Lat) != f.NY {
		return fmt.Errorf("field %s latitude axis has %d values, expected %d", f.Name, len(f.Lat), f.NY)
	}
	if f.Lon != nil && len(f.Lon) != f.NX {
		return fmt.Errorf("field %s longitude axis has %d values, expected %d", f.Name, len(f.Lon), f.NX)
	}
	return nil
}

// CloneShape returns a field with the same metadata and a NaN buffer.
// Vertical and horizontal shape can be changed by the caller afterwards.
func (f *Field) CloneShape() *Field {
	c := *f
	c.Time = append([]float64(nil), f.Time...)
	c.Z = append([]float64(nil), f.Z...)
	if len(f.Z) == 0 {
		c.Z = nil
	}
	c.Lat = append([]float64(nil), f.Lat...)
	c.Lon = append([]float64(nil), f.Lon...)
	if f.Lat == nil {
		c.Lat = nil
	}
	if f.Lon == nil {
		c.Lon = nil
	}
	c.Data = make([]float64, len(f.Data))
	for i := range c.Data {
		c.Data[i] = math.NaN()
	}
	return &c
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	c := f.CloneShape()
	copy(c.Data, f.Data)
	return c
}

// Missing counts NaN cells.
func (f *Field) Missing() int {
	n := 0
	for _, v := range f.Data {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// HasValid reports whether at least one cell is not missing.
func (f *Field) HasValid() bool {
	for _, v := range f.Data {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Range returns the minimum and maximum valid values.
// ok is false when every cell is missing.
func (f *Field) Range() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range f.Data {
		if math.IsNaN(v) {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, ok
}
