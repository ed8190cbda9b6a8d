// Package rotate turns regridded velocity components into the target grid's
// local frame and moves them to their staggered positions.
package rotate

import (
	"fmt"
	"math"

	"go.ngs.io/glorys-ic/internal/domain"
)

// Vectors rotates (u, v) by the local angle:
//
//	u' = u*cos(a) - v*sin(a)
//	v' = u*sin(a) + v*cos(a)
//
// u and v must share shape; angle holds one value per horizontal cell.
func Vectors(u, v *domain.Field, angle []float64) (*domain.Field, *domain.Field, error) {
	if u.NT() != v.NT() || u.NZ() != v.NZ() || u.NY != v.NY || u.NX != v.NX {
		return nil, nil, fmt.Errorf("velocity components differ in shape: u %dx%dx%dx%d, v %dx%dx%dx%d",
			u.NT(), u.NZ(), u.NY, u.NX, v.NT(), v.NZ(), v.NY, v.NX)
	}
	if len(angle) != u.LayerSize() {
		return nil, nil, fmt.Errorf("angle has %d values, velocity layers have %d", len(angle), u.LayerSize())
	}

	cos := make([]float64, len(angle))
	sin := make([]float64, len(angle))
	for n, a := range angle {
		sin[n], cos[n] = sincos(a)
	}

	ur, vr := u.Clone(), v.Clone()
	for t := 0; t < u.NT(); t++ {
		for k := 0; k < u.NZ(); k++ {
			lu, lv := u.Layer(t, k), v.Layer(t, k)
			ou, ov := ur.Layer(t, k), vr.Layer(t, k)
			for n := range lu {
				ou[n] = lu[n]*cos[n] - lv[n]*sin[n]
				ov[n] = lu[n]*sin[n] + lv[n]*cos[n]
			}
		}
	}
	return ur, vr, nil
}

// sincos rounds coefficients within snapEps of 0 or 1 so that quarter and
// half turns map components onto each other exactly.
func sincos(a float64) (sin, cos float64) {
	sin, cos = math.Sincos(a)
	switch {
	case math.Abs(cos) < snapEps:
		sin, cos = math.Copysign(1, sin), 0
	case math.Abs(sin) < snapEps:
		sin, cos = 0, math.Copysign(1, cos)
	}
	return sin, cos
}

const snapEps = 1e-15

// Stagger extracts the supergrid sub-lattice starting at (j0, i0) with
// stride 2 from a field laid out on the full (NYP, NXP) supergrid.
func Stagger(f *domain.Field, j0, i0 int, yName, xName string) (*domain.Field, error) {
	if j0 < 0 || i0 < 0 || j0 >= f.NY || i0 >= f.NX {
		return nil, fmt.Errorf("offset (%d, %d) outside %dx%d lattice", j0, i0, f.NY, f.NX)
	}
	ny := (f.NY - j0 + 1) / 2
	nx := (f.NX - i0 + 1) / 2

	out := domain.NewField(f.Name, f.NT(), f.Z, ny, nx)
	out.Units = f.Units
	out.ZName = f.ZName
	copy(out.Time, f.Time)
	out.TimeUnits = f.TimeUnits
	out.YName, out.XName = yName, xName

	for t := 0; t < f.NT(); t++ {
		for k := 0; k < f.NZ(); k++ {
			for j := 0; j < ny; j++ {
				for i := 0; i < nx; i++ {
					out.Set(t, k, j, i, f.At(t, k, j0+2*j, i0+2*i))
				}
			}
		}
	}
	return out, nil
}

// UPoints takes u at supergrid [1::2, 0::2], dimensions (yh, xq).
func UPoints(u *domain.Field) (*domain.Field, error) {
	return Stagger(u, 1, 0, domain.DimYH, domain.DimXQ)
}

// VPoints takes v at supergrid [0::2, 1::2], dimensions (yq, xh).
func VPoints(v *domain.Field) (*domain.Field, error) {
	return Stagger(v, 0, 1, domain.DimYQ, domain.DimXH)
}
