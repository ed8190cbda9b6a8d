package interp

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/interp"

	"go.ngs.io/glorys-ic/internal/domain"
)

// Vertical re-levels a field from its depth axis onto the given layers.
// Each column is interpolated linearly between its shallowest and deepest
// valid samples; layers outside that range are missing. Surface fields are
// returned unchanged.
func Vertical(f *domain.Field, layers []float64) (*domain.Field, error) {
	if f.Surface() {
		return f.Clone(), nil
	}
	for k := 1; k < len(f.Z); k++ {
		if f.Z[k] <= f.Z[k-1] {
			return nil, fmt.Errorf("field %s depth axis is not strictly increasing at level %d", f.Name, k)
		}
	}
	for k := 1; k < len(layers); k++ {
		if layers[k] <= layers[k-1] {
			return nil, fmt.Errorf("target layers are not strictly increasing at layer %d", k)
		}
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("no target layers")
	}

	out := domain.NewField(f.Name, f.NT(), layers, f.NY, f.NX)
	out.Units = f.Units
	out.ZName = domain.DimLayer
	copy(out.Time, f.Time)
	out.TimeUnits = f.TimeUnits
	out.YName, out.XName = f.YName, f.XName
	if f.Lat != nil {
		out.Lat = append([]float64(nil), f.Lat...)
	}
	if f.Lon != nil {
		out.Lon = append([]float64(nil), f.Lon...)
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := 0; t < f.NT(); t++ {
		for j := 0; j < f.NY; j++ {
			t, j := t, j
			g.Go(func() error {
				for i := 0; i < f.NX; i++ {
					out.SetColumn(t, j, i, Column(f.Z, f.Column(t, j, i), layers))
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Column interpolates one profile onto targets. NaN samples are skipped.
func Column(depth, values, targets []float64) []float64 {
	out := make([]float64, len(targets))
	for i := range out {
		out[i] = math.NaN()
	}

	xs := make([]float64, 0, len(depth))
	ys := make([]float64, 0, len(depth))
	for k, v := range values {
		if !math.IsNaN(v) {
			xs = append(xs, depth[k])
			ys = append(ys, v)
		}
	}

	switch len(xs) {
	case 0:
		return out
	case 1:
		for n, z := range targets {
			if z == xs[0] {
				out[n] = ys[0]
			}
		}
		return out
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return out
	}
	lo, hi := xs[0], xs[len(xs)-1]
	for n, z := range targets {
		if z >= lo && z <= hi {
			out[n] = pl.Predict(z)
		}
	}
	return out
}
