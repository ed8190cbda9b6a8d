// Package flood extends ocean values over land and below the sea floor so
// that later interpolation never reads a missing source cell.
package flood

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"go.ngs.io/glorys-ic/internal/domain"
)

// MaxIterations bounds the sweeps spent on one layer.
const MaxIterations = 1000

var diagonal = 1 / math.Sqrt2

// Report describes what a flood did to a field.
type Report struct {
	Field string

	// Empty is set when the field had no valid value at all.
	Empty bool

	// Unfinished counts layers where sweeps stopped before every cell was
	// filled (cap reached or no valid cell left to spread from).
	Unfinished int

	LayersBackfilled int
	TimesBackfilled  int
}

// Flood fills the missing cells of every horizontal layer with the weighted
// mean of their valid neighbours, repeated until the layer is complete.
// Cardinal neighbours weigh 1 and diagonal ones 1/sqrt(2). Layers without
// any valid cell are copied from the nearest flooded layer above, else
// below; time slices without any valid cell from the nearest time slice.
func Flood(f *domain.Field) (*domain.Field, Report, error) {
	if err := f.Validate(); err != nil {
		return nil, Report{}, err
	}
	out := f.Clone()
	rep := Report{Field: f.Name}
	if !f.HasValid() {
		rep.Empty = true
		return out, rep, nil
	}

	nt, nz := f.NT(), f.NZ()
	hasData := make([]bool, nt*nz)
	unfinished := make([]bool, nt*nz)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := 0; t < nt; t++ {
		for k := 0; k < nz; k++ {
			t, k := t, k
			g.Go(func() error {
				layer := out.Layer(t, k)
				if !anyValid(layer) {
					return nil
				}
				hasData[t*nz+k] = true
				unfinished[t*nz+k] = !floodLayer(layer, f.NY, f.NX)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, rep, fmt.Errorf("failed to flood %s: %w", f.Name, err)
	}
	for _, u := range unfinished {
		if u {
			rep.Unfinished++
		}
	}

	timeHasData := make([]bool, nt)
	for t := 0; t < nt; t++ {
		for k := 0; k < nz; k++ {
			timeHasData[t] = timeHasData[t] || hasData[t*nz+k]
		}
	}

	// Vertical backfill inside each time slice that has data.
	for t := 0; t < nt; t++ {
		if !timeHasData[t] {
			continue
		}
		for k := 0; k < nz; k++ {
			if hasData[t*nz+k] {
				continue
			}
			src := aboveElseBelow(k, nz, func(kk int) bool { return hasData[t*nz+kk] })
			copy(out.Layer(t, k), out.Layer(t, src))
			rep.LayersBackfilled++
		}
	}

	// Temporal backfill of empty time slices.
	for t := 0; t < nt; t++ {
		if timeHasData[t] {
			continue
		}
		src := nearest(t, nt, func(tt int) bool { return timeHasData[tt] })
		for k := 0; k < nz; k++ {
			copy(out.Layer(t, k), out.Layer(src, k))
		}
		rep.TimesBackfilled++
	}

	return out, rep, nil
}

// FloodSurface floods a field without a vertical axis. It is Flood applied
// to a single-layer field.
func FloodSurface(f *domain.Field) (*domain.Field, Report, error) {
	if !f.Surface() {
		return nil, Report{}, fmt.Errorf("field %s has %d levels, expected a surface field", f.Name, f.NZ())
	}
	return Flood(f)
}

// aboveElseBelow returns the closest index above i satisfying ok, or the
// closest below when none above does. ok must hold somewhere.
func aboveElseBelow(i, n int, ok func(int) bool) int {
	for kk := i - 1; kk >= 0; kk-- {
		if ok(kk) {
			return kk
		}
	}
	for kk := i + 1; kk < n; kk++ {
		if ok(kk) {
			return kk
		}
	}
	return i
}

// nearest returns the closest index to i satisfying ok, preferring the
// earlier one on ties. ok must hold somewhere.
func nearest(i, n int, ok func(int) bool) int {
	for d := 1; d < n; d++ {
		if i-d >= 0 && ok(i-d) {
			return i - d
		}
		if i+d < n && ok(i+d) {
			return i + d
		}
	}
	return i
}

func anyValid(layer []float64) bool {
	for _, v := range layer {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// floodLayer fills one row-major ny*nx layer in place. Each sweep reads the
// previous state only, so the result does not depend on scan order.
// It reports whether the layer ended complete.
func floodLayer(layer []float64, ny, nx int) bool {
	next := make([]float64, len(layer))
	for iter := 0; iter < MaxIterations; iter++ {
		copy(next, layer)
		changed, remaining := 0, 0
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := j*nx + i
				if !math.IsNaN(layer[c]) {
					continue
				}
				var sum, weight float64
				for dj := -1; dj <= 1; dj++ {
					jj := j + dj
					if jj < 0 || jj >= ny {
						continue
					}
					for di := -1; di <= 1; di++ {
						ii := i + di
						if (di == 0 && dj == 0) || ii < 0 || ii >= nx {
							continue
						}
						v := layer[jj*nx+ii]
						if math.IsNaN(v) {
							continue
						}
						w := 1.0
						if di != 0 && dj != 0 {
							w = diagonal
						}
						sum += w * v
						weight += w
					}
				}
				if weight > 0 {
					next[c] = sum / weight
					changed++
				} else {
					remaining++
				}
			}
		}
		copy(layer, next)
		if remaining == 0 {
			return true
		}
		if changed == 0 {
			return false
		}
	}
	return !anyMissing(layer)
}

func anyMissing(layer []float64) bool {
	for _, v := range layer {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
