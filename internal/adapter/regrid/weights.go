// Package regrid moves fields between horizontal grids with sparse weights.
package regrid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"

	"go.ngs.io/glorys-ic/internal/adapter/interp"
	"go.ngs.io/glorys-ic/internal/domain"
)

// Method is a weight generation method.
type Method string

const (
	NearestS2D Method = "nearest_s2d"
	Bilinear   Method = "bilinear"
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case NearestS2D, Bilinear:
		return m, nil
	}
	return "", fmt.Errorf("unsupported regrid method %q", s)
}

// ErrCacheMiss is returned by a WeightStore that holds no usable weights.
var ErrCacheMiss = errors.New("regrid weights not cached")

// Key identifies a set of weights.
type Key struct {
	Name         string
	Method       Method
	SrcNY, SrcNX int
	SrcSig       uint64
	DstNY, DstNX int
	DstSig       uint64
}

// FileName returns the cache file name for the key.
func (k Key) FileName() string {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], k.SrcSig)
	_, _ = d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], k.DstSig)
	_, _ = d.Write(buf[:])
	return fmt.Sprintf("%s_%s_%dx%d_%dx%d_%016x.nc", k.Name, k.Method, k.SrcNY, k.SrcNX, k.DstNY, k.DstNX, d.Sum64())
}

// Weights is a sparse (COO) matrix of shape (DstNY*DstNX, SrcNY*SrcNX).
// Indices are 0-based.
type Weights struct {
	Key  Key
	Rows []int
	Cols []int
	S    []float64
}

// NewWeights packs triplets under a key.
func NewWeights(key Key, ts []interp.Triplet) *Weights {
	w := &Weights{
		Key:  key,
		Rows: make([]int, len(ts)),
		Cols: make([]int, len(ts)),
		S:    make([]float64, len(ts)),
	}
	for n, t := range ts {
		w.Rows[n], w.Cols[n], w.S[n] = t.Row, t.Col, t.S
	}
	return w
}

// Len returns the number of stored weights.
func (w *Weights) Len() int { return len(w.S) }

// Validate checks index bounds against the key shapes.
func (w *Weights) Validate() error {
	if len(w.Rows) != len(w.S) || len(w.Cols) != len(w.S) {
		return fmt.Errorf("weights have %d rows, %d cols, %d values", len(w.Rows), len(w.Cols), len(w.S))
	}
	nDst := w.Key.DstNY * w.Key.DstNX
	nSrc := w.Key.SrcNY * w.Key.SrcNX
	for n := range w.S {
		if w.Rows[n] < 0 || w.Rows[n] >= nDst {
			return fmt.Errorf("weight %d: row %d outside [0, %d)", n, w.Rows[n], nDst)
		}
		if w.Cols[n] < 0 || w.Cols[n] >= nSrc {
			return fmt.Errorf("weight %d: col %d outside [0, %d)", n, w.Cols[n], nSrc)
		}
	}
	return nil
}

// Apply computes dst = W·src for one horizontal slice. Destination cells
// that receive no weight are NaN.
func (w *Weights) Apply(src, dst []float64) {
	hit := make([]bool, len(dst))
	for i := range dst {
		dst[i] = 0
	}
	for n, s := range w.S {
		r := w.Rows[n]
		dst[r] += s * src[w.Cols[n]]
		hit[r] = true
	}
	for i, ok := range hit {
		if !ok {
			dst[i] = math.NaN()
		}
	}
}

// Signature digests the coordinates of a point set.
func Signature(p domain.Points) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, arr := range [][]float64{p.Lon, p.Lat} {
		for _, v := range arr {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = d.Write(buf[:])
		}
	}
	return d.Sum64()
}

// WrapLongitudes shifts source longitudes greater than maxLon by -360 when
// the source uses 0..360 and the target does not. A source already in the
// target's convention is returned unchanged.
func WrapLongitudes(p domain.Points, maxLon float64) domain.Points {
	if maxLon > 180 || !slices.ContainsFunc(p.Lon, func(x float64) bool { return x > 180 }) {
		return p
	}
	shift := func(in []float64) []float64 {
		out := make([]float64, len(in))
		for n, x := range in {
			if x > maxLon {
				x -= 360
			}
			out[n] = x
		}
		return out
	}
	out := p
	out.Lon = shift(p.Lon)
	if p.LonAxis != nil {
		out.LonAxis = shift(p.LonAxis)
	}
	return out
}
