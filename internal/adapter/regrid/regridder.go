package regrid

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go.ngs.io/glorys-ic/internal/adapter/interp"
	"go.ngs.io/glorys-ic/internal/domain"
)

// WeightStore persists weights between runs.
type WeightStore interface {
	// Load returns ErrCacheMiss (possibly wrapped) when no matching weights exist.
	Load(key Key) (*Weights, error)
	Save(w *Weights) error
}

// Regridder builds or reuses weights and applies them to fields.
// Weights are computed at most once per key for the regridder's lifetime.
type Regridder struct {
	store  WeightStore
	reuse  bool
	logger *zap.Logger

	mu   sync.Mutex
	memo map[Key]*Weights
}

// NewRegridder creates a regridder. With reuse false weights are always
// recomputed and the cache overwritten.
func NewRegridder(store WeightStore, reuse bool, logger *zap.Logger) *Regridder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Regridder{store: store, reuse: reuse, logger: logger, memo: make(map[Key]*Weights)}
}

// Weights returns weights from src to dst, reading the cache first when
// reuse is enabled. src must already share dst's longitude convention.
func (r *Regridder) Weights(name string, method Method, src, dst domain.Points) (*Weights, error) {
	key := Key{
		Name:   name,
		Method: method,
		SrcNY:  src.NY,
		SrcNX:  src.NX,
		SrcSig: Signature(src),
		DstNY:  dst.NY,
		DstNX:  dst.NX,
		DstSig: Signature(dst),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.memo[key]; ok {
		return w, nil
	}

	if r.reuse && r.store != nil {
		w, err := r.store.Load(key)
		switch {
		case err == nil:
			r.logger.Debug("Reusing regrid weights", zap.String("file", key.FileName()), zap.Int("weights", w.Len()))
			r.memo[key] = w
			return w, nil
		case errors.Is(err, ErrCacheMiss):
			r.logger.Info("Regrid weights not reusable, recomputing", zap.String("file", key.FileName()), zap.Error(err))
		default:
			return nil, fmt.Errorf("failed to read cached weights: %w", err)
		}
	}

	var ts []interp.Triplet
	var err error
	switch method {
	case NearestS2D:
		ts, err = interp.NearestWeights(src, dst)
	case Bilinear:
		ts, err = interp.BilinearWeights(src, dst)
	default:
		return nil, fmt.Errorf("unsupported regrid method %q", method)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compute %s weights for %s: %w", method, name, err)
	}
	w := NewWeights(key, ts)
	r.logger.Debug("Computed regrid weights", zap.String("name", name), zap.String("method", string(method)), zap.Int("weights", w.Len()))

	if r.store != nil {
		if err := r.store.Save(w); err != nil {
			return nil, fmt.Errorf("failed to store weights: %w", err)
		}
	}
	r.memo[key] = w
	return w, nil
}

// Regrid interpolates a source field with 1-D lat/lon axes onto dst.
// maxLon is the largest longitude of the whole target supergrid; a 0..360
// source is moved into the target's convention with WrapLongitudes.
func (r *Regridder) Regrid(f *domain.Field, name string, method Method, dst domain.Points, maxLon float64) (*domain.Field, error) {
	if f.Lat == nil || f.Lon == nil {
		return nil, fmt.Errorf("field %s has no source axes", f.Name)
	}
	if err := dst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid destination for %s: %w", name, err)
	}
	src := WrapLongitudes(domain.RectilinearPoints(f.Lat, f.Lon), maxLon)

	w, err := r.Weights(name, method, src, dst)
	if err != nil {
		return nil, err
	}
	return ApplyField(w, f, dst)
}

// ApplyField applies w to every (time, level) slice of f in parallel.
func ApplyField(w *Weights, f *domain.Field, dst domain.Points) (*domain.Field, error) {
	if w.Key.SrcNY != f.NY || w.Key.SrcNX != f.NX {
		return nil, fmt.Errorf("weights expect a %dx%d source, field %s is %dx%d", w.Key.SrcNY, w.Key.SrcNX, f.Name, f.NY, f.NX)
	}
	if w.Key.DstNY != dst.NY || w.Key.DstNX != dst.NX {
		return nil, fmt.Errorf("weights produce %dx%d, destination is %dx%d", w.Key.DstNY, w.Key.DstNX, dst.NY, dst.NX)
	}

	out := domain.NewField(f.Name, f.NT(), f.Z, dst.NY, dst.NX)
	out.Units = f.Units
	out.ZName = f.ZName
	copy(out.Time, f.Time)
	out.TimeUnits = f.TimeUnits
	out.YName, out.XName = domain.DimNYP, domain.DimNXP

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := 0; t < f.NT(); t++ {
		for k := 0; k < f.NZ(); k++ {
			t, k := t, k
			g.Go(func() error {
				w.Apply(f.Layer(t, k), out.Layer(t, k))
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
