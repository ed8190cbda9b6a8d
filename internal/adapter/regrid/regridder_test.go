package regrid

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"go.ngs.io/glorys-ic/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var approx = cmp.Options{cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-12)}

// memStore is an in-memory WeightStore that counts calls.
type memStore struct {
	items map[string]*Weights
	loads int
	saves int
}

func newMemStore() *memStore { return &memStore{items: map[string]*Weights{}} }

func (m *memStore) Load(key Key) (*Weights, error) {
	m.loads++
	w, ok := m.items[key.FileName()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key.FileName(), ErrCacheMiss)
	}
	if w.Key != key {
		return nil, fmt.Errorf("key mismatch: %w", ErrCacheMiss)
	}
	return w, nil
}

func (m *memStore) Save(w *Weights) error {
	m.saves++
	m.items[w.Key.FileName()] = w
	return nil
}

func sourceField(lat, lon []float64) *domain.Field {
	f := domain.NewField("thetao", 2, []float64{1, 2}, len(lat), len(lon))
	f.Lat, f.Lon = lat, lon
	for n := range f.Data {
		f.Data[n] = float64(n)
	}
	return f
}

// TestRegrid_Identity tests that coincident grids reproduce the source for both methods
func TestRegrid_Identity(t *testing.T) {
	lat := []float64{10, 11, 12}
	lon := []float64{0, 1, 2, 3}
	f := sourceField(lat, lon)
	dst := domain.RectilinearPoints(lat, lon)

	for _, method := range []Method{NearestS2D, Bilinear} {
		r := NewRegridder(nil, false, zaptest.NewLogger(t))
		out, err := r.Regrid(f, "identity", method, dst, 3)
		if err != nil {
			t.Fatalf("%s: Regrid: %v", method, err)
		}
		if diff := cmp.Diff(f.Data, out.Data, approx); diff != "" {
			t.Errorf("%s: identity mismatch (-want +got):\n%s", method, diff)
		}
		if out.NZ() != 2 || out.NT() != 2 {
			t.Errorf("%s: time/level shape changed", method)
		}
	}
}

// TestRegrid_LongitudeWrap tests that a 0..360 source matches its -180..180 equivalent
func TestRegrid_LongitudeWrap(t *testing.T) {
	lat := []float64{20, 21}
	east := sourceField(lat, []float64{280, 281, 282})
	west := sourceField(lat, []float64{-80, -79, -78})
	dst := domain.Points{
		NY:  1,
		NX:  3,
		Lon: []float64{-79.9, -78.6, -79.5},
		Lat: []float64{20.1, 20.9, 20.5},
	}

	for _, method := range []Method{NearestS2D, Bilinear} {
		r := NewRegridder(nil, false, zaptest.NewLogger(t))
		a, err := r.Regrid(east, "east", method, dst, -78.6)
		if err != nil {
			t.Fatalf("%s: east: %v", method, err)
		}
		b, err := r.Regrid(west, "west", method, dst, -78.6)
		if err != nil {
			t.Fatalf("%s: west: %v", method, err)
		}
		if diff := cmp.Diff(b.Data, a.Data, approx); diff != "" {
			t.Errorf("%s: wrapped source differs (-west +east):\n%s", method, diff)
		}
		if a.Missing() != 0 {
			t.Errorf("%s: %d destinations unmapped", method, a.Missing())
		}
	}
}

// TestRegrid_BilinearOutsideIsMissing tests unmapped destinations
func TestRegrid_BilinearOutsideIsMissing(t *testing.T) {
	f := sourceField([]float64{0, 1}, []float64{0, 1})
	dst := domain.Points{NY: 1, NX: 2, Lon: []float64{0.5, 5}, Lat: []float64{0.5, 0.5}}
	out, err := NewRegridder(nil, false, nil).Regrid(f, "outside", Bilinear, dst, 5)
	if err != nil {
		t.Fatalf("Regrid: %v", err)
	}
	if math.IsNaN(out.At(0, 0, 0, 0)) || !math.IsNaN(out.At(0, 0, 0, 1)) {
		t.Errorf("expected only the second destination to be missing: %v", out.Layer(0, 0))
	}
}

// TestRegrid_BilinearSourceEastOfGrid tests a same-convention source that
// extends east of the grid's largest longitude
func TestRegrid_BilinearSourceEastOfGrid(t *testing.T) {
	f := sourceField([]float64{0, 1, 2}, []float64{-2, -1, 0, 1, 2})
	dst := domain.Points{NY: 1, NX: 1, Lon: []float64{0.5}, Lat: []float64{1}}
	out, err := NewRegridder(nil, false, zaptest.NewLogger(t)).Regrid(f, "east", Bilinear, dst, 1)
	if err != nil {
		t.Fatalf("Regrid: %v", err)
	}
	for tt := 0; tt < f.NT(); tt++ {
		for k := 0; k < f.NZ(); k++ {
			want := (f.At(tt, k, 1, 2) + f.At(tt, k, 1, 3)) / 2
			if got := out.At(tt, k, 0, 0); math.IsNaN(got) || math.Abs(got-want) > 1e-12 {
				t.Errorf("t=%d k=%d: expected %v, got %v", tt, k, want, got)
			}
		}
	}
}

// TestWrapLongitudes tests when source longitudes are shifted by -360
func TestWrapLongitudes(t *testing.T) {
	tests := []struct {
		name   string
		lon    []float64
		maxLon float64
		want   []float64
	}{
		{"same convention west", []float64{-2, -1, 0, 1, 2}, 1, []float64{-2, -1, 0, 1, 2}},
		{"same convention east", []float64{250, 280, 300}, 290, []float64{250, 280, 300}},
		{"east source west grid", []float64{278, 280, 282}, -79, []float64{-82, -80, -78}},
		{"east source straddling grid", []float64{0, 1, 359}, 10, []float64{0, 1, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.RectilinearPoints([]float64{0}, tt.lon)
			got := WrapLongitudes(p, tt.maxLon)
			if diff := cmp.Diff(tt.want, got.Lon); diff != "" {
				t.Errorf("Lon (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, got.LonAxis); diff != "" {
				t.Errorf("LonAxis (-want +got):\n%s", diff)
			}
		})
	}
}

// TestWeights_CacheReuse tests hit, miss and forced recompute
func TestWeights_CacheReuse(t *testing.T) {
	src := domain.RectilinearPoints([]float64{0, 1}, []float64{0, 1})
	dst := domain.Points{NY: 1, NX: 1, Lon: []float64{0.2}, Lat: []float64{0.7}}
	store := newMemStore()

	r := NewRegridder(store, true, zaptest.NewLogger(t))
	w1, err := r.Weights("t", NearestS2D, src, dst)
	if err != nil {
		t.Fatalf("first Weights: %v", err)
	}
	if store.loads != 1 || store.saves != 1 {
		t.Fatalf("miss should load then save, got %d loads %d saves", store.loads, store.saves)
	}
	w2, err := r.Weights("t", NearestS2D, src, dst)
	if err != nil {
		t.Fatalf("second Weights: %v", err)
	}
	if w2 != w1 || store.loads != 1 || store.saves != 1 {
		t.Errorf("repeated key should be served from memory")
	}

	// A new regridder reads the stored copy.
	again := NewRegridder(store, true, nil)
	if _, err := again.Weights("t", NearestS2D, src, dst); err != nil {
		t.Fatalf("cached Weights: %v", err)
	}
	if store.loads != 2 || store.saves != 1 {
		t.Errorf("expected a cache hit, got %d loads %d saves", store.loads, store.saves)
	}

	// A different destination is a different key.
	moved := dst
	moved.Lon = []float64{0.9}
	if _, err := r.Weights("t", NearestS2D, src, moved); err != nil {
		t.Fatalf("moved Weights: %v", err)
	}
	if store.saves != 2 {
		t.Errorf("changed destination should recompute")
	}

	fresh := NewRegridder(store, false, nil)
	if _, err := fresh.Weights("t", NearestS2D, src, dst); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if store.loads != 3 || store.saves != 3 {
		t.Errorf("reuse disabled must skip the cache read and overwrite: %d loads %d saves", store.loads, store.saves)
	}
}

// failingStore reports an I/O error that is not a miss.
type failingStore struct{}

func (failingStore) Load(Key) (*Weights, error) { return nil, errors.New("disk on fire") }
func (failingStore) Save(*Weights) error        { return nil }

// TestWeights_StoreError tests that a broken cache fails the run
func TestWeights_StoreError(t *testing.T) {
	src := domain.RectilinearPoints([]float64{0, 1}, []float64{0, 1})
	dst := domain.Points{NY: 1, NX: 1, Lon: []float64{0}, Lat: []float64{0}}
	if _, err := NewRegridder(failingStore{}, true, nil).Weights("t", NearestS2D, src, dst); err == nil {
		t.Error("expected the store error to surface")
	}
}

// TestWeights_ApplyAndValidate tests the sparse product and bounds checks
func TestWeights_ApplyAndValidate(t *testing.T) {
	key := Key{SrcNY: 1, SrcNX: 3, DstNY: 1, DstNX: 3}
	w := &Weights{Key: key, Rows: []int{0, 0, 1}, Cols: []int{0, 2, 1}, S: []float64{0.5, 0.5, 1}}
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	dst := make([]float64, 3)
	w.Apply([]float64{2, 3, 4}, dst)
	if diff := cmp.Diff([]float64{3, 3, math.NaN()}, dst, approx); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}

	bad := &Weights{Key: key, Rows: []int{3}, Cols: []int{0}, S: []float64{1}}
	if err := bad.Validate(); err == nil {
		t.Error("expected an out-of-range row to fail")
	}
}

// TestParseMethod tests method names
func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod("bilinear"); err != nil || m != Bilinear {
		t.Errorf("bilinear: %v %v", m, err)
	}
	if _, err := ParseMethod("conservative"); err == nil {
		t.Error("expected an error for an unsupported method")
	}
}
