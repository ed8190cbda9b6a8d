package interp

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"

	"go.ngs.io/glorys-ic/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var nan = math.NaN()

// TestColumn tests restriction to the valid depth range
func TestColumn(t *testing.T) {
	depth := []float64{0, 10, 20, 30}
	tests := []struct {
		name    string
		values  []float64
		targets []float64
		want    []float64
	}{
		{"interior", []float64{0, 10, 20, 30}, []float64{5, 25}, []float64{5, 25}},
		{"deeper than data", []float64{1, 2, nan, nan}, []float64{5, 15}, []float64{1.5, nan}},
		{"shallower than data", []float64{nan, 10, 20, 30}, []float64{5, 10, 12}, []float64{nan, 10, 12}},
		{"all missing", []float64{nan, nan, nan, nan}, []float64{5}, []float64{nan}},
		{"single sample", []float64{nan, 7, nan, nan}, []float64{5, 10}, []float64{nan, 7}},
		{"gap inside column", []float64{0, nan, 20, 30}, []float64{10}, []float64{10}},
	}
	opts := cmp.Options{cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-12)}
	for _, tt := range tests {
		got := Column(depth, tt.values, tt.targets)
		if diff := cmp.Diff(tt.want, got, opts); diff != "" {
			t.Errorf("%s: mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

// TestVertical_Field tests a whole field and axis renaming
func TestVertical_Field(t *testing.T) {
	f := domain.NewField("thetao", 2, []float64{0, 10}, 2, 2)
	for tt := 0; tt < 2; tt++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				f.Set(tt, 0, j, i, float64(10*tt+j+i))
				f.Set(tt, 1, j, i, float64(10*tt+j+i+10))
			}
		}
	}
	// Land column.
	f.Set(0, 0, 1, 1, nan)
	f.Set(0, 1, 1, 1, nan)

	out, err := Vertical(f, []float64{2, 6, 14})
	if err != nil {
		t.Fatalf("Vertical: %v", err)
	}
	if out.NZ() != 3 || out.ZName != domain.DimLayer {
		t.Fatalf("unexpected vertical axis %s with %d levels", out.ZName, out.NZ())
	}
	if got := out.At(1, 0, 0, 1); math.Abs(got-13) > 1e-12 {
		t.Errorf("t=1 k=0 (0,1): expected 13, got %v", got)
	}
	if got := out.At(0, 1, 1, 0); math.Abs(got-7) > 1e-12 {
		t.Errorf("t=0 k=1 (1,0): expected 7, got %v", got)
	}
	if !math.IsNaN(out.At(0, 2, 0, 0)) {
		t.Errorf("layer below the deepest sample should be missing")
	}
	for k := 0; k < 3; k++ {
		if !math.IsNaN(out.At(0, k, 1, 1)) {
			t.Errorf("land column should stay missing at layer %d", k)
		}
	}
}

// TestVertical_SurfacePassThrough tests that 2-D fields are untouched
func TestVertical_SurfacePassThrough(t *testing.T) {
	f := domain.NewField("zos", 1, nil, 1, 2)
	f.Data[0], f.Data[1] = 0.5, nan
	out, err := Vertical(f, []float64{1, 2})
	if err != nil {
		t.Fatalf("Vertical: %v", err)
	}
	if !out.Surface() || out.Data[0] != 0.5 || !math.IsNaN(out.Data[1]) {
		t.Errorf("surface field changed: %+v", out.Data)
	}
}

// TestVertical_BadAxes tests axis validation
func TestVertical_BadAxes(t *testing.T) {
	f := domain.NewField("thetao", 1, []float64{10, 0}, 1, 1)
	if _, err := Vertical(f, []float64{1}); err == nil {
		t.Error("expected an error for a decreasing depth axis")
	}
	g := domain.NewField("thetao", 1, []float64{0, 10}, 1, 1)
	if _, err := Vertical(g, []float64{5, 5}); err == nil {
		t.Error("expected an error for repeated layers")
	}
}
