package usecase

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"go.ngs.io/glorys-ic/internal/config"
	"go.ngs.io/glorys-ic/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	srcLat   = []float64{10, 11, 12}
	srcLon   = []float64{0, 1, 2}
	srcDepth = []float64{0, 10}
	srcTime  = []float64{0, 30}
)

const timeUnits = "hours since 1950-01-01"

// tracerValue is the surface value of a tracer at (j, i); it grows by 10 at 10 m.
func tracerValue(j, i int) float64 { return float64(10 + 3*j + i) }

// fakeFields serves synthetic fields by variable name.
type fakeFields struct {
	lon      []float64
	noUnits  bool
	requests []domain.FieldRequest
}

func (f *fakeFields) Load(req domain.FieldRequest) (*domain.Field, error) {
	f.requests = append(f.requests, req)
	lon := srcLon
	if f.lon != nil && req.Variable == "so" {
		lon = f.lon
	}
	var z []float64
	if !req.Surface {
		z = srcDepth
	}
	fld := domain.NewField(req.Variable, len(srcTime), z, len(srcLat), len(lon))
	copy(fld.Time, srcTime)
	if !f.noUnits {
		fld.TimeUnits = timeUnits
	}
	fld.Lat = append([]float64(nil), srcLat...)
	fld.Lon = append([]float64(nil), lon...)
	for t := range srcTime {
		for k := 0; k < fld.NZ(); k++ {
			for j := range srcLat {
				for i := range lon {
					var v float64
					switch req.Variable {
					case "thetao", "so":
						v = tracerValue(j, i) + 10*float64(k)
						if j == 2 && i == 2 {
							v = math.NaN() // Land column.
						}
					case "zos":
						v = 0.3
						if j == 0 && i == 0 {
							v = math.NaN()
						}
					case "uo":
						v = 1
					case "vo":
						v = 2
					default:
						return nil, &domain.MissingInputError{Path: req.Path, Variable: req.Variable, Err: errors.New("no such variable")}
					}
					fld.Set(t, k, j, i, v)
				}
			}
		}
	}
	return fld, nil
}

// fakeGrids returns a 7x7 supergrid whose tracer points coincide with the source.
type fakeGrids struct{}

func (fakeGrids) ReadVertical(string, string) (*domain.VerticalGrid, error) {
	return domain.NewVerticalGrid([]float64{4, 4})
}

func (fakeGrids) ReadHorizontal(string) (*domain.HorizontalGrid, error) {
	const n = 7
	hg := &domain.HorizontalGrid{NYP: n, NXP: n, X: make([]float64, n*n), Y: make([]float64, n*n), Angle: make([]float64, n*n)}
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			hg.X[j*n+i] = -0.5 + 0.5*float64(i)
			hg.Y[j*n+i] = 9.5 + 0.5*float64(j)
			hg.Angle[j*n+i] = math.Pi / 2
		}
	}
	return hg, nil
}

// captureWriter keeps the dataset instead of writing it.
type captureWriter struct {
	path string
	ds   *domain.Dataset
}

func (w *captureWriter) Write(path string, ds *domain.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	w.path, w.ds = path, ds
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
glorys_temperature: /data/thetao.nc
glorys_salinity: /data/so.nc
glorys_sea_surface_height: /data/zos.nc
glorys_zonal_velocity: /data/uo.nc
glorys_meridional_velocity: /data/vo.nc
variable_names:
  temperature: thetao
  salinity: so
  sea_surface_height: zos
  zonal_velocity: uo
  meridional_velocity: vo
vgrid_file: /grids/vgrid.nc
grid_file: /grids/ocean_hgrid.nc
output_file: /out/glorys_ic.nc
subsample_stride: 1
`))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

// TestRun_EndToEnd tests every stage on a grid that coincides with the source
func TestRun_EndToEnd(t *testing.T) {
	fields := &fakeFields{}
	writer := &captureWriter{}
	uc := NewInitialConditionUseCase(fields, fakeGrids{}, writer, nil, zaptest.NewLogger(t))

	res, err := uc.Run(testConfig(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if writer.path != "/out/glorys_ic.nc" || writer.ds != res.Dataset {
		t.Fatalf("dataset was not handed to the writer")
	}
	ds := writer.ds

	if len(fields.requests) != 5 {
		t.Fatalf("expected 5 loads, got %d", len(fields.requests))
	}
	for _, req := range fields.requests {
		if req.Stride != 1 || req.Box != config.DefaultBoundingBox {
			t.Errorf("%s: unexpected request %+v", req.Variable, req)
		}
		if req.Surface != (req.Variable == "zos") {
			t.Errorf("%s: surface flag %v", req.Variable, req.Surface)
		}
	}

	if ds.Time[0] != 0 || ds.Time[1] != 24 || ds.TimeUnits != timeUnits || ds.Calendar != "gregorian" {
		t.Errorf("time axis %v %q %q", ds.Time, ds.TimeUnits, ds.Calendar)
	}
	if ds.Layers[0] != 2 || ds.Layers[1] != 6 {
		t.Errorf("layers %v", ds.Layers)
	}

	temp, ok := ds.Field("temp")
	if !ok {
		t.Fatal("temp missing from dataset")
	}
	if temp.NY != 3 || temp.NX != 3 || temp.YName != domain.DimYH || temp.XName != domain.DimXH {
		t.Fatalf("temp on %s x %s with shape %dx%d", temp.YName, temp.XName, temp.NY, temp.NX)
	}
	for tt := 0; tt < 2; tt++ {
		for j := 0; j < 3; j++ {
			for i := 0; i < 3; i++ {
				if j == 2 && i == 2 {
					continue
				}
				for k, offset := range []float64{2, 6} {
					want := tracerValue(j, i) + offset
					if got := temp.At(tt, k, j, i); math.Abs(got-want) > 1e-9 {
						t.Errorf("temp t=%d k=%d (%d,%d): expected %v, got %v", tt, k, j, i, want, got)
					}
				}
			}
		}
	}

	for _, name := range []string{"temp", "salt", "ssh", "u", "v"} {
		f, ok := ds.Field(name)
		if !ok {
			t.Fatalf("%s missing from dataset", name)
		}
		if f.Missing() != 0 {
			t.Errorf("%s has %d missing cells", name, f.Missing())
		}
	}

	u, _ := ds.Field("u")
	v, _ := ds.Field("v")
	if u.YName != domain.DimYH || u.XName != domain.DimXQ || u.NY != 3 || u.NX != 4 {
		t.Errorf("u on (%s, %s) %dx%d", u.YName, u.XName, u.NY, u.NX)
	}
	if v.YName != domain.DimYQ || v.XName != domain.DimXH || v.NY != 4 || v.NX != 3 {
		t.Errorf("v on (%s, %s) %dx%d", v.YName, v.XName, v.NY, v.NX)
	}
	// A quarter turn maps (1, 2) to (-2, 1).
	for n := range u.Data {
		if u.Data[n] != -2 {
			t.Fatalf("u[%d] = %v, expected -2", n, u.Data[n])
		}
	}
	for n := range v.Data {
		if v.Data[n] != 1 {
			t.Fatalf("v[%d] = %v, expected 1", n, v.Data[n])
		}
	}

	ssh, _ := ds.Field("ssh")
	if !ssh.Surface() || math.Abs(ssh.At(0, 0, 0, 0)-0.3) > 1e-12 {
		t.Errorf("ssh should be flooded to 0.3, got %v", ssh.At(0, 0, 0, 0))
	}
	if len(ds.TracerLon) != 9 || ds.TracerLon[4] != 1 || ds.TracerLat[4] != 11 {
		t.Errorf("tracer coordinates %v %v", ds.TracerLon, ds.TracerLat)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", res.Warnings)
	}
}

// TestRun_MissingVariable tests that loader errors keep their type
func TestRun_MissingVariable(t *testing.T) {
	cfg := testConfig(t)
	cfg.VariableNames["salinity"] = "salinity_typo"
	writer := &captureWriter{}
	uc := NewInitialConditionUseCase(&fakeFields{}, fakeGrids{}, writer, nil, nil)

	_, err := uc.Run(cfg)
	var missing *domain.MissingInputError
	if !errors.As(err, &missing) || missing.Variable != "salinity_typo" {
		t.Fatalf("expected MissingInputError, got %v", err)
	}
	if writer.ds != nil {
		t.Error("nothing should be written after a load failure")
	}
}

// TestRun_MismatchedGrids tests the merge check
func TestRun_MismatchedGrids(t *testing.T) {
	uc := NewInitialConditionUseCase(&fakeFields{lon: []float64{0, 1, 3}}, fakeGrids{}, &captureWriter{}, nil, nil)
	if _, err := uc.Run(testConfig(t)); err == nil {
		t.Fatal("expected a grid mismatch error")
	}
}

// TestRun_DeepFillAtFlood tests the alternative deep-fill placement
func TestRun_DeepFillAtFlood(t *testing.T) {
	cfg := testConfig(t)
	cfg.DeepFill = config.DeepFillFlood
	cfg.RegridMethod = "bilinear"
	writer := &captureWriter{}
	uc := NewInitialConditionUseCase(&fakeFields{}, fakeGrids{}, writer, nil, nil)
	if _, err := uc.Run(cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	temp, _ := writer.ds.Field("temp")
	if got := temp.At(0, 1, 0, 0); math.Abs(got-(tracerValue(0, 0)+6)) > 1e-9 {
		t.Errorf("bilinear identity: expected %v, got %v", tracerValue(0, 0)+6, got)
	}
}

// TestRun_BadMethod tests that an unknown method is a configuration error
func TestRun_BadMethod(t *testing.T) {
	cfg := testConfig(t)
	cfg.RegridMethod = "patch"
	_, err := NewInitialConditionUseCase(&fakeFields{}, fakeGrids{}, &captureWriter{}, nil, nil).Run(cfg)
	var cerr *domain.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

// TestRun_NoTimeUnits tests that a time axis without units is written as read
func TestRun_NoTimeUnits(t *testing.T) {
	writer := &captureWriter{}
	uc := NewInitialConditionUseCase(&fakeFields{noUnits: true}, fakeGrids{}, writer, nil, zaptest.NewLogger(t))
	res, err := uc.Run(testConfig(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff(srcTime, writer.ds.Time); diff != "" {
		t.Errorf("time axis (-want +got):\n%s", diff)
	}
	if writer.ds.TimeUnits != "" {
		t.Errorf("expected empty time units, got %q", writer.ds.TimeUnits)
	}
	if !slices.Contains(res.Warnings, "Source has no time axis units, time values written as read") {
		t.Errorf("expected a time units warning, got %v", res.Warnings)
	}
}
