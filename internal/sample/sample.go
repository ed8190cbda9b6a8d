// Package sample writes a small synthetic input set: five reanalysis files,
// a vertical grid, a supergrid and the configuration document that ties
// them together.
package sample

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/fhs/go-netcdf/netcdf"
	"gopkg.in/yaml.v3"

	"go.ngs.io/glorys-ic/internal/config"
	"go.ngs.io/glorys-ic/internal/domain"
)

// Missing value markers used in the generated source files.
const (
	floatFill = float32(-32767)
	shortFill = int16(-32767)
	sshScale  = 0.0001
)

// Region defines the geographic bounds and resolution of the source grid.
type Region struct {
	LatMin     float64
	LatMax     float64
	LonMin     float64
	LonMax     float64
	Resolution float64 // degrees
}

// Options controls the generated input set.
type Options struct {
	Dir    string
	Source Region
	Depths []float64 // Source depth axis in meters.
	Times  int       // Daily records starting at StartHours.

	// StartHours is the first time value in hours since 1950-01-01.
	StartHours float64

	// Target supergrid: NY x NX tracer cells covering Target, rotated by
	// AngleDeg everywhere.
	Target   Region
	NY, NX   int
	AngleDeg float64
	DZ       []float64

	// Lon360 stores source longitudes in [0, 360).
	Lon360 bool
	Stride int
	Method string
}

// DefaultOptions returns a small Gulf of Mexico set.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:        dir,
		Source:     Region{LatMin: 18, LatMax: 31, LonMin: -98, LonMax: -80, Resolution: 0.5},
		Depths:     []float64{0.5, 10, 50, 200, 1000},
		Times:      2,
		StartHours: 657000,
		Target:     Region{LatMin: 20, LatMax: 29, LonMin: -96, LonMax: -82},
		NY:         12,
		NX:         16,
		AngleDeg:   15,
		DZ:         []float64{5, 10, 25, 60, 150, 400},
		Stride:     1,
		Method:     "nearest_s2d",
	}
}

// Files lists the paths written by Generate.
type Files struct {
	Inputs map[domain.Role]string
	VGrid  string
	HGrid  string
	Output string
	Config string
}

// sourceVar describes one generated reanalysis variable.
type sourceVar struct {
	role  domain.Role
	name  string
	units string
	value func(t, depth, lat, lon float64) float64
}

var sourceVars = []sourceVar{
	{domain.Temperature, "thetao", "degrees_C", func(t, z, lat, lon float64) float64 {
		return 28 - 0.25*(lat-18) - 18*(1-math.Exp(-z/300)) + 0.1*t
	}},
	{domain.Salinity, "so", "1e-3", func(_, z, lat, lon float64) float64 {
		return 35 + 0.4*math.Sin(lon*math.Pi/12) + 0.0005*z
	}},
	{domain.SeaSurfaceHeight, "zos", "m", func(t, _, lat, lon float64) float64 {
		return 0.3*math.Sin(lat*math.Pi/10)*math.Cos(lon*math.Pi/15) + 0.01*t
	}},
	{domain.ZonalVelocity, "uo", "m s-1", func(_, z, lat, _ float64) float64 {
		return 0.4 * math.Cos((lat-18)*math.Pi/13) * math.Exp(-z/200)
	}},
	{domain.MeridionalVelocity, "vo", "m s-1", func(_, z, _, lon float64) float64 {
		return 0.2 * math.Sin((lon+98)*math.Pi/18) * math.Exp(-z/200)
	}},
}

// bottom returns the sea floor depth at (lat, lon); values <= 0 are land.
func bottom(lat, lon float64) float64 {
	// Land north of 30N and along a peninsula near 88W.
	if lat > 30 || (lon > -89 && lon < -87 && lat > 21) {
		return 0
	}
	// Shelf shoaling toward the northern coast.
	return 3000 * math.Min(1, (30-lat)/6)
}

// axis returns evenly spaced coordinates from lo to hi inclusive.
func axis(lo, hi, step float64) []float64 {
	n := int(math.Round((hi-lo)/step)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// Generate writes every file into opts.Dir and returns their paths.
func Generate(opts Options) (*Files, error) {
	if opts.Source.Resolution <= 0 || opts.Times < 1 || len(opts.Depths) == 0 {
		return nil, fmt.Errorf("invalid source description")
	}
	if opts.NX < 1 || opts.NY < 1 || len(opts.DZ) == 0 {
		return nil, fmt.Errorf("invalid target description")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	lat := axis(opts.Source.LatMin, opts.Source.LatMax, opts.Source.Resolution)
	lon := axis(opts.Source.LonMin, opts.Source.LonMax, opts.Source.Resolution)
	times := make([]float64, opts.Times)
	for i := range times {
		times[i] = opts.StartHours + 24*float64(i)
	}

	files := &Files{
		Inputs: make(map[domain.Role]string, len(sourceVars)),
		VGrid:  filepath.Join(opts.Dir, "vgrid.nc"),
		HGrid:  filepath.Join(opts.Dir, "ocean_hgrid.nc"),
		Output: filepath.Join(opts.Dir, "out", "glorys_ic.nc"),
		Config: filepath.Join(opts.Dir, "glorys_ic.yaml"),
	}
	for _, sv := range sourceVars {
		path := filepath.Join(opts.Dir, "glorys_"+sv.name+".nc")
		if err := writeSource(path, sv, times, opts.Depths, lat, lon, opts.Lon360); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", sv.name, err)
		}
		files.Inputs[sv.role] = path
	}
	if err := writeVGrid(files.VGrid, opts.DZ); err != nil {
		return nil, fmt.Errorf("failed to write vertical grid: %w", err)
	}
	if err := writeHGrid(files.HGrid, opts); err != nil {
		return nil, fmt.Errorf("failed to write supergrid: %w", err)
	}
	if err := writeConfig(files, opts); err != nil {
		return nil, err
	}
	return files, nil
}

// writeSource writes one (time, depth, latitude, longitude) variable, or a
// (time, latitude, longitude) variable for sea surface height, which is
// stored packed as SHORT.
//
//nolint:gocyclo // Define mode bookkeeping.
func writeSource(path string, sv sourceVar, times, depths, lat, lon []float64, lon360 bool) error {
	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.OFFSET_64BIT)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer nc.Close()

	surface := sv.role.Surface()
	fileLon := lon
	if lon360 {
		fileLon = make([]float64, len(lon))
		for i, x := range lon {
			fileLon[i] = math.Mod(x+360, 360)
		}
	}

	//nolint:gosec // G115: Lengths are non-negative.
	timeDim, err := nc.AddDim("time", uint64(len(times)))
	if err != nil {
		return err
	}
	dims := []netcdf.Dim{timeDim}
	var depthVar netcdf.Var
	if !surface {
		depthDim, err := nc.AddDim("depth", uint64(len(depths))) //nolint:gosec // G115: Lengths are non-negative.
		if err != nil {
			return err
		}
		if depthVar, err = nc.AddVar("depth", netcdf.FLOAT, []netcdf.Dim{depthDim}); err != nil {
			return err
		}
		if err := depthVar.Attr("units").WriteBytes([]byte("m")); err != nil {
			return err
		}
		dims = append(dims, depthDim)
	}
	latDim, err := nc.AddDim("latitude", uint64(len(lat))) //nolint:gosec // G115: Lengths are non-negative.
	if err != nil {
		return err
	}
	lonDim, err := nc.AddDim("longitude", uint64(len(lon))) //nolint:gosec // G115: Lengths are non-negative.
	if err != nil {
		return err
	}
	dims = append(dims, latDim, lonDim)

	timeVar, err := nc.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return err
	}
	if err := timeVar.Attr("units").WriteBytes([]byte("hours since 1950-01-01")); err != nil {
		return err
	}
	latVar, err := nc.AddVar("latitude", netcdf.FLOAT, []netcdf.Dim{latDim})
	if err != nil {
		return err
	}
	lonVar, err := nc.AddVar("longitude", netcdf.FLOAT, []netcdf.Dim{lonDim})
	if err != nil {
		return err
	}

	kind := netcdf.FLOAT
	if surface {
		kind = netcdf.SHORT
	}
	dataVar, err := nc.AddVar(sv.name, kind, dims)
	if err != nil {
		return err
	}
	if err := dataVar.Attr("units").WriteBytes([]byte(sv.units)); err != nil {
		return err
	}
	if surface {
		if err := dataVar.Attr("_FillValue").WriteInt16s([]int16{shortFill}); err != nil {
			return err
		}
		if err := dataVar.Attr("scale_factor").WriteFloat32s([]float32{sshScale}); err != nil {
			return err
		}
		if err := dataVar.Attr("add_offset").WriteFloat32s([]float32{0}); err != nil {
			return err
		}
	} else if err := dataVar.Attr("_FillValue").WriteFloat32s([]float32{floatFill}); err != nil {
		return err
	}

	if err := nc.EndDef(); err != nil {
		return err
	}

	if err := timeVar.WriteFloat64s(times); err != nil {
		return err
	}
	if !surface {
		if err := depthVar.WriteFloat32s(narrow(depths)); err != nil {
			return err
		}
	}
	if err := latVar.WriteFloat32s(narrow(lat)); err != nil {
		return err
	}
	if err := lonVar.WriteFloat32s(narrow(fileLon)); err != nil {
		return err
	}

	levels := depths
	if surface {
		levels = []float64{0}
	}
	n := len(times) * len(levels) * len(lat) * len(lon)
	if surface {
		data := make([]int16, 0, n)
		for t := range times {
			for j := range lat {
				for i := range lon {
					if bottom(lat[j], lon[i]) <= 0 {
						data = append(data, shortFill)
						continue
					}
					data = append(data, int16(math.Round(sv.value(float64(t), 0, lat[j], lon[i])/sshScale)))
				}
			}
		}
		return dataVar.WriteInt16s(data)
	}
	data := make([]float32, 0, n)
	for t := range times {
		for _, z := range levels {
			for j := range lat {
				for i := range lon {
					if z > bottom(lat[j], lon[i]) {
						data = append(data, floatFill)
						continue
					}
					data = append(data, float32(sv.value(float64(t), z, lat[j], lon[i])))
				}
			}
		}
	}
	return dataVar.WriteFloat32s(data)
}

func narrow(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func writeVGrid(path string, dz []float64) error {
	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		return err
	}
	defer nc.Close()

	nz, err := nc.AddDim("nz", uint64(len(dz))) //nolint:gosec // G115: Lengths are non-negative.
	if err != nil {
		return err
	}
	v, err := nc.AddVar("dz", netcdf.DOUBLE, []netcdf.Dim{nz})
	if err != nil {
		return err
	}
	if err := v.Attr("units").WriteBytes([]byte("m")); err != nil {
		return err
	}
	if err := nc.EndDef(); err != nil {
		return err
	}
	return v.WriteFloat64s(dz)
}

// writeHGrid writes a regular supergrid over opts.Target with a constant
// angle_dx stored in degrees.
func writeHGrid(path string, opts Options) error {
	nyp, nxp := 2*opts.NY+1, 2*opts.NX+1
	dx := (opts.Target.LonMax - opts.Target.LonMin) / float64(nxp-1)
	dy := (opts.Target.LatMax - opts.Target.LatMin) / float64(nyp-1)
	x := make([]float64, nyp*nxp)
	y := make([]float64, nyp*nxp)
	a := make([]float64, nyp*nxp)
	for j := 0; j < nyp; j++ {
		for i := 0; i < nxp; i++ {
			x[j*nxp+i] = opts.Target.LonMin + dx*float64(i)
			y[j*nxp+i] = opts.Target.LatMin + dy*float64(j)
			a[j*nxp+i] = opts.AngleDeg
		}
	}

	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		return err
	}
	defer nc.Close()

	nyDim, err := nc.AddDim("nyp", uint64(nyp)) //nolint:gosec // G115: Lengths are non-negative.
	if err != nil {
		return err
	}
	nxDim, err := nc.AddDim("nxp", uint64(nxp)) //nolint:gosec // G115: Lengths are non-negative.
	if err != nil {
		return err
	}
	vars := make(map[string]netcdf.Var, 3)
	for name, units := range map[string]string{"x": "degrees_east", "y": "degrees_north", "angle_dx": "degrees"} {
		v, err := nc.AddVar(name, netcdf.DOUBLE, []netcdf.Dim{nyDim, nxDim})
		if err != nil {
			return err
		}
		if err := v.Attr("units").WriteBytes([]byte(units)); err != nil {
			return err
		}
		vars[name] = v
	}
	if err := nc.EndDef(); err != nil {
		return err
	}
	for name, data := range map[string][]float64{"x": x, "y": y, "angle_dx": a} {
		if err := vars[name].WriteFloat64s(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// writeConfig writes a configuration document pointing at the generated files.
func writeConfig(files *Files, opts Options) error {
	cfg := config.Config{
		Temperature:        files.Inputs[domain.Temperature],
		Salinity:           files.Inputs[domain.Salinity],
		SeaSurfaceHeight:   files.Inputs[domain.SeaSurfaceHeight],
		ZonalVelocity:      files.Inputs[domain.ZonalVelocity],
		MeridionalVelocity: files.Inputs[domain.MeridionalVelocity],
		VariableNames:      make(map[string]string, len(sourceVars)),
		VGridFile:          files.VGrid,
		VGridVarName:       "dz",
		GridFile:           files.HGrid,
		OutputFile:         files.Output,
		ReuseWeights:       true,
		WeightsDir:         filepath.Join(opts.Dir, "weights"),
		RegridMethod:       opts.Method,
		BoundingBox: &config.BoundingBox{
			LonMin: opts.Source.LonMin,
			LonMax: opts.Source.LonMax,
			LatMin: opts.Source.LatMin,
			LatMax: opts.Source.LatMax,
		},
		SubsampleStride: opts.Stride,
		DeepFill:        config.DeepFillFinal,
	}
	for _, sv := range sourceVars {
		cfg.VariableNames[sv.role.Key()] = sv.name
	}
	raw, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(files.Config, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}
