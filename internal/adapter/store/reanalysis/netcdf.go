// Package reanalysis reads single-variable GLORYS NetCDF files into domain fields.
package reanalysis

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/glorys-ic/internal/domain"
)

// Candidate coordinate names, tried in order.
var (
	timeNames  = []string{"time", "time_counter", "t"}
	depthNames = []string{"depth", "deptht", "depthu", "depthv", "lev", "z"}
	latNames   = []string{"latitude", "lat", "nav_lat", "y"}
	lonNames   = []string{"longitude", "lon", "nav_lon", "x"}
)

type axis int

const (
	axisTime axis = iota
	axisDepth
	axisLat
	axisLon
	axisUnknown
)

// Store reads reanalysis variables from local NetCDF files.
type Store struct{}

// NewStore creates a new reanalysis store.
func NewStore() *Store {
	return &Store{}
}

// Load reads the requested variable restricted to the bounding box.
// Only the hyperslab covering the box is read, one time record at a time.
//
//nolint:gocyclo // Axis detection and hyperslab bookkeeping.
func (s *Store) Load(req domain.FieldRequest) (*domain.Field, error) {
	if _, err := os.Stat(req.Path); err != nil {
		return nil, &domain.MissingInputError{Path: req.Path, Err: err}
	}
	nc, err := netcdf.OpenFile(req.Path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", req.Path, err)
	}
	defer func() { _ = nc.Close() }()

	dataVar, err := nc.Var(req.Variable)
	if err != nil {
		return nil, &domain.MissingInputError{Path: req.Path, Variable: req.Variable, Err: err}
	}

	dims, err := dataVar.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions of %s: %w", req.Variable, err)
	}

	// Map every dimension of the variable to a canonical axis.
	axes := make([]axis, len(dims))
	dimNames := make([]string, len(dims))
	pos := map[axis]int{}
	for d, dim := range dims {
		name, err := dim.Name()
		if err != nil {
			return nil, fmt.Errorf("failed to get dimension name: %w", err)
		}
		dimNames[d] = name
		axes[d] = classify(name)
		if axes[d] == axisUnknown {
			return nil, fmt.Errorf("variable %s has unrecognised dimension %q", req.Variable, name)
		}
		if _, dup := pos[axes[d]]; dup {
			return nil, fmt.Errorf("variable %s has two %s-like dimensions", req.Variable, name)
		}
		pos[axes[d]] = d
	}
	if _, ok := pos[axisLat]; !ok {
		return nil, fmt.Errorf("variable %s has no latitude dimension (tried: %v)", req.Variable, latNames)
	}
	if _, ok := pos[axisLon]; !ok {
		return nil, fmt.Errorf("variable %s has no longitude dimension (tried: %v)", req.Variable, lonNames)
	}

	latData, err := readCoord(nc, dimNames[pos[axisLat]], latNames)
	if err != nil {
		return nil, err
	}
	lonData, err := readCoord(nc, dimNames[pos[axisLon]], lonNames)
	if err != nil {
		return nil, err
	}

	latStart, latEnd, err := axisRange(latData, req.Box.LatMin, req.Box.LatMax)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lonMin := normalizeLonForAxis(lonData, req.Box.LonMin)
	lonMax := normalizeLonForAxis(lonData, req.Box.LonMax)
	if lonMin > lonMax {
		return nil, fmt.Errorf("bounding box %g..%g crosses the longitude seam of %s", req.Box.LonMin, req.Box.LonMax, req.Path)
	}
	lonStart, lonEnd, err := axisRange(lonData, lonMin, lonMax)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}

	var depthData []float64
	nDepth := 1
	if d, ok := pos[axisDepth]; ok {
		depthData, err = readCoord(nc, dimNames[d], depthNames)
		if err != nil {
			return nil, err
		}
		if !req.Surface {
			nDepth = len(depthData)
		}
	}
	if req.Surface {
		depthData = nil
	} else if depthData == nil {
		return nil, fmt.Errorf("variable %s has no depth dimension (tried: %v)", req.Variable, depthNames)
	}

	timeData := []float64{0}
	var timeUnits string
	if d, ok := pos[axisTime]; ok {
		tv, err := nc.Var(dimNames[d])
		if err != nil {
			return nil, &domain.MissingInputError{Path: req.Path, Variable: dimNames[d], Err: err}
		}
		if timeData, err = readFloat64Var(tv); err != nil {
			return nil, fmt.Errorf("failed to read time: %w", err)
		}
		timeUnits, _ = attrString(tv, "units")
	}

	stride := req.Stride
	if stride < 1 {
		stride = 1
	}
	latIdx := strided(latStart, latEnd, stride)
	lonIdx := strided(lonStart, lonEnd, stride)

	field := domain.NewField(req.Variable, len(timeData), depthData, len(latIdx), len(lonIdx))
	field.Time = timeData
	field.TimeUnits = timeUnits
	field.Units, _ = attrString(dataVar, "units")
	field.Lat = pick(latData, latIdx)
	field.Lon = pick(lonData, lonIdx)

	pack := readPacking(dataVar)

	// Hyperslab per time record: full depth (or surface), box in lat/lon.
	start := make([]uint64, len(dims))
	count := make([]uint64, len(dims))
	for d, a := range axes {
		switch a {
		case axisTime:
			count[d] = 1
		case axisDepth:
			//nolint:gosec // G115: Safe int to uint64 conversion for NetCDF dimensions.
			count[d] = uint64(nDepth)
		case axisLat:
			//nolint:gosec // G115: Safe int to uint64 conversion for NetCDF indices.
			start[d], count[d] = uint64(latStart), uint64(latEnd-latStart+1)
		case axisLon:
			//nolint:gosec // G115: Safe int to uint64 conversion for NetCDF indices.
			start[d], count[d] = uint64(lonStart), uint64(lonEnd-lonStart+1)
		case axisUnknown:
		}
	}
	// Row-major strides of the hyperslab in the variable's own dimension order.
	strides := make([]int, len(dims))
	acc := 1
	for d := len(dims) - 1; d >= 0; d-- {
		strides[d] = acc
		acc *= int(count[d])
	}
	sk, sj, si := 0, strides[pos[axisLat]], strides[pos[axisLon]]
	if d, ok := pos[axisDepth]; ok {
		sk = strides[d]
	}

	for t := range timeData {
		if d, ok := pos[axisTime]; ok {
			//nolint:gosec // G115: Safe int to uint64 conversion for NetCDF indices.
			start[d] = uint64(t)
		}
		flat, err := readSlice(dataVar, start, count)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s record %d: %w", req.Variable, t, err)
		}
		for k := 0; k < nDepth; k++ {
			for j, lj := range latIdx {
				for i, li := range lonIdx {
					raw := flat[k*sk+(lj-latStart)*sj+(li-lonStart)*si]
					field.Set(t, k, j, i, pack.unpack(raw))
				}
			}
		}
	}

	if err := field.Validate(); err != nil {
		return nil, fmt.Errorf("invalid field: %w", err)
	}
	return field, nil
}

func classify(name string) axis {
	lower := strings.ToLower(name)
	for _, group := range []struct {
		a     axis
		names []string
	}{
		{axisTime, timeNames},
		{axisDepth, depthNames},
		{axisLat, latNames},
		{axisLon, lonNames},
	} {
		for _, n := range group.names {
			if lower == n {
				return group.a
			}
		}
	}
	return axisUnknown
}

// readCoord reads the coordinate variable of a dimension, falling back to
// the candidate names when the dimension has no variable of its own.
func readCoord(nc netcdf.Dataset, dimName string, candidates []string) ([]float64, error) {
	names := append([]string{dimName}, candidates...)
	for _, name := range names {
		if v, err := nc.Var(name); err == nil {
			data, err := readFloat64Var(v)
			if err == nil {
				return data, nil
			}
		}
	}
	return nil, fmt.Errorf("coordinate variable for %s not found (tried: %v)", dimName, names)
}

// axisRange returns the first and last index of a monotonic axis inside [lo, hi].
func axisRange(values []float64, lo, hi float64) (int, int, error) {
	first, last := -1, -1
	for i, v := range values {
		if v >= lo && v <= hi {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		if len(values) == 0 {
			return 0, 0, errors.New("axis is empty")
		}
		return 0, 0, fmt.Errorf("window [%g, %g] does not overlap axis [%g, %g]", lo, hi, values[0], values[len(values)-1])
	}
	return first, last, nil
}

func strided(first, last, stride int) []int {
	idx := make([]int, 0, (last-first)/stride+1)
	for i := first; i <= last; i += stride {
		idx = append(idx, i)
	}
	return idx
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for n, i := range idx {
		out[n] = values[i]
	}
	return out
}

func lonAxisRequiresWrap(lons []float64) bool {
	if len(lons) == 0 {
		return false
	}
	minVal := lons[0]
	maxVal := lons[len(lons)-1]
	if minVal > maxVal {
		minVal, maxVal = maxVal, minVal
	}
	return minVal >= 0 && maxVal > 180
}

func normalizeLon360(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

// normalizeLonForAxis expresses lon in the convention of a longitude axis.
func normalizeLonForAxis(lons []float64, lon float64) float64 {
	if lonAxisRequiresWrap(lons) {
		return normalizeLon360(lon)
	}
	return lon
}
