// Package output writes the initial-condition dataset as a MOM6 NetCDF file.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/google/uuid"

	"go.ngs.io/glorys-ic/internal/domain"
)

// dimOrder is the order in which dimensions are defined in the file.
var dimOrder = []string{domain.DimTime, domain.DimLayer, domain.DimYH, domain.DimYQ, domain.DimXH, domain.DimXQ}

// Writer writes datasets to NetCDF classic files with 64-bit offsets.
type Writer struct{}

// NewWriter creates a new writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write stores ds at path, creating the parent directory and replacing any
// existing file. Variables carry no _FillValue.
func (w *Writer) Write(path string, ds *domain.Dataset) error {
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := write(tmp, ds); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// dimLengths collects the horizontal dimension sizes from the fields.
func dimLengths(ds *domain.Dataset) (map[string]int, error) {
	lens := map[string]int{
		domain.DimTime:  len(ds.Time),
		domain.DimLayer: len(ds.Layers),
	}
	set := func(name string, n int) error {
		if old, ok := lens[name]; ok && old != n {
			return fmt.Errorf("dimension %s has conflicting lengths %d and %d", name, old, n)
		}
		lens[name] = n
		return nil
	}
	for _, f := range ds.Fields {
		if err := set(f.YName, f.NY); err != nil {
			return nil, err
		}
		if err := set(f.XName, f.NX); err != nil {
			return nil, err
		}
	}
	if ds.TracerLon != nil {
		if lens[domain.DimYH]*lens[domain.DimXH] != len(ds.TracerLon) || len(ds.TracerLat) != len(ds.TracerLon) {
			return nil, fmt.Errorf("tracer coordinates do not match (%s, %s)", domain.DimYH, domain.DimXH)
		}
	}
	for name := range lens {
		known := false
		for _, d := range dimOrder {
			known = known || d == name
		}
		if !known {
			return nil, fmt.Errorf("field dimension %q is not an output dimension", name)
		}
	}
	return lens, nil
}

//nolint:gocyclo // Define mode bookkeeping for every variable.
func write(path string, ds *domain.Dataset) error {
	lens, err := dimLengths(ds)
	if err != nil {
		return err
	}

	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.OFFSET_64BIT)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = nc.Close()
		}
	}()

	dims := make(map[string]netcdf.Dim, len(lens))
	for _, name := range dimOrder {
		n, ok := lens[name]
		if !ok {
			continue
		}
		size := uint64(n) //nolint:gosec // G115: Dimension sizes are non-negative.
		if name == domain.DimTime {
			size = 0 // Unlimited.
		}
		d, err := nc.AddDim(name, size)
		if err != nil {
			return fmt.Errorf("failed to add dimension %s: %w", name, err)
		}
		dims[name] = d
	}

	timeVar, err := nc.AddVar(domain.DimTime, netcdf.DOUBLE, []netcdf.Dim{dims[domain.DimTime]})
	if err != nil {
		return fmt.Errorf("failed to add time: %w", err)
	}
	calendar := ds.Calendar
	if calendar == "" {
		calendar = domain.Calendar
	}
	if err := writeAttrs(timeVar, map[string]string{"units": ds.TimeUnits, "calendar": calendar}); err != nil {
		return err
	}

	layerVar, err := nc.AddVar(domain.DimLayer, netcdf.DOUBLE, []netcdf.Dim{dims[domain.DimLayer]})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", domain.DimLayer, err)
	}
	if err := writeAttrs(layerVar, domain.LayerAttrs); err != nil {
		return err
	}

	var lonVar, latVar netcdf.Var
	if ds.TracerLon != nil {
		hdims := []netcdf.Dim{dims[domain.DimYH], dims[domain.DimXH]}
		if lonVar, err = nc.AddVar("lon", netcdf.DOUBLE, hdims); err != nil {
			return fmt.Errorf("failed to add lon: %w", err)
		}
		if err := writeAttrs(lonVar, map[string]string{"units": "degrees_east", "long_name": "longitude"}); err != nil {
			return err
		}
		if latVar, err = nc.AddVar("lat", netcdf.DOUBLE, hdims); err != nil {
			return fmt.Errorf("failed to add lat: %w", err)
		}
		if err := writeAttrs(latVar, map[string]string{"units": "degrees_north", "long_name": "latitude"}); err != nil {
			return err
		}
	}

	vars := make([]netcdf.Var, len(ds.Fields))
	for n, f := range ds.Fields {
		vdims := []netcdf.Dim{dims[domain.DimTime]}
		if !f.Surface() {
			vdims = append(vdims, dims[domain.DimLayer])
		}
		vdims = append(vdims, dims[f.YName], dims[f.XName])
		v, err := nc.AddVar(f.Name, netcdf.DOUBLE, vdims)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", f.Name, err)
		}
		attrs := map[string]string{}
		if f.Units != "" {
			attrs["units"] = f.Units
		}
		if ds.TracerLon != nil && f.YName == domain.DimYH && f.XName == domain.DimXH {
			attrs["coordinates"] = "lon lat"
		}
		if err := writeAttrs(v, attrs); err != nil {
			return err
		}
		vars[n] = v
	}

	keys := make([]string, 0, len(ds.Attrs))
	for k := range ds.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := nc.Attr(k).WriteBytes([]byte(ds.Attrs[k])); err != nil {
			return fmt.Errorf("failed to write global attribute %s: %w", k, err)
		}
	}

	if err := nc.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}

	nt := uint64(len(ds.Time)) //nolint:gosec // G115: Lengths are non-negative.
	if err := timeVar.WriteFloat64Slice(ds.Time, []uint64{0}, []uint64{nt}); err != nil {
		return fmt.Errorf("failed to write time: %w", err)
	}
	if err := layerVar.WriteFloat64s(ds.Layers); err != nil {
		return fmt.Errorf("failed to write %s: %w", domain.DimLayer, err)
	}
	if ds.TracerLon != nil {
		if err := lonVar.WriteFloat64s(ds.TracerLon); err != nil {
			return fmt.Errorf("failed to write lon: %w", err)
		}
		if err := latVar.WriteFloat64s(ds.TracerLat); err != nil {
			return fmt.Errorf("failed to write lat: %w", err)
		}
	}

	for n, f := range ds.Fields {
		start := []uint64{0}
		count := []uint64{nt}
		if !f.Surface() {
			start = append(start, 0)
			count = append(count, uint64(f.NZ())) //nolint:gosec // G115: Lengths are non-negative.
		}
		//nolint:gosec // G115: Lengths are non-negative.
		start, count = append(start, 0, 0), append(count, uint64(f.NY), uint64(f.NX))
		if err := vars[n].WriteFloat64Slice(f.Data, start, count); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}

	closed = true
	if err := nc.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func writeAttrs(v netcdf.Var, attrs map[string]string) error {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if attrs[k] == "" {
			continue
		}
		if err := v.Attr(k).WriteBytes([]byte(attrs[k])); err != nil {
			return fmt.Errorf("failed to write attribute %s: %w", k, err)
		}
	}
	return nil
}
