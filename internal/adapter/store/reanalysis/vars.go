package reanalysis

import (
	"fmt"
	"math"

	"github.com/fhs/go-netcdf/netcdf"
)

// packing holds the CF attributes that turn stored values into physical ones.
type packing struct {
	fill     float64
	hasFill  bool
	missing  float64
	hasMiss  bool
	scale    float64
	offset   float64
	hasScale bool
}

func readPacking(v netcdf.Var) packing {
	p := packing{scale: 1}
	p.fill, p.hasFill = attrFloat(v, "_FillValue")
	p.missing, p.hasMiss = attrFloat(v, "missing_value")
	if s, ok := attrFloat(v, "scale_factor"); ok && s != 0 {
		p.scale, p.hasScale = s, true
	}
	if o, ok := attrFloat(v, "add_offset"); ok {
		p.offset, p.hasScale = o, true
	}
	return p
}

// unpack maps a stored value to its physical value, or NaN when missing.
func (p packing) unpack(raw float64) float64 {
	if math.IsNaN(raw) || (p.hasFill && raw == p.fill) || (p.hasMiss && raw == p.missing) {
		return math.NaN()
	}
	// Values this large are fill sentinels written without an attribute.
	if math.Abs(raw) >= 1e30 {
		return math.NaN()
	}
	if p.hasScale {
		return raw*p.scale + p.offset
	}
	return raw
}

// attrFloat reads the first value of a numeric attribute.
func attrFloat(v netcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	if a == (netcdf.Attr{}) {
		return 0, false
	}
	if n, err := a.Len(); err != nil || n == 0 {
		return 0, false
	}
	buf64 := make([]float64, 1)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, 1)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	bufi := make([]int32, 1)
	if err := a.ReadInt32s(bufi); err == nil {
		return float64(bufi[0]), true
	}
	bufs := make([]int16, 1)
	if err := a.ReadInt16s(bufs); err == nil {
		return float64(bufs[0]), true
	}
	return 0, false
}

// attrString reads a text attribute.
func attrString(v netcdf.Var, name string) (string, bool) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return "", false
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", false
	}
	// Some writers include the C terminator in the length.
	for len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), true
}

// readFloat64Var reads a 1D variable of any numeric type as float64.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}
	length, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	return readSlice(v, []uint64{0}, []uint64{length})
}

// readSlice reads a hyperslab of a numeric variable as float64.
func readSlice(v netcdf.Var, start, count []uint64) ([]float64, error) {
	varType, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get variable type: %w", err)
	}

	total := 1
	for _, c := range count {
		total *= int(c)
	}

	switch varType {
	case netcdf.DOUBLE:
		data := make([]float64, total)
		if err := v.ReadFloat64Slice(data, start, count); err != nil {
			return nil, fmt.Errorf("failed to read float64 subset: %w", err)
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32Slice(tmp, start, count); err != nil {
			return nil, fmt.Errorf("failed to read float32 subset: %w", err)
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32Slice(tmp, start, count); err != nil {
			return nil, fmt.Errorf("failed to read int32 subset: %w", err)
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16Slice(tmp, start, count); err != nil {
			return nil, fmt.Errorf("failed to read int16 subset: %w", err)
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.BYTE, netcdf.UBYTE, netcdf.CHAR, netcdf.USHORT, netcdf.UINT, netcdf.INT64, netcdf.UINT64, netcdf.STRING:
		return nil, fmt.Errorf("unsupported data type: %v (expected DOUBLE, FLOAT, INT, or SHORT)", varType)
	}
	return nil, fmt.Errorf("unsupported data type: %v", varType)
}
