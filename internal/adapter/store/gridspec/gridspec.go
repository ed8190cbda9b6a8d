// Package gridspec reads the target model's vertical and horizontal grid files.
package gridspec

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"go.ngs.io/glorys-ic/internal/domain"
)

// Supergrid variable names.
const (
	varX     = "x"
	varY     = "y"
	varAngle = "angle_dx"
)

// Reader loads grid specification files. Files are small, so whole
// variables are read at once.
type Reader struct{}

// NewReader creates a new grid specification reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadVertical builds a vertical grid from the layer thickness variable.
func (r *Reader) ReadVertical(path, varName string) (*domain.VerticalGrid, error) {
	g, err := open(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	v, err := g.GetVariable(varName)
	if err != nil {
		return nil, &domain.MissingInputError{Path: path, Variable: varName, Err: err}
	}
	dz, shape, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", varName, path, err)
	}
	if len(shape) != 1 {
		return nil, fmt.Errorf("%s in %s must be 1-D, got %dD", varName, path, len(shape))
	}
	vg, err := domain.NewVerticalGrid(dz)
	if err != nil {
		return nil, fmt.Errorf("invalid vertical grid %s: %w", path, err)
	}
	return vg, nil
}

// ReadHorizontal reads a MOM6 supergrid (x, y, angle_dx).
// The angle is returned in radians whatever the file stores.
func (r *Reader) ReadHorizontal(path string) (*domain.HorizontalGrid, error) {
	g, err := open(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	arrays := make(map[string][]float64, 3)
	var nyp, nxp int
	for _, name := range []string{varX, varY, varAngle} {
		v, err := g.GetVariable(name)
		if err != nil {
			return nil, &domain.MissingInputError{Path: path, Variable: name, Err: err}
		}
		data, shape, err := flatten(v.Values)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", name, path, err)
		}
		if len(shape) != 2 {
			return nil, fmt.Errorf("%s in %s must be 2-D, got %dD", name, path, len(shape))
		}
		if name == varX {
			nyp, nxp = shape[0], shape[1]
		} else if shape[0] != nyp || shape[1] != nxp {
			return nil, fmt.Errorf("%s in %s has shape %dx%d, x has %dx%d", name, path, shape[0], shape[1], nyp, nxp)
		}
		if name == varAngle && isDegrees(v.Attributes) {
			for i := range data {
				data[i] *= math.Pi / 180
			}
		}
		arrays[name] = data
	}

	hg := &domain.HorizontalGrid{
		NYP:   nyp,
		NXP:   nxp,
		X:     arrays[varX],
		Y:     arrays[varY],
		Angle: arrays[varAngle],
	}
	if err := hg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid supergrid %s: %w", path, err)
	}
	return hg, nil
}

func open(path string) (api.Group, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &domain.MissingInputError{Path: path, Err: err}
	}
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	return g, nil
}

func isDegrees(attrs api.AttributeMap) bool {
	if attrs == nil {
		return false
	}
	raw, ok := attrs.Get("units")
	if !ok {
		return false
	}
	units, ok := raw.(string)
	return ok && strings.HasPrefix(strings.ToLower(strings.TrimSpace(units)), "degree")
}

// flatten converts the decoded values of a 1-D or 2-D numeric variable to a
// row-major float64 slice and its shape.
func flatten(values interface{}) ([]float64, []int, error) {
	switch v := values.(type) {
	case []float64:
		return append([]float64(nil), v...), []int{len(v)}, nil
	case []float32:
		return widen(v), []int{len(v)}, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, []int{len(v)}, nil
	case [][]float64:
		return flatten2D(v, func(row []float64) []float64 { return row })
	case [][]float32:
		return flatten2D(v, widen)
	default:
		return nil, nil, fmt.Errorf("unsupported value type %T", values)
	}
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func flatten2D[T any](rows [][]T, conv func([]T) []float64) ([]float64, []int, error) {
	if len(rows) == 0 {
		return nil, []int{0, 0}, nil
	}
	nx := len(rows[0])
	out := make([]float64, 0, len(rows)*nx)
	for j, row := range rows {
		if len(row) != nx {
			return nil, nil, fmt.Errorf("ragged row %d: %d values, expected %d", j, len(row), nx)
		}
		out = append(out, conv(row)...)
	}
	return out, []int{len(rows), nx}, nil
}
