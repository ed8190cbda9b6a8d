package domain

import "fmt"

// Calendar used for the time axis of the output.
const Calendar = "gregorian"

// LayerAttrs annotates the vertical axis of the output.
var LayerAttrs = map[string]string{
	"long_name":      "Layer pseudo-depth, -z*",
	"units":          "meter",
	"cartesian_axis": "Z",
	"positive":       "down",
}

// Dataset is the initial condition ready for output.
type Dataset struct {
	Fields []*Field

	Layers    []float64
	Time      []float64
	TimeUnits string
	Calendar  string

	// Tracer point coordinates, NY*NX row-major.
	TracerLon []float64
	TracerLat []float64

	Attrs map[string]string
}

// Field returns the field with the given name.
func (d *Dataset) Field(name string) (*Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Validate checks that every field shares the time axis and layer count.
func (d *Dataset) Validate() error {
	if len(d.Fields) == 0 {
		return fmt.Errorf("dataset has no fields")
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %s", f.Name)
		}
		seen[f.Name] = true
		if err := f.Validate(); err != nil {
			return err
		}
		if f.NT() != len(d.Time) {
			return fmt.Errorf("field %s has %d time records, dataset has %d", f.Name, f.NT(), len(d.Time))
		}
		if !f.Surface() && f.NZ() != len(d.Layers) {
			return fmt.Errorf("field %s has %d layers, dataset has %d", f.Name, f.NZ(), len(d.Layers))
		}
	}
	return nil
}
