// Package config loads the YAML document that drives one initial-condition run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"go.ngs.io/glorys-ic/internal/domain"
)

// Deep-fill placement.
const (
	DeepFillFinal = "final" // After rotation, on the target grid.
	DeepFillFlood = "flood" // Right after the land flood, on the source grid.
)

// DefaultBoundingBox is the window used by the reference North Atlantic setup.
var DefaultBoundingBox = domain.BoundingBox{LonMin: -101, LonMax: -30, LatMin: 15, LatMax: 52}

const (
	defaultStride        = 2
	defaultRegridMethod  = "nearest_s2d"
	defaultVGridVariable = "dz"
)

// inputKeys maps each role to its file path key.
var inputKeys = map[domain.Role]string{
	domain.Temperature:        "glorys_temperature",
	domain.Salinity:           "glorys_salinity",
	domain.SeaSurfaceHeight:   "glorys_sea_surface_height",
	domain.ZonalVelocity:      "glorys_zonal_velocity",
	domain.MeridionalVelocity: "glorys_meridional_velocity",
}

// requiredKeys must be present at the top level of the document.
var requiredKeys = []string{
	"glorys_temperature",
	"glorys_salinity",
	"glorys_sea_surface_height",
	"glorys_zonal_velocity",
	"glorys_meridional_velocity",
	"variable_names",
	"vgrid_file",
	"grid_file",
	"output_file",
}

// BoundingBox mirrors domain.BoundingBox with YAML keys.
type BoundingBox struct {
	LonMin float64 `yaml:"lon_min"`
	LonMax float64 `yaml:"lon_max"`
	LatMin float64 `yaml:"lat_min"`
	LatMax float64 `yaml:"lat_max"`
}

// Config is the decoded configuration document.
type Config struct {
	Temperature        string `yaml:"glorys_temperature"`
	Salinity           string `yaml:"glorys_salinity"`
	SeaSurfaceHeight   string `yaml:"glorys_sea_surface_height"`
	ZonalVelocity      string `yaml:"glorys_zonal_velocity"`
	MeridionalVelocity string `yaml:"glorys_meridional_velocity"`

	VariableNames map[string]string `yaml:"variable_names"`

	VGridFile    string `yaml:"vgrid_file"`
	VGridVarName string `yaml:"vgrid_variable"`
	GridFile     string `yaml:"grid_file"`
	OutputFile   string `yaml:"output_file"`

	ReuseWeights bool   `yaml:"reuse_weights"`
	WeightsDir   string `yaml:"weights_dir"`
	RegridMethod string `yaml:"regrid_method"`

	BoundingBox     *BoundingBox `yaml:"bounding_box"`
	SubsampleStride int          `yaml:"subsample_stride"`
	DeepFill        string       `yaml:"deep_fill"`
}

// Load reads and validates the document at path.
// No data file is touched here.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, &domain.ConfigError{Msg: "no configuration file given"}
	}
	//nolint:gosec // G304: Path comes from the command line.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Msg: fmt.Sprintf("failed to read %s: %v", path, err)}
	}
	return Parse(raw)
}

// Parse decodes and validates a document.
func Parse(raw []byte) (*Config, error) {
	// Presence check first so a missing key is reported by name rather than
	// surfacing later as an empty path.
	var keys map[string]any
	if err := yaml.Unmarshal(raw, &keys); err != nil {
		return nil, &domain.ConfigError{Msg: fmt.Sprintf("invalid YAML: %v", err)}
	}
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			return nil, &domain.ConfigError{Key: k, Msg: "required key is missing"}
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &domain.ConfigError{Msg: fmt.Sprintf("invalid YAML: %v", err)}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BoundingBox == nil {
		c.BoundingBox = &BoundingBox{
			LonMin: DefaultBoundingBox.LonMin,
			LonMax: DefaultBoundingBox.LonMax,
			LatMin: DefaultBoundingBox.LatMin,
			LatMax: DefaultBoundingBox.LatMax,
		}
	}
	if c.SubsampleStride == 0 {
		c.SubsampleStride = defaultStride
	}
	if c.RegridMethod == "" {
		c.RegridMethod = defaultRegridMethod
	}
	if c.VGridVarName == "" {
		c.VGridVarName = defaultVGridVariable
	}
	if c.DeepFill == "" {
		c.DeepFill = DeepFillFinal
	}
	if c.WeightsDir == "" {
		c.WeightsDir = filepath.Dir(c.OutputFile)
	}
}

// Validate checks values after defaults are applied.
func (c *Config) Validate() error {
	for _, role := range domain.Roles {
		if c.InputFile(role) == "" {
			return &domain.ConfigError{Key: inputKeys[role], Msg: "must not be empty"}
		}
		if c.VariableNames[role.Key()] == "" {
			return &domain.ConfigError{Key: "variable_names." + role.Key(), Msg: "required key is missing"}
		}
	}
	for key, val := range map[string]string{"vgrid_file": c.VGridFile, "grid_file": c.GridFile, "output_file": c.OutputFile} {
		if val == "" {
			return &domain.ConfigError{Key: key, Msg: "must not be empty"}
		}
	}
	if c.SubsampleStride < 1 {
		return &domain.ConfigError{Key: "subsample_stride", Msg: "must be at least 1"}
	}
	if err := c.Box().Validate(); err != nil {
		return &domain.ConfigError{Key: "bounding_box", Msg: err.Error()}
	}
	switch c.RegridMethod {
	case "nearest_s2d", "bilinear":
	default:
		return &domain.ConfigError{Key: "regrid_method", Msg: fmt.Sprintf("unsupported method %q", c.RegridMethod)}
	}
	switch c.DeepFill {
	case DeepFillFinal, DeepFillFlood:
	default:
		return &domain.ConfigError{Key: "deep_fill", Msg: fmt.Sprintf("must be %q or %q", DeepFillFinal, DeepFillFlood)}
	}
	return nil
}

// InputFile returns the file path configured for role.
func (c *Config) InputFile(role domain.Role) string {
	switch role {
	case domain.Temperature:
		return c.Temperature
	case domain.Salinity:
		return c.Salinity
	case domain.SeaSurfaceHeight:
		return c.SeaSurfaceHeight
	case domain.ZonalVelocity:
		return c.ZonalVelocity
	case domain.MeridionalVelocity:
		return c.MeridionalVelocity
	}
	return ""
}

// VariableName returns the source variable name configured for role.
func (c *Config) VariableName(role domain.Role) string {
	return c.VariableNames[role.Key()]
}

// Box returns the geographic window.
func (c *Config) Box() domain.BoundingBox {
	return domain.BoundingBox{
		LonMin: c.BoundingBox.LonMin,
		LonMax: c.BoundingBox.LonMax,
		LatMin: c.BoundingBox.LatMin,
		LatMax: c.BoundingBox.LatMax,
	}
}
