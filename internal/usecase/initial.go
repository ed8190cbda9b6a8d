package usecase

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go.ngs.io/glorys-ic/internal/adapter/flood"
	"go.ngs.io/glorys-ic/internal/adapter/interp"
	"go.ngs.io/glorys-ic/internal/adapter/regrid"
	"go.ngs.io/glorys-ic/internal/adapter/rotate"
	"go.ngs.io/glorys-ic/internal/adapter/store"
	"go.ngs.io/glorys-ic/internal/config"
	"go.ngs.io/glorys-ic/internal/domain"
)

// Weight cache entry names.
const (
	tracerWeights   = "regrid_glorys_tracers"
	velocityWeights = "regrid_glorys_uv"
)

// InitialConditionResult summarises a finished run.
type InitialConditionResult struct {
	Output   string
	RunID    string
	Dataset  *domain.Dataset
	Reports  []flood.Report
	Warnings []string
}

// InitialConditionUseCase turns five reanalysis files into a MOM6 initial
// condition file.
type InitialConditionUseCase struct {
	fields  store.FieldLoader
	grids   store.GridLoader
	writer  store.DatasetWriter
	weights regrid.WeightStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewInitialConditionUseCase creates a new initial condition use case.
// weights may be nil to disable the on-disk cache.
func NewInitialConditionUseCase(fields store.FieldLoader, grids store.GridLoader, writer store.DatasetWriter, weights regrid.WeightStore, logger *zap.Logger) *InitialConditionUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InitialConditionUseCase{
		fields:  fields,
		grids:   grids,
		writer:  writer,
		weights: weights,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes every stage in order and writes the output file.
//
//nolint:gocyclo // Linear pipeline; each stage is a short block.
func (uc *InitialConditionUseCase) Run(cfg *config.Config) (*InitialConditionResult, error) {
	runID := uuid.NewString()
	log := uc.logger.With(zap.String("run_id", runID))
	res := &InitialConditionResult{Output: cfg.OutputFile, RunID: runID}
	warn := func(msg string, fields ...zap.Field) {
		log.Warn(msg, fields...)
		res.Warnings = append(res.Warnings, msg)
	}

	method, err := regrid.ParseMethod(cfg.RegridMethod)
	if err != nil {
		return nil, &domain.ConfigError{Key: "regrid_method", Msg: err.Error()}
	}

	// Target grids.
	vg, err := uc.grids.ReadVertical(cfg.VGridFile, cfg.VGridVarName)
	if err != nil {
		return nil, fmt.Errorf("failed to read vertical grid: %w", err)
	}
	hg, err := uc.grids.ReadHorizontal(cfg.GridFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read horizontal grid: %w", err)
	}
	log.Info("Loaded target grids",
		zap.Int("layers", len(vg.Layers)),
		zap.Int("ny", hg.NY()),
		zap.Int("nx", hg.NX()),
		zap.Float64("max_lon", hg.MaxLon()))

	// Source Loader.
	src := make(map[domain.Role]*domain.Field, len(domain.Roles))
	for _, role := range domain.Roles {
		f, err := uc.fields.Load(domain.FieldRequest{
			Path:     cfg.InputFile(role),
			Variable: cfg.VariableName(role),
			Box:      cfg.Box(),
			Stride:   cfg.SubsampleStride,
			Surface:  role.Surface(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", role, err)
		}
		log.Info("Loaded source field",
			zap.String("role", role.String()),
			zap.String("variable", f.Name),
			zap.Int("time", f.NT()),
			zap.Int("levels", f.NZ()),
			zap.Int("ny", f.NY),
			zap.Int("nx", f.NX),
			zap.Int("missing", f.Missing()))
		src[role] = f
	}
	if err := checkMerge(src); err != nil {
		return nil, err
	}
	timeUnits := src[domain.Temperature].TimeUnits
	times := append([]float64(nil), src[domain.Temperature].Time...)
	if timeUnits == "" {
		warn("Source has no time axis units, time values written as read")
	} else if times, err = domain.FloorToDay(times, timeUnits); err != nil {
		return nil, fmt.Errorf("failed to decode time axis: %w", err)
	}

	// Vertical Regridder and Flood-Fill.
	filled := make(map[domain.Role]*domain.Field, len(src))
	for _, role := range domain.Roles {
		f := src[role]
		var rep flood.Report
		if role.Surface() {
			if f, rep, err = flood.FloodSurface(f); err != nil {
				return nil, fmt.Errorf("failed to flood %s: %w", role, err)
			}
		} else {
			if f, err = interp.Vertical(f, vg.Layers); err != nil {
				return nil, fmt.Errorf("failed to re-level %s: %w", role, err)
			}
			if f, rep, err = flood.Flood(f); err != nil {
				return nil, fmt.Errorf("failed to flood %s: %w", role, err)
			}
			if cfg.DeepFill == config.DeepFillFlood {
				flood.FillColumns(f)
			}
		}
		res.Reports = append(res.Reports, rep)
		if rep.Empty {
			warn("Field has no valid data", zap.String("role", role.String()))
		}
		if rep.Unfinished > 0 {
			warn("Flood left missing cells", zap.String("role", role.String()), zap.Int("layers", rep.Unfinished))
		}
		log.Debug("Flooded field",
			zap.String("role", role.String()),
			zap.Int("layers_backfilled", rep.LayersBackfilled),
			zap.Int("times_backfilled", rep.TimesBackfilled))
		filled[role] = f
		delete(src, role)
	}

	// Horizontal Regridder.
	rg := regrid.NewRegridder(uc.weights, cfg.ReuseWeights, log.Named("regrid"))
	tracer := hg.Tracer()
	lattice := hg.Lattice()
	maxLon := hg.MaxLon()
	onGrid := make(map[domain.Role]*domain.Field, len(filled))
	for _, role := range domain.Roles {
		name, dst := tracerWeights, tracer
		if role.Velocity() {
			name, dst = velocityWeights, lattice
		}
		f, err := rg.Regrid(filled[role], name, method, dst, maxLon)
		if err != nil {
			return nil, fmt.Errorf("failed to regrid %s: %w", role, err)
		}
		if !role.Velocity() {
			f.YName, f.XName = domain.DimYH, domain.DimXH
		}
		onGrid[role] = f
		delete(filled, role)
	}

	// Vector Rotator.
	ur, vr, err := rotate.Vectors(onGrid[domain.ZonalVelocity], onGrid[domain.MeridionalVelocity], hg.Angle)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate velocities: %w", err)
	}
	if onGrid[domain.ZonalVelocity], err = rotate.UPoints(ur); err != nil {
		return nil, err
	}
	if onGrid[domain.MeridionalVelocity], err = rotate.VPoints(vr); err != nil {
		return nil, err
	}

	// Writer.
	ds := &domain.Dataset{
		Layers:    append([]float64(nil), vg.Layers...),
		Time:      times,
		TimeUnits: timeUnits,
		Calendar:  domain.Calendar,
		TracerLon: tracer.Lon,
		TracerLat: tracer.Lat,
		Attrs: map[string]string{
			"history": fmt.Sprintf("%s: glorys-ic run %s", uc.now().UTC().Format(time.RFC3339), runID),
			"source":  "GLORYS reanalysis",
		},
	}
	for _, role := range domain.Roles {
		f := onGrid[role]
		if !role.Surface() && cfg.DeepFill == config.DeepFillFinal {
			flood.FillColumns(f)
		}
		f.Name = role.OutputName()
		f.Time = times
		if missing := f.Missing(); missing > 0 {
			warn("Output field has missing cells", zap.String("variable", f.Name), zap.Int("missing", missing))
		}
		ds.Fields = append(ds.Fields, f)
	}

	if err := uc.writer.Write(cfg.OutputFile, ds); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", cfg.OutputFile, err)
	}
	log.Info("Wrote initial condition",
		zap.String("output", cfg.OutputFile),
		zap.Int("time", len(times)),
		zap.Int("layers", len(vg.Layers)),
		zap.Int("warnings", len(res.Warnings)))
	res.Dataset = ds
	return res, nil
}

// checkMerge requires every field to share the horizontal axes and time axis.
func checkMerge(fields map[domain.Role]*domain.Field) error {
	ref := fields[domain.Temperature]
	for _, role := range domain.Roles[1:] {
		f := fields[role]
		if !slices.Equal(f.Lat, ref.Lat) || !slices.Equal(f.Lon, ref.Lon) {
			return fmt.Errorf("%s grid (%dx%d) does not match %s grid (%dx%d)", role, f.NY, f.NX, domain.Temperature, ref.NY, ref.NX)
		}
		if !slices.Equal(f.Time, ref.Time) || f.TimeUnits != ref.TimeUnits {
			return fmt.Errorf("%s time axis does not match %s", role, domain.Temperature)
		}
	}
	return nil
}
