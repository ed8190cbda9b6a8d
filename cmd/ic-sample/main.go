// Package main writes a synthetic GLORYS input set and a matching
// configuration document for smoke runs of glorys-ic.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go.ngs.io/glorys-ic/internal/domain"
	"go.ngs.io/glorys-ic/internal/sample"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := sample.DefaultOptions("./data/sample")
	var region string

	cmd := &cobra.Command{
		Use:          "ic-sample",
		Short:        "Write synthetic GLORYS files, model grids and a configuration document",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			switch region {
			case "gulf":
			case "atlantic":
				opts.Source = sample.Region{LatMin: 14, LatMax: 53, LonMin: -102, LonMax: -29, Resolution: opts.Source.Resolution}
				opts.Target = sample.Region{LatMin: 15, LatMax: 52, LonMin: -101, LonMax: -30}
			default:
				return fmt.Errorf("unknown region %q (use gulf or atlantic)", region)
			}

			files, err := sample.Generate(opts)
			if err != nil {
				return err
			}
			for _, role := range domain.Roles {
				logger.Info("Wrote source file", zap.String("role", role.String()), zap.String("path", files.Inputs[role]))
			}
			logger.Info("Generation complete",
				zap.String("vgrid", files.VGrid),
				zap.String("hgrid", files.HGrid),
				zap.String("config", files.Config),
				zap.Int("ny", opts.NY),
				zap.Int("nx", opts.NX))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Dir, "out", opts.Dir, "output directory")
	f.StringVar(&region, "region", "gulf", "region: gulf or atlantic")
	f.Float64Var(&opts.Source.Resolution, "resolution", opts.Source.Resolution, "source grid resolution in degrees")
	f.IntVar(&opts.Times, "times", opts.Times, "number of daily records")
	f.IntVar(&opts.NY, "ny", opts.NY, "target tracer rows")
	f.IntVar(&opts.NX, "nx", opts.NX, "target tracer columns")
	f.Float64Var(&opts.AngleDeg, "angle", opts.AngleDeg, "supergrid rotation angle in degrees")
	f.BoolVar(&opts.Lon360, "lon360", opts.Lon360, "store source longitudes in [0, 360)")
	f.IntVar(&opts.Stride, "stride", opts.Stride, "subsample stride written to the configuration")
	f.StringVar(&opts.Method, "method", opts.Method, "regrid method written to the configuration")
	return cmd
}
