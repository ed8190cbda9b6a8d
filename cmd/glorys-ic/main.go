// Package main provides the glorys-ic command, which builds a MOM6 initial
// condition file from GLORYS reanalysis output.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"go.ngs.io/glorys-ic/internal/adapter/store"
	"go.ngs.io/glorys-ic/internal/adapter/store/gridspec"
	"go.ngs.io/glorys-ic/internal/adapter/store/output"
	"go.ngs.io/glorys-ic/internal/adapter/store/reanalysis"
	"go.ngs.io/glorys-ic/internal/adapter/store/weights"
	"go.ngs.io/glorys-ic/internal/config"
	"go.ngs.io/glorys-ic/internal/usecase"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		verbose    bool
		logger     *zap.Logger
	)

	root := &cobra.Command{
		Use:   "glorys-ic",
		Short: "Build a MOM6 initial condition from GLORYS reanalysis files",
		Long: `Reads temperature, salinity, sea surface height and velocity from
GLORYS NetCDF files, interpolates them onto the model's vertical layers,
floods land, regrids onto the model supergrid, rotates velocities into the
grid frame and writes a single initial condition file.

Example:
  glorys-ic --config glorys_ic.yaml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := zap.NewProductionConfig()
			if verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			if logger, err = cfg.Build(); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				logger.Error("Invalid configuration", zap.String("config", configFile), zap.Error(err))
				return err
			}
			if err := run(cfg, logger); err != nil {
				logger.Error("Run failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	root.Flags().StringVar(&configFile, "config", "", "configuration document (YAML)")
	_ = root.MarkFlagRequired("config")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of glorys-ic",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "glorys-ic version %s\n", version)
		},
	})
	return root
}

// run wires the file-backed stores into the use case.
func run(cfg *config.Config, logger *zap.Logger) error {
	var (
		fields store.FieldLoader   = reanalysis.NewStore()
		grids  store.GridLoader    = gridspec.NewReader()
		writer store.DatasetWriter = output.NewWriter()
	)
	uc := usecase.NewInitialConditionUseCase(fields, grids, writer, weights.NewStore(cfg.WeightsDir), logger)
	res, err := uc.Run(cfg)
	if err != nil {
		return err
	}
	logger.Info("Initial condition complete",
		zap.String("output", res.Output),
		zap.String("run_id", res.RunID),
		zap.Int("warnings", len(res.Warnings)))
	return nil
}
