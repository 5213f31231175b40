package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"xray-pipeline/internal/adapters/secondary/mlbackend"
	"xray-pipeline/internal/core/services"
)

func newRunCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the training pipeline once",
		Example: `  xray run --source data/chest_xray --params config/params.yaml
  XRAY_EPOCHS=2 xray run --expected-accuracy 0.8 --overfit-threshold 0.1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openRunStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.close()

			svc := services.NewRunService(store.repo, mlbackend.New(), pipelineOptions(cfg), paramsLoader(cfg))
			run, err := svc.Trigger(ctx)
			if run != nil {
				printRun(cmd.OutOrStdout(), run)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trained model: %s\n", run.TrainedModelPath)
			return nil
		},
	}
	addPipelineFlags(cmd)
	return cmd
}

func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("params", "", "params schema file (YAML)")
	f.String("source", "", "source image directory")
	f.String("artifact-dir", "", "artifact root directory")
	f.String("model-path", "", "trained model output file (default: inside the run's artifact dir)")
	f.Float64("expected-accuracy", 0, "minimum train accuracy")
	f.Float64("overfit-threshold", 0, "maximum |train - test| accuracy gap")
	f.Float64("split-ratio", 0, "test share when splitting class directories")
	f.Int64("seed", 0, "seed for splitting, initialisation and shuffling")
}
