package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"xray-pipeline/internal/adapters/secondary/mlbackend"
	"xray-pipeline/internal/core/domain"
	"xray-pipeline/internal/core/ports/output"
	"xray-pipeline/internal/core/services"
)

func newRunsCmd(load configLoader) *cobra.Command {
	var (
		status        string
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List recorded pipeline runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := openRunStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.close()
			svc := services.NewRunService(store.repo, mlbackend.New(), pipelineOptions(cfg), paramsLoader(cfg))

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("%w: %q", domain.ErrInvalidRunID, args[0])
				}
				run, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}
				printRun(out, run)
				return nil
			}

			runs, total, err := svc.List(ctx, ports.RunListFilter{
				Status: strings.ToUpper(status),
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}
			printRunTable(out, runs)
			fmt.Fprintf(out, "%d of %d runs\n", len(runs), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", ports.DefaultRunListLimit, "page size (1-100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func printRun(w io.Writer, r *domain.PipelineRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", r.ID)
	fmt.Fprintf(tw, "pipeline:\t%s\n", r.PipelineName)
	fmt.Fprintf(tw, "status:\t%s\n", r.Status)
	fmt.Fprintf(tw, "stage:\t%s\n", r.Stage)
	fmt.Fprintf(tw, "artifacts:\t%s\n", r.ArtifactDir)
	fmt.Fprintf(tw, "train accuracy:\t%s\n", fmtAccuracy(r.TrainAccuracy))
	fmt.Fprintf(tw, "test accuracy:\t%s\n", fmtAccuracy(r.TestAccuracy))
	if r.Error != "" {
		fmt.Fprintf(tw, "error:\t%s\n", r.Error)
	}
	tw.Flush()
}

func printRunTable(w io.Writer, runs []*domain.PipelineRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSTAGE\tTRAIN\tTEST")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.Stage,
			fmtAccuracy(r.TrainAccuracy), fmtAccuracy(r.TestAccuracy))
	}
	tw.Flush()
}

func fmtAccuracy(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
