package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mocap/internal/logging"
	"mocap/internal/pipeline"
	"mocap/internal/recon"
)

func newCalibrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate <session>",
		Short: "Resolve camera extrinsics for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			trial := &pipeline.Trial{
				Session:    args[0],
				Name:       "calibration",
				SessionDir: cfg.SessionDir(args[0]),
			}
			runner := newPipelineRunner(cfg, logger)
			if err := runner.Calibrate(cmd.Context(), trial); err != nil {
				user, _ := recon.Messages(err)
				fmt.Fprintln(cmd.ErrOrStderr(), user)
				return err
			}

			rows := make([][]string, 0, trial.Cameras.Len())
			for _, name := range trial.Cameras.Names() {
				params, _ := trial.Cameras.Get(name)
				source := "cached"
				rmse := "-"
				if solutions, ok := trial.Solutions[name]; ok {
					source = "fresh"
					rmse = strconv.FormatFloat(solutions[0].ReprojectionRMSE, 'g', 4, 64)
				}
				rows = append(rows, []string{name, source, rmse, yesNo(params.UpsideDown)})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Camera", "Source", "RMSE", "Upside-down"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
