package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mocap/internal/logging"
	"mocap/internal/pipeline"
	"mocap/internal/recon"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var activity string

	cmd := &cobra.Command{
		Use:   "run <session> <trial>",
		Short: "Reconstruct one trial synchronously",
		Args:  cobra.ExactArgs(2),
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
				ID:         uuid.NewString(),
				Session:    args[0],
				Name:       args[1],
				Activity:   activity,
				SessionDir: cfg.SessionDir(args[0]),
			}
			runner := newPipelineRunner(cfg, logger)
			if err := runner.Run(cmd.Context(), trial); err != nil {
				user, _ := recon.Messages(err)
				fmt.Fprintln(cmd.ErrOrStderr(), user)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", trial.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&activity, "activity", "a", "", "Activity class used to pick the low-pass cutoff")
	return cmd
}
