package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mocap/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the trial queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var activity string

	cmd := &cobra.Command{
		Use:   "add <session> <trial>",
		Short: "Queue a trial for reconstruction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				item, err := store.Enqueue(cmd.Context(), args[0], args[1], activity)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued trial %s (#%d)\n", item.TrialID, item.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&activity, "activity", "a", "", "Activity class used to pick the low-pass cutoff")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued trials",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Session,
						item.Name,
						string(item.Status),
						item.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Session", "Trial", "Status", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				total := 0
				rows := make([][]string, 0, len(stats))
				for _, status := range queue.AllStatuses() {
					count := stats[status]
					if count == 0 {
						continue
					}
					total += count
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one trial's full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid queue id %q", args[0])
			}
			return ctx.withStore(func(store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("no queue item with id %d", id)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:       %d\n", item.ID)
				fmt.Fprintf(out, "Trial ID: %s\n", item.TrialID)
				fmt.Fprintf(out, "Session:  %s\n", item.Session)
				fmt.Fprintf(out, "Trial:    %s\n", item.Name)
				if item.Activity != "" {
					fmt.Fprintf(out, "Activity: %s\n", item.Activity)
				}
				fmt.Fprintf(out, "Status:   %s\n", item.Status)
				fmt.Fprintf(out, "Created:  %s\n", item.CreatedAt.Local().Format(time.DateTime))
				fmt.Fprintf(out, "Updated:  %s\n", item.UpdatedAt.Local().Format(time.DateTime))
				if item.OutputPath != "" {
					fmt.Fprintf(out, "Output:   %s\n", item.OutputPath)
				}
				if item.Status == queue.StatusFailed {
					fmt.Fprintf(out, "Error:    %s\n", item.ErrorUser)
					fmt.Fprintf(out, "Kind:     %s\n", item.ErrorKind)
					fmt.Fprintf(out, "Detail:   %s\n", item.ErrorDev)
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Requeue failed trials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				count, err := store.RetryFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d trial(s)\n", count)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearFailed bool
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished trials from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearFailed && clearAll {
				return errors.New("specify only one of --failed or --all")
			}
			statuses := []queue.Status{queue.StatusCompleted}
			if clearFailed {
				statuses = []queue.Status{queue.StatusFailed}
			}
			if clearAll {
				statuses = []queue.Status{queue.StatusCompleted, queue.StatusFailed}
			}
			return ctx.withStore(func(store *queue.Store) error {
				count, err := store.Clear(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d trial(s)\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Clear failed trials instead of completed ones")
	cmd.Flags().BoolVar(&clearAll, "all", false, "Clear both completed and failed trials")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove one trial from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid queue id %q", args[0])
			}
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no queue item with id %d", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed trial #%d\n", id)
				return nil
			})
		},
	}
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown queue status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
