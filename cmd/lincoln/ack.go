package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

var ackAll bool

var ackCmd = &cobra.Command{
	Use:   "ack [task-id]...",
	Short: "Acknowledge finished tasks",
	Long: `Remove succeeded or failed tasks from the queue once their results have
been read. With --all, acknowledges every finished task.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !ackAll {
			return fmt.Errorf("give task IDs or --all")
		}
		c, _, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		ids := args
		if ackAll {
			for _, s := range []models.TaskStatus{models.TaskStatusSucceeded, models.TaskStatusFailed} {
				tasks, err := c.Tasks(ctx, s, "")
				if err != nil {
					return err
				}
				for _, t := range tasks {
					ids = append(ids, t.ID)
				}
			}
		}

		var failed int
		for _, id := range ids {
			if err := c.Ack(ctx, id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "ack %s: %v\n", id, err)
				failed++
				continue
			}
			fmt.Printf("Acknowledged %s\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d tasks not acknowledged", failed, len(ids))
		}
		return nil
	},
}

func init() {
	ackCmd.Flags().BoolVar(&ackAll, "all", false, "Acknowledge every finished task")
}
