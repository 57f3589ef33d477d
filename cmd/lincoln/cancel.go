package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>...",
	Short: "Remove pending tasks from the queue",
	Long: `Cancel pending tasks. Running and finished tasks cannot be cancelled.

A cancelled task's ID stays reserved and cannot be enqueued again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		var failed int
		for _, id := range args {
			if err := c.Cancel(cmd.Context(), id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "cancel %s: %v\n", id, err)
				failed++
				continue
			}
			fmt.Printf("Cancelled %s\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d tasks not cancelled", failed, len(args))
		}
		return nil
	},
}
