package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

var (
	enqueueID       string
	enqueueFile     string
	enqueueTaskType bool
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <kind|task-type> [payload]",
	Short: "Submit a task to a running server",
	Long: `Add a task to the queue.

The payload is JSON or YAML, given inline or with --file ("-" reads stdin).

With --task-type the first argument is a capability such as review_code or
generate_ebook; the server picks the agent and fills in the variant.

Examples:
  lincoln enqueue content_generator '{"format":"social","platform":"twitter","topic":"Go"}'
  lincoln enqueue code_reviewer -f review.yaml --id review-42
  lincoln enqueue --task-type generate_ebook '{"topic":"Go","chapter_count":3}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueID, "id", "", "Task ID (generated when empty)")
	enqueueCmd.Flags().StringVarP(&enqueueFile, "file", "f", "", "Read the payload from a JSON or YAML file")
	enqueueCmd.Flags().BoolVar(&enqueueTaskType, "task-type", false, "Treat the first argument as a capability name")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	payload := json.RawMessage("{}")
	switch {
	case enqueueFile != "" && len(args) > 1:
		return fmt.Errorf("give the payload inline or with --file, not both")
	case enqueueFile != "":
		p, err := readPayload(enqueueFile)
		if err != nil {
			return err
		}
		payload = p
	case len(args) > 1:
		p, err := parsePayload([]byte(args[1]))
		if err != nil {
			return err
		}
		payload = p
	}

	c, _, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if enqueueTaskType {
		if enqueueID != "" {
			return fmt.Errorf("--id cannot be used with --task-type")
		}
		fields, err := taskTypeFields(args[0], payload)
		if err != nil {
			return err
		}
		resp, err := c.ExecuteTask(ctx, fields)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s (%s)\n", color.GreenString("Queued"), resp.TaskID, resp.Kind)
		return nil
	}

	kind, err := models.ParseAgentKind(args[0])
	if err != nil {
		return err
	}
	resp, err := c.Enqueue(ctx, enqueueID, kind, payload)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s (%s)\n", color.GreenString("Queued"), resp.ID, resp.Kind)
	return nil
}

// taskTypeFields turns payload into the execute-task body. A null payload is
// treated as an empty object.
func taskTypeFields(taskType string, payload json.RawMessage) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("payload must be an object: %w", err)
	}
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields["task_type"] = taskType
	return fields, nil
}
