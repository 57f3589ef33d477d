package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/lincoln/internal/orchestrator"
	"github.com/ShayCichocki/lincoln/internal/server"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

var (
	statusOutput string
	statusFilter string
	statusKind   string
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show orchestrator or task status",
	Long: `Display the orchestrator state, agents and queue.

With a task ID, shows that task including its payload and result.

Output formats: table (default), json, yaml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", formatTable, "Output format: table, json or yaml")
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "Only list tasks with this status")
	statusCmd.Flags().StringVar(&statusKind, "kind", "", "Only list tasks of this agent kind")
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, _, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if len(args) == 1 {
		task, err := c.Task(ctx, args[0])
		if err != nil {
			return err
		}
		if statusOutput != formatTable {
			return printStructured(os.Stdout, task, statusOutput)
		}
		displayTask(task)
		return nil
	}

	var kind models.AgentKind
	if statusKind != "" {
		if kind, err = models.ParseAgentKind(statusKind); err != nil {
			return err
		}
	}
	st, err := c.Status(ctx)
	if err != nil {
		return err
	}
	tasks, err := c.Tasks(ctx, models.TaskStatus(statusFilter), kind)
	if err != nil {
		return err
	}

	if statusOutput != formatTable {
		return printStructured(os.Stdout, struct {
			server.StatusResponse
			Tasks []models.AgentTask `json:"tasks"`
		}{st, tasks}, statusOutput)
	}

	displayOrchestrator(st)
	fmt.Println()
	displayTasks(tasks)
	return nil
}

func displayOrchestrator(st server.StatusResponse) {
	state := string(st.OrchestratorStatus)
	switch st.OrchestratorStatus {
	case orchestrator.StateRunning:
		state = color.GreenString(state)
	case orchestrator.StatePaused:
		state = color.YellowString(state)
	case orchestrator.StateStopped:
		state = color.RedString(state)
	}

	fmt.Printf("Orchestrator: %s\n", state)
	if st.StartedAt != nil {
		fmt.Printf("  Uptime: %s\n", formatDuration(time.Since(*st.StartedAt)))
	}
	fmt.Printf("  Queue: %d pending, %d running, %d succeeded, %d failed\n",
		st.Queue[models.TaskStatusPending],
		st.Queue[models.TaskStatusRunning],
		st.Queue[models.TaskStatusSucceeded],
		st.Queue[models.TaskStatusFailed])
	if st.DroppedEvents > 0 {
		fmt.Printf("  Dropped events: %d\n", st.DroppedEvents)
	}

	fmt.Println()
	fmt.Println("Agents:")
	for _, a := range st.Agents {
		displayAgentStatus(a)
	}
}

func displayAgentStatus(a orchestrator.AgentStatus) {
	state := string(a.State)
	switch a.State {
	case orchestrator.AgentWorking:
		state = color.CyanString(state)
	case orchestrator.AgentError:
		state = color.RedString(state)
	}
	line := fmt.Sprintf("  %-22s %-8s ok %d  failed %d", a.Kind, state, a.Processed, a.Failed)
	if a.CurrentTask != "" {
		line += "  task " + a.CurrentTask
	}
	fmt.Println(line)
	if a.State == orchestrator.AgentError && a.LastError != "" {
		fmt.Printf("    %s\n", color.RedString(truncate(a.LastError, 100)))
	}
}

func displayTasks(tasks []models.AgentTask) {
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return
	}
	fmt.Printf("Tasks (%d):\n", len(tasks))
	for _, t := range tasks {
		line := fmt.Sprintf("  %-36s %-22s %s", t.ID, t.Kind, colorStatus(t.Status))
		if t.Retries > 0 {
			line += fmt.Sprintf(" (retries %d)", t.Retries)
		}
		fmt.Println(line)
		if t.Error != "" {
			fmt.Printf("    %s\n", truncate(t.Error, 100))
		}
	}
}

func displayTask(t models.AgentTask) {
	fmt.Printf("Task: %s\n", t.ID)
	fmt.Printf("  Kind: %s\n", t.Kind)
	fmt.Printf("  Status: %s\n", colorStatus(t.Status))
	fmt.Printf("  Created: %s\n", t.CreatedAt.Local().Format(time.RFC3339))
	if t.StartedAt != nil {
		fmt.Printf("  Started: %s\n", t.StartedAt.Local().Format(time.RFC3339))
	}
	if t.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", t.CompletedAt.Local().Format(time.RFC3339))
		if t.StartedAt != nil {
			fmt.Printf("  Duration: %s\n", formatDuration(t.CompletedAt.Sub(*t.StartedAt)))
		}
	}
	fmt.Printf("  Retries: %d\n", t.Retries)
	if t.Error != "" {
		fmt.Printf("  Error: %s\n", color.RedString(t.Error))
	}
	if len(t.Payload) > 0 {
		fmt.Println("  Payload:")
		printIndented(t.Payload)
	}
	if len(t.Result) > 0 {
		fmt.Println("  Result:")
		printIndented(t.Result)
	}
}

func printIndented(raw json.RawMessage) {
	var b strings.Builder
	if err := printStructured(&b, raw, formatYAML); err != nil {
		fmt.Printf("    %s\n", raw)
		return
	}
	for _, line := range strings.Split(strings.TrimRight(b.String(), "\n"), "\n") {
		fmt.Printf("    %s\n", line)
	}
}
