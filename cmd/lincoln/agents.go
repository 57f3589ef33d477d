package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var agentsOutput string

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents, their capabilities and live status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		agents, err := c.Agents(cmd.Context())
		if err != nil {
			return err
		}
		if agentsOutput != formatTable {
			return printStructured(os.Stdout, agents, agentsOutput)
		}

		bold := color.New(color.Bold)
		for i, a := range agents {
			if i > 0 {
				fmt.Println()
			}
			bold.Printf("%s", a.Name)
			fmt.Printf(" (%s)\n", a.Kind)
			fmt.Printf("  %s\n", a.Description)
			fmt.Printf("  Capabilities: %s\n", strings.Join(a.Capabilities, ", "))
			displayAgentStatus(a.Status)
		}
		return nil
	},
}

func init() {
	agentsCmd.Flags().StringVarP(&agentsOutput, "output", "o", formatTable, "Output format: table, json or yaml")
}
