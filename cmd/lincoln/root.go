package main

import (
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "lincoln",
	Short: "Multi-agent task orchestrator",
	Long: `Lincoln runs a durable queue of agent tasks and dispatches each one to the
agent that handles its kind.

Agents:
  proposal_writer        Drafts proposals for freelance and contract work
  product_generator      Generates ebooks and professional templates
  content_generator      Writes social posts and short video scripts
  outreach_composer      Personalizes cold outreach emails
  deliverable_assembler  Combines agent outputs into a client deliverable
  code_generator         Generates code projects from a specification
  code_reviewer          Reviews code for quality and security

Start the server with 'lincoln serve', then submit work with 'lincoln enqueue'
and follow it with 'lincoln status' or 'lincoln watch'.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL (default from server.url)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(ackCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
