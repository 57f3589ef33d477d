package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/lincoln/internal/signals"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause dispatching",
	Long: `Stop starting new tasks. Running tasks finish; pending tasks wait.

Works through the signal directory under storage.data_dir, so it must run on the
same host as the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := signalDir()
		if err != nil {
			return err
		}
		if err := signals.SendPause(dir); err != nil {
			return fmt.Errorf("send pause: %w", err)
		}
		fmt.Println(color.YellowString("Pause requested"))
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume dispatching after pause",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := signalDir()
		if err != nil {
			return err
		}
		if !signals.Paused(dir) {
			fmt.Println("Not paused")
			return nil
		}
		if err := signals.SendResume(dir); err != nil {
			return fmt.Errorf("send resume: %w", err)
		}
		fmt.Println(color.GreenString("Resume requested"))
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the server after running tasks finish",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := signalDir()
		if err != nil {
			return err
		}
		// A pause left behind would hold the next start.
		if err := signals.SendResume(dir); err != nil {
			return err
		}
		if err := signals.SendStop(dir); err != nil {
			return fmt.Errorf("send stop: %w", err)
		}
		fmt.Println(color.RedString("Stop requested"))
		return nil
	},
}

func signalDir() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Storage.SignalDir(), nil
}
