package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices via ffmpeg",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listDevices()
		},
	}
}

func listDevices() error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("ffmpeg", "-f", "avfoundation", "-list_devices", "true", "-i", "")
	default:
		cmd = exec.Command("ffmpeg", "-sources", "pulse")
	}
	// ffmpeg prints device listings on stderr and exits non-zero on the
	// avfoundation probe; the listing is still what we want.
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil
		}
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	return nil
}
