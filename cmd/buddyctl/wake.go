package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var wakeSession string

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Control wake word detection",
}

var wakeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start listening for the wake word",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().WakeStart(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Wake word detection started")
		return nil
	},
}

var wakeStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop listening for the wake word",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().WakeStop(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Wake word detection stopped")
		return nil
	},
}

var wakeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show detector state and recent detections",
	Args:  cobra.NoArgs,
	RunE:  runWakeStatus,
}

var wakeCommandCmd = &cobra.Command{
	Use:   "command [text]",
	Short: "Send the words spoken after the wake word",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().Command(cmd.Context(), strings.Join(args, " "), wakeSession)
		if err != nil {
			return err
		}
		printAnswer(cmd, resp.Summary, resp.SessionID, resp.TopicName)
		return nil
	},
}

func init() {
	wakeCommandCmd.Flags().StringVar(&wakeSession, "session", "", "Continue an existing session")

	wakeCmd.AddCommand(wakeStartCmd, wakeStopCmd, wakeStatusCmd, wakeCommandCmd)
	rootCmd.AddCommand(wakeCmd)
}

func runWakeStatus(cmd *cobra.Command, args []string) error {
	status, err := newClient().WakeStatus(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	state := "stopped"
	if status.Listening {
		state = "listening"
	}
	fmt.Fprintf(out, "Wake word %q: %s, %d detection(s)\n", status.WakeWord, state, status.DetectionCount)
	for _, d := range status.RecentDetections {
		fmt.Fprintf(out, "  %s  %s\n", d.Timestamp.Local().Format(time.TimeOnly), d.CommandText)
	}
	return nil
}
