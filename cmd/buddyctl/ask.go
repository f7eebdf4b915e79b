package main

import (
	"fmt"
	"strings"

	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/spf13/cobra"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "Continue an existing session")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	resp, err := newClient().Query(cmd.Context(), strings.Join(args, " "), askSession)
	if err != nil {
		return err
	}
	if resp.Status == models.StatusError {
		return fmt.Errorf("%s (%s)", resp.Summary, resp.ErrorCode)
	}

	printAnswer(cmd, resp.Summary, resp.SessionID, resp.TopicName)
	return nil
}
