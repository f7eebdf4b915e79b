package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionTopic string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List live conversation sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show the chat history of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript [session-id]",
	Short: "Show the archived transcript of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscript,
}

var clearCmd = &cobra.Command{
	Use:   "clear [session-id]",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runClear,
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new session",
	Args:  cobra.NoArgs,
	RunE:  runNew,
}

var resetCmd = &cobra.Command{
	Use:   "reset [session-id]",
	Short: "Replace a session with a fresh one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReset,
}

func init() {
	newCmd.Flags().StringVar(&sessionTopic, "topic", "", "Topic name for the new session")
	resetCmd.Flags().StringVar(&sessionTopic, "topic", "", "Topic name for the new session")

	rootCmd.AddCommand(sessionsCmd, historyCmd, transcriptCmd, clearCmd, newCmd, resetCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	resp, err := newClient().Sessions(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.ActiveSessions == 0 {
		fmt.Fprintln(out, "No active sessions.")
		return nil
	}

	fmt.Fprintf(out, "%d active session(s)\n", resp.ActiveSessions)
	for _, s := range resp.Sessions {
		fmt.Fprintf(out, "%s  %-16s  %3d msgs  last used %s\n",
			s.SessionID, s.TopicName, s.MessageCount, s.LastAccessed.Local().Format(time.DateTime))
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	history, err := newClient().History(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(history.ChatHistory) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return nil
	}
	for _, msg := range history.ChatHistory {
		fmt.Fprintf(out, "%s: %s\n", speaker(msg.Type), msg.Content)
	}
	return nil
}

func runTranscript(cmd *cobra.Command, args []string) error {
	messages, err := newClient().Transcript(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, msg := range messages {
		fmt.Fprintf(out, "[%s] %s: %s\n", msg.Timestamp.Local().Format(time.DateTime), msg.Role, msg.Content)
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if err := newClient().Clear(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared session %s\n", args[0])
	return nil
}

func runNew(cmd *cobra.Command, args []string) error {
	session, err := newClient().NewSession(cmd.Context(), sessionTopic)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created session %s (%s)\n", session.SessionID, session.TopicName)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	var oldID string
	if len(args) == 1 {
		oldID = args[0]
	}

	reset, err := newClient().Reset(cmd.Context(), oldID, sessionTopic)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "New session %s (%s)\n", reset.NewSessionID, reset.TopicName)
	return nil
}

func speaker(messageType string) string {
	if messageType == "human" {
		return "You"
	}
	return "Buddy"
}
