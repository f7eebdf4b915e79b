package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/avvvet/buddy-voice/internal/client"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/spf13/cobra"
)

// conversation is the part of the API a chat loop needs
type conversation interface {
	Query(ctx context.Context, query, sessionID string) (*models.QueryResponse, error)
	NewSession(ctx context.Context, topicName string) (*client.NewSessionResponse, error)
	Reset(ctx context.Context, sessionID, topicName string) (*models.SessionReset, error)
	History(ctx context.Context, sessionID string) (*models.SessionHistory, error)
}

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Hold an interactive conversation",
	Long: `Start an interactive conversation. Each line is sent as a query in the
current session. Commands:
  /new [topic]    start a fresh session
  /reset [topic]  replace the current session
  /history        show the current session's history
  /quit           leave`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), newClient(), chatSession, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Resume an existing session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(ctx context.Context, api conversation, sessionID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "Type a question, or /quit to leave.")

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := chatCommand(ctx, api, &sessionID, line, out)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		resp, err := api.Query(ctx, line, sessionID)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		sessionID = resp.SessionID

		if resp.Status == models.StatusError {
			fmt.Fprintf(out, "error: %s (%s)\n", resp.Summary, resp.ErrorCode)
			continue
		}
		fmt.Fprintf(out, "[%s] %s\n", resp.TopicName, resp.Summary)
	}
}

func chatCommand(ctx context.Context, api conversation, sessionID *string, line string, out io.Writer) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		session, err := api.NewSession(ctx, arg)
		if err != nil {
			return false, err
		}
		*sessionID = session.SessionID
		fmt.Fprintf(out, "Started session %s (%s)\n", session.SessionID, session.TopicName)

	case "/reset":
		reset, err := api.Reset(ctx, *sessionID, arg)
		if err != nil {
			return false, err
		}
		*sessionID = reset.NewSessionID
		fmt.Fprintf(out, "Started session %s (%s)\n", reset.NewSessionID, reset.TopicName)

	case "/history":
		if *sessionID == "" {
			fmt.Fprintln(out, "No session yet.")
			return false, nil
		}
		history, err := api.History(ctx, *sessionID)
		if err != nil {
			return false, err
		}
		for _, msg := range history.ChatHistory {
			fmt.Fprintf(out, "%s: %s\n", speaker(msg.Type), msg.Content)
		}

	default:
		fmt.Fprintf(out, "unknown command %s\n", name)
	}
	return false, nil
}
