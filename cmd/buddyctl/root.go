package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avvvet/buddy-voice/internal/client"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "buddyctl",
	Short: "Talk to the voice assistant from a terminal",
	Long: `buddyctl drives a running assistant server over its REST API.
It can ask questions, hold a multi-turn conversation, manage sessions,
transcribe and synthesize audio, and control wake word detection.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	defaultURL := os.Getenv("BUDDY_SERVER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8000"
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultURL, "Assistant server base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "Request timeout")
}

func newClient() *client.Client {
	return client.New(serverURL, timeout)
}

func printAnswer(cmd *cobra.Command, summary, sessionID, topic string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summary)
	fmt.Fprintf(out, "\n[session %s | %s]\n", sessionID, topic)
}
