package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/spf13/cobra"
)

var (
	speakOutput string
	speakVoice  string
	speakRate   int
	speakVolume float64
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [audio.wav]",
	Short: "Convert a WAV recording to text",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

var speakCmd = &cobra.Command{
	Use:   "speak [text]",
	Short: "Synthesize speech into a WAV file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSpeak,
}

func init() {
	speakCmd.Flags().StringVarP(&speakOutput, "output", "o", "speech.wav", "Where to write the audio")
	speakCmd.Flags().StringVar(&speakVoice, "voice", "", "Voice name (server default when empty)")
	speakCmd.Flags().IntVar(&speakRate, "rate", 0, "Speaking rate in words per minute")
	speakCmd.Flags().Float64Var(&speakVolume, "volume", 0, "Volume between 0 and 1")

	rootCmd.AddCommand(transcribeCmd, speakCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open audio: %w", err)
	}
	defer file.Close()

	result, err := newClient().Transcribe(cmd.Context(), filepath.Base(args[0]), file)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.RecognizedText)
	return nil
}

func runSpeak(cmd *cobra.Command, args []string) error {
	audio, err := newClient().Synthesize(cmd.Context(), strings.Join(args, " "), models.VoiceSettings{
		Voice:  speakVoice,
		Rate:   speakRate,
		Volume: speakVolume,
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(speakOutput, audio, 0o644); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(audio), speakOutput)
	return nil
}
