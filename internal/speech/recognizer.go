package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultConfidence is reported for every successful recognition
const DefaultConfidence = 0.95

// Recognition is the outcome of a successful speech-to-text call
type Recognition struct {
	Text       string
	Confidence float64
}

// Recognizer transcribes short WAV clips with the Azure Speech REST API
type Recognizer struct {
	key      string
	language string
	options
}

type recognitionResult struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Offset            int64  `json:"Offset"`
	Duration          int64  `json:"Duration"`
}

func NewRecognizer(key, region, language string, opts ...Option) *Recognizer {
	endpoint := fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1", region)
	return &Recognizer{
		key:      key,
		language: language,
		options:  buildOptions(endpoint, opts),
	}
}

// Recognize transcribes one utterance
func (r *Recognizer) Recognize(ctx context.Context, audio io.Reader) (*Recognition, error) {
	if r.key == "" {
		return nil, fmt.Errorf("%w: Azure Speech Service not configured", models.ErrConfiguration)
	}

	result, err := r.recognize(ctx, audio)
	if err != nil {
		r.metrics.RecordSpeech("recognize", "error")
		return nil, err
	}

	switch result.RecognitionStatus {
	case "Success":
		r.metrics.RecordSpeech("recognize", "success")
		r.log.WithField("text", result.DisplayText).Info("Speech recognized")
		return &Recognition{Text: result.DisplayText, Confidence: DefaultConfidence}, nil
	case "NoMatch", "InitialSilenceTimeout", "BabbleTimeout":
		r.metrics.RecordSpeech("recognize", "no_match")
		r.log.WithField("recognition_status", result.RecognitionStatus).Warn("No speech could be recognized")
		return nil, ErrNoMatch
	default:
		r.metrics.RecordSpeech("recognize", "canceled")
		return nil, fmt.Errorf("%w: speech recognition canceled: %s", models.ErrCollaborator, result.RecognitionStatus)
	}
}

func (r *Recognizer) recognize(ctx context.Context, audio io.Reader) (*recognitionResult, error) {
	query := url.Values{}
	query.Set("language", r.language)
	query.Set("format", "simple")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"?"+query.Encode(), audio)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", r.key)
	req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm; samplerate=16000")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: speech recognition request failed: %w", models.ErrCollaborator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("speech recognition", resp)
	}

	var result recognitionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode recognition result: %w", models.ErrCollaborator, err)
	}

	r.log.WithFields(logrus.Fields{
		"recognition_status": result.RecognitionStatus,
		"duration":           result.Duration,
	}).Debug("Recognition result received")

	return &result, nil
}
