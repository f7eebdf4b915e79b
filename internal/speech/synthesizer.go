package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/patrickmn/go-cache"
)

const (
	baseRate      = 150 // words per minute
	defaultVolume = 0.8
	outputFormat  = "riff-24khz-16bit-mono-pcm"
)

// Synthesizer renders text to WAV audio with the Azure Speech REST API.
// Identical requests are served from an in-memory cache.
type Synthesizer struct {
	key          string
	language     string
	defaultVoice string
	userAgent    string
	audio        *cache.Cache
	options
}

func NewSynthesizer(key, region, language, defaultVoice string, cacheTTL time.Duration, opts ...Option) *Synthesizer {
	endpoint := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)
	return &Synthesizer{
		key:          key,
		language:     language,
		defaultVoice: defaultVoice,
		userAgent:    "buddy-voice",
		audio:        cache.New(cacheTTL, 2*cacheTTL),
		options:      buildOptions(endpoint, opts),
	}
}

// Synthesize returns RIFF WAV audio for text
func (s *Synthesizer) Synthesize(ctx context.Context, text string, settings models.VoiceSettings) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", models.ErrValidation)
	}
	if s.key == "" {
		return nil, fmt.Errorf("%w: Azure Speech Service not configured", models.ErrConfiguration)
	}

	voice := s.voiceName(settings.Voice)
	rate := settings.Rate
	if rate <= 0 {
		rate = baseRate
	}
	volume := settings.Volume
	if volume <= 0 {
		volume = defaultVolume
	}
	volume = math.Min(volume, 1)

	key := fmt.Sprintf("%s|%d|%.2f|%s", voice, rate, volume, text)
	if cached, found := s.audio.Get(key); found {
		s.metrics.RecordSpeech("synthesize", "cached")
		return cached.([]byte), nil
	}

	audio, err := s.synthesize(ctx, BuildSSML(text, s.language, voice, rate, volume))
	if err != nil {
		s.metrics.RecordSpeech("synthesize", "error")
		return nil, err
	}

	s.audio.SetDefault(key, audio)
	s.metrics.RecordSpeech("synthesize", "success")
	s.log.WithField("bytes", len(audio)).Info("Speech synthesized")
	return audio, nil
}

func (s *Synthesizer) voiceName(requested string) string {
	if requested == "" || strings.EqualFold(requested, "default") {
		return s.defaultVoice
	}
	return requested
}

func (s *Synthesizer) synthesize(ctx context.Context, ssml string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: speech synthesis request failed: %w", models.ErrCollaborator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("speech synthesis", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read synthesized audio: %w", models.ErrCollaborator, err)
	}
	return audio, nil
}

// BuildSSML wraps text in a voice and prosody element.
// rate is words per minute, volume is 0..1.
func BuildSSML(text, language, voice string, rate int, volume float64) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text))

	ratePercent := int(math.Round(float64(rate-baseRate) / baseRate * 100))

	return fmt.Sprintf(
		`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s">`+
			`<voice name="%s"><prosody rate="%+d%%" volume="%d">%s</prosody></voice></speak>`,
		language, voice, ratePercent, int(math.Round(volume*100)), escaped.String(),
	)
}
