package wakeword

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/buddy-voice/internal/metrics"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultWakeWord   = "hey buddy"
	DefaultMaxResults = 10
	StatusDetections  = 5
	Confidence        = 0.95

	subscriberBuffer = 16
)

var (
	ErrAlreadyListening = fmt.Errorf("%w: wake word detection is already active", models.ErrValidation)
	ErrNotListening     = fmt.Errorf("%w: wake word detection is not active", models.ErrValidation)
	ErrNoFeed           = fmt.Errorf("%w: no transcript feed attached", models.ErrConfiguration)
)

// Feed delivers recognized speech to the detector while it listens
type Feed interface {
	Start(observe func(text string)) error
	Stop() error
}

// Detection is one wake word hit
type Detection struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	WakeWordDetected bool      `json:"wake_word_detected"`
	FullText         string    `json:"full_text"`
	CommandText      string    `json:"command_text"`
	Confidence       float64   `json:"confidence"`
}

// Status is a snapshot of the detector
type Status struct {
	Listening        bool        `json:"listening"`
	WakeWord         string      `json:"wake_word"`
	RecentDetections []Detection `json:"recent_detections"`
	DetectionCount   int         `json:"detection_count"`
}

// Detector watches transcribed speech for a wake phrase
type Detector struct {
	mu          sync.Mutex
	wakeWord    string
	maxResults  int
	listening   bool
	feed        Feed
	detections  []Detection
	subscribers map[chan Detection]struct{}

	now     func() time.Time
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

// Option configures a Detector
type Option func(*Detector)

func WithMaxResults(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxResults = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Detector) { d.log = log }
}

func NewDetector(wakeWord string, opts ...Option) *Detector {
	wakeWord = strings.ToLower(strings.TrimSpace(wakeWord))
	if wakeWord == "" {
		wakeWord = DefaultWakeWord
	}

	d := &Detector{
		wakeWord:    wakeWord,
		maxResults:  DefaultMaxResults,
		subscribers: make(map[chan Detection]struct{}),
		now:         time.Now,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WakeWord returns the phrase being listened for
func (d *Detector) WakeWord() string {
	return d.wakeWord
}

// AttachFeed sets the transcript source used by Start
func (d *Detector) AttachFeed(feed Feed) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feed = feed
}

// Start begins listening on the attached feed
func (d *Detector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.listening {
		return ErrAlreadyListening
	}
	if d.feed == nil {
		return ErrNoFeed
	}
	if err := d.feed.Start(func(text string) { d.Observe(text) }); err != nil {
		return fmt.Errorf("%w: failed to start transcript feed: %w", models.ErrCollaborator, err)
	}

	d.listening = true
	d.log.WithField("wake_word", d.wakeWord).Info("Wake word detection started")
	return nil
}

// Stop ends listening and clears the detection history
func (d *Detector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.listening {
		return ErrNotListening
	}
	if err := d.feed.Stop(); err != nil {
		return fmt.Errorf("%w: failed to stop transcript feed: %w", models.ErrCollaborator, err)
	}

	d.listening = false
	d.detections = nil
	d.log.Info("Wake word detection stopped")
	return nil
}

// Listening reports whether detection is active
func (d *Detector) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listening
}

// Observe checks one utterance for the wake phrase. Utterances arriving
// while the detector is stopped are ignored.
func (d *Detector) Observe(text string) (Detection, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	idx := strings.Index(lower, d.wakeWord)
	if idx < 0 {
		return Detection{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.listening {
		return Detection{}, false
	}

	command := strings.TrimLeft(lower[idx+len(d.wakeWord):], " ,.!?;:")
	detection := Detection{
		ID:               uuid.NewString(),
		Timestamp:        d.now(),
		WakeWordDetected: true,
		FullText:         text,
		CommandText:      strings.TrimSpace(command),
		Confidence:       Confidence,
	}

	d.detections = append(d.detections, detection)
	if len(d.detections) > d.maxResults {
		d.detections = d.detections[len(d.detections)-d.maxResults:]
	}

	for ch := range d.subscribers {
		select {
		case ch <- detection:
		default:
			d.log.Warn("Dropping wake word detection for slow subscriber")
		}
	}

	d.metrics.RecordWakeDetection()
	d.log.WithFields(logrus.Fields{
		"full_text":    text,
		"command_text": detection.CommandText,
	}).Info("Wake word detected")

	return detection, true
}

// Recent returns up to limit of the newest detections, oldest first
func (d *Detector) Recent(limit int) []Detection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recent(limit)
}

func (d *Detector) recent(limit int) []Detection {
	start := 0
	if limit >= 0 && len(d.detections) > limit {
		start = len(d.detections) - limit
	}
	out := make([]Detection, len(d.detections)-start)
	copy(out, d.detections[start:])
	return out
}

// Status returns a snapshot for the status endpoint
func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := Status{
		Listening:        d.listening,
		WakeWord:         d.wakeWord,
		RecentDetections: []Detection{},
	}
	if d.listening {
		status.RecentDetections = d.recent(StatusDetections)
		status.DetectionCount = len(d.detections)
	}
	return status
}

// Subscribe streams future detections. Call cancel when done.
func (d *Detector) Subscribe() (<-chan Detection, func()) {
	ch := make(chan Detection, subscriberBuffer)

	d.mu.Lock()
	d.subscribers[ch] = struct{}{}
	d.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, ch)
			d.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
