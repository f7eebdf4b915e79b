package wakeword

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/buddy-voice/internal/models"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	mu       sync.Mutex
	observe  func(string)
	startErr error
	stops    int
}

func (f *fakeFeed) Start(observe func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.observe = observe
	return nil
}

func (f *fakeFeed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observe = nil
	f.stops++
	return nil
}

func (f *fakeFeed) push(text string) {
	f.mu.Lock()
	observe := f.observe
	f.mu.Unlock()
	if observe != nil {
		observe(text)
	}
}

func newTestDetector(opts ...Option) (*Detector, *fakeFeed) {
	logger, _ := logtest.NewNullLogger()
	d := NewDetector("Hey Buddy", append([]Option{WithLogger(logger)}, opts...)...)
	feed := &fakeFeed{}
	d.AttachFeed(feed)
	return d, feed
}

func TestDetector_StartStop(t *testing.T) {
	d, feed := newTestDetector()

	require.NoError(t, d.Start())
	assert.True(t, d.Listening())
	assert.ErrorIs(t, d.Start(), ErrAlreadyListening)
	assert.ErrorIs(t, d.Start(), models.ErrValidation)

	require.NoError(t, d.Stop())
	assert.False(t, d.Listening())
	assert.Equal(t, 1, feed.stops)
	assert.ErrorIs(t, d.Stop(), ErrNotListening)
}

func TestDetector_StartWithoutFeed(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	d := NewDetector("", WithLogger(logger))

	assert.Equal(t, DefaultWakeWord, d.WakeWord())
	assert.ErrorIs(t, d.Start(), models.ErrConfiguration)
	assert.False(t, d.Listening())
}

func TestDetector_FeedFailure(t *testing.T) {
	d, feed := newTestDetector()
	feed.startErr = errors.New("nats disconnected")

	assert.ErrorIs(t, d.Start(), models.ErrCollaborator)
	assert.False(t, d.Listening())
}

func TestDetector_Observe(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d, feed := newTestDetector(WithClock(func() time.Time { return fixed }))

	_, ok := d.Observe("hey buddy ignored while stopped")
	assert.False(t, ok)

	require.NoError(t, d.Start())

	_, ok = d.Observe("check the tire pressure")
	assert.False(t, ok)

	detection, ok := d.Observe("Hey Buddy, how do I bleed the brakes?")
	require.True(t, ok)
	assert.NotEmpty(t, detection.ID)
	assert.True(t, detection.WakeWordDetected)
	assert.Equal(t, "Hey Buddy, how do I bleed the brakes?", detection.FullText)
	assert.Equal(t, "how do i bleed the brakes?", detection.CommandText)
	assert.Equal(t, Confidence, detection.Confidence)
	assert.Equal(t, fixed, detection.Timestamp)

	feed.push("ok hey buddy")
	recent := d.Recent(10)
	require.Len(t, recent, 2)
	assert.Empty(t, recent[1].CommandText)
}

func TestDetector_HistoryIsBounded(t *testing.T) {
	d, _ := newTestDetector(WithMaxResults(3))
	require.NoError(t, d.Start())

	for _, cmd := range []string{"one", "two", "three", "four", "five"} {
		d.Observe("hey buddy " + cmd)
	}

	recent := d.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "three", recent[0].CommandText)
	assert.Equal(t, "five", recent[2].CommandText)

	assert.Len(t, d.Recent(2), 2)
	assert.Equal(t, "four", d.Recent(2)[0].CommandText)
}

func TestDetector_Status(t *testing.T) {
	d, _ := newTestDetector()

	status := d.Status()
	assert.False(t, status.Listening)
	assert.Equal(t, "hey buddy", status.WakeWord)
	assert.Empty(t, status.RecentDetections)
	assert.Zero(t, status.DetectionCount)

	require.NoError(t, d.Start())
	for i := 0; i < 7; i++ {
		d.Observe("hey buddy next step")
	}

	status = d.Status()
	assert.True(t, status.Listening)
	assert.Len(t, status.RecentDetections, StatusDetections)
	assert.Equal(t, 7, status.DetectionCount)

	require.NoError(t, d.Stop())
	assert.Zero(t, d.Status().DetectionCount)
}

func TestDetector_Subscribe(t *testing.T) {
	d, _ := newTestDetector()
	require.NoError(t, d.Start())

	events, cancel := d.Subscribe()
	d.Observe("hey buddy start the engine")

	select {
	case detection := <-events:
		assert.Equal(t, "start the engine", detection.CommandText)
	case <-time.After(time.Second):
		t.Fatal("no detection delivered")
	}

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)

	_, ok := d.Observe("hey buddy after cancel")
	assert.True(t, ok)
}

func TestDetector_ConcurrentObserve(t *testing.T) {
	d, _ := newTestDetector(WithMaxResults(100))
	require.NoError(t, d.Start())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Observe("hey buddy check oil")
			_ = d.Status()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, d.Status().DetectionCount)
}
