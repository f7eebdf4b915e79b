package speech

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avvvet/buddy-voice/internal/metrics"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultHTTPTimeout = 60 * time.Second

// ErrNoMatch is returned when the audio held no recognizable speech
var ErrNoMatch = fmt.Errorf("%w: no speech could be recognized", models.ErrValidation)

// Option configures a Recognizer or Synthesizer
type Option func(*options)

type options struct {
	endpoint string
	client   *http.Client
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

// WithEndpoint overrides the regional Azure endpoint
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// WithMetrics records speech call outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

func buildOptions(defaultEndpoint string, opts []Option) options {
	o := options{
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// statusError turns a non-2xx Azure response into a collaborator error
func statusError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%w: %s returned status %d: %s", models.ErrCollaborator, service, resp.StatusCode, string(body))
}
