package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/buddy-voice/internal/config"
	"github.com/avvvet/buddy-voice/internal/handlers"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSTransport answers queries over request/reply and feeds recognized
// speech to the wake word detector
type NATSTransport struct {
	conn    *nats.Conn
	config  *config.Config
	handler *handlers.QueryHandler
	log     logrus.FieldLogger

	mu            sync.Mutex
	transcriptSub *nats.Subscription
}

// errorReply is sent when a request cannot be processed at all
type errorReply struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	Summary   string `json:"summary"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// transcriptMessage is the payload published by speech recognizers
type transcriptMessage struct {
	Text string `json:"text"`
}

func NewNATSTransport(cfg *config.Config, handler *handlers.QueryHandler, log logrus.FieldLogger) (*NATSTransport, error) {
	// Connect to NATS
	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.ServiceName),
		nats.Timeout(cfg.NatsTimeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.WithField("url", cfg.NatsURL).Info("Connected to NATS server")

	return &NATSTransport{
		conn:    conn,
		config:  cfg,
		handler: handler,
		log:     log,
	}, nil
}

// Start subscribes to query requests
func (nt *NATSTransport) Start() error {
	_, err := nt.conn.Subscribe(nt.config.NatsQuerySubject, nt.handleQueryRequest)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", nt.config.NatsQuerySubject, err)
	}

	nt.log.WithField("subject", nt.config.NatsQuerySubject).Info("Subscribed to query subject")
	return nil
}

func (nt *NATSTransport) handleQueryRequest(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), nt.config.NatsTimeout)
	defer cancel()

	if err := msg.Respond(processQuery(ctx, nt.handler, msg.Data, nt.log)); err != nil {
		nt.log.WithError(err).Error("Failed to send response")
	}
}

// processQuery turns a raw request into a raw reply. It always produces a reply.
func processQuery(ctx context.Context, handler *handlers.QueryHandler, data []byte, log logrus.FieldLogger) []byte {
	var request models.QueryRequest
	if err := json.Unmarshal(data, &request); err != nil {
		log.WithError(err).Warn("Error parsing query request")
		return marshalReply(errorReplyFor(&request, fmt.Errorf("%w: invalid request format", models.ErrValidation)))
	}

	log.WithField("session_id", request.SessionID).Info("Processing query request")

	response, err := handler.ProcessQuery(ctx, &request)
	if err != nil {
		log.WithError(err).Warn("Query rejected")
		return marshalReply(errorReplyFor(&request, err))
	}

	log.WithFields(logrus.Fields{
		"session_id": response.SessionID,
		"status":     response.Status,
	}).Info("Response sent")
	return marshalReply(response)
}

func errorReplyFor(request *models.QueryRequest, err error) *errorReply {
	return &errorReply{
		Status:    models.StatusError,
		SessionID: request.SessionID,
		Summary:   "I'm sorry, I encountered an error processing your request. Please try again.",
		ErrorCode: models.Code(err),
		Message:   err.Error(),
	}
}

func marshalReply(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf(`{"status":"error","error_code":%q}`, models.ErrorInternal))
	}
	return data
}

// StartFeed subscribes to recognized speech and hands each utterance to observe
func (nt *NATSTransport) StartFeed(observe func(text string)) error {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	if nt.transcriptSub != nil {
		return nil
	}

	sub, err := nt.conn.Subscribe(nt.config.NatsTranscriptSubject, func(msg *nats.Msg) {
		if text := decodeTranscript(msg.Data); text != "" {
			observe(text)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", nt.config.NatsTranscriptSubject, err)
	}

	nt.transcriptSub = sub
	nt.log.WithField("subject", nt.config.NatsTranscriptSubject).Info("Subscribed to transcript subject")
	return nil
}

// StopFeed unsubscribes from recognized speech
func (nt *NATSTransport) StopFeed() error {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	if nt.transcriptSub == nil {
		return nil
	}
	err := nt.transcriptSub.Unsubscribe()
	nt.transcriptSub = nil
	if err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", nt.config.NatsTranscriptSubject, err)
	}
	return nil
}

// Feed adapts the transport to the wake word detector
func (nt *NATSTransport) Feed() *TranscriptFeed {
	return &TranscriptFeed{transport: nt}
}

// TranscriptFeed is the NATS transcript subscription seen as a wakeword.Feed
type TranscriptFeed struct {
	transport *NATSTransport
}

func (f *TranscriptFeed) Start(observe func(text string)) error {
	return f.transport.StartFeed(observe)
}

func (f *TranscriptFeed) Stop() error {
	return f.transport.StopFeed()
}

// decodeTranscript accepts {"text": "..."} or a bare utterance
func decodeTranscript(data []byte) string {
	var msg transcriptMessage
	if err := json.Unmarshal(data, &msg); err == nil {
		return strings.TrimSpace(msg.Text)
	}
	return strings.TrimSpace(string(data))
}

func (nt *NATSTransport) Close() error {
	if nt.conn != nil {
		if err := nt.conn.Drain(); err != nil {
			nt.conn.Close()
		}
		nt.log.Info("NATS connection closed")
	}
	return nil
}
