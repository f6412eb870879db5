package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bank-client/pkg/logging"
	"bank-client/pkg/models"

	"go.uber.org/zap"
)

// LogSink writes notifications to the log.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink returns a sink logging through logger, or the global logger when nil.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.L().Component("notifications")
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, n models.Notification) error {
	s.logger.Info(n.Title,
		zap.String("id", n.ID.String()),
		zap.String("type", string(n.Type)),
		zap.String("message", n.Message),
	)
	return nil
}

func (s *LogSink) Name() string { return "log" }

// DefaultPushURL is the Expo push gateway.
const DefaultPushURL = "https://exp.host/--/api/v2/push/send"

// PushConfig configures a PushSink.
type PushConfig struct {
	// URL is the push gateway endpoint. Default: DefaultPushURL
	URL string

	// To is the device push token notifications are addressed to
	To string

	// Sound played on delivery. Default: "default"
	Sound string

	// Timeout bounds each request. Default: 5s
	Timeout time.Duration

	Transport http.RoundTripper
}

// PushMessage is one message in the Expo push format.
type PushMessage struct {
	To    string         `json:"to"`
	Sound string         `json:"sound,omitempty"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

type pushTicket struct {
	Data struct {
		Status  string `json:"status"`
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ErrPushRejected is returned when the gateway answers with an error ticket.
var ErrPushRejected = errors.New("dispatch: push rejected")

// PushSink posts notifications to a push gateway.
type PushSink struct {
	config PushConfig
	client *http.Client
}

// NewPushSink returns a push sink. A device token is required.
func NewPushSink(config PushConfig) (*PushSink, error) {
	if config.To == "" {
		return nil, fmt.Errorf("dispatch: push sink requires a device token")
	}
	if config.URL == "" {
		config.URL = DefaultPushURL
	}
	if config.Sound == "" {
		config.Sound = "default"
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &PushSink{
		config: config,
		client: &http.Client{Timeout: config.Timeout, Transport: config.Transport},
	}, nil
}

// Message builds the push message for n.
func (s *PushSink) Message(n models.Notification) PushMessage {
	data := map[string]any{
		"id":   n.ID.String(),
		"type": string(n.Type),
	}
	if n.Action != nil {
		data["action"] = n.Action.Kind
		if n.Action.Ref != "" {
			data["ref"] = n.Action.Ref
		}
	}
	return PushMessage{
		To:    s.config.To,
		Sound: s.config.Sound,
		Title: n.Title,
		Body:  n.Message,
		Data:  data,
	}
}

func (s *PushSink) Deliver(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(s.Message(n))
	if err != nil {
		return fmt.Errorf("dispatch: encode push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dispatch: build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: push request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("dispatch: read push response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrPushRejected, resp.StatusCode)
	}

	var ticket pushTicket
	if len(raw) == 0 || json.Unmarshal(raw, &ticket) != nil {
		return nil
	}
	if len(ticket.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrPushRejected, ticket.Errors[0].Message)
	}
	if ticket.Data.Status == "error" {
		return fmt.Errorf("%w: %s", ErrPushRejected, ticket.Data.Message)
	}
	return nil
}

func (s *PushSink) Name() string { return "push" }

// MultiSink delivers to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Deliver(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Name() string { return "multi" }
