package notify

import (
	"fmt"
	"log/slog"

	"github.com/hordenight/siege/pkg/streaming"
)

// WebsocketConfig holds the remote stream configuration.
type WebsocketConfig struct {
	URL    string
	Secret string
}

// WebsocketSink streams notifications to a remote listener such as a
// community dashboard or a chat bridge. Envelopes keep their recipient list
// so the listener can route player-addressed messages itself.
type WebsocketSink struct {
	stream *stream
	logger *slog.Logger
}

// NewWebsocketSink creates an unconnected sink. Broadcasts sent before Open
// are queued.
func NewWebsocketSink(cfg WebsocketConfig, logger *slog.Logger) *WebsocketSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsocketSink{
		stream: newStream(cfg, logger, queueSize),
		logger: logger,
	}
}

// Open dials the listener and waits for it to ack hello. The same hello
// opens every reconnect.
func (s *WebsocketSink) Open(hello streaming.HelloPayload) error {
	data, err := streaming.Marshal(streaming.TypeHello, hello, nil)
	if err != nil {
		return fmt.Errorf("marshal hello: %w", err)
	}
	return s.stream.open(data)
}

// Close disconnects from the listener.
func (s *WebsocketSink) Close() error {
	s.stream.close()
	if n := s.stream.dropped.Load(); n > 0 {
		s.logger.Info("Notification stream closed", "dropped", n)
	}
	return nil
}

func (s *WebsocketSink) Name() string { return "websocket" }

// Send queues the message for delivery.
func (s *WebsocketSink) Send(msg Message) error {
	data, err := streaming.Marshal(msg.Type, msg.Payload, msg.Recipients)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	s.stream.send(data, len(msg.Recipients) > 0)
	return nil
}
