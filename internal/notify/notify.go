// Package notify fans outbound siege notifications out to every configured
// sink. Delivery is fire-and-forget: sink failures are logged, never returned.
package notify

import (
	"log/slog"
	"sync"
)

// Message is one outbound notification before encoding.
type Message struct {
	Type       string
	Payload    any
	Recipients []string
}

// Sink delivers encoded notifications somewhere.
type Sink interface {
	Name() string
	Send(msg Message) error
}

// Notifier is what the director's components publish through.
type Notifier interface {
	// Broadcast sends to every connected participant.
	Broadcast(msgType string, payload any)
	// SendTo sends to the listed participants only.
	SendTo(recipients []string, msgType string, payload any)
}

// Broadcaster is a Notifier writing to a set of sinks.
type Broadcaster struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *slog.Logger
}

// NewBroadcaster creates a Broadcaster over sinks.
func NewBroadcaster(logger *slog.Logger, sinks ...Sink) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{sinks: sinks, logger: logger}
}

// AddSink attaches another sink.
func (b *Broadcaster) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

func (b *Broadcaster) Broadcast(msgType string, payload any) {
	b.publish(Message{Type: msgType, Payload: payload})
}

func (b *Broadcaster) SendTo(recipients []string, msgType string, payload any) {
	b.publish(Message{Type: msgType, Payload: payload, Recipients: recipients})
}

func (b *Broadcaster) publish(msg Message) {
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Send(msg); err != nil {
			b.logger.Warn("Notification not delivered",
				"sink", s.Name(),
				"type", msg.Type,
				"error", err)
		}
	}
}

// Recorder is an in-memory Notifier that keeps every message.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Broadcast(msgType string, payload any) {
	r.SendTo(nil, msgType, payload)
}

func (r *Recorder) SendTo(recipients []string, msgType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Type: msgType, Payload: payload, Recipients: recipients})
}

// Name and Send let a Recorder also act as a Sink.
func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Send(msg Message) error {
	r.SendTo(msg.Recipients, msg.Type, msg.Payload)
	return nil
}

// Messages returns a copy of everything recorded.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// OfType returns the recorded messages with the given type.
func (r *Recorder) OfType(msgType string) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
