package notify

import (
	"fmt"

	"github.com/hordenight/siege/pkg/host"
	"github.com/hordenight/siege/pkg/streaming"
)

// HostSink hands encoded envelopes to the host for in-game display.
type HostSink struct {
	messenger host.Messenger
}

// NewHostSink wraps the host's messenger.
func NewHostSink(m host.Messenger) *HostSink {
	return &HostSink{messenger: m}
}

func (s *HostSink) Name() string { return "host" }

func (s *HostSink) Send(msg Message) error {
	data, err := streaming.Marshal(msg.Type, msg.Payload, msg.Recipients)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	s.messenger.Deliver(msg.Recipients, data)
	return nil
}
