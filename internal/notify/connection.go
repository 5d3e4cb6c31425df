package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/hordenight/siege/pkg/streaming"
)

const (
	queueSize    = 256
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	helloTimeout = 10 * time.Second
)

var errListenerGone = errors.New("listener closed the stream")

// stream carries encoded notifications to one remote listener. A single
// goroutine owns the socket after the hello handshake; producers only touch
// the queue. When the queue is full the oldest notification is evicted.
// Messages addressed to specific players are dropped outright while the
// listener is unreachable, since they are stale by the time it returns.
type stream struct {
	cfg    WebsocketConfig
	queue  chan []byte
	online atomic.Bool
	// dropped counts notifications that never reached the listener.
	dropped atomic.Uint64

	mu      sync.Mutex
	hello   []byte
	stopped chan struct{} // nil until open succeeds
	done    chan struct{}
	once    sync.Once

	logger *slog.Logger
}

func newStream(cfg WebsocketConfig, logger *slog.Logger, size int) *stream {
	return &stream{
		cfg:    cfg,
		queue:  make(chan []byte, size),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// open dials the listener, completes the hello handshake and hands the
// socket to the delivery goroutine.
func (s *stream) open(hello []byte) error {
	s.mu.Lock()
	s.hello = hello
	s.mu.Unlock()

	conn, err := s.connect()
	if err != nil {
		return err
	}
	s.online.Store(true)

	stopped := make(chan struct{})
	s.mu.Lock()
	s.stopped = stopped
	s.mu.Unlock()

	go func() {
		defer close(stopped)
		s.run(conn)
	}()
	return nil
}

// connect dials with the shared secret and performs the hello handshake.
func (s *stream) connect() (*ws.Conn, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", s.cfg.Secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if err := s.handshake(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// handshake sends hello and reads until the listener acks it. Anything else
// the listener says first is ignored.
func (s *stream) handshake(conn *ws.Conn) error {
	s.mu.Lock()
	hello := s.hello
	s.mu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	if err := conn.WriteMessage(ws.TextMessage, hello); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(helloTimeout)); err != nil {
		return fmt.Errorf("await hello ack: %w", err)
	}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("await hello ack: %w", err)
		}
		var ack streaming.AckMessage
		if json.Unmarshal(raw, &ack) == nil && ack.Type == "ack" && ack.For == streaming.TypeHello {
			return conn.SetReadDeadline(time.Time{})
		}
	}
}

// run delivers queued notifications, redialing whenever the socket fails,
// until close is called or reconnecting is abandoned.
func (s *stream) run(conn *ws.Conn) {
	for conn != nil {
		lost := make(chan struct{})
		go discard(conn, lost)

		err := s.pump(conn, lost)
		s.online.Store(false)
		_ = conn.Close()
		if err == nil {
			return
		}
		s.logger.Warn("Notification stream lost", "error", err)
		conn = s.redial()
	}
}

// discard drains the listener side so close frames and pings are processed.
func discard(conn *ws.Conn, lost chan<- struct{}) {
	defer close(lost)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pump writes queued notifications until the socket fails or the stream is
// closed. A nil return means a clean close.
func (s *stream) pump(conn *ws.Conn, lost <-chan struct{}) error {
	for {
		select {
		case <-s.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			return nil
		case <-lost:
			return errListenerGone
		case data := <-s.queue:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				return err
			}
		}
	}
}

// redial reconnects with exponential backoff, replaying hello on success.
func (s *stream) redial() *ws.Conn {
	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		timer := time.NewTimer(backoff)
		select {
		case <-s.done:
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := s.connect()
		if err == nil {
			s.online.Store(true)
			s.logger.Info("Notification stream restored", "attempt", attempt)
			return conn
		}
		s.logger.Warn("Notification stream redial failed", "attempt", attempt, "error", err)
		backoff = min(backoff*2, maxBackoff)
	}
	s.logger.Error("Notification stream abandoned", "attempts", maxReconnect)
	return nil
}

// send queues data without blocking the caller.
func (s *stream) send(data []byte, addressed bool) {
	if addressed && !s.online.Load() {
		s.drop("listener offline")
		return
	}
	for {
		select {
		case s.queue <- data:
			return
		default:
		}
		select {
		case <-s.queue:
			s.drop("queue full")
		default:
		}
	}
}

func (s *stream) drop(reason string) {
	n := s.dropped.Add(1)
	if n == 1 || n%100 == 0 {
		s.logger.Warn("Notification dropped", "reason", reason, "dropped", n)
	}
}

// close stops delivery and waits for the socket to be released.
func (s *stream) close() {
	s.once.Do(func() { close(s.done) })

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped != nil {
		<-stopped
	}
}
