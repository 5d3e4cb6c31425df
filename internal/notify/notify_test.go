package notify

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hordenight/siege/pkg/streaming"
)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and acks hello.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeHello {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	secret   string
	messages []streaming.Envelope
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketSink_HelloAndBroadcast(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	sink := NewWebsocketSink(WebsocketConfig{URL: wsURL(srv), Secret: "s3cret"}, nil)
	require.NoError(t, sink.Open(streaming.HelloPayload{World: "Muldraugh", Session: "abc"}))
	defer sink.Close()

	b := NewBroadcaster(nil, sink)
	b.Broadcast(streaming.TypeWaveStart, streaming.WaveStartPayload{WaveIndex: 1, TotalWaves: 3})
	b.SendTo([]string{"p1"}, streaming.TypeVoteUpdate, streaming.VoteUpdatePayload{Current: 1, Needed: 2})

	require.Eventually(t, func() bool { return len(ml.all()) == 3 }, time.Second, 10*time.Millisecond)

	msgs := ml.all()
	assert.Equal(t, streaming.TypeHello, msgs[0].Type)
	assert.Equal(t, streaming.TypeWaveStart, msgs[1].Type)
	assert.Equal(t, streaming.TypeVoteUpdate, msgs[2].Type)
	assert.Equal(t, []string{"p1"}, msgs[2].Recipients)

	var wp streaming.WaveStartPayload
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &wp))
	assert.Equal(t, 3, wp.TotalWaves)

	ml.mu.Lock()
	assert.Equal(t, "s3cret", ml.secret)
	ml.mu.Unlock()
}

func TestWebsocketSink_DialFailure(t *testing.T) {
	sink := NewWebsocketSink(WebsocketConfig{URL: "ws://127.0.0.1:1"}, nil)
	err := sink.Open(streaming.HelloPayload{World: "w"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial failed")
}

func TestStream_DropPolicy(t *testing.T) {
	s := newStream(WebsocketConfig{}, slog.New(slog.DiscardHandler), 2)

	s.send([]byte("a"), false)
	s.send([]byte("b"), false)
	s.send([]byte("c"), false)
	assert.Equal(t, uint64(1), s.dropped.Load(), "oldest broadcast evicted")

	s.send([]byte("vote"), true)
	assert.Equal(t, uint64(2), s.dropped.Load(), "addressed message dropped while offline")

	require.Len(t, s.queue, 2)
	assert.Equal(t, []byte("b"), <-s.queue)
	assert.Equal(t, []byte("c"), <-s.queue)

	s.online.Store(true)
	s.send([]byte("vote"), true)
	assert.Equal(t, []byte("vote"), <-s.queue)

	s.close()
}

func TestWebsocketSink_ReconnectReplaysHello(t *testing.T) {
	var (
		mu    sync.Mutex
		dials int
		got   []string
	)
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		mu.Lock()
		dials++
		first := dials == 1
		mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			mu.Lock()
			got = append(got, env.Type)
			mu.Unlock()

			if env.Type == streaming.TypeHello {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				_ = c.WriteMessage(ws.TextMessage, data)
				continue
			}
			if first {
				// Drop the first connection after one notification.
				return
			}
		}
	}))
	defer srv.Close()

	sink := NewWebsocketSink(WebsocketConfig{URL: wsURL(srv)}, nil)
	require.NoError(t, sink.Open(streaming.HelloPayload{World: "w"}))
	defer sink.Close()

	require.NoError(t, sink.Send(Message{Type: streaming.TypeWaveStart, Payload: streaming.WaveStartPayload{WaveIndex: 1}}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials == 2 && len(got) >= 3
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, sink.stream.online.Load, time.Second, 10*time.Millisecond)
	require.NoError(t, sink.Send(Message{Type: streaming.TypeWaveBreak, Payload: streaming.WaveBreakPayload{WaveIndex: 1}}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		streaming.TypeHello, streaming.TypeWaveStart,
		streaming.TypeHello, streaming.TypeWaveBreak,
	}, got)
}

type fakeMessenger struct {
	recipients []string
	envelopes  [][]byte
}

func (f *fakeMessenger) Deliver(recipients []string, envelope []byte) {
	f.recipients = recipients
	f.envelopes = append(f.envelopes, envelope)
}

func TestHostSink_EncodesEnvelope(t *testing.T) {
	m := &fakeMessenger{}
	b := NewBroadcaster(nil, NewHostSink(m))

	b.Broadcast(streaming.TypeStateChange, streaming.StateChangePayload{
		State:      "ACTIVE",
		SiegeCount: streaming.IntPtr(2),
		Direction:  "NE",
	})

	require.Len(t, m.envelopes, 1)
	assert.Nil(t, m.recipients)

	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(m.envelopes[0], &env))
	assert.Equal(t, streaming.TypeStateChange, env.Type)

	var p map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "ACTIVE", p["state"])
	assert.Equal(t, float64(2), p["siegeCount"])
	assert.NotContains(t, p, "targetZombies", "unset optional fields are omitted")
}

type failingSink struct{}

func (failingSink) Name() string       { return "failing" }
func (failingSink) Send(Message) error { return errors.New("down") }

func TestBroadcaster_SinkFailureDoesNotStopOthers(t *testing.T) {
	rec := &Recorder{}
	b := NewBroadcaster(nil, failingSink{}, rec)

	b.Broadcast(streaming.TypeVotePassed, streaming.VotePassedPayload{})

	assert.Len(t, rec.OfType(streaming.TypeVotePassed), 1)
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	rec.Broadcast(streaming.TypeVoteFailed, streaming.VoteFailedPayload{})
	rec.SendTo([]string{"a"}, streaming.TypeVoteUpdate, streaming.VoteUpdatePayload{Current: 1, Needed: 2})

	assert.Len(t, rec.Messages(), 2)
	assert.Len(t, rec.OfType(streaming.TypeVoteUpdate), 1)

	rec.Reset()
	assert.Empty(t, rec.Messages())
}
