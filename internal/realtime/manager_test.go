package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/config"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
)

type stubSessionChecker struct {
	ok  bool
	err error
}

func (s stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return s.ok, s.err
}

type fakeConn struct {
	messages     chan Message
	closed       chan error
	heartbeatErr error
	closeOnce    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		messages: make(chan Message, 8),
		closed:   make(chan error, 1),
	}
}

func (c *fakeConn) Receive() <-chan Message { return c.messages }

func (c *fakeConn) Closed() <-chan error { return c.closed }

func (c *fakeConn) Heartbeat(ctx context.Context) error { return c.heartbeatErr }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) dropWith(err error) {
	c.closed <- err
}

type fakeTransport struct {
	mu       sync.Mutex
	script   []error
	attempts int
	conns    []*fakeConn
}

func (t *fakeTransport) Open(ctx context.Context, interest Interest) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	attempt := t.attempts
	t.attempts++
	if attempt < len(t.script) && t.script[attempt] != nil {
		return nil, t.script[attempt]
	}
	conn := newFakeConn()
	t.conns = append(t.conns, conn)
	return conn, nil
}

func (t *fakeTransport) attemptCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		SubscribeTimeout:  time.Second,
		HeartbeatInterval: 25 * time.Second,
		RetryBase:         time.Second,
		RetryMaxDelay:     4 * time.Second,
		RetryJitter:       0,
		MaxRetries:        5,
	}
}

func newTestManager(t *testing.T, transport Transport, sessions stubSessionChecker) *Manager {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "realtime-test"})
	m, err := NewManager(transport, sessions, testRealtimeConfig(), nil, logg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestSubscribeWithoutSessionFailsFast(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(t, transport, stubSessionChecker{ok: false})

	_, err := m.Subscribe(context.Background(), "access-1", GlobalInterest(), Callbacks{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeAuthRequired) {
		t.Fatalf("expected AUTHENTICATION_REQUIRED, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if transport.attemptCount() != 0 {
		t.Fatal("auth failures must not touch the transport")
	}
}

func TestSubscribeConnectsAndDeliversData(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(t, transport, stubSessionChecker{ok: true})

	connected := make(chan string, 1)
	received := make(chan Message, 1)
	id, err := m.Subscribe(context.Background(), "access-1", GlobalInterest(), Callbacks{
		OnConnect: func(channelID string) { connected <- channelID },
		OnData:    func(msg Message) { received <- msg },
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case got := <-connected:
		if got != id {
			t.Fatalf("expected channel %s, got %s", id, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel never connected")
	}
	if state, ok := m.State(id); !ok || state != StateConnected {
		t.Fatalf("expected connected state, got %s", state)
	}

	transport.conns[0].messages <- Message{EventType: "routing_bumped"}
	select {
	case msg := <-received:
		if msg.EventType != "routing_bumped" {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never delivered")
	}

	if err := m.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if _, ok := m.State(id); ok {
		t.Fatal("unsubscribed channel must drop all state")
	}
}

func TestRetryBackoffStopsAfterMaxRetries(t *testing.T) {
	boom := errors.New("broker unreachable")
	transport := &fakeTransport{script: []error{boom, boom, boom, boom, boom, boom}}
	m := newTestManager(t, transport, stubSessionChecker{ok: true})

	var mu sync.Mutex
	var delays []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return nil
	}

	disconnected := make(chan error, 1)
	id, err := m.Subscribe(context.Background(), "access-1", GlobalInterest(), Callbacks{
		OnDisconnect: func(channelID string, err error) { disconnected <- err },
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case err := <-disconnected:
		if !pkgerrors.IsCode(err, pkgerrors.CodeChannelError) {
			t.Fatalf("expected CHANNEL_ERROR, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel never gave up")
	}

	if state, ok := m.State(id); !ok || state != StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", state)
	}
	if got := transport.attemptCount(); got != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delays) != 4 {
		t.Fatalf("expected 4 scheduled retries, got %d", len(delays))
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, delay := range delays {
		if delay != want[i] {
			t.Fatalf("delay %d: expected %s, got %s", i, want[i], delay)
		}
		if i > 0 && delay < delays[i-1] {
			t.Fatalf("delays must be non-decreasing, got %v", delays)
		}
	}
}

func TestTransportDropReconnects(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(t, transport, stubSessionChecker{ok: true})
	m.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	connected := make(chan string, 2)
	errored := make(chan error, 2)
	id, err := m.Subscribe(context.Background(), "access-1", GlobalInterest(), Callbacks{
		OnConnect: func(channelID string) { connected <- channelID },
		OnError:   func(err error) { errored <- err },
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer func() { _ = m.Unsubscribe(id) }()

	<-connected
	transport.conns[0].dropWith(errors.New("stream reset"))

	select {
	case err := <-errored:
		if !pkgerrors.IsCode(err, pkgerrors.CodeChannelError) {
			t.Fatalf("expected CHANNEL_ERROR, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("drop never reported")
	}

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("channel never reconnected after drop")
	}
	if state, _ := m.State(id); state != StateConnected {
		t.Fatalf("expected reconnect, got %s", state)
	}
}

func TestHeartbeatFailureDoesNotReconnect(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(t, transport, stubSessionChecker{ok: true})
	m.cfg.HeartbeatInterval = 10 * time.Millisecond

	connected := make(chan string, 1)
	id, err := m.Subscribe(context.Background(), "access-1", GlobalInterest(), Callbacks{
		OnConnect: func(channelID string) { connected <- channelID },
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer func() { _ = m.Unsubscribe(id) }()

	<-connected
	transport.mu.Lock()
	transport.conns[0].heartbeatErr = errors.New("publish deadline exceeded")
	transport.mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	if state, _ := m.State(id); state != StateConnected {
		t.Fatalf("heartbeat failures must not drop the channel, got %s", state)
	}
	if transport.attemptCount() != 1 {
		t.Fatalf("heartbeat failures must not trigger reconnects, got %d attempts", transport.attemptCount())
	}
}

func TestUnsubscribeCancelsPendingRetry(t *testing.T) {
	boom := errors.New("broker unreachable")
	transport := &fakeTransport{script: []error{boom, boom, boom, boom, boom, boom}}
	m := newTestManager(t, transport, stubSessionChecker{ok: true})

	retryScheduled := make(chan struct{}, 8)
	m.sleep = func(ctx context.Context, d time.Duration) error {
		retryScheduled <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}

	id, err := m.Subscribe(context.Background(), "access-1", GlobalInterest(), Callbacks{})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case <-retryScheduled:
	case <-time.After(2 * time.Second):
		t.Fatal("retry never scheduled")
	}

	if err := m.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	attempts := transport.attemptCount()
	time.Sleep(30 * time.Millisecond)
	if transport.attemptCount() != attempts {
		t.Fatal("unsubscribe must cancel pending retries")
	}
}

func TestStationInterestTopic(t *testing.T) {
	stationID := uuid.New()
	if got := StationInterest(stationID).Topic(); got != "routings:station:"+stationID.String() {
		t.Fatalf("unexpected topic %s", got)
	}
	if got := GlobalInterest().Topic(); got != "routings:all" {
		t.Fatalf("unexpected topic %s", got)
	}
}
