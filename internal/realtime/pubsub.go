package realtime

import (
	"context"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
	pubsubpkg "github.com/kitchenlinehq/kitchenline-backend/pkg/pubsub"
)

const (
	attrEventType = "event_type"
	attrStationID = "station_id"
)

// PubSubTransport rides the Pub/Sub realtime subscription. One receive pump
// feeds every open channel; each channel filters messages by its interest,
// so a station display only sees its own station's traffic.
type PubSubTransport struct {
	client *pubsubpkg.Client
	logg   *logger.Logger

	// pumpCtx bounds every receive pump; Close cancels it so the pump
	// cannot restart after shutdown.
	pumpCtx  context.Context
	stopPump context.CancelFunc

	mu      sync.Mutex
	conns   map[*pubsubConn]struct{}
	pumping bool
	closed  bool
}

type pubsubConn struct {
	transport *PubSubTransport
	interest  Interest
	messages  chan Message
	closed    chan error
	closeOnce sync.Once
}

// NewPubSubTransport builds the production transport.
func NewPubSubTransport(client *pubsubpkg.Client, logg *logger.Logger) (*PubSubTransport, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	pumpCtx, stopPump := context.WithCancel(context.Background())
	return &PubSubTransport{
		client:   client,
		logg:     logg,
		pumpCtx:  pumpCtx,
		stopPump: stopPump,
		conns:    make(map[*pubsubConn]struct{}),
	}, nil
}

// Open verifies broker connectivity within the caller's deadline, registers
// the channel, and makes sure the shared receive pump is running.
func (t *PubSubTransport) Open(ctx context.Context, interest Interest) (Conn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("realtime transport closed")
	}
	t.mu.Unlock()

	if err := t.client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pubsub handshake: %w", err)
	}

	conn := &pubsubConn{
		transport: t,
		interest:  interest,
		messages:  make(chan Message, 64),
		closed:    make(chan error, 1),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("realtime transport closed")
	}
	t.conns[conn] = struct{}{}
	if !t.pumping {
		t.pumping = true
		go t.pump()
	}
	t.mu.Unlock()

	return conn, nil
}

// pump drains the realtime subscription and fans messages out to matching
// channels. A receive failure drops every open channel; the subscription
// manager's per-channel retry loop brings them back, which also restarts
// the pump.
func (t *PubSubTransport) pump() {
	ctx := t.pumpCtx
	err := t.client.RealtimeSubscription().Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		t.dispatch(Message{
			EventType:  msg.Attributes[attrEventType],
			Data:       msg.Data,
			Attributes: msg.Attributes,
		})
		msg.Ack()
	})

	if err == nil {
		err = fmt.Errorf("realtime subscription receive ended")
	}
	if ctx.Err() != nil {
		err = ctx.Err()
		t.logg.Info(ctx, "realtime receive pump stopped")
	} else {
		t.logg.Error(ctx, "realtime receive pump stopped", err)
	}

	t.mu.Lock()
	t.pumping = false
	conns := make([]*pubsubConn, 0, len(t.conns))
	for conn := range t.conns {
		conns = append(conns, conn)
	}
	t.conns = make(map[*pubsubConn]struct{})
	t.mu.Unlock()

	for _, conn := range conns {
		conn.drop(err)
	}
}

func (t *PubSubTransport) dispatch(msg Message) {
	t.mu.Lock()
	conns := make([]*pubsubConn, 0, len(t.conns))
	for conn := range t.conns {
		conns = append(conns, conn)
	}
	t.mu.Unlock()

	for _, conn := range conns {
		if !conn.matches(msg) {
			continue
		}
		select {
		case conn.messages <- msg:
		default:
			// A stalled consumer loses messages rather than blocking the
			// pump; the display resyncs on its next full refresh.
		}
	}
}

// Close stops the receive pump and refuses further Opens. Open channels are
// dropped through the pump's shutdown path.
func (t *PubSubTransport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()
	t.stopPump()
}

func (t *PubSubTransport) remove(conn *pubsubConn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
}

func (c *pubsubConn) matches(msg Message) bool {
	if c.interest.StationID == nil {
		return true
	}
	return msg.Attributes[attrStationID] == c.interest.StationID.String()
}

func (c *pubsubConn) Receive() <-chan Message { return c.messages }

func (c *pubsubConn) Closed() <-chan error { return c.closed }

func (c *pubsubConn) Heartbeat(ctx context.Context) error {
	return c.transport.client.Ping(ctx)
}

func (c *pubsubConn) Close() error {
	c.transport.remove(c)
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *pubsubConn) drop(err error) {
	c.closeOnce.Do(func() {
		c.closed <- err
		close(c.closed)
	})
}
