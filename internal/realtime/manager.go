package realtime

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/auth/session"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/config"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/metrics"
)

// State is the lifecycle position of one channel.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
	StateDisconnected State = "disconnected"
	StateClosed       State = "closed"
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// Manager owns the live subscription channels. One instance is constructed
// at startup and passed to consumers; channels are independent of each other
// and each one is driven by a single goroutine, so per-channel operations
// never interleave.
type Manager struct {
	transport Transport
	sessions  session.AccessSessionChecker
	cfg       config.RealtimeConfig
	met       *metrics.RealtimeMetrics
	logg      *logger.Logger

	// sleep is swapped in tests to observe retry scheduling.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	channels map[string]*channel
}

type channel struct {
	id       string
	interest Interest
	cb       Callbacks
	cancel   context.CancelFunc
	done     chan struct{}

	mu            sync.Mutex
	state         State
	retries       int
	lastErr       error
	lastConnected time.Time
}

// NewManager builds the subscription manager.
func NewManager(transport Transport, sessions session.AccessSessionChecker, cfg config.RealtimeConfig, met *metrics.RealtimeMetrics, logg *logger.Logger) (*Manager, error) {
	if transport == nil {
		return nil, fmt.Errorf("realtime transport required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session checker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	m := &Manager{
		transport: transport,
		sessions:  sessions,
		cfg:       withRealtimeDefaults(cfg),
		met:       met,
		logg:      logg,
		channels:  make(map[string]*channel),
	}
	m.sleep = m.sleepFor
	return m, nil
}

func withRealtimeDefaults(cfg config.RealtimeConfig) config.RealtimeConfig {
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 10 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 25 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return cfg
}

// Subscribe validates the caller's session, registers a channel for the
// interest, and starts connecting in the background. A missing or expired
// session fails immediately with no retry; that is a caller problem, not a
// transport problem. Connection progress is reported through the callbacks.
func (m *Manager) Subscribe(ctx context.Context, accessID string, interest Interest, cb Callbacks) (string, error) {
	if accessID == "" {
		return "", pkgerrors.New(pkgerrors.CodeAuthRequired, "session required")
	}
	ok, err := m.sessions.HasSession(ctx, accessID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check session")
	}
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeAuthRequired, "session expired or revoked")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ch := &channel{
		id:       uuid.NewString(),
		interest: interest,
		cb:       cb,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    StateConnecting,
	}

	m.mu.Lock()
	m.channels[ch.id] = ch
	m.mu.Unlock()
	m.publishChannelCounts()

	go m.run(runCtx, ch)
	return ch.id, nil
}

// Unsubscribe tears the channel down: any pending retry timer or heartbeat
// stops, the transport connection closes, and all tracked state is removed.
func (m *Manager) Unsubscribe(channelID string) error {
	m.mu.Lock()
	ch, ok := m.channels[channelID]
	if ok {
		delete(m.channels, channelID)
	}
	m.mu.Unlock()
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "unknown channel")
	}

	ch.cancel()
	<-ch.done
	m.publishChannelCounts()
	return nil
}

// State reports the current lifecycle position of a channel.
func (m *Manager) State(channelID string) (State, bool) {
	m.mu.Lock()
	ch, ok := m.channels[channelID]
	m.mu.Unlock()
	if !ok {
		return "", false
	}
	return ch.currentState(), true
}

// Close unsubscribes every channel. Used at shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Unsubscribe(id)
	}
}

// run drives one channel's state machine until it is closed or gives up.
func (m *Manager) run(ctx context.Context, ch *channel) {
	defer close(ch.done)
	logCtx := m.logg.WithChannelID(ctx, ch.id)

	for {
		ch.setState(StateConnecting)
		m.publishChannelCounts()

		conn, err := m.open(ctx, ch)
		if err != nil {
			if ctx.Err() != nil {
				ch.setState(StateClosed)
				m.publishChannelCounts()
				return
			}
			if m.fail(logCtx, ch, err) {
				return
			}
			continue
		}

		ch.connected()
		m.publishChannelCounts()
		m.logg.Info(logCtx, "realtime channel connected")
		if ch.cb.OnConnect != nil {
			ch.cb.OnConnect(ch.id)
		}

		err = m.serve(ctx, ch, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			ch.setState(StateClosed)
			m.publishChannelCounts()
			return
		}
		if m.fail(logCtx, ch, err) {
			return
		}
	}
}

// open runs one connect attempt under the subscribe timeout.
func (m *Manager) open(ctx context.Context, ch *channel) (Conn, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.SubscribeTimeout)
	defer cancel()

	conn, err := m.transport.Open(attemptCtx, ch.interest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeSubscribeTimeout, err, "channel did not connect in time")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeChannelError, err, "open channel")
	}
	return conn, nil
}

// serve pumps data and heartbeats on a connected channel until the transport
// drops it. Heartbeat failures are logged and counted but never force a
// reconnect; only a transport close does.
func (m *Manager) serve(ctx context.Context, ch *channel, conn Conn) error {
	logCtx := m.logg.WithChannelID(ctx, ch.id)
	heartbeat := time.NewTicker(m.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-conn.Receive():
			if !ok {
				return pkgerrors.New(pkgerrors.CodeChannelError, "receive stream ended")
			}
			if ch.cb.OnData != nil {
				ch.cb.OnData(msg)
			}
		case err := <-conn.Closed():
			if err == nil {
				err = errors.New("transport closed channel")
			}
			return pkgerrors.Wrap(pkgerrors.CodeChannelError, err, "channel dropped")
		case <-heartbeat.C:
			if err := conn.Heartbeat(ctx); err != nil {
				m.logg.Error(logCtx, "realtime heartbeat failed", err)
				m.met.IncHeartbeatFailure(ch.interest.Topic())
			}
		}
	}
}

// fail records a channel failure and either schedules the next attempt or,
// once the retry budget is spent, parks the channel in Disconnected. Returns
// true when the channel is done for good.
func (m *Manager) fail(logCtx context.Context, ch *channel, cause error) bool {
	failures := ch.recordFailure(cause)
	m.publishChannelCounts()
	m.logg.Error(logCtx, "realtime channel error", cause)
	if ch.cb.OnError != nil {
		ch.cb.OnError(cause)
	}

	if failures >= m.cfg.MaxRetries {
		ch.setState(StateDisconnected)
		m.publishChannelCounts()
		m.logg.Warn(logCtx, "realtime channel gave up after max retries")
		if ch.cb.OnDisconnect != nil {
			ch.cb.OnDisconnect(ch.id, cause)
		}
		return true
	}

	m.met.IncRetry(ch.interest.Topic())
	delay := m.backoffDelay(failures)
	if err := m.sleep(logCtx, delay); err != nil {
		ch.setState(StateClosed)
		m.publishChannelCounts()
		return true
	}
	return false
}

// backoffDelay is min(base * 2^(failures-1), maxDelay) plus jitter.
func (m *Manager) backoffDelay(failures int) time.Duration {
	delay := m.cfg.RetryBase
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= m.cfg.RetryMaxDelay {
			delay = m.cfg.RetryMaxDelay
			break
		}
	}
	if delay > m.cfg.RetryMaxDelay {
		delay = m.cfg.RetryMaxDelay
	}
	if m.cfg.RetryJitter > 0 {
		delay += time.Duration(jitterSource.Int63n(int64(m.cfg.RetryJitter)))
	}
	return delay
}

func (m *Manager) sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Manager) publishChannelCounts() {
	if m.met == nil {
		return
	}
	counts := map[State]int{}
	m.mu.Lock()
	for _, ch := range m.channels {
		counts[ch.currentState()]++
	}
	m.mu.Unlock()
	for _, state := range []State{StateConnecting, StateConnected, StateError, StateDisconnected} {
		m.met.SetChannelCount(string(state), counts[state])
	}
}

func (c *channel) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *channel) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *channel) connected() {
	c.mu.Lock()
	c.state = StateConnected
	c.retries = 0
	c.lastErr = nil
	c.lastConnected = time.Now().UTC()
	c.mu.Unlock()
}

func (c *channel) recordFailure(err error) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateError
	c.retries++
	c.lastErr = err
	return c.retries
}
