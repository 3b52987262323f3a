package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neuroforge/trainlink/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the connection lifecycle phase, owned exclusively by the
// Client.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
)

// connectAttempt is one in-flight dial shared by every caller that
// joins while it is running.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// Client owns one logical connection to a training backend. It exposes
// correlated request/reply operations and an event stream, and manages
// reconnection and liveness behind them.
type Client struct {
	cfg  Config
	dial DialFunc
	log  zerolog.Logger

	mu             sync.Mutex
	state          State
	transport      Transport
	epoch          int
	attempt        *connectAttempt
	reconnects     int
	reconnectTimer *time.Timer
	pingStop       chan struct{}
	userClosed     bool

	pending *pendingSet
	bus     *eventBus
}

// Stats is a point-in-time snapshot for operator surfaces.
type Stats struct {
	State             State
	ReconnectAttempts int
	Pending           []PendingInfo
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("component", "session").Logger()
	return &Client{
		cfg:     cfg,
		dial:    DialWebSocket,
		log:     logger,
		state:   StateIdle,
		pending: newPendingSet(),
		bus:     newEventBus(cfg.EventBuffer, logger),
	}, nil
}

// Connect brings the link up. Calling while open is a no-op; calling
// while a connect is in flight joins that attempt rather than dialing
// a second transport.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateOpen:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		att := c.attempt
		c.mu.Unlock()
		select {
		case <-att.done:
			return att.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	att := &connectAttempt{done: make(chan struct{})}
	c.attempt = att
	c.state = StateConnecting
	c.userClosed = false
	c.mu.Unlock()

	t, err := c.dial(ctx, c.cfg)

	c.mu.Lock()
	if err != nil {
		c.state = StateIdle
		c.attempt = nil
		att.err = &TransportError{Op: "dial", Err: err}
		close(att.done)
		c.mu.Unlock()
		return att.err
	}
	// Close may have won while the dial was in flight; the client stays
	// closed and the fresh transport is discarded.
	if c.userClosed || c.state == StateClosing || c.state == StateClosed {
		c.state = StateClosed
		c.attempt = nil
		att.err = ErrClientClosed
		close(att.done)
		c.mu.Unlock()
		_ = t.Close()
		return att.err
	}
	c.transport = t
	c.state = StateOpen
	c.reconnects = 0
	c.epoch++
	epoch := c.epoch
	c.attempt = nil
	c.startPingLocked()
	close(att.done)
	c.mu.Unlock()

	go c.readLoop(t, epoch)
	c.log.Info().Str("endpoint", c.cfg.URL()).Msg("session open")
	c.bus.publish(Event{Kind: EventConnected})
	return nil
}

// Close sends a best-effort acknowledged close command, then tears the
// transport down. Outstanding requests are not rejected; each runs out
// its own timeout.
func (c *Client) Close(ctx context.Context, reason string) error {
	if reason == "" {
		reason = "user_terminated"
	}
	c.mu.Lock()
	c.userClosed = true
	c.clearReconnectLocked()
	if c.state != StateOpen {
		c.stopPingLocked()
		c.closeTransportLocked()
		c.state = StateClosed
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	t := c.transport
	c.mu.Unlock()

	if _, err := c.roundTrip(ctx, t, protocol.CommandClose, protocol.CloseCommand{Reason: reason}); err != nil {
		c.log.Debug().Err(err).Msg("close command not acknowledged")
	}

	c.mu.Lock()
	c.stopPingLocked()
	c.closeTransportLocked()
	c.state = StateClosed
	c.mu.Unlock()
	c.log.Info().Str("reason", reason).Msg("session closed")
	return nil
}

// InitModel registers a model definition with the backend. The
// definition passes through opaquely.
func (c *Client) InitModel(ctx context.Context, model protocol.ModelDefinition) (protocol.InitResult, error) {
	var out protocol.InitResult
	data, err := c.do(ctx, protocol.CommandInit, protocol.InitCommand{Model: model})
	if err != nil {
		return out, err
	}
	return out, decodeResult(protocol.CommandInit, data, &out)
}

// TrainModel runs one training invocation and blocks until the
// terminal response. Intermediate progress arrives on the event
// stream. A non-positive validationSplit falls back to 0.2.
func (c *Client) TrainModel(ctx context.Context, modelID string, epochs int, datasetID string, validationSplit float64) (protocol.TrainResult, error) {
	if validationSplit <= 0 {
		validationSplit = 0.2
	}
	var out protocol.TrainResult
	data, err := c.do(ctx, protocol.CommandTrain, protocol.TrainCommand{
		ModelID:         modelID,
		Epochs:          epochs,
		DatasetID:       datasetID,
		ValidationSplit: validationSplit,
	})
	if err != nil {
		return out, err
	}
	return out, decodeResult(protocol.CommandTrain, data, &out)
}

// QueryLayer inspects one layer of a registered model.
func (c *Client) QueryLayer(ctx context.Context, modelID, layerID string, queryType protocol.QueryType) (protocol.QueryResult, error) {
	var out protocol.QueryResult
	data, err := c.do(ctx, protocol.CommandQuery, protocol.QueryCommand{
		ModelID:   modelID,
		LayerID:   layerID,
		QueryType: queryType,
	})
	if err != nil {
		return out, err
	}
	return out, decodeResult(protocol.CommandQuery, data, &out)
}

// Ping round-trips a liveness probe and returns the raw reply payload.
func (c *Client) Ping(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, protocol.CommandPing, nil)
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateOpen
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Stats() Stats {
	c.mu.Lock()
	state := c.state
	reconnects := c.reconnects
	c.mu.Unlock()
	return Stats{
		State:             state,
		ReconnectAttempts: reconnects,
		Pending:           c.pending.list(),
	}
}

// Subscribe registers a listener for the given event kinds; no kinds
// means every kind. The subscription is released with Close.
func (c *Client) Subscribe(kinds ...EventKind) *Subscription {
	return c.bus.subscribe(kinds...)
}

// do runs one correlated command: ensure the link is open, register a
// pending request under a fresh requestId, write, wait.
func (c *Client) do(ctx context.Context, cmd protocol.CommandType, payload any) (json.RawMessage, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return nil, ErrNotConnected
	}
	return c.roundTrip(ctx, t, cmd, payload)
}

func (c *Client) roundTrip(ctx context.Context, t Transport, cmd protocol.CommandType, payload any) (json.RawMessage, error) {
	requestID := uuid.NewString()
	env, err := protocol.NewCommand(cmd, payload, requestID)
	if err != nil {
		return nil, err
	}
	raw, err := env.Encode()
	if err != nil {
		return nil, err
	}

	pr := c.pending.add(requestID, cmd)
	if err := t.WriteMessage(raw); err != nil {
		c.pending.remove(requestID)
		return nil, &TransportError{Op: "write", Err: err}
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case out := <-pr.done:
		return out.data, out.err
	case <-timer.C:
		c.pending.remove(requestID)
		return nil, &TimeoutError{Command: cmd, After: c.cfg.RequestTimeout}
	case <-ctx.Done():
		c.pending.remove(requestID)
		return nil, ctx.Err()
	}
}

func (c *Client) readLoop(t Transport, epoch int) {
	for {
		raw, err := t.ReadMessage()
		if err != nil {
			c.handleDisconnect(epoch, err)
			return
		}
		env, derr := protocol.Decode(raw)
		if derr != nil {
			c.log.Warn().Err(derr).Msg("dropping malformed frame")
			c.bus.publish(Event{Kind: EventError, Err: derr})
			continue
		}
		c.handleEnvelope(env)
	}
}

// handleEnvelope applies the dispatch contract: a response matching a
// pending request resolves it, first-match-wins; anything unmatched is
// a generic message event; every train response additionally fans out
// as a progress or completion event.
func (c *Client) handleEnvelope(env protocol.Envelope) {
	resolved := false
	if env.MessageType == protocol.MessageResponse && env.RequestID != "" {
		resolved = c.pending.resolve(env)
	}
	if !resolved {
		c.bus.publish(Event{Kind: EventMessage, Command: env.CommandType, Payload: env.Data})
	}

	if env.MessageType == protocol.MessageResponse && env.CommandType == protocol.CommandTrain {
		if probe, ok := protocol.ProbeStatus(env.Data); ok {
			switch probe.Status {
			case protocol.StatusInProgress:
				c.bus.publish(Event{Kind: EventTrainProgress, Command: env.CommandType, Payload: env.Data})
			case protocol.StatusCompleted:
				c.bus.publish(Event{Kind: EventTrainCompleted, Command: env.CommandType, Payload: env.Data})
			}
		}
	}
}

func (c *Client) handleDisconnect(epoch int, cause error) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.stopPingLocked()
	c.closeTransportLocked()
	userClosed := c.userClosed || c.state == StateClosing || c.state == StateClosed
	if userClosed {
		c.state = StateClosed
	} else {
		c.state = StateIdle
	}
	c.mu.Unlock()

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	c.log.Warn().Str("reason", reason).Bool("user_closed", userClosed).Msg("session dropped")
	c.bus.publish(Event{Kind: EventDisconnected, Reason: reason})
	if !userClosed {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms the single reconnect timer for the next
// attempt. The counter increments before the delay is computed; the
// schedule stops silently once the attempt cap is reached.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.userClosed || c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.clearReconnectLocked()
	if c.reconnects >= c.cfg.MaxReconnectAttempts {
		attempts := c.reconnects
		c.mu.Unlock()
		c.log.Warn().Int("attempts", attempts).Msg("reconnect attempts exhausted")
		return
	}
	c.reconnects++
	attempt := c.reconnects
	delay := NextBackoffDelay(c.cfg.ReconnectBase, attempt)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		c.mu.Unlock()
		if err := c.Connect(context.Background()); err != nil {
			c.bus.publish(Event{Kind: EventError, Err: err})
			c.scheduleReconnect()
		}
	})
	c.mu.Unlock()
	c.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnect scheduled")
}

// startPingLocked replaces any running prober with a fresh one. A
// failed probe is observed, never a disconnect trigger.
func (c *Client) startPingLocked() {
	c.stopPingLocked()
	stop := make(chan struct{})
	c.pingStop = stop
	interval := c.cfg.PingInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
				_, err := c.probe(ctx)
				cancel()
				if err != nil {
					c.log.Warn().Err(err).Msg("liveness probe failed")
					c.bus.publish(Event{Kind: EventError, Err: err})
				}
			}
		}
	}()
}

func (c *Client) probe(ctx context.Context) (json.RawMessage, error) {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return nil, ErrNotConnected
	}
	return c.roundTrip(ctx, t, protocol.CommandPing, nil)
}

func (c *Client) stopPingLocked() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}

func (c *Client) clearReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) closeTransportLocked() {
	if c.transport != nil {
		_ = c.transport.Close()
		c.transport = nil
	}
}

func decodeResult(cmd protocol.CommandType, data json.RawMessage, out any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("session: decode %s result: %w", cmd, err)
	}
	return nil
}
