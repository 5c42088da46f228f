package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beefsack/go-rate"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"
)

const (
	DefaultGatewayURL           = "wss://gateway.discord.gg"
	DefaultAPIVersion           = 10
	DefaultHeartbeatMargin      = 2 * time.Second
	DefaultHelloTimeout         = 10 * time.Second
	DefaultMaxResumeAttempts    = 5
	DefaultMaxReconnectAttempts = 10
	DefaultReconnectDelay       = time.Second
	DefaultMaxReconnectDelay    = 2 * time.Minute
)

// Dispatcher receives every dispatch event of a connection, in the order
// the gateway delivered them.
type Dispatcher interface {
	Dispatch(ctx context.Context, name EventName, data json.RawMessage)
}

type DiscordArguments struct {
	BotToken  string
	BotIntent []GatewayIntent

	// GatewayURL defaults to wss://gateway.discord.gg.
	GatewayURL string
	APIVersion int
	// Compress asks Discord to zlib compress dispatch payloads.
	Compress bool
	Presence *UpdatePresence

	// HeartbeatMargin is subtracted from the interval sent in hello. It
	// never takes more than half of the interval.
	HeartbeatMargin      time.Duration
	HelloTimeout         time.Duration
	MaxResumeAttempts    int
	MaxReconnectAttempts int
	// ReconnectDelay is the first backoff step, doubled on every failure.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	Dispatcher Dispatcher
	Dialer     *websocket.Dialer
	Logger     *slog.Logger
}

// connection is one websocket plus the tasks driving it.
type connection struct {
	ws   *websocket.Conn
	wg   conc.WaitGroup
	once sync.Once
	done chan struct{}
	err  error

	writeMu     sync.Mutex
	awaitingAck atomic.Bool
	established atomic.Bool

	// Dispatches waiting for the dispatch task, in receive order.
	queueMu sync.Mutex
	queue   []*RawEvent
	queued  chan struct{}
}

func newConnection(ws *websocket.Conn) *connection {
	return &connection{
		ws:     ws,
		done:   make(chan struct{}),
		queued: make(chan struct{}, 1),
	}
}

func (c *connection) enqueue(e *RawEvent) {
	c.queueMu.Lock()
	c.queue = append(c.queue, e)
	c.queueMu.Unlock()
	select {
	case c.queued <- struct{}{}:
	default:
	}
}

func (c *connection) dequeue() []*RawEvent {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	events := c.queue
	c.queue = nil
	return events
}

// stop ends the connection with err as the reason. Only the first reason
// is kept.
func (c *connection) stop(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
		c.ws.Close()
	})
}

func (c *connection) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

type Gateway struct {
	rwlock   sync.RWMutex
	wsurl    string
	wsConn   *connection
	wsDialer *websocket.Dialer
	session  *Session
	closed   atomic.Bool
	// cancelRun stops the context of the running Run loop.
	cancelRun context.CancelFunc

	// Outbound commands, heartbeats excluded.
	limiter *rate.RateLimiter

	botToken             string
	botIntents           GatewayIntent
	botVersion           int
	compress             bool
	presence             *UpdatePresence
	heartbeatMargin      time.Duration
	helloTimeout         time.Duration
	maxResumeAttempts    int
	maxReconnectAttempts int
	reconnectDelay       time.Duration
	maxReconnectDelay    time.Duration

	dispatcher Dispatcher
	log        *slog.Logger
}

// Gateway.
func NewGateway(args DiscordArguments) *Gateway {
	if args.APIVersion == 0 {
		args.APIVersion = DefaultAPIVersion
	}
	if args.GatewayURL == "" {
		args.GatewayURL = DefaultGatewayURL
	}
	if args.HeartbeatMargin <= 0 {
		args.HeartbeatMargin = DefaultHeartbeatMargin
	}
	if args.HelloTimeout <= 0 {
		args.HelloTimeout = DefaultHelloTimeout
	}
	if args.MaxResumeAttempts <= 0 {
		args.MaxResumeAttempts = DefaultMaxResumeAttempts
	}
	if args.MaxReconnectAttempts <= 0 {
		args.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if args.ReconnectDelay <= 0 {
		args.ReconnectDelay = DefaultReconnectDelay
	}
	if args.MaxReconnectDelay <= 0 {
		args.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if args.Dialer == nil {
		args.Dialer = websocket.DefaultDialer
	}
	if args.Logger == nil {
		args.Logger = slog.Default()
	}

	intents := 0
	for _, v := range args.BotIntent {
		intents |= v
	}

	return &Gateway{
		wsurl:                args.GatewayURL,
		wsDialer:             args.Dialer,
		session:              NewSession(),
		limiter:              NewCommandRateLimiter(),
		botToken:             args.BotToken,
		botIntents:           intents,
		botVersion:           args.APIVersion,
		compress:             args.Compress,
		presence:             args.Presence,
		heartbeatMargin:      args.HeartbeatMargin,
		helloTimeout:         args.HelloTimeout,
		maxResumeAttempts:    args.MaxResumeAttempts,
		maxReconnectAttempts: args.MaxReconnectAttempts,
		reconnectDelay:       args.ReconnectDelay,
		maxReconnectDelay:    args.MaxReconnectDelay,
		dispatcher:           args.Dispatcher,
		log:                  args.Logger,
	}
}

// NewCommandRateLimiter allows 120 commands a minute minus the slots kept
// free for heartbeats.
func NewCommandRateLimiter() *rate.RateLimiter {
	burstSize, duration := 120, 60*time.Second
	burstSize -= 4 // heartbeats within a minute
	burstSize -= 1 // heartbeat requested by discord
	return rate.New(burstSize, duration)
}

func (g *Gateway) Session() *Session {
	return g.session
}

func (g *Gateway) current() *connection {
	g.rwlock.RLock()
	defer g.rwlock.RUnlock()
	return g.wsConn
}

func (g *Gateway) connectURL(resume bool) (string, error) {
	raw := g.wsurl
	if resume && g.session.ResumeGatewayURL() != "" {
		raw = g.session.ResumeGatewayURL()
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.RawQuery = fmt.Sprintf("v=%v&encoding=json", g.botVersion)
	return u.String(), nil
}

// Connect opens a websocket and performs the handshake. The first frame
// must be hello, otherwise ErrHandshake is returned and nothing is started.
// After hello an identify, or a resume when resume is true, is sent and
// the heartbeat and listen tasks start. They end with the connection.
func (g *Gateway) Connect(ctx context.Context, resume bool) error {
	if c := g.current(); c != nil {
		select {
		case <-c.done:
		default:
			return ErrGatewayIsAlreadyOpen
		}
	}
	if resume && !g.session.CanResume() {
		resume = false
	}
	if resume {
		g.session.SetState(StateResuming)
	} else {
		g.session.SetState(StateIdentifying)
	}

	wsurl, err := g.connectURL(resume)
	if err != nil {
		g.session.SetState(StateDisconnected)
		return err
	}
	g.log.Info("connecting to discord...", "url", wsurl, "resume", resume)
	ws, _, err := g.wsDialer.DialContext(ctx, wsurl, nil)
	if err != nil {
		g.session.SetState(StateDisconnected)
		return fmt.Errorf("failed to dial gateway: %w", err)
	}

	interval, err := g.readHello(ctx, ws)
	if err != nil {
		ws.Close()
		g.session.SetState(StateDisconnected)
		return err
	}
	g.session.SetHeartbeatInterval(interval)

	c := newConnection(ws)
	g.rwlock.Lock()
	g.wsConn = c
	g.rwlock.Unlock()

	if resume {
		err = g.sendResume(ctx, c)
	} else {
		g.session.Reset()
		err = g.sendIdentify(ctx, c)
	}
	if err != nil {
		c.stop(err)
		g.session.SetState(StateDisconnected)
		return err
	}

	period := heartbeatPeriod(interval, g.heartbeatMargin)
	c.wg.Go(func() { g.heartbeating(ctx, c, period) })
	c.wg.Go(func() { g.listen(ctx, c) })
	if g.dispatcher != nil {
		c.wg.Go(func() { g.dispatching(ctx, c) })
	}
	return nil
}

func (g *Gateway) readHello(ctx context.Context, ws *websocket.Conn) (time.Duration, error) {
	deadline := time.Now().Add(g.helloTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ws.SetReadDeadline(deadline)
	defer ws.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	messageType, message, err := ws.ReadMessage()
	if err != nil {
		if ce := asCloseError(err); ce != nil {
			return 0, fmt.Errorf("%w: %w", ErrHandshake, ce)
		}
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %w", ErrHandshake, ctx.Err())
		}
		return 0, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	e, err := decodeEvent(messageType, message)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if e.Op != OpcodeHello {
		return 0, fmt.Errorf("%w: got opcode %d", ErrHandshake, e.Op)
	}
	hello := HelloEvent{}
	if err := codec.Unmarshal(e.D, &hello); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if hello.HeartbeatInterval <= 0 {
		return 0, fmt.Errorf("%w: heartbeat interval %d", ErrHandshake, hello.HeartbeatInterval)
	}
	return time.Duration(hello.HeartbeatInterval) * time.Millisecond, nil
}

func heartbeatPeriod(interval, margin time.Duration) time.Duration {
	if margin > interval/2 {
		margin = interval / 2
	}
	return interval - margin
}

func (g *Gateway) sendIdentify(ctx context.Context, c *connection) error {
	identify := IdentifyEvent{
		Token:    g.botToken,
		Intents:  g.botIntents,
		Compress: g.compress,
		Presence: g.presence,
		Properties: IdentifyEventProperties{
			Os:      runtime.GOOS,
			Browser: "splash",
			Device:  "splash",
		},
	}
	if err := g.sendCommand(ctx, c, OpcodeIdentify, identify); err != nil {
		return fmt.Errorf("failed to send identify event: %w", err)
	}
	g.log.Info("identify event sent")
	return nil
}

func (g *Gateway) sendResume(ctx context.Context, c *connection) error {
	seq, _ := g.session.Sequence()
	resume := ResumeEvent{
		Token:     g.botToken,
		SessionID: g.session.ID(),
		Seq:       seq,
	}
	if err := g.sendCommand(ctx, c, OpcodeResume, resume); err != nil {
		return fmt.Errorf("failed to send resume event: %w", err)
	}
	g.log.Info("resume event sent", "session_id", resume.SessionID, "sequence", seq)
	return nil
}

// UpdatePresence changes the bot status on the live connection.
func (g *Gateway) UpdatePresence(ctx context.Context, presence UpdatePresence) error {
	c := g.current()
	if c == nil || g.session.State() != StateConnected {
		return ErrGatewayNotConnected
	}
	return g.sendCommand(ctx, c, OpcodePresenceUpdate, presence)
}

// sendCommand waits for an outbound slot, then writes the frame.
func (g *Gateway) sendCommand(ctx context.Context, c *connection, op GatewayOpcode, d any) error {
	for {
		ok, wait := g.limiter.Try()
		if ok {
			break
		}
		g.log.Warn("gateway command rate limited", "op_code", op, "wait", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrGatewayNotConnected
		case <-time.After(wait):
		}
	}
	data, err := encodeEvent(op, d)
	if err != nil {
		return err
	}
	return c.write(data)
}

func (g *Gateway) heartbeat(c *connection) error {
	var d any
	if seq, ok := g.session.Sequence(); ok {
		d = seq
	}
	data, err := encodeEvent(OpcodeHeartbeat, d)
	if err != nil {
		return err
	}
	c.awaitingAck.Store(true)
	return c.write(data)
}

func (g *Gateway) heartbeating(ctx context.Context, c *connection, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.stop(ctx.Err())
			return
		case <-c.done:
			g.log.Debug("gateway heartbeating process stopped")
			return
		case <-ticker.C:
			if c.awaitingAck.Load() {
				g.log.Warn("gateway heartbeat was not acknowledged, dropping connection")
				c.stop(ErrZombieConnection)
				return
			}
			if err := g.heartbeat(c); err != nil {
				c.stop(err)
				return
			}
			g.log.Debug("gateway heartbeat event sent")
		}
	}
}

func (g *Gateway) listen(ctx context.Context, c *connection) {
	for {
		if g.current() != c {
			// A newer connection took over.
			c.stop(ErrGatewayClosed)
			return
		}
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if ce := asCloseError(err); ce != nil {
				err = ce
			}
			c.stop(err)
			return
		}
		if err := g.acceptEvent(ctx, c, messageType, message); err != nil {
			c.stop(err)
			return
		}
	}
}

func (g *Gateway) acceptEvent(ctx context.Context, c *connection, messageType int, message []byte) error {
	e, err := decodeEvent(messageType, message)
	if err != nil {
		g.log.Error("failed to decode gateway event", "error", err)
		return nil
	}

	switch e.Op {
	case OpcodeDispatch:
		g.onEvent(ctx, c, e)
	case OpcodeHeartbeat:
		if err := g.heartbeat(c); err != nil {
			return err
		}
	case OpcodeHeartbeatAck:
		c.awaitingAck.Store(false)
		g.log.Debug("gateway heartbeat acknowledged")
	case OpcodeReconnect:
		g.log.Info("gateway requested reconnect")
		return ErrReconnectRequested
	case OpcodeInvalidSession:
		resumable := false
		codec.Unmarshal(e.D, &resumable)
		g.log.Warn("gateway session invalidated", "resumable", resumable)
		if resumable {
			return ErrInvalidSessionResumable
		}
		return ErrInvalidSession
	default:
		g.log.Debug("unhandled gateway opcode", "op_code", e.Op)
	}
	return nil
}

func (g *Gateway) onEvent(ctx context.Context, c *connection, e *RawEvent) {
	if e.S != nil {
		if !g.session.UpdateSequence(*e.S) {
			current, _ := g.session.Sequence()
			g.log.Warn("out of order sequence", "sequence", *e.S, "current", current, "event_name", e.T)
		}
	}

	switch e.T {
	case EventReady:
		ready := ReadyEvent{}
		if err := codec.Unmarshal(e.D, &ready); err != nil {
			g.log.Error("failed to decode ready event", "error", err)
			break
		}
		g.session.SetReady(ready.SessionID, ready.ResumeGatewayURL)
		g.session.SetState(StateConnected)
		c.established.Store(true)
		g.log.Info("gateway is ready", "session_id", ready.SessionID, "user", ready.User.String())
	case EventResumed:
		g.session.SetState(StateConnected)
		c.established.Store(true)
		g.log.Info("gateway session resumed")
	}

	if g.dispatcher != nil {
		c.enqueue(e)
	}
}

// dispatching hands queued events to the dispatcher one at a time, in
// receive order. Events received before the connection ended are still
// delivered.
func (g *Gateway) dispatching(ctx context.Context, c *connection) {
	for {
		select {
		case <-c.queued:
			for _, e := range c.dequeue() {
				g.dispatcher.Dispatch(ctx, e.T, e.D)
			}
		case <-c.done:
			for _, e := range c.dequeue() {
				g.dispatcher.Dispatch(ctx, e.T, e.D)
			}
			g.log.Debug("gateway dispatching process stopped")
			return
		}
	}
}

// Run keeps the gateway connected until ctx is done or Close is called.
// Failed connections are resumed with exponential backoff. After
// MaxResumeAttempts failed resumes a fresh identify is sent instead, and
// after MaxReconnectAttempts failures in a row Run gives up. The counters
// reset whenever READY or RESUMED arrives. Fatal close codes end Run
// immediately.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.rwlock.Lock()
	g.cancelRun = cancel
	g.rwlock.Unlock()
	defer func() {
		g.rwlock.Lock()
		g.cancelRun = nil
		g.rwlock.Unlock()
	}()

	g.closed.Store(false)
	resume := false
	failures := 0
	resumeAttempts := 0
	for {
		err := g.Connect(ctx, resume)
		if err == nil {
			c := g.current()
			select {
			case <-ctx.Done():
				g.Close()
			case <-c.done:
			}
			c.wg.Wait()
			err = c.err
			if c.established.Load() {
				failures = 0
				resumeAttempts = 0
			}
		}
		if ctx.Err() != nil || g.closed.Load() {
			g.session.SetState(StateDisconnected)
			return nil
		}

		action := reconnectAction(err)
		if action == actionFatal {
			g.session.SetState(StateDisconnected)
			g.log.Error("gateway closed with a fatal error", "error", err)
			return err
		}

		failures++
		if failures > g.maxReconnectAttempts {
			g.session.SetState(StateDisconnected)
			return fmt.Errorf("%w: %v", ErrReconnectAttemptsExceeded, err)
		}

		resume = action == actionResume && g.session.CanResume()
		if resume {
			resumeAttempts++
			if resumeAttempts > g.maxResumeAttempts {
				g.log.Warn("resume failed too many times, identifying", "attempts", resumeAttempts-1)
				resume = false
			}
		}
		if !resume {
			resumeAttempts = 0
		}

		delay := g.backoff(failures)
		g.log.Warn("gateway connection lost, reconnecting", "error", err, "resume", resume, "attempt", failures, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			g.session.SetState(StateDisconnected)
			return nil
		}
		if g.closed.Load() {
			g.session.SetState(StateDisconnected)
			return nil
		}
	}
}

func (g *Gateway) backoff(attempts int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempts-1)) * float64(g.reconnectDelay))
	if delay > g.maxReconnectDelay || delay <= 0 {
		return g.maxReconnectDelay
	}
	return delay
}

// Close sends a normal close frame and stops the running connection. A
// running Run loop returns instead of reconnecting, also while it waits
// out a backoff or dials. Close does not wait for the connection tasks.
func (g *Gateway) Close() error {
	g.closed.Store(true)
	defer g.stopRun()
	c := g.current()
	if c == nil {
		return nil
	}
	var err error
	select {
	case <-c.done:
	default:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		err = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	c.stop(ErrGatewayClosed)
	g.session.SetState(StateDisconnected)
	g.log.Info("gateway connection stopped.")
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

func (g *Gateway) stopRun() {
	g.rwlock.RLock()
	cancel := g.cancelRun
	g.rwlock.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func asCloseError(err error) *CloseError {
	var wsErr *websocket.CloseError
	if errors.As(err, &wsErr) {
		return newCloseError(wsErr.Code, wsErr.Text)
	}
	return nil
}
