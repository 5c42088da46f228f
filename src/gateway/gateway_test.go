package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type dispatched struct {
	name EventName
	data json.RawMessage
}

type recordingDispatcher struct {
	events chan dispatched
	// slow events block for delay before they are recorded.
	slow  EventName
	delay time.Duration
}

func (d *recordingDispatcher) Dispatch(_ context.Context, name EventName, data json.RawMessage) {
	if name == d.slow {
		time.Sleep(d.delay)
	}
	d.events <- dispatched{name: name, data: data}
}

// fakeConn is the server side of one client connection.
type fakeConn struct {
	s  *GatewayTestSuite
	ws *websocket.Conn
}

func (c *fakeConn) send(op GatewayOpcode, t EventName, seq int64, d any) {
	frame := map[string]any{"op": op, "d": d}
	if t != "" {
		frame["t"] = t
		frame["s"] = seq
	}
	c.s.Require().NoError(c.ws.WriteJSON(frame))
}

func (c *fakeConn) hello(interval time.Duration) {
	c.send(OpcodeHello, "", 0, map[string]any{"heartbeat_interval": interval.Milliseconds()})
}

func (c *fakeConn) ready(sessionID string) {
	c.send(OpcodeDispatch, EventReady, 1, map[string]any{
		"v":                  10,
		"session_id":         sessionID,
		"resume_gateway_url": c.s.wsURL(),
		"user":               map[string]any{"id": "1", "username": "splash", "discriminator": "0"},
		"application":        map[string]any{"id": "2"},
	})
}

// read returns the next client frame, acking heartbeats it skips when
// op is not a heartbeat.
func (c *fakeConn) read(op GatewayOpcode) *RawEvent {
	for {
		c.ws.SetReadDeadline(time.Now().Add(3 * time.Second))
		mt, msg, err := c.ws.ReadMessage()
		c.s.Require().NoError(err)
		e, err := decodeEvent(mt, msg)
		c.s.Require().NoError(err)
		if e.Op == OpcodeHeartbeat && op != OpcodeHeartbeat {
			c.send(OpcodeHeartbeatAck, "", 0, nil)
			continue
		}
		c.s.Require().Equal(op, e.Op)
		return e
	}
}

// drop closes the socket without a close frame.
func (c *fakeConn) drop() {
	c.ws.UnderlyingConn().Close()
}

type GatewayTestSuite struct {
	suite.Suite
	server     *httptest.Server
	conns      chan *websocket.Conn
	open       []*websocket.Conn
	mu         sync.Mutex
	dispatcher *recordingDispatcher
	gateway    *Gateway
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewayTestSuite))
}

func (s *GatewayTestSuite) SetupTest() {
	s.conns = make(chan *websocket.Conn, 8)
	s.open = nil
	upgrader := websocket.Upgrader{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.open = append(s.open, ws)
		s.mu.Unlock()
		s.conns <- ws
	}))
	s.gateway, s.dispatcher = s.newGateway(DiscordArguments{})
}

func (s *GatewayTestSuite) TearDownTest() {
	s.gateway.Close()
	s.mu.Lock()
	for _, ws := range s.open {
		ws.Close()
	}
	s.mu.Unlock()
	s.server.Close()
}

func (s *GatewayTestSuite) wsURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *GatewayTestSuite) newGateway(args DiscordArguments) (*Gateway, *recordingDispatcher) {
	d := &recordingDispatcher{events: make(chan dispatched, 32)}
	args.BotToken = "token"
	args.GatewayURL = s.wsURL()
	args.Dispatcher = d
	if args.ReconnectDelay == 0 {
		args.ReconnectDelay = 10 * time.Millisecond
	}
	if args.HelloTimeout == 0 {
		args.HelloTimeout = 2 * time.Second
	}
	return NewGateway(args), d
}

func (s *GatewayTestSuite) accept() *fakeConn {
	select {
	case ws := <-s.conns:
		return &fakeConn{s: s, ws: ws}
	case <-time.After(3 * time.Second):
		s.FailNow("client did not connect")
		return nil
	}
}

func (s *GatewayTestSuite) nextEvent() dispatched {
	select {
	case e := <-s.dispatcher.events:
		return e
	case <-time.After(3 * time.Second):
		s.FailNow("no event dispatched")
		return dispatched{}
	}
}

// connect runs Connect against a server that answers with hello.
func (s *GatewayTestSuite) connect(interval time.Duration) *fakeConn {
	errs := make(chan error, 1)
	go func() { errs <- s.gateway.Connect(context.Background(), false) }()
	c := s.accept()
	c.hello(interval)
	s.Require().NoError(<-errs)
	return c
}

func (s *GatewayTestSuite) TestConnectSendsIdentifyAfterHello() {
	// Setup
	s.gateway, s.dispatcher = s.newGateway(DiscordArguments{
		BotIntent: []GatewayIntent{GuildsIntent, GuildMessagesIntent},
		Compress:  true,
	})

	// Execute
	c := s.connect(45 * time.Second)
	e := c.read(OpcodeIdentify)

	// Assert
	identify := IdentifyEvent{}
	s.Require().NoError(json.Unmarshal(e.D, &identify))
	s.Equal("token", identify.Token)
	s.Equal(GuildsIntent|GuildMessagesIntent, identify.Intents)
	s.True(identify.Compress)
	s.Equal("splash", identify.Properties.Browser)
	s.Equal(45*time.Second, s.gateway.Session().HeartbeatInterval())
	s.Equal(StateIdentifying, s.gateway.Session().State())
}

func (s *GatewayTestSuite) TestConnectFailsWithoutHello() {
	// Setup
	errs := make(chan error, 1)
	go func() { errs <- s.gateway.Connect(context.Background(), false) }()
	c := s.accept()

	// Execute
	c.send(OpcodeHeartbeatAck, "", 0, nil)
	err := <-errs

	// Assert
	s.ErrorIs(err, ErrHandshake)
	s.Equal(StateDisconnected, s.gateway.Session().State())
	s.Nil(s.gateway.current())
	// No identify and no heartbeat follow a failed handshake.
	c.ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, readErr := c.ws.ReadMessage()
	s.Error(readErr)
}

func (s *GatewayTestSuite) TestConnectTwiceIsRejected() {
	c := s.connect(45 * time.Second)
	c.read(OpcodeIdentify)

	s.ErrorIs(s.gateway.Connect(context.Background(), false), ErrGatewayIsAlreadyOpen)
}

func (s *GatewayTestSuite) TestHeartbeatsWithinInterval() {
	// Setup
	interval := 200 * time.Millisecond
	c := s.connect(interval)
	c.read(OpcodeIdentify)

	// Execute
	var beats []time.Time
	for i := 0; i < 3; i++ {
		c.read(OpcodeHeartbeat)
		beats = append(beats, time.Now())
		c.send(OpcodeHeartbeatAck, "", 0, nil)
	}

	// Assert
	for i := 1; i < len(beats); i++ {
		s.LessOrEqual(beats[i].Sub(beats[i-1]), interval+50*time.Millisecond)
	}
}

func (s *GatewayTestSuite) TestHeartbeatCarriesLastSequence() {
	// Setup
	c := s.connect(200 * time.Millisecond)
	c.read(OpcodeIdentify)
	c.send(OpcodeDispatch, "MESSAGE_CREATE", 42, map[string]any{})
	s.nextEvent()

	// Execute
	found := false
	for i := 0; i < 5 && !found; i++ {
		e := c.read(OpcodeHeartbeat)
		c.send(OpcodeHeartbeatAck, "", 0, nil)
		found = string(e.D) == "42"
	}

	// Assert
	s.True(found)
}

func (s *GatewayTestSuite) TestServerRequestedHeartbeat() {
	c := s.connect(45 * time.Second)
	c.read(OpcodeIdentify)

	c.send(OpcodeHeartbeat, "", 0, nil)
	e := c.read(OpcodeHeartbeat)

	// No dispatch yet, so the sequence is null.
	s.True(len(e.D) == 0 || string(e.D) == "null")
}

func (s *GatewayTestSuite) TestSequenceIsMonotonic() {
	// Setup
	c := s.connect(45 * time.Second)
	c.read(OpcodeIdentify)

	// Execute
	for _, seq := range []int64{1, 3, 2} {
		c.send(OpcodeDispatch, "MESSAGE_CREATE", seq, map[string]any{})
	}
	for i := 0; i < 3; i++ {
		s.nextEvent()
	}

	// Assert
	seq, ok := s.gateway.Session().Sequence()
	s.True(ok)
	s.Equal(int64(3), seq)

	c.send(OpcodeDispatch, "MESSAGE_CREATE", 5, map[string]any{})
	s.nextEvent()
	seq, _ = s.gateway.Session().Sequence()
	s.Equal(int64(5), seq)
}

func (s *GatewayTestSuite) TestConnectFailsOnCloseBeforeHello() {
	// Setup
	errs := make(chan error, 1)
	go func() { errs <- s.gateway.Connect(context.Background(), false) }()
	c := s.accept()

	// Execute
	msg := websocket.FormatCloseMessage(AuthenticationFailed, "Authentication failed.")
	s.Require().NoError(c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	err := <-errs

	// Assert
	s.ErrorIs(err, ErrHandshake)
	s.ErrorIs(err, ErrAuthenticationFailed)
	var ce *CloseError
	s.Require().ErrorAs(err, &ce)
	s.Equal(AuthenticationFailed, ce.Code)
	s.Equal(StateDisconnected, s.gateway.Session().State())
}

func (s *GatewayTestSuite) TestSlowHandlerKeepsConnectionAlive() {
	// Setup
	s.dispatcher.slow = "MESSAGE_CREATE"
	s.dispatcher.delay = 600 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := s.run(ctx)
	c := s.accept()
	c.hello(200 * time.Millisecond)
	c.read(OpcodeIdentify)
	c.ready("abc")
	s.nextEvent()

	// Execute
	c.send(OpcodeDispatch, "MESSAGE_CREATE", 2, map[string]any{})
	beats := 0
	for deadline := time.Now().Add(time.Second); time.Now().Before(deadline); beats++ {
		c.read(OpcodeHeartbeat)
		c.send(OpcodeHeartbeatAck, "", 0, nil)
	}

	// Assert
	s.Equal("MESSAGE_CREATE", s.nextEvent().name)
	s.GreaterOrEqual(beats, 3)
	s.Equal(StateConnected, s.gateway.Session().State())
	select {
	case <-s.conns:
		s.Fail("gateway reconnected while a handler was running")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	s.NoError(s.waitRun(errs))
}

func (s *GatewayTestSuite) TestEventsKeepOrderBehindSlowHandler() {
	// Setup
	s.dispatcher.slow = "MESSAGE_CREATE"
	s.dispatcher.delay = 200 * time.Millisecond
	c := s.connect(45 * time.Second)
	c.read(OpcodeIdentify)

	// Execute
	c.send(OpcodeDispatch, "MESSAGE_CREATE", 1, map[string]any{})
	c.send(OpcodeDispatch, "TYPING_START", 2, map[string]any{})
	c.send(OpcodeDispatch, "MESSAGE_DELETE", 3, map[string]any{})

	// Assert
	s.Equal("MESSAGE_CREATE", s.nextEvent().name)
	s.Equal("TYPING_START", s.nextEvent().name)
	s.Equal("MESSAGE_DELETE", s.nextEvent().name)
}

func (s *GatewayTestSuite) TestUnknownEventsKeepListening() {
	// Setup
	c := s.connect(45 * time.Second)
	c.read(OpcodeIdentify)

	// Execute
	c.send(OpcodeDispatch, "SOMETHING_NEW", 1, map[string]any{"x": 1})
	c.send(42, "", 0, nil)
	c.send(OpcodeDispatch, EventInteractionCreate, 2, map[string]any{"data": map[string]any{"name": "say"}})

	// Assert
	s.Equal("SOMETHING_NEW", s.nextEvent().name)
	e := s.nextEvent()
	s.Equal(EventInteractionCreate, e.name)
	s.JSONEq(`{"data":{"name":"say"}}`, string(e.data))
}

func (s *GatewayTestSuite) TestReadyStoresSession() {
	// Setup
	c := s.connect(45 * time.Second)
	c.read(OpcodeIdentify)

	// Execute
	c.ready("abc")
	e := s.nextEvent()

	// Assert
	s.Equal(EventReady, e.name)
	s.Equal("abc", s.gateway.Session().ID())
	s.Equal(s.wsURL(), s.gateway.Session().ResumeGatewayURL())
	s.Equal(StateConnected, s.gateway.Session().State())
	s.True(s.gateway.Session().CanResume())
}

func (s *GatewayTestSuite) TestUpdatePresence() {
	// Setup
	s.ErrorIs(s.gateway.UpdatePresence(context.Background(), UpdatePresence{}), ErrGatewayNotConnected)
	c := s.connect(45 * time.Second)
	c.read(OpcodeIdentify)
	c.ready("abc")
	s.nextEvent()

	// Execute
	err := s.gateway.UpdatePresence(context.Background(), UpdatePresence{
		Status:     StatusIdle,
		Activities: []Activity{{Name: "with slash commands", Type: ActivityTypeGame}},
	})

	// Assert
	s.Require().NoError(err)
	e := c.read(OpcodePresenceUpdate)
	presence := UpdatePresence{}
	s.Require().NoError(json.Unmarshal(e.D, &presence))
	s.Equal(StatusIdle, presence.Status)
	s.Equal("with slash commands", presence.Activities[0].Name)
}

func (s *GatewayTestSuite) run(ctx context.Context) chan error {
	errs := make(chan error, 1)
	go func() { errs <- s.gateway.Run(ctx) }()
	return errs
}

func (s *GatewayTestSuite) waitRun(errs chan error) error {
	select {
	case err := <-errs:
		return err
	case <-time.After(3 * time.Second):
		s.FailNow("run did not return")
		return nil
	}
}

func (s *GatewayTestSuite) TestRunResumesAfterAbnormalClose() {
	// Setup
	ctx, cancel := context.WithCancel(context.Background())
	errs := s.run(ctx)
	c := s.accept()
	c.hello(45 * time.Second)
	c.read(OpcodeIdentify)
	c.ready("abc")
	c.send(OpcodeDispatch, "MESSAGE_CREATE", 7, map[string]any{})
	s.nextEvent()
	s.nextEvent()

	// Execute
	c.drop()
	c2 := s.accept()
	c2.hello(45 * time.Second)
	e := c2.read(OpcodeResume)

	// Assert
	resume := ResumeEvent{}
	s.Require().NoError(json.Unmarshal(e.D, &resume))
	s.Equal("abc", resume.SessionID)
	s.Equal(int64(7), resume.Seq)
	s.Equal("token", resume.Token)

	c2.send(OpcodeDispatch, EventResumed, 8, map[string]any{})
	s.Equal(EventResumed, s.nextEvent().name)
	s.Equal(StateConnected, s.gateway.Session().State())

	cancel()
	s.NoError(s.waitRun(errs))
	s.Equal(StateDisconnected, s.gateway.Session().State())
}

func (s *GatewayTestSuite) TestRunFallsBackToIdentify() {
	// Setup
	s.gateway, s.dispatcher = s.newGateway(DiscordArguments{MaxResumeAttempts: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := s.run(ctx)
	c := s.accept()
	c.hello(45 * time.Second)
	c.read(OpcodeIdentify)
	c.ready("abc")
	s.nextEvent()

	// Execute
	c.drop()
	c2 := s.accept()
	c2.hello(45 * time.Second)
	c2.read(OpcodeResume)
	c2.drop()
	c3 := s.accept()
	c3.hello(45 * time.Second)

	// Assert
	c3.read(OpcodeIdentify)
	s.False(s.gateway.Session().CanResume())

	cancel()
	s.NoError(s.waitRun(errs))
}

func (s *GatewayTestSuite) TestRunReidentifiesOnInvalidSession() {
	// Setup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := s.run(ctx)
	c := s.accept()
	c.hello(45 * time.Second)
	c.read(OpcodeIdentify)
	c.ready("abc")
	s.nextEvent()

	// Execute
	c.send(OpcodeInvalidSession, "", 0, false)
	c2 := s.accept()
	c2.hello(45 * time.Second)

	// Assert
	c2.read(OpcodeIdentify)

	cancel()
	s.NoError(s.waitRun(errs))
}

func (s *GatewayTestSuite) TestRunResumesOnReconnectRequest() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := s.run(ctx)
	c := s.accept()
	c.hello(45 * time.Second)
	c.read(OpcodeIdentify)
	c.ready("abc")
	s.nextEvent()

	c.send(OpcodeReconnect, "", 0, nil)
	c2 := s.accept()
	c2.hello(45 * time.Second)
	c2.read(OpcodeResume)

	cancel()
	s.NoError(s.waitRun(errs))
}

func (s *GatewayTestSuite) TestRunResumesZombieConnection() {
	// Setup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := s.run(ctx)
	c := s.accept()
	c.hello(100 * time.Millisecond)
	c.read(OpcodeIdentify)
	c.ready("abc")
	s.nextEvent()

	// Execute
	c.read(OpcodeHeartbeat) // never acknowledged
	c2 := s.accept()
	c2.hello(45 * time.Second)

	// Assert
	c2.read(OpcodeResume)

	cancel()
	s.NoError(s.waitRun(errs))
}

func (s *GatewayTestSuite) TestRunStopsOnFatalCloseCode() {
	// Setup
	errs := s.run(context.Background())
	c := s.accept()
	c.hello(45 * time.Second)
	c.read(OpcodeIdentify)

	// Execute
	msg := websocket.FormatCloseMessage(AuthenticationFailed, "Authentication failed.")
	s.Require().NoError(c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	// Assert
	err := s.waitRun(errs)
	s.ErrorIs(err, ErrAuthenticationFailed)
	var ce *CloseError
	s.Require().ErrorAs(err, &ce)
	s.True(ce.Fatal())
	s.Equal(StateDisconnected, s.gateway.Session().State())
}

func (s *GatewayTestSuite) TestRunGivesUpAfterMaxReconnectAttempts() {
	// Setup
	s.gateway, s.dispatcher = s.newGateway(DiscordArguments{MaxReconnectAttempts: 2})
	errs := s.run(context.Background())

	// Execute
	for i := 0; i < 3; i++ {
		c := s.accept()
		c.send(OpcodeHeartbeatAck, "", 0, nil)
	}

	// Assert
	err := s.waitRun(errs)
	s.ErrorIs(err, ErrReconnectAttemptsExceeded)
}

func (s *GatewayTestSuite) TestCloseStopsRun() {
	errs := s.run(context.Background())
	c := s.accept()
	c.hello(45 * time.Second)
	c.read(OpcodeIdentify)
	c.ready("abc")
	s.nextEvent()

	s.NoError(s.gateway.Close())

	s.NoError(s.waitRun(errs))
}

func (s *GatewayTestSuite) TestCloseDuringBackoffStopsRun() {
	// Setup
	s.gateway, s.dispatcher = s.newGateway(DiscordArguments{ReconnectDelay: 500 * time.Millisecond})
	errs := s.run(context.Background())
	c := s.accept()
	c.hello(45 * time.Second)
	c.read(OpcodeIdentify)
	c.ready("abc")
	s.nextEvent()

	// Execute
	c.drop()
	time.Sleep(100 * time.Millisecond)
	s.NoError(s.gateway.Close())

	// Assert
	select {
	case err := <-errs:
		s.NoError(err)
	case <-time.After(300 * time.Millisecond):
		s.FailNow("run kept waiting for its backoff after close")
	}
	select {
	case <-s.conns:
		s.Fail("gateway reconnected after close")
	case <-time.After(700 * time.Millisecond):
	}
	s.Equal(StateDisconnected, s.gateway.Session().State())
}

func (s *GatewayTestSuite) TestCloseDuringHandshakeStopsRun() {
	// Setup
	errs := s.run(context.Background())
	s.accept() // never says hello

	// Execute
	s.NoError(s.gateway.Close())

	// Assert
	s.NoError(s.waitRun(errs))
	select {
	case <-s.conns:
		s.Fail("gateway reconnected after close")
	case <-time.After(200 * time.Millisecond):
	}
	s.Equal(StateDisconnected, s.gateway.Session().State())
}
