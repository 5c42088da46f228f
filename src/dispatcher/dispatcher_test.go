package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hendrywilliam/splash/src/interactions"
	"github.com/stretchr/testify/suite"
)

const sayPayload = `{"id":"1","application_id":"2","type":2,"token":"t","version":1,"data":{"id":"3","name":"say","type":1}}`

type DispatcherTestSuite struct {
	suite.Suite
	logs       *bytes.Buffer
	dispatcher *Dispatcher
	registry   *CommandRegistry
	ctx        context.Context
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func (s *DispatcherTestSuite) SetupTest() {
	s.logs = &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(s.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s.dispatcher = NewDispatcher(DispatcherArguments{Logger: logger})
	s.registry = NewCommandRegistry(nil)
	s.Require().NoError(s.dispatcher.Register("INTERACTION_CREATE", s.registry.HandleEvent))
	s.ctx = context.Background()
}

func (s *DispatcherTestSuite) TestCommandInvokedExactlyOnce() {
	// Setup
	calls := 0
	var received *interactions.Interaction
	s.Require().NoError(s.registry.Register("say", func(ctx context.Context, i *interactions.Interaction) error {
		calls++
		received = i
		return nil
	}))

	// Execute
	s.dispatcher.Dispatch(s.ctx, "INTERACTION_CREATE", json.RawMessage(sayPayload))

	// Assert
	s.Equal(1, calls)
	s.Require().NotNil(received)
	s.Equal("say", received.Data.Name)
	s.JSONEq(sayPayload, string(received.Raw))
}

func (s *DispatcherTestSuite) TestUnregisteredCommandIsLogged() {
	// Execute
	s.dispatcher.Dispatch(s.ctx, "INTERACTION_CREATE", json.RawMessage(sayPayload))

	// Assert
	s.Contains(s.logs.String(), "received unregistered command")
	s.Contains(s.logs.String(), `"level":"WARN"`)
}

func (s *DispatcherTestSuite) TestUnknownEventIsIgnored() {
	s.NotPanics(func() {
		s.dispatcher.Dispatch(s.ctx, "TYPING_START", json.RawMessage(`{}`))
	})
	s.Contains(s.logs.String(), "no handler for event")
}

func (s *DispatcherTestSuite) TestDuplicateRegistrationRejected() {
	noop := func(context.Context, json.RawMessage) error { return nil }

	err := s.dispatcher.Register("INTERACTION_CREATE", noop)

	s.ErrorIs(err, ErrDuplicateHandler)
	s.ErrorIs(s.dispatcher.Register("", noop), ErrEmptyName)
	s.ErrorIs(s.dispatcher.Register("READY", nil), ErrNilHandler)
}

func (s *DispatcherTestSuite) TestHandlerPanicIsRecovered() {
	// Setup
	s.Require().NoError(s.dispatcher.Register("MESSAGE_CREATE", func(context.Context, json.RawMessage) error {
		panic("bad handler")
	}))

	// Execute
	s.NotPanics(func() {
		s.dispatcher.Dispatch(s.ctx, "MESSAGE_CREATE", json.RawMessage(`{}`))
	})

	// Assert
	s.Contains(s.logs.String(), "event handler panicked")
	s.Contains(s.logs.String(), "bad handler")
}

func (s *DispatcherTestSuite) TestHandlerErrorIsLogged() {
	s.Require().NoError(s.dispatcher.Register("MESSAGE_CREATE", func(context.Context, json.RawMessage) error {
		return errors.New("went wrong")
	}))

	s.dispatcher.Dispatch(s.ctx, "MESSAGE_CREATE", json.RawMessage(`{}`))

	s.Contains(s.logs.String(), "event handler failed")
	s.Contains(s.logs.String(), "went wrong")
}

func (s *DispatcherTestSuite) TestDispatchIDIsSet() {
	var id string
	s.Require().NoError(s.dispatcher.Register("READY", func(ctx context.Context, _ json.RawMessage) error {
		id = DispatchID(ctx)
		return nil
	}))

	s.dispatcher.Dispatch(s.ctx, "READY", json.RawMessage(`{}`))

	s.Len(id, 36)
	s.Contains(s.logs.String(), id)
	s.Empty(DispatchID(context.Background()))
}

func (s *DispatcherTestSuite) TestConcurrentHandlersOverlap() {
	// Setup
	d := NewDispatcher(DispatcherArguments{Concurrent: true, Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))})
	var mu sync.Mutex
	var order []int
	var running atomic.Int32
	s.Require().NoError(d.Register("MESSAGE_CREATE", func(_ context.Context, data json.RawMessage) error {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
		running.Add(1)
		time.Sleep(20 * time.Millisecond)
		return nil
	}))

	// Execute
	start := time.Now()
	for n := 0; n < 5; n++ {
		d.Dispatch(s.ctx, "MESSAGE_CREATE", json.RawMessage([]byte{byte('0' + n)}))
	}
	d.Wait()

	// Assert
	s.ElementsMatch([]int{0, 1, 2, 3, 4}, order)
	s.Equal(int32(5), running.Load())
	s.Less(time.Since(start), 80*time.Millisecond)
}
