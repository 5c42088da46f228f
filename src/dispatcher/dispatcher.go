package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

var (
	ErrDuplicateHandler = errors.New("handler already registered")
	ErrEmptyName        = errors.New("handler name is empty")
	ErrNilHandler       = errors.New("handler is nil")
)

// HandlerFunc handles the data of one dispatch event.
type HandlerFunc func(ctx context.Context, data json.RawMessage) error

type dispatchIDKey struct{}

// DispatchID returns the correlation id of the dispatch that produced ctx.
func DispatchID(ctx context.Context) string {
	id, _ := ctx.Value(dispatchIDKey{}).(string)
	return id
}

type DispatcherArguments struct {
	// Concurrent runs every handler on its own goroutine. Handlers are
	// invoked in dispatch order, their completion order is unspecified.
	Concurrent bool
	Logger     *slog.Logger
}

// Dispatcher maps gateway event names to handlers. Events without a
// handler are ignored.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	concurrent  bool
	wg          conc.WaitGroup
	orderMu     sync.Mutex
	lastStarted chan struct{}

	log *slog.Logger
}

func NewDispatcher(args DispatcherArguments) *Dispatcher {
	if args.Logger == nil {
		args.Logger = slog.Default()
	}
	return &Dispatcher{
		handlers:   make(map[string]HandlerFunc),
		concurrent: args.Concurrent,
		log:        args.Logger,
	}
}

// Register binds handler to an event name. A name can be bound once.
func (d *Dispatcher) Register(event string, handler HandlerFunc) error {
	if event == "" {
		return ErrEmptyName
	}
	if handler == nil {
		return ErrNilHandler
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[event]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, event)
	}
	d.handlers[event] = handler
	return nil
}

func (d *Dispatcher) handler(event string) (HandlerFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[event]
	return h, ok
}

// Dispatch runs the handler of event with data. Handler errors and panics
// are logged and never reach the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, data json.RawMessage) {
	h, ok := d.handler(event)
	if !ok {
		d.log.Debug("no handler for event", "event_name", event)
		return
	}
	id := uuid.NewString()
	ctx = context.WithValue(ctx, dispatchIDKey{}, id)
	log := d.log.With("event_name", event, "dispatch_id", id)
	log.Debug("dispatching event")

	if !d.concurrent {
		d.run(ctx, log, h, data, nil)
		return
	}

	started := make(chan struct{})
	d.orderMu.Lock()
	prev := d.lastStarted
	d.lastStarted = started
	d.orderMu.Unlock()
	d.wg.Go(func() {
		if prev != nil {
			<-prev
		}
		d.run(ctx, log, h, data, started)
	})
}

func (d *Dispatcher) run(ctx context.Context, log *slog.Logger, h HandlerFunc, data json.RawMessage, started chan struct{}) {
	var err error
	var pc panics.Catcher
	pc.Try(func() {
		if started != nil {
			close(started)
		}
		err = h(ctx, data)
	})
	if r := pc.Recovered(); r != nil {
		log.Error("event handler panicked", "panic", r.Value, "stack", string(r.Stack))
		return
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrUnregisteredCommand):
		log.Warn("received unregistered command", "error", err)
	default:
		log.Error("event handler failed", "error", err)
	}
}

// Wait blocks until every concurrently dispatched handler returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
