package webhook

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hendrywilliam/splash/src/dispatcher"
	"github.com/hendrywilliam/splash/src/interactions"
	"github.com/hendrywilliam/splash/src/structs"
	"github.com/sourcegraph/conc/panics"
)

// Discord drops interactions not answered within three seconds.
const DefaultResponseTimeout = 2500 * time.Millisecond

var ErrInvalidPublicKey = errors.New("invalid ed25519 public key")

type ServerArguments struct {
	// PublicKey is the hex encoded application public key.
	PublicKey string
	Registry  *dispatcher.CommandRegistry
	// API serves follow-ups and late answers of deferred interactions.
	API *interactions.InteractionAPI
	// ResponseTimeout is how long a handler may take before the
	// interaction is deferred.
	ResponseTimeout time.Duration
	Logger          *slog.Logger
}

// Server receives interactions over HTTP instead of the gateway.
type Server struct {
	router          *fiber.App
	publicKey       ed25519.PublicKey
	registry        *dispatcher.CommandRegistry
	api             *interactions.InteractionAPI
	responseTimeout time.Duration
	log             *slog.Logger

	mu      sync.RWMutex
	baseCtx context.Context
}

func NewServer(args ServerArguments) (*Server, error) {
	key, err := hex.DecodeString(args.PublicKey)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKey
	}
	if args.ResponseTimeout <= 0 {
		args.ResponseTimeout = DefaultResponseTimeout
	}
	if args.Logger == nil {
		args.Logger = slog.Default()
	}
	server := &Server{
		publicKey:       ed25519.PublicKey(key),
		registry:        args.Registry,
		api:             args.API,
		responseTimeout: args.ResponseTimeout,
		log:             args.Logger,
		baseCtx:         context.Background(),
	}
	server.setupRouter()
	return server, nil
}

func (server *Server) setupRouter() {
	router := fiber.New()
	router.Post("/interactions",
		server.VerifyKeyMiddleware,
		server.PingRequestMiddleware,
		server.handleInteraction,
	)
	server.router = router
}

// App exposes the fiber application, mostly for tests.
func (server *Server) App() *fiber.App {
	return server.router
}

func (server *Server) context() context.Context {
	server.mu.RLock()
	defer server.mu.RUnlock()
	return server.baseCtx
}

func (server *Server) handleInteraction(c fiber.Ctx) error {
	i, ok := c.Locals(interactionKey).(*interactions.Interaction)
	if !ok {
		return c.Status(http.StatusInternalServerError).SendString("internal server error")
	}
	responder, ok := c.Locals(responderKey).(*httpResponder)
	if !ok {
		return c.Status(http.StatusInternalServerError).SendString("internal server error")
	}
	log := server.log.With("interaction_id", i.ID, "interaction_type", i.Type)

	done := make(chan error, 1)
	go func() {
		var pc panics.Catcher
		pc.Try(func() {
			done <- server.registry.HandleInteraction(server.context(), i)
		})
		if r := pc.Recovered(); r != nil {
			log.Error("command handler panicked", "panic", r.Value, "stack", string(r.Stack))
			done <- r.AsError()
		}
	}()

	timer := time.NewTimer(server.responseTimeout)
	defer timer.Stop()
	select {
	case <-responder.replied:
		return c.JSON(responder.response())
	case err := <-done:
		if response := responder.response(); response != nil {
			return c.JSON(response)
		}
		switch {
		case errors.Is(err, dispatcher.ErrUnregisteredCommand):
			log.Warn("received unregistered command", "error", err)
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "unknown command"})
		case err != nil:
			log.Error("command handler failed", "error", err)
		default:
			log.Error("command handler returned without responding")
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "interaction was not answered"})
	case <-timer.C:
		if !responder.deferResponse() {
			return c.JSON(responder.response())
		}
		log.Debug("deferred slow interaction")
		return c.JSON(interactions.NewDeferredResponse(false))
	}
}

// Start serves until ctx is cancelled.
func (server *Server) Start(ctx context.Context, addr string) error {
	server.mu.Lock()
	server.baseCtx = ctx
	server.mu.Unlock()
	server.log.Info(fmt.Sprintf("server start at %s", addr))
	return server.router.Listen(addr, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
		OnShutdownSuccess: func() {
			server.log.Info("server stopped.")
		},
	})
}

const (
	statePending = iota
	stateReplied
	stateDeferred
)

// httpResponder hands the initial response back to the HTTP request. Once
// the request was answered with a deferral, replies edit the original
// response instead.
type httpResponder struct {
	api           *interactions.InteractionAPI
	applicationID structs.Snowflake

	mu      sync.Mutex
	state   int
	reply   *structs.InteractionResponse
	replied chan struct{}
}

func (r *httpResponder) Reply(ctx context.Context, _ structs.Snowflake, token string, response *structs.InteractionResponse) error {
	r.mu.Lock()
	switch r.state {
	case statePending:
		r.reply = response
		r.state = stateReplied
		close(r.replied)
		r.mu.Unlock()
		return nil
	case stateDeferred:
		r.mu.Unlock()
		if response.Data == nil {
			return nil
		}
		if r.api == nil {
			return interactions.ErrNoResponder
		}
		_, err := r.api.EditOriginal(ctx, r.applicationID, token, response.Data)
		return err
	default:
		r.mu.Unlock()
		return interactions.ErrAlreadyResponded
	}
}

func (r *httpResponder) response() *structs.InteractionResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reply
}

func (r *httpResponder) deferResponse() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != statePending {
		return false
	}
	r.state = stateDeferred
	return true
}
