package webhook

import (
	"crypto/ed25519"
	"encoding/hex"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/hendrywilliam/splash/src/interactions"
	"github.com/hendrywilliam/splash/src/structs"
)

const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

type localsKey int

const (
	interactionKey localsKey = iota
	responderKey
)

// Verify reports whether signature signs timestamp followed by body.
func Verify(publicKey ed25519.PublicKey, signature, timestamp string, body []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || signature == "" || timestamp == "" {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	message := make([]byte, 0, len(timestamp)+len(body))
	message = append(message, timestamp...)
	message = append(message, body...)
	return ed25519.Verify(publicKey, message, sig)
}

func (server *Server) VerifyKeyMiddleware(c fiber.Ctx) error {
	if !Verify(server.publicKey, c.Get(HeaderSignature), c.Get(HeaderTimestamp), c.Body()) {
		return c.Status(http.StatusUnauthorized).SendString("invalid request signature")
	}
	return c.Next()
}

// PingRequestMiddleware answers PING and decodes every other interaction
// for the next handler.
func (server *Server) PingRequestMiddleware(c fiber.Ctx) error {
	// The request body is reused by fasthttp once the handler returns and
	// command handlers may outlive the request.
	raw := append([]byte(nil), c.Body()...)
	responder := &httpResponder{api: server.api, replied: make(chan struct{})}
	i, err := interactions.NewInteraction(raw, server.api, responder)
	if err != nil {
		server.log.Warn("failed to decode interaction", "error", err)
		return c.Status(http.StatusBadRequest).SendString("invalid interaction payload")
	}
	if i.Type == structs.InteractionTypePing {
		return c.JSON(interactions.NewPongResponse())
	}
	responder.applicationID = i.ApplicationID
	c.Locals(interactionKey, i)
	c.Locals(responderKey, responder)
	return c.Next()
}
