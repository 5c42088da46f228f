package gateway

import (
	"errors"
	"fmt"
)

// https://discord.com/developers/docs/topics/opcodes-and-status-codes#gateway-gateway-close-event-codes
type GatewayCloseEventCode = int

const (
	UnknownError         GatewayCloseEventCode = 4000
	UnknownOpcode        GatewayCloseEventCode = 4001
	DecodeError          GatewayCloseEventCode = 4002
	NotAuthenticated     GatewayCloseEventCode = 4003
	AuthenticationFailed GatewayCloseEventCode = 4004
	AlreadyAuthenticated GatewayCloseEventCode = 4005
	InvalidSeq           GatewayCloseEventCode = 4007
	RateLimited          GatewayCloseEventCode = 4008
	SessionTimedOut      GatewayCloseEventCode = 4009
	InvalidShard         GatewayCloseEventCode = 4010
	ShardingRequired     GatewayCloseEventCode = 4011
	InvalidAPIVersion    GatewayCloseEventCode = 4012
	InvalidIntents       GatewayCloseEventCode = 4013
	DisallowedIntents    GatewayCloseEventCode = 4014
)

var (
	ErrUnknown              = errors.New("unknown error")
	ErrUnknownOpcode        = errors.New("unknown opcode")
	ErrDecode               = errors.New("invalid payload")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrInvalidSeq           = errors.New("invalid sequence")
	ErrRateLimited          = errors.New("gateway rate limited")
	ErrSessionTimedOut      = errors.New("session timed out")
	ErrInvalidShard         = errors.New("invalid shard")
	ErrShardingRequired     = errors.New("sharding required")
	ErrInvalidAPIVersion    = errors.New("invalid api version")
	ErrInvalidIntents       = errors.New("invalid intents")
	ErrDisallowedIntents    = errors.New("disallowed intent. you may have tried to specify an intent that you have not enabled")

	ErrHandshake                 = errors.New("gateway handshake failed: first message was not hello")
	ErrGatewayIsAlreadyOpen      = errors.New("gateway is already open")
	ErrGatewayNotConnected       = errors.New("gateway is not connected")
	ErrGatewayClosed             = errors.New("gateway closed")
	ErrZombieConnection          = errors.New("heartbeat was not acknowledged")
	ErrReconnectRequested        = errors.New("discord requested a reconnect")
	ErrInvalidSession            = errors.New("session invalidated")
	ErrInvalidSessionResumable   = errors.New("session invalidated, resumable")
	ErrReconnectAttemptsExceeded = errors.New("failed after several attempts")
)

type closeAction int

const (
	actionResume closeAction = iota
	actionIdentify
	actionFatal
)

type closeCodeEntry struct {
	err    error
	action closeAction
}

var closeCodes = map[GatewayCloseEventCode]closeCodeEntry{
	UnknownError:         {ErrUnknown, actionResume},
	UnknownOpcode:        {ErrUnknownOpcode, actionResume},
	DecodeError:          {ErrDecode, actionResume},
	NotAuthenticated:     {ErrNotAuthenticated, actionResume},
	AuthenticationFailed: {ErrAuthenticationFailed, actionFatal},
	AlreadyAuthenticated: {ErrAlreadyAuthenticated, actionResume},
	InvalidSeq:           {ErrInvalidSeq, actionIdentify},
	RateLimited:          {ErrRateLimited, actionResume},
	SessionTimedOut:      {ErrSessionTimedOut, actionIdentify},
	InvalidShard:         {ErrInvalidShard, actionFatal},
	ShardingRequired:     {ErrShardingRequired, actionFatal},
	InvalidAPIVersion:    {ErrInvalidAPIVersion, actionFatal},
	InvalidIntents:       {ErrInvalidIntents, actionFatal},
	DisallowedIntents:    {ErrDisallowedIntents, actionFatal},
}

// CloseError is how the connection ended when Discord sent a close frame.
// errors.Is matches the sentinel of the close code.
type CloseError struct {
	Code   int
	Reason string
	err    error
	action closeAction
}

func newCloseError(code int, reason string) *CloseError {
	entry, ok := closeCodes[code]
	if !ok {
		entry = closeCodeEntry{ErrUnknown, actionResume}
	}
	return &CloseError{Code: code, Reason: reason, err: entry.err, action: entry.action}
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("gateway closed with %d: %s (%s)", e.Code, e.err, e.Reason)
}

func (e *CloseError) Unwrap() error {
	return e.err
}

// Fatal reports whether reconnecting is pointless.
func (e *CloseError) Fatal() bool {
	return e.action == actionFatal
}

// reconnectAction decides how to come back from err.
func reconnectAction(err error) closeAction {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.action
	}
	if errors.Is(err, ErrInvalidSession) {
		return actionIdentify
	}
	return actionResume
}
