package interactions

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/hendrywilliam/splash/src/structs"
)

var (
	ErrAlreadyResponded = errors.New("interaction already responded")
	ErrNoResponder      = errors.New("interaction has no responder")
)

// Interaction is the payload handed to command handlers. It is decoded once
// and never mutated; Raw keeps the JSON it came from.
type Interaction struct {
	*structs.Interaction
	Raw json.RawMessage

	api       *InteractionAPI
	responder Responder
	responded atomic.Bool
}

// NewInteraction decodes raw. The initial response goes through responder,
// follow-up calls through api. A nil responder falls back to api.
func NewInteraction(raw json.RawMessage, api *InteractionAPI, responder Responder) (*Interaction, error) {
	data := &structs.Interaction{}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, err
	}
	if responder == nil && api != nil {
		responder = api
	}
	return &Interaction{
		Interaction: data,
		Raw:         raw,
		api:         api,
		responder:   responder,
	}, nil
}

// Responded reports whether the initial response was sent.
func (i *Interaction) Responded() bool {
	return i.responded.Load()
}

// Respond sends the initial response. An interaction accepts one.
func (i *Interaction) Respond(ctx context.Context, response *structs.InteractionResponse) error {
	if i.responder == nil {
		return ErrNoResponder
	}
	if !i.responded.CompareAndSwap(false, true) {
		return ErrAlreadyResponded
	}
	if err := i.responder.Reply(ctx, i.ID, i.Token, response); err != nil {
		i.responded.Store(false)
		return err
	}
	return nil
}

// RespondMessage answers with a channel message.
func (i *Interaction) RespondMessage(ctx context.Context, content string, ephemeral bool) error {
	response, err := NewResponse(content, ephemeral, structs.InteractionResponseTypeChannelMessageWithSource)
	if err != nil {
		return err
	}
	return i.Respond(ctx, response)
}

// Defer acknowledges the interaction; edit the original response later.
func (i *Interaction) Defer(ctx context.Context, ephemeral bool) error {
	return i.Respond(ctx, NewDeferredResponse(ephemeral))
}

func (i *Interaction) EditOriginal(ctx context.Context, data *structs.InteractionResponseDataMessage) (*structs.Message, error) {
	if i.api == nil {
		return nil, ErrNoResponder
	}
	return i.api.EditOriginal(ctx, i.ApplicationID, i.Token, data)
}

func (i *Interaction) DeleteOriginal(ctx context.Context) error {
	if i.api == nil {
		return ErrNoResponder
	}
	return i.api.DeleteOriginal(ctx, i.ApplicationID, i.Token)
}

func (i *Interaction) Followup(ctx context.Context, data *structs.InteractionResponseDataMessage) (*structs.Message, error) {
	if i.api == nil {
		return nil, ErrNoResponder
	}
	return i.api.CreateFollowup(ctx, i.ApplicationID, i.Token, data)
}
