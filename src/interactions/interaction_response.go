package interactions

import (
	"errors"
	"fmt"

	"github.com/hendrywilliam/splash/src/structs"
)

var ErrInvalidResponseType = errors.New("invalid interaction response type")

// NewResponse builds the initial response of an interaction. Only types 1
// to 5 are accepted: pong, the two deprecated acknowledgements, a channel
// message and a deferred channel message.
func NewResponse(content string, ephemeral bool, responseType structs.InteractionResponseType) (*structs.InteractionResponse, error) {
	if responseType < structs.InteractionResponseTypePong ||
		responseType > structs.InteractionResponseTypeDeferredChannelMessageWithSource {
		return nil, fmt.Errorf("%w: %d", ErrInvalidResponseType, responseType)
	}
	response := &structs.InteractionResponse{Type: responseType}
	switch responseType {
	case structs.InteractionResponseTypePong, structs.InteractionResponseTypeAcknowledge:
		return response, nil
	}
	data := &structs.InteractionResponseDataMessage{}
	if responseType != structs.InteractionResponseTypeDeferredChannelMessageWithSource {
		data.Content = content
	}
	if ephemeral {
		data.Flags = structs.MessageFlagEphemeral
	}
	response.Data = data
	return response, nil
}

// NewMessageResponse is a channel message response visible to everyone.
func NewMessageResponse(content string) *structs.InteractionResponse {
	return &structs.InteractionResponse{
		Type: structs.InteractionResponseTypeChannelMessageWithSource,
		Data: &structs.InteractionResponseDataMessage{Content: content},
	}
}

// NewEphemeralResponse is a channel message response only the invoker sees.
func NewEphemeralResponse(content string) *structs.InteractionResponse {
	return &structs.InteractionResponse{
		Type: structs.InteractionResponseTypeChannelMessageWithSource,
		Data: &structs.InteractionResponseDataMessage{
			Content: content,
			Flags:   structs.MessageFlagEphemeral,
		},
	}
}

// NewDeferredResponse acknowledges an interaction and shows a loading state
// until the original response is edited.
func NewDeferredResponse(ephemeral bool) *structs.InteractionResponse {
	response, _ := NewResponse("", ephemeral, structs.InteractionResponseTypeDeferredChannelMessageWithSource)
	return response
}

func NewPongResponse() *structs.InteractionResponse {
	return &structs.InteractionResponse{Type: structs.InteractionResponseTypePong}
}
