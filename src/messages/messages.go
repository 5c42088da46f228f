package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hendrywilliam/splash/src/rest"
	"github.com/hendrywilliam/splash/src/structs"
)

var ErrEmptyMessage = errors.New("message has no content")

// Messages API.
// Provide methods to interact with "Messages" event struct.
// Source: https://discord.com/developers/docs/resources/message
type MessageAPI struct {
	rest rest.RESTClient
}

func New(rest rest.RESTClient) *MessageAPI {
	return &MessageAPI{
		rest: rest,
	}
}

// Routes
func messagesRoute(channelID structs.Snowflake) string {
	return fmt.Sprintf("/channels/%s/messages", channelID)
}

func messageRoute(channelID, messageID structs.Snowflake) string {
	return fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
}

type CreateMessageData struct {
	Content          string `json:"content,omitempty"`
	Tts              bool   `json:"tts,omitempty"`
	Nonce            any    `json:"nonce,omitempty"`             // Use nonce to verify a message was sent.
	Flags            int    `json:"flags,omitempty"`             // Only SUPPRESS_EMBEDS and SUPPRESS_NOTIFICATIONS.
	Embeds           any    `json:"embeds,omitempty"`            // unimplemented
	AllowedMentions  any    `json:"allowed_mentions,omitempty"`  // unimplemented
	MessageReference any    `json:"message_reference,omitempty"` // unimplemented
	Components       any    `json:"components,omitempty"`        // unimplemented
	StickerIDS       any    `json:"sticker_ids,omitempty"`       // unimplemented
}

type EditMessageData struct {
	Content    *string `json:"content,omitempty"`
	Flags      *int    `json:"flags,omitempty"`
	Embeds     any     `json:"embeds,omitempty"`     // unimplemented
	Components any     `json:"components,omitempty"` // unimplemented
}

func (m *MessageAPI) CreateMessage(ctx context.Context, channelID structs.Snowflake, data CreateMessageData) (*structs.Message, error) {
	if data.Content == "" && data.Embeds == nil && data.Components == nil && data.StickerIDS == nil {
		return nil, ErrEmptyMessage
	}
	b, err := m.rest.Post(ctx, messagesRoute(channelID), data, &rest.RESTOptions{ChannelID: channelID})
	if err != nil {
		return nil, err
	}
	return decodeMessage(b)
}

func (m *MessageAPI) GetMessage(ctx context.Context, channelID, messageID structs.Snowflake) (*structs.Message, error) {
	b, err := m.rest.Get(ctx, messageRoute(channelID, messageID), &rest.RESTOptions{ChannelID: channelID})
	if err != nil {
		return nil, err
	}
	return decodeMessage(b)
}

func (m *MessageAPI) EditMessage(ctx context.Context, channelID, messageID structs.Snowflake, data EditMessageData) (*structs.Message, error) {
	b, err := m.rest.Patch(ctx, messageRoute(channelID, messageID), data, &rest.RESTOptions{ChannelID: channelID})
	if err != nil {
		return nil, err
	}
	return decodeMessage(b)
}

// DeleteMessage removes a message. reason lands in the guild audit log.
func (m *MessageAPI) DeleteMessage(ctx context.Context, channelID, messageID structs.Snowflake, reason string) error {
	_, err := m.rest.Delete(ctx, messageRoute(channelID, messageID), &rest.RESTOptions{ChannelID: channelID, Reason: reason})
	return err
}

func decodeMessage(b []byte) (*structs.Message, error) {
	msg := &structs.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
