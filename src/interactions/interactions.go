package interactions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/hendrywilliam/splash/src/rest"
	"github.com/hendrywilliam/splash/src/structs"
)

// Interaction API.
// Provide methods to respond to interactions and to manage the messages
// created by those responses.
// Source: https://discord.com/developers/docs/interactions/receiving-and-responding
type InteractionAPI struct {
	rest rest.RESTClient
}

func NewInteractionAPI(rest rest.RESTClient) *InteractionAPI {
	return &InteractionAPI{rest: rest}
}

// Routes
// Sources: https://discord.com/developers/docs/interactions/receiving-and-responding
func interactionResponseCallbackRoute(interactionID structs.Snowflake, interactionToken string) string {
	return fmt.Sprintf("/interactions/%s/%s/callback", interactionID, interactionToken)
}

func webhookRoute(applicationID structs.Snowflake, interactionToken string) string {
	return fmt.Sprintf("/webhooks/%s/%s", applicationID, interactionToken)
}

func originalInteractionRoute(applicationID structs.Snowflake, interactionToken string) string {
	return webhookRoute(applicationID, interactionToken) + "/messages/@original"
}

func followupRoute(applicationID structs.Snowflake, interactionToken string, messageID structs.Snowflake) string {
	return fmt.Sprintf("%s/messages/%s", webhookRoute(applicationID, interactionToken), messageID)
}

func threadQuery(threadID structs.Snowflake) url.Values {
	if threadID == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("thread_id", threadID.String())
	return q
}

// Responder sends the initial response of an interaction. Over the gateway
// that is a REST callback; the HTTP endpoint answers in the request body.
type Responder interface {
	Reply(ctx context.Context, interactionID structs.Snowflake, interactionToken string, response *structs.InteractionResponse) error
}

// Methods
func (i *InteractionAPI) Reply(ctx context.Context, interactionID structs.Snowflake, interactionToken string, response *structs.InteractionResponse) error {
	_, err := i.rest.Post(ctx, interactionResponseCallbackRoute(interactionID, interactionToken), response, nil)
	return err
}

type GetOriginalOptions struct {
	ThreadID structs.Snowflake
}

func (i *InteractionAPI) GetOriginal(ctx context.Context, applicationID structs.Snowflake, interactionToken string, options GetOriginalOptions) (*structs.Message, error) {
	b, err := i.rest.Get(ctx, originalInteractionRoute(applicationID, interactionToken), &rest.RESTOptions{
		Query: threadQuery(options.ThreadID),
	})
	if err != nil {
		return nil, err
	}
	return decodeMessage(b)
}

func (i *InteractionAPI) EditOriginal(ctx context.Context, applicationID structs.Snowflake, interactionToken string, data *structs.InteractionResponseDataMessage) (*structs.Message, error) {
	b, err := i.rest.Patch(ctx, originalInteractionRoute(applicationID, interactionToken), data, nil)
	if err != nil {
		return nil, err
	}
	return decodeMessage(b)
}

func (i *InteractionAPI) DeleteOriginal(ctx context.Context, applicationID structs.Snowflake, interactionToken string) error {
	_, err := i.rest.Delete(ctx, originalInteractionRoute(applicationID, interactionToken), nil)
	return err
}

// CreateFollowup sends an additional message for an interaction. The
// token stays valid for 15 minutes after the interaction was received.
func (i *InteractionAPI) CreateFollowup(ctx context.Context, applicationID structs.Snowflake, interactionToken string, data *structs.InteractionResponseDataMessage) (*structs.Message, error) {
	b, err := i.rest.Post(ctx, webhookRoute(applicationID, interactionToken), data, &rest.RESTOptions{
		Query: url.Values{"wait": []string{"true"}},
	})
	if err != nil {
		return nil, err
	}
	return decodeMessage(b)
}

func (i *InteractionAPI) EditFollowup(ctx context.Context, applicationID structs.Snowflake, interactionToken string, messageID structs.Snowflake, data *structs.InteractionResponseDataMessage) (*structs.Message, error) {
	b, err := i.rest.Patch(ctx, followupRoute(applicationID, interactionToken, messageID), data, nil)
	if err != nil {
		return nil, err
	}
	return decodeMessage(b)
}

func (i *InteractionAPI) DeleteFollowup(ctx context.Context, applicationID structs.Snowflake, interactionToken string, messageID structs.Snowflake) error {
	_, err := i.rest.Delete(ctx, followupRoute(applicationID, interactionToken, messageID), nil)
	return err
}

func decodeMessage(b []byte) (*structs.Message, error) {
	msg := &structs.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
