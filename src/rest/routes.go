package rest

import (
	"context"
	"encoding/json"

	"github.com/hendrywilliam/splash/src/structs"
)

// https://discord.com/developers/docs/resources/user#get-current-user
func GetCurrentUser(ctx context.Context, r RESTClient) (*structs.User, error) {
	b, err := r.Get(ctx, "/users/@me", nil)
	if err != nil {
		return nil, err
	}
	user := &structs.User{}
	if err := json.Unmarshal(b, user); err != nil {
		return nil, err
	}
	return user, nil
}

type SessionStartLimit struct {
	Total          int `json:"total"`
	Remaining      int `json:"remaining"`
	ResetAfter     int `json:"reset_after"`
	MaxConcurrency int `json:"max_concurrency"`
}

type GatewayBotResponse struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// https://discord.com/developers/docs/events/gateway#get-gateway-bot
func GetGatewayBot(ctx context.Context, r RESTClient) (*GatewayBotResponse, error) {
	b, err := r.Get(ctx, "/gateway/bot", nil)
	if err != nil {
		return nil, err
	}
	gb := &GatewayBotResponse{}
	if err := json.Unmarshal(b, gb); err != nil {
		return nil, err
	}
	return gb, nil
}
