package interactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hendrywilliam/splash/src/rest"
	"github.com/hendrywilliam/splash/src/structs"
)

var ErrMissingApplicationID = errors.New("application id is not provided")

// Application commands API.
// Source: https://discord.com/developers/docs/interactions/application-commands
type ApplicationCommandAPI struct {
	rest          rest.RESTClient
	applicationID structs.Snowflake
}

func NewApplicationCommandAPI(rest rest.RESTClient, applicationID structs.Snowflake) *ApplicationCommandAPI {
	return &ApplicationCommandAPI{rest: rest, applicationID: applicationID}
}

// Routes
// A zero guildID addresses the global commands.
func (a *ApplicationCommandAPI) commandsRoute(guildID structs.Snowflake) (string, error) {
	if a.applicationID == 0 {
		return "", ErrMissingApplicationID
	}
	if guildID == 0 {
		return fmt.Sprintf("/applications/%s/commands", a.applicationID), nil
	}
	return fmt.Sprintf("/applications/%s/guilds/%s/commands", a.applicationID, guildID), nil
}

// BulkOverwrite replaces every command in scope with commands. Commands
// missing from the list are deleted by Discord.
func (a *ApplicationCommandAPI) BulkOverwrite(ctx context.Context, guildID structs.Snowflake, commands []structs.AppCmd) ([]structs.AppCmd, error) {
	route, err := a.commandsRoute(guildID)
	if err != nil {
		return nil, err
	}
	if commands == nil {
		commands = []structs.AppCmd{}
	}
	b, err := a.rest.Put(ctx, route, commands, &rest.RESTOptions{GuildID: guildID})
	if err != nil {
		return nil, err
	}
	return decodeCommands(b)
}

func (a *ApplicationCommandAPI) List(ctx context.Context, guildID structs.Snowflake) ([]structs.AppCmd, error) {
	route, err := a.commandsRoute(guildID)
	if err != nil {
		return nil, err
	}
	b, err := a.rest.Get(ctx, route, &rest.RESTOptions{GuildID: guildID})
	if err != nil {
		return nil, err
	}
	return decodeCommands(b)
}

// Create upserts one command; an existing command with the same name is
// replaced.
func (a *ApplicationCommandAPI) Create(ctx context.Context, guildID structs.Snowflake, command structs.AppCmd) (*structs.AppCmd, error) {
	route, err := a.commandsRoute(guildID)
	if err != nil {
		return nil, err
	}
	b, err := a.rest.Post(ctx, route, command, &rest.RESTOptions{GuildID: guildID})
	if err != nil {
		return nil, err
	}
	created := &structs.AppCmd{}
	if err := json.Unmarshal(b, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (a *ApplicationCommandAPI) Delete(ctx context.Context, guildID structs.Snowflake, commandID structs.Snowflake) error {
	route, err := a.commandsRoute(guildID)
	if err != nil {
		return err
	}
	_, err = a.rest.Delete(ctx, fmt.Sprintf("%s/%s", route, commandID), &rest.RESTOptions{GuildID: guildID})
	return err
}

func decodeCommands(b []byte) ([]structs.AppCmd, error) {
	commands := []structs.AppCmd{}
	if err := json.Unmarshal(b, &commands); err != nil {
		return nil, err
	}
	return commands, nil
}
