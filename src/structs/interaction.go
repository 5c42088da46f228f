package structs

import "encoding/json"

type InteractionType = uint8

const (
	InteractionTypePing                           InteractionType = 1
	InteractionTypeApplicationCommand             InteractionType = 2
	InteractionTypeMessageComponent               InteractionType = 3
	InteractionTypeApplicationCommandAutocomplete InteractionType = 4
	InteractionTypeModalSubmit                    InteractionType = 5
)

type InteractionContextType = uint8

const (
	InteractionContextTypeGuild InteractionContextType = 0
	InteractionContextTypeBotDM InteractionContextType = 1
	InteractionPrivateChannel   InteractionContextType = 2
)

type ComponentType = uint8

const (
	ComponentTypeActionRow  ComponentType = 1
	ComponentTypeButton     ComponentType = 2
	ComponentTypeStringMenu ComponentType = 3
	ComponentTypeTextInput  ComponentType = 4
)

// InteractionOption is one parameter, subcommand or subcommand group
// supplied with an application command.
type InteractionOption struct {
	Name    string              `json:"name"`
	Type    AppCmdOptionType    `json:"type"`
	Value   json.RawMessage     `json:"value,omitempty"`
	Options []InteractionOption `json:"options,omitempty"`
	Focused bool                `json:"focused,omitempty"`
}

// IsSubcommand reports whether the option groups further options
// instead of carrying a value.
func (o InteractionOption) IsSubcommand() bool {
	return o.Type == AppCmdOptionTypeSubCommand || o.Type == AppCmdOptionTypeSubCommandGroup
}

// StringValue returns the option value for string typed options.
func (o InteractionOption) StringValue() (string, bool) {
	var s string
	if err := json.Unmarshal(o.Value, &s); err != nil {
		return "", false
	}
	return s, true
}

// IntValue returns the option value for integer typed options.
func (o InteractionOption) IntValue() (int64, bool) {
	var i int64
	if err := json.Unmarshal(o.Value, &i); err != nil {
		return 0, false
	}
	return i, true
}

// BoolValue returns the option value for boolean typed options.
func (o InteractionOption) BoolValue() (bool, bool) {
	var b bool
	if err := json.Unmarshal(o.Value, &b); err != nil {
		return false, false
	}
	return b, true
}

// InteractionData carries the command or component payload. Which fields are
// populated depends on the interaction type.
type InteractionData struct {
	ID            Snowflake           `json:"id,omitempty"`
	Name          string              `json:"name,omitempty"`
	Type          AppCmdType          `json:"type,omitempty"`
	Resolved      json.RawMessage     `json:"resolved,omitempty"`
	Options       []InteractionOption `json:"options,omitempty"`
	GuildID       Snowflake           `json:"guild_id,omitempty"`
	TargetID      Snowflake           `json:"target_id,omitempty"`
	CustomID      string              `json:"custom_id,omitempty"`
	ComponentType ComponentType       `json:"component_type,omitempty"`
	Values        []string            `json:"values,omitempty"`
}

// Option finds a top level option by name.
func (d InteractionData) Option(name string) (InteractionOption, bool) {
	for _, o := range d.Options {
		if o.Name == name {
			return o, true
		}
	}
	return InteractionOption{}, false
}

// https://discord.com/developers/docs/interactions/receiving-and-responding#interaction-object
type Interaction struct {
	ID             Snowflake              `json:"id"`
	ApplicationID  Snowflake              `json:"application_id"`
	Type           InteractionType        `json:"type"`
	Data           InteractionData        `json:"data,omitempty"`
	GuildID        Snowflake              `json:"guild_id,omitempty"`
	ChannelID      Snowflake              `json:"channel_id,omitempty"`
	Channel        *Channel               `json:"channel,omitempty"`
	Member         *Member                `json:"member,omitempty"`
	User           *User                  `json:"user,omitempty"`
	Token          string                 `json:"token"`
	Version        uint                   `json:"version"`
	Message        *Message               `json:"message,omitempty"`
	AppPermissions string                 `json:"app_permissions,omitempty"`
	Locale         string                 `json:"locale,omitempty"`
	GuildLocale    string                 `json:"guild_locale,omitempty"`
	Context        InteractionContextType `json:"context,omitempty"`
	Entitlements   []interface{}          `json:"entitlements,omitempty"` // unimplemented.
}

// IsDM reports whether the interaction was invoked outside a guild.
func (i Interaction) IsDM() bool {
	return i.GuildID == 0
}

// Invoker returns the user that triggered the interaction. Guild
// interactions carry the user inside the member object.
func (i Interaction) Invoker() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

type InteractionResponseType = uint

const (
	InteractionResponseTypePong InteractionResponseType = 1
	// Types 2 and 3 are deprecated by Discord and kept for completeness.
	InteractionResponseTypeAcknowledge                          InteractionResponseType = 2
	InteractionResponseTypeChannelMessage                       InteractionResponseType = 3
	InteractionResponseTypeChannelMessageWithSource             InteractionResponseType = 4
	InteractionResponseTypeDeferredChannelMessageWithSource     InteractionResponseType = 5
	InteractionResponseTypeDeferredUpdateMessage                InteractionResponseType = 6
	InteractionResponseTypeUpdateMessage                        InteractionResponseType = 7
	InteractionResponseTypeApplicationCommandAutoCompleteResult InteractionResponseType = 8
	InteractionResponseTypeModal                                InteractionResponseType = 9
	InteractionResponseTypePremiumRequired                      InteractionResponseType = 10
	InteractionResponseTypeLaunchActivity                       InteractionResponseType = 12
)

type InteractionResponseDataMessage struct {
	Tts             bool        `json:"tts,omitempty"`
	Content         string      `json:"content,omitempty"`
	Flags           MessageFlag `json:"flags,omitempty"`
	Embeds          interface{} `json:"embeds,omitempty"`           // unimplemented.
	AllowedMentions interface{} `json:"allowed_mentions,omitempty"` // unimplemented.
	Components      interface{} `json:"components,omitempty"`       // unimplemented.
	Attachments     interface{} `json:"attachments,omitempty"`      // unimplemented.
	Poll            interface{} `json:"poll,omitempty"`             // unimplemented.
}

type InteractionResponse struct {
	Type InteractionResponseType         `json:"type"`
	Data *InteractionResponseDataMessage `json:"data,omitempty"`
}
