package structs

type AppCmdType = uint8

const (
	AppCmdTypeChatInput  AppCmdType = 1
	AppCmdTypeUser       AppCmdType = 2
	AppCmdTypeMessage    AppCmdType = 3
	AppPrimaryEntryPoint AppCmdType = 4
)

type AppCmdIntegrationType = uint8

const (
	AppIntegrationTypeGuildInstall AppCmdIntegrationType = 0
	AppIntegrationTypeUserInstall  AppCmdIntegrationType = 1
)

type AppCmdInteractionCtxType = uint8

const (
	AppInteractionContextTypeGuild          AppCmdInteractionCtxType = 0
	AppInteractionContextTypeBotDM          AppCmdInteractionCtxType = 1
	AppInteractionContextTypePrivateChannel AppCmdInteractionCtxType = 2
)

type AppCmdOptionType = uint8

const (
	AppCmdOptionTypeSubCommand      AppCmdOptionType = 1
	AppCmdOptionTypeSubCommandGroup AppCmdOptionType = 2
	AppCmdOptionTypeString          AppCmdOptionType = 3
	AppCmdOptionTypeInteger         AppCmdOptionType = 4
	AppCmdOptionTypeBoolean         AppCmdOptionType = 5
	AppCmdOptionTypeUser            AppCmdOptionType = 6
	AppCmdOptionTypeChannel         AppCmdOptionType = 7
	AppCmdOptionTypeRole            AppCmdOptionType = 8
	AppCmdOptionTypeMentionable     AppCmdOptionType = 9
	AppCmdOptionTypeNumber          AppCmdOptionType = 10
	AppCmdOptionTypeAttachment      AppCmdOptionType = 11
)

type AppCmdOptionChoice struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// https://discord.com/developers/docs/interactions/application-commands#application-command-object-application-command-option-structure
type AppCmdOption struct {
	Type         AppCmdOptionType     `json:"type"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Required     bool                 `json:"required,omitempty"`
	Choices      []AppCmdOptionChoice `json:"choices,omitempty"`
	Options      []AppCmdOption       `json:"options,omitempty"`
	ChannelTypes []ChannelType        `json:"channel_types,omitempty"`
	MinValue     *float64             `json:"min_value,omitempty"`
	MaxValue     *float64             `json:"max_value,omitempty"`
	Autocomplete bool                 `json:"autocomplete,omitempty"`
}

type AppCmd struct {
	ID                       Snowflake                  `json:"id,omitempty"`
	Type                     AppCmdType                 `json:"type,omitempty"`
	ApplicationID            Snowflake                  `json:"application_id,omitempty"`
	GuildID                  Snowflake                  `json:"guild_id,omitempty"`
	Name                     string                     `json:"name"`
	NameLocalizations        map[string]string          `json:"name_localizations,omitempty"`
	Description              string                     `json:"description"`
	DescriptionLocalizations map[string]string          `json:"description_localizations,omitempty"`
	Options                  []AppCmdOption             `json:"options,omitempty"`
	DefaultMemberPermissions *string                    `json:"default_member_permissions,omitempty"`
	IntegrationTypes         []AppCmdIntegrationType    `json:"integration_types,omitempty"`
	Contexts                 []AppCmdInteractionCtxType `json:"contexts,omitempty"`
	Nsfw                     bool                       `json:"nsfw,omitempty"`
	Version                  Snowflake                  `json:"version,omitempty"`
}
