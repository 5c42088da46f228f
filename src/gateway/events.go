package gateway

import (
	"encoding/json"

	"github.com/hendrywilliam/splash/src/structs"
)

// https://discord.com/developers/docs/events/gateway#gateway-intents
type GatewayIntent = int

const (
	GuildsIntent                      GatewayIntent = 1 << 0
	GuildMembersIntent                GatewayIntent = 1 << 1
	GuildModerationIntent             GatewayIntent = 1 << 2
	GuildExpressionIntent             GatewayIntent = 1 << 3
	GuildIntegrationsIntent           GatewayIntent = 1 << 4
	GuildWebhooksIntent               GatewayIntent = 1 << 5
	GuildInvitesIntent                GatewayIntent = 1 << 6
	GuildVoiceStatesIntent            GatewayIntent = 1 << 7
	GuildPresencesIntent              GatewayIntent = 1 << 8
	GuildMessagesIntent               GatewayIntent = 1 << 9
	GuildMessageReactionIntent        GatewayIntent = 1 << 10
	GuildMessageTypingIntent          GatewayIntent = 1 << 11
	DirectMessageIntent               GatewayIntent = 1 << 12
	DirectMessageReactionIntent       GatewayIntent = 1 << 13
	DirectMessageTypingIntent         GatewayIntent = 1 << 14
	MessageContentIntent              GatewayIntent = 1 << 15
	GuildScheduledEventsIntent        GatewayIntent = 1 << 16
	AutoModerationConfigurationIntent GatewayIntent = 1 << 20
	AutoModerationExecutionIntent     GatewayIntent = 1 << 21
	GuildMessagePollsIntent           GatewayIntent = 1 << 24
	DirectMessagePollsIntent          GatewayIntent = 1 << 25
)

// https://discord.com/developers/docs/topics/opcodes-and-status-codes#gateway-gateway-opcodes
type GatewayOpcode = int

const (
	OpcodeDispatch                GatewayOpcode = 0
	OpcodeHeartbeat               GatewayOpcode = 1
	OpcodeIdentify                GatewayOpcode = 2
	OpcodePresenceUpdate          GatewayOpcode = 3
	OpcodeVoiceStateUpdate        GatewayOpcode = 4
	OpcodeResume                  GatewayOpcode = 6
	OpcodeReconnect               GatewayOpcode = 7
	OpcodeRequestGuildMember      GatewayOpcode = 8
	OpcodeInvalidSession          GatewayOpcode = 9
	OpcodeHello                   GatewayOpcode = 10
	OpcodeHeartbeatAck            GatewayOpcode = 11
	OpcodeRequestSoundboardSounds GatewayOpcode = 31
)

type EventName = string

const (
	EventReady             EventName = "READY"
	EventResumed           EventName = "RESUMED"
	EventInteractionCreate EventName = "INTERACTION_CREATE"
	EventMessageCreate     EventName = "MESSAGE_CREATE"
	EventGuildCreate       EventName = "GUILD_CREATE"
)

// RawEvent is a gateway frame as received. D is decoded later, once the
// opcode and event name are known.
type RawEvent struct {
	Op GatewayOpcode   `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  EventName       `json:"t"`
}

// Event is a gateway frame as sent.
type Event struct {
	Op GatewayOpcode `json:"op"`
	D  any           `json:"d"`
}

type HelloEvent struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"` // milliseconds
}

type IdentifyEventProperties struct {
	Os      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type IdentifyEvent struct {
	Token          string                  `json:"token"`
	Properties     IdentifyEventProperties `json:"properties"`
	Compress       bool                    `json:"compress,omitempty"`
	LargeThreshold int                     `json:"large_threshold,omitempty"`
	Presence       *UpdatePresence         `json:"presence,omitempty"`
	Intents        GatewayIntent           `json:"intents"`
}

type ResumeEvent struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

type ActivityType = int

const (
	ActivityTypeGame      ActivityType = 0
	ActivityTypeStreaming ActivityType = 1
	ActivityTypeListening ActivityType = 2
	ActivityTypeWatching  ActivityType = 3
	ActivityTypeCustom    ActivityType = 4
	ActivityTypeCompeting ActivityType = 5
)

// https://discord.com/developers/docs/events/gateway-events#activity-object
type Activity struct {
	Name  string       `json:"name"`
	Type  ActivityType `json:"type"`
	URL   string       `json:"url,omitempty"` // streaming only
	State string       `json:"state,omitempty"`
}

type PresenceStatus = string

const (
	StatusOnline       PresenceStatus = "online"
	StatusDoNotDisturb PresenceStatus = "dnd"
	StatusIdle         PresenceStatus = "idle"
	StatusInvisible    PresenceStatus = "invisible"
	StatusOffline      PresenceStatus = "offline"
)

// https://discord.com/developers/docs/events/gateway-events#update-presence
type UpdatePresence struct {
	Since      *int64         `json:"since"` // unix ms, idle only
	Activities []Activity     `json:"activities"`
	Status     PresenceStatus `json:"status"`
	AFK        bool           `json:"afk"`
}

type ReadyEventApplication struct {
	ID    structs.Snowflake `json:"id"`
	Flags int               `json:"flags"`
}

type ReadyEvent struct {
	V                int                   `json:"v"`
	User             structs.User          `json:"user"`
	SessionID        string                `json:"session_id"`
	ResumeGatewayURL string                `json:"resume_gateway_url"`
	Application      ReadyEventApplication `json:"application"`
}
