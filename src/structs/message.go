package structs

import "time"

type MessageFlag = int

const (
	MessageFlagCrossposted          MessageFlag = 1 << 0
	MessageFlagSuppressEmbeds       MessageFlag = 1 << 2
	MessageFlagEphemeral            MessageFlag = 1 << 6
	MessageFlagLoading              MessageFlag = 1 << 7
	MessageFlagSuppressNotification MessageFlag = 1 << 12
)

// Represent a message sent in a channel within Discord.
// https://discord.com/developers/docs/resources/message
type Message struct {
	ID              Snowflake   `json:"id"`
	ChannelID       Snowflake   `json:"channel_id"`
	GuildID         Snowflake   `json:"guild_id,omitempty"`
	Author          User        `json:"author"`
	Member          *Member     `json:"member,omitempty"`
	Content         string      `json:"content"`
	Timestamp       time.Time   `json:"timestamp"`
	EditedTimestamp *time.Time  `json:"edited_timestamp,omitempty"`
	TTS             bool        `json:"tts"`
	MentionEveryone bool        `json:"mention_everyone"`
	Mentions        []User      `json:"mentions,omitempty"`
	MentionRoles    []Snowflake `json:"mention_roles,omitempty"`
	Pinned          bool        `json:"pinned"`
	WebhookID       Snowflake   `json:"webhook_id,omitempty"`
	Type            int         `json:"type"`
	ApplicationID   Snowflake   `json:"application_id,omitempty"`
	Flags           MessageFlag `json:"flags,omitempty"`
	Nonce           any         `json:"nonce,omitempty"`
	Attachments     any         `json:"attachments,omitempty"` // unimplemented
	Embeds          any         `json:"embeds,omitempty"`      // unimplemented
	Reactions       any         `json:"reactions,omitempty"`   // unimplemented
	Components      any         `json:"components,omitempty"`  // unimplemented
}

// IsEphemeral reports whether only the invoking user can see the message.
func (m Message) IsEphemeral() bool {
	return m.Flags&MessageFlagEphemeral != 0
}
