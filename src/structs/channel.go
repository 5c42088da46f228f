package structs

type ChannelType = int

const (
	ChannelTypeGuildText          ChannelType = 0
	ChannelTypeDM                 ChannelType = 1
	ChannelTypeGuildVoice         ChannelType = 2
	ChannelTypeGroupDM            ChannelType = 3
	ChannelTypeGuildCategory      ChannelType = 4
	ChannelTypeGuildAnnouncement  ChannelType = 5
	ChannelTypeAnnouncementThread ChannelType = 10
	ChannelTypePublicThread       ChannelType = 11
	ChannelTypePrivateThread      ChannelType = 12
	ChannelTypeGuildStageVoice    ChannelType = 13
	ChannelTypeGuildForum         ChannelType = 15
)

// https://discord.com/developers/docs/resources/channel#channel-object
type Channel struct {
	ID               Snowflake   `json:"id"`
	Type             ChannelType `json:"type"`
	GuildID          Snowflake   `json:"guild_id,omitempty"`
	Position         int         `json:"position,omitempty"`
	Name             string      `json:"name,omitempty"`
	Topic            string      `json:"topic,omitempty"`
	NSFW             bool        `json:"nsfw,omitempty"`
	LastMessageID    Snowflake   `json:"last_message_id,omitempty"`
	RateLimitPerUser int         `json:"rate_limit_per_user,omitempty"`
	Recipients       []User      `json:"recipients,omitempty"`
	ParentID         Snowflake   `json:"parent_id,omitempty"`
	Permissions      string      `json:"permissions,omitempty"`
}

// IsThread reports whether the channel is one of the thread types.
func (c Channel) IsThread() bool {
	switch c.Type {
	case ChannelTypeAnnouncementThread, ChannelTypePublicThread, ChannelTypePrivateThread:
		return true
	}
	return false
}
