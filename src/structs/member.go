package structs

import "time"

type GuildMemberFlag = int

const (
	GuildMemberFlagDidRejoin                GuildMemberFlag = 1 << 0
	GuildMemberCompletedOnboarding          GuildMemberFlag = 1 << 1
	GuildMemberByPassesVerification         GuildMemberFlag = 1 << 2
	GuildMemberStartedOnboarding            GuildMemberFlag = 1 << 3
	GuildMemberIsGuest                      GuildMemberFlag = 1 << 4
	GuildMemberStartedHomeActions           GuildMemberFlag = 1 << 5
	GuildMemberCompletedHomeActions         GuildMemberFlag = 1 << 6
	GuildMemberAutomodQuarantinedUsername   GuildMemberFlag = 1 << 7
	GuildMemberDMSettingsUpsellAcknowledged GuildMemberFlag = 1 << 9
)

// https://discord.com/developers/docs/resources/guild#guild-member-object
type Member struct {
	User         *User           `json:"user,omitempty"`
	Nick         string          `json:"nick,omitempty"`
	Avatar       string          `json:"avatar,omitempty"`
	Banner       string          `json:"banner,omitempty"`
	Roles        []Snowflake     `json:"roles"`
	JoinedAt     time.Time       `json:"joined_at"`
	PremiumSince *time.Time      `json:"premium_since,omitempty"`
	Deaf         bool            `json:"deaf"`
	Mute         bool            `json:"mute"`
	Flags        GuildMemberFlag `json:"flags"`
	Pending      bool            `json:"pending,omitempty"`
	// Only present on members delivered with an interaction.
	Permissions string `json:"permissions,omitempty"`
}

// DisplayName prefers the guild nickname, then the global name, then the
// username.
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

// HasRole reports whether the member has the given role.
func (m Member) HasRole(roleID Snowflake) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}
