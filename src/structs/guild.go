package structs

// https://discord.com/developers/docs/resources/guild#guild-object
type Guild struct {
	ID                       Snowflake `json:"id"`
	Name                     string    `json:"name"`
	Icon                     string    `json:"icon,omitempty"`
	Splash                   string    `json:"splash,omitempty"`
	OwnerID                  Snowflake `json:"owner_id"`
	AFKChannelID             Snowflake `json:"afk_channel_id,omitempty"`
	AFKTimeout               int       `json:"afk_timeout"`
	VerificationLevel        int       `json:"verification_level"`
	DefaultMessageNotifs     int       `json:"default_message_notifications"`
	ExplicitContentFilter    int       `json:"explicit_content_filter"`
	Roles                    []Role    `json:"roles"`
	Features                 []string  `json:"features"`
	MFALevel                 int       `json:"mfa_level"`
	SystemChannelID          Snowflake `json:"system_channel_id,omitempty"`
	Description              string    `json:"description,omitempty"`
	PremiumTier              int       `json:"premium_tier"`
	PremiumSubscriptionCount int       `json:"premium_subscription_count,omitempty"`
	PreferredLocale          string    `json:"preferred_locale"`
	ApproximateMemberCount   int       `json:"approximate_member_count,omitempty"`
	// Set on guilds delivered in READY before GUILD_CREATE arrives.
	Unavailable bool `json:"unavailable,omitempty"`
}

// Role returns the guild role with the given id.
func (g Guild) Role(id Snowflake) (Role, bool) {
	for _, r := range g.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// https://discord.com/developers/docs/topics/permissions#role-object
type Role struct {
	ID           Snowflake `json:"id"`
	Name         string    `json:"name"`
	Color        int       `json:"color"`
	Hoist        bool      `json:"hoist"`
	Icon         string    `json:"icon,omitempty"`
	UnicodeEmoji string    `json:"unicode_emoji,omitempty"`
	Position     int       `json:"position"`
	Permissions  string    `json:"permissions"`
	Managed      bool      `json:"managed"`
	Mentionable  bool      `json:"mentionable"`
	Tags         any       `json:"tags,omitempty"` // unimplemented
}
