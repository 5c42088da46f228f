package structs

import (
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

// Snowflake is Discord's 64-bit identifier. The creation time of any
// object can be read back with Snowflake.Time().
type Snowflake = snowflake.ID

type UserFlag = int

const (
	UserFlagStaff               UserFlag = 1 << 0
	UserFlagPartner             UserFlag = 1 << 1
	UserFlagHypesquad           UserFlag = 1 << 2
	UserFlagVerifiedBot         UserFlag = 1 << 16
	UserFlagBotHTTPInteractions UserFlag = 1 << 19
)

type PremiumType = int

const (
	PremiumTypeNone         PremiumType = 0
	PremiumTypeNitroClassic PremiumType = 1
	PremiumTypeNitro        PremiumType = 2
	PremiumTypeNitroBasic   PremiumType = 3
)

// https://discord.com/developers/docs/resources/user#user-object
type User struct {
	ID                   Snowflake   `json:"id"`
	Username             string      `json:"username"`
	Discriminator        string      `json:"discriminator"`
	GlobalName           string      `json:"global_name,omitempty"`
	Avatar               string      `json:"avatar,omitempty"`
	Bot                  bool        `json:"bot,omitempty"`
	System               bool        `json:"system,omitempty"`
	MFAEnabled           bool        `json:"mfa_enabled,omitempty"`
	Locale               string      `json:"locale,omitempty"`
	Verified             bool        `json:"verified,omitempty"`
	Flags                UserFlag    `json:"flags,omitempty"`
	PremiumType          PremiumType `json:"premium_type,omitempty"`
	PublicFlags          UserFlag    `json:"public_flags,omitempty"`
	AvatarDecorationData interface{} `json:"avatar_decoration_data,omitempty"` // unimplemented.
}

// String returns the user's tag. Users migrated to unique usernames
// carry the "0" discriminator and are shown without it.
func (u User) String() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return fmt.Sprintf("%s#%s", u.Username, u.Discriminator)
}

// Mention returns the markdown that pings the user.
func (u User) Mention() string {
	return fmt.Sprintf("<@%s>", u.ID)
}
