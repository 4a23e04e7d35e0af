// Package platform defines the chat-platform surface the moderation
// services depend on. The bot layer provides Discord-backed
// implementations; tests substitute fakes.
package platform

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// DMStatus classifies the outcome of a direct-message send.
type DMStatus int

const (
	// DMSent means the message was delivered.
	DMSent DMStatus = iota
	// DMForbidden means the user blocks direct messages.
	DMForbidden
	// DMFailed means delivery failed for another reason.
	DMFailed
)

// Field is a titled section of an embed-style message.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a platform-neutral rich message.
type Message struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
	// Image holds PNG bytes attached and displayed inline, if any.
	Image []byte
	// ImageName is the attachment filename for Image.
	ImageName string
}

// RoleProvider manages guild role membership.
type RoleProvider interface {
	// HasRole reports whether the member currently holds the role.
	HasRole(ctx context.Context, guildID, userID, roleID snowflake.ID) (bool, error)
	// GrantRole adds the role to the member.
	GrantRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error
	// RevokeRole removes the role from the member.
	RevokeRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error
	// MembersWithRole counts members holding the role.
	MembersWithRole(ctx context.Context, guildID, roleID snowflake.ID) (int, error)
}

// Messenger delivers rich messages to users and channels.
type Messenger interface {
	// SendDirect delivers a message to the user's DM channel and
	// reports whether it arrived. A DMForbidden or DMFailed status is
	// not an error; err is reserved for unexpected failures.
	SendDirect(ctx context.Context, userID snowflake.ID, msg Message) (DMStatus, error)
	// SendToChannel posts a message to a channel. A positive
	// deleteAfter schedules best-effort deletion.
	SendToChannel(ctx context.Context, channelID snowflake.ID, msg Message, deleteAfter time.Duration) error
}

// GuildScanner resolves which managed guilds a user belongs to.
type GuildScanner interface {
	// GuildsWithMember returns the managed guild IDs the user is a
	// member of.
	GuildsWithMember(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error)
}

// Renderer produces challenge images.
type Renderer interface {
	// RenderCaptchaImage draws the code into a PNG.
	RenderCaptchaImage(code string) ([]byte, error)
}
