package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/platform"
)

// cannotSendToUser is Discord's JSON error code for closed DMs.
const cannotSendToUser = 50007

const memberPageSize = 1000

// restRoleProvider implements platform.RoleProvider over the Discord
// REST API.
type restRoleProvider struct {
	rest rest.Rest
}

func newRestRoleProvider(r rest.Rest) *restRoleProvider {
	return &restRoleProvider{rest: r}
}

func (p *restRoleProvider) HasRole(_ context.Context, guildID, userID, roleID snowflake.ID) (bool, error) {
	member, err := p.rest.GetMember(guildID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get member: %w", err)
	}

	for _, id := range member.RoleIDs {
		if id == roleID {
			return true, nil
		}
	}

	return false, nil
}

func (p *restRoleProvider) GrantRole(_ context.Context, guildID, userID, roleID snowflake.ID) error {
	if err := p.rest.AddMemberRole(guildID, userID, roleID); err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}

	return nil
}

func (p *restRoleProvider) RevokeRole(_ context.Context, guildID, userID, roleID snowflake.ID) error {
	if err := p.rest.RemoveMemberRole(guildID, userID, roleID); err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}

	return nil
}

func (p *restRoleProvider) MembersWithRole(_ context.Context, guildID, roleID snowflake.ID) (int, error) {
	count := 0
	after := snowflake.ID(0)

	for {
		members, err := p.rest.GetMembers(guildID, memberPageSize, after)
		if err != nil {
			return 0, fmt.Errorf("failed to list members: %w", err)
		}

		for _, member := range members {
			for _, id := range member.RoleIDs {
				if id == roleID {
					count++
					break
				}
			}
		}

		if len(members) < memberPageSize {
			return count, nil
		}

		after = members[len(members)-1].User.ID
	}
}

// restMessenger implements platform.Messenger over the Discord REST
// API, translating platform messages into embeds.
type restMessenger struct {
	rest   rest.Rest
	logger *zap.Logger
}

func newRestMessenger(r rest.Rest, logger *zap.Logger) *restMessenger {
	return &restMessenger{rest: r, logger: logger.Named("messenger")}
}

func (m *restMessenger) SendDirect(_ context.Context, userID snowflake.ID, msg platform.Message) (platform.DMStatus, error) {
	channel, err := m.rest.CreateDMChannel(userID)
	if err != nil {
		if isDMForbidden(err) {
			return platform.DMForbidden, nil
		}

		return platform.DMFailed, fmt.Errorf("failed to create DM channel: %w", err)
	}

	if _, err := m.rest.CreateMessage(channel.ID(), buildMessage(msg)); err != nil {
		if isDMForbidden(err) {
			return platform.DMForbidden, nil
		}

		m.logger.Warn("Failed to send DM",
			zap.Uint64("userID", uint64(userID)), zap.Error(err))

		return platform.DMFailed, nil
	}

	return platform.DMSent, nil
}

func (m *restMessenger) SendToChannel(_ context.Context, channelID snowflake.ID, msg platform.Message, deleteAfter time.Duration) error {
	message, err := m.rest.CreateMessage(channelID, buildMessage(msg))
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	if deleteAfter > 0 {
		messageID := message.ID

		time.AfterFunc(deleteAfter, func() {
			if err := m.rest.DeleteMessage(channelID, messageID); err != nil {
				m.logger.Debug("Failed to delete scheduled message",
					zap.Uint64("messageID", uint64(messageID)), zap.Error(err))
			}
		})
	}

	return nil
}

// buildMessage translates a platform message into a Discord embed,
// attaching the image inline when present.
func buildMessage(msg platform.Message) discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitle(msg.Title).
		SetDescription(msg.Description).
		SetColor(msg.Color)

	for _, field := range msg.Fields {
		embed.AddField(field.Name, field.Value, field.Inline)
	}

	if msg.Footer != "" {
		embed.SetFooter(msg.Footer, "")
	}

	builder := discord.NewMessageCreateBuilder()

	if len(msg.Image) > 0 {
		name := msg.ImageName
		if name == "" {
			name = "image.png"
		}

		embed.SetImage("attachment://" + name)
		builder.SetFiles(discord.NewFile(name, "", bytes.NewReader(msg.Image)))
	}

	return builder.SetEmbeds(embed.Build()).Build()
}

// configScanner resolves membership against the statically configured
// guild list.
type configScanner struct {
	rest     rest.Rest
	guildIDs []snowflake.ID
	logger   *zap.Logger
}

func newConfigScanner(r rest.Rest, guildIDs []snowflake.ID, logger *zap.Logger) *configScanner {
	return &configScanner{rest: r, guildIDs: guildIDs, logger: logger.Named("scanner")}
}

func (s *configScanner) GuildsWithMember(_ context.Context, userID snowflake.ID) ([]snowflake.ID, error) {
	var guilds []snowflake.ID

	for _, guildID := range s.guildIDs {
		if _, err := s.rest.GetMember(guildID, userID); err != nil {
			s.logger.Debug("Member lookup failed",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("userID", uint64(userID)),
				zap.Error(err))

			continue
		}

		guilds = append(guilds, guildID)
	}

	return guilds, nil
}

func isDMForbidden(err error) bool {
	var restErr *rest.Error
	if !errors.As(err, &restErr) {
		return false
	}

	if restErr.Code == cannotSendToUser {
		return true
	}

	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden
}
