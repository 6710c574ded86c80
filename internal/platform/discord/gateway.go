// Package discord implements the platform interfaces on top of the
// Discord gateway via discordgo. All snowflake conversion between the
// SDK's string IDs and the core's int64 IDs happens here.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

// defaultCategoryName is provisioned when no ticket category is configured.
const defaultCategoryName = "Support Tickets"

// Gateway adapts a discordgo session to the platform.Gateway surface.
type Gateway struct {
	session *discordgo.Session
	guildID string
	logger  *zap.Logger
}

// NewGateway wraps an opened session scoped to one guild.
func NewGateway(session *discordgo.Session, guildID string, logger *zap.Logger) *Gateway {
	return &Gateway{session: session, guildID: guildID, logger: logger}
}

func snowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseSnowflake(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}

// mapErr folds Discord permission denials onto the platform sentinel so
// the core can report them without knowing about REST errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %v", platform.ErrForbidden, err)
	}
	return err
}

// CreateTicketChannel provisions a private text channel under the
// category, visible to the owner and staff roles only. A zero category
// finds or creates the default one and reports its ID back.
func (g *Gateway) CreateTicketChannel(ctx context.Context, name string, categoryID, ownerID int64, staffRoleIDs []int64) (platform.Channel, int64, error) {
	if categoryID == 0 {
		id, err := g.ensureCategory(ctx)
		if err != nil {
			return platform.Channel{}, 0, mapErr(err)
		}
		categoryID = id
	}

	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   g.guildID, // @everyone shares the guild ID
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    snowflake(ownerID),
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory | discordgo.PermissionAttachFiles,
		},
		{
			ID:    g.session.State.User.ID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory | discordgo.PermissionManageChannels,
		},
	}
	for _, roleID := range staffRoleIDs {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    snowflake(roleID),
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
		})
	}

	channel, err := g.session.GuildChannelCreateComplex(g.guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             snowflake(categoryID),
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Channel{}, 0, mapErr(err)
	}
	return platform.Channel{ID: parseSnowflake(channel.ID), Name: channel.Name}, categoryID, nil
}

// ensureCategory finds the default ticket category or creates it.
func (g *Gateway) ensureCategory(ctx context.Context) (int64, error) {
	channels, err := g.session.GuildChannels(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && ch.Name == defaultCategoryName {
			return parseSnowflake(ch.ID), nil
		}
	}
	category, err := g.session.GuildChannelCreateComplex(g.guildID, discordgo.GuildChannelCreateData{
		Name: defaultCategoryName,
		Type: discordgo.ChannelTypeGuildCategory,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	g.logger.Info("provisioned ticket category", zap.String("category_id", category.ID))
	return parseSnowflake(category.ID), nil
}

// ChannelName resolves the current channel name.
func (g *Gateway) ChannelName(ctx context.Context, channelID int64) (string, error) {
	channel, err := g.session.Channel(snowflake(channelID), discordgo.WithContext(ctx))
	if err != nil {
		return "", mapErr(err)
	}
	return channel.Name, nil
}

// RenameChannel changes the channel name.
func (g *Gateway) RenameChannel(ctx context.Context, channelID int64, name string) error {
	_, err := g.session.ChannelEdit(snowflake(channelID), &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return mapErr(err)
}

// DeleteChannel removes the channel with an audit-log reason.
func (g *Gateway) DeleteChannel(ctx context.Context, channelID int64, reason string) error {
	_, err := g.session.ChannelDelete(snowflake(channelID), discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return mapErr(err)
}

// GrantAccess lets a user view and write in the channel.
func (g *Gateway) GrantAccess(ctx context.Context, channelID, userID int64) error {
	err := g.session.ChannelPermissionSet(
		snowflake(channelID), snowflake(userID), discordgo.PermissionOverwriteTypeMember,
		discordgo.PermissionViewChannel|discordgo.PermissionSendMessages|discordgo.PermissionReadMessageHistory,
		0, discordgo.WithContext(ctx))
	return mapErr(err)
}

// RevokeAccess removes a user's overwrite from the channel.
func (g *Gateway) RevokeAccess(ctx context.Context, channelID, userID int64) error {
	err := g.session.ChannelPermissionDelete(snowflake(channelID), snowflake(userID), discordgo.WithContext(ctx))
	return mapErr(err)
}

// SendMessage posts plain text.
func (g *Gateway) SendMessage(ctx context.Context, channelID int64, content string) error {
	_, err := g.session.ChannelMessageSend(snowflake(channelID), content, discordgo.WithContext(ctx))
	return mapErr(err)
}

// SendEmbed posts an embed with optional leading content.
func (g *Gateway) SendEmbed(ctx context.Context, channelID int64, content string, embed platform.Embed) error {
	_, err := g.session.ChannelMessageSendComplex(snowflake(channelID), &discordgo.MessageSend{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{toMessageEmbed(embed)},
	}, discordgo.WithContext(ctx))
	return mapErr(err)
}

// SendFile uploads a local file with a text note.
func (g *Gateway) SendFile(ctx context.Context, channelID int64, content, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = g.session.ChannelMessageSendComplex(snowflake(channelID), &discordgo.MessageSend{
		Content: content,
		Files:   []*discordgo.File{{Name: filepath.Base(filePath), Reader: f}},
	}, discordgo.WithContext(ctx))
	return mapErr(err)
}

// SendDirectMessage opens (or reuses) the user's DM channel and posts an
// embed there.
func (g *Gateway) SendDirectMessage(ctx context.Context, userID int64, embed platform.Embed) error {
	dm, err := g.session.UserChannelCreate(snowflake(userID), discordgo.WithContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	_, err = g.session.ChannelMessageSendEmbed(dm.ID, toMessageEmbed(embed), discordgo.WithContext(ctx))
	return mapErr(err)
}

// History pages through the full channel log and returns it oldest
// first. A permission denial yields an empty history.
func (g *Gateway) History(ctx context.Context, channelID int64) ([]platform.Message, error) {
	var collected []*discordgo.Message
	beforeID := ""
	for {
		batch, err := g.session.ChannelMessages(snowflake(channelID), 100, beforeID, "", "", discordgo.WithContext(ctx))
		if err != nil {
			if errors.Is(mapErr(err), platform.ErrForbidden) {
				g.logger.Warn("no permission to read channel history", zap.Int64("channel_id", channelID))
				return nil, nil
			}
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		collected = append(collected, batch...)
		beforeID = batch[len(batch)-1].ID
		if len(batch) < 100 {
			break
		}
	}

	// ChannelMessages returns newest first.
	messages := make([]platform.Message, 0, len(collected))
	for i := len(collected) - 1; i >= 0; i-- {
		m := collected[i]
		msg := platform.Message{
			ID:        parseSnowflake(m.ID),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
		if m.Author != nil {
			msg.AuthorID = parseSnowflake(m.Author.ID)
			msg.AuthorName = m.Author.Username
			msg.AvatarURL = m.Author.AvatarURL("")
		}
		for _, a := range m.Attachments {
			msg.Attachments = append(msg.Attachments, platform.Attachment{FileName: a.Filename, URL: a.URL})
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func toMessageEmbed(embed platform.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       embed.Color,
	}
	for _, f := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if embed.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: embed.Footer}
	}
	return out
}
