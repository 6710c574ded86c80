// Package bot owns the Discord-facing command surface: slash command
// registration, interaction dispatch and the persistent intake button.
package bot

import (
	"context"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/store"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/pkg/util"
)

// commandTimeout bounds one command handler invocation.
const commandTimeout = 30 * time.Second

// Bot wires slash commands to the ticket services.
type Bot struct {
	session    *discordgo.Session
	guildID    string
	store      *store.Store
	lifecycle  *service.LifecycleService
	wizard     *service.Wizard
	searcher   *transcript.Searcher
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	logger     *zap.Logger

	confirms *confirmRegistry
	commands []*discordgo.ApplicationCommand
}

// Dependencies bundles collaborators for the bot.
type Dependencies struct {
	Session    *discordgo.Session
	GuildID    string
	Store      *store.Store
	Lifecycle  *service.LifecycleService
	Wizard     *service.Wizard
	Searcher   *transcript.Searcher
	Metrics    *observability.Metrics
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// New constructs the bot around an opened session.
func New(deps Dependencies) *Bot {
	return &Bot{
		session:    deps.Session,
		guildID:    deps.GuildID,
		store:      deps.Store,
		lifecycle:  deps.Lifecycle,
		wizard:     deps.Wizard,
		searcher:   deps.Searcher,
		metrics:    deps.Metrics,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		confirms:   newConfirmRegistry(),
	}
}

// Start registers the slash commands and the interaction handler.
func (b *Bot) Start() error {
	b.session.AddHandler(b.handleInteraction)

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.guildID, commandDefinitions())
	if err != nil {
		return err
	}
	b.commands = registered
	b.logger.Info("registered slash commands", zap.Int("count", len(registered)))
	return nil
}

// Stop removes the registered commands.
func (b *Bot) Stop() {
	for _, cmd := range b.commands {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.guildID, cmd.ID); err != nil {
			b.logger.Warn("could not remove command", zap.String("name", cmd.Name), zap.Error(err))
		}
	}
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(i)
	case discordgo.InteractionMessageComponent:
		b.dispatchComponent(i)
	}
}

func (b *Bot) dispatchCommand(i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in command handler",
				zap.String("command", name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			b.respondEphemeral(i, "An error occurred while processing your command.")
			err = util.NewInternalError(nil)
		}
		b.metrics.RecordCommand(name, err == nil)
	}()

	actor := memberFromInteraction(i)
	channelID := parseID(i.ChannelID)

	switch name {
	case "ticket_close":
		err = b.cmdTicketClose(ctx, i, actor, channelID)
	case "ticket_delete":
		err = b.cmdTicketDelete(ctx, i, actor, channelID)
	case "ticket_add":
		err = b.cmdTicketAdd(ctx, i, actor, channelID)
	case "ticket_remove":
		err = b.cmdTicketRemove(ctx, i, actor, channelID)
	case "transcript":
		err = b.cmdTranscript(ctx, i, actor, channelID)
	case "set_staff":
		err = b.cmdSetStaff(i, actor)
	case "remove_staff":
		err = b.cmdRemoveStaff(i, actor)
	case "set_transcript_channel":
		err = b.cmdSetTranscriptChannel(i, actor)
	case "search_transcripts":
		err = b.cmdSearchTranscripts(i, actor)
	case "setup_ticket":
		err = b.cmdSetupTicket(ctx, i, actor)
	case "add_ticket_buttons":
		err = b.cmdAddTicketButtons(ctx, i, actor, channelID)
	case "settings":
		err = b.cmdSettings(i, actor)
	default:
		b.logger.Warn("unknown command", zap.String("name", name))
	}

	if err != nil {
		b.logger.Info("command failed",
			zap.String("command", name),
			zap.Int64("actor_id", actor.ID),
			zap.Error(err))
		b.respondEphemeral(i, util.UserFacing(err))
	}
}

func (b *Bot) dispatchComponent(i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	switch {
	case customID == intakeCustomID:
		b.handleIntakeClick(i)
	case b.confirms.owns(customID):
		b.handleConfirmClick(i)
	case strings.HasPrefix(customID, ticketControlPrefix):
		b.handleTicketControlClick(i, strings.TrimPrefix(customID, ticketControlPrefix))
	case strings.HasPrefix(customID, settingsCooldownPrefix):
		b.handleSettingsCooldownClick(i, strings.TrimPrefix(customID, settingsCooldownPrefix))
	}
}

// memberFromInteraction flattens the SDK member into the core's view.
func memberFromInteraction(i *discordgo.InteractionCreate) platform.Member {
	var m platform.Member
	if i.Member != nil && i.Member.User != nil {
		m.ID = parseID(i.Member.User.ID)
		m.Username = i.Member.User.Username
		m.IsAdmin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
		for _, roleID := range i.Member.Roles {
			m.RoleIDs = append(m.RoleIDs, parseID(roleID))
		}
	} else if i.User != nil {
		m.ID = parseID(i.User.ID)
		m.Username = i.User.Username
	}
	return m
}

func parseID(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("could not respond to interaction", zap.Error(err))
	}
}

func (b *Bot) respondEphemeralEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("could not respond to interaction", zap.Error(err))
	}
}
