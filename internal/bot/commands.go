package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/pkg/util"
)

// commandDefinitions declares the guild slash commands.
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "ticket_close",
			Description: "Close the current ticket",
		},
		{
			Name:        "ticket_delete",
			Description: "Delete the current ticket",
		},
		{
			Name:        "ticket_add",
			Description: "Add a user to the current ticket",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to add",
					Required:    true,
				},
			},
		},
		{
			Name:        "ticket_remove",
			Description: "Remove a user from the current ticket",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to remove",
					Required:    true,
				},
			},
		},
		{
			Name:        "transcript",
			Description: "Generate an HTML transcript of the current ticket",
		},
		{
			Name:        "set_staff",
			Description: "Add a role to the ticket staff set",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to mark as staff",
					Required:    true,
				},
			},
		},
		{
			Name:        "remove_staff",
			Description: "Remove a role from the ticket staff set",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to unmark as staff",
					Required:    true,
				},
			},
		},
		{
			Name:        "set_transcript_channel",
			Description: "Set the channel transcripts are archived to",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Destination channel",
					Required:    true,
				},
			},
		},
		{
			Name:        "search_transcripts",
			Description: "Search archived transcripts",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "Text to look for",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "username",
					Description: "Only transcripts with messages by this user",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "date_from",
					Description: "Earliest date (YYYY-MM-DD)",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "date_to",
					Description: "Latest date (YYYY-MM-DD)",
				},
			},
		},
		{
			Name:        "setup_ticket",
			Description: "Post the ticket intake message",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to post the intake message in (defaults to here)",
				},
			},
		},
		{
			Name:        "add_ticket_buttons",
			Description: "Post another intake button in this channel",
		},
		{
			Name:        "settings",
			Description: "Show ticket system settings",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "cooldown",
					Description: "Set the ticket-creation cooldown in seconds",
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "category",
					Description: "Category new ticket channels are created under",
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "intake_channel",
					Description: "Channel the intake message lives in",
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "transcript_channel",
					Description: "Channel transcripts are archived to",
				},
			},
		},
	}
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		out[opt.Name] = opt
	}
	return out
}

func requireAdmin(actor platform.Member) error {
	if !actor.IsAdmin {
		return util.NewForbidden("You need administrator permissions to use this command.")
	}
	return nil
}

func (b *Bot) requireStaff(actor platform.Member) error {
	if actor.IsAdmin || b.store.IsStaff(actor.RoleIDs) {
		return nil
	}
	return util.NewForbidden("You don't have permission to use this command.")
}

func (b *Bot) cmdTicketClose(ctx context.Context, i *discordgo.InteractionCreate, actor platform.Member, channelID int64) error {
	if _, ok := b.store.Ticket(channelID); !ok {
		return util.NewPrecondition("This command can only be used in a ticket channel.", nil)
	}
	return b.askConfirmation(i, confirmClose, actor, channelID,
		"Are you sure you want to close this ticket?")
}

func (b *Bot) cmdTicketDelete(ctx context.Context, i *discordgo.InteractionCreate, actor platform.Member, channelID int64) error {
	if _, ok := b.store.Ticket(channelID); !ok {
		return util.NewPrecondition("This command can only be used in a ticket channel.", nil)
	}
	return b.askConfirmation(i, confirmDelete, actor, channelID,
		"Are you sure you want to permanently delete this ticket? This cannot be undone.")
}

func (b *Bot) cmdTicketAdd(ctx context.Context, i *discordgo.InteractionCreate, actor platform.Member, channelID int64) error {
	opts := optionMap(i)
	user := opts["user"].UserValue(nil)
	targetID := parseID(user.ID)

	if err := b.lifecycle.AddParticipant(ctx, actor, channelID, targetID); err != nil {
		return err
	}
	b.respondEphemeral(i, fmt.Sprintf("<@%d> has been added to the ticket.", targetID))
	return nil
}

func (b *Bot) cmdTicketRemove(ctx context.Context, i *discordgo.InteractionCreate, actor platform.Member, channelID int64) error {
	opts := optionMap(i)
	user := opts["user"].UserValue(nil)
	targetID := parseID(user.ID)

	if err := b.lifecycle.RemoveParticipant(ctx, actor, channelID, targetID); err != nil {
		return err
	}
	b.respondEphemeral(i, fmt.Sprintf("<@%d> has been removed from the ticket.", targetID))
	return nil
}

func (b *Bot) cmdTranscript(ctx context.Context, i *discordgo.InteractionCreate, actor platform.Member, channelID int64) error {
	if _, err := b.lifecycle.Archive(ctx, actor, channelID); err != nil {
		return err
	}
	b.respondEphemeral(i, "Transcript generated.")
	return nil
}

func (b *Bot) cmdSetStaff(i *discordgo.InteractionCreate, actor platform.Member) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	role := optionMap(i)["role"].RoleValue(nil, "")
	roleID := parseID(role.ID)

	added, err := b.store.AddStaffRole(roleID)
	if err != nil {
		return util.NewStorageError("failed to save staff roles", err)
	}
	if !added {
		b.respondEphemeral(i, fmt.Sprintf("<@&%d> is already a staff role.", roleID))
		return nil
	}
	b.publishStaffRolesChanged(actor)
	b.respondEphemeral(i, fmt.Sprintf("<@&%d> has been added as a staff role.", roleID))
	return nil
}

func (b *Bot) cmdRemoveStaff(i *discordgo.InteractionCreate, actor platform.Member) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	role := optionMap(i)["role"].RoleValue(nil, "")
	roleID := parseID(role.ID)

	removed, err := b.store.RemoveStaffRole(roleID)
	if err != nil {
		return util.NewStorageError("failed to save staff roles", err)
	}
	if !removed {
		b.respondEphemeral(i, fmt.Sprintf("<@&%d> is not a staff role.", roleID))
		return nil
	}
	b.publishStaffRolesChanged(actor)
	b.respondEphemeral(i, fmt.Sprintf("<@&%d> has been removed from the staff roles.", roleID))
	return nil
}

func (b *Bot) publishStaffRolesChanged(actor platform.Member) {
	if b.dispatcher == nil {
		return
	}
	_ = b.dispatcher.Publish(context.Background(), events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventStaffRolesChanged,
		ActorID:   actor.ID,
		Timestamp: time.Now(),
		Payload:   b.store.StaffRoleIDs(),
	})
}

func (b *Bot) cmdSetTranscriptChannel(i *discordgo.InteractionCreate, actor platform.Member) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	channel := optionMap(i)["channel"].ChannelValue(nil)
	channelID := parseID(channel.ID)

	if err := b.store.SetTranscriptChannelID(channelID); err != nil {
		return util.NewStorageError("failed to save transcript channel", err)
	}
	b.respondEphemeral(i, fmt.Sprintf("Transcripts will now be sent to <#%d>.", channelID))
	return nil
}

// searchResultLimit caps how many hits fit in one reply embed.
const searchResultLimit = 10

func (b *Bot) cmdSearchTranscripts(i *discordgo.InteractionCreate, actor platform.Member) error {
	if err := b.requireStaff(actor); err != nil {
		return err
	}

	opts := optionMap(i)
	query := transcript.Query{Limit: searchResultLimit}
	if opt, ok := opts["text"]; ok {
		query.Text = opt.StringValue()
	}
	if opt, ok := opts["username"]; ok {
		query.Username = opt.StringValue()
	}
	if opt, ok := opts["date_from"]; ok {
		from, err := time.Parse("2006-01-02", opt.StringValue())
		if err != nil {
			return util.NewValidationError("date_from must be in YYYY-MM-DD format.", nil)
		}
		query.DateFrom = from
	}
	if opt, ok := opts["date_to"]; ok {
		to, err := time.Parse("2006-01-02", opt.StringValue())
		if err != nil {
			return util.NewValidationError("date_to must be in YYYY-MM-DD format.", nil)
		}
		query.DateTo = to
	}

	results, err := b.searcher.Search(query)
	if err != nil {
		return util.NewInternalError(err)
	}
	if len(results) == 0 {
		b.respondEphemeral(i, "No transcripts matched your search.")
		return nil
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Transcript Search - %d result(s)", len(results)),
		Color: platform.ColorBlue,
	}
	for _, r := range results {
		value := r.Preview
		if value == "" {
			value = "(no preview)"
		}
		name := r.Filename
		if r.HasDate {
			name = fmt.Sprintf("%s (%s)", r.Filename, r.Date.Format("2006-01-02 15:04"))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  name,
			Value: value,
		})
	}
	b.respondEphemeralEmbed(i, embed)
	return nil
}

// settingsCooldownPrefix marks the panel's cooldown adjustment buttons.
const settingsCooldownPrefix = "settings:cd:"

func (b *Bot) cmdSettings(i *discordgo.InteractionCreate, actor platform.Member) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	if err := b.applySettingsOptions(optionMap(i)); err != nil {
		return err
	}

	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{b.settingsEmbed()},
			Components: settingsComponents(),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("could not show settings panel", zap.Error(err))
	}
	return nil
}

// applySettingsOptions persists whichever settings the invocation
// carried as slash options before the panel is drawn.
func (b *Bot) applySettingsOptions(opts map[string]*discordgo.ApplicationCommandInteractionDataOption) error {
	if opt, ok := opts["cooldown"]; ok {
		if err := b.store.SetCooldown(int(opt.IntValue())); err != nil {
			return util.NewStorageError("failed to save cooldown", err)
		}
	}
	if opt, ok := opts["category"]; ok {
		if err := b.store.SetTicketCategoryID(parseID(opt.ChannelValue(nil).ID)); err != nil {
			return util.NewStorageError("failed to save ticket category", err)
		}
	}
	if opt, ok := opts["intake_channel"]; ok {
		if err := b.store.SetTicketChannelID(parseID(opt.ChannelValue(nil).ID)); err != nil {
			return util.NewStorageError("failed to save intake channel", err)
		}
	}
	if opt, ok := opts["transcript_channel"]; ok {
		if err := b.store.SetTranscriptChannelID(parseID(opt.ChannelValue(nil).ID)); err != nil {
			return util.NewStorageError("failed to save transcript channel", err)
		}
	}
	return nil
}

// handleSettingsCooldownClick applies a ±N second adjustment and
// redraws the panel in place.
func (b *Bot) handleSettingsCooldownClick(i *discordgo.InteractionCreate, delta string) {
	actor := memberFromInteraction(i)
	if !actor.IsAdmin {
		b.respondEphemeral(i, "You need administrator permissions to change settings.")
		return
	}

	step, err := strconv.Atoi(delta)
	if err != nil {
		return
	}
	if err := b.store.SetCooldown(b.store.Cooldown() + step); err != nil {
		b.respondEphemeral(i, util.UserFacing(util.NewStorageError("failed to save cooldown", err)))
		return
	}

	err = b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{b.settingsEmbed()},
			Components: settingsComponents(),
		},
	})
	if err != nil {
		b.logger.Warn("could not redraw settings panel", zap.Error(err))
	}
}

func settingsComponents() []discordgo.MessageComponent {
	steps := []int{-10, -5, 5, 10}
	buttons := make([]discordgo.MessageComponent, 0, len(steps))
	for _, step := range steps {
		label := fmt.Sprintf("%+ds", step)
		buttons = append(buttons, discordgo.Button{
			Label:    label,
			Style:    discordgo.SecondaryButton,
			CustomID: fmt.Sprintf("%s%d", settingsCooldownPrefix, step),
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func (b *Bot) settingsEmbed() *discordgo.MessageEmbed {
	staffRoles := b.store.StaffRoleIDs()
	mentions := make([]string, 0, len(staffRoles))
	for _, id := range staffRoles {
		mentions = append(mentions, fmt.Sprintf("<@&%d>", id))
	}
	staffValue := "None configured"
	if len(mentions) > 0 {
		staffValue = strings.Join(mentions, " ")
	}

	open, closed := 0, 0
	for _, t := range b.store.Tickets() {
		if t.IsOpen() {
			open++
		} else {
			closed++
		}
	}

	return &discordgo.MessageEmbed{
		Title: "Ticket System Settings",
		Color: platform.ColorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Staff Roles", Value: staffValue},
			{Name: "Ticket Category", Value: channelOrUnset(b.store.TicketCategoryID()), Inline: true},
			{Name: "Intake Channel", Value: channelOrUnset(b.store.TicketChannelID()), Inline: true},
			{Name: "Transcript Channel", Value: channelOrUnset(b.store.TranscriptChannelID()), Inline: true},
			{Name: "Cooldown", Value: fmt.Sprintf("%d seconds", b.store.Cooldown()), Inline: true},
			{Name: "Tickets", Value: fmt.Sprintf("%d open / %d closed", open, closed), Inline: true},
			{Name: "Tickets Issued", Value: fmt.Sprintf("%d", b.store.TicketCounter()), Inline: true},
		},
	}
}

func channelOrUnset(id int64) string {
	if id == 0 {
		return "Not set"
	}
	return fmt.Sprintf("<#%d>", id)
}
