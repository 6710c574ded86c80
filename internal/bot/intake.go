package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/pkg/util"
)

// intakeCustomID marks the persistent "Open Ticket" button. It is
// stable across restarts so old intake messages keep working.
const intakeCustomID = "intake:open"

func intakeMessage() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Need Help?",
			Description: "Click the button below to open a support ticket. A private channel will be created for you.",
			Color:       platform.ColorBlue,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Open Ticket",
					Style:    discordgo.PrimaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "🎫"},
					CustomID: intakeCustomID,
				},
			}},
		},
	}
}

func (b *Bot) cmdSetupTicket(ctx context.Context, i *discordgo.InteractionCreate, actor platform.Member) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	targetChannel := i.ChannelID
	if opt, ok := optionMap(i)["channel"]; ok {
		targetChannel = opt.ChannelValue(nil).ID
	}

	msg, err := b.session.ChannelMessageSendComplex(targetChannel, intakeMessage(), discordgo.WithContext(ctx))
	if err != nil {
		return util.NewCollaboratorError("I can't post in that channel.", err)
	}

	channelID := parseID(targetChannel)
	if err := b.store.SetTicketChannelID(channelID); err != nil {
		return util.NewStorageError("failed to save intake channel", err)
	}
	if err := b.store.SetIntakeMessage(channelID, parseID(msg.ID)); err != nil {
		return util.NewStorageError("failed to save intake message", err)
	}

	b.respondEphemeral(i, fmt.Sprintf("Ticket intake message posted in <#%d>.", channelID))
	return nil
}

// ticketControlPrefix marks the close/transcript action row posted
// inside ticket channels.
const ticketControlPrefix = "ticketctl:"

func (b *Bot) cmdAddTicketButtons(ctx context.Context, i *discordgo.InteractionCreate, actor platform.Member, channelID int64) error {
	if err := b.requireStaff(actor); err != nil {
		return err
	}
	if _, ok := b.store.Ticket(channelID); !ok {
		return util.NewPrecondition("This command can only be used in a ticket channel.", nil)
	}

	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Ticket Actions",
			Description: "Use the buttons below to manage this ticket.",
			Color:       platform.ColorBlue,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Close Ticket",
					Style:    discordgo.DangerButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "🔒"},
					CustomID: ticketControlPrefix + "close",
				},
				discordgo.Button{
					Label:    "Transcript",
					Style:    discordgo.SecondaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "📄"},
					CustomID: ticketControlPrefix + "transcript",
				},
			}},
		},
	}
	if _, err := b.session.ChannelMessageSendComplex(i.ChannelID, msg, discordgo.WithContext(ctx)); err != nil {
		return util.NewCollaboratorError("I can't post in this channel.", err)
	}
	b.respondEphemeral(i, "Ticket action buttons posted.")
	return nil
}

// handleTicketControlClick services the in-channel action row. Close
// goes through the usual confirmation; transcript runs immediately.
func (b *Bot) handleTicketControlClick(i *discordgo.InteractionCreate, action string) {
	actor := memberFromInteraction(i)
	channelID := parseID(i.ChannelID)

	switch action {
	case "close":
		if _, ok := b.store.Ticket(channelID); !ok {
			b.respondEphemeral(i, "This button only works in a ticket channel.")
			return
		}
		if err := b.askConfirmation(i, confirmClose, actor, channelID,
			"Are you sure you want to close this ticket?"); err != nil {
			b.logger.Warn("could not ask for close confirmation", zap.Error(err))
		}
	case "transcript":
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if _, err := b.lifecycle.Archive(ctx, actor, channelID); err != nil {
			b.respondEphemeral(i, util.UserFacing(err))
			return
		}
		b.respondEphemeral(i, "Transcript generated.")
	}
}

// handleIntakeClick starts a wizard run for the clicking user. The
// questionnaire can take minutes, so the interaction gets a deferred
// ephemeral reply and the outcome arrives as a follow-up.
func (b *Bot) handleIntakeClick(i *discordgo.InteractionCreate) {
	user := memberFromInteraction(i)

	if err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		b.logger.Warn("could not acknowledge intake click", zap.Error(err))
		return
	}

	go func() {
		ctx := context.Background()
		result, err := b.wizard.Run(ctx, user)
		b.metrics.RecordCommand("intake", err == nil)

		content := ""
		switch {
		case err == nil && result.TimedOut:
			content = fmt.Sprintf("Your ticket channel <#%d> was created, but the setup timed out. A staff member will assist you there.", result.ChannelID)
		case err == nil:
			content = fmt.Sprintf("Your ticket has been created: <#%d>", result.ChannelID)
		default:
			var exists *service.OpenTicketExistsError
			var cooldown *service.CooldownActiveError
			switch {
			case errors.As(err, &exists):
				content = fmt.Sprintf("You already have an open ticket: <#%d>", exists.ChannelID)
			case errors.As(err, &cooldown):
				content = fmt.Sprintf("Please wait %s before creating another ticket.", cooldown.Remaining.Round(time.Second))
			default:
				b.logger.Error("wizard run failed", zap.Int64("user_id", user.ID), zap.Error(err))
				content = util.UserFacing(err)
			}
		}

		if _, err := b.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		}); err != nil {
			b.logger.Debug("could not send intake follow-up", zap.Error(err))
		}
	}()
}
