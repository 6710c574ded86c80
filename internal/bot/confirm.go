package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/pkg/util"
)

// confirmTTL is how long a close/delete confirmation stays clickable.
const confirmTTL = 60 * time.Second

type confirmKind string

const (
	confirmClose  confirmKind = "close"
	confirmDelete confirmKind = "delete"
)

type pendingConfirm struct {
	kind      confirmKind
	actor     platform.Member
	channelID int64
	expires   time.Time
}

// confirmRegistry tracks one-shot confirmation tokens. Tokens are
// single-use and expire after confirmTTL.
type confirmRegistry struct {
	mu      sync.Mutex
	pending map[string]pendingConfirm
	now     func() time.Time
}

func newConfirmRegistry() *confirmRegistry {
	return &confirmRegistry{
		pending: map[string]pendingConfirm{},
		now:     time.Now,
	}
}

func (r *confirmRegistry) add(kind confirmKind, actor platform.Member, channelID int64) string {
	token := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[token] = pendingConfirm{
		kind:      kind,
		actor:     actor,
		channelID: channelID,
		expires:   r.now().Add(confirmTTL),
	}
	return token
}

// take consumes a token. Expired or unknown tokens report false.
func (r *confirmRegistry) take(token string) (pendingConfirm, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, ok := r.pending[token]
	if !ok {
		return pendingConfirm{}, false
	}
	delete(r.pending, token)
	if r.now().After(pc.expires) {
		return pendingConfirm{}, false
	}
	return pc, true
}

func (r *confirmRegistry) owns(customID string) bool {
	return strings.HasPrefix(customID, "confirm:")
}

// askConfirmation replies with an ephemeral Confirm/Cancel prompt.
func (b *Bot) askConfirmation(i *discordgo.InteractionCreate, kind confirmKind, actor platform.Member, channelID int64, question string) error {
	token := b.confirms.add(kind, actor, channelID)
	return b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: question,
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Confirm",
						Style:    discordgo.DangerButton,
						CustomID: fmt.Sprintf("confirm:yes:%s", token),
					},
					discordgo.Button{
						Label:    "Cancel",
						Style:    discordgo.SecondaryButton,
						CustomID: fmt.Sprintf("confirm:no:%s", token),
					},
				}},
			},
		},
	})
}

func (b *Bot) handleConfirmClick(i *discordgo.InteractionCreate) {
	parts := strings.SplitN(i.MessageComponentData().CustomID, ":", 3)
	if len(parts) != 3 {
		return
	}
	answer, token := parts[1], parts[2]

	pc, ok := b.confirms.take(token)
	if !ok {
		b.updateConfirmPrompt(i, "This confirmation has expired. Please run the command again.")
		return
	}

	clicker := memberFromInteraction(i)
	if clicker.ID != pc.actor.ID {
		b.confirms.mu.Lock()
		b.confirms.pending[token] = pc // put it back for the real actor
		b.confirms.mu.Unlock()
		b.respondEphemeral(i, "Only the person who ran the command can confirm this.")
		return
	}

	if answer != "yes" {
		b.updateConfirmPrompt(i, "Cancelled.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch pc.kind {
	case confirmClose:
		if _, err := b.lifecycle.Close(ctx, pc.actor, pc.channelID); err != nil {
			b.updateConfirmPrompt(i, util.UserFacing(err))
			return
		}
		b.updateConfirmPrompt(i, "Ticket closed.")
	case confirmDelete:
		b.updateConfirmPrompt(i, "Deleting this ticket shortly...")
		// the delete delay outlives the interaction, so run it out of band
		go b.runConfirmedDelete(pc, func(content string) {
			_, err := b.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			})
			if err != nil {
				b.logger.Warn("could not deliver delete failure notice", zap.Error(err))
			}
		})
	}
}

// runConfirmedDelete performs the deletion after the prompt has already
// acknowledged it. A failure here leaves the ticket record in place, so
// the actor must hear about it through notify rather than a log line.
func (b *Bot) runConfirmedDelete(pc pendingConfirm, notify func(content string)) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.lifecycle.Delete(ctx, pc.actor, pc.channelID); err != nil {
		b.logger.Warn("ticket deletion failed",
			zap.Int64("channel_id", pc.channelID), zap.Error(err))
		notify(util.UserFacing(err))
	}
}

// updateConfirmPrompt edits the ephemeral prompt in place, removing the
// buttons.
func (b *Bot) updateConfirmPrompt(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		b.logger.Warn("could not update confirmation prompt", zap.Error(err))
	}
}
