package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

// customIDPrefix namespaces wizard components so the prompter ignores
// interactions that belong to other features.
const customIDPrefix = "wizard"

// Prompter renders the wizard's status message and blocks flows until
// the addressed user clicks a component or sends a message. One status
// message per channel is edited in place as the flow advances.
type Prompter struct {
	session *discordgo.Session
	logger  *zap.Logger

	mu      sync.Mutex
	status  map[int64]string       // channel ID -> status message ID
	pending map[string]chan string // "<channel>:<user>" -> answer
	texts   map[string]chan string
}

// NewPrompter wires the component and message handlers onto the session.
func NewPrompter(session *discordgo.Session, logger *zap.Logger) *Prompter {
	p := &Prompter{
		session: session,
		logger:  logger,
		status:  map[int64]string{},
		pending: map[string]chan string{},
		texts:   map[string]chan string{},
	}
	session.AddHandler(p.handleComponent)
	session.AddHandler(p.handleMessage)
	return p
}

func pendingKey(channelID, userID int64) string {
	return fmt.Sprintf("%d:%d", channelID, userID)
}

// handleComponent delivers button clicks and menu picks to the waiting
// flow. Clicks by anyone other than the addressed user are refused with
// an ephemeral notice.
func (p *Prompter) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	data := i.MessageComponentData()
	parts := strings.SplitN(data.CustomID, ":", 4)
	if len(parts) != 4 || parts[0] != customIDPrefix {
		return
	}
	channelID, userID, value := parts[1], parts[2], parts[3]

	clicker := interactionUserID(i)
	if clicker != userID {
		p.respondEphemeral(i, "Only the ticket creator can answer this.")
		return
	}
	if len(data.Values) > 0 {
		value = data.Values[0]
	}

	p.mu.Lock()
	ch := p.pending[channelID+":"+userID]
	p.mu.Unlock()
	if ch == nil {
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		p.logger.Warn("could not acknowledge component click", zap.Error(err))
	}

	select {
	case ch <- value:
	default:
	}
}

// handleMessage captures the free-text answer of an AskText step and
// deletes the user's message when permitted.
func (p *Prompter) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	key := m.ChannelID + ":" + m.Author.ID

	p.mu.Lock()
	ch := p.texts[key]
	p.mu.Unlock()
	if ch == nil {
		return
	}

	select {
	case ch <- m.Content:
	default:
		return
	}
	if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		p.logger.Debug("could not delete captured answer", zap.Error(err))
	}
}

func (p *Prompter) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := p.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		p.logger.Warn("could not post ephemeral refusal", zap.Error(err))
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// AskButtons posts the embed with one button per choice and waits for
// the addressed user's click.
func (p *Prompter) AskButtons(ctx context.Context, channelID, userID int64, embed platform.Embed, choices []platform.Choice) (string, error) {
	buttons := make([]discordgo.MessageComponent, 0, len(choices))
	for _, c := range choices {
		btn := discordgo.Button{
			Label:    c.Label,
			Style:    discordgo.PrimaryButton,
			CustomID: fmt.Sprintf("%s:%d:%d:%s", customIDPrefix, channelID, userID, c.Value),
		}
		if c.Emoji != "" {
			btn.Emoji = &discordgo.ComponentEmoji{Name: c.Emoji}
		}
		buttons = append(buttons, btn)
	}
	components := []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
	return p.await(ctx, channelID, userID, embed, components)
}

// AskSelect posts the embed with a select menu and waits for a pick.
func (p *Prompter) AskSelect(ctx context.Context, channelID, userID int64, embed platform.Embed, placeholder string, choices []platform.Choice) (string, error) {
	options := make([]discordgo.SelectMenuOption, 0, len(choices))
	for _, c := range choices {
		opt := discordgo.SelectMenuOption{Label: c.Label, Value: c.Value}
		if c.Emoji != "" {
			opt.Emoji = &discordgo.ComponentEmoji{Name: c.Emoji}
		}
		options = append(options, opt)
	}
	components := []discordgo.MessageComponent{discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{discordgo.SelectMenu{
			CustomID:    fmt.Sprintf("%s:%d:%d:menu", customIDPrefix, channelID, userID),
			Placeholder: placeholder,
			Options:     options,
		}},
	}}
	return p.await(ctx, channelID, userID, embed, components)
}

// AskText updates the status embed and waits for the user's next
// message in the channel.
func (p *Prompter) AskText(ctx context.Context, channelID, userID int64, embed platform.Embed) (string, error) {
	if err := p.upsertStatus(ctx, channelID, embed, []discordgo.MessageComponent{}); err != nil {
		return "", err
	}

	key := pendingKey(channelID, userID)
	ch := make(chan string, 1)
	p.mu.Lock()
	p.texts[key] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.texts, key)
		p.mu.Unlock()
	}()

	select {
	case answer := <-ch:
		return answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Update replaces the status message without waiting, stripping any
// leftover components.
func (p *Prompter) Update(ctx context.Context, channelID int64, embed platform.Embed) error {
	return p.upsertStatus(ctx, channelID, embed, []discordgo.MessageComponent{})
}

// await renders the step and blocks until the component handler
// delivers an answer or the step deadline passes.
func (p *Prompter) await(ctx context.Context, channelID, userID int64, embed platform.Embed, components []discordgo.MessageComponent) (string, error) {
	if err := p.upsertStatus(ctx, channelID, embed, components); err != nil {
		return "", err
	}

	key := pendingKey(channelID, userID)
	ch := make(chan string, 1)
	p.mu.Lock()
	p.pending[key] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, key)
		p.mu.Unlock()
	}()

	select {
	case answer := <-ch:
		return answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// upsertStatus sends the status message on the first step and edits it
// in place afterwards.
func (p *Prompter) upsertStatus(ctx context.Context, channelID int64, embed platform.Embed, components []discordgo.MessageComponent) error {
	channel := snowflake(channelID)
	embeds := []*discordgo.MessageEmbed{toMessageEmbed(embed)}

	p.mu.Lock()
	messageID, exists := p.status[channelID]
	p.mu.Unlock()

	if exists {
		_, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    channel,
			ID:         messageID,
			Embeds:     &embeds,
			Components: &components,
		}, discordgo.WithContext(ctx))
		return mapErr(err)
	}

	msg, err := p.session.ChannelMessageSendComplex(channel, &discordgo.MessageSend{
		Embeds:     embeds,
		Components: components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return mapErr(err)
	}
	p.mu.Lock()
	p.status[channelID] = msg.ID
	p.mu.Unlock()
	return nil
}
