package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/cooldown"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/store"
)

// Step names one waiting state of the creation flow.
type Step int

const (
	StepCountry Step = iota
	StepGroupLinkChoice
	StepGroupLinkText
	StepPaymentMethod
	StepFinalizing
	StepDone
	StepTimedOut
)

func (s Step) String() string {
	switch s {
	case StepCountry:
		return "country"
	case StepGroupLinkChoice:
		return "group_link_choice"
	case StepGroupLinkText:
		return "group_link_text"
	case StepPaymentMethod:
		return "payment_method"
	case StepFinalizing:
		return "finalizing"
	case StepDone:
		return "done"
	case StepTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// noGroupLink is recorded when the user declines to share a link.
const noGroupLink = "No link provided"

// stepTimeout bounds every waiting state of the flow.
const stepTimeout = 180 * time.Second

// OpenTicketExistsError aborts the flow before any channel is created.
type OpenTicketExistsError struct {
	ChannelID int64
}

func (e *OpenTicketExistsError) Error() string {
	return fmt.Sprintf("user already has an open ticket in channel %d", e.ChannelID)
}

// CooldownActiveError aborts the flow while the user's window is live.
type CooldownActiveError struct {
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("ticket creation on cooldown for %s", e.Remaining.Round(time.Second))
}

// Wizard drives the strictly sequential ticket-creation questionnaire.
// One Run is one interactive session; nothing about the flow itself is
// persisted. Different users' runs interleave freely but share state
// only through the store.
type Wizard struct {
	store      *store.Store
	gateway    platform.Gateway
	prompter   platform.Prompter
	cooldowns  cooldown.Tracker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// WizardDependencies bundles collaborators for the wizard.
type WizardDependencies struct {
	Store      *store.Store
	Gateway    platform.Gateway
	Prompter   platform.Prompter
	Cooldowns  cooldown.Tracker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewWizard constructs the wizard.
func NewWizard(deps WizardDependencies) *Wizard {
	return &Wizard{
		store:      deps.Store,
		gateway:    deps.Gateway,
		prompter:   deps.Prompter,
		cooldowns:  deps.Cooldowns,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// RunResult reports how a wizard session ended.
type RunResult struct {
	ChannelID    int64
	TicketNumber int
	TimedOut     bool
	LastStep     Step
}

// Run executes the full flow for one user: guard, channel creation,
// questionnaire, commit. It returns OpenTicketExistsError or
// CooldownActiveError before creating anything; a timeout mid-flow
// leaves the channel in place with a notice that staff will follow up.
func (w *Wizard) Run(ctx context.Context, user platform.Member) (*RunResult, error) {
	if channelID, ok := w.store.OpenTicketFor(user.ID); ok {
		return nil, &OpenTicketExistsError{ChannelID: channelID}
	}

	window := time.Duration(w.store.Cooldown()) * time.Second
	remaining, allowed, err := w.cooldowns.Begin(ctx, user.ID, window)
	if err != nil {
		// a broken cooldown backend must not block ticket intake
		w.logger.Warn("cooldown tracker unavailable", zap.Error(err))
	} else if !allowed {
		return nil, &CooldownActiveError{Remaining: remaining}
	}

	number, err := w.store.NextTicketNumber()
	if err != nil {
		return nil, err
	}

	channel, categoryID, err := w.gateway.CreateTicketChannel(ctx,
		fmt.Sprintf("ticket-%04d", number),
		w.store.TicketCategoryID(),
		user.ID,
		w.store.StaffRoleIDs())
	if err != nil {
		return nil, err
	}
	if categoryID != 0 && categoryID != w.store.TicketCategoryID() {
		if err := w.store.SetTicketCategoryID(categoryID); err != nil {
			w.logger.Warn("could not remember provisioned category", zap.Error(err))
		}
	}

	result := &RunResult{ChannelID: channel.ID, TicketNumber: number}
	answers, last, err := w.questionnaire(ctx, user, channel.ID, number)
	result.LastStep = last
	if err != nil {
		if errors.Is(err, platform.ErrTimeout) {
			result.TimedOut = true
			result.LastStep = StepTimedOut
			w.handleTimeout(ctx, user, channel.ID)
			return result, nil
		}
		return result, err
	}

	answers.CreatedAt = w.now().Format("2006-01-02 15:04:05")
	if err := w.finalize(ctx, user, channel.ID, number, answers); err != nil {
		return result, err
	}
	result.LastStep = StepDone
	return result, nil
}

// questionnaire walks the waiting states in order. Every prompt is
// bounded by stepTimeout; the first expiry aborts the rest of the flow.
func (w *Wizard) questionnaire(ctx context.Context, user platform.Member, channelID int64, number int) (domain.Answers, Step, error) {
	var answers domain.Answers

	country, err := w.ask(ctx, func(stepCtx context.Context) (string, error) {
		return w.prompter.AskButtons(stepCtx, channelID, user.ID, platform.Embed{
			Title:       fmt.Sprintf("Purchase Request #%04d - Setup", number),
			Description: fmt.Sprintf("Welcome <@%d>!\n\nPlease complete the following steps to submit your purchase request.", user.ID),
			Color:       platform.ColorBlue,
			Fields: []platform.EmbedField{
				{Name: "Step 1: Select Your Country", Value: "Please select your country from the options below."},
			},
		}, []platform.Choice{
			{Label: "Canada", Value: "Canada", Emoji: "🇨🇦"},
			{Label: "US", Value: "US", Emoji: "🇺🇸"},
		})
	})
	if err != nil {
		return answers, StepCountry, err
	}
	answers.Country = country

	hasLink, err := w.ask(ctx, func(stepCtx context.Context) (string, error) {
		return w.prompter.AskButtons(stepCtx, channelID, user.ID, platform.Embed{
			Title:       fmt.Sprintf("Purchase Request #%04d - Setup", number),
			Description: fmt.Sprintf("Welcome <@%d>!", user.ID),
			Color:       platform.ColorBlue,
			Fields: []platform.EmbedField{
				{Name: "Step 1: Country ✅", Value: fmt.Sprintf("Selected: **%s**", answers.Country)},
				{Name: "Step 2: Group Link", Value: "Do you have a group link to share with us?"},
			},
		}, []platform.Choice{
			{Label: "Yes", Value: "yes", Emoji: "✅"},
			{Label: "No", Value: "no", Emoji: "❌"},
		})
	})
	if err != nil {
		return answers, StepGroupLinkChoice, err
	}

	linkField := platform.EmbedField{Name: "Step 2: Group Link ✅", Value: noGroupLink}
	if hasLink == "yes" {
		link, err := w.ask(ctx, func(stepCtx context.Context) (string, error) {
			return w.prompter.AskText(stepCtx, channelID, user.ID, platform.Embed{
				Title:       fmt.Sprintf("Purchase Request #%04d - Setup", number),
				Description: fmt.Sprintf("Welcome <@%d>!", user.ID),
				Color:       platform.ColorBlue,
				Fields: []platform.EmbedField{
					{Name: "Step 1: Country ✅", Value: fmt.Sprintf("Selected: **%s**", answers.Country)},
					{Name: "Step 2: Group Link ✅", Value: "Please type your group link in the chat."},
				},
			})
		})
		if err != nil {
			return answers, StepGroupLinkText, err
		}
		answers.GroupLink = strings.TrimSpace(link)
		linkField.Value = fmt.Sprintf("Link provided: **%s**", answers.GroupLink)
	} else {
		answers.GroupLink = noGroupLink
	}

	payment, err := w.ask(ctx, func(stepCtx context.Context) (string, error) {
		return w.prompter.AskSelect(stepCtx, channelID, user.ID, platform.Embed{
			Title:       fmt.Sprintf("Purchase Request #%04d - Setup", number),
			Description: fmt.Sprintf("Welcome <@%d>!", user.ID),
			Color:       platform.ColorBlue,
			Fields: []platform.EmbedField{
				{Name: "Step 1: Country ✅", Value: fmt.Sprintf("Selected: **%s**", answers.Country)},
				linkField,
				{Name: "Step 3: Payment Method", Value: "Please select your preferred payment method:"},
			},
		}, "Select a payment method...", []platform.Choice{
			{Label: "PayPal", Value: "PayPal", Emoji: "💰"},
			{Label: "Zelle", Value: "Zelle", Emoji: "💳"},
			{Label: "CashApp", Value: "CashApp", Emoji: "💵"},
			{Label: "Other", Value: "Other", Emoji: "🔄"},
		})
	})
	if err != nil {
		return answers, StepPaymentMethod, err
	}
	answers.PaymentMethod = payment

	return answers, StepFinalizing, nil
}

// ask bounds one waiting state with the step timeout and maps a
// deadline expiry onto platform.ErrTimeout.
func (w *Wizard) ask(ctx context.Context, prompt func(context.Context) (string, error)) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	value, err := prompt(stepCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", platform.ErrTimeout
		}
		return "", err
	}
	return value, nil
}

// finalize commits the finished questionnaire: summary embed, staff
// notice, persisted record, event.
func (w *Wizard) finalize(ctx context.Context, user platform.Member, channelID int64, number int, answers domain.Answers) error {
	summary := platform.Embed{
		Title: "Purchase Request",
		Description: fmt.Sprintf(
			"**COUNTRY**\n```\n%s\n```\n**GROUP LINK**\n```\n%s\n```\n**PAYMENT METHOD**\n```\n%s\n```",
			answers.Country, answers.GroupLink, answers.PaymentMethod),
		Color: platform.ColorGreen,
	}
	if err := w.prompter.Update(ctx, channelID, summary); err != nil {
		w.logger.Warn("could not post wizard summary", zap.Int64("channel_id", channelID), zap.Error(err))
	}

	staffRoles := w.store.StaffRoleIDs()
	if len(staffRoles) > 0 {
		mentions := make([]string, 0, len(staffRoles))
		for _, roleID := range staffRoles {
			mentions = append(mentions, fmt.Sprintf("<@&%d>", roleID))
		}
		if err := w.gateway.SendEmbed(ctx, channelID, strings.Join(mentions, " "), platform.Embed{
			Title:       "New Purchase Request",
			Description: "A new purchase request has been submitted and is ready for processing.",
			Color:       platform.ColorGold,
			Fields: []platform.EmbedField{
				{Name: "Ticket", Value: fmt.Sprintf("#%04d", number), Inline: true},
				{Name: "User", Value: fmt.Sprintf("<@%d>", user.ID), Inline: true},
			},
		}); err != nil {
			w.logger.Warn("could not notify staff", zap.Int64("channel_id", channelID), zap.Error(err))
		}
	}

	if err := w.store.AddTicket(channelID, user.ID, answers); err != nil {
		return err
	}

	w.publish(ctx, events.Event{
		Type:      events.EventTicketOpened,
		ChannelID: channelID,
		ActorID:   user.ID,
		Payload: events.TicketOpenedPayload{
			TicketNumber: number,
			UserID:       user.ID,
			Answers:      answers,
		},
	})
	return nil
}

// handleTimeout posts the staff-will-follow-up notice. The channel is
// deliberately left in place so staff can pick the conversation up.
func (w *Wizard) handleTimeout(ctx context.Context, user platform.Member, channelID int64) {
	if err := w.gateway.SendEmbed(ctx, channelID, fmt.Sprintf("<@%d>", user.ID), platform.Embed{
		Title:       "Purchase Request Setup Timed Out",
		Description: "The purchase request setup process has timed out. A staff member will assist you shortly.",
		Color:       platform.ColorRed,
	}); err != nil {
		w.logger.Warn("could not post timeout notice", zap.Int64("channel_id", channelID), zap.Error(err))
	}
	w.publish(ctx, events.Event{
		Type:      events.EventWizardTimedOut,
		ChannelID: channelID,
		ActorID:   user.ID,
	})
}

func (w *Wizard) publish(ctx context.Context, event events.Event) {
	if w.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = w.now()
	}
	_ = w.dispatcher.Publish(ctx, event)
}
